// Package changefs provides the change-token protocol and the combined and
// caching decorators built on top of it.
//
// changefs follows Microsoft's IChangeToken pattern from ASP.NET Core:
//
//   - [ChangeToken] is a one-shot observable - poll HasChanged, or register a
//     callback via RegisterChangeCallback and check ActiveChangeCallbacks to
//     see whether that's worth doing.
//   - [CancellationSource] / [CancellationChangeToken] is the backing
//     primitive every watcher-owned token uses: a one-shot trigger that
//     drains its registered callbacks exactly once.
//   - [CombinedFileProvider] / [CombinedChangeToken] fan a Watch call out
//     across several [FileProvider] backends and aggregate the result.
//   - [CachingFileProvider] caches a backend's metadata lookups and
//     invalidates on a Watch token firing.
//
// The two watchers that actually turn filesystem activity into token
// firings live in driver subpackages:
//
//	import "github.com/watchkit/changefs/driver/local"
//
//	watcher, err := local.NewPhysicalFilesWatcher("./config")
//	token, err := watcher.CreateFileChangeToken("**/*.json")
//	if token.HasChanged() {
//	    reload()
//	}
//
//	// Or react to changes without polling:
//	unregister := token.RegisterChangeCallback(reload)
//	defer unregister()
//
// driver/polling provides the same token/watcher contract for backends
// without native file-system events, trading OS notifications for a timer
// that hashes the matched file set.
//
// # Combining and caching
//
//	combined := changefs.NewCombinedFileProvider(localFS, memoryFS)
//	token, err := combined.Watch(ctx, "**/*.yaml")
//
//	cached, err := changefs.NewCachingFileProvider(ctx, combined, 4096, "**/*.yaml")
//	info, err := cached.GetFileInfo(ctx, "config/app.yaml")
//
// # Configuration
//
// [GetConfig] loads [Config] from the BEAVER_CHANGEFS_* environment
// variables:
//
//	cfg, err := changefs.GetConfig()
//	w, err := local.NewPhysicalFilesWatcher("./config", local.WithEagerEnable(cfg.EagerEnable))
//
// # Errors
//
// No error ever crosses the ChangeToken boundary - the protocol only
// signals change (spec.md §7). [PathError] and the ErrCode* sentinels are
// only used by Watch constructors and the FileProvider adapters.
package changefs
