package local

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/watchkit/changefs"
)

// wildcardEntry is a wildcard registry entry: a compiled matcher paired with
// the cancellation source backing the token handed out for it.
type wildcardEntry struct {
	pattern string
	matcher glob.Glob
	source  *changefs.CancellationSource
	token   *changefs.CancellationChangeToken
}

type exactEntry struct {
	source *changefs.CancellationSource
	token  *changefs.CancellationChangeToken
}

// PhysicalFilesWatcher maps glob patterns and exact relative paths to
// ChangeTokens backed by OS file-system events under a single root
// directory. It is the Go analogue of ASP.NET Core's PhysicalFilesWatcher.
//
// The zero value is not usable; construct with NewPhysicalFilesWatcher.
type PhysicalFilesWatcher struct {
	root string

	mu       sync.Mutex
	exact    map[string]*exactEntry   // key: normalized relative path (lowercased)
	wildcard map[string]*wildcardEntry // key: original pattern string

	fs       fsWatcher
	watching bool

	eagerEnable bool
	closed      bool
	done        chan struct{}
}

// Option configures a PhysicalFilesWatcher at construction time.
type Option func(*PhysicalFilesWatcher)

// WithEagerEnable enables the underlying OS watcher immediately instead of
// waiting for the first registered filter.
func WithEagerEnable(eager bool) Option {
	return func(w *PhysicalFilesWatcher) { w.eagerEnable = eager }
}

// NewPhysicalFilesWatcher constructs a watcher rooted at root. root must
// exist; it is not created.
func NewPhysicalFilesWatcher(root string, opts ...Option) (*PhysicalFilesWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, changefs.NewPathError("watch", root, changefs.ErrCodeInvalidInput, err.Error())
	}

	w := &PhysicalFilesWatcher{
		root:     absRoot,
		exact:    make(map[string]*exactEntry),
		wildcard: make(map[string]*wildcardEntry),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.eagerEnable {
		if err := w.enableLocked(); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Close stops the underlying OS watcher and releases all registered tokens
// without firing them.
func (w *PhysicalFilesWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	if w.fs != nil {
		return w.fs.Close()
	}
	return nil
}

// normalizeFilter applies the normalization rules: backslash-to-slash, and
// flags filters that escape the root (absolute paths or ".." segments) so
// the caller returns the no-op token for them.
func normalizeFilter(filter string) (normalized string, escapesRoot bool) {
	f := strings.ReplaceAll(filter, `\`, "/")
	if filepath.IsAbs(f) || strings.HasPrefix(f, "/") {
		return f, true
	}
	for _, seg := range strings.Split(f, "/") {
		if seg == ".." {
			return f, true
		}
	}
	if f == "*.*" {
		f = "*"
	}
	return f, false
}

// isWildcard applies the routing rule: a filter is a wildcard entry if it
// contains a glob metacharacter or ends in a directory separator.
func isWildcard(filter string) bool {
	if strings.HasSuffix(filter, "/") {
		return true
	}
	return strings.ContainsAny(filter, "*?[")
}

// wildcardGlob turns a trailing-separator filter into "dir/**/*" and
// compiles the rest with gobwas/glob, using '/' as the path separator so
// '*' does not cross directory boundaries (doublestar-style '**' does).
func wildcardGlob(filter string) (glob.Glob, error) {
	pattern := filter
	if strings.HasSuffix(pattern, "/") {
		pattern += "**/*"
	}
	return glob.Compile(pattern, '/')
}

// CreateFileChangeToken returns a ChangeToken bound to filter, per spec.md
// §4.3: escaping filters get the shared no-op token and a nil error;
// otherwise a token is created or reused from the exact or wildcard
// registry, and the OS watcher is enabled if it wasn't already running.
func (w *PhysicalFilesWatcher) CreateFileChangeToken(filter string) (changefs.ChangeToken, error) {
	normalized, escapes := normalizeFilter(filter)
	if escapes {
		return changefs.NeverChangeToken{}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return changefs.NeverChangeToken{}, nil
	}

	var token changefs.ChangeToken

	if isWildcard(normalized) {
		if entry, ok := w.wildcard[normalized]; ok {
			token = entry.token
		} else {
			m, err := wildcardGlob(normalized)
			if err != nil {
				return nil, changefs.NewPathError("watch", filter, changefs.ErrCodeInvalidInput, err.Error())
			}
			source := changefs.NewCancellationSource()
			entry := &wildcardEntry{
				pattern: normalized,
				matcher: m,
				source:  source,
				token:   changefs.NewCancellationChangeToken(source),
			}
			w.wildcard[normalized] = entry
			token = entry.token
		}
	} else {
		key := strings.ToLower(normalized)
		if entry, ok := w.exact[key]; ok {
			token = entry.token
		} else {
			source := changefs.NewCancellationSource()
			entry := &exactEntry{
				source: source,
				token:  changefs.NewCancellationChangeToken(source),
			}
			w.exact[key] = entry
			token = entry.token
		}
	}

	if err := w.enableLocked(); err != nil {
		return nil, err
	}

	return token, nil
}

// enableLocked starts the OS watcher if it isn't already running. Caller
// must hold w.mu.
func (w *PhysicalFilesWatcher) enableLocked() error {
	if w.watching || w.closed {
		return nil
	}

	fs, err := newFSWatcher()
	if err != nil {
		return changefs.NewPathError("watch", w.root, changefs.ErrCodeIO, err.Error())
	}
	if err := addRecursive(fs, w.root); err != nil {
		fs.Close()
		return changefs.NewPathError("watch", w.root, changefs.ErrCodeIO, err.Error())
	}

	w.fs = fs
	w.watching = true
	go w.dispatch(fs)
	return nil
}

// adoptSubtree is called when dirPath (relative path rel) appears under the
// watched root. It walks the new subtree, adding every directory to the OS
// watch and firing registry entries for every descendant path - this is
// what makes a directory move's new side, or a freshly populated mkdir,
// behave like a stream of individual file-change events.
func (w *PhysicalFilesWatcher) adoptSubtree(dirPath string) {
	w.mu.Lock()
	fs := w.fs
	w.mu.Unlock()
	if fs == nil {
		return
	}

	_ = filepath.Walk(dirPath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			fs.Add(p)
		}
		if p == dirPath {
			// Already added to the watch above; its own fire happened in
			// the caller before adoptSubtree ran.
			return nil
		}
		if childRel, ok := w.relativeTo(p); ok && childRel != "" {
			w.fireRelative(childRel)
		}
		return nil
	})
}

// addRecursive adds root and every subdirectory beneath it to fs. Missing
// or unreadable entries are skipped rather than failing the whole walk -
// the tree may be changing concurrently with enable.
func addRecursive(fs fsWatcher, root string) error {
	if err := fs.Add(root); err != nil {
		return err
	}
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if p == root || !info.IsDir() {
			return nil
		}
		return fs.Add(p)
	})
}

// disableLocked stops the OS watcher. Caller must hold w.mu.
func (w *PhysicalFilesWatcher) disableLocked() {
	if !w.watching {
		return
	}
	w.watching = false
	if w.fs != nil {
		w.fs.Close()
		w.fs = nil
	}
}

// dispatch runs for the lifetime of one underlying fsWatcher instance,
// translating its events into registry fires.
func (w *PhysicalFilesWatcher) dispatch(fs fsWatcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fs.Events():
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-fs.Errors():
			if !ok {
				return
			}
			w.handleError()
		}
	}
}

// handleEvent applies exclusion filters, computes the relative path, and
// fires every exact and wildcard entry matching it (spec.md §4.3 "OS event
// handling"). A directory appearing (the new side of a move, or a fresh
// mkdir+populate) is walked so every descendant path fires and every new
// subdirectory joins the OS watch; a directory disappearing (the old side
// of a move, or a delete) fans out to whatever registry entries still sit
// under its old path.
func (w *PhysicalFilesWatcher) handleEvent(event fsEvent) {
	if isExcluded(event.Name) {
		return
	}

	rel, ok := w.relativeTo(event.Name)
	if !ok || rel == "" {
		return
	}

	w.fireRelative(rel)
	w.fireDescendants(rel)

	if event.IsCreate && event.IsDir {
		w.adoptSubtree(event.Name)
	}
}

// relativeTo computes path relative to the watcher root with slash
// separators, swallowing I/O errors per the "failure semantics" rule (a
// path may have been deleted mid-dispatch).
func (w *PhysicalFilesWatcher) relativeTo(fullPath string) (string, bool) {
	rel, err := filepath.Rel(w.root, fullPath)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}
	return rel, true
}

// fireDescendants emits synthetic fires for every currently-registered
// entry whose key lies under rel, used for directory rename/removal
// fan-out. rel itself is fired by the caller; this only covers the
// descendants the registries still track.
func (w *PhysicalFilesWatcher) fireDescendants(rel string) {
	prefix := rel + "/"

	w.mu.Lock()
	var hit []string
	for key := range w.exact {
		if strings.HasPrefix(key, strings.ToLower(prefix)) {
			hit = append(hit, key)
		}
	}
	w.mu.Unlock()

	for _, key := range hit {
		w.fireExactKey(key)
	}

	w.mu.Lock()
	var wildHit []*wildcardEntry
	for _, entry := range w.wildcard {
		if entry.matcher.Match(prefix) || strings.HasPrefix(entry.pattern, prefix) {
			wildHit = append(wildHit, entry)
		}
	}
	w.mu.Unlock()

	for _, entry := range wildHit {
		w.fireWildcardEntry(entry)
	}
}

// fireRelative fires the exact entry keyed by rel, if any, and every
// wildcard entry whose matcher matches rel, atomically removing each from
// its registry as it fires (spec.md "removal atomicity").
func (w *PhysicalFilesWatcher) fireRelative(rel string) {
	matched := w.fireExactKey(strings.ToLower(rel))

	w.mu.Lock()
	var hit []*wildcardEntry
	for _, entry := range w.wildcard {
		if entry.matcher.Match(rel) {
			hit = append(hit, entry)
		}
	}
	w.mu.Unlock()

	for _, entry := range hit {
		if w.fireWildcardEntry(entry) {
			matched = true
		}
	}

	if matched {
		w.mu.Lock()
		if len(w.exact) == 0 && len(w.wildcard) == 0 {
			w.disableLocked()
		}
		w.mu.Unlock()
	}
}

func (w *PhysicalFilesWatcher) fireExactKey(key string) bool {
	w.mu.Lock()
	entry, ok := w.exact[key]
	if ok {
		delete(w.exact, key)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	entry.source.Cancel()
	return true
}

func (w *PhysicalFilesWatcher) fireWildcardEntry(target *wildcardEntry) bool {
	w.mu.Lock()
	entry, ok := w.wildcard[target.pattern]
	if ok && entry == target {
		delete(w.wildcard, target.pattern)
	} else {
		ok = false
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	entry.source.Cancel()
	return true
}

// handleError implements the OnError bias from spec.md §4.3: cancel every
// exact-path token, leave wildcard tokens live, and let the watcher be
// recreated on the next registration.
func (w *PhysicalFilesWatcher) handleError() {
	w.mu.Lock()
	exact := w.exact
	w.exact = make(map[string]*exactEntry)
	w.disableLocked()
	w.mu.Unlock()

	for _, entry := range exact {
		entry.source.Cancel()
	}
}

// isExcluded applies the exclusion filters: dotfiles/dot-directories and
// other hidden/system entries are never surfaced as change events.
func isExcluded(fullPath string) bool {
	name := filepath.Base(fullPath)
	return strings.HasPrefix(name, ".")
}
