package changefs

import "context"

// FileInfo is the minimal metadata a FileProvider reports about a path.
// The full read-side contract (content streaming, checksums, signed URLs,
// ...) is out of scope here - see spec.md §1 - this is only what
// CombinedFileProvider and CachingFileProvider need to merge and cache.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime int64 // unix nanos; int64 keeps FileInfo trivially comparable/cacheable
	IsDir   bool
	Exists  bool
}

// NotFoundFileInfo is the sentinel returned for a path that doesn't exist.
var NotFoundFileInfo = FileInfo{Exists: false}

// DirectoryContents is the result of listing a directory: a set of entries
// plus a presence bit, since "directory exists but is empty" and
// "directory does not exist" are different answers.
type DirectoryContents struct {
	Exists  bool
	Entries []FileInfo
}

// FileProvider is the external boundary this package fans out over and
// caches in front of. It is intentionally narrow - just enough surface for
// CombinedFileProvider (C8) and CachingFileProvider (C9) to do their job -
// matching spec.md §6's external-interfaces list. A concrete backend (the
// local driver, the memory driver, or a hypothetical cloud driver) is free
// to implement a richer read/write surface alongside this one.
type FileProvider interface {
	// GetFileInfo returns metadata for subpath. Implementations never
	// return an error for a missing path - they return NotFoundFileInfo.
	GetFileInfo(ctx context.Context, subpath string) (FileInfo, error)

	// GetDirectoryContents lists subpath. Implementations never return an
	// error for a missing directory - they return DirectoryContents with
	// Exists == false.
	GetDirectoryContents(ctx context.Context, subpath string) (DirectoryContents, error)

	// Watch creates a change token for filter (see ChangeToken). A filter
	// the provider cannot watch, such as one escaping the root, returns
	// NeverChangeToken and a nil error; a filter that is not a valid glob
	// pattern returns a *PathError with ErrCodeInvalidInput.
	Watch(ctx context.Context, filter string) (ChangeToken, error)
}
