// Package memory implements changefs.FileProvider over an in-memory file
// tree, useful for tests and for CombinedFileProvider fan-out scenarios
// that don't want to touch the real filesystem.
package memory

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/watchkit/changefs"
)

type memoryFile struct {
	content []byte
	modTime time.Time
}

type watchEntry struct {
	pattern string
	matcher glob.Glob
	source  *changefs.CancellationSource
	token   *changefs.CancellationChangeToken
}

// Adapter is an in-memory changefs.FileProvider. Files are populated with
// Put and removed with Delete; both fire any watch registered against a
// matching pattern, mirroring how PhysicalFilesWatcher reacts to real OS
// events but driven by direct calls instead.
type Adapter struct {
	mu    sync.RWMutex
	files map[string]*memoryFile

	watchMu sync.Mutex
	watches map[string]*watchEntry
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{
		files:   make(map[string]*memoryFile),
		watches: make(map[string]*watchEntry),
	}
}

// Put stores content under path, creating or overwriting it, and fires
// every watch whose pattern matches path.
func (a *Adapter) Put(path string, content []byte) {
	path = normalizePath(path)

	a.mu.Lock()
	a.files[path] = &memoryFile{content: content, modTime: time.Now()}
	a.mu.Unlock()

	a.fire(path)
}

// Delete removes path, if present, and fires every watch whose pattern
// matches it.
func (a *Adapter) Delete(path string) {
	path = normalizePath(path)

	a.mu.Lock()
	_, existed := a.files[path]
	delete(a.files, path)
	a.mu.Unlock()

	if existed {
		a.fire(path)
	}
}

// GetFileInfo implements changefs.FileProvider.
func (a *Adapter) GetFileInfo(ctx context.Context, subpath string) (changefs.FileInfo, error) {
	select {
	case <-ctx.Done():
		return changefs.FileInfo{}, ctx.Err()
	default:
	}

	path := normalizePath(subpath)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, ok := a.files[path]
	if !ok {
		return changefs.NotFoundFileInfo, nil
	}

	return changefs.FileInfo{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    int64(len(file.content)),
		ModTime: file.modTime.UnixNano(),
		Exists:  true,
	}, nil
}

// GetDirectoryContents implements changefs.FileProvider, listing the
// immediate children of subpath.
func (a *Adapter) GetDirectoryContents(ctx context.Context, subpath string) (changefs.DirectoryContents, error) {
	select {
	case <-ctx.Done():
		return changefs.DirectoryContents{}, ctx.Err()
	default:
	}

	prefix := normalizePath(subpath)
	if prefix != "" {
		prefix += "/"
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]bool)
	var entries []changefs.FileInfo
	anyMatch := prefix == ""

	for path, file := range a.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		anyMatch = true
		rel := strings.TrimPrefix(path, prefix)
		name := strings.SplitN(rel, "/", 2)[0]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, changefs.FileInfo{
			Name:    name,
			Path:    prefix + name,
			Size:    int64(len(file.content)),
			ModTime: file.modTime.UnixNano(),
			IsDir:   strings.Contains(rel, "/"),
			Exists:  true,
		})
	}

	if !anyMatch {
		return changefs.DirectoryContents{}, nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return changefs.DirectoryContents{Exists: true, Entries: entries}, nil
}

// Watch implements changefs.FileProvider. filter is compiled once and
// reused for every Put/Delete fire check; an identical filter shares its
// token with earlier callers, same as PhysicalFilesWatcher.
func (a *Adapter) Watch(ctx context.Context, filter string) (changefs.ChangeToken, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	if entry, ok := a.watches[filter]; ok {
		return entry.token, nil
	}

	m, err := glob.Compile(filter, '/')
	if err != nil {
		return nil, changefs.NewPathError("watch", filter, changefs.ErrCodeInvalidInput, err.Error())
	}

	source := changefs.NewCancellationSource()
	entry := &watchEntry{
		pattern: filter,
		matcher: m,
		source:  source,
		token:   changefs.NewCancellationChangeToken(source),
	}
	a.watches[filter] = entry

	return entry.token, nil
}

func (a *Adapter) fire(path string) {
	a.watchMu.Lock()
	var hit []*watchEntry
	for key, entry := range a.watches {
		if entry.matcher.Match(path) {
			hit = append(hit, entry)
			delete(a.watches, key)
		}
	}
	a.watchMu.Unlock()

	for _, entry := range hit {
		entry.source.Cancel()
	}
}

func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "/")
	if path == "" || path == "." {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(path))
}

var _ changefs.FileProvider = (*Adapter)(nil)
