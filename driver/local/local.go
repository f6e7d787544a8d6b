// Package local implements changefs.FileProvider over the native
// filesystem, backed by a PhysicalFilesWatcher for change notification.
package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/watchkit/changefs"
)

// Adapter provides a local filesystem implementation of changefs.FileProvider.
type Adapter struct {
	root    string
	watcher *PhysicalFilesWatcher
}

// New creates a local filesystem adapter rooted at root. root must already
// exist.
func New(root string, opts ...Option) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, changefs.NewPathError("new", root, changefs.ErrCodeInvalidInput, err.Error())
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, changefs.WrapPathErr("new", root, err)
	}
	if !info.IsDir() {
		return nil, changefs.NewPathError("new", root, changefs.ErrCodeInvalidInput, "root is not a directory")
	}

	watcher, err := NewPhysicalFilesWatcher(absRoot, opts...)
	if err != nil {
		return nil, err
	}

	return &Adapter{root: absRoot, watcher: watcher}, nil
}

// Close releases the underlying watcher's OS resources.
func (a *Adapter) Close() error {
	return a.watcher.Close()
}

func (a *Adapter) resolve(subpath string) (string, bool) {
	full := filepath.Join(a.root, filepath.FromSlash(subpath))
	rel, err := filepath.Rel(a.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// GetFileInfo implements changefs.FileProvider.
func (a *Adapter) GetFileInfo(ctx context.Context, subpath string) (changefs.FileInfo, error) {
	select {
	case <-ctx.Done():
		return changefs.FileInfo{}, ctx.Err()
	default:
	}

	full, ok := a.resolve(subpath)
	if !ok {
		return changefs.NotFoundFileInfo, nil
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return changefs.NotFoundFileInfo, nil
		}
		return changefs.FileInfo{}, changefs.WrapPathErr("stat", subpath, err)
	}

	return changefs.FileInfo{
		Name:    info.Name(),
		Path:    subpath,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		IsDir:   info.IsDir(),
		Exists:  true,
	}, nil
}

// GetDirectoryContents implements changefs.FileProvider.
func (a *Adapter) GetDirectoryContents(ctx context.Context, subpath string) (changefs.DirectoryContents, error) {
	select {
	case <-ctx.Done():
		return changefs.DirectoryContents{}, ctx.Err()
	default:
	}

	full, ok := a.resolve(subpath)
	if !ok {
		return changefs.DirectoryContents{}, nil
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return changefs.DirectoryContents{}, nil
		}
		return changefs.DirectoryContents{}, changefs.WrapPathErr("listcontents", subpath, err)
	}

	contents := changefs.DirectoryContents{Exists: true}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		contents.Entries = append(contents.Entries, changefs.FileInfo{
			Name:    entry.Name(),
			Path:    filepath.ToSlash(filepath.Join(subpath, entry.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
			IsDir:   info.IsDir(),
			Exists:  true,
		})
	}

	return contents, nil
}

// Watch implements changefs.FileProvider by delegating to the adapter's
// PhysicalFilesWatcher.
func (a *Adapter) Watch(ctx context.Context, filter string) (changefs.ChangeToken, error) {
	return a.watcher.CreateFileChangeToken(filter)
}

// statFollow is a thin os.Stat wrapper that translate uses to tell
// directories from files.
func statFollow(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

var _ changefs.FileProvider = (*Adapter)(nil)
