package local

import (
	"github.com/fsnotify/fsnotify"
)

// fsEvent is the internal, backend-agnostic shape physical.go reacts to.
// IsDir is best-effort: for a Remove/Rename the path is usually already
// gone, so it is left false and the caller falls back to matching whatever
// registry entries still reference the path.
type fsEvent struct {
	Name     string
	IsCreate bool
	IsWrite  bool
	IsRemove bool
	IsRename bool
	IsDir    bool
}

// fsWatcher is the minimal OS file-system watch capability physical.go
// needs - small enough to fake in tests without dragging in fsnotify.
type fsWatcher interface {
	Add(path string) error
	Close() error
	Events() <-chan fsEvent
	Errors() <-chan error
}

// fsnotifyWatcher adapts fsnotify.Watcher to fsWatcher.
type fsnotifyWatcher struct {
	watcher *fsnotify.Watcher
	events  chan fsEvent
	errors  chan error
}

func newFSWatcher() (fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fsnotifyWatcher{
		watcher: w,
		events:  make(chan fsEvent),
		errors:  make(chan error),
	}

	go fw.pump()

	return fw, nil
}

func (w *fsnotifyWatcher) pump() {
	defer close(w.events)
	defer close(w.errors)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.events <- translate(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.errors <- err
		}
	}
}

func translate(event fsnotify.Event) fsEvent {
	fe := fsEvent{
		Name:     event.Name,
		IsCreate: event.Has(fsnotify.Create),
		IsWrite:  event.Has(fsnotify.Write),
		IsRemove: event.Has(fsnotify.Remove),
		IsRename: event.Has(fsnotify.Rename),
	}
	if info, err := statFollow(event.Name); err == nil {
		fe.IsDir = info.IsDir()
	}
	return fe
}

func (w *fsnotifyWatcher) Add(path string) error {
	return w.watcher.Add(path)
}

func (w *fsnotifyWatcher) Close() error {
	return w.watcher.Close()
}

func (w *fsnotifyWatcher) Events() <-chan fsEvent {
	return w.events
}

func (w *fsnotifyWatcher) Errors() <-chan error {
	return w.errors
}
