package changefs

import "sync"

// CancellationSource is a one-shot trigger owning a set of registered
// callbacks. Cancel atomically flips the source to fired and drains the
// callback set, invoking each exactly once. This is the backing primitive
// behind every watcher-owned token in this package: PhysicalFilesWatcher and
// PollingFileWatcher each create one CancellationSource per registered
// filter and cancel it when the filter's event fires.
type CancellationSource struct {
	mu        sync.Mutex
	cancelled bool
	callbacks []func()
}

// NewCancellationSource creates a source that has not fired yet.
func NewCancellationSource() *CancellationSource {
	return &CancellationSource{}
}

// IsCancelled reports whether Cancel has already run.
func (s *CancellationSource) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Register adds callback to the set that fires on Cancel. If the source has
// already been cancelled, callback runs immediately (on the calling
// goroutine) and no registration is kept. The returned unregister function
// is idempotent.
func (s *CancellationSource) Register(callback func()) (unregister func()) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		callback()
		return func() {}
	}

	s.callbacks = append(s.callbacks, callback)
	index := len(s.callbacks) - 1
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if index < len(s.callbacks) {
				s.callbacks[index] = nil
			}
		})
	}
}

// Cancel fires the source exactly once. Registered callbacks are copied out
// under the lock and then invoked each on its own goroutine, so a slow or
// reentrant callback (one that calls back into Register or Watch) can never
// block delivery to the other callbacks, and the watcher's internal lock is
// never held while user code runs.
func (s *CancellationSource) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.callbacks = nil
	s.mu.Unlock()

	for _, cb := range callbacks {
		if cb == nil {
			continue
		}
		go cb()
	}
}

// CancellationChangeToken adapts a CancellationSource to the ChangeToken
// protocol: HasChanged mirrors IsCancelled, ActiveChangeCallbacks is always
// true (the source always supports callbacks), and RegisterChangeCallback
// delegates straight through.
type CancellationChangeToken struct {
	source *CancellationSource
}

// NewCancellationChangeToken adapts source to ChangeToken.
func NewCancellationChangeToken(source *CancellationSource) *CancellationChangeToken {
	return &CancellationChangeToken{source: source}
}

func (t *CancellationChangeToken) HasChanged() bool           { return t.source.IsCancelled() }
func (t *CancellationChangeToken) ActiveChangeCallbacks() bool { return true }
func (t *CancellationChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.source.Register(callback)
}

var _ ChangeToken = (*CancellationChangeToken)(nil)
