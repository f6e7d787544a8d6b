package polling

import (
	"os"
	"time"

	"github.com/watchkit/changefs"
)

// neverModified is the sentinel last-write-time used when the watched file
// doesn't exist at construction time - any later appearance of the file
// counts as a change.
var neverModified = time.Time{}

// PollingFileChangeToken snapshots a single file's last-write-UTC at
// construction and flips HasChanged the first time UpdateHasChanged
// observes a different value. It never re-stats on its own: a
// PollingFileWatcher drives the scanning. Callback delivery is backed by a
// CancellationSource, cancelled once by the watcher's tick when the change
// is first observed (spec.md §3, §4.6).
type PollingFileChangeToken struct {
	path         string
	lastWriteUTC time.Time
	hasChanged   bool

	backingSource *changefs.CancellationSource
	backingToken  *changefs.CancellationChangeToken
}

// NewPollingFileChangeToken stats path once to establish the baseline.
func NewPollingFileChangeToken(path string) *PollingFileChangeToken {
	source := changefs.NewCancellationSource()
	return &PollingFileChangeToken{
		path:          path,
		lastWriteUTC:  statModTime(path),
		backingSource: source,
		backingToken:  changefs.NewCancellationChangeToken(source),
	}
}

// UpdateHasChanged re-stats the file and, if its last-write-UTC differs
// from the snapshot, latches HasChanged true. Returns the token's HasChanged
// value after the refresh. It does not cancel the backing source itself -
// the watcher tick does that once it removes the token from its map.
func (t *PollingFileChangeToken) UpdateHasChanged() bool {
	if t.hasChanged {
		return true
	}
	current := statModTime(t.path)
	if !current.Equal(t.lastWriteUTC) {
		t.hasChanged = true
	}
	return t.hasChanged
}

// HasChanged implements changefs.ChangeToken. It does not re-scan; only
// UpdateHasChanged does.
func (t *PollingFileChangeToken) HasChanged() bool { return t.hasChanged }

// ActiveChangeCallbacks implements changefs.ChangeToken, delegating to the
// backing CancellationSource so registered callbacks are actually invoked
// when the watcher tick cancels it.
func (t *PollingFileChangeToken) ActiveChangeCallbacks() bool {
	return t.backingToken.ActiveChangeCallbacks()
}

// RegisterChangeCallback implements changefs.ChangeToken by delegating to
// the backing CancellationChangeToken.
func (t *PollingFileChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.backingToken.RegisterChangeCallback(callback)
}

// cancel fires the backing source, invoking every registered callback
// exactly once. Called by PollingFileWatcher's tick when UpdateHasChanged
// first reports a change.
func (t *PollingFileChangeToken) cancel() {
	t.backingSource.Cancel()
}

var _ changefs.ChangeToken = (*PollingFileChangeToken)(nil)

func statModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return neverModified
	}
	return info.ModTime().UTC()
}
