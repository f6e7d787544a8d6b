package polling

import (
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/watchkit/changefs"
)

// separator is the 2-byte delimiter interleaved between hashed fields, per
// spec.md §4.5.
var separator = [2]byte{0x00, 0x00}

// PollingWildCardChangeToken evaluates a glob under root on every
// UpdateHasChanged call, comparing an order-independent hash of
// (path, last-write-UTC) pairs against the previous scan's hash. Callback
// delivery is backed by a CancellationSource, cancelled once by the
// watcher's tick when the change is first observed (spec.md §3, §4.6).
type PollingWildCardChangeToken struct {
	root  string
	glob  string
	clock Clock

	lastScanUTC  time.Time
	previousHash []byte // nil until the first scan has run
	hasChanged   bool

	backingSource *changefs.CancellationSource
	backingToken  *changefs.CancellationChangeToken
}

// NewPollingWildCardChangeToken constructs a token that will match glob
// against files under root, using clock for timestamps.
func NewPollingWildCardChangeToken(root, glob string, clock Clock) *PollingWildCardChangeToken {
	if clock == nil {
		clock = RealClock
	}
	source := changefs.NewCancellationSource()
	return &PollingWildCardChangeToken{
		root:          root,
		glob:          glob,
		clock:         clock,
		backingSource: source,
		backingToken:  changefs.NewCancellationChangeToken(source),
	}
}

// UpdateHasChanged enumerates the matching file set, hashes it, and compares
// against the prior scan. The very first scan only establishes the
// baseline and never reports a change (spec.md §4.5 "initial run rule").
func (t *PollingWildCardChangeToken) UpdateHasChanged() bool {
	if t.hasChanged {
		return true
	}

	entries := t.scan()

	h := sha256.New()
	changed := false

	for _, e := range entries {
		if e.modTime.After(t.lastScanUTC) {
			changed = true
		}
		writePathAndTime(h, e.relPath, e.modTime)
	}
	sum := h.Sum(nil)

	if t.previousHash != nil && !bytesEqual(sum, t.previousHash) {
		changed = true
	}

	first := t.previousHash == nil
	t.previousHash = sum
	t.lastScanUTC = t.clock.Now().UTC()

	if !first && changed {
		t.hasChanged = true
	}

	return t.hasChanged
}

type scanEntry struct {
	relPath string
	modTime time.Time
}

// scan enumerates files under root matching glob, sorted by path with a
// fixed case-insensitive ordinal collation.
func (t *PollingWildCardChangeToken) scan() []scanEntry {
	var entries []scanEntry

	matches, err := doublestar.Glob(os.DirFS(t.root), t.glob)
	if err != nil {
		return nil
	}

	for _, rel := range matches {
		info, err := os.Stat(filepath.Join(t.root, rel))
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, scanEntry{
			relPath: filepath.ToSlash(rel),
			modTime: info.ModTime().UTC(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].relPath) < strings.ToLower(entries[j].relPath)
	})

	return entries
}

// writePathAndTime feeds one (path, last-write-UTC-ticks) pair into h in
// the fixed encoding from spec.md §4.5: UTF-16-style 2-byte code units for
// the path, a 2-byte separator, the tick count, then another separator.
func writePathAndTime(h interface{ Write([]byte) (int, error) }, path string, modTime time.Time) {
	for _, r := range path {
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(r))
		h.Write(buf[:])
	}
	h.Write(separator[:])

	var ticks [8]byte
	binary.BigEndian.PutUint64(ticks[:], uint64(modTime.UnixNano()))
	h.Write(ticks[:])
	h.Write(separator[:])
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasChanged implements changefs.ChangeToken.
func (t *PollingWildCardChangeToken) HasChanged() bool { return t.hasChanged }

// ActiveChangeCallbacks implements changefs.ChangeToken, delegating to the
// backing CancellationSource so registered callbacks are actually invoked
// when the watcher tick cancels it.
func (t *PollingWildCardChangeToken) ActiveChangeCallbacks() bool {
	return t.backingToken.ActiveChangeCallbacks()
}

// RegisterChangeCallback implements changefs.ChangeToken by delegating to
// the backing CancellationChangeToken.
func (t *PollingWildCardChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.backingToken.RegisterChangeCallback(callback)
}

// cancel fires the backing source, invoking every registered callback
// exactly once. Called by PollingFileWatcher's tick when UpdateHasChanged
// first reports a change.
func (t *PollingWildCardChangeToken) cancel() {
	t.backingSource.Cancel()
}

var _ changefs.ChangeToken = (*PollingWildCardChangeToken)(nil)
