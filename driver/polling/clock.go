// Package polling implements changefs.FileProvider-adjacent change tokens
// for backends without native file-system events: a timer periodically
// re-stats the watched files and fires tokens whose last-write time, or
// whose matched file set, changed.
package polling

import "time"

// Clock abstracts wall-clock access so tests can control time without
// sleeping. Production code uses realClock; tests use a fakeClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// RealClock is the production Clock, backed by time.Now.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }
