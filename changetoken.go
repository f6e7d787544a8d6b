package changefs

import "context"

// ChangeToken is a one-shot observable signal: "something I was watching is
// now different". It follows the same shape as ASP.NET Core's IChangeToken:
// a consumer may either poll HasChanged or register a callback, and check
// ActiveChangeCallbacks to know which is cheaper for a given implementation.
//
// A token is single-use: once HasChanged returns true it never reverts, and
// callers are expected to discard the token and obtain a fresh one (Watch
// again) to observe further changes.
type ChangeToken interface {
	// HasChanged reports whether a change has occurred. Once true it stays
	// true. Must be cheap - implementations that need to do work to know
	// whether they have changed (the polling tokens) only do that work on
	// their own tick, never from this accessor.
	HasChanged() bool

	// ActiveChangeCallbacks reports whether RegisterChangeCallback will
	// ever fire a callback. A token that always returns false here is a
	// no-op token and callers are entitled to skip registration entirely.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers callback to run once, the first
	// time the token fires. If the token has already fired, callback runs
	// synchronously before RegisterChangeCallback returns. The returned
	// function releases the registration; it is idempotent and safe to
	// call from any goroutine, any number of times.
	RegisterChangeCallback(callback func()) (unregister func())
}

// NeverChangeToken never fires and has no active callbacks. It is the
// "no-op token" of the spec - returned when a filter can't be satisfied by
// any real watcher (e.g. it escapes the watch root) or when nothing needs
// watching at all.
type NeverChangeToken struct{}

func (NeverChangeToken) HasChanged() bool           { return false }
func (NeverChangeToken) ActiveChangeCallbacks() bool { return false }
func (NeverChangeToken) RegisterChangeCallback(func()) (unregister func()) {
	return func() {}
}

// AlreadyChangedToken is permanently in the fired state. Useful for
// signaling up front that a filter cannot be watched (so "assume it may
// have already changed" is the safe default) without silently going quiet
// like NeverChangeToken would.
type AlreadyChangedToken struct{}

func (AlreadyChangedToken) HasChanged() bool           { return true }
func (AlreadyChangedToken) ActiveChangeCallbacks() bool { return false }
func (AlreadyChangedToken) RegisterChangeCallback(callback func()) (unregister func()) {
	callback()
	return func() {}
}

var (
	_ ChangeToken = NeverChangeToken{}
	_ ChangeToken = AlreadyChangedToken{}
)

// OnChange watches continuously by re-invoking tokenProducer every time the
// previously produced token fires, for as long as the returned cancel
// function hasn't been called. This is the standard consumer-facing helper
// for a single-use token protocol - e.g. "reload config on every change,
// forever" - and every ASP.NET-style IChangeToken port carries one.
func OnChange(tokenProducer func() (ChangeToken, error), changeAction func()) (cancel func()) {
	ctx, cancelFunc := context.WithCancel(context.Background())

	go func() {
		for {
			token, err := tokenProducer()
			if err != nil {
				return
			}

			done := make(chan struct{})
			unregister := token.RegisterChangeCallback(func() {
				close(done)
			})

			select {
			case <-ctx.Done():
				unregister()
				return
			case <-done:
				unregister()
				changeAction()
				// loop around: obtain a fresh token
			}
		}
	}()

	return cancelFunc
}
