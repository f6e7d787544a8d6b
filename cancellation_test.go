package changefs

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCancellationSourceFiresOnce(t *testing.T) {
	s := NewCancellationSource()

	var calls int32
	s.Register(func() { atomic.AddInt32(&calls, 1) })

	s.Cancel()
	s.Cancel() // second call must be a no-op

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
}

func TestCancellationSourceRegisterAfterCancelFiresImmediately(t *testing.T) {
	s := NewCancellationSource()
	s.Cancel()

	fired := false
	s.Register(func() { fired = true })
	if !fired {
		t.Fatal("Register after Cancel did not fire synchronously")
	}
}

func TestCancellationSourceUnregisterIsIdempotent(t *testing.T) {
	s := NewCancellationSource()

	var calls int32
	unregister := s.Register(func() { atomic.AddInt32(&calls, 1) })
	unregister()
	unregister() // must not panic or double-remove

	s.Cancel()
	time.Sleep(10 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("unregistered callback fired %d times, want 0", calls)
	}
}

func TestCancellationSourceManyCallbacksAllFire(t *testing.T) {
	s := NewCancellationSource()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.Register(func() { wg.Done() })
	}

	s.Cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all callbacks fired within timeout")
	}
}

func TestCancellationChangeToken(t *testing.T) {
	s := NewCancellationSource()
	tok := NewCancellationChangeToken(s)

	if tok.HasChanged() {
		t.Fatal("HasChanged true before Cancel")
	}
	if !tok.ActiveChangeCallbacks() {
		t.Fatal("ActiveChangeCallbacks should always be true for CancellationChangeToken")
	}

	var fired int32
	tok.RegisterChangeCallback(func() { atomic.AddInt32(&fired, 1) })

	s.Cancel()
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })

	if !tok.HasChanged() {
		t.Fatal("HasChanged false after Cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition did not become true within timeout")
	}
}
