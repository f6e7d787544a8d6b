package changefs

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNeverChangeToken(t *testing.T) {
	var tok NeverChangeToken
	if tok.HasChanged() {
		t.Fatal("NeverChangeToken.HasChanged() = true, want false")
	}
	if tok.ActiveChangeCallbacks() {
		t.Fatal("NeverChangeToken.ActiveChangeCallbacks() = true, want false")
	}

	fired := false
	unregister := tok.RegisterChangeCallback(func() { fired = true })
	unregister()
	if fired {
		t.Fatal("NeverChangeToken fired a callback it should never invoke")
	}
}

func TestAlreadyChangedToken(t *testing.T) {
	var tok AlreadyChangedToken
	if !tok.HasChanged() {
		t.Fatal("AlreadyChangedToken.HasChanged() = false, want true")
	}

	var fired bool
	tok.RegisterChangeCallback(func() { fired = true })
	if !fired {
		t.Fatal("AlreadyChangedToken did not fire callback synchronously on registration")
	}
}

func TestOnChange(t *testing.T) {
	source := NewCancellationSource()
	produced := 0

	var mu sync.Mutex
	fires := 0

	cancel := OnChange(func() (ChangeToken, error) {
		produced++
		if produced == 1 {
			return NewCancellationChangeToken(source), nil
		}
		// Later tokens never fire, so changeAction runs only for source.
		return NewCancellationChangeToken(NewCancellationSource()), nil
	}, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	})
	defer cancel()

	source.Cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := fires
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if fires != 1 {
		t.Fatalf("changeAction fired %d times, want 1", fires)
	}
}

func TestOnChangeStopsOnProducerError(t *testing.T) {
	calls := 0
	cancel := OnChange(func() (ChangeToken, error) {
		calls++
		return nil, errors.New("no more tokens")
	}, func() {})
	defer cancel()

	time.Sleep(10 * time.Millisecond)
	if calls != 1 {
		t.Fatalf("tokenProducer called %d times, want 1 (OnChange stops after a producer error)", calls)
	}
}
