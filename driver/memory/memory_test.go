package memory

import (
	"context"
	"testing"
	"time"

	"github.com/watchkit/changefs"
)

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

func TestAdapterPutAndGetFileInfo(t *testing.T) {
	a := New()
	a.Put("config.json", []byte("hello"))

	info, err := a.GetFileInfo(context.Background(), "config.json")
	if err != nil {
		t.Fatalf("GetFileInfo() error = %v", err)
	}
	if !info.Exists || info.Size != 5 {
		t.Fatalf("GetFileInfo() = %+v, want a 5-byte existing file", info)
	}
}

func TestAdapterGetFileInfoMissing(t *testing.T) {
	a := New()
	info, err := a.GetFileInfo(context.Background(), "missing.json")
	if err != nil {
		t.Fatalf("GetFileInfo() error = %v", err)
	}
	if info.Exists {
		t.Fatal("GetFileInfo() reported Exists=true for a missing path")
	}
}

func TestAdapterDeleteRemovesFile(t *testing.T) {
	a := New()
	a.Put("config.json", []byte("hello"))
	a.Delete("config.json")

	info, _ := a.GetFileInfo(context.Background(), "config.json")
	if info.Exists {
		t.Fatal("file still exists after Delete")
	}
}

func TestAdapterGetDirectoryContents(t *testing.T) {
	a := New()
	a.Put("sub/a.txt", []byte("a"))
	a.Put("sub/b.txt", []byte("b"))
	a.Put("top.txt", []byte("t"))

	contents, err := a.GetDirectoryContents(context.Background(), "")
	if err != nil {
		t.Fatalf("GetDirectoryContents() error = %v", err)
	}
	if !contents.Exists || len(contents.Entries) != 2 {
		t.Fatalf("GetDirectoryContents('') = %+v, want 2 entries (sub, top.txt)", contents)
	}

	sub, err := a.GetDirectoryContents(context.Background(), "sub")
	if err != nil {
		t.Fatalf("GetDirectoryContents(sub) error = %v", err)
	}
	if !sub.Exists || len(sub.Entries) != 2 {
		t.Fatalf("GetDirectoryContents(sub) = %+v, want 2 entries", sub)
	}
}

func TestAdapterWatchFiresOnMatchingPut(t *testing.T) {
	a := New()
	token, err := a.Watch(context.Background(), "*.json")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	a.Put("config.json", []byte("x"))
	waitFor(t, token.HasChanged)
}

func TestAdapterWatchDoesNotFireOnNonMatchingPut(t *testing.T) {
	a := New()
	token, err := a.Watch(context.Background(), "*.json")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	a.Put("config.txt", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	if token.HasChanged() {
		t.Fatal("non-matching Put fired the watch token")
	}
}

func TestAdapterWatchFiresOnDelete(t *testing.T) {
	a := New()
	a.Put("config.json", []byte("x"))

	token, err := a.Watch(context.Background(), "config.json")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	a.Delete("config.json")
	waitFor(t, token.HasChanged)
}

func TestAdapterWatchSharesIdenticalFilter(t *testing.T) {
	a := New()

	t1, err := a.Watch(context.Background(), "*.json")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	t2, err := a.Watch(context.Background(), "*.json")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if t1 != t2 {
		t.Fatal("identical filters did not share a token")
	}
}

func TestAdapterWatchInvalidPatternIsPathError(t *testing.T) {
	a := New()
	_, err := a.Watch(context.Background(), "[")
	if err == nil {
		t.Fatal("Watch() error = nil, want an error for an invalid glob")
	}
	if !changefs.IsCode(err, changefs.ErrCodeInvalidInput) {
		t.Fatalf("Watch() error = %v, want ErrCodeInvalidInput", err)
	}
}
