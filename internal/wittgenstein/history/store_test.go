package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AppendAndRecent(t *testing.T) {
	store := openTestStore(t)

	turns := []struct{ role, content string }{
		{"user", "what time is it"},
		{"assistant", "it is noon"},
		{"user", "thanks"},
	}
	for _, turn := range turns {
		if err := store.Append("sess-1", "user-a", turn.role, turn.content); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	// Another user's turns must not leak into the context
	if err := store.Append("sess-2", "user-b", "user", "unrelated"); err != nil {
		t.Fatal(err)
	}

	messages, err := store.Recent("user-a", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}

	if len(messages) != 3 {
		t.Fatalf("Recent() returned %d messages, want 3", len(messages))
	}
	// Chronological order, oldest first
	if messages[0].Content != "what time is it" || messages[2].Content != "thanks" {
		t.Errorf("Recent() order wrong: %+v", messages)
	}
	if messages[1].Role != "assistant" {
		t.Errorf("Recent()[1].Role = %q, want assistant", messages[1].Role)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 10; i++ {
		if err := store.Append("sess-1", "user-a", "user", "msg"); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := store.Recent("user-a", 4)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 4 {
		t.Errorf("Recent(4) returned %d messages", len(messages))
	}
}

func TestStore_RecentEmpty(t *testing.T) {
	store := openTestStore(t)

	messages, err := store.Recent("nobody", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Recent() = %v, want empty", messages)
	}
}

func TestStore_Prune(t *testing.T) {
	store := openTestStore(t)

	if err := store.Append("sess-1", "user-a", "user", "old enough"); err != nil {
		t.Fatal(err)
	}

	// Nothing is older than an hour yet
	n, err := store.Prune(time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Prune(1h) deleted %d rows, want 0", n)
	}

	// Everything is older than a negative cutoff in the future
	n, err = store.Prune(-time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune(-1h) deleted %d rows, want 1", n)
	}
}
