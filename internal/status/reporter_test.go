package status

import "testing"

func TestAppendKeepsOrder(t *testing.T) {
	r := NewReporter()
	r.Append("first")
	r.Appendf("second %d", 2)

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Message != "first" || entries[1].Message != "second 2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].ID == "" || entries[0].CreatedAt.IsZero() {
		t.Fatalf("entry missing ID or timestamp: %+v", entries[0])
	}
}

func TestSubscribeReceivesNewEntries(t *testing.T) {
	r := NewReporter()
	ch, cancel := r.Subscribe()
	defer cancel()

	r.Append("hello")
	got := <-ch
	if got.Message != "hello" {
		t.Fatalf("Message = %q, want %q", got.Message, "hello")
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	r := NewReporter()
	ch, cancel := r.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}

	// Appending after cancel must not panic.
	r.Append("late")
}
