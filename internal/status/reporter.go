package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one timestamped line in the session status log.
type Entry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Reporter collects an append-only ordered status log for the lifetime of
// the process and fans entries out to subscribers as they are appended.
type Reporter struct {
	mu      sync.Mutex
	entries []Entry
	subs    map[string]chan Entry
}

func NewReporter() *Reporter {
	return &Reporter{subs: make(map[string]chan Entry)}
}

// Append records a new entry and notifies subscribers. Slow subscribers
// drop entries rather than blocking the workflow.
func (r *Reporter) Append(message string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return e
}

// Appendf is Append with fmt formatting.
func (r *Reporter) Appendf(format string, args ...any) Entry {
	return r.Append(fmt.Sprintf(format, args...))
}

// Entries returns a snapshot of the log in append order.
func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Subscribe registers a listener for future entries. The returned cancel
// func must be called to release the subscription.
func (r *Reporter) Subscribe() (<-chan Entry, func()) {
	id := uuid.NewString()
	ch := make(chan Entry, 64)

	r.mu.Lock()
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}
