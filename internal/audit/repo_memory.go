package audit

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event

	// FailNext makes the next n Append calls fail, to exercise the
	// fallback path in Service.
	FailNext int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

type appendError struct{}

func (appendError) Error() string { return "audit: sink unavailable" }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNext > 0 {
		r.FailNext--
		return appendError{}
	}
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) ListUnreviewedSuspicious(ctx context.Context) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Suspicious && !e.Reviewed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkReviewed(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range r.events {
		if _, ok := want[r.events[i].ID]; ok {
			r.events[i].Reviewed = true
		}
	}
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByCategory filters recorded events; convenience for test assertions.
func (r *MemoryRepo) ByCategory(c Category) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}
