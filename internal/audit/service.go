package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. MarkReviewed flips a flag and is the only
// sanctioned mutation; there is no update or delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListUnreviewedSuspicious(ctx context.Context) ([]Event, error)
	MarkReviewed(ctx context.Context, ids []string) error
}

// Recorder is the write-side interface other components depend on.
// There is exactly one implementation in the process; no component formats
// or persists audit records on its own.
type Recorder interface {
	Log(ctx context.Context, e Event)
}

// Service is the single entry point for recording security-relevant events.
//
// Log is synchronous and never returns an error: an unavailable sink must not
// fail the operation being audited. Failed writes land in a bounded in-memory
// fallback buffer that is drained on the next successful append, and the
// degradation itself is recorded once the sink recovers.
type Service struct {
	repo   Repository
	clock  func() time.Time
	logger *slog.Logger

	// onFallback is called once per event diverted to the buffer (metrics).
	onFallback func()

	mu       sync.Mutex
	fallback []Event
	degraded bool
	dropped  int
}

const fallbackCapacity = 1024

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithFallbackHook(fn func()) Option {
	return func(s *Service) { s.onFallback = fn }
}

func NewService(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("audit: repository is required")
	}
	s := &Service{
		repo:   repo,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Log records one event. The caller observes completion: when Log returns,
// the event is either durably appended or captured in the fallback buffer.
// Events from one request are serialized in the order the request produced
// them; the mutex also prevents interleaving across concurrent requests.
func (s *Service) Log(ctx context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e = s.stamp(e)

	if s.degraded {
		// Try to recover before appending, so ordering is preserved.
		if !s.drainLocked(ctx) {
			s.bufferLocked(e)
			return
		}
	}

	if err := s.repo.Append(ctx, e); err != nil {
		s.logger.Error("audit append failed, buffering", "err", err, "category", string(e.Category))
		s.degraded = true
		s.bufferLocked(e)
	}
}

func (s *Service) stamp(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Actor == "" {
		e.Actor = AnonymousActor
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return e
}

// bufferLocked stores an event in the fallback buffer, dropping the oldest
// entry when full. Must hold s.mu.
func (s *Service) bufferLocked(e Event) {
	if s.onFallback != nil {
		s.onFallback()
	}
	if len(s.fallback) >= fallbackCapacity {
		s.fallback = s.fallback[1:]
		s.dropped++
	}
	s.fallback = append(s.fallback, e)
}

// drainLocked attempts to flush the fallback buffer. Returns true when the
// buffer is empty and the sink is writable again. Must hold s.mu.
func (s *Service) drainLocked(ctx context.Context) bool {
	for len(s.fallback) > 0 {
		if err := s.repo.Append(ctx, s.fallback[0]); err != nil {
			return false
		}
		s.fallback = s.fallback[1:]
	}

	// Sink is back: record the degradation episode itself.
	recovery := s.stamp(Event{
		Category: CategoryError,
		Actor:    AnonymousActor,
		Details: map[string]string{
			"event": "audit_sink_recovered",
		},
	})
	if s.dropped > 0 {
		recovery.Details["dropped"] = strconv.Itoa(s.dropped)
		recovery.Suspicious = true
	}
	if err := s.repo.Append(ctx, recovery); err != nil {
		return false
	}
	s.degraded = false
	s.dropped = 0
	return true
}

// Pending reports the number of buffered events awaiting a writable sink.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fallback)
}

// UnreviewedSuspicious returns suspicious entries awaiting admin review.
func (s *Service) UnreviewedSuspicious(ctx context.Context) ([]Event, error) {
	return s.repo.ListUnreviewedSuspicious(ctx)
}

// MarkReviewed flags suspicious entries as seen. The ids come from the
// review API, so each must parse as an identifier this process could have
// issued before any of them reach the repository.
func (s *Service) MarkReviewed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return fmt.Errorf("audit: malformed event id")
		}
		normalized = append(normalized, parsed.String())
	}
	return s.repo.MarkReviewed(ctx, normalized)
}
