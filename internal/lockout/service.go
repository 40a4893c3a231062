package lockout

import (
	"context"
	"errors"
	"time"

	"urban-mobility/internal/audit"
)

// Store keeps failure counters and lock flags. The redis implementation is
// the production one; counters carry TTLs so a crashed process never leaves
// a permanent lock.
type Store interface {
	IncrFailures(ctx context.Context, key string, window time.Duration) (int64, error)
	ClearFailures(ctx context.Context, key string) error
	SetLock(ctx context.Context, key string, ttl time.Duration) error
	Locked(ctx context.Context, key string) (bool, error)
}

// Service tracks failed logins per username and locks the account out after
// a configured number of failures inside the window.
//
// Failure policy: if the store is unreachable the login flow proceeds
// (availability over lockout bookkeeping); the store error is returned so
// the caller can log it operationally.
type Service struct {
	store       Store
	maxFailures int
	window      time.Duration
	cooldown    time.Duration

	rec audit.Recorder

	// onLockout is called once per attempt rejected while locked (metrics).
	onLockout func()
}

type Option func(*Service)

func WithAuditRecorder(rec audit.Recorder) Option {
	return func(s *Service) { s.rec = rec }
}

func WithLockoutHook(fn func()) Option {
	return func(s *Service) { s.onLockout = fn }
}

func New(store Store, maxFailures int, window, cooldown time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout: store is required")
	}
	if maxFailures <= 0 || window <= 0 || cooldown <= 0 {
		return nil, errors.New("lockout: policy values must be positive")
	}
	s := &Service{store: store, maxFailures: maxFailures, window: window, cooldown: cooldown}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allowed reports whether username may attempt a login right now.
func (s *Service) Allowed(ctx context.Context, username string) (bool, error) {
	locked, err := s.store.Locked(ctx, lockKey(username))
	if err != nil {
		return true, err
	}
	if locked {
		if s.onLockout != nil {
			s.onLockout()
		}
		if s.rec != nil {
			s.rec.Log(ctx, audit.Event{
				Actor:    username,
				Category: audit.CategoryAuth,
				Details: map[string]string{
					"event": "login_attempt_while_locked",
				},
				Suspicious: true,
			})
		}
		return false, nil
	}
	return true, nil
}

// RecordFailure registers one failed attempt and reports whether this
// failure tripped the lock.
func (s *Service) RecordFailure(ctx context.Context, username string) (bool, error) {
	count, err := s.store.IncrFailures(ctx, failureKey(username), s.window)
	if err != nil {
		return false, err
	}
	if count < int64(s.maxFailures) {
		return false, nil
	}
	if err := s.store.SetLock(ctx, lockKey(username), s.cooldown); err != nil {
		return false, err
	}
	if s.rec != nil {
		s.rec.Log(ctx, audit.Event{
			Actor:    username,
			Category: audit.CategoryAuth,
			Details: map[string]string{
				"event": "account_locked",
			},
			Suspicious: true,
		})
	}
	return true, nil
}

// Reset clears failure state after a successful login.
func (s *Service) Reset(ctx context.Context, username string) error {
	return s.store.ClearFailures(ctx, failureKey(username))
}

func failureKey(username string) string { return "lockout:fail:" + username }
func lockKey(username string) string    { return "lockout:lock:" + username }
