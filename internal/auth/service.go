package auth

import (
	"context"
	"errors"
	"time"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/lockout"
	"urban-mobility/pkg/crypto"
	"urban-mobility/pkg/logger"
)

// Credential is the stored login material for one staff account.
type Credential struct {
	ID           string
	Username     string
	Role         string
	PasswordHash string
}

// Directory resolves stored credentials. Implemented by the user module.
type Directory interface {
	LookupByUsername(ctx context.Context, username string) (Credential, error)
	LookupByID(ctx context.Context, id string) (Credential, error)
}

// ErrUnknownUser is returned by Directory implementations for a missing
// account. The login flow collapses it into ErrInvalidCredentials so callers
// cannot probe which usernames exist.
var ErrUnknownUser = errors.New("auth: unknown user")

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLockedOut          = errors.New("auth: account locked")
)

// Service is the login decision point. Credential storage and token
// mechanics live elsewhere; this ties directory, hash verification, lockout
// and auditing together.
type Service struct {
	dir    Directory
	tokens *Manager
	locks  *lockout.Service
	rec    audit.Recorder
	clock  func() time.Time

	// onFailure is called once per failed attempt (metrics).
	onFailure func()
}

type ServiceOption func(*Service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

func WithFailureHook(fn func()) ServiceOption {
	return func(s *Service) { s.onFailure = fn }
}

func NewService(dir Directory, tokens *Manager, locks *lockout.Service, rec audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if dir == nil || tokens == nil || locks == nil || rec == nil {
		return nil, errors.New("auth: directory, token manager, lockout and audit are required")
	}
	s := &Service{dir: dir, tokens: tokens, locks: locks, rec: rec, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login verifies a username/password pair. The username has passed the
// validator before this point; the password is compared against the stored
// hash and never reaches a statement, so it is deliberately not
// pattern-checked here.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	allowed, err := s.locks.Allowed(ctx, username)
	if err != nil {
		// Lockout bookkeeping must not take logins down with it.
		logger.From(ctx).Error("lockout check failed", "err", err)
	}
	if !allowed {
		return TokenPair{}, ErrLockedOut
	}

	cred, err := s.dir.LookupByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			s.failed(ctx, username, "unknown_user")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	ok, err := crypto.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		logger.From(ctx).Error("stored hash unreadable", "user_id", cred.ID, "err", err)
		s.failed(ctx, username, "bad_hash")
		return TokenPair{}, ErrInvalidCredentials
	}
	if !ok {
		s.failed(ctx, username, "wrong_password")
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.locks.Reset(ctx, username); err != nil {
		logger.From(ctx).Error("lockout reset failed", "err", err)
	}
	s.rec.Log(ctx, audit.Event{
		Actor:    cred.Username,
		Category: audit.CategoryAuth,
		Details:  map[string]string{"event": "login_success"},
	})

	return s.tokens.IssuePair(s.clock(), cred.ID, cred.Username, cred.Role)
}

// Refresh exchanges a valid refresh token for a new pair. The role is
// re-read from the directory, not trusted from the old token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh, s.clock())
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	cred, err := s.dir.LookupByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	return s.tokens.IssuePair(s.clock(), cred.ID, cred.Username, cred.Role)
}

func (s *Service) failed(ctx context.Context, username, reason string) {
	if s.onFailure != nil {
		s.onFailure()
	}
	s.rec.Log(ctx, audit.Event{
		Actor:    username,
		Category: audit.CategoryAuth,
		Details: map[string]string{
			"event":  "login_failed",
			"reason": reason,
		},
		Suspicious: true,
	})
	if _, err := s.locks.RecordFailure(ctx, username); err != nil {
		logger.From(ctx).Error("lockout record failed", "err", err)
	}
}
