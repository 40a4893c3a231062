package auth

import (
	"context"
	"testing"
	"time"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/lockout"
	"urban-mobility/pkg/crypto"
)

type fakeDirectory struct {
	byName map[string]Credential
	byID   map[string]Credential
}

func (d *fakeDirectory) LookupByUsername(_ context.Context, username string) (Credential, error) {
	c, ok := d.byName[username]
	if !ok {
		return Credential{}, ErrUnknownUser
	}
	return c, nil
}

func (d *fakeDirectory) LookupByID(_ context.Context, id string) (Credential, error) {
	c, ok := d.byID[id]
	if !ok {
		return Credential{}, ErrUnknownUser
	}
	return c, nil
}

type loginFixture struct {
	svc   *Service
	audit *audit.MemoryRepo
	now   time.Time
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := audit.NewMemoryRepo()
	rec, err := audit.NewService(repo)
	if err != nil {
		t.Fatalf("audit.NewService: %v", err)
	}
	locks, err := lockout.New(lockout.NewMemoryStore(clock), 3, 10*time.Minute, 30*time.Minute,
		lockout.WithAuditRecorder(rec))
	if err != nil {
		t.Fatalf("lockout.New: %v", err)
	}

	hash, err := crypto.HashPassword("Correct_horse1!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	dir := &fakeDirectory{
		byName: map[string]Credential{
			"adm1": {ID: "u1", Username: "adm1", Role: "system_admin", PasswordHash: hash},
		},
		byID: map[string]Credential{
			"u1": {ID: "u1", Username: "adm1", Role: "system_admin", PasswordHash: hash},
		},
	}

	svc, err := NewService(dir, testManager(t), locks, rec, WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &loginFixture{svc: svc, audit: repo, now: now}
}

func (f *loginFixture) authEvents() []audit.Event {
	return f.audit.ByCategory(audit.CategoryAuth)
}

func TestLogin_Success(t *testing.T) {
	f := newLoginFixture(t)

	pair, err := f.svc.Login(context.Background(), "adm1", "Correct_horse1!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := f.svc.tokens.Verify(pair.AccessToken, TokenTypeAccess, f.now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != "system_admin" {
		t.Fatalf("role = %q, want system_admin", claims.Role)
	}

	events := f.authEvents()
	if len(events) != 1 {
		t.Fatalf("got %d auth events, want 1", len(events))
	}
	if events[0].Details["event"] != "login_success" || events[0].Suspicious {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newLoginFixture(t)

	if _, err := f.svc.Login(context.Background(), "adm1", "nope"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	events := f.authEvents()
	if len(events) != 1 {
		t.Fatalf("got %d auth events, want 1", len(events))
	}
	e := events[0]
	if !e.Suspicious || e.Details["event"] != "login_failed" || e.Details["reason"] != "wrong_password" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestLogin_UnknownUserIndistinguishable(t *testing.T) {
	f := newLoginFixture(t)

	// Unknown accounts surface the same error as a wrong password.
	if _, err := f.svc.Login(context.Background(), "ghost", "anything"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	events := f.authEvents()
	if len(events) != 1 || events[0].Details["reason"] != "unknown_user" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(ctx, "adm1", "nope"); err != ErrInvalidCredentials {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	// Even the right password is refused while locked.
	if _, err := f.svc.Login(ctx, "adm1", "Correct_horse1!"); err != ErrLockedOut {
		t.Fatalf("err = %v, want ErrLockedOut", err)
	}
}

func TestLogin_FailureHookCounts(t *testing.T) {
	f := newLoginFixture(t)
	var failures int
	WithFailureHook(func() { failures++ })(f.svc)

	f.svc.Login(context.Background(), "adm1", "nope")
	f.svc.Login(context.Background(), "ghost", "nope")
	if failures != 2 {
		t.Fatalf("failures = %d, want 2", failures)
	}
}

func TestRefresh_ReReadsRole(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "adm1", "Correct_horse1!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Demote the account between issue and refresh.
	dir := f.svc.dir.(*fakeDirectory)
	cred := dir.byID["u1"]
	cred.Role = "service_engineer"
	dir.byID["u1"] = cred

	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, err := f.svc.tokens.Verify(next.AccessToken, TokenTypeAccess, f.now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != "service_engineer" {
		t.Fatalf("role = %q, want the directory's current role", claims.Role)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newLoginFixture(t)
	pair, err := f.svc.Login(context.Background(), "adm1", "Correct_horse1!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), pair.AccessToken); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}
