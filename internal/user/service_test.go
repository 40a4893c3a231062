package user

import (
	"context"
	"errors"
	"testing"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/store"
	"urban-mobility/internal/validation"
	"urban-mobility/pkg/crypto"
)

// These are unit tests for the authorize-then-validate front of the account
// operations. Statement behavior (inserts, row counts, conflict mapping)
// runs against Postgres in integration tests; everything before the gateway
// is testable without a database.

const testKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

type fixture struct {
	svc  *Service
	repo *audit.MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := audit.NewMemoryRepo()
	rec, err := audit.NewService(repo)
	if err != nil {
		t.Fatalf("audit.NewService: %v", err)
	}
	table, err := authz.NewTable(authz.DefaultRules())
	if err != nil {
		t.Fatalf("authz.NewTable: %v", err)
	}
	guard := authz.NewGuard(table, rec)
	check := validation.New(rec)
	gw := store.NewGateway(nil, rec)
	if err := gw.Register(Templates()...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	cipher, err := crypto.NewFieldCipher(testKeyHex)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	svc, err := NewService(guard, check, gw, cipher, rec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo}
}

func admin() authz.Principal {
	return authz.Principal{ID: "a1", Username: "adm1", Roles: []authz.Role{authz.RoleSystemAdmin}}
}

func engineer() authz.Principal {
	return authz.Principal{ID: "e1", Username: "eng1", Roles: []authz.Role{authz.RoleServiceEngineer}}
}

func TestTemplates_RegisterCleanly(t *testing.T) {
	rec, _ := audit.NewService(audit.NewMemoryRepo())
	gw := store.NewGateway(nil, rec)
	if err := gw.Register(Templates()...); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestCreateEngineer_DeniedForEngineer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateEngineer(context.Background(), engineer(), map[string]string{
		"username": "newuser1", "password": "Valid_pass1!", "first_name": "A", "last_name": "B",
	})
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
	denied := f.repo.ByCategory(audit.CategoryAccessDenied)
	if len(denied) != 1 || !denied[0].Suspicious {
		t.Fatalf("expected one suspicious access-denied event, got %+v", denied)
	}
	// Denied before validation: no validation or query events exist.
	if n := len(f.repo.ByCategory(audit.CategoryValidationFailure)); n != 0 {
		t.Fatalf("validation ran after denial: %d events", n)
	}
	if n := len(f.repo.ByCategory(audit.CategoryQueryExecuted)); n != 0 {
		t.Fatalf("statement ran after denial: %d events", n)
	}
}

func TestCreateAdmin_DeniedForSystemAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateAdmin(context.Background(), admin(), map[string]string{
		"username": "newadmin1", "password": "Valid_pass1!", "first_name": "A", "last_name": "B",
	})
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
}

func TestCreateEngineer_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		raw    map[string]string
		field  string
		reason validation.Reason
	}{
		{
			name:   "forbidden username",
			raw:    map[string]string{"username": "admin", "password": "Valid_pass1!", "first_name": "A", "last_name": "B"},
			field:  "username",
			reason: validation.ReasonForbiddenValue,
		},
		{
			name:   "weak password",
			raw:    map[string]string{"username": "newuser1", "password": "password", "first_name": "A", "last_name": "B"},
			field:  "password",
			reason: validation.ReasonWeakPassword,
		},
		{
			name:   "missing last name",
			raw:    map[string]string{"username": "newuser1", "password": "Valid_pass1!", "first_name": "A"},
			field:  "last_name",
			reason: validation.ReasonRequiredMissing,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateEngineer(context.Background(), admin(), tc.raw)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *validation.Error", err)
			}
			if verr.Field != tc.field || verr.Reason != tc.reason {
				t.Fatalf("got %s/%s, want %s/%s", verr.Field, verr.Reason, tc.field, tc.reason)
			}
		})
	}
	// Rejections never reach the gateway.
	if n := len(f.repo.ByCategory(audit.CategoryQueryExecuted)); n != 0 {
		t.Fatalf("statement ran after rejection: %d events", n)
	}
}

func TestUpdate_RejectsMalformedID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), admin(), "1 OR 1=1", map[string]string{"first_name": "A"})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Field != "id" {
		t.Fatalf("field = %q, want id", verr.Field)
	}
}

func TestChangeOwnPassword_RejectsWeakReplacement(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ChangeOwnPassword(context.Background(), engineer(), "old-password", map[string]string{
		"password": "short",
	})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
}

func TestList_RejectsUnknownSortKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), admin(), "username; DROP TABLE users")
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Reason != validation.ReasonNotInSet {
		t.Fatalf("reason = %s, want NOT_IN_SET", verr.Reason)
	}
}

func TestManageable(t *testing.T) {
	superAdm := authz.Principal{Roles: []authz.Role{authz.RoleSuperAdmin}}
	sysAdm := authz.Principal{Roles: []authz.Role{authz.RoleSystemAdmin}}
	eng := authz.Principal{Roles: []authz.Role{authz.RoleServiceEngineer}}

	cases := []struct {
		p      authz.Principal
		target authz.Role
		want   bool
	}{
		{superAdm, authz.RoleServiceEngineer, true},
		{superAdm, authz.RoleSystemAdmin, true},
		{superAdm, authz.RoleSuperAdmin, false},
		{sysAdm, authz.RoleServiceEngineer, true},
		{sysAdm, authz.RoleSystemAdmin, false},
		{sysAdm, authz.RoleSuperAdmin, false},
		{eng, authz.RoleServiceEngineer, false},
	}
	for _, tc := range cases {
		if got := manageable(tc.p, tc.target); got != tc.want {
			t.Errorf("manageable(%v, %s) = %v, want %v", tc.p.Roles, tc.target, got, tc.want)
		}
	}
}

func TestEnsureBootstrapAdmin_NoopWithoutConfig(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.EnsureBootstrapAdmin(context.Background(), "", ""); err != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", err)
	}
}
