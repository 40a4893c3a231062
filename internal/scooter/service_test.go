package scooter

import (
	"context"
	"errors"
	"testing"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/store"
	"urban-mobility/internal/validation"
)

// Unit tests for the authorize-then-validate front. Statement behavior runs
// against Postgres in integration tests.

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
	gw := store.NewGateway(nil, rec)
	if err := gw.Register(Templates()...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	svc, err := NewService(authz.NewGuard(table, rec), validation.New(rec), gw)
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

func validInput() map[string]string {
	return map[string]string{
		"brand":            "Segway",
		"model":            "Ninebot Max",
		"serial_number":    "SN12345678AB",
		"top_speed":        "25",
		"battery_capacity": "551",
		"state_of_charge":  "80",
		"min_soc":          "20",
		"max_soc":          "90",
		"latitude":         "51.92250",
		"longitude":        "4.47917",
	}
}

func TestCreate_DeniedForEngineer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), engineer(), validInput())
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
	denied := f.repo.ByCategory(audit.CategoryAccessDenied)
	if len(denied) != 1 || !denied[0].Suspicious {
		t.Fatalf("expected one suspicious access-denied event, got %+v", denied)
	}
}

func TestDelete_DeniedForEngineer(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Delete(context.Background(), engineer(), "7b3e0d2a-0000-4000-8000-9c0ffee00001")
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
}

func TestCreate_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		mutate func(map[string]string)
		field  string
		reason validation.Reason
	}{
		{
			name:   "serial too short",
			mutate: func(m map[string]string) { m["serial_number"] = "SN123" },
			field:  "serial_number",
			reason: validation.ReasonPatternMismatch,
		},
		{
			name:   "soc out of range",
			mutate: func(m map[string]string) { m["state_of_charge"] = "101" },
			field:  "state_of_charge",
			reason: validation.ReasonOutOfRange,
		},
		{
			name:   "coordinate precision",
			mutate: func(m map[string]string) { m["latitude"] = "51.92" },
			field:  "latitude",
			reason: validation.ReasonPatternMismatch,
		},
		{
			name:   "coordinate outside region",
			mutate: func(m map[string]string) { m["latitude"] = "48.85661" },
			field:  "latitude",
			reason: validation.ReasonOutOfRange,
		},
		{
			name:   "top speed not a number",
			mutate: func(m map[string]string) { m["top_speed"] = "fast" },
			field:  "top_speed",
			reason: validation.ReasonBadFormat,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validInput()
			tc.mutate(raw)
			_, err := f.svc.Create(context.Background(), admin(), raw)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *validation.Error", err)
			}
			if verr.Field != tc.field || verr.Reason != tc.reason {
				t.Fatalf("got %s/%s, want %s/%s", verr.Field, verr.Reason, tc.field, tc.reason)
			}
		})
	}
}

func TestCreate_RejectsInvertedSOCRange(t *testing.T) {
	f := newFixture(t)
	raw := validInput()
	raw["min_soc"] = "90"
	raw["max_soc"] = "20"

	_, err := f.svc.Create(context.Background(), admin(), raw)
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Field != "soc_range" || verr.Reason != validation.ReasonInconsistent {
		t.Fatalf("got %s/%s, want soc_range/INCONSISTENT", verr.Field, verr.Reason)
	}
}

func TestUpdateMaintenance_RejectsLoneCoordinate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateMaintenance(context.Background(), engineer(),
		"7b3e0d2a-0000-4000-8000-9c0ffee00001",
		map[string]string{"latitude": "51.92250"})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Field != "coordinate_pair" || verr.Reason != validation.ReasonInconsistent {
		t.Fatalf("got %s/%s, want coordinate_pair/INCONSISTENT", verr.Field, verr.Reason)
	}
}

func TestUpdateMaintenance_SchemaExcludesIdentityFields(t *testing.T) {
	f := newFixture(t)
	// The maintenance schema has no brand field, so an engineer smuggling
	// one in fails before anything else happens.
	_, err := f.svc.UpdateMaintenance(context.Background(), engineer(),
		"7b3e0d2a-0000-4000-8000-9c0ffee00001",
		map[string]string{"brand": "Other"})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
}

func TestList_RejectsUnknownSortKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), engineer(), "serial_number)--")
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Reason != validation.ReasonNotInSet {
		t.Fatalf("reason = %s, want NOT_IN_SET", verr.Reason)
	}
}
