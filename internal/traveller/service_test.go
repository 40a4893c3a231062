package traveller

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

// Unit tests for the authorize-then-validate front. Statement behavior runs
// against Postgres in integration tests.

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
	gw := store.NewGateway(nil, rec)
	if err := gw.Register(Templates()...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	cipher, err := crypto.NewFieldCipher(testKeyHex)
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	svc, err := NewService(authz.NewGuard(table, rec), validation.New(rec), gw, cipher, rec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo}
}

func admin() authz.Principal {
	return authz.Principal{ID: "a1", Username: "adm1", Roles: []authz.Role{authz.RoleSystemAdmin}}
}

func validInput() map[string]string {
	return map[string]string{
		"first_name":      "Maria",
		"last_name":       "Jansen",
		"birthday":        "1990-04-12",
		"gender":          "female",
		"street_name":     "Kerkstraat",
		"house_number":    "12a",
		"zip_code":        "1234AB",
		"city":            "Rotterdam",
		"email":           "maria@example.com",
		"mobile_phone":    "12345678",
		"driving_licence": "AB1234567",
	}
}

func TestCreate_DeniedForEngineer(t *testing.T) {
	f := newFixture(t)
	eng := authz.Principal{ID: "e1", Username: "eng1", Roles: []authz.Role{authz.RoleServiceEngineer}}

	_, err := f.svc.Create(context.Background(), eng, validInput())
	if !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
	denied := f.repo.ByCategory(audit.CategoryAccessDenied)
	if len(denied) != 1 || !denied[0].Suspicious {
		t.Fatalf("expected one suspicious access-denied event, got %+v", denied)
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
			name:   "bad zip",
			mutate: func(m map[string]string) { m["zip_code"] = "12AB34" },
			field:  "zip_code",
			reason: validation.ReasonPatternMismatch,
		},
		{
			name:   "city off the list",
			mutate: func(m map[string]string) { m["city"] = "Delft" },
			field:  "city",
			reason: validation.ReasonNotInSet,
		},
		{
			name:   "phone wrong length",
			mutate: func(m map[string]string) { m["mobile_phone"] = "1234567" },
			field:  "mobile_phone",
			reason: validation.ReasonPatternMismatch,
		},
		{
			name:   "future birthday",
			mutate: func(m map[string]string) { m["birthday"] = "2999-01-01" },
			field:  "birthday",
			reason: validation.ReasonOutOfRange,
		},
		{
			name:   "licence format",
			mutate: func(m map[string]string) { m["driving_licence"] = "1234567AB" },
			field:  "driving_licence",
			reason: validation.ReasonPatternMismatch,
		},
		{
			name:   "house number",
			mutate: func(m map[string]string) { m["house_number"] = "12abc" },
			field:  "house_number",
			reason: validation.ReasonPatternMismatch,
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
	if n := len(f.repo.ByCategory(audit.CategoryQueryExecuted)); n != 0 {
		t.Fatalf("statement ran after rejection: %d events", n)
	}
}

func TestSearch_RejectsHostileTerm(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Search(context.Background(), admin(), "x'; DROP TABLE travellers;--")
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	// The rejection is flagged for review.
	failures := f.repo.ByCategory(audit.CategoryValidationFailure)
	if len(failures) != 1 || !failures[0].Suspicious {
		t.Fatalf("expected one suspicious validation event, got %+v", failures)
	}
}

func TestGet_RejectsMalformedID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), admin(), "not-a-uuid")
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validation.Error", err)
	}
	if verr.Reason != validation.ReasonBadFormat {
		t.Fatalf("reason = %s, want BAD_FORMAT", verr.Reason)
	}
}

func TestMatches(t *testing.T) {
	tr := &Traveller{
		ID:             "7b3e0d2a-0000-4000-8000-9c0ffee00001",
		FirstName:      "Maria",
		LastName:       "Jansen",
		Email:          "maria@example.com",
		MobilePhone:    "12345678",
		DrivingLicence: "AB1234567",
	}
	for _, term := range []string{"maria", "jansen", "example.com", "2345", "ab123", "9c0ffee"} {
		if !matches(tr, term) {
			t.Errorf("matches(%q) = false, want true", term)
		}
	}
	if matches(tr, "nothere") {
		t.Errorf("matches(nothere) = true, want false")
	}
}
