package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/validation"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres-specific behavior (constraint messages, type coercion) needs a
// real database; what lives here is everything observable without one:
// template registry faults, sort-variant selection, failure classification,
// and the audit/metrics plumbing around a failed lookup. Transaction scoping
// is covered against a driver-level fake in tx_test.go.

func TestRegister_ConfigurationFaults(t *testing.T) {
	g := NewGateway(nil, nil)

	if err := g.Register(Template{Op: "", SQL: "SELECT 1"}); err == nil {
		t.Fatalf("empty op must fail registration")
	}
	if err := g.Register(Template{Op: "x", SQL: ""}); err == nil {
		t.Fatalf("empty SQL must fail registration")
	}
	if err := g.Register(Template{Op: "x", SQL: "SELECT 1"}); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}
	if err := g.Register(Template{Op: "x", SQL: "SELECT 2"}); err == nil {
		t.Fatalf("duplicate op must fail registration")
	}
}

func TestStatement_SortVariants(t *testing.T) {
	g := NewGateway(nil, nil)
	err := g.Register(Template{
		Op:  "scooter.list",
		SQL: "SELECT id FROM scooters ORDER BY serial_number",
		SortVariants: map[string]string{
			"mileage": "SELECT id FROM scooters ORDER BY mileage",
			"soc":     "SELECT id FROM scooters ORDER BY state_of_charge",
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	stmt, err := g.statement("scooter.list", "")
	if err != nil || stmt != "SELECT id FROM scooters ORDER BY serial_number" {
		t.Fatalf("base statement: %q, %v", stmt, err)
	}
	stmt, err = g.statement("scooter.list", "mileage")
	if err != nil || stmt != "SELECT id FROM scooters ORDER BY mileage" {
		t.Fatalf("variant statement: %q, %v", stmt, err)
	}
	if _, err := g.statement("scooter.list", "id; DROP TABLE scooters"); err == nil {
		t.Fatalf("unknown sort key must never reach SQL")
	}
	if _, err := g.statement("unregistered.op", ""); err == nil {
		t.Fatalf("unregistered op must fail lookup")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureCode
	}{
		{sql.ErrNoRows, CodeNotFound},
		{context.DeadlineExceeded, CodeTimeout},
		{context.Canceled, CodeTimeout},
		{&pgconn.PgError{Code: "23505"}, CodeConflict},
		{&pgconn.PgError{Code: "23503"}, CodeConflict},
		{&pgconn.PgError{Code: "42P01"}, CodeStoreError},
		{errors.New("connection refused"), CodeStoreError},
	}
	for _, tc := range cases {
		if got := classify(tc.err); got != tc.want {
			t.Fatalf("classify(%v): expected %s, got %s", tc.err, tc.want, got)
		}
	}
}

func TestExec_UnregisteredOpAuditsFailure(t *testing.T) {
	repo := audit.NewMemoryRepo()
	rec, err := audit.NewService(repo)
	if err != nil {
		t.Fatalf("audit.NewService: %v", err)
	}
	var outcomes []string
	g := NewGateway(nil, rec, WithOutcomeHook(func(o string) { outcomes = append(outcomes, o) }))

	_, err = g.Exec(context.Background(), "adm1", "nope.op")
	f, ok := AsFailure(err)
	if !ok || f.Code != CodeStoreError {
		t.Fatalf("expected STORE_ERROR failure, got %v", err)
	}

	events := repo.ByCategory(audit.CategoryQueryExecuted)
	if len(events) != 1 {
		t.Fatalf("expected one query-executed event, got %d", len(events))
	}
	if events[0].Details["outcome"] != "STORE_ERROR" || events[0].Details["operation"] != "nope.op" {
		t.Fatalf("unexpected details: %v", events[0].Details)
	}
	if len(outcomes) != 1 || outcomes[0] != "STORE_ERROR" {
		t.Fatalf("expected outcome hook call, got %v", outcomes)
	}
}

func TestBind_Constructors(t *testing.T) {
	v := validation.New(nil)
	res := v.Validate(context.Background(), "a", "op",
		map[string]string{"mileage": "250"},
		[]validation.FieldSchema{{Name: "mileage", Kind: validation.KindInt, Required: true}})
	if !res.OK {
		t.Fatalf("setup: %v", res.Reason)
	}

	b := Validated(res.Record.MustGet("mileage"))
	if b.name != "mileage" || b.value != int64(250) || b.sensitive {
		t.Fatalf("unexpected bind: %+v", b)
	}

	s := SystemSensitive("password_hash", "$argon2id$...")
	if !s.sensitive || s.name != "password_hash" {
		t.Fatalf("unexpected system bind: %+v", s)
	}

	got := args([]Bind{b, s})
	if len(got) != 2 || got[0] != int64(250) {
		t.Fatalf("args order broken: %v", got)
	}
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Op: "traveller.create", Code: CodeConflict}
	if f.Error() != "store: traveller.create: CONFLICT" {
		t.Fatalf("unexpected message: %q", f.Error())
	}
}
