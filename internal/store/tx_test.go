package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// memDB is a driver-level fake for transaction tests. Statements executed
// inside a transaction take effect only on commit; applying a statement
// that is already present behaves like a unique-index violation. That is
// all the gateway's transaction scoping needs to be observable without a
// server.
type memDB struct {
	mu      sync.Mutex
	applied []string
}

func (db *memDB) has(stmt string, pending []string) bool {
	for _, s := range db.applied {
		if s == stmt {
			return true
		}
	}
	for _, s := range pending {
		if s == stmt {
			return true
		}
	}
	return false
}

type memConnector struct{ db *memDB }

func (c *memConnector) Connect(context.Context) (driver.Conn, error) {
	return &memConn{db: c.db}, nil
}

func (c *memConnector) Driver() driver.Driver { return memDriver{} }

type memDriver struct{}

func (memDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open via the connector")
}

type memConn struct {
	db      *memDB
	pending []string
	inTx    bool
}

func (c *memConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements unsupported")
}

func (c *memConn) Close() error { return nil }

func (c *memConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *memConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.inTx = true
	c.pending = nil
	return c, nil
}

func (c *memConn) Commit() error {
	c.db.mu.Lock()
	c.db.applied = append(c.db.applied, c.pending...)
	c.db.mu.Unlock()
	c.inTx = false
	c.pending = nil
	return nil
}

func (c *memConn) Rollback() error {
	c.inTx = false
	c.pending = nil
	return nil
}

func (c *memConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.has(query, c.pending) {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	if c.inTx {
		c.pending = append(c.pending, query)
		return driver.RowsAffected(1), nil
	}
	c.db.applied = append(c.db.applied, query)
	return driver.RowsAffected(1), nil
}

func (c *memConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return emptyRows{}, nil
}

type emptyRows struct{}

func (emptyRows) Columns() []string { return nil }
func (emptyRows) Close() error { return nil }
func (emptyRows) Next([]driver.Value) error { return io.EOF }

const (
	insertUserStmt   = "INSERT INTO users (id) VALUES ($1)"
	insertDigestStmt = "INSERT INTO user_digests (id) VALUES ($1)"
	countUsersStmt   = "SELECT count(*) FROM users"
)

func txFixture(t *testing.T) (*Gateway, *memDB) {
	t.Helper()
	db := &memDB{}
	sqlDB := sql.OpenDB(&memConnector{db: db})
	t.Cleanup(func() { _ = sqlDB.Close() })

	g := NewGateway(sqlDB, nil)
	err := g.Register(
		Template{Op: "user.insert", SQL: insertUserStmt},
		Template{Op: "user.insert_digest", SQL: insertDigestStmt},
		Template{Op: "user.count", SQL: countUsersStmt},
	)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return g, db
}

func TestExec_AppliesOutsideTransaction(t *testing.T) {
	g, db := txFixture(t)

	n, err := g.Exec(context.Background(), "system", "user.insert", System("id", "u1"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
	if len(db.applied) != 1 || db.applied[0] != insertUserStmt {
		t.Fatalf("unexpected applied statements: %v", db.applied)
	}
}

func TestInTx_CommitAppliesWholeScope(t *testing.T) {
	g, db := txFixture(t)

	err := g.InTx(context.Background(), "system", func(tx Tx) error {
		if err := tx.Query(context.Background(), "user.count", func(*sql.Rows) error { return nil }); err != nil {
			return err
		}
		if _, err := tx.Exec(context.Background(), "user.insert", System("id", "u1")); err != nil {
			return err
		}
		_, err := tx.Exec(context.Background(), "user.insert_digest", System("id", "u1"))
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if len(db.applied) != 2 {
		t.Fatalf("expected both statements committed, got %v", db.applied)
	}
}

func TestInTx_FailureRollsBackPriorStatements(t *testing.T) {
	g, db := txFixture(t)

	// A committed digest row makes the second statement in the scope collide.
	if _, err := g.Exec(context.Background(), "system", "user.insert_digest", System("id", "u1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := g.InTx(context.Background(), "system", func(tx Tx) error {
		if _, err := tx.Exec(context.Background(), "user.insert", System("id", "u1")); err != nil {
			return err
		}
		_, err := tx.Exec(context.Background(), "user.insert_digest", System("id", "u1"))
		return err
	})
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected a store failure, got %v", err)
	}
	if f.Code != CodeConflict {
		t.Fatalf("expected CONFLICT, got %s", f.Code)
	}
	if len(db.applied) != 1 || db.applied[0] != insertDigestStmt {
		t.Fatalf("first statement must be rolled back, applied: %v", db.applied)
	}
}

func TestInTx_CancelledContextNeverApplies(t *testing.T) {
	g, db := txFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.InTx(ctx, "system", func(tx Tx) error {
		_, err := tx.Exec(ctx, "user.insert", System("id", "u1"))
		return err
	})
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected a store failure, got %v", err)
	}
	if f.Code != CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %s", f.Code)
	}
	if len(db.applied) != 0 {
		t.Fatalf("nothing may be applied after cancellation, got %v", db.applied)
	}
}
