package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"urban-mobility/internal/audit"
	"urban-mobility/pkg/utils"
)

// Gateway executes registered query templates. It is the only path from the
// application to the database: statement structure comes from the template
// registry, values come in as Binds, and the two never mix.
//
// Every execution emits one query-executed audit event carrying the
// operation id and outcome. Bind values are never audited; driver errors are
// logged operationally and surfaced only as internal failure codes.
type Gateway struct {
	db      *sql.DB
	rec     audit.Recorder
	logger  *slog.Logger
	timeout time.Duration

	// onOutcome is called once per execution with the outcome label (metrics).
	onOutcome func(string)

	templates map[string]Template
}

type GatewayOption func(*Gateway)

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

func WithOutcomeHook(fn func(string)) GatewayOption {
	return func(g *Gateway) { g.onOutcome = fn }
}

func NewGateway(db *sql.DB, rec audit.Recorder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		db:        db,
		rec:       rec,
		logger:    slog.Default(),
		timeout:   5 * time.Second,
		templates: make(map[string]Template),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds templates to the closed registry. Called at startup only;
// any fault here is a configuration fault and must stop the process.
func (g *Gateway) Register(templates ...Template) error {
	for _, t := range templates {
		if t.Op == "" {
			return fmt.Errorf("store: template with empty operation id")
		}
		if t.SQL == "" {
			return fmt.Errorf("store: template %q has no statement", t.Op)
		}
		if _, dup := g.templates[t.Op]; dup {
			return fmt.Errorf("store: duplicate template %q", t.Op)
		}
		g.templates[t.Op] = t
	}
	return nil
}

func (g *Gateway) statement(op, sortKey string) (string, error) {
	t, ok := g.templates[op]
	if !ok {
		return "", fmt.Errorf("store: no template registered for %q", op)
	}
	if sortKey == "" {
		return t.SQL, nil
	}
	variant, ok := t.SortVariants[sortKey]
	if !ok {
		return "", fmt.Errorf("store: template %q has no variant %q", op, sortKey)
	}
	return variant, nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Exec runs a mutating template and returns the affected row count.
func (g *Gateway) Exec(ctx context.Context, actor, op string, binds ...Bind) (int64, error) {
	return g.exec(ctx, g.db, actor, op, binds)
}

// Query runs a reading template. scan consumes the rows; returning
// sql.ErrNoRows from scan maps to a NOT_FOUND failure.
func (g *Gateway) Query(ctx context.Context, actor, op string, scan func(*sql.Rows) error, binds ...Bind) error {
	return g.query(ctx, g.db, actor, op, "", scan, binds)
}

// QuerySorted is Query with a pre-registered sort variant. sortKey must
// already have been validated against the operation's sort enumeration.
func (g *Gateway) QuerySorted(ctx context.Context, actor, op, sortKey string, scan func(*sql.Rows) error, binds ...Bind) error {
	return g.query(ctx, g.db, actor, op, sortKey, scan, binds)
}

// Tx scopes a multi-statement operation to one transaction. Any failure
// rolls back every prior effect in the scope.
type Tx struct {
	g     *Gateway
	tx    *sql.Tx
	actor string
}

func (t Tx) Exec(ctx context.Context, op string, binds ...Bind) (int64, error) {
	return t.g.exec(ctx, t.tx, t.actor, op, binds)
}

func (t Tx) Query(ctx context.Context, op string, scan func(*sql.Rows) error, binds ...Bind) error {
	return t.g.query(ctx, t.tx, t.actor, op, "", scan, binds)
}

// InTx runs fn atomically. The context bounds the whole scope; cancellation
// rolls the transaction back, it is never left open.
func (g *Gateway) InTx(ctx context.Context, actor string, fn func(tx Tx) error) error {
	err := utils.WithTx(ctx, g.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(Tx{g: g, tx: tx, actor: actor})
	})
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	// Commit/begin errors surface as a store failure on the scope itself.
	g.logger.Error("transaction failed", "err", err)
	return &Failure{Op: "tx", Code: classify(err)}
}

func (g *Gateway) exec(ctx context.Context, ex executor, actor, op string, binds []Bind) (int64, error) {
	stmt, err := g.statement(op, "")
	if err != nil {
		g.logger.Error("template lookup failed", "op", op, "err", err)
		g.finish(ctx, actor, op, CodeStoreError)
		return 0, &Failure{Op: op, Code: CodeStoreError}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := ex.ExecContext(callCtx, stmt, args(binds)...)
	if err != nil {
		code := classify(err)
		g.logger.Error("statement failed", "op", op, "code", string(code), "err", err)
		g.finish(ctx, actor, op, code)
		return 0, &Failure{Op: op, Code: code}
	}
	n, err := res.RowsAffected()
	if err != nil {
		g.logger.Error("rows affected unavailable", "op", op, "err", err)
		g.finish(ctx, actor, op, CodeStoreError)
		return 0, &Failure{Op: op, Code: CodeStoreError}
	}
	g.finish(ctx, actor, op, "")
	return n, nil
}

func (g *Gateway) query(ctx context.Context, ex executor, actor, op, sortKey string, scan func(*sql.Rows) error, binds []Bind) error {
	stmt, err := g.statement(op, sortKey)
	if err != nil {
		g.logger.Error("template lookup failed", "op", op, "sort", sortKey, "err", err)
		g.finish(ctx, actor, op, CodeStoreError)
		return &Failure{Op: op, Code: CodeStoreError}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rows, err := ex.QueryContext(callCtx, stmt, args(binds)...)
	if err == nil {
		defer rows.Close()
		err = scan(rows)
		if err == nil {
			err = rows.Err()
		}
	}
	if err != nil {
		code := classify(err)
		if code != CodeNotFound {
			g.logger.Error("query failed", "op", op, "code", string(code), "err", err)
		}
		g.finish(ctx, actor, op, code)
		return &Failure{Op: op, Code: code}
	}
	g.finish(ctx, actor, op, "")
	return nil
}

// finish records the execution outcome. One audit event per execution, with
// the operation and outcome only; bound values stay out of the log entirely.
func (g *Gateway) finish(ctx context.Context, actor, op string, code FailureCode) {
	outcome := "success"
	if code != "" {
		outcome = string(code)
	}
	if g.onOutcome != nil {
		g.onOutcome(outcome)
	}
	if g.rec != nil {
		g.rec.Log(ctx, audit.Event{
			Actor:    actor,
			Category: audit.CategoryQueryExecuted,
			Details: map[string]string{
				"operation": op,
				"outcome":   outcome,
			},
		})
	}
}
