package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"urban-mobility/pkg/crypto"
)

// PostgresRepo persists audit events.
//
// The structured detail payload is encrypted at rest with the PII field
// cipher; actor, category and flags stay plaintext so suspicious entries can
// be queried without decrypting every row.
//
// Table audit_events is INSERT-only apart from the reviewed marker:
//
//	CREATE TABLE audit_events (
//	    id         UUID PRIMARY KEY,
//	    actor      TEXT NOT NULL,
//	    category   TEXT NOT NULL,
//	    suspicious BOOLEAN NOT NULL DEFAULT FALSE,
//	    reviewed   BOOLEAN NOT NULL DEFAULT FALSE,
//	    payload    TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db      *sql.DB
	cipher  *crypto.FieldCipher
	timeout time.Duration
}

func NewPostgresRepo(db *sql.DB, cipher *crypto.FieldCipher) *PostgresRepo {
	return &PostgresRepo{db: db, cipher: cipher, timeout: 5 * time.Second}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("audit: encode payload: %w", err)
	}
	stored := string(payload)
	if r.cipher != nil {
		stored, err = r.cipher.EncryptField(stored)
		if err != nil {
			return fmt.Errorf("audit: encrypt payload: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor, category, suspicious, reviewed, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Actor, string(e.Category), e.Suspicious, e.Reviewed, stored, e.CreatedAt)
	return err
}

func (r *PostgresRepo) ListUnreviewedSuspicious(ctx context.Context) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor, category, suspicious, reviewed, payload, created_at
		FROM audit_events
		WHERE suspicious = TRUE AND reviewed = FALSE
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var category, payload string
		if err := rows.Scan(&e.ID, &e.Actor, &category, &e.Suspicious, &e.Reviewed, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Category = Category(category)
		if r.cipher != nil {
			payload, err = r.cipher.DecryptField(payload)
			if err != nil {
				// Undecryptable rows are skipped, not fatal; the log
				// itself must stay readable after a key incident.
				continue
			}
		}
		if err := json.Unmarshal([]byte(payload), &e.Details); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkReviewed(ctx context.Context, ids []string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Bound values only; the id list is expanded into placeholders.
	query := "UPDATE audit_events SET reviewed = TRUE WHERE id = ANY($1)"
	_, err := r.db.ExecContext(ctx, query, idArray(ids))
	return err
}

// idArray renders a Postgres array literal for binding. The service has
// already normalized every id to a parsed UUID string.
func idArray(ids []string) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out + "}"
}
