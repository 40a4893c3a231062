package user

import "urban-mobility/internal/store"

// Statement identifiers for the users table. Every statement this package
// ever runs is listed here and registered at startup; there is no other way
// to reach the table.
const (
	opCreate        = "user.create"
	opGetByUsername = "user.get_by_username"
	opGetByID       = "user.get_by_id"
	opList          = "user.list"
	opUpdateProfile = "user.update_profile"
	opDelete        = "user.delete"
	opSetPassword   = "user.set_password"
	opCount         = "user.count"
)

// Templates returns the statements to register with the gateway.
//
// Schema:
//
//	CREATE TABLE users (
//	    id              UUID PRIMARY KEY,
//	    username_digest TEXT NOT NULL UNIQUE,
//	    username_enc    TEXT NOT NULL,
//	    role            TEXT NOT NULL,
//	    first_name_enc  TEXT NOT NULL,
//	    last_name_enc   TEXT NOT NULL,
//	    password_hash   TEXT NOT NULL,
//	    registered_at   TIMESTAMPTZ NOT NULL
//	);
//
// Name columns hold ciphertext; username_digest is the keyed lookup digest
// that makes the unique constraint and login lookups possible.
func Templates() []store.Template {
	const cols = "id, username_enc, role, first_name_enc, last_name_enc, password_hash, registered_at"

	return []store.Template{
		{
			Op: opCreate,
			SQL: `INSERT INTO users (id, username_digest, username_enc, role, first_name_enc, last_name_enc, password_hash, registered_at)
			      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		},
		{
			Op:  opGetByUsername,
			SQL: `SELECT ` + cols + ` FROM users WHERE username_digest = $1`,
		},
		{
			Op:  opGetByID,
			SQL: `SELECT ` + cols + ` FROM users WHERE id = $1`,
		},
		{
			Op:  opList,
			SQL: `SELECT ` + cols + ` FROM users ORDER BY registered_at`,
			SortVariants: map[string]string{
				"registered_at": `SELECT ` + cols + ` FROM users ORDER BY registered_at`,
				"role":          `SELECT ` + cols + ` FROM users ORDER BY role, registered_at`,
			},
		},
		{
			Op: opUpdateProfile,
			SQL: `UPDATE users
			      SET username_digest = $2, username_enc = $3, first_name_enc = $4, last_name_enc = $5
			      WHERE id = $1`,
		},
		{
			Op:  opDelete,
			SQL: `DELETE FROM users WHERE id = $1`,
		},
		{
			Op:  opSetPassword,
			SQL: `UPDATE users SET password_hash = $2 WHERE id = $1`,
		},
		{
			Op:  opCount,
			SQL: `SELECT COUNT(*) FROM users`,
		},
	}
}
