package traveller

import "urban-mobility/internal/store"

const (
	opCreate  = "traveller.create"
	opGetByID = "traveller.get_by_id"
	opUpdate  = "traveller.update"
	opDelete  = "traveller.delete"
	opListAll = "traveller.list_all"
)

// Templates returns the statements to register with the gateway.
//
// Schema:
//
//	CREATE TABLE travellers (
//	    id             UUID PRIMARY KEY,
//	    first_name_enc TEXT NOT NULL,
//	    last_name_enc  TEXT NOT NULL,
//	    birthday_enc   TEXT NOT NULL,
//	    gender         TEXT NOT NULL,
//	    street_enc     TEXT NOT NULL,
//	    house_enc      TEXT NOT NULL,
//	    zip_enc        TEXT NOT NULL,
//	    city           TEXT NOT NULL,
//	    email_enc      TEXT NOT NULL,
//	    phone_enc      TEXT NOT NULL,
//	    licence_enc    TEXT NOT NULL,
//	    licence_digest TEXT NOT NULL UNIQUE,
//	    registered_at  TIMESTAMPTZ NOT NULL
//	);
//
// licence_digest is the keyed digest enforcing one record per licence.
// Search reads every row and matches against decrypted values in the
// service; ciphertext columns cannot support LIKE, and the record count
// stays small enough that the full scan is acceptable.
func Templates() []store.Template {
	const cols = `id, first_name_enc, last_name_enc, birthday_enc, gender, street_enc,
	              house_enc, zip_enc, city, email_enc, phone_enc, licence_enc, registered_at`

	return []store.Template{
		{
			Op: opCreate,
			SQL: `INSERT INTO travellers (id, first_name_enc, last_name_enc, birthday_enc, gender, street_enc,
			                              house_enc, zip_enc, city, email_enc, phone_enc, licence_enc,
			                              licence_digest, registered_at)
			      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		},
		{
			Op:  opGetByID,
			SQL: `SELECT ` + cols + ` FROM travellers WHERE id = $1`,
		},
		{
			Op: opUpdate,
			SQL: `UPDATE travellers
			      SET first_name_enc = $2, last_name_enc = $3, birthday_enc = $4, gender = $5,
			          street_enc = $6, house_enc = $7, zip_enc = $8, city = $9,
			          email_enc = $10, phone_enc = $11, licence_enc = $12, licence_digest = $13
			      WHERE id = $1`,
		},
		{
			Op:  opDelete,
			SQL: `DELETE FROM travellers WHERE id = $1`,
		},
		{
			Op:  opListAll,
			SQL: `SELECT ` + cols + ` FROM travellers ORDER BY registered_at`,
		},
	}
}
