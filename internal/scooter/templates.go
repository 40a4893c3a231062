package scooter

import "urban-mobility/internal/store"

const (
	opCreate            = "scooter.create"
	opGetByID           = "scooter.get_by_id"
	opUpdate            = "scooter.update"
	opUpdateMaintenance = "scooter.update_maintenance"
	opDelete            = "scooter.delete"
	opList              = "scooter.list"
)

// Templates returns the statements to register with the gateway.
//
// Schema:
//
//	CREATE TABLE scooters (
//	    id               UUID PRIMARY KEY,
//	    brand            TEXT NOT NULL,
//	    model            TEXT NOT NULL,
//	    serial_number    TEXT NOT NULL UNIQUE,
//	    top_speed        BIGINT NOT NULL,
//	    battery_capacity BIGINT NOT NULL,
//	    state_of_charge  BIGINT NOT NULL,
//	    min_soc          BIGINT NOT NULL,
//	    max_soc          BIGINT NOT NULL,
//	    latitude         DOUBLE PRECISION NOT NULL,
//	    longitude        DOUBLE PRECISION NOT NULL,
//	    out_of_service   BOOLEAN NOT NULL,
//	    mileage          BIGINT NOT NULL,
//	    last_maintenance TEXT,
//	    in_service_at    TIMESTAMPTZ NOT NULL
//	);
//
// The maintenance statement touches only the columns a service engineer may
// change; identity and battery rating columns are simply not in its SET
// list.
func Templates() []store.Template {
	const cols = `id, brand, model, serial_number, top_speed, battery_capacity, state_of_charge,
	              min_soc, max_soc, latitude, longitude, out_of_service, mileage, last_maintenance, in_service_at`

	list := func(order string) string {
		return `SELECT ` + cols + ` FROM scooters ORDER BY ` + order
	}

	return []store.Template{
		{
			Op: opCreate,
			SQL: `INSERT INTO scooters (` + cols + `)
			      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		},
		{
			Op:  opGetByID,
			SQL: `SELECT ` + cols + ` FROM scooters WHERE id = $1`,
		},
		{
			Op: opUpdate,
			SQL: `UPDATE scooters
			      SET brand = $2, model = $3, serial_number = $4, top_speed = $5, battery_capacity = $6,
			          state_of_charge = $7, min_soc = $8, max_soc = $9, latitude = $10, longitude = $11,
			          out_of_service = $12, mileage = $13, last_maintenance = $14
			      WHERE id = $1`,
		},
		{
			Op: opUpdateMaintenance,
			SQL: `UPDATE scooters
			      SET state_of_charge = $2, min_soc = $3, max_soc = $4, latitude = $5, longitude = $6,
			          out_of_service = $7, mileage = $8, last_maintenance = $9
			      WHERE id = $1`,
		},
		{
			Op:  opDelete,
			SQL: `DELETE FROM scooters WHERE id = $1`,
		},
		{
			Op:  opList,
			SQL: list("in_service_at"),
			SortVariants: map[string]string{
				"in_service_at":   list("in_service_at"),
				"brand":           list("brand, model, in_service_at"),
				"mileage":         list("mileage, in_service_at"),
				"state_of_charge": list("state_of_charge, in_service_at"),
			},
		},
	}
}
