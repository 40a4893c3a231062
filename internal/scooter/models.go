package scooter

import (
	"database/sql"
	"time"
)

// Scooter is one vehicle in the fleet. Nothing here is personal data, so
// unlike traveller records the columns are stored in the clear.
type Scooter struct {
	ID              string    `json:"id"`
	Brand           string    `json:"brand"`
	Model           string    `json:"model"`
	SerialNumber    string    `json:"serial_number"`
	TopSpeed        int64     `json:"top_speed"`
	BatteryCapacity int64     `json:"battery_capacity"`
	StateOfCharge   int64     `json:"state_of_charge"`
	MinSOC          int64     `json:"min_soc"`
	MaxSOC          int64     `json:"max_soc"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	OutOfService    bool      `json:"out_of_service"`
	Mileage         int64     `json:"mileage"`
	LastMaintenance string    `json:"last_maintenance,omitempty"`
	InServiceAt     time.Time `json:"in_service_at"`
}

// row mirrors the table; last_maintenance is nullable.
type row struct {
	ID              string
	Brand           string
	Model           string
	SerialNumber    string
	TopSpeed        int64
	BatteryCapacity int64
	StateOfCharge   int64
	MinSOC          int64
	MaxSOC          int64
	Latitude        float64
	Longitude       float64
	OutOfService    bool
	Mileage         int64
	LastMaintenance sql.NullString
	InServiceAt     time.Time
}
