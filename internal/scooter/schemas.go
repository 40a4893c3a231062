package scooter

import "urban-mobility/internal/validation"

// The fleet operates in the Rotterdam region; coordinates outside it are
// input errors, not far-away scooters.
const (
	latMin, latMax = 51.85, 52.05
	lonMin, lonMax = 4.20, 4.60
)

var createSchema = []validation.FieldSchema{
	{Name: "brand", Kind: validation.KindText, Required: true, MaxLen: 30},
	{Name: "model", Kind: validation.KindText, Required: true, MaxLen: 30},
	{Name: "serial_number", Kind: validation.KindSerial, Required: true},
	{Name: "top_speed", Kind: validation.KindInt, Required: true, Min: 1, Max: 120},
	{Name: "battery_capacity", Kind: validation.KindInt, Required: true, Min: 100, Max: 10000},
	{Name: "state_of_charge", Kind: validation.KindInt, Required: true, Min: 0, Max: 100},
	{Name: "min_soc", Kind: validation.KindInt, Required: true, Min: 0, Max: 100},
	{Name: "max_soc", Kind: validation.KindInt, Required: true, Min: 0, Max: 100},
	{Name: "latitude", Kind: validation.KindCoordinate, Required: true, FMin: latMin, FMax: latMax},
	{Name: "longitude", Kind: validation.KindCoordinate, Required: true, FMin: lonMin, FMax: lonMax},
	{Name: "out_of_service", Kind: validation.KindBool},
	{Name: "mileage", Kind: validation.KindInt, Min: 0, Max: 1000000},
	{Name: "last_maintenance", Kind: validation.KindDate, NoFuture: true},
}

// updateSchema accepts any subset of the create fields.
var updateSchema = func() []validation.FieldSchema {
	out := make([]validation.FieldSchema, len(createSchema))
	copy(out, createSchema)
	for i := range out {
		out[i].Required = false
	}
	return out
}()

// maintenanceSchema is the attribute subset a service engineer may touch.
// Brand, model, serial and the battery's physical ratings are off limits.
var maintenanceSchema = []validation.FieldSchema{
	{Name: "state_of_charge", Kind: validation.KindInt, Min: 0, Max: 100},
	{Name: "min_soc", Kind: validation.KindInt, Min: 0, Max: 100},
	{Name: "max_soc", Kind: validation.KindInt, Min: 0, Max: 100},
	{Name: "latitude", Kind: validation.KindCoordinate, FMin: latMin, FMax: latMax},
	{Name: "longitude", Kind: validation.KindCoordinate, FMin: lonMin, FMax: lonMax},
	{Name: "out_of_service", Kind: validation.KindBool},
	{Name: "mileage", Kind: validation.KindInt, Min: 0, Max: 1000000},
	{Name: "last_maintenance", Kind: validation.KindDate, NoFuture: true},
}

var notEmpty = validation.CrossCheck{
	Name: "at_least_one_field",
	OK: func(r validation.Record) bool {
		return len(r.Fields()) > 0
	},
}

// socRange ties the target-range bounds together: both present and ordered,
// or both absent. A lone bound on a partial update cannot be checked against
// anything and is refused.
var socRange = validation.CrossCheck{
	Name: "soc_range",
	OK: func(r validation.Record) bool {
		minV, hasMin := r.Get("min_soc")
		maxV, hasMax := r.Get("max_soc")
		if !hasMin && !hasMax {
			return true
		}
		if hasMin != hasMax {
			return false
		}
		return minV.Int() < maxV.Int()
	},
}

// coordPair: a location update moves both axes.
var coordPair = validation.CrossCheck{
	Name: "coordinate_pair",
	OK: func(r validation.Record) bool {
		return r.Has("latitude") == r.Has("longitude")
	},
}

var idSchema = []validation.FieldSchema{
	{Name: "id", Kind: validation.KindIdentifier, Required: true},
}

var listSchema = []validation.FieldSchema{
	{Name: "sort", Kind: validation.KindEnum, Enum: []string{"in_service_at", "brand", "mileage", "state_of_charge"}},
}
