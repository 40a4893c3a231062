package scooter

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"urban-mobility/internal/authz"
	"urban-mobility/internal/store"
	"urban-mobility/internal/validation"

	"github.com/google/uuid"
)

// Service manages the scooter fleet. Admins hold full CRUD; service
// engineers reach only the maintenance attribute subset, enforced twice:
// the guard knows a distinct operation for it, and the maintenance
// statement's SET list simply lacks the other columns.
type Service struct {
	guard *authz.Guard
	check *validation.Validator
	gw    *store.Gateway

	clock func() time.Time
	newID func() string
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(guard *authz.Guard, check *validation.Validator, gw *store.Gateway, opts ...Option) (*Service, error) {
	if guard == nil || check == nil || gw == nil {
		return nil, errors.New("scooter: guard, validator and gateway are required")
	}
	s := &Service{
		guard: guard,
		check: check,
		gw:    gw,
		clock: time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create adds a scooter to the fleet.
func (s *Service) Create(ctx context.Context, p authz.Principal, raw map[string]string) (*Scooter, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpScooterCreate, authz.ResourceRef{Type: authz.ResourceScooter}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpScooterCreate), raw, createSchema, socRange)
	if !res.OK {
		return nil, res.Err()
	}

	sc := &Scooter{ID: s.newID(), InServiceAt: s.clock().UTC()}
	applyRecord(sc, res.Record)

	_, err := s.gw.Exec(ctx, p.Username, opCreate,
		store.System("id", sc.ID),
		store.Validated(res.Record.MustGet("brand")),
		store.Validated(res.Record.MustGet("model")),
		store.Validated(res.Record.MustGet("serial_number")),
		store.Validated(res.Record.MustGet("top_speed")),
		store.Validated(res.Record.MustGet("battery_capacity")),
		store.Validated(res.Record.MustGet("state_of_charge")),
		store.Validated(res.Record.MustGet("min_soc")),
		store.Validated(res.Record.MustGet("max_soc")),
		store.Validated(res.Record.MustGet("latitude")),
		store.Validated(res.Record.MustGet("longitude")),
		store.System("out_of_service", sc.OutOfService),
		store.System("mileage", sc.Mileage),
		store.System("last_maintenance", nullable(sc.LastMaintenance)),
		store.System("in_service_at", sc.InServiceAt),
	)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Get returns one scooter by id.
func (s *Service) Get(ctx context.Context, p authz.Principal, idRaw string) (*Scooter, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpScooterRead, authz.ResourceRef{Type: authz.ResourceScooter}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpScooterRead), idRaw)
	if err != nil {
		return nil, err
	}
	return s.byID(ctx, p.Username, id)
}

// List returns the fleet in a pre-registered sort order.
func (s *Service) List(ctx context.Context, p authz.Principal, sortRaw string) ([]Scooter, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpScooterList, authz.ResourceRef{Type: authz.ResourceScooter}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpScooterList), map[string]string{"sort": sortRaw}, listSchema)
	if !res.OK {
		return nil, res.Err()
	}
	sortKey := ""
	if v, ok := res.Record.Get("sort"); ok {
		sortKey = v.Str()
	}

	var out []Scooter
	err := s.gw.QuerySorted(ctx, p.Username, opList, sortKey, func(rows *sql.Rows) error {
		for rows.Next() {
			r, err := scanRow(rows)
			if err != nil {
				return err
			}
			out = append(out, fromRow(r))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a partial change across the full attribute set.
func (s *Service) Update(ctx context.Context, p authz.Principal, idRaw string, raw map[string]string) (*Scooter, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpScooterUpdate, authz.ResourceRef{Type: authz.ResourceScooter}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	return s.update(ctx, p, authz.OpScooterUpdate, idRaw, raw, updateSchema, opUpdate)
}

// UpdateMaintenance applies a partial change restricted to the maintenance
// subset. This is the only mutating scooter operation service engineers
// hold.
func (s *Service) UpdateMaintenance(ctx context.Context, p authz.Principal, idRaw string, raw map[string]string) (*Scooter, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpScooterUpdateMaintenance, authz.ResourceRef{Type: authz.ResourceScooter}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	return s.update(ctx, p, authz.OpScooterUpdateMaintenance, idRaw, raw, maintenanceSchema, opUpdateMaintenance)
}

func (s *Service) update(ctx context.Context, p authz.Principal, op authz.Operation, idRaw string, raw map[string]string, schema []validation.FieldSchema, statementOp string) (*Scooter, error) {
	id, err := s.validateID(ctx, p.Username, string(op), idRaw)
	if err != nil {
		return nil, err
	}
	res := s.check.Validate(ctx, p.Username, string(op), raw, schema, notEmpty, socRange, coordPair)
	if !res.OK {
		return nil, res.Err()
	}

	current, err := s.byID(ctx, p.Username, id)
	if err != nil {
		return nil, err
	}
	next := *current
	applyRecord(&next, res.Record)
	if next.MinSOC >= next.MaxSOC {
		// A valid pair in the request can still conflict with the stored
		// counterpart values after the merge.
		return nil, &validation.Error{Field: "min_soc", Reason: validation.ReasonInconsistent}
	}

	var binds []store.Bind
	switch statementOp {
	case opUpdate:
		binds = []store.Bind{
			store.System("id", id),
			store.System("brand", next.Brand),
			store.System("model", next.Model),
			store.System("serial_number", next.SerialNumber),
			store.System("top_speed", next.TopSpeed),
			store.System("battery_capacity", next.BatteryCapacity),
			store.System("state_of_charge", next.StateOfCharge),
			store.System("min_soc", next.MinSOC),
			store.System("max_soc", next.MaxSOC),
			store.System("latitude", next.Latitude),
			store.System("longitude", next.Longitude),
			store.System("out_of_service", next.OutOfService),
			store.System("mileage", next.Mileage),
			store.System("last_maintenance", nullable(next.LastMaintenance)),
		}
	case opUpdateMaintenance:
		binds = []store.Bind{
			store.System("id", id),
			store.System("state_of_charge", next.StateOfCharge),
			store.System("min_soc", next.MinSOC),
			store.System("max_soc", next.MaxSOC),
			store.System("latitude", next.Latitude),
			store.System("longitude", next.Longitude),
			store.System("out_of_service", next.OutOfService),
			store.System("mileage", next.Mileage),
			store.System("last_maintenance", nullable(next.LastMaintenance)),
		}
	}

	n, err := s.gw.Exec(ctx, p.Username, statementOp, binds...)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &store.Failure{Op: statementOp, Code: store.CodeNotFound}
	}
	return &next, nil
}

// Delete removes a scooter from the fleet.
func (s *Service) Delete(ctx context.Context, p authz.Principal, idRaw string) error {
	if d := s.guard.Authorize(ctx, p, authz.OpScooterDelete, authz.ResourceRef{Type: authz.ResourceScooter}); !d.Allowed {
		return authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpScooterDelete), idRaw)
	if err != nil {
		return err
	}
	n, err := s.gw.Exec(ctx, p.Username, opDelete, store.System("id", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return &store.Failure{Op: opDelete, Code: store.CodeNotFound}
	}
	return nil
}

func (s *Service) validateID(ctx context.Context, actor, operation, idRaw string) (string, error) {
	res := s.check.Validate(ctx, actor, operation, map[string]string{"id": idRaw}, idSchema)
	if !res.OK {
		return "", res.Err()
	}
	return res.Record.MustGet("id").Str(), nil
}

func (s *Service) byID(ctx context.Context, actor, id string) (*Scooter, error) {
	var r row
	err := s.gw.Query(ctx, actor, opGetByID, func(rows *sql.Rows) error {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		var err error
		r, err = scanRow(rows)
		return err
	}, store.System("id", id))
	if err != nil {
		return nil, err
	}
	sc := fromRow(r)
	return &sc, nil
}

// applyRecord overwrites fields present in the record and leaves the rest.
func applyRecord(sc *Scooter, rec validation.Record) {
	if v, ok := rec.Get("brand"); ok {
		sc.Brand = v.Str()
	}
	if v, ok := rec.Get("model"); ok {
		sc.Model = v.Str()
	}
	if v, ok := rec.Get("serial_number"); ok {
		sc.SerialNumber = v.Str()
	}
	if v, ok := rec.Get("top_speed"); ok {
		sc.TopSpeed = v.Int()
	}
	if v, ok := rec.Get("battery_capacity"); ok {
		sc.BatteryCapacity = v.Int()
	}
	if v, ok := rec.Get("state_of_charge"); ok {
		sc.StateOfCharge = v.Int()
	}
	if v, ok := rec.Get("min_soc"); ok {
		sc.MinSOC = v.Int()
	}
	if v, ok := rec.Get("max_soc"); ok {
		sc.MaxSOC = v.Int()
	}
	if v, ok := rec.Get("latitude"); ok {
		sc.Latitude = v.Float()
	}
	if v, ok := rec.Get("longitude"); ok {
		sc.Longitude = v.Float()
	}
	if v, ok := rec.Get("out_of_service"); ok {
		sc.OutOfService = v.Bool()
	}
	if v, ok := rec.Get("mileage"); ok {
		sc.Mileage = v.Int()
	}
	if v, ok := rec.Get("last_maintenance"); ok {
		sc.LastMaintenance = v.Str()
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanRow(rows *sql.Rows) (row, error) {
	var r row
	err := rows.Scan(&r.ID, &r.Brand, &r.Model, &r.SerialNumber, &r.TopSpeed, &r.BatteryCapacity,
		&r.StateOfCharge, &r.MinSOC, &r.MaxSOC, &r.Latitude, &r.Longitude, &r.OutOfService,
		&r.Mileage, &r.LastMaintenance, &r.InServiceAt)
	return r, err
}

func fromRow(r row) Scooter {
	return Scooter{
		ID:              r.ID,
		Brand:           r.Brand,
		Model:           r.Model,
		SerialNumber:    r.SerialNumber,
		TopSpeed:        r.TopSpeed,
		BatteryCapacity: r.BatteryCapacity,
		StateOfCharge:   r.StateOfCharge,
		MinSOC:          r.MinSOC,
		MaxSOC:          r.MaxSOC,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		OutOfService:    r.OutOfService,
		Mileage:         r.Mileage,
		LastMaintenance: r.LastMaintenance.String,
		InServiceAt:     r.InServiceAt,
	}
}
