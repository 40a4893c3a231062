package traveller

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/store"
	"urban-mobility/internal/validation"
	"urban-mobility/pkg/crypto"

	"github.com/google/uuid"
)

// Service manages traveller records. All personal fields are encrypted
// before they reach a statement and decrypted after rows come back; the
// database never holds traveller PII in the clear.
type Service struct {
	guard  *authz.Guard
	check  *validation.Validator
	gw     *store.Gateway
	cipher *crypto.FieldCipher
	rec    audit.Recorder

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

func NewService(guard *authz.Guard, check *validation.Validator, gw *store.Gateway, cipher *crypto.FieldCipher, rec audit.Recorder, opts ...Option) (*Service, error) {
	if guard == nil || check == nil || gw == nil || cipher == nil || rec == nil {
		return nil, errors.New("traveller: guard, validator, gateway, cipher and audit are required")
	}
	s := &Service{
		guard:  guard,
		check:  check,
		gw:     gw,
		cipher: cipher,
		rec:    rec,
		clock:  time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create registers a traveller.
func (s *Service) Create(ctx context.Context, p authz.Principal, raw map[string]string) (*Traveller, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpTravellerCreate, authz.ResourceRef{Type: authz.ResourceTraveller}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpTravellerCreate), raw, createSchema)
	if !res.OK {
		return nil, res.Err()
	}

	t := recordToTraveller(res.Record)
	t.ID = s.newID()
	t.RegisteredAt = s.clock().UTC()

	enc, err := s.encrypt(t)
	if err != nil {
		return nil, err
	}
	_, err = s.gw.Exec(ctx, p.Username, opCreate,
		store.System("id", t.ID),
		store.SystemSensitive("first_name_enc", enc.FirstNameEnc),
		store.SystemSensitive("last_name_enc", enc.LastNameEnc),
		store.SystemSensitive("birthday_enc", enc.BirthdayEnc),
		store.System("gender", t.Gender),
		store.SystemSensitive("street_enc", enc.StreetEnc),
		store.SystemSensitive("house_enc", enc.HouseEnc),
		store.SystemSensitive("zip_enc", enc.ZipEnc),
		store.System("city", t.City),
		store.SystemSensitive("email_enc", enc.EmailEnc),
		store.SystemSensitive("phone_enc", enc.PhoneEnc),
		store.SystemSensitive("licence_enc", enc.LicenceEnc),
		store.System("licence_digest", s.cipher.LookupDigest(t.DrivingLicence)),
		store.System("registered_at", t.RegisteredAt),
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one traveller by id.
func (s *Service) Get(ctx context.Context, p authz.Principal, idRaw string) (*Traveller, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpTravellerRead, authz.ResourceRef{Type: authz.ResourceTraveller}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpTravellerRead), idRaw)
	if err != nil {
		return nil, err
	}
	return s.byID(ctx, p.Username, id)
}

// Update applies a partial change to a traveller record.
func (s *Service) Update(ctx context.Context, p authz.Principal, idRaw string, raw map[string]string) (*Traveller, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpTravellerUpdate, authz.ResourceRef{Type: authz.ResourceTraveller}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpTravellerUpdate), idRaw)
	if err != nil {
		return nil, err
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpTravellerUpdate), raw, updateSchema, updateNotEmpty)
	if !res.OK {
		return nil, res.Err()
	}

	current, err := s.byID(ctx, p.Username, id)
	if err != nil {
		return nil, err
	}
	next := *current
	applyRecord(&next, res.Record)

	enc, err := s.encrypt(&next)
	if err != nil {
		return nil, err
	}
	n, err := s.gw.Exec(ctx, p.Username, opUpdate,
		store.System("id", id),
		store.SystemSensitive("first_name_enc", enc.FirstNameEnc),
		store.SystemSensitive("last_name_enc", enc.LastNameEnc),
		store.SystemSensitive("birthday_enc", enc.BirthdayEnc),
		store.System("gender", next.Gender),
		store.SystemSensitive("street_enc", enc.StreetEnc),
		store.SystemSensitive("house_enc", enc.HouseEnc),
		store.SystemSensitive("zip_enc", enc.ZipEnc),
		store.System("city", next.City),
		store.SystemSensitive("email_enc", enc.EmailEnc),
		store.SystemSensitive("phone_enc", enc.PhoneEnc),
		store.SystemSensitive("licence_enc", enc.LicenceEnc),
		store.System("licence_digest", s.cipher.LookupDigest(next.DrivingLicence)),
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &store.Failure{Op: opUpdate, Code: store.CodeNotFound}
	}
	return &next, nil
}

// Delete removes a traveller record.
func (s *Service) Delete(ctx context.Context, p authz.Principal, idRaw string) error {
	if d := s.guard.Authorize(ctx, p, authz.OpTravellerDelete, authz.ResourceRef{Type: authz.ResourceTraveller}); !d.Allowed {
		return authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpTravellerDelete), idRaw)
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

// Search returns travellers whose id, name, email, phone or licence
// contains the term, case-insensitively. Matching happens against decrypted
// values here in the service; the statement itself takes no search
// parameter, so the term can never influence SQL.
func (s *Service) Search(ctx context.Context, p authz.Principal, queryRaw string) ([]Traveller, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpTravellerSearch, authz.ResourceRef{Type: authz.ResourceTraveller}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpTravellerSearch), map[string]string{"query": queryRaw}, searchSchema)
	if !res.OK {
		return nil, res.Err()
	}
	term := strings.ToLower(res.Record.MustGet("query").Str())

	var out []Traveller
	err := s.gw.Query(ctx, p.Username, opListAll, func(rows *sql.Rows) error {
		for rows.Next() {
			r, err := scanRow(rows)
			if err != nil {
				return err
			}
			t, err := s.decode(r)
			if err != nil {
				return err
			}
			if matches(t, term) {
				out = append(out, *t)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func matches(t *Traveller, term string) bool {
	for _, field := range []string{
		t.ID, t.FirstName, t.LastName, t.Email, t.MobilePhone, t.DrivingLicence,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (s *Service) validateID(ctx context.Context, actor, operation, idRaw string) (string, error) {
	res := s.check.Validate(ctx, actor, operation, map[string]string{"id": idRaw}, idSchema)
	if !res.OK {
		return "", res.Err()
	}
	return res.Record.MustGet("id").Str(), nil
}

func (s *Service) byID(ctx context.Context, actor, id string) (*Traveller, error) {
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
	return s.decode(r)
}

// recordToTraveller copies validated values into the domain struct.
func recordToTraveller(rec validation.Record) *Traveller {
	t := &Traveller{}
	applyRecord(t, rec)
	return t
}

// applyRecord overwrites fields present in the record and leaves the rest.
func applyRecord(t *Traveller, rec validation.Record) {
	if v, ok := rec.Get("first_name"); ok {
		t.FirstName = v.Str()
	}
	if v, ok := rec.Get("last_name"); ok {
		t.LastName = v.Str()
	}
	if v, ok := rec.Get("birthday"); ok {
		t.Birthday = v.Str()
	}
	if v, ok := rec.Get("gender"); ok {
		t.Gender = v.Str()
	}
	if v, ok := rec.Get("street_name"); ok {
		t.StreetName = v.Str()
	}
	if v, ok := rec.Get("house_number"); ok {
		t.HouseNumber = v.Str()
	}
	if v, ok := rec.Get("zip_code"); ok {
		t.ZipCode = v.Str()
	}
	if v, ok := rec.Get("city"); ok {
		t.City = v.Str()
	}
	if v, ok := rec.Get("email"); ok {
		t.Email = v.Str()
	}
	if v, ok := rec.Get("mobile_phone"); ok {
		t.MobilePhone = v.Str()
	}
	if v, ok := rec.Get("driving_licence"); ok {
		t.DrivingLicence = v.Str()
	}
}

// encrypt produces the ciphertext columns for a traveller.
func (s *Service) encrypt(t *Traveller) (row, error) {
	var (
		r   row
		err error
	)
	fields := []struct {
		dst   *string
		plain string
	}{
		{&r.FirstNameEnc, t.FirstName},
		{&r.LastNameEnc, t.LastName},
		{&r.BirthdayEnc, t.Birthday},
		{&r.StreetEnc, t.StreetName},
		{&r.HouseEnc, t.HouseNumber},
		{&r.ZipEnc, t.ZipCode},
		{&r.EmailEnc, t.Email},
		{&r.PhoneEnc, t.MobilePhone},
		{&r.LicenceEnc, t.DrivingLicence},
	}
	for _, f := range fields {
		if *f.dst, err = s.cipher.EncryptField(f.plain); err != nil {
			return row{}, err
		}
	}
	return r, nil
}

func scanRow(rows *sql.Rows) (row, error) {
	var r row
	err := rows.Scan(&r.ID, &r.FirstNameEnc, &r.LastNameEnc, &r.BirthdayEnc, &r.Gender,
		&r.StreetEnc, &r.HouseEnc, &r.ZipEnc, &r.City, &r.EmailEnc, &r.PhoneEnc,
		&r.LicenceEnc, &r.RegisteredAt)
	return r, err
}

func (s *Service) decode(r row) (*Traveller, error) {
	t := &Traveller{
		ID:           r.ID,
		Gender:       r.Gender,
		City:         r.City,
		RegisteredAt: r.RegisteredAt,
	}
	fields := []struct {
		dst    *string
		stored string
	}{
		{&t.FirstName, r.FirstNameEnc},
		{&t.LastName, r.LastNameEnc},
		{&t.Birthday, r.BirthdayEnc},
		{&t.StreetName, r.StreetEnc},
		{&t.HouseNumber, r.HouseEnc},
		{&t.ZipCode, r.ZipEnc},
		{&t.Email, r.EmailEnc},
		{&t.MobilePhone, r.PhoneEnc},
		{&t.DrivingLicence, r.LicenceEnc},
	}
	var err error
	for _, f := range fields {
		if *f.dst, err = s.cipher.DecryptField(f.stored); err != nil {
			return nil, err
		}
	}
	return t, nil
}
