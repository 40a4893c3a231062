package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/auth"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/store"
	"urban-mobility/internal/validation"
	"urban-mobility/pkg/crypto"

	"github.com/google/uuid"
)

// ErrCurrentPassword is returned when a password change presents the wrong
// current password.
var ErrCurrentPassword = errors.New("user: current password mismatch")

// systemActor labels audit events for work with no authenticated principal:
// login-time credential lookups and startup seeding.
const systemActor = "system"

// Service manages staff accounts.
//
// Every operation follows the same shape: authorize the principal, validate
// the input, then run registered statements through the gateway. Role
// ceilings apply on top of the rule table: a system admin manages only
// engineer accounts, a super admin also manages system admins, and nobody
// manages a super admin account through the API.
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
		return nil, errors.New("user: guard, validator, gateway, cipher and audit are required")
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

// manageable reports whether the principal's strongest role may manage an
// account holding target.
func manageable(p authz.Principal, target authz.Role) bool {
	for _, r := range p.Roles {
		switch r {
		case authz.RoleSuperAdmin:
			if target == authz.RoleServiceEngineer || target == authz.RoleSystemAdmin {
				return true
			}
		case authz.RoleSystemAdmin:
			if target == authz.RoleServiceEngineer {
				return true
			}
		}
	}
	return false
}

// denyCeiling audits a role-ceiling refusal. The rule table already granted
// the operation; the ceiling is the finer policy on top of it.
func (s *Service) denyCeiling(ctx context.Context, p authz.Principal, op authz.Operation, targetID string) error {
	s.rec.Log(ctx, audit.Event{
		Actor:    p.Username,
		Category: audit.CategoryAccessDenied,
		Details: map[string]string{
			"operation":   string(op),
			"resource":    string(authz.ResourceUser),
			"resource_id": targetID,
			"reason":      "role_ceiling",
		},
		Suspicious: true,
	})
	return authz.ErrDenied
}

// CreateEngineer registers a service engineer account.
func (s *Service) CreateEngineer(ctx context.Context, p authz.Principal, raw map[string]string) (*User, error) {
	return s.create(ctx, p, authz.OpUserCreateEngineer, authz.RoleServiceEngineer, raw)
}

// CreateAdmin registers a system admin account. Only super admins hold the
// grant.
func (s *Service) CreateAdmin(ctx context.Context, p authz.Principal, raw map[string]string) (*User, error) {
	return s.create(ctx, p, authz.OpUserCreateAdmin, authz.RoleSystemAdmin, raw)
}

func (s *Service) create(ctx context.Context, p authz.Principal, op authz.Operation, role authz.Role, raw map[string]string) (*User, error) {
	if d := s.guard.Authorize(ctx, p, op, authz.ResourceRef{Type: authz.ResourceUser}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(op), raw, createSchema)
	if !res.OK {
		return nil, res.Err()
	}
	return s.insert(ctx, role, res.Record, func(ctx context.Context, op string, binds ...store.Bind) (int64, error) {
		return s.gw.Exec(ctx, p.Username, op, binds...)
	})
}

// execFn abstracts over plain and transactional statement execution.
type execFn func(ctx context.Context, op string, binds ...store.Bind) (int64, error)

// insert stores a validated account. Shared by create and startup seeding.
func (s *Service) insert(ctx context.Context, role authz.Role, rec validation.Record, exec execFn) (*User, error) {
	username := rec.MustGet("username").Str()
	firstName := rec.MustGet("first_name").Str()
	lastName := rec.MustGet("last_name").Str()

	hash, err := crypto.HashPassword(rec.MustGet("password").Str())
	if err != nil {
		return nil, err
	}
	usernameEnc, err := s.cipher.EncryptField(username)
	if err != nil {
		return nil, err
	}
	firstEnc, err := s.cipher.EncryptField(firstName)
	if err != nil {
		return nil, err
	}
	lastEnc, err := s.cipher.EncryptField(lastName)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           s.newID(),
		Username:     username,
		Role:         role,
		FirstName:    firstName,
		LastName:     lastName,
		RegisteredAt: s.clock().UTC(),
	}
	_, err = exec(ctx, opCreate,
		store.System("id", u.ID),
		store.System("username_digest", s.cipher.LookupDigest(username)),
		store.SystemSensitive("username_enc", usernameEnc),
		store.System("role", string(role)),
		store.SystemSensitive("first_name_enc", firstEnc),
		store.SystemSensitive("last_name_enc", lastEnc),
		store.SystemSensitive("password_hash", hash),
		store.System("registered_at", u.RegisteredAt),
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// List returns all staff accounts. sortRaw selects a pre-registered sort
// variant; anything outside the enumeration is rejected before the gateway
// sees it.
func (s *Service) List(ctx context.Context, p authz.Principal, sortRaw string) ([]User, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpUserList, authz.ResourceRef{Type: authz.ResourceUser}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpUserList), map[string]string{"sort": sortRaw}, listSchema)
	if !res.OK {
		return nil, res.Err()
	}
	sortKey := ""
	if v, ok := res.Record.Get("sort"); ok {
		sortKey = v.Str()
	}

	var out []User
	err := s.gw.QuerySorted(ctx, p.Username, opList, sortKey, func(rows *sql.Rows) error {
		for rows.Next() {
			r, err := scanRow(rows)
			if err != nil {
				return err
			}
			u, _, err := s.decode(r)
			if err != nil {
				return err
			}
			out = append(out, *u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update changes username and name fields on a managed account. Role changes
// go through delete and re-create; there is no role mutation statement.
func (s *Service) Update(ctx context.Context, p authz.Principal, idRaw string, raw map[string]string) (*User, error) {
	if d := s.guard.Authorize(ctx, p, authz.OpUserUpdate, authz.ResourceRef{Type: authz.ResourceUser}); !d.Allowed {
		return nil, authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpUserUpdate), idRaw)
	if err != nil {
		return nil, err
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpUserUpdate), raw, updateSchema, updateNotEmpty)
	if !res.OK {
		return nil, res.Err()
	}

	current, _, err := s.byID(ctx, p.Username, id)
	if err != nil {
		return nil, err
	}
	if !manageable(p, current.Role) {
		return nil, s.denyCeiling(ctx, p, authz.OpUserUpdate, id)
	}

	next := *current
	if v, ok := res.Record.Get("username"); ok {
		next.Username = v.Str()
	}
	if v, ok := res.Record.Get("first_name"); ok {
		next.FirstName = v.Str()
	}
	if v, ok := res.Record.Get("last_name"); ok {
		next.LastName = v.Str()
	}

	usernameEnc, err := s.cipher.EncryptField(next.Username)
	if err != nil {
		return nil, err
	}
	firstEnc, err := s.cipher.EncryptField(next.FirstName)
	if err != nil {
		return nil, err
	}
	lastEnc, err := s.cipher.EncryptField(next.LastName)
	if err != nil {
		return nil, err
	}

	n, err := s.gw.Exec(ctx, p.Username, opUpdateProfile,
		store.System("id", id),
		store.System("username_digest", s.cipher.LookupDigest(next.Username)),
		store.SystemSensitive("username_enc", usernameEnc),
		store.SystemSensitive("first_name_enc", firstEnc),
		store.SystemSensitive("last_name_enc", lastEnc),
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &store.Failure{Op: opUpdateProfile, Code: store.CodeNotFound}
	}
	return &next, nil
}

// Delete removes a managed account. Principals never delete themselves.
func (s *Service) Delete(ctx context.Context, p authz.Principal, idRaw string) error {
	if d := s.guard.Authorize(ctx, p, authz.OpUserDelete, authz.ResourceRef{Type: authz.ResourceUser}); !d.Allowed {
		return authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpUserDelete), idRaw)
	if err != nil {
		return err
	}
	current, _, err := s.byID(ctx, p.Username, id)
	if err != nil {
		return err
	}
	if current.ID == p.ID || !manageable(p, current.Role) {
		return s.denyCeiling(ctx, p, authz.OpUserDelete, id)
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

// ResetPassword sets a new password on a managed account.
func (s *Service) ResetPassword(ctx context.Context, p authz.Principal, idRaw string, raw map[string]string) error {
	if d := s.guard.Authorize(ctx, p, authz.OpUserResetPassword, authz.ResourceRef{Type: authz.ResourceUser}); !d.Allowed {
		return authz.ErrDenied
	}
	id, err := s.validateID(ctx, p.Username, string(authz.OpUserResetPassword), idRaw)
	if err != nil {
		return err
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpUserResetPassword), raw, passwordSchema)
	if !res.OK {
		return res.Err()
	}
	current, _, err := s.byID(ctx, p.Username, id)
	if err != nil {
		return err
	}
	if !manageable(p, current.Role) {
		return s.denyCeiling(ctx, p, authz.OpUserResetPassword, id)
	}
	return s.setPassword(ctx, p.Username, id, res.Record.MustGet("password").Str())
}

// ChangeOwnPassword lets any principal rotate their own password after
// presenting the current one. currentPassword only meets the hash verifier
// and is therefore not schema-checked.
func (s *Service) ChangeOwnPassword(ctx context.Context, p authz.Principal, currentPassword string, raw map[string]string) error {
	ref := authz.ResourceRef{Type: authz.ResourceUser, ID: p.ID, OwnerID: p.ID}
	if d := s.guard.Authorize(ctx, p, authz.OpUserChangeOwnPassword, ref); !d.Allowed {
		return authz.ErrDenied
	}
	res := s.check.Validate(ctx, p.Username, string(authz.OpUserChangeOwnPassword), raw, passwordSchema)
	if !res.OK {
		return res.Err()
	}

	_, hash, err := s.byID(ctx, p.Username, p.ID)
	if err != nil {
		return err
	}
	ok, err := crypto.VerifyPassword(currentPassword, hash)
	if err != nil || !ok {
		s.rec.Log(ctx, audit.Event{
			Actor:    p.Username,
			Category: audit.CategoryAuth,
			Details: map[string]string{
				"event": "password_change_rejected",
			},
			Suspicious: true,
		})
		return ErrCurrentPassword
	}
	return s.setPassword(ctx, p.Username, p.ID, res.Record.MustGet("password").Str())
}

func (s *Service) setPassword(ctx context.Context, actor, id, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	n, err := s.gw.Exec(ctx, actor, opSetPassword,
		store.System("id", id),
		store.SystemSensitive("password_hash", hash),
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return &store.Failure{Op: opSetPassword, Code: store.CodeNotFound}
	}
	return nil
}

// validateID runs a path identifier through the validator.
func (s *Service) validateID(ctx context.Context, actor, operation, idRaw string) (string, error) {
	res := s.check.Validate(ctx, actor, operation, map[string]string{"id": idRaw}, idSchema)
	if !res.OK {
		return "", res.Err()
	}
	return res.Record.MustGet("id").Str(), nil
}

// byID loads and decrypts one account row.
func (s *Service) byID(ctx context.Context, actor, id string) (*User, string, error) {
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
		return nil, "", err
	}
	return s.decode(r)
}

// LookupByUsername implements the credential directory for the login flow.
func (s *Service) LookupByUsername(ctx context.Context, username string) (auth.Credential, error) {
	var r row
	err := s.gw.Query(ctx, systemActor, opGetByUsername, func(rows *sql.Rows) error {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		var err error
		r, err = scanRow(rows)
		return err
	}, store.System("username_digest", s.cipher.LookupDigest(username)))
	if err != nil {
		return auth.Credential{}, asDirectoryErr(err)
	}
	u, hash, err := s.decode(r)
	if err != nil {
		return auth.Credential{}, err
	}
	return auth.Credential{ID: u.ID, Username: u.Username, Role: string(u.Role), PasswordHash: hash}, nil
}

// LookupByID implements the credential directory for token refresh.
func (s *Service) LookupByID(ctx context.Context, id string) (auth.Credential, error) {
	var r row
	err := s.gw.Query(ctx, systemActor, opGetByID, func(rows *sql.Rows) error {
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
		return auth.Credential{}, asDirectoryErr(err)
	}
	u, hash, err := s.decode(r)
	if err != nil {
		return auth.Credential{}, err
	}
	return auth.Credential{ID: u.ID, Username: u.Username, Role: string(u.Role), PasswordHash: hash}, nil
}

func asDirectoryErr(err error) error {
	if f, ok := store.AsFailure(err); ok && f.Code == store.CodeNotFound {
		return auth.ErrUnknownUser
	}
	return err
}

// EnsureBootstrapAdmin seeds the first super admin from configuration when
// the users table is empty. The configured credentials pass the same schema
// as any other account; a weak bootstrap password is a startup fault, not a
// stored account.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}
	res := s.check.Validate(ctx, systemActor, "user.bootstrap", map[string]string{
		"username":   username,
		"password":   password,
		"first_name": "System",
		"last_name":  "Administrator",
	}, createSchema)
	if !res.OK {
		return res.Err()
	}

	// Count and insert share one transaction so concurrent instances cannot
	// both seed.
	return s.gw.InTx(ctx, systemActor, func(tx store.Tx) error {
		var count int64
		err := tx.Query(ctx, opCount, func(rows *sql.Rows) error {
			if !rows.Next() {
				return rows.Err()
			}
			return rows.Scan(&count)
		})
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		_, err = s.insert(ctx, authz.RoleSuperAdmin, res.Record, tx.Exec)
		return err
	})
}

func scanRow(rows *sql.Rows) (row, error) {
	var r row
	err := rows.Scan(&r.ID, &r.UsernameEnc, &r.Role, &r.FirstNameEnc, &r.LastNameEnc, &r.PasswordHash, &r.RegisteredAt)
	return r, err
}

// decode decrypts a stored row. Undecipherable ciphertext means the key or
// the row is wrong; both are server faults, not caller mistakes.
func (s *Service) decode(r row) (*User, string, error) {
	username, err := s.cipher.DecryptField(r.UsernameEnc)
	if err != nil {
		return nil, "", err
	}
	first, err := s.cipher.DecryptField(r.FirstNameEnc)
	if err != nil {
		return nil, "", err
	}
	last, err := s.cipher.DecryptField(r.LastNameEnc)
	if err != nil {
		return nil, "", err
	}
	return &User{
		ID:           r.ID,
		Username:     username,
		Role:         authz.Role(r.Role),
		FirstName:    first,
		LastName:     last,
		RegisteredAt: r.RegisteredAt,
	}, r.PasswordHash, nil
}
