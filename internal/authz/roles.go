package authz

// Role names. Keep these stable; they are stored in tokens and user rows.
type Role string

const (
	RoleServiceEngineer Role = "service_engineer"
	RoleSystemAdmin     Role = "system_admin"
	RoleSuperAdmin      Role = "super_admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleServiceEngineer, RoleSystemAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Principal is the authenticated actor. It is resolved once per request by
// the auth layer and is opaque to validation and the store; only the guard
// inspects it.
type Principal struct {
	ID       string
	Username string
	Roles    []Role
}

// ResourceType is the closed set of things operations act on.
type ResourceType string

const (
	ResourceUser      ResourceType = "user"
	ResourceTraveller ResourceType = "traveller"
	ResourceScooter   ResourceType = "scooter"
	ResourceAuditLog  ResourceType = "audit_log"
)

// ResourceRef names a concrete resource in an authorization decision. ID and
// OwnerID, when set, are validated identifiers, never raw request fields.
type ResourceRef struct {
	Type    ResourceType
	ID      string
	OwnerID string
}

// Operation identifies one user-invokable operation. The set is closed; the
// guard denies anything it has no rule for, so an operation missing below is
// unreachable rather than unprotected.
type Operation string

const (
	OpUserCreateEngineer    Operation = "user.create_engineer"
	OpUserCreateAdmin       Operation = "user.create_admin"
	OpUserList              Operation = "user.list"
	OpUserUpdate            Operation = "user.update"
	OpUserDelete            Operation = "user.delete"
	OpUserResetPassword     Operation = "user.reset_password"
	OpUserChangeOwnPassword Operation = "user.change_own_password"

	OpTravellerCreate Operation = "traveller.create"
	OpTravellerRead   Operation = "traveller.read"
	OpTravellerUpdate Operation = "traveller.update"
	OpTravellerDelete Operation = "traveller.delete"
	OpTravellerSearch Operation = "traveller.search"

	OpScooterCreate            Operation = "scooter.create"
	OpScooterRead              Operation = "scooter.read"
	OpScooterUpdate            Operation = "scooter.update"
	OpScooterUpdateMaintenance Operation = "scooter.update_maintenance"
	OpScooterDelete            Operation = "scooter.delete"
	OpScooterList              Operation = "scooter.list"

	OpAuditReview Operation = "audit.review"
)

// mutating operations get an authorization-granted audit event on Allow so
// the grant can be correlated with the executed statement that follows.
var mutatingOps = map[Operation]struct{}{
	OpUserCreateEngineer:       {},
	OpUserCreateAdmin:          {},
	OpUserUpdate:               {},
	OpUserDelete:               {},
	OpUserResetPassword:        {},
	OpUserChangeOwnPassword:    {},
	OpTravellerCreate:          {},
	OpTravellerUpdate:          {},
	OpTravellerDelete:          {},
	OpScooterCreate:            {},
	OpScooterUpdate:            {},
	OpScooterUpdateMaintenance: {},
	OpScooterDelete:            {},
}

func (o Operation) Mutating() bool {
	_, ok := mutatingOps[o]
	return ok
}
