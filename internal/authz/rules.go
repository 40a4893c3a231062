package authz

import (
	"errors"
	"fmt"
)

// PermissionRule grants a role a set of operations on one resource type.
// OwnOnly narrows the grant to resources owned by the acting principal.
//
// Rules are configuration: the table is built once at startup and read-only
// afterwards. A missing or empty table is a startup fault, never a silent
// default-allow.
type PermissionRule struct {
	Role       Role
	Resource   ResourceType
	Operations []Operation
	OwnOnly    bool
}

// Table is the immutable authorization table.
type Table struct {
	// grants[role][resource][operation] -> ownOnly
	grants map[Role]map[ResourceType]map[Operation]bool
}

func NewTable(rules []PermissionRule) (*Table, error) {
	if len(rules) == 0 {
		return nil, errors.New("authz: permission table is empty")
	}

	t := &Table{grants: make(map[Role]map[ResourceType]map[Operation]bool)}
	for _, r := range rules {
		if !ValidRole(r.Role) {
			return nil, fmt.Errorf("authz: unknown role %q in permission rule", r.Role)
		}
		if r.Resource == "" {
			return nil, fmt.Errorf("authz: rule for role %q has no resource type", r.Role)
		}
		if len(r.Operations) == 0 {
			return nil, fmt.Errorf("authz: rule for role %q on %q grants no operations", r.Role, r.Resource)
		}
		byResource, ok := t.grants[r.Role]
		if !ok {
			byResource = make(map[ResourceType]map[Operation]bool)
			t.grants[r.Role] = byResource
		}
		byOp, ok := byResource[r.Resource]
		if !ok {
			byOp = make(map[Operation]bool)
			byResource[r.Resource] = byOp
		}
		for _, op := range r.Operations {
			if op == "" {
				return nil, fmt.Errorf("authz: empty operation in rule for role %q on %q", r.Role, r.Resource)
			}
			if _, dup := byOp[op]; dup {
				return nil, fmt.Errorf("authz: duplicate grant of %q to role %q", op, r.Role)
			}
			byOp[op] = r.OwnOnly
		}
	}
	return t, nil
}

// grant looks up whether role holds op on resource. The second return is the
// OwnOnly restriction when granted.
func (t *Table) grant(role Role, resource ResourceType, op Operation) (bool, bool) {
	byResource, ok := t.grants[role]
	if !ok {
		return false, false
	}
	byOp, ok := byResource[resource]
	if !ok {
		return false, false
	}
	ownOnly, ok := byOp[op]
	return ok, ownOnly
}

// DefaultRules is the static authorization table for the service.
//
// service_engineer: scooter reads plus the maintenance attribute subset, and
// their own password. system_admin: engineer management, traveller and
// scooter CRUD, audit review. super_admin: additionally manages system
// admins. Absence of a grant is a deny.
func DefaultRules() []PermissionRule {
	engineerScooterOps := []Operation{
		OpScooterRead, OpScooterList, OpScooterUpdateMaintenance,
	}
	adminUserOps := []Operation{
		OpUserCreateEngineer, OpUserList, OpUserUpdate, OpUserDelete, OpUserResetPassword,
	}
	travellerOps := []Operation{
		OpTravellerCreate, OpTravellerRead, OpTravellerUpdate, OpTravellerDelete, OpTravellerSearch,
	}
	scooterOps := []Operation{
		OpScooterCreate, OpScooterRead, OpScooterUpdate, OpScooterUpdateMaintenance,
		OpScooterDelete, OpScooterList,
	}

	return []PermissionRule{
		{Role: RoleServiceEngineer, Resource: ResourceScooter, Operations: engineerScooterOps},
		{Role: RoleServiceEngineer, Resource: ResourceUser, Operations: []Operation{OpUserChangeOwnPassword}, OwnOnly: true},

		{Role: RoleSystemAdmin, Resource: ResourceUser, Operations: adminUserOps},
		{Role: RoleSystemAdmin, Resource: ResourceUser, Operations: []Operation{OpUserChangeOwnPassword}, OwnOnly: true},
		{Role: RoleSystemAdmin, Resource: ResourceTraveller, Operations: travellerOps},
		{Role: RoleSystemAdmin, Resource: ResourceScooter, Operations: scooterOps},
		{Role: RoleSystemAdmin, Resource: ResourceAuditLog, Operations: []Operation{OpAuditReview}},

		{Role: RoleSuperAdmin, Resource: ResourceUser, Operations: append([]Operation{OpUserCreateAdmin}, adminUserOps...)},
		{Role: RoleSuperAdmin, Resource: ResourceUser, Operations: []Operation{OpUserChangeOwnPassword}, OwnOnly: true},
		{Role: RoleSuperAdmin, Resource: ResourceTraveller, Operations: travellerOps},
		{Role: RoleSuperAdmin, Resource: ResourceScooter, Operations: scooterOps},
		{Role: RoleSuperAdmin, Resource: ResourceAuditLog, Operations: []Operation{OpAuditReview}},
	}
}
