package rbac

import (
	"fmt"
	"slices"
)

// RoleName is one of the built-in role tags or the custom sentinel.
type RoleName string

const (
	RoleAdmin      RoleName = "admin"
	RoleStaff      RoleName = "staff"
	RoleTechnician RoleName = "technician"
	RoleCustom     RoleName = "custom"
)

// ParseRoleName converts s into a RoleName, rejecting anything outside the
// closed set.
func ParseRoleName(s string) (RoleName, error) {
	switch r := RoleName(s); r {
	case RoleAdmin, RoleStaff, RoleTechnician, RoleCustom:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// IsBuiltin reports whether r has an entry in the default role table.
func (r RoleName) IsBuiltin() bool {
	_, ok := defaultRoles[r]
	return ok
}

// Role is either a built-in role or a reference to a custom role definition.
// The zero value is not a valid role.
type Role struct {
	Name         RoleName `json:"role"`
	CustomRoleID string   `json:"custom_role_id,omitempty"`
}

// BuiltinRole returns the built-in variant. CustomRoleID is always empty.
func BuiltinRole(name RoleName) Role {
	return Role{Name: name}
}

// CustomRole returns the custom variant referencing a custom role definition.
// An empty ref is allowed; such an actor relies on overrides alone.
func CustomRole(ref string) Role {
	return Role{Name: RoleCustom, CustomRoleID: ref}
}

func (r Role) IsBuiltin() bool { return r.Name.IsBuiltin() }

func (r Role) IsCustom() bool { return r.Name == RoleCustom }

func (r Role) String() string {
	if r.IsCustom() && r.CustomRoleID != "" {
		return string(RoleCustom) + ":" + r.CustomRoleID
	}
	return string(r.Name)
}

// defaultRoles is written once at init and only read afterwards. Each list is
// authored independently; admin ⊇ staff ⊇ technician holds but is not derived.
var defaultRoles = map[RoleName][]Permission{
	RoleAdmin: AllPermissions(),
	RoleStaff: {
		WorkOrdersView, WorkOrdersCreate, WorkOrdersEdit,
		EstimatesView, EstimatesCreate,
		InvoicesView, InvoicesCreate,
		InventoryView,
		CustomersView, CustomersManage,
	},
	RoleTechnician: {
		WorkOrdersView, WorkOrdersEdit,
		InventoryView,
		CustomersView,
	},
}

var defaultRoleSets = func() map[RoleName]map[Permission]struct{} {
	sets := make(map[RoleName]map[Permission]struct{}, len(defaultRoles))
	for name, perms := range defaultRoles {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[name] = set
	}
	return sets
}()

// BuiltinRoles lists the roles that carry a default permission set.
func BuiltinRoles() []RoleName {
	return []RoleName{RoleAdmin, RoleStaff, RoleTechnician}
}

// DefaultPermissions returns a copy of the default list for a built-in role,
// or nil for custom and unknown roles.
func DefaultPermissions(name RoleName) []Permission {
	perms, ok := defaultRoles[name]
	if !ok {
		return nil
	}
	return slices.Clone(perms)
}
