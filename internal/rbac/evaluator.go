package rbac

import "slices"

// HasPermission decides whether an actor holding role, plus the optional
// per-assignment customPermissions, may exercise required.
//
// Custom permissions are checked first and can only add capability. A
// built-in role then falls back to its default list; the custom role has no
// default list and is denied. Permissions outside the catalog are never
// granted. HasPermission reads only immutable tables and is safe for
// concurrent use.
func HasPermission(role RoleName, customPermissions []Permission, required Permission) bool {
	if !required.Valid() {
		return false
	}
	if slices.Contains(customPermissions, required) {
		return true
	}
	set, ok := defaultRoleSets[role]
	if !ok {
		return false
	}
	_, granted := set[required]
	return granted
}

// Actor is the resolved (user, organization, role, overrides) tuple a single
// access decision is made for.
type Actor struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`

	// CustomPermissions are the per-assignment additive overrides.
	CustomPermissions []Permission `json:"custom_permissions,omitempty"`

	// CustomRolePermissions is the permission list of the custom role
	// definition the assignment references. Ignored unless Role is custom.
	CustomRolePermissions []Permission `json:"custom_role_permissions,omitempty"`
}

// Can applies the full precedence: assignment overrides, then the custom
// role definition for custom roles, then the default table for built-in
// roles. A nil actor can do nothing.
func (a *Actor) Can(required Permission) bool {
	if a == nil || !required.Valid() {
		return false
	}
	if slices.Contains(a.CustomPermissions, required) {
		return true
	}
	if a.Role.IsCustom() {
		return slices.Contains(a.CustomRolePermissions, required)
	}
	return HasPermission(a.Role.Name, nil, required)
}

// Grants returns the explicit permissions carried by the actor beyond its
// role default: overrides merged with the custom role definition when the
// role is custom. Invalid entries are dropped; the result is in catalog order.
func (a *Actor) Grants() []Permission {
	if a == nil {
		return nil
	}
	var merged []Permission
	seen := make(map[Permission]struct{})
	add := func(perms []Permission) {
		for _, p := range perms {
			if _, dup := seen[p]; dup || !p.Valid() {
				continue
			}
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	add(a.CustomPermissions)
	if a.Role.IsCustom() {
		add(a.CustomRolePermissions)
	}
	sortByCatalog(merged)
	return merged
}

// Effective lists every catalog permission the actor holds, in catalog order.
func (a *Actor) Effective() []Permission {
	var out []Permission
	for _, p := range catalog {
		if a.Can(p) {
			out = append(out, p)
		}
	}
	return out
}
