package org

import (
	"errors"
	"time"

	"github.com/mass-workshop/mass/internal/rbac"
)

var (
	ErrAssignmentNotFound = errors.New("member not found in organization")
	ErrLastAdmin          = errors.New("organization must keep at least one active admin")
	ErrCustomRoleRequired = errors.New("custom_role_id is only valid with the custom role")
)

// Assignment binds a user to an organization with a role and optional
// additive permission overrides. Unique per (user, organization).
type Assignment struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	OrgID        string            `json:"org_id"`
	Role         rbac.RoleName     `json:"role"`
	CustomRoleID string            `json:"custom_role_id,omitempty"`
	Permissions  []rbac.Permission `json:"permissions"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// RBACRole returns the assignment's role as the evaluator sees it.
func (a *Assignment) RBACRole() rbac.Role {
	if a.Role == rbac.RoleCustom {
		return rbac.CustomRole(a.CustomRoleID)
	}
	return rbac.BuiltinRole(a.Role)
}

// Member is an assignment joined with its user, as listed to admins.
type Member struct {
	Assignment
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// validateRole checks that customRoleID is only set alongside the custom role.
func validateRole(role rbac.RoleName, customRoleID string) error {
	if _, err := rbac.ParseRoleName(string(role)); err != nil {
		return err
	}
	if role != rbac.RoleCustom && customRoleID != "" {
		return ErrCustomRoleRequired
	}
	return nil
}
