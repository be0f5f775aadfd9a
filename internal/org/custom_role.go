package org

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mass-workshop/mass/internal/rbac"
)

var (
	ErrCustomRoleNotFound  = errors.New("custom role not found")
	ErrCustomRoleNameEmpty = errors.New("custom role name is required")
	ErrCustomRoleDuplicate = errors.New("custom role name already exists in organization")
	ErrCustomRoleInUse     = errors.New("custom role is assigned to active members")
)

// CustomRole is an organization-defined named permission list.
type CustomRole struct {
	ID          string            `json:"id"`
	OrgID       string            `json:"org_id"`
	Name        string            `json:"name"`
	Permissions []rbac.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func validateCustomRole(name string, perms []rbac.Permission) error {
	if strings.TrimSpace(name) == "" {
		return ErrCustomRoleNameEmpty
	}
	for _, p := range perms {
		if !p.Valid() {
			return fmt.Errorf("%w: %q", rbac.ErrUnknownPermission, p)
		}
	}
	return nil
}
