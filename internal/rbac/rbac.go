// Package rbac holds the permission catalog, the built-in role table, the
// pure permission evaluator and the guard that enforces it on privileged
// server operations.
package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized covers "who are you" failures: no identity, no user
	// record, or no active role assignment.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionDenied covers "you may not do this" failures.
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionDeniedError names the permission an actor was missing.
type PermissionDeniedError struct {
	Permission Permission
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: required %q", string(e.Permission))
}

// Is lets errors.Is(err, ErrPermissionDenied) match.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}
