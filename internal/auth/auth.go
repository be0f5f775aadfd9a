package auth

import (
	"errors"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Identity is the verified caller as asserted by a bearer token. It carries
// who the caller is, not what they may do: roles are resolved server-side.
type Identity struct {
	Subject     string `json:"sub"`
	Email       string `json:"email"`
	OrgID       string `json:"org_id"`
	DisplayName string `json:"display_name"`
	TokenType   string `json:"token_type"` // "access" or "refresh"
}
