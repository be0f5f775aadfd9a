package org

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailInvalid   = errors.New("invalid email address")
	ErrEmailDuplicate = errors.New("email already registered")
)

const (
	UserStatusActive      = "active"
	UserStatusDeactivated = "deactivated"
)

// User is a person who can sign in. Users are global; what they may do in
// an organization is decided by their Assignment there.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) Active() bool { return u.Status == UserStatusActive }

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that an email address is syntactically valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrEmailInvalid)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmailInvalid, err)
	}
	if addr.Address != email {
		return fmt.Errorf("%w: expected a bare address", ErrEmailInvalid)
	}
	return nil
}
