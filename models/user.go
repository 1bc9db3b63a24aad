// Package models defines the wire shapes exchanged over the REST API.
//
// The same structs are used by the server to encode responses and by the
// client to decode them. JSON tags follow the API's snake_case convention;
// the client maps these DTOs to the chat package's domain types.
//
// Nullable columns are pointers (*string, *int64) so that an absent value
// round-trips as JSON null instead of an empty string or zero.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// UserRole is the back-office role of an account. It is informational only;
// the messaging API does not gate anything on it.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleMentor UserRole = "mentor"
	UserRoleAdmin  UserRole = "admin"
)

// User is an account as returned by the API.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name"`
	Role         UserRole  `json:"role"`
	AvatarURL    *string   `json:"avatar_url"`
	PasswordHash string    `json:"-"` // never serialized
	CreatedAt    time.Time `json:"created_at"`
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// EmailRegex returns the pattern used to validate email addresses.
func EmailRegex() *regexp.Regexp {
	return emailRegex
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Validate normalizes the request in place and checks its fields:
//   - Email: required, must look like an address
//   - Password: at least 8 characters
//   - Name: optional, at most 64 characters
func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("a valid email is required")
	}

	if utf8.RuneCountInString(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	r.Name = strings.TrimSpace(r.Name)
	if utf8.RuneCountInString(r.Name) > 64 {
		return fmt.Errorf("name must be at most 64 characters")
	}

	return nil
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}
