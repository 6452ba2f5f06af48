package domain

import (
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Status is the account lifecycle state of a user.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Password length bounds accepted on register, reset and profile update.
// MaxPasswordLength is in bytes; bcrypt rejects anything longer.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// User models an account holder. Credential material never leaves the
// service through JSON.
type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Role                Role       `json:"role"`
	Status              Status     `json:"status"`
	RefreshToken        string     `json:"-"`
	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// ProfileUpdate carries the fields a profile update may change. Nil fields are
// left untouched. PasswordHash is only set when the caller supplied a new
// password and it has already been hashed.
type ProfileUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil
}

// NormalizeEmail lower-cases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
