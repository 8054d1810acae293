package types

import "time"

// Role is the closed set of authorization levels a user can hold.
// Free-form role strings are rejected at the boundaries (token
// verification and store reads) so role checks stay exhaustive.
type Role string

const (
	// RoleAdministrator grants full access, including user management.
	RoleAdministrator Role = "administrator"

	// RoleStaff is the default role for regular accounts.
	RoleStaff Role = "staff"
)

// IsValid reports whether the role is one of the predefined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdministrator, RoleStaff:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. Unique, matched
	// case-insensitively.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// Active marks whether the account may authenticate. Deactivated
	// accounts keep their rows but are rejected at the gate.
	Active bool `json:"active" db:"active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
