package models

import (
	"time"

	"greendrake/rentals/internal/utils"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTenant, RoleLandlord:
		return true
	}
	return false
}

// ParseRole maps user input to a Role. An empty string yields the default role.
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return RoleTenant, true
	}
	r := Role(s)
	return r, r.Valid()
}

// User represents a user in the system.
type User struct {
	Base         `bson:",inline"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password" json:"-"` // Store hash, not plaintext
	Role         Role       `bson:"role" json:"role"`
	IsAdmin      bool       `bson:"is_admin" json:"is_admin"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	Deleted      bool       `bson:"deleted" json:"-"` // Soft delete flag
	DeletedAt    *time.Time `bson:"deleted_at,omitempty" json:"-"`
}

// Owns reports whether the user is the given id.
func (u *User) Owns(id utils.SixID) bool {
	return u != nil && u.ID == id
}
