// Package auth implements user accounts and JWT access tokens. Device
// identity is anonymous by design; auth exists so preferences and inventory
// edits can follow a username across devices.
package auth

import "time"

// Role controls access to admin endpoints.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the defined values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is an account in the PartsBin user directory.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Category  string    `json:"category,omitempty"`
	Subteam   string    `json:"subteam,omitempty"`
	Devices   []string  `json:"devices,omitempty"`
	LastLogin time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
