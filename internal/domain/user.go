package domain

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is a registered account. PasswordHash is a bcrypt hash and is never
// serialized to API responses (see Actor / handlers.UserResponse).
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor is the identity performing an operation: the auth collaborator's
// currentUser {id, role} plus the display name used on new records.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// IsAdmin reports whether the actor has unrestricted rights.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor submitted q.
func (a Actor) Owns(q QueryRecord) bool { return a.ID != "" && a.ID == q.StudentID }
