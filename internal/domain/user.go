package domain

import "time"

// Role is the authority an actor acts with.
type Role string

const (
	RoleRider  Role = "RIDER"
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
	RoleSystem Role = "SYSTEM"
)

// User is an account in the system.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	PushToken string // device token for push delivery, may be empty
	CreatedAt time.Time
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
}

// SystemActor is the actor used by background jobs.
func SystemActor() Actor {
	return Actor{UserID: "system", Role: RoleSystem}
}

// IsAdmin reports whether the actor bypasses ownership checks.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsSystem reports whether the actor is an automated job.
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}
