package models

import "time"

// UserRole is the closed set of roles the workflow guard understands.
type UserRole string

const (
	RoleUser       UserRole = "USER"
	RoleTeamLeader UserRole = "TEAM_LEADER"
	RoleAdmin      UserRole = "ADMIN"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Username     string     `db:"username" json:"username"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Team         string     `db:"team" json:"team"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Actor identifies who is performing a workflow operation. Handlers build it
// from verified JWT claims; request bodies are never trusted for identity.
type Actor struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	Team     string   `json:"team"`
}

// Actor converts claims into the engine's actor view.
func (c *JWTClaims) Actor() Actor {
	return Actor{ID: c.UserID, Username: c.Username, Role: c.Role, Team: c.Team}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
