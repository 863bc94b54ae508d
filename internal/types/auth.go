package types

import "time"

// UserAuth represents the core user entity in the domain.
type UserAuth struct {
	ID        string    `json:"id"`       // Unique identifier (UUID).
	Username  string    `json:"username"` // Unique username.
	Email     string    `json:"email"`    // Unique email address used for login.
	Password  string    `json:"-"`        // Hashed password (never exposed).
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the public projection of a user returned alongside tokens
// and by the verify endpoint.
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Summary strips a UserAuth down to its public fields.
func (u *UserAuth) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Username: u.Username}
}
