// Package model defines domain entities for the application.
package model

import "time"

// User represents a registered account.
// PasswordHash holds the argon2id encoding of the password; the raw
// password is never stored.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserResponse is the API representation of a user.
// It never carries the password hash.
type UserResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToResponse converts a User to its API representation.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// Identity is the resolved per-request identity attached to the context
// after a successful auth check. It lives for the duration of one request.
type Identity struct {
	UserID       string
	Username     string
	ProfileImage *string
}
