package models

import "time"

// GuestUserID owns characters created while nobody is signed in.
const GuestUserID = "guest"

// User is the signed-in profile kept in the local store.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	LoginTime time.Time `json:"loginTime"`
}

// OwnerID returns the roster owner for u, falling back to the guest profile.
func OwnerID(u *User) string {
	if u == nil || u.ID == "" {
		return GuestUserID
	}
	return u.ID
}

// LoginRequest carries backend credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest creates a backend account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}
