package user

import (
	"strings"
	"time"
)

type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Active       bool      `json:"active"`
	Staff        bool      `json:"staff,omitempty"`
	Superuser    bool      `json:"superuser,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Record is the stored form of a user, password hash included.
type Record struct {
	User
	PasswordHash []byte `json:"password_hash"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Public is what other users get to see.
type Public struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	ImageURL string `json:"image_url,omitempty"`
}

func (u *User) Public() Public {
	return Public{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName(),
		ImageURL: u.ImageURL,
	}
}

// Matches reports whether term is a case-insensitive substring of the username or either name.
func (u *User) Matches(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(u.Username), term) ||
		strings.Contains(strings.ToLower(u.FirstName), term) ||
		strings.Contains(strings.ToLower(u.LastName), term)
}
