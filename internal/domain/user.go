package domain

import "time"

// User is a registered account. The ID is server-assigned at creation and is
// never taken from client input.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Phone        string
	IsActive     bool
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
