package domain

import "time"

// Organisation is a shared tenant. Visibility and mutation are gated on
// membership.
type Organisation struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to an organisation. The (OrgID, UserID) pair is
// unique, which makes member adds idempotent at the storage level.
type Membership struct {
	ID        int64
	OrgID     string
	UserID    string
	CreatedAt time.Time
}
