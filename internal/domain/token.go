package domain

import "time"

// TokenPair bundles the access and refresh tokens issued for a user. Neither
// token is persisted; both are verified statelessly.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SigningKey stores the HMAC secret used to sign tokens so issued tokens
// survive a process restart.
type SigningKey struct {
	ID        int64
	KID       string
	Secret    []byte
	Algorithm string
	IsActive  bool
	CreatedAt time.Time
	RotatedAt *time.Time
}
