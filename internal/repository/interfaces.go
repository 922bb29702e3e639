package repository

import (
	"context"

	"github.com/smallbiznis/orgauth/internal/domain"
)

// UserRepository exposes persistence for accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID string) (domain.User, error)
}

// OrgRepository exposes organisations and their member sets.
type OrgRepository interface {
	// Create inserts the organisation and enrolls the founder as its first
	// member in a single transaction.
	Create(ctx context.Context, org domain.Organisation, founder domain.Membership) (domain.Organisation, error)
	GetByID(ctx context.Context, orgID string) (domain.Organisation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Organisation, error)
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	// AddMember is idempotent: re-adding an existing member is a no-op.
	AddMember(ctx context.Context, member domain.Membership) error
	CountMembers(ctx context.Context, orgID string) (int64, error)
}

// KeyRepository stores token signing keys.
type KeyRepository interface {
	GetActiveKey(ctx context.Context) (domain.SigningKey, error)
	CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}

// UserCache is a short-TTL read-through cache in front of UserRepository,
// consulted by the authorization middleware on every protected request.
type UserCache interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Set(ctx context.Context, user domain.User) error
}
