package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/config"
	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/password"
	"github.com/smallbiznis/orgauth/internal/repository"
)

// EnsureAdmin seeds a staff user with its own organisation for dev/e2e
// environments. Skipped entirely when ADMIN_EMAIL is unset.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, orgs repository.OrgRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, orgs, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, orgs repository.OrgRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Admin",
		LastName:     "User",
		PasswordHash: hashed,
		IsActive:     true,
		IsStaff:      true,
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			// Lost a race against a concurrent boot; the seed exists.
			return nil
		}
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	org := domain.Organisation{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%s's Organisation", created.FirstName),
		Description: "Default organisation",
	}
	founder := domain.Membership{
		ID:     node.Generate().Int64(),
		UserID: created.ID,
	}
	if _, err := orgs.Create(ctx, org, founder); err != nil {
		return fmt.Errorf("bootstrap create organisation: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.String("user_id", created.ID),
			zap.String("org_id", org.ID),
		)
	}
	return nil
}
