package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/jwt"
	pw "github.com/smallbiznis/orgauth/internal/password"
	"github.com/smallbiznis/orgauth/internal/repository"
)

const defaultOrgDescription = "Default organisation"

// RegisterInput carries registration fields. Any client-supplied id is simply
// not part of the shape, so it cannot influence the assigned user id.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Phone     string
}

// IdentityService orchestrates registration, login, and identity resolution.
type IdentityService struct {
	users  repository.UserRepository
	orgs   repository.OrgRepository
	cache  repository.UserCache
	tokens *jwt.Generator
	node   *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
}

// NewIdentityService wires dependencies.
func NewIdentityService(users repository.UserRepository, orgs repository.OrgRepository, cache repository.UserCache, tokens *jwt.Generator, node *snowflake.Node, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		orgs:   orgs,
		cache:  cache,
		tokens: tokens,
		node:   node,
		logger: logger,
		tracer: otel.Tracer("github.com/smallbiznis/orgauth/internal/service"),
	}
}

// Register creates the user, enrolls it in its default organisation, and
// issues a token pair.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (AuthPayload, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.Register")
	defer span.End()

	normalized := normalizeEmail(in.Email)
	fields := map[string]string{}
	if normalized == "" {
		fields["email"] = "Email is required."
	}
	if strings.TrimSpace(in.FirstName) == "" {
		fields["firstName"] = "First name is required."
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields["lastName"] = "Last name is required."
	}
	if in.Password == "" {
		fields["password"] = "Password is required."
	}
	if len(fields) > 0 {
		return AuthPayload{}, &domain.ValidationError{Fields: fields}
	}

	// Advisory fast path; the unique constraint on insert is authoritative.
	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return AuthPayload{}, duplicateEmailError()
	} else if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := pw.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        normalized,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hashed,
		Phone:        strings.TrimSpace(in.Phone),
		IsActive:     true,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return AuthPayload{}, duplicateEmailError()
		}
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("create user: %w", err)
	}

	org := domain.Organisation{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%s's Organisation", created.FirstName),
		Description: defaultOrgDescription,
	}
	founder := domain.Membership{
		ID:     s.node.Generate().Int64(),
		UserID: created.ID,
	}
	if _, err := s.orgs.Create(ctx, org, founder); err != nil {
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("create default organisation: %w", err)
	}

	pair, err := s.tokens.Issue(ctx, created)
	if err != nil {
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.audit("identity.register.success", "user_id", created.ID, "org_id", org.ID)
	return AuthPayload{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: newUserView(created)}, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *IdentityService) Login(ctx context.Context, email, password string) (AuthPayload, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthPayload{}, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("load user: %w", err)
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid || !user.IsActive {
		return AuthPayload{}, domain.ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		span.RecordError(err)
		return AuthPayload{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.audit("identity.login.success", "user_id", user.ID)
	return AuthPayload{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: newUserView(user)}, nil
}

// GetUser returns the public profile for the given user id.
func (s *IdentityService) GetUser(ctx context.Context, userID string) (UserView, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.GetUser")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return UserView{}, err
	}
	return newUserView(user), nil
}

// ResolveAccessToken verifies a bearer token and resolves the claimed user.
// A claim that no longer maps to a user reports domain.ErrInvalidToken, not
// ErrNotFound, so tokens cannot be used to enumerate identities.
func (s *IdentityService) ResolveAccessToken(ctx context.Context, token string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.ResolveAccessToken")
	defer span.End()

	claims, err := s.tokens.Verify(ctx, token, jwt.UseAccess)
	if err != nil {
		return domain.User{}, err
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, claims.UserID); err != nil {
			s.logger.Warn("user cache read failed", zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidToken
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("resolve token user: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, user); err != nil {
			s.logger.Warn("user cache write failed", zap.Error(err))
		}
	}
	return user, nil
}

func (s *IdentityService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *IdentityService) audit(event string, attrs ...any) {
	logger := s.logger
	if logger == nil {
		logger = zap.L()
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func duplicateEmailError() *domain.ValidationError {
	return domain.NewValidationError("email", "A user with this email already exists.")
}
