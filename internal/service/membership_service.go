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
	"github.com/smallbiznis/orgauth/internal/repository"
)

// MembershipService owns organisation CRUD and membership mutation. Every
// read or write of a shared organisation goes through the member-only rule
// here; no other component touches the member set.
type MembershipService struct {
	orgs   repository.OrgRepository
	users  repository.UserRepository
	node   *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
}

// NewMembershipService wires dependencies.
func NewMembershipService(orgs repository.OrgRepository, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *MembershipService {
	return &MembershipService{
		orgs:   orgs,
		users:  users,
		node:   node,
		logger: logger,
		tracer: otel.Tracer("github.com/smallbiznis/orgauth/internal/service"),
	}
}

// CreateOrg creates an organisation with the caller as its sole member.
// Organisation names are not unique.
func (s *MembershipService) CreateOrg(ctx context.Context, callerID, name, description string) (OrgView, error) {
	ctx, span := s.startSpan(ctx, "MembershipService.CreateOrg")
	defer span.End()

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return OrgView{}, domain.NewValidationError("name", "Name is required.")
	}

	org := domain.Organisation{
		ID:          uuid.NewString(),
		Name:        trimmed,
		Description: strings.TrimSpace(description),
	}
	founder := domain.Membership{
		ID:     s.node.Generate().Int64(),
		UserID: callerID,
	}

	created, err := s.orgs.Create(ctx, org, founder)
	if err != nil {
		span.RecordError(err)
		return OrgView{}, fmt.Errorf("create organisation: %w", err)
	}

	s.audit("membership.org_created", "org_id", created.ID, "user_id", callerID)
	return newOrgView(created), nil
}

// GetOrg returns the organisation when the caller is a member. Unknown ids
// report ErrNotFound before the membership check, matching the observable
// 404-then-403 split.
func (s *MembershipService) GetOrg(ctx context.Context, callerID, orgID string) (OrgView, error) {
	ctx, span := s.startSpan(ctx, "MembershipService.GetOrg")
	defer span.End()

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return OrgView{}, err
	}

	member, err := s.orgs.IsMember(ctx, orgID, callerID)
	if err != nil {
		span.RecordError(err)
		return OrgView{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return OrgView{}, domain.ErrForbidden
	}

	return newOrgView(org), nil
}

// ListOrgs returns every organisation the caller belongs to. An empty list is
// a valid result, never an error.
func (s *MembershipService) ListOrgs(ctx context.Context, callerID string) ([]OrgView, error) {
	ctx, span := s.startSpan(ctx, "MembershipService.ListOrgs")
	defer span.End()

	orgs, err := s.orgs.ListForUser(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list organisations: %w", err)
	}

	views := make([]OrgView, 0, len(orgs))
	for _, org := range orgs {
		views = append(views, newOrgView(org))
	}
	return views, nil
}

// AddMember adds the target user to the organisation. The caller must already
// be a member. Adding an existing member succeeds without duplicating the
// membership row.
func (s *MembershipService) AddMember(ctx context.Context, callerID, orgID, targetUserID string) error {
	ctx, span := s.startSpan(ctx, "MembershipService.AddMember")
	defer span.End()

	if strings.TrimSpace(targetUserID) == "" {
		return domain.NewValidationError("userId", "User id is required.")
	}

	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return err
	}
	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return err
	}

	member, err := s.orgs.IsMember(ctx, orgID, callerID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return domain.ErrForbidden
	}

	membership := domain.Membership{
		ID:     s.node.Generate().Int64(),
		OrgID:  orgID,
		UserID: targetUserID,
	}
	if err := s.orgs.AddMember(ctx, membership); err != nil {
		span.RecordError(err)
		return fmt.Errorf("add member: %w", err)
	}

	s.audit("membership.member_added", "org_id", orgID, "user_id", targetUserID, "added_by", callerID)
	return nil
}

func (s *MembershipService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *MembershipService) audit(event string, attrs ...any) {
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
