package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
	customjwt "github.com/smallbiznis/orgauth/internal/jwt"
	"github.com/smallbiznis/orgauth/internal/service"
)

// fixture wires identity and membership services against in-memory stores.
type fixture struct {
	users      *memoryUserRepo
	orgs       *memoryOrgRepo
	tokens     *customjwt.Generator
	identity   *service.IdentityService
	membership *service.MembershipService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := newMemoryUserRepo()
	orgs := newMemoryOrgRepo()
	manager := customjwt.NewKeyManager(&memoryKeyRepo{}, node)
	tokens := customjwt.NewGenerator(manager, "orgauth", time.Minute, time.Hour, zap.NewNop())
	logger := zap.NewNop()

	return &fixture{
		users:      users,
		orgs:       orgs,
		tokens:     tokens,
		identity:   service.NewIdentityService(users, orgs, nil, tokens, node, logger),
		membership: service.NewMembershipService(orgs, users, node, logger),
	}
}

type memoryUserRepo struct {
	mu             sync.Mutex
	byID           map[string]domain.User
	byEmail        map[string]domain.User
	failCreateWith error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]domain.User),
	}
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateWith != nil {
		return domain.User{}, m.failCreateWith
	}
	if _, exists := m.byEmail[user.Email]; exists {
		return domain.User{}, domain.ErrDuplicateEmail
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetByID(ctx context.Context, userID string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

type memberKey struct {
	orgID  string
	userID string
}

type memoryOrgRepo struct {
	mu      sync.Mutex
	orgs    map[string]domain.Organisation
	members map[memberKey]domain.Membership
}

func newMemoryOrgRepo() *memoryOrgRepo {
	return &memoryOrgRepo{
		orgs:    make(map[string]domain.Organisation),
		members: make(map[memberKey]domain.Membership),
	}
}

func (m *memoryOrgRepo) Create(ctx context.Context, org domain.Organisation, founder domain.Membership) (domain.Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	m.orgs[org.ID] = org
	founder.OrgID = org.ID
	m.members[memberKey{orgID: org.ID, userID: founder.UserID}] = founder
	return org, nil
}

func (m *memoryOrgRepo) GetByID(ctx context.Context, orgID string) (domain.Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[orgID]
	if !ok {
		return domain.Organisation{}, domain.ErrNotFound
	}
	return org, nil
}

func (m *memoryOrgRepo) ListForUser(ctx context.Context, userID string) ([]domain.Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orgs []domain.Organisation
	for key := range m.members {
		if key.userID == userID {
			orgs = append(orgs, m.orgs[key.orgID])
		}
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.Before(orgs[j].CreatedAt) })
	return orgs, nil
}

func (m *memoryOrgRepo) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[memberKey{orgID: orgID, userID: userID}]
	return ok, nil
}

func (m *memoryOrgRepo) AddMember(ctx context.Context, member domain.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey{orgID: member.OrgID, userID: member.UserID}
	if _, exists := m.members[key]; exists {
		return nil
	}
	m.members[key] = member
	return nil
}

func (m *memoryOrgRepo) CountMembers(ctx context.Context, orgID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for key := range m.members {
		if key.orgID == orgID {
			count++
		}
	}
	return count, nil
}

type memoryKeyRepo struct {
	mu  sync.Mutex
	key domain.SigningKey
}

func (m *memoryKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key.ID == 0 {
		return domain.SigningKey{}, domain.ErrNotFound
	}
	return m.key, nil
}

func (m *memoryKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return key, nil
}
