package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/config"
	"github.com/smallbiznis/orgauth/internal/domain"
	httptransport "github.com/smallbiznis/orgauth/internal/http"
	"github.com/smallbiznis/orgauth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/orgauth/internal/http/middleware"
	customjwt "github.com/smallbiznis/orgauth/internal/jwt"
	"github.com/smallbiznis/orgauth/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memoryOrgRepo, *memoryUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := newMemoryUserRepo()
	orgs := newMemoryOrgRepo()
	manager := customjwt.NewKeyManager(&memoryKeyRepo{}, node)
	tokens := customjwt.NewGenerator(manager, "orgauth", time.Minute, time.Hour, zap.NewNop())
	logger := zap.NewNop()

	identity := service.NewIdentityService(users, orgs, nil, tokens, node, logger)
	membership := service.NewMembershipService(orgs, users, node, logger)

	cfg := config.Config{
		ServiceName:        "orgauth-test",
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
	}

	router := httptransport.NewRouter(cfg, logger,
		handler.NewAuthHandler(identity, logger),
		handler.NewUserHandler(identity, logger),
		handler.NewOrgHandler(membership, logger),
		&httpmiddleware.Auth{Identity: identity, Logger: logger},
	)
	return router, orgs, users
}

type envelope struct {
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode"`
	Errors     map[string]string `json:"errors"`
	Data       json.RawMessage   `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if len(rec.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

type authData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		UserID    string `json:"userId"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	} `json:"user"`
}

func register(t *testing.T, router *gin.Engine, email, firstName string) authData {
	t.Helper()
	rec, env := doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"email":     email,
		"firstName": firstName,
		"lastName":  "Tester",
		"password":  "pw123456",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestRegisterEndToEnd(t *testing.T) {
	router, orgs, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"email":     "a@x.com",
		"firstName": "A",
		"lastName":  "B",
		"password":  "pw123456",
		"userId":    "attacker-chosen-id",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Registration successful", env.Message)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	require.NotEmpty(t, data.RefreshToken)
	require.NotEqual(t, "attacker-chosen-id", data.User.UserID)

	// Default organisation with exactly one member.
	listed, err := orgs.ListForUser(context.Background(), data.User.UserID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "A's Organisation", listed[0].Name)
	count, err := orgs.CountMembers(context.Background(), listed[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestRegisterDuplicateEmailReturns422(t *testing.T) {
	router, _, _ := newTestRouter(t)
	register(t, router, "a@x.com", "A")

	rec, env := doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"email":     "A@X.com",
		"firstName": "A",
		"lastName":  "B",
		"password":  "pw123456",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Registration unsuccessful", env.Message)
	require.Equal(t, http.StatusUnprocessableEntity, env.StatusCode)
	require.Contains(t, env.Errors, "email")
}

func TestRegisterMissingFieldsReturns422(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/auth/register", "", gin.H{
		"email": "a@x.com",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, env.Errors, "firstName")
	require.Contains(t, env.Errors, "lastName")
	require.Contains(t, env.Errors, "password")
}

func TestLoginWrongPasswordReturns401WithoutTokens(t *testing.T) {
	router, _, _ := newTestRouter(t)
	register(t, router, "a@x.com", "A")

	rec, env := doJSON(t, router, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "a@x.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Authentication failed", env.Message)
	require.Equal(t, http.StatusUnauthorized, env.StatusCode)
	require.NotContains(t, rec.Body.String(), "accessToken")
	require.NotContains(t, rec.Body.String(), "refreshToken")
}

func TestLoginSuccess(t *testing.T) {
	router, _, _ := newTestRouter(t)
	registered := register(t, router, "a@x.com", "A")

	rec, env := doJSON(t, router, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "a@x.com",
		"password": "pw123456",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Login successful", env.Message)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	require.Equal(t, registered.User.UserID, data.User.UserID)
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/api/organisations", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, http.StatusUnauthorized, env.StatusCode)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/organisations", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerResolutionStoreFailureReturns500(t *testing.T) {
	router, _, users := newTestRouter(t)
	registered := register(t, router, "a@x.com", "A")

	// A broken user store must surface as a server error, not as a rejected
	// credential.
	users.failGetByIDWith = errors.New("storage unavailable")

	rec, env := doJSON(t, router, http.MethodGet, "/api/organisations", registered.AccessToken, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal server error", env.Message)
	require.Equal(t, http.StatusInternalServerError, env.StatusCode)

	users.failGetByIDWith = nil
	rec, _ = doJSON(t, router, http.MethodGet, "/api/organisations", registered.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListOrganisationsReturnsArray(t *testing.T) {
	router, _, _ := newTestRouter(t)
	alice := register(t, router, "alice@x.com", "Alice")

	rec, env := doJSON(t, router, http.MethodGet, "/api/organisations", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// data is the list itself, not an object wrapping it.
	var listed []struct {
		OrgID string `json:"orgId"`
		Name  string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	require.Equal(t, "Alice's Organisation", listed[0].Name)
}

func TestUnknownMethodReturns405(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/auth/register", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefreshTokenRejectedAsBearer(t *testing.T) {
	router, _, _ := newTestRouter(t)
	registered := register(t, router, "a@x.com", "A")

	rec, _ := doJSON(t, router, http.MethodGet, "/api/organisations", registered.RefreshToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserByID(t *testing.T) {
	router, _, _ := newTestRouter(t)
	registered := register(t, router, "a@x.com", "A")

	rec, env := doJSON(t, router, http.MethodGet, "/api/users/"+registered.User.UserID, registered.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(env.Data), registered.User.UserID)
	require.NotContains(t, rec.Body.String(), "password")

	rec, env = doJSON(t, router, http.MethodGet, "/api/users/no-such-user", registered.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "User not found", env.Message)
}

func TestOrganisationVisibility(t *testing.T) {
	router, _, _ := newTestRouter(t)
	alice := register(t, router, "alice@x.com", "Alice")
	bob := register(t, router, "bob@x.com", "Bob")

	rec, env := doJSON(t, router, http.MethodPost, "/api/organisations", alice.AccessToken, gin.H{
		"name":        "Engineering",
		"description": "Product engineering",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		OrgID string `json:"orgId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.OrgID)

	// Member sees full data.
	rec, env = doJSON(t, router, http.MethodGet, "/api/organisations/"+created.OrgID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(env.Data), "Engineering")

	// Authenticated non-member is forbidden.
	rec, env = doJSON(t, router, http.MethodGet, "/api/organisations/"+created.OrgID, bob.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, http.StatusForbidden, env.StatusCode)

	// Unknown id is 404 regardless of caller.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/organisations/no-such-org", bob.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = doJSON(t, router, http.MethodGet, "/api/organisations/no-such-org", alice.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrganisationValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)
	alice := register(t, router, "alice@x.com", "Alice")

	rec, env := doJSON(t, router, http.MethodPost, "/api/organisations", alice.AccessToken, gin.H{
		"description": "no name",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, http.StatusBadRequest, env.StatusCode)
	require.Contains(t, env.Errors, "name")
}

func TestAddUserToOrganisation(t *testing.T) {
	router, orgs, _ := newTestRouter(t)
	alice := register(t, router, "alice@x.com", "Alice")
	bob := register(t, router, "bob@x.com", "Bob")

	rec, env := doJSON(t, router, http.MethodPost, "/api/organisations", alice.AccessToken, gin.H{"name": "Engineering"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		OrgID string `json:"orgId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	addBody := gin.H{"userId": bob.User.UserID}
	path := fmt.Sprintf("/api/organisations/%s/users", created.OrgID)

	// Non-member cannot add, even itself.
	rec, _ = doJSON(t, router, http.MethodPost, path, bob.AccessToken, addBody)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Member adds, twice; the second call is a no-op success.
	rec, env = doJSON(t, router, http.MethodPost, path, alice.AccessToken, addBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "User added to organisation successfully", env.Message)

	rec, _ = doJSON(t, router, http.MethodPost, path, alice.AccessToken, addBody)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := orgs.CountMembers(context.Background(), created.OrgID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// Unknown target user.
	rec, _ = doJSON(t, router, http.MethodPost, path, alice.AccessToken, gin.H{"userId": "no-such-user"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown org.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/organisations/no-such-org/users", alice.AccessToken, addBody)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type memberKey struct {
	orgID  string
	userID string
}

type memoryUserRepo struct {
	mu              sync.Mutex
	byID            map[string]domain.User
	byEmail         map[string]domain.User
	failGetByIDWith error
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
	if m.failGetByIDWith != nil {
		return domain.User{}, m.failGetByIDWith
	}
	user, ok := m.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
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
