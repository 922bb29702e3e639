package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/http/middleware"
	"github.com/smallbiznis/orgauth/internal/service"
)

// OrgHandler exposes the organisation endpoints. All of them run behind the
// bearer middleware, so a resolved caller is always present.
type OrgHandler struct {
	Membership *service.MembershipService
	Logger     *zap.Logger
}

// NewOrgHandler creates the handler.
func NewOrgHandler(membership *service.MembershipService, logger *zap.Logger) *OrgHandler {
	return &OrgHandler{Membership: membership, Logger: logger}
}

// List handles GET /api/organisations.
func (h *OrgHandler) List(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "error", "Authentication required", nil)
		return
	}

	views, err := h.Membership.ListOrgs(c.Request.Context(), caller.ID)
	if err != nil {
		respondServerError(c, h.Logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Organisations retrieved successfully", views)
}

// Create handles POST /api/organisations.
func (h *OrgHandler) Create(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "error", "Authentication required", nil)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Bad Request", "Client error", map[string]string{"body": "Invalid JSON payload."})
		return
	}

	view, err := h.Membership.CreateOrg(c.Request.Context(), caller.ID, req.Name, req.Description)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			respondFailure(c, http.StatusBadRequest, "Bad Request", "Client error", ve.Fields)
			return
		}
		respondServerError(c, h.Logger, err)
		return
	}

	respondSuccess(c, http.StatusCreated, "Organisation created successfully", view)
}

// Get handles GET /api/organisations/:orgId.
func (h *OrgHandler) Get(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "error", "Authentication required", nil)
		return
	}

	view, err := h.Membership.GetOrg(c.Request.Context(), caller.ID, c.Param("orgId"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			respondFailure(c, http.StatusNotFound, "error", "Organisation not found", nil)
		case errors.Is(err, domain.ErrForbidden):
			respondFailure(c, http.StatusForbidden, "error", "You are not a member of this organisation", nil)
		default:
			respondServerError(c, h.Logger, err)
		}
		return
	}

	respondSuccess(c, http.StatusOK, "Organisation retrieved successfully", view)
}

// AddUser handles POST /api/organisations/:orgId/users.
func (h *OrgHandler) AddUser(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "error", "Authentication required", nil)
		return
	}

	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Bad Request", "Client error", map[string]string{"body": "Invalid JSON payload."})
		return
	}

	err := h.Membership.AddMember(c.Request.Context(), caller.ID, c.Param("orgId"), req.UserID)
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			respondFailure(c, http.StatusBadRequest, "Bad Request", "Client error", ve.Fields)
		case errors.Is(err, domain.ErrNotFound):
			respondFailure(c, http.StatusNotFound, "error", "User or organisation not found", nil)
		case errors.Is(err, domain.ErrForbidden):
			respondFailure(c, http.StatusForbidden, "error", "You are not a member of this organisation", nil)
		default:
			respondServerError(c, h.Logger, err)
		}
		return
	}

	respondSuccess(c, http.StatusOK, "User added to organisation successfully", nil)
}
