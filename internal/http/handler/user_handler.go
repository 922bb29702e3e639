package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/service"
)

// UserHandler exposes authenticated user lookup.
type UserHandler struct {
	Identity *service.IdentityService
	Logger   *zap.Logger
}

// NewUserHandler creates the handler.
func NewUserHandler(identity *service.IdentityService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Identity: identity, Logger: logger}
}

// GetUser handles GET /api/users/:userId.
func (h *UserHandler) GetUser(c *gin.Context) {
	view, err := h.Identity.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondFailure(c, http.StatusNotFound, "error", "User not found", nil)
			return
		}
		respondServerError(c, h.Logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, "User retrieved successfully", view)
}
