package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/service"
)

// AuthHandler exposes the unauthenticated identity endpoints.
type AuthHandler struct {
	Identity *service.IdentityService
	Logger   *zap.Logger
}

// NewAuthHandler creates the handler.
func NewAuthHandler(identity *service.IdentityService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Identity: identity, Logger: logger}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Password  string `json:"password"`
		Phone     string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusUnprocessableEntity, "Bad Request", "Registration unsuccessful", map[string]string{"body": "Invalid JSON payload."})
		return
	}

	payload, err := h.Identity.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Phone:     req.Phone,
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			respondFailure(c, http.StatusUnprocessableEntity, "Bad Request", "Registration unsuccessful", ve.Fields)
			return
		}
		respondServerError(c, h.Logger, err)
		return
	}

	respondSuccess(c, http.StatusCreated, "Registration successful", payload)
}

// Login handles POST /auth/login. All credential failures collapse into the
// same 401 so the response does not reveal whether the email exists.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusUnauthorized, "Bad request", "Authentication failed", nil)
		return
	}

	payload, err := h.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			respondFailure(c, http.StatusUnauthorized, "Bad request", "Authentication failed", nil)
			return
		}
		respondServerError(c, h.Logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Login successful", payload)
}
