package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/domain"
	"github.com/smallbiznis/orgauth/internal/service"
)

const currentUserKey = "currentUser"

// Auth guards protected routes: it extracts the bearer token, verifies it,
// resolves the claimed user, and attaches it to the request context. Any
// failure ends the request with a single opaque 401.
type Auth struct {
	Identity *service.IdentityService
	Logger   *zap.Logger
}

// RequireUser is the gin middleware enforcing bearer authentication.
func (m *Auth) RequireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortUnauthenticated(c, "Authentication required")
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		abortUnauthenticated(c, "Bearer token required")
		return
	}

	user, err := m.Identity.ResolveAccessToken(c.Request.Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			// Unknown-user claims land here too; reporting them as invalid
			// tokens keeps the endpoint useless for identity enumeration.
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}
		// Store failures are not the caller's fault and must not look like
		// a rejected credential.
		logger := m.Logger
		if logger == nil {
			logger = zap.L()
		}
		logger.Error("resolve bearer user failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":     "error",
			"message":    "Internal server error",
			"statusCode": http.StatusInternalServerError,
		})
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// CurrentUser returns the authenticated user attached by RequireUser.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":     "error",
		"message":    message,
		"statusCode": http.StatusUnauthorized,
	})
}
