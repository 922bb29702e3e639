package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/orgauth/internal/config"
	"github.com/smallbiznis/orgauth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/orgauth/internal/http/middleware"
	"github.com/smallbiznis/orgauth/internal/middleware"
)

// NewRouter wires gin routes and middleware. Registration and login stay
// outside the bearer guard; everything under /api requires it.
func NewRouter(cfg config.Config, logger *zap.Logger, authHandler *handler.AuthHandler, userHandler *handler.UserHandler, orgHandler *handler.OrgHandler, authMiddleware *httpmiddleware.Auth) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.ForwardedByClientIP = true
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	api := r.Group("/api", authMiddleware.RequireUser)
	{
		api.GET("/users/:userId", userHandler.GetUser)
		api.GET("/organisations", orgHandler.List)
		api.POST("/organisations", orgHandler.Create)
		api.GET("/organisations/:orgId", orgHandler.Get)
		api.POST("/organisations/:orgId/users", orgHandler.AddUser)
	}

	return r
}
