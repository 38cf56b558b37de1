package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/smallbiznis/teamdocs-auth/internal/config"
	"github.com/smallbiznis/teamdocs-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/teamdocs-auth/internal/http/middleware"
	"github.com/smallbiznis/teamdocs-auth/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, signinHandler *handler.SigninHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	// Only the sign-in surface is throttled; health probes stay cheap.
	authGroup := r.Group("/auth", rateLimiter.Handler())
	{
		authGroup.GET("/google", signinHandler.Start)
		authGroup.GET("/google/callback", signinHandler.Callback)
		authGroup.GET("/me", authMiddleware.ValidateSession, signinHandler.Me)
	}

	r.GET("/healthz", signinHandler.Healthz)

	return r
}
