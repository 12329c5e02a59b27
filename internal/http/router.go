// Package http wires the Gin engine.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/theseyan/418-nits-hacks/internal/config"
	"github.com/theseyan/418-nits-hacks/internal/http/handler"
	"github.com/theseyan/418-nits-hacks/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, logger *zap.Logger, authHandler *handler.AuthHandler, authMiddleware *middleware.Auth) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/authorize", authHandler.Authorize)
		authGroup.POST("/create_account", authHandler.CreateAccount)
		authGroup.POST("/tokens", authHandler.Tokens)
		authGroup.POST("/refresh_tokens", authHandler.RefreshTokens)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/user", authMiddleware.RequireAccessToken, authHandler.User)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
