package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Shubham2003-jha/Backend-Project/internal/config"
	"github.com/Shubham2003-jha/Backend-Project/internal/http/handler"
	"github.com/Shubham2003-jha/Backend-Project/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, userHandler *handler.UserHandler, authMiddleware *middleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", userHandler.Healthz)

	users := r.Group("/api/v1/users")
	{
		users.POST("/register", userHandler.Register)
		users.POST("/login", userHandler.Login)
		users.POST("/refresh-token", userHandler.RefreshToken)

		users.POST("/logout", authMiddleware.RequireUser, userHandler.Logout)
		users.POST("/change-password", authMiddleware.RequireUser, userHandler.ChangePassword)
		users.GET("/current-user", authMiddleware.RequireUser, userHandler.CurrentUser)
		users.PATCH("/update-account", authMiddleware.RequireUser, userHandler.UpdateAccount)
		users.PATCH("/avatar", authMiddleware.RequireUser, userHandler.UpdateAvatar)
		users.PATCH("/cover-image", authMiddleware.RequireUser, userHandler.UpdateCoverImage)
		users.GET("/c/:username", authMiddleware.RequireUser, userHandler.ChannelProfile)
		users.GET("/watch-history", authMiddleware.RequireUser, userHandler.WatchHistory)
	}

	return r
}
