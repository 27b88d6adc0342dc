package http

import (
	"log/slog"

	"budgetauth/internal/http/handler"
	"budgetauth/internal/http/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires gin routes and middleware.
func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	accessSecret string,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowCredentials = !corsCfg.AllowAllOrigins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	requireAuth := middleware.Auth(accessSecret)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", requireAuth, authHandler.Logout)
	}

	userGroup := r.Group("/user")
	{
		userGroup.PUT("/update/:user_id", requireAuth, authHandler.UpdateUser)
		userGroup.DELETE("/delete/:user_id", requireAuth, authHandler.DeleteUser)
		userGroup.POST("/forgot-password", authHandler.ForgotPassword)
		userGroup.POST("/reset-password", authHandler.ResetPassword)
	}

	r.GET("/api/cleanup-tokens", authHandler.CleanupTokens)

	return r
}
