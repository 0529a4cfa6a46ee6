package auth

import (
	"courtly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes configures all auth-related routes
func SetupAuthRoutes(rg *gin.RouterGroup, controller *Controller) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", controller.Register)
		authGroup.POST("/login", controller.Login)
		authGroup.POST("/refresh", controller.RefreshToken)

		authed := authGroup.Group("")
		authed.Use(middleware.JWTAuth())
		{
			authed.POST("/change-password", controller.ChangePassword)
		}
	}
}
