package venues

import (
	"courtly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupVenueRoutes configures all venue-related routes
func SetupVenueRoutes(rg *gin.RouterGroup, controller *Controller) {
	venues := rg.Group("/venues")
	{
		venues.GET("", controller.ListVenues)
		venues.GET("/:id", controller.GetVenue)

		owner := venues.Group("")
		owner.Use(middleware.JWTAuth(), middleware.RequireRoles("OWNER", "ADMIN"))
		{
			owner.POST("", controller.CreateVenue)
			owner.PUT("/:id", controller.UpdateVenue)
			owner.POST("/:id/courts", controller.AddCourt)
		}
	}

	courts := rg.Group("/courts")
	courts.Use(middleware.JWTAuth(), middleware.RequireRoles("OWNER", "ADMIN"))
	{
		courts.PATCH("/:id/active", controller.SetCourtActive)
	}
}
