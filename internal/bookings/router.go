package bookings

import (
	"courtly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	bookings := rg.Group("/bookings")
	{
		// Availability and hold creation accept guests, so auth is
		// optional here.
		bookings.GET("/availability", middleware.OptionalJWTAuth(), controller.CheckAvailability)
		// Every booking starts life as a hold, so the collection POST and
		// the explicit /hold path share a handler.
		bookings.POST("", middleware.OptionalJWTAuth(), controller.CreateHold)
		bookings.POST("/hold", middleware.OptionalJWTAuth(), controller.CreateHold)
		bookings.GET("/:id", middleware.OptionalJWTAuth(), controller.GetBooking)

		authed := bookings.Group("")
		authed.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "OWNER", "ADMIN"))
		{
			authed.POST("/:id/release", controller.ReleaseHold)
			authed.POST("/:id/cancel", controller.CancelBooking)
		}

		owner := bookings.Group("")
		owner.Use(middleware.JWTAuth(), middleware.RequireRoles("OWNER", "ADMIN"))
		{
			owner.POST("/:id/approve", controller.ApproveBooking)
			owner.POST("/:id/reject", controller.RejectBooking)
			owner.POST("/:id/checkin", controller.CheckInBooking)
			owner.POST("/:id/complete", controller.CompleteBooking)
			owner.POST("/:id/no-show", controller.MarkNoShow)
		}

		admin := bookings.Group("")
		admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
		{
			admin.POST("/cleanup", controller.SweepHolds)
		}
	}

	users := rg.Group("/users")
	users.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "OWNER", "ADMIN"))
	{
		users.GET("/bookings", controller.GetUserBookings)
	}

	venues := rg.Group("/venues")
	venues.Use(middleware.JWTAuth(), middleware.RequireRoles("OWNER", "ADMIN"))
	{
		venues.GET("/:id/bookings", controller.GetVenueBookings)
	}
}
