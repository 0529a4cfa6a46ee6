package payments

import (
	"courtly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes configures all payment-related routes
func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller) {
	payments := rg.Group("/payments")
	{
		// Gateway-facing endpoints are unauthenticated; the webhook is
		// protected by its signature, the redirects carry no authority.
		payments.POST("/webhook", controller.HandleWebhook)
		payments.GET("/return", controller.HandleReturn)
		payments.GET("/cancel", controller.HandleCancel)
		payments.GET("/verify/:orderRef", controller.VerifyPayment)

		authed := payments.Group("")
		authed.Use(middleware.JWTAuth(), middleware.RequireRoles("USER", "OWNER", "ADMIN"))
		{
			authed.POST("/bookings/:id/link", controller.CreatePaymentLink)
		}
	}
}
