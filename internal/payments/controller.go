package payments

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"courtly/internal/bookings"
	"courtly/internal/shared/config"
	"courtly/internal/shared/utils/response"
	"courtly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service    Service
	reconciler *Reconciler
	bookingSvc bookings.Service
	cfg        *config.Config
}

func NewController(service Service, reconciler *Reconciler, bookingSvc bookings.Service, cfg *config.Config) *Controller {
	return &Controller{
		service:    service,
		reconciler: reconciler,
		bookingSvc: bookingSvc,
		cfg:        cfg,
	}
}

// HandleWebhook handles POST /api/v1/payments/webhook
//
// The body is read raw before any binding so the signature covers the
// exact bytes the gateway sent. A bad signature is the only 4xx; an
// unknown order is acknowledged with 200 so the gateway stops retrying.
func (c *Controller) HandleWebhook(ctx *gin.Context) {
	rawBody, err := ctx.GetRawData()
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Unable to read body", nil, nil)
		return
	}

	if err := c.reconciler.HandleWebhook(ctx.Request.Context(), rawBody); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			logger.GetDefault().Warn("webhook rejected, bad signature", "remote", ctx.ClientIP())
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid signature", nil, nil)
			return
		}
		logger.GetDefault().Error("webhook processing failed", "error", err.Error())
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Webhook processing failed", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Webhook processed", nil, nil)
}

// VerifyPayment handles GET /api/v1/payments/verify/:orderRef
//
// Clients poll this after initiating checkout. It re-reads the gateway,
// reconciles, and reports the booking's current state.
func (c *Controller) VerifyPayment(ctx *gin.Context) {
	orderRef := ctx.Param("orderRef")

	booking, err := c.reconciler.VerifyOrder(ctx.Request.Context(), orderRef)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Unknown order reference", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Verification failed", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment verified", gin.H{
		"booking_code":   booking.BookingCode,
		"status":         booking.Status.String(),
		"payment_status": booking.PaymentStatus.String(),
	}, nil)
}

// HandleReturn handles GET /api/v1/payments/return
//
// The gateway redirects the browser here after checkout. Query parameters
// are advisory only; the actual state comes from re-verifying against the
// gateway before redirecting to the frontend result page.
func (c *Controller) HandleReturn(ctx *gin.Context) {
	c.redirectAfterVerify(ctx, ctx.Query("orderCode"))
}

// HandleCancel handles GET /api/v1/payments/cancel
//
// Cancellation redirects also re-verify: a user can hit the cancel URL
// after the payment already went through.
func (c *Controller) HandleCancel(ctx *gin.Context) {
	c.redirectAfterVerify(ctx, ctx.Query("orderCode"))
}

func (c *Controller) redirectAfterVerify(ctx *gin.Context, orderRef string) {
	resultURL := c.cfg.Gateway.FrontendResultURL

	if orderRef == "" {
		ctx.Redirect(http.StatusFound, resultURL+"?status=unknown")
		return
	}

	booking, err := c.reconciler.VerifyOrder(ctx.Request.Context(), orderRef)
	if err != nil {
		ctx.Redirect(http.StatusFound, fmt.Sprintf("%s?status=unknown&order=%s", resultURL, url.QueryEscape(orderRef)))
		return
	}

	ctx.Redirect(http.StatusFound, fmt.Sprintf("%s?status=%s&booking=%s",
		resultURL,
		url.QueryEscape(booking.PaymentStatus.String()),
		url.QueryEscape(booking.BookingCode),
	))
}

// CreatePaymentLink handles POST /api/v1/payments/bookings/:id/link
//
// Retry endpoint for holds whose initial link creation failed. The hold
// stays active within its window, so the customer can try again.
func (c *Controller) CreatePaymentLink(ctx *gin.Context) {
	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := c.bookingSvc.GetBooking(ctx.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Booking not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
		return
	}
	if !booking.Status.IsHoldState() {
		response.RespondJSON(ctx, "error", http.StatusConflict, "Booking is not awaiting payment", nil, nil)
		return
	}

	link, err := c.service.CreateSessionForBooking(ctx.Request.Context(), booking)
	if err != nil {
		var unavailable *GatewayUnavailableError
		if errors.As(err, &unavailable) {
			response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Payment gateway unavailable", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to create payment link", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Payment link created", link, nil)
}
