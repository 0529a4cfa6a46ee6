// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"courtly/internal/auth"
	"courtly/internal/bookings"
	"courtly/internal/notifications"
	"courtly/internal/payments"
	"courtly/internal/shared/config"
	"courtly/internal/shared/database"
	"courtly/internal/venues"
	"courtly/pkg/cache"
	"courtly/pkg/logger"

	"github.com/gin-gonic/gin"
	"log/slog"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB

	// Cross-package services kept for dependency injection
	venueService   venues.Service
	bookingService bookings.Service
	producer       notifications.Producer
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB) *Router {
	return &Router{
		config: cfg,
		db:     db,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)

		// Venue routes come first so the venue service exists when the
		// booking service is wired.
		r.setupVenueRoutes(api)
		r.setupBookingRoutes(api)
		r.setupPaymentRoutes(api)
	}
}

// BookingService exposes the wired booking service so the server can
// start background workers against it. Only valid after SetupRoutes.
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

// Producer exposes the Kafka producer for shutdown handling.
func (r *Router) Producer() notifications.Producer {
	return r.producer
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "courtly-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "courtly-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

// setupAuthRoutes configures authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.db.PostgreSQL)
	authService := auth.NewService(authRepo, r.config)
	authController := auth.NewController(authService)

	auth.SetupAuthRoutes(rg, authController)
}

// setupVenueRoutes configures venue and court management routes
func (r *Router) setupVenueRoutes(rg *gin.RouterGroup) {
	venueRepo := venues.NewRepository(r.db.PostgreSQL)
	venueService := venues.NewService(venueRepo)
	if r.db.Redis != nil {
		venueService.SetCacheService(cache.NewService(r.db.Redis))
	}
	venueController := venues.NewController(venueService)

	// Keep the service around: bookings need it for court validation
	r.venueService = venueService

	venues.SetupVenueRoutes(rg, venueController)
}

// setupBookingRoutes configures availability, hold and booking lifecycle
// routes together with their optional collaborators
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	appLogger := logger.GetDefault()

	bookingRepo := bookings.NewRepository(r.db.PostgreSQL)
	bookingService := bookings.NewService(bookingRepo, r.venueService, r.config)

	if r.db.Redis != nil {
		bookingService.SetSlotLock(bookings.NewSlotLock(r.db.Redis))
		bookingService.SetCacheService(cache.NewService(r.db.Redis))
	}

	if r.config.Kafka.Enabled {
		producerConfig := notifications.DefaultKafkaProducerConfig()
		producerConfig.Brokers = r.config.Kafka.Brokers
		producerConfig.BookingTopic = r.config.Kafka.BookingTopic

		producer, err := notifications.NewKafkaProducer(producerConfig)
		if err != nil {
			appLogger.Error("Failed to initialize Kafka producer, continuing without events",
				slog.Any("error", err))
		} else {
			bookingService.SetProducer(producer)
			r.producer = producer
		}
	}

	r.bookingService = bookingService

	bookingController := bookings.NewController(bookingService)
	bookings.SetupBookingRoutes(rg, bookingController)
}

// setupPaymentRoutes configures gateway webhook, redirect and payment
// link routes, and closes the bookings <-> payments wiring
func (r *Router) setupPaymentRoutes(rg *gin.RouterGroup) {
	gateway := payments.NewHTTPGateway(r.config.Gateway)

	paymentRepo := payments.NewRepository(r.db.PostgreSQL)
	bookingRepo := bookings.NewRepository(r.db.PostgreSQL)

	paymentService := payments.NewService(paymentRepo, bookingRepo, gateway, r.config)
	reconciler := payments.NewReconciler(paymentRepo, r.bookingService, gateway)

	// The booking service links out to payments for checkout sessions
	// and consults the reconciler before expiring gateway-backed holds.
	r.bookingService.SetPaymentLinker(paymentService)
	r.bookingService.SetExpiredHoldResolver(reconciler)

	paymentController := payments.NewController(paymentService, reconciler, r.bookingService, r.config)
	payments.SetupPaymentRoutes(rg, paymentController)
}
