package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/greenvalley/society-portal-backend/internal/cache"
	"github.com/greenvalley/society-portal-backend/internal/config"
	"github.com/greenvalley/society-portal-backend/internal/database"
	"github.com/greenvalley/society-portal-backend/internal/handlers"
	"github.com/greenvalley/society-portal-backend/internal/middleware"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/greenvalley/society-portal-backend/internal/websocket"
	"github.com/greenvalley/society-portal-backend/pkg/jwt"
	"github.com/greenvalley/society-portal-backend/pkg/sms"
	"github.com/greenvalley/society-portal-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Green Valley Society Portal Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logger); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Amenity catalog cache
	catalogCache, err := cache.New(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, amenity catalog caching disabled")
		catalogCache = cache.NoopCache{}
	}
	defer catalogCache.Close()

	// Background context for the hub and other long-running workers
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	hub := websocket.NewHub(logger)
	go hub.Run(appCtx)

	// Initialize SMS Gateway
	var smsGateway sms.SMSGateway
	if cfg.SMS.Mode == "production" {
		smsGateway = sms.NewURLGateway(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.Mask)
	} else {
		smsGateway = sms.NewDevGateway(logger)
	}
	logger.Infof("SMS gateway: %s", smsGateway.GetName())

	// Initialize repositories
	logger.Info("Initializing services...")
	userRepository := database.NewUserRepository(db)
	amenityRepository := database.NewAmenityRepository(db.DB)
	bookingRepository := database.NewAmenityBookingRepository(db.DB)
	downtimeRepository := database.NewAmenityDowntimeRepository(db.DB)

	// Initialize services
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	auditService := services.NewAuditService(db, cfg.Security.EnableAuditLog)
	notifier := services.NewHubNotifier(hub, smsGateway, logger)
	bookingService := services.NewAmenityBookingService(
		bookingRepository,
		downtimeRepository,
		amenityRepository,
		notifier,
		auditService,
		cfg.Booking.PendingTTL,
		logger,
	)
	amenityService := services.NewAmenityService(amenityRepository, catalogCache, logger)
	authService := services.NewAuthService(userRepository, jwtService, cfg.Security.BcryptCost)

	// Initialize and start cron service
	cronService := services.NewCronService(bookingService, auditService, cfg.Booking.SweepSchedule, cfg.Security.AuditRetention, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("✓ Cron service started")

	// Custom binding tags (time_slot, booking_status, amenity_status, phone)
	if err := validator.RegisterGin(); err != nil {
		logger.Fatalf("Failed to register request validators: %v", err)
	}

	// Rate limiters
	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimit.BookingPerMinute, cfg.RateLimit.BookingBurst)
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginPerMinute)
	go cleanupLimiters(appCtx, bookingLimiter, loginLimiter)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, auditService, logger)
	amenityHandler := handlers.NewAmenityHandler(amenityService, bookingService, auditService, logger)
	adminBookingHandler := handlers.NewAdminBookingHandler(bookingService, auditService, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.CORS.AllowedOrigins, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, hub))

	api := router.Group("/api")
	{
		// Event stream; long-lived, so no request timeout
		api.GET("/ws", middleware.QueryTokenAuthMiddleware(jwtService, logger), wsHandler.Connect)

		timed := api.Group("")
		timed.Use(middleware.RequestTimeout(cfg.Database.QueryTimeout))

		// Authentication routes (public)
		auth := timed.Group("/auth")
		{
			auth.POST("/register", middleware.PerIPRateLimit(loginLimiter, logger), authHandler.Register)
			auth.POST("/login", middleware.PerIPRateLimit(loginLimiter, logger), authHandler.Login)
			auth.GET("/me", middleware.AuthMiddleware(jwtService, logger), authHandler.Me)
		}

		// Resident amenity routes
		amenities := timed.Group("/amenities")
		amenities.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			amenities.GET("", amenityHandler.ListAmenities)
			amenities.GET("/:id/availability", amenityHandler.GetAvailability)
			amenities.POST("/book", middleware.PerUserRateLimit(bookingLimiter, logger), amenityHandler.BookAmenity)
			amenities.GET("/my-bookings", amenityHandler.MyBookings)
			amenities.PATCH("/bookings/:id", amenityHandler.UpdateBookingStatus)
		}

		// Admin routes
		admin := timed.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger))
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/amenities", amenityHandler.AdminListAmenities)
			admin.POST("/amenities", amenityHandler.CreateAmenity)
			admin.PUT("/amenities/:id", amenityHandler.UpdateAmenity)
			admin.PATCH("/amenities/:id/status", amenityHandler.ToggleAmenityStatus)
			admin.DELETE("/amenities/:id", amenityHandler.DeleteAmenity)

			admin.GET("/amenity-bookings", adminBookingHandler.ListBookings)
			admin.PATCH("/amenity-bookings/:id/status", adminBookingHandler.UpdateStatus)
			admin.POST("/amenity-bookings/downtime", adminBookingHandler.ScheduleDowntime)
			admin.GET("/amenity-bookings/downtime", adminBookingHandler.ListDowntime)
			admin.POST("/amenity-bookings/sweep", adminBookingHandler.RunSweep)
		}
	}

	// Create HTTP server. No WriteTimeout: it would cut WebSocket streams.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop cron service
	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Closes every WebSocket client
	stopApp()

	logger.Info("Server exited successfully")
}

// cleanupLimiters drops idle rate limiter entries until ctx is cancelled
func cleanupLimiters(ctx context.Context, limiters ...*middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rl := range limiters {
				rl.Cleanup()
			}
		}
	}
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// Build log entry with basic fields. The query string is omitted:
		// the WebSocket route carries its token there.
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
			fields["role"] = userCtx.Role
		}

		entry := logger.WithFields(fields)

		// Log errors with more details
		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		// Log based on status code
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB, hub *websocket.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":            "healthy",
			"database":          "healthy",
			"websocket_clients": hub.ClientCount(),
			"version":           version,
			"timestamp":         time.Now().Unix(),
		})
	}
}
