package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/luxestay/hotel-booking-backend/internal/cache"
	"github.com/luxestay/hotel-booking-backend/internal/config"
	"github.com/luxestay/hotel-booking-backend/internal/database"
	"github.com/luxestay/hotel-booking-backend/internal/handlers"
	"github.com/luxestay/hotel-booking-backend/internal/metrics"
	"github.com/luxestay/hotel-booking-backend/internal/middleware"
	"github.com/luxestay/hotel-booking-backend/internal/services"
	"github.com/luxestay/hotel-booking-backend/pkg/chapa"
	"github.com/luxestay/hotel-booking-backend/pkg/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

const reconcileJobTimeout = 10 * time.Minute

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting LuxeStay hotel booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	membershipRepository := database.NewMembershipRepository(db)
	paymentAuditRepository := database.NewPaymentAuditRepository(db, logger)

	// Tier rows are reference data; refuse to serve with an inconsistent table
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	catalog, err := services.LoadTierCatalog(startupCtx, membershipRepository)
	if err != nil {
		cancelStartup()
		logger.Fatalf("Failed to load tier catalog: %v", err)
	}
	logger.WithField("tiers", len(catalog.Tiers())).Info("Tier catalog loaded")

	opts := services.MembershipOptions{
		Timeout:              cfg.Membership.OperationTimeout,
		LeaderboardSize:      cfg.Membership.LeaderboardSize,
		ReconcileConcurrency: cfg.Membership.ReconcileConcurrency,
	}

	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Metrics = metrics.NewLoyalty(registry)
	}

	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(startupCtx, cfg.Redis.URL)
		if err != nil {
			// The leaderboard is served uncached rather than refusing to start
			logger.WithError(err).Warn("Redis unavailable, leaderboard cache disabled")
		} else {
			defer redisClient.Close()
			opts.Cache = cache.NewLeaderboardCache(redisClient, cfg.Redis.LeaderboardTTL)
			logger.Info("Leaderboard cache enabled")
		}
	}
	cancelStartup()

	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	membershipService := services.NewMembershipService(membershipRepository, catalog, logger, opts)
	chapaClient := chapa.NewClient(chapa.Config{
		BaseURL:   cfg.Payment.BaseURL,
		SecretKey: cfg.Payment.SecretKey,
		Timeout:   cfg.Payment.Timeout,
	})

	// Manual runs through the admin routes work without a schedule
	cronService := services.NewCronService(membershipService, cfg.Membership.ReconcileSchedule, reconcileJobTimeout, logger)
	cronStarted := false
	if cfg.Membership.ReconcileSchedule != "" {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		cronStarted = true
		logger.Info("✓ Cron service started - tier reconciliation enabled")
	}
	logger.Info("Services initialized")

	membershipHandler := handlers.NewMembershipHandler(membershipService, logger)
	paymentHandler := handlers.NewPaymentHandler(chapaClient, membershipService, paymentAuditRepository, cfg.Payment, logger)
	adminHandler := handlers.NewAdminHandler(cronService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/leaderboard", membershipHandler.GetLeaderboard)

		membership := v1.Group("/membership")
		membership.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			membership.GET("/me", membershipHandler.GetMyPoints)
			membership.POST("/redeem", membershipHandler.RedeemPoints)
			membership.GET("/tiers", membershipHandler.ListTiers)
			membership.GET("/tiers/:name", middleware.RequireRole(middleware.RoleAdmin), membershipHandler.GetTier)
		}

		payments := v1.Group("/payments")
		payments.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			payments.POST("/initialize", paymentHandler.InitializePayment)
			payments.POST("/verify", paymentHandler.VerifyPayment)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger), middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.POST("/cron/reconcile-tiers", adminHandler.RunTierReconciliation)
			admin.GET("/cron/status", adminHandler.GetCronStatus)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronStarted {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Set by AuthMiddleware
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
