package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devsmilefactory/moversfinder-sub006/internal/availability"
	"github.com/devsmilefactory/moversfinder-sub006/internal/config"
	"github.com/devsmilefactory/moversfinder-sub006/internal/database"
	"github.com/devsmilefactory/moversfinder-sub006/internal/dispatch"
	"github.com/devsmilefactory/moversfinder-sub006/internal/handlers"
	"github.com/devsmilefactory/moversfinder-sub006/internal/middleware"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
	"github.com/devsmilefactory/moversfinder-sub006/internal/services"
	"github.com/devsmilefactory/moversfinder-sub006/internal/sweeper"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Redis mirrors availability and fans change events out to other
	// instances; the process still works without it.
	if err := services.InitRedis(cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable, running without mirror", "err", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	broker := propagator.NewBroker(services.RedisClient)
	coordinator := &dispatch.Coordinator{DB: db, Broker: broker, TxTimeout: cfg.AcceptTimeout}
	tracker := &availability.Tracker{DB: db}
	sweepCfg := sweeper.Config{InstantTTL: cfg.InstantTTL, ScheduledLeeway: cfg.ScheduledLeeway}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &sweeper.Runner{
		DB:       db,
		Broker:   broker,
		Cfg:      sweepCfg,
		Interval: cfg.SweepInterval,
		Logger:   logger,
	}
	go runner.Run(ctx)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub, db, broker, logger))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			requests := protected.Group("/requests")
			{
				requests.POST("", handlers.CreateRequest(db, broker))
				requests.GET("/:requestId", handlers.GetRequest(db))
				requests.POST("/:requestId/cancel", handlers.CancelRequest(coordinator))
				requests.POST("/:requestId/complete", handlers.CompleteRequest(coordinator))
				requests.POST("/:requestId/offers", handlers.PlaceOffer(coordinator, hub))
			}

			offers := protected.Group("/offers")
			{
				offers.POST("/:offerId/accept", handlers.AcceptOffer(coordinator, hub))
				offers.POST("/:offerId/withdraw", handlers.WithdrawOffer(coordinator))
				offers.POST("/:offerId/decline", handlers.DeclineOffer(coordinator))
			}

			provider := protected.Group("/provider")
			{
				provider.POST("/online", handlers.SetProviderOnline(tracker))
				provider.POST("/location", handlers.UpdateProviderLocation(tracker))
				provider.GET("/status", handlers.GetProviderStatus(tracker))
			}

			protected.GET("/feeds/:tab", handlers.GetFeed(db))

			protected.POST("/dispatch/sweep", handlers.TriggerSweep(db, broker, sweepCfg))
		}
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
