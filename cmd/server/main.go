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
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/database"
	"github.com/wakemetravel/wakeme-backend/internal/handlers"
	"github.com/wakemetravel/wakeme-backend/internal/middleware"
	"github.com/wakemetravel/wakeme-backend/internal/services"
	"github.com/wakemetravel/wakeme-backend/pkg/geo"
	"github.com/wakemetravel/wakeme-backend/pkg/notify"
	"github.com/wakemetravel/wakeme-backend/pkg/rail"
	"github.com/wakemetravel/wakeme-backend/pkg/validator"
	"github.com/wakemetravel/wakeme-backend/pkg/voice"
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

	logger.Info("Starting WakeMeTravel Backend")
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

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	tripRepo := database.NewTripRepository(db)
	userRepo := database.NewUserRepository(db)
	callLogRepo := database.NewCallLogRepository(db)

	// Initialize external clients
	geocoder := geo.NewGeocoder(geo.Config{
		APIURL: cfg.Geo.APIURL,
		APIKey: cfg.Geo.APIKey,
		Region: cfg.Geo.Region,
	})
	railClient := rail.NewClient(rail.Config{
		APIURL: cfg.Rail.APIURL,
		APIKey: cfg.Rail.APIKey,
	})
	notifier := notify.NewTelegramNotifier(notify.Config{
		APIURL:   cfg.Telegram.APIURL,
		BotToken: cfg.Telegram.BotToken,
	})

	var voiceGateway services.VoiceGateway
	if cfg.Voice.Mode == "production" {
		voiceGateway = voice.NewVAPIGateway(voice.Config{
			APIURL:                cfg.Voice.APIURL,
			APIKey:                cfg.Voice.APIKey,
			ServerURL:             cfg.Server.PublicURL,
			MaxDurationSeconds:    int(cfg.Voice.MaxDuration.Seconds()),
			SilenceTimeoutSeconds: int(cfg.Voice.SilenceTimeout.Seconds()),
		})
		logger.Info("Voice gateway: VAPI (production)")
	} else {
		voiceGateway = &devVoiceGateway{logger: logger}
		logger.Warn("Voice gateway: dev mode, calls are logged instead of dialed")
	}

	phoneValidator := validator.NewPhoneValidator()

	// Initialize services
	proximityService := services.NewProximityService(cfg.Alert)
	tripService := services.NewTripService(tripRepo, userRepo, geocoder, railClient, phoneValidator, cfg.Alert, logger)
	callOrchestrator := services.NewCallOrchestratorService(tripRepo, callLogRepo, voiceGateway, notifier, cfg.Alert, logger)
	trackingService := services.NewTrackingService(tripRepo, proximityService, railClient, notifier, cfg.Alert, logger)
	alertService := services.NewAlertService(tripRepo, callOrchestrator, cfg.Alert, logger)
	cronService := services.NewCronService(trackingService, alertService, cfg.Alert, logger)

	// Initialize handlers
	tripHandler := handlers.NewTripHandler(tripService)
	voiceWebhookHandler := handlers.NewVoiceWebhookHandler(callOrchestrator, logger)

	// Start background workers
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start workers: %v", err)
	}

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

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
	router.GET("/health", healthCheckHandler(db))

	// Voice vendor webhooks
	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.WebhookAuth(cfg.Voice.WebhookSecret))
	{
		webhooks.POST("/voice", voiceWebhookHandler.HandleEvent)
	}

	// API routes
	v1 := router.Group("/api/v1")
	{
		trips := v1.Group("/trips")
		{
			trips.POST("/bus", tripHandler.StartBusTrip)
			trips.POST("/train", tripHandler.StartTrainTrip)
			trips.POST("/train/confirm", tripHandler.ConfirmTrain)
			trips.POST("/location", tripHandler.UpdateLocation)
			trips.POST("/destination", tripHandler.SetDestination)
			trips.GET("/status/:telegram_id", tripHandler.TripStatus)
			trips.POST("/cancel/:telegram_id", tripHandler.CancelTrip)
			trips.POST("/awake/:telegram_id", tripHandler.MarkAwake)
		}

		users := v1.Group("/users")
		{
			users.POST("/phone", tripHandler.CapturePhone)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
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

	// Stop background workers before closing the listener so no retry
	// timer fires into a half-torn-down process
	cronService.Stop()
	callOrchestrator.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// devVoiceGateway stands in for the voice vendor during local
// development. It never dials; it logs the request and hands back a
// synthetic call ID so the rest of the loop behaves normally.
type devVoiceGateway struct {
	logger *logrus.Logger
}

func (g *devVoiceGateway) PlaceCall(req voice.CallRequest) (string, error) {
	callID := fmt.Sprintf("dev-%s", uuid.New().String())
	g.logger.WithFields(logrus.Fields{
		"call_id":     callID,
		"phone":       req.Phone,
		"destination": req.Destination,
		"attempt":     req.Attempt,
	}).Info("DEV MODE: would place wake-up call")
	return callID, nil
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
		} else {
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
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "healthy"
		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbStatus,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
