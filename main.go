package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go_alerts_backend/config"
	"go_alerts_backend/logging"
	"go_alerts_backend/metrics"
	"go_alerts_backend/models"
	"go_alerts_backend/routes"
	"go_alerts_backend/scheduler"
	"go_alerts_backend/services/alerts"
	"go_alerts_backend/services/audit"
	"go_alerts_backend/services/notify"
	"go_alerts_backend/services/pricefeed"
	"go_alerts_backend/services/realtime"
	"go_alerts_backend/store"
)

// appReady tracks whether background initialization has completed.
// It gates the /ready endpoint so the process can answer health checks
// while the database is still coming up.
var appReady bool
var appReadyMutex sync.RWMutex

// Components the shutdown path needs, assigned by the background initializer.
var (
	initMutex    sync.Mutex
	jobScheduler *scheduler.Scheduler
	liveHub      *realtime.Hub
	mongoAudit   *audit.MongoLogger
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("Config load issue")
	}

	logging.Setup(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("environment", cfg.Environment).Msg("Market alerts backend starting")

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Health endpoints go up first so the platform can see the service
	// while the database is initialized in the background.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Initialize the database and the dispatch pipeline in the background.
	go initializeApp(cfg, router)

	gracefulShutdown(server)
}

// initializeApp connects the database, wires the dispatch pipeline and
// mounts the API routes. On database failure the process stays up in
// limited mode serving health endpoints only.
func initializeApp(cfg *config.Config, router *gin.Engine) {
	db, err := config.InitDB()
	if err != nil {
		log.Error().Err(err).Msg("Database connection failed, continuing in limited mode")
		return
	}

	if err := models.MigrateAlertModels(db); err != nil {
		log.Error().Err(err).Msg("Migration failed")
	} else {
		log.Info().Msg("Database migrations completed")
	}

	counters := metrics.NewCounters()
	alertStore := store.NewAlertStore(db)
	hub := realtime.NewHub(cfg.WSMaxClients)

	var auditLog audit.Logger = audit.NopLogger{}
	var auditMongo *audit.MongoLogger
	if cfg.MongoURI != "" {
		auditMongo, err = audit.NewMongoLogger(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Warn().Err(err).Msg("Audit log unavailable, notifications will not be persisted")
		} else {
			auditLog = auditMongo
		}
	} else {
		log.Info().Msg("No MongoDB URI configured, audit log disabled")
	}

	channels := []notify.Channel{
		notify.NewRealtimeChannel(hub),
		notify.NewPushChannel(cfg.PushGatewayURL, cfg.PushTimeout),
		notify.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.DispatchTimeout),
	}
	dispatcher := notify.NewDispatcher(channels, auditLog, counters)

	oracle := pricefeed.NewBinanceOracle(binance.NewClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey))
	evaluator := alerts.NewEvaluator(alertStore, oracle, dispatcher, counters, cfg.PriceTimeout)

	hostname, _ := os.Hostname()
	locker := store.NewLeaseLocker(db, hostname+"-"+uuid.NewString(), cfg.LeaseTTL)
	sched := scheduler.NewScheduler(evaluator, locker, cfg.EvalInterval, cfg.SchedulerDurable)
	sched.Start()

	routes.SetupRoutes(router, &routes.Services{
		DB:         db,
		Store:      alertStore,
		Hub:        hub,
		Scheduler:  sched,
		Counters:   counters,
		AuditLog:   auditLog,
		Evaluator:  evaluator,
		Dispatcher: dispatcher,
	})

	initMutex.Lock()
	jobScheduler = sched
	liveHub = hub
	mongoAudit = auditMongo
	initMutex.Unlock()

	appReadyMutex.Lock()
	appReady = true
	appReadyMutex.Unlock()

	log.Info().Msg("Application fully initialized")
}

// setupHealthEndpoints registers the probes that must answer before the
// rest of the application is wired up.
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Market Alerts Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if the server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if the service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		appReadyMutex.RLock()
		ready := appReady
		appReadyMutex.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > time.Second {
			log.Warn().
				Str("method", c.Request.Method).
				Str("path", path).
				Int("status", c.Writer.Status()).
				Dur("duration", duration).
				Msg("Request")
		}
	}
}

// gracefulShutdown stops the scheduler, drains the HTTP server and closes
// the realtime hub and storage connections in order.
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	initMutex.Lock()
	sched := jobScheduler
	hub := liveHub
	auditMongo := mongoAudit
	initMutex.Unlock()

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if hub != nil {
		hub.Shutdown()
	}
	if auditMongo != nil {
		if err := auditMongo.Close(); err != nil {
			log.Warn().Err(err).Msg("Audit log close failed")
		}
	}
	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
			log.Info().Msg("Database connection closed")
		}
	}

	log.Info().Msg("Server shutdown completed")
}
