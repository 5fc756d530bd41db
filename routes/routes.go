package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go_alerts_backend/controllers"
	"go_alerts_backend/metrics"
	"go_alerts_backend/middleware"
	"go_alerts_backend/scheduler"
	"go_alerts_backend/services/alerts"
	"go_alerts_backend/services/audit"
	"go_alerts_backend/services/notify"
	"go_alerts_backend/services/realtime"
	"go_alerts_backend/store"
)

// Services bundles the shared components the API routes are built on.
type Services struct {
	DB         *gorm.DB
	Store      store.AlertStore
	Hub        *realtime.Hub
	Scheduler  *scheduler.Scheduler
	Counters   *metrics.Counters
	AuditLog   audit.Logger
	Evaluator  *alerts.Evaluator
	Dispatcher *notify.Dispatcher
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, svc *Services) {
	// Initialize controllers
	alertController := controllers.NewAlertController(svc.Store, svc.Evaluator)
	eventController := controllers.NewEventController(svc.Dispatcher)
	statusController := controllers.NewStatusController(svc.Hub, svc.Scheduler, svc.Counters, svc.AuditLog, svc.Evaluator)

	// Limit manual trigger endpoints per client
	triggerLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Realtime websocket attach point
	router.GET("/ws", func(c *gin.Context) {
		svc.Hub.HandleWebSocket(c.Writer, c.Request)
	})

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Alert routes
		alertRoutes := api.Group("/alerts")
		{
			alertRoutes.GET("", alertController.GetAlerts)
			alertRoutes.POST("", alertController.CreateAlert)
			alertRoutes.POST("/evaluate", triggerLimiter.Middleware(), alertController.EvaluateNow)
			alertRoutes.GET("/:id", alertController.GetAlert)
			alertRoutes.PUT("/:id/deactivate", alertController.DeactivateAlert)
			alertRoutes.DELETE("/:id", alertController.DeleteAlert)
		}

		// Administrative event fan-out
		api.POST("/events", triggerLimiter.Middleware(), eventController.BroadcastEvent)

		// Status routes
		statusRoutes := api.Group("/status")
		{
			statusRoutes.GET("", statusController.Status)
			statusRoutes.GET("/notifications", statusController.RecentNotifications)
		}
	}
}
