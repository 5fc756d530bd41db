package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go_alerts_backend/metrics"
	"go_alerts_backend/scheduler"
	"go_alerts_backend/services/alerts"
	"go_alerts_backend/services/audit"
	"go_alerts_backend/services/realtime"
)

// StatusController reports runtime state of the dispatch pipeline
type StatusController struct {
	hub       *realtime.Hub
	sched     *scheduler.Scheduler
	counters  *metrics.Counters
	auditLog  audit.Logger
	evaluator *alerts.Evaluator
}

// NewStatusController creates a new status controller
func NewStatusController(hub *realtime.Hub, sched *scheduler.Scheduler, counters *metrics.Counters, auditLog audit.Logger, evaluator *alerts.Evaluator) *StatusController {
	return &StatusController{
		hub:       hub,
		sched:     sched,
		counters:  counters,
		auditLog:  auditLog,
		evaluator: evaluator,
	}
}

// Status returns scheduler, realtime, counter and audit state in one view
// GET /api/v1/status
func (sc *StatusController) Status(c *gin.Context) {
	resp := gin.H{
		"scheduler": sc.sched.Status(),
		"realtime":  sc.hub.Status(),
		"counters":  sc.counters.Snapshot(),
		"audit":     sc.auditLog.Status(),
	}
	if stats := sc.evaluator.LastStats(); stats != nil {
		resp["last_cycle"] = stats
	}

	c.JSON(http.StatusOK, resp)
}

// RecentNotifications returns the newest audit-log entries
// GET /api/v1/status/notifications?limit=50
func (sc *StatusController) RecentNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := sc.auditLog.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(entries),
		"data":  entries,
	})
}
