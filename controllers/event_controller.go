package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go_alerts_backend/services/notify"
)

// EventController handles administrative event fan-out endpoints
type EventController struct {
	dispatcher *notify.Dispatcher
}

// NewEventController creates a new event controller
func NewEventController(dispatcher *notify.Dispatcher) *EventController {
	return &EventController{dispatcher: dispatcher}
}

// BroadcastEvent fans an arbitrary event out to all notification channels
// POST /api/v1/events
func (ec *EventController) BroadcastEvent(c *gin.Context) {
	var request struct {
		Kind    string                 `json:"kind" binding:"required"`
		Payload map[string]interface{} `json:"payload" binding:"required"`
		Source  string                 `json:"source"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source := request.Source
	if source == "" {
		source = "api"
	}

	outcomes := ec.dispatcher.BroadcastEvent(c.Request.Context(), request.Kind, request.Payload, source)
	c.JSON(http.StatusOK, gin.H{
		"kind":     request.Kind,
		"source":   source,
		"channels": outcomes,
	})
}
