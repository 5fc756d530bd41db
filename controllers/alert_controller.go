package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go_alerts_backend/models"
	"go_alerts_backend/services/alerts"
	"go_alerts_backend/store"
)

// AlertController handles alert management endpoints
type AlertController struct {
	store     store.AlertStore
	evaluator *alerts.Evaluator
}

// NewAlertController creates a new alert controller
func NewAlertController(st store.AlertStore, evaluator *alerts.Evaluator) *AlertController {
	return &AlertController{store: st, evaluator: evaluator}
}

// CreateAlert registers a new price alert
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	var request struct {
		UserID    uint            `json:"user_id" binding:"required"`
		Symbol    string          `json:"symbol" binding:"required"`
		Condition string          `json:"condition" binding:"required"`
		Threshold decimal.Decimal `json:"threshold"`
		ExpiresAt *time.Time      `json:"expires_at"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidCondition(request.Condition) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid condition",
			"conditions": models.ValidConditions(),
		})
		return
	}
	if request.Threshold.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Threshold must not be negative"})
		return
	}

	alert := models.Alert{
		UserID:    request.UserID,
		Symbol:    strings.ToUpper(strings.TrimSpace(request.Symbol)),
		Condition: request.Condition,
		Threshold: request.Threshold,
		IsActive:  true,
		ExpiresAt: request.ExpiresAt,
	}
	if err := ac.store.CreateAlert(c.Request.Context(), &alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// GetAlerts returns all alerts, optionally only the currently evaluable ones
// GET /api/v1/alerts?active=true
func (ac *AlertController) GetAlerts(c *gin.Context) {
	list, err := ac.store.ListAlerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	if c.Query("active") == "true" {
		now := time.Now()
		list = lo.Filter(list, func(a models.Alert, _ int) bool {
			return a.Evaluable(now)
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(list),
		"data":  list,
	})
}

// GetAlert returns a single alert by id
// GET /api/v1/alerts/:id
func (ac *AlertController) GetAlert(c *gin.Context) {
	id, err := parseAlertID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	alert, err := ac.store.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// DeactivateAlert switches an alert off without deleting it
// PUT /api/v1/alerts/:id/deactivate
func (ac *AlertController) DeactivateAlert(c *gin.Context) {
	id, err := parseAlertID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := ac.store.DeactivateAlert(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deactivated"})
}

// DeleteAlert removes an alert permanently
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	id, err := parseAlertID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := ac.store.DeleteAlert(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}

// EvaluateNow runs one evaluation cycle immediately
// POST /api/v1/alerts/evaluate
func (ac *AlertController) EvaluateNow(c *gin.Context) {
	stats, err := ac.evaluator.EvaluateAlerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func parseAlertID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
