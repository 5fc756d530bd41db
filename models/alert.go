package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alert represents a user-defined market price alert
type Alert struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	UserID             uint                `gorm:"index" json:"user_id"`
	Symbol             string              `gorm:"index;not null" json:"symbol"` // e.g. BTCUSDT
	Condition          string              `gorm:"not null" json:"condition"`    // above, below, percent_change
	Threshold          decimal.Decimal     `gorm:"type:decimal(20,8)" json:"threshold"`
	IsActive           bool                `gorm:"default:true" json:"is_active"`
	ExpiresAt          *time.Time          `json:"expires_at"`
	LastTriggeredAt    *time.Time          `json:"last_triggered_at"`
	LastTriggeredPrice decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"last_triggered_price"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Alert condition constants
const (
	ConditionAbove         = "above"
	ConditionBelow         = "below"
	ConditionPercentChange = "percent_change"
)

// ValidConditions returns the supported alert conditions
func ValidConditions() []string {
	return []string{ConditionAbove, ConditionBelow, ConditionPercentChange}
}

// IsValidCondition checks if the condition is supported
func IsValidCondition(condition string) bool {
	for _, valid := range ValidConditions() {
		if condition == valid {
			return true
		}
	}
	return false
}

// Expired reports whether the alert's expiry is set and in the past
func (a *Alert) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Evaluable reports whether the alert should be considered in an evaluation cycle.
// A previously triggered alert stays evaluable; re-triggering is governed solely
// by the condition re-evaluating true on a later cycle.
func (a *Alert) Evaluable(now time.Time) bool {
	return a.IsActive && !a.Expired(now)
}

// JobLease backs the distributed scheduler lock. One row per named job; the
// holder that owns a non-expired row is the only instance allowed to run it.
type JobLease struct {
	Name      string    `gorm:"primaryKey" json:"name"`
	Holder    string    `gorm:"not null" json:"holder"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Alert{},
		&JobLease{},
	)
}
