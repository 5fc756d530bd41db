package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go_alerts_backend/models"
)

// AlertStore provides persistence for alerts. The evaluator only reads the
// full set and writes trigger state; the remaining methods back the thin
// management API.
type AlertStore interface {
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	GetAlert(ctx context.Context, id uint) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
	DeactivateAlert(ctx context.Context, id uint) error
	DeleteAlert(ctx context.Context, id uint) error
	MarkTriggered(ctx context.Context, id uint, price decimal.Decimal, at time.Time) error
}

type gormAlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a gorm-backed AlertStore.
func NewAlertStore(db *gorm.DB) AlertStore {
	return &gormAlertStore{
		db: db,
	}
}

func (s *gormAlertStore) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).Order("id").Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *gormAlertStore) GetAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).First(&alert, id).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *gormAlertStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	return s.db.WithContext(ctx).Create(alert).Error
}

func (s *gormAlertStore) DeactivateAlert(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *gormAlertStore) DeleteAlert(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Alert{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkTriggered records the trigger time and price. The alert stays active;
// nothing here prevents it from firing again on a later cycle.
func (s *gormAlertStore) MarkTriggered(ctx context.Context, id uint, price decimal.Decimal, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_triggered_at":    at,
			"last_triggered_price": decimal.NullDecimal{Decimal: price, Valid: true},
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
