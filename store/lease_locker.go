package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"

	"go_alerts_backend/models"
)

// ErrLeaseHeld is returned when another instance holds a non-expired lease.
var ErrLeaseHeld = errors.New("job lease held by another instance")

// LeaseLocker implements gocron.Locker on top of the job_leases table so that
// only one instance runs a given job at a time. Acquisition is a plain insert,
// falling back to an update guarded on expiry, so no row is ever locked across
// a round trip.
type LeaseLocker struct {
	db     *gorm.DB
	holder string
	ttl    time.Duration
}

// NewLeaseLocker creates a locker identified by holder. ttl bounds how long a
// crashed instance can block the job before its lease is considered dead.
func NewLeaseLocker(db *gorm.DB, holder string, ttl time.Duration) *LeaseLocker {
	return &LeaseLocker{
		db:     db,
		holder: holder,
		ttl:    ttl,
	}
}

// Lock acquires the lease for key or returns ErrLeaseHeld.
func (l *LeaseLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	now := time.Now().UTC()
	lease := models.JobLease{
		Name:      key,
		Holder:    l.holder,
		ExpiresAt: now.Add(l.ttl),
	}

	if err := l.db.WithContext(ctx).Create(&lease).Error; err == nil {
		return &leaseLock{locker: l, key: key}, nil
	}

	// Row exists; take it over only if it is expired or already ours.
	res := l.db.WithContext(ctx).Model(&models.JobLease{}).
		Where("name = ? AND (expires_at < ? OR holder = ?)", key, now, l.holder).
		Updates(map[string]interface{}{
			"holder":     l.holder,
			"expires_at": now.Add(l.ttl),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrLeaseHeld
	}
	return &leaseLock{locker: l, key: key}, nil
}

// Probe verifies the lease backend is reachable by acquiring and releasing a
// holder-scoped lease. Used at startup to decide between scheduler modes.
func (l *LeaseLocker) Probe(ctx context.Context) error {
	lock, err := l.Lock(ctx, "probe:"+l.holder)
	if err != nil {
		return err
	}
	return lock.Unlock(ctx)
}

type leaseLock struct {
	locker *LeaseLocker
	key    string
}

// Unlock releases the lease if this instance still holds it.
func (lk *leaseLock) Unlock(ctx context.Context) error {
	return lk.locker.db.WithContext(ctx).
		Where("name = ? AND holder = ?", lk.key, lk.locker.holder).
		Delete(&models.JobLease{}).Error
}
