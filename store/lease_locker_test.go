package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseLockerExclusive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := NewLeaseLocker(db, "instance-a", time.Minute)
	b := NewLeaseLocker(db, "instance-b", time.Minute)

	lock, err := a.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)

	_, err = b.Lock(ctx, "evaluate_alerts")
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, lock.Unlock(ctx))

	lock, err = b.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)
	require.NoError(t, lock.Unlock(ctx))
}

func TestLeaseLockerSameHolderRenews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := NewLeaseLocker(db, "instance-a", time.Minute)

	_, err := a.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)

	// The holder reclaims its own lease without waiting for expiry.
	lock, err := a.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)
	require.NoError(t, lock.Unlock(ctx))
}

func TestLeaseLockerExpiredTakeover(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := NewLeaseLocker(db, "instance-a", 10*time.Millisecond)
	b := NewLeaseLocker(db, "instance-b", time.Minute)

	_, err := a.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	lock, err := b.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)
	require.NoError(t, lock.Unlock(ctx))
}

func TestLeaseLockerUnlockOnlyOwn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := NewLeaseLocker(db, "instance-a", time.Minute)
	b := NewLeaseLocker(db, "instance-b", time.Minute)

	lockA, err := a.Lock(ctx, "evaluate_alerts")
	require.NoError(t, err)

	// B lost the race; its unlock must not release A's lease.
	staleB := &leaseLock{locker: b, key: "evaluate_alerts"}
	require.NoError(t, staleB.Unlock(ctx))

	_, err = b.Lock(ctx, "evaluate_alerts")
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, lockA.Unlock(ctx))
}

func TestLeaseLockerProbe(t *testing.T) {
	db := newTestDB(t)
	a := NewLeaseLocker(db, "instance-a", time.Minute)
	require.NoError(t, a.Probe(context.Background()))

	// Probe cleans up after itself, so a second probe also succeeds.
	require.NoError(t, a.Probe(context.Background()))
}
