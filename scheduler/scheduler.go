package scheduler

// Package scheduler provides periodic alert evaluation for the alerts backend.
// It handles:
// - Registering the recurring evaluation job at the configured interval
// - Distributed locking through a database job lease across instances
// - Falling back to a plain in-process loop when the lease store is unreachable
// - Collapsing overlapping evaluation runs into a single cycle
//
// The main scheduler is implemented in jobs.go
