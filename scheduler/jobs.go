package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"go_alerts_backend/services/alerts"
)

const evaluateJobName = "evaluate_alerts"

const probeTimeout = 5 * time.Second

// Scheduler modes reported by Mode and Status.
const (
	ModeDurable  = "durable"
	ModeFallback = "fallback"
)

// Cycler runs one alert evaluation cycle.
type Cycler interface {
	EvaluateAlerts(ctx context.Context) (alerts.CycleStats, error)
}

// LeaseBackend hands out distributed job locks and reports whether the
// backing store is reachable.
type LeaseBackend interface {
	gocron.Locker
	Probe(ctx context.Context) error
}

// Scheduler manages the recurring evaluation job. Start prefers the
// lease-backed gocron scheduler so that at most one instance evaluates at a
// time; when the lease store is unreachable it degrades to a plain
// in-process loop instead of failing startup.
type Scheduler struct {
	interval time.Duration
	cycler   Cycler
	locker   LeaseBackend
	durable  bool

	cron     *gocron.Scheduler
	inFlight atomic.Bool

	mu      sync.Mutex
	running bool
	mode    string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a new scheduler instance. A nil locker disables
// durable mode regardless of the durable flag.
func NewScheduler(cycler Cycler, locker LeaseBackend, interval time.Duration, durable bool) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	cron.TagsUnique()
	if locker != nil {
		cron.WithDistributedLocker(locker)
	}
	return &Scheduler{
		interval: interval,
		cycler:   cycler,
		locker:   locker,
		durable:  durable,
		cron:     cron,
	}
}

// Start brings the scheduler into the running state. Calling Start while
// already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Warn().Str("mode", s.mode).Msg("Scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	mode := ModeFallback
	if s.durable && s.locker != nil {
		probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
		err := s.locker.Probe(probeCtx)
		probeCancel()
		if err != nil {
			log.Warn().Err(err).Msg("Job lease store unreachable, using in-process loop")
		} else if err := s.registerDurable(ctx); err != nil {
			log.Error().Err(err).Msg("Durable job registration failed, using in-process loop")
		} else {
			mode = ModeDurable
		}
	}
	if mode == ModeFallback {
		s.done = make(chan struct{})
		go s.loop(ctx, s.done)
	}

	s.cancel = cancel
	s.running = true
	s.mode = mode
	log.Info().Str("mode", mode).Dur("interval", s.interval).Msg("Scheduler started")
}

// Stop halts scheduling. In durable mode in-flight work is cancelled but not
// awaited; the fallback loop is awaited until it exits.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.mode == ModeDurable {
		s.cron.Stop()
	} else if s.done != nil {
		<-s.done
		s.done = nil
	}
	s.running = false
	log.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Mode returns the mode chosen by the most recent Start.
func (s *Scheduler) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Status reports scheduler state for the status endpoint.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"running":  s.running,
		"mode":     s.mode,
		"interval": s.interval.String(),
	}
}

// registerDurable replaces any previously registered evaluation job and
// starts the gocron scheduler. The job name doubles as the lease key, so
// other instances running the same job contend on one lock row.
func (s *Scheduler) registerDurable(ctx context.Context) error {
	if err := s.cron.RemoveByTag(evaluateJobName); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return err
	}
	_, err := s.cron.Every(s.interval).Name(evaluateJobName).Tag(evaluateJobName).Do(func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.StartAsync()
	return nil
}

// loop is the degraded in-process schedule, one cycle per tick.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one evaluation cycle. A tick that arrives while the
// previous cycle is still running is skipped rather than queued.
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Debug().Msg("Evaluation cycle still running, skipping tick")
		return
	}
	defer s.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Evaluation cycle panicked")
		}
	}()

	if _, err := s.cycler.EvaluateAlerts(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Msg("Evaluation cycle failed")
	}
}
