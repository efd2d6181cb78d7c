package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/rs/zerolog"
)

// Lock is a held job lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker grants at most one holder per job name across all worker instances.
type Locker interface {
	// TryLock returns a nil Lock and a nil error when the lock is held elsewhere.
	TryLock(ctx context.Context, name string, ttl time.Duration) (Lock, error)
}

// LockerFunc adapts a function to Locker.
type LockerFunc func(ctx context.Context, name string, ttl time.Duration) (Lock, error)

func (f LockerFunc) TryLock(ctx context.Context, name string, ttl time.Duration) (Lock, error) {
	return f(ctx, name, ttl)
}

// Job is a periodic batch job.
type Job struct {
	Name     string
	Interval time.Duration
	// LockTTL should exceed the longest expected run.
	LockTTL time.Duration
	Run     func(ctx context.Context) (service.RunReport, error)
}

// Scheduler runs jobs on their own tickers. A tick that finds the job still running, or its
// lock held by another instance, is skipped.
type Scheduler struct {
	locker     Locker
	metrics    *observability.Metrics
	logger     zerolog.Logger
	runOnStart bool

	mu      sync.Mutex
	running map[string]bool
}

type Option func(*Scheduler)

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithRunOnStart fires every job once as soon as Start is called.
func WithRunOnStart() Option {
	return func(s *Scheduler) { s.runOnStart = true }
}

func New(locker Locker, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		locker:  locker,
		logger:  logger,
		running: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks until ctx is cancelled. A run in progress is allowed to finish.
func (s *Scheduler) Start(ctx context.Context, jobs ...Job) error {
	var wg sync.WaitGroup
	for _, job := range jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", job.Name)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, job)
		}()
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.logger.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("job scheduled")

	if s.runOnStart {
		s.RunOnce(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce runs job if no other run of it holds the lock. It reports whether the job ran.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) bool {
	log := s.logger.With().Str("job", job.Name).Logger()

	if !s.markRunning(job.Name) {
		log.Warn().Msg("previous run still in progress, skipping tick")
		return false
	}
	defer s.clearRunning(job.Name)

	lock, err := s.locker.TryLock(ctx, job.Name, job.LockTTL)
	if err != nil {
		log.Error().Err(err).Msg("failed to acquire job lock")
		return false
	}
	if lock == nil {
		log.Info().Msg("job locked by another instance, skipping")
		if s.metrics != nil {
			s.metrics.JobLockSkipped.WithLabelValues(job.Name).Inc()
		}
		return false
	}
	defer func() {
		// Release must happen even after cancellation.
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to release job lock")
		}
	}()

	start := time.Now()
	report, err := s.safeRun(ctx, job)
	if s.metrics != nil {
		s.metrics.ObserveRun(job.Name, report.Succeeded, report.Failed, report.Skipped, time.Since(start), err != nil)
	}
	if err != nil {
		log.Error().Err(err).Msg("job run failed")
		return true
	}
	log.Info().Object("report", report).Msg("job run completed")
	return true
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (report service.RunReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) markRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) clearRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}
