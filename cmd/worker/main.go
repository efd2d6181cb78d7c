package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/settlement/internal/bootstrap"
	infraRedis "github.com/cassiomorais/settlement/internal/infrastructure/redis"
	"github.com/cassiomorais/settlement/internal/repository/postgres"
	"github.com/cassiomorais/settlement/internal/scheduler"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const jobIdempotencyCleanup = "idempotency_cleanup"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "settlement-worker", "settlement_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config
	svcs := bootstrap.NewServices(cfg, app.Pool, app.Metrics, app.Logger)

	locks := infraRedis.NewLockFactory(app.Redis, cfg.InstanceID)
	locker := scheduler.LockerFunc(func(ctx context.Context, name string, ttl time.Duration) (scheduler.Lock, error) {
		l, err := locks.TryLock(ctx, name, ttl)
		if err != nil || l == nil {
			return nil, err
		}
		return l, nil
	})

	opts := []scheduler.Option{scheduler.WithMetrics(app.Metrics)}
	if cfg.Worker.RunOnStart {
		opts = append(opts, scheduler.WithRunOnStart())
	}
	sched := scheduler.New(locker, app.Logger.With().Str("component", "scheduler").Logger(), opts...)

	jobs := []scheduler.Job{
		{
			Name:     service.JobSettlement,
			Interval: cfg.Settlement.Interval,
			LockTTL:  cfg.Settlement.LockTTL,
			Run: func(ctx context.Context) (service.RunReport, error) {
				return svcs.Settlements.RunSettlement(ctx, time.Now().UTC())
			},
		},
		{
			Name:     service.JobPaymentRetry,
			Interval: cfg.Retry.Interval,
			LockTTL:  cfg.Retry.LockTTL,
			Run:      svcs.Settlements.RetryFailedPayments,
		},
		{
			Name:     jobIdempotencyCleanup,
			Interval: time.Hour,
			LockTTL:  5 * time.Minute,
			Run:      idempotencyCleanup(svcs.Idempotency),
		},
	}

	publisher := infraRedis.NewStreamPublisher(app.Redis, cfg.Worker.NotificationStream, cfg.Worker.StreamMaxLen)
	relay := scheduler.NewOutboxRelay(svcs.TxManager, svcs.Outbox, publisher, cfg.Worker.OutboxBatchSize,
		app.Metrics, app.Logger.With().Str("component", "outbox_relay").Logger())

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Periodic jobs, each behind a cluster-wide lock.
	g.Go(func() error {
		return sched.Start(gCtx, jobs...)
	})

	// 2. Outbox relay (polls the outbox table and publishes to the notification stream).
	g.Go(func() error {
		return relay.Run(gCtx, cfg.Worker.OutboxPollInterval)
	})

	// 3. Metrics endpoint.
	g.Go(func() error {
		app.Logger.Info().Str("addr", metricsSrv.Addr).Msg("Starting metrics server")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	app.Logger.Info().
		Dur("settlement_interval", cfg.Settlement.Interval).
		Dur("retry_interval", cfg.Retry.Interval).
		Str("stream", cfg.Worker.NotificationStream).
		Msg("Worker started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func idempotencyCleanup(repo *postgres.IdempotencyRepository) func(ctx context.Context) (service.RunReport, error) {
	return func(ctx context.Context) (service.RunReport, error) {
		start := time.Now()
		n, err := repo.Cleanup(ctx)
		return service.RunReport{
			Job:       jobIdempotencyCleanup,
			Total:     int(n),
			Succeeded: int(n),
			StartedAt: start,
			Duration:  time.Since(start),
		}, err
	}
}
