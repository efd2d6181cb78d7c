package bootstrap

import (
	"github.com/cassiomorais/settlement/internal/infrastructure/config"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/cassiomorais/settlement/internal/repository/postgres"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/cassiomorais/settlement/pkg/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Services is the settlement object graph shared by the API and the worker.
type Services struct {
	Settlements *service.SettlementService
	Gateway     *providers.Gateway
	TxManager   *postgres.TxManager
	Outbox      *postgres.OutboxRepository
	Idempotency *postgres.IdempotencyRepository
}

// NewServices wires repositories, the processor gateway and the settlement services.
func NewServices(cfg *config.Config, pool *pgxpool.Pool, metrics *observability.Metrics, logger zerolog.Logger) *Services {
	payouts := postgres.NewPayoutRepository(pool)
	commissions := postgres.NewCommissionRepository(pool)
	vendors := postgres.NewVendorRepository(pool)
	subs := postgres.NewSubscriptionRepository(pool)
	events := postgres.NewProcessedEventRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	txManager := postgres.NewTxManager(pool)

	gateway := NewGateway(cfg.Processor, metrics)

	var notifier service.Notifier = service.NewOutboxNotifier(outboxRepo, logger.With().Str("component", "notifier").Logger())
	if metrics != nil {
		notifier = service.NewInstrumentedNotifier(notifier, metrics)
	}

	dispatcher := service.NewPayoutDispatcher(payouts, commissions, vendors, txManager, gateway, notifier,
		logger.With().Str("component", "payout_dispatcher").Logger(), cfg.Settlement.TransferTimeout)
	retries := service.NewRetryScheduler(subs, gateway, notifier,
		logger.With().Str("component", "retry_scheduler").Logger(),
		service.RetrySchedulerConfig{
			Concurrency:   cfg.Retry.Concurrency,
			BatchSize:     cfg.Retry.BatchSize,
			ChargeTimeout: cfg.Retry.ChargeTimeout,
		})
	reconciler := service.NewWebhookReconciler(cfg.Processor.Name, events, payouts, commissions, vendors, txManager, notifier,
		logger.With().Str("component", "webhook_reconciler").Logger())

	settlements := service.NewSettlementService(
		service.Config{
			HoldPeriod:    cfg.Settlement.HoldPeriod,
			PaymentMethod: cfg.Settlement.PaymentMethod,
			Concurrency:   cfg.Settlement.Concurrency,
		},
		service.NewSettlementPolicy(commissions),
		dispatcher, retries, reconciler,
		payouts, commissions, txManager, notifier,
		logger.With().Str("component", "settlement").Logger(),
	)

	return &Services{
		Settlements: settlements,
		Gateway:     gateway,
		TxManager:   txManager,
		Outbox:      outboxRepo,
		Idempotency: postgres.NewIdempotencyRepository(pool),
	}
}

// NewGateway builds the process-wide processor client. No live processor SDK is wired, so the
// in-process processor stands in behind the same breaker and retry policy.
func NewGateway(cfg config.ProcessorConfig, metrics *observability.Metrics) *providers.Gateway {
	processor := providers.NewMockProcessor(cfg.Name,
		providers.WithFailureRate(cfg.MockFailureRate),
		providers.WithLatency(cfg.MockLatency),
	)

	gwCfg := providers.DefaultGatewayConfig()
	if cfg.RequestTimeout > 0 {
		gwCfg.Timeout = cfg.RequestTimeout
	}
	if cfg.TransferRetries > 0 {
		gwCfg.Retry = retry.Config{
			MaxAttempts:  uint(cfg.TransferRetries),
			InitialDelay: cfg.TransferRetryDelay,
			MaxDelay:     10 * cfg.TransferRetryDelay,
		}
	}
	if cfg.BreakerTripRequests > 0 {
		gwCfg.TripRequests = cfg.BreakerTripRequests
	}
	if cfg.BreakerTripRatio > 0 {
		gwCfg.TripRatio = cfg.BreakerTripRatio
	}
	if cfg.BreakerOpenTimeout > 0 {
		gwCfg.OpenTimeout = cfg.BreakerOpenTimeout
	}

	var opts []providers.GatewayOption
	if metrics != nil {
		opts = append(opts, providers.WithStateChangeHook(metrics.BreakerStateChanged))
	}
	return providers.NewGateway(processor, gwCfg, opts...)
}
