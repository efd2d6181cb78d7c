package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/domain/webhook"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	JobSettlement = "vendor_settlement"

	DefaultPaymentMethod = "transfer"
)

// Config tunes the settlement run.
type Config struct {
	HoldPeriod    time.Duration
	PaymentMethod string
	// Concurrency bounds how many vendor units are processed at once.
	Concurrency int
}

// PeriodPayoutRequest asks for an ad-hoc payout of one vendor's eligible transactions in a window.
type PeriodPayoutRequest struct {
	VendorID      uuid.UUID
	PeriodStart   time.Time
	PeriodEnd     time.Time
	PaymentMethod string
}

// SettlementService is the entry point used by the worker and the HTTP layer.
type SettlementService struct {
	cfg         Config
	policy      *SettlementPolicy
	dispatcher  *PayoutDispatcher
	retries     *RetryScheduler
	reconciler  *WebhookReconciler
	payouts     payout.Repository
	commissions commission.Repository
	txManager   TransactionManager
	notifier    Notifier
	logger      zerolog.Logger
}

func NewSettlementService(
	cfg Config,
	policy *SettlementPolicy,
	dispatcher *PayoutDispatcher,
	retries *RetryScheduler,
	reconciler *WebhookReconciler,
	payouts payout.Repository,
	commissions commission.Repository,
	txManager TransactionManager,
	notifier Notifier,
	logger zerolog.Logger,
) *SettlementService {
	if cfg.HoldPeriod <= 0 {
		cfg.HoldPeriod = DefaultHoldPeriod
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = DefaultPaymentMethod
	}
	return &SettlementService{
		cfg:         cfg,
		policy:      policy,
		dispatcher:  dispatcher,
		retries:     retries,
		reconciler:  reconciler,
		payouts:     payouts,
		commissions: commissions,
		txManager:   txManager,
		notifier:    notifier,
		logger:      logger,
	}
}

// RunSettlement pays out every vendor and currency with eligible transactions at asOf.
// Each group is an isolated unit: a failing vendor is counted and the run continues.
func (s *SettlementService) RunSettlement(ctx context.Context, asOf time.Time) (RunReport, error) {
	c := newReportCollector(JobSettlement, time.Now().UTC())
	log := s.logger.With().Str("job", JobSettlement).Time("as_of", asOf).Logger()

	groups, err := s.policy.SelectSettlement(ctx, asOf, s.cfg.HoldPeriod)
	if err != nil {
		return c.finish(), err
	}

	runIsolated(ctx, log, s.cfg.Concurrency, sortedGroups(groups), c, func(ctx context.Context, g *SettlementGroup) Outcome {
		return s.settleGroup(ctx, log, g)
	})

	report := c.finish()
	log.Info().Object("report", report).Msg("settlement run finished")
	return report, nil
}

func (s *SettlementService) settleGroup(ctx context.Context, log zerolog.Logger, g *SettlementGroup) Outcome {
	log = log.With().Str("vendor_id", g.VendorID.String()).Str("currency", g.Currency).Logger()

	if d := g.Decide(); !d.Settle {
		log.Info().Str("reason", d.Reason).Msg("settlement group skipped")
		return OutcomeSkipped
	}

	result, err := s.dispatcher.Dispatch(ctx, g, s.cfg.PaymentMethod)
	switch {
	case errors.Is(err, domainErrors.ErrTransactionsAlreadyClaimed):
		log.Info().Msg("transactions claimed by a concurrent run")
		return OutcomeSkipped
	case err != nil:
		log.Error().Err(err).Msg("vendor settlement failed")
		return OutcomeFailed
	case result.TransferErr != nil:
		return OutcomeFailed
	default:
		return OutcomeSucceeded
	}
}

// DispatchPeriod creates payouts for one vendor's eligible transactions in an explicit window,
// one per currency.
func (s *SettlementService) DispatchPeriod(ctx context.Context, req PeriodPayoutRequest) ([]*PayoutResult, error) {
	if req.VendorID == uuid.Nil {
		return nil, domainErrors.NewValidationError("vendor_id", "is required")
	}
	if req.PeriodEnd.Before(req.PeriodStart) {
		return nil, domainErrors.NewValidationError("period_end", "must not be before period_start")
	}
	method := req.PaymentMethod
	if method == "" {
		method = s.cfg.PaymentMethod
	}

	groups, err := s.policy.SelectPeriod(ctx, req.VendorID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	var results []*PayoutResult
	var skipped error
	for _, g := range sortedGroups(groups) {
		if d := g.Decide(); !d.Settle {
			skipped = domainErrors.NewDomainError("non_positive_net", d.Reason, domainErrors.ErrNonPositiveNet)
			continue
		}
		result, err := s.dispatcher.Dispatch(ctx, g, method)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		if skipped != nil {
			return nil, skipped
		}
		return nil, domainErrors.ErrEmptySettlement
	}
	return results, nil
}

// RetryFailedPayments runs the subscription retry job.
func (s *SettlementService) RetryFailedPayments(ctx context.Context) (RunReport, error) {
	return s.retries.Run(ctx)
}

// ApplyWebhook applies a verified processor event.
func (s *SettlementService) ApplyWebhook(ctx context.Context, ev *webhook.Event) (WebhookOutcome, error) {
	return s.reconciler.Apply(ctx, ev)
}

// CompletePayout records a payout that was settled outside the processor, typically for vendors
// without a verified payout destination. Completing an already completed payout returns it unchanged.
func (s *SettlementService) CompletePayout(ctx context.Context, id uuid.UUID, reference string) (*payout.Batch, error) {
	var p *payout.Batch
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.payouts.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if p.Status == payout.StatusCompleted {
			return nil
		}

		now := time.Now().UTC()
		update := payout.StatusUpdate{Status: payout.StatusCompleted, ProcessedAt: &now}
		if reference != "" {
			update.ExternalReference = &reference
		}
		applied, err := s.payouts.Transition(txCtx, id, update)
		if err != nil {
			return err
		}
		if !applied {
			return domainErrors.NewDomainError("invalid_transition",
				fmt.Sprintf("cannot complete payout in status %s", p.Status), domainErrors.ErrInvalidStateTransition)
		}
		_ = p.Apply(update)

		if _, err := s.commissions.MarkPaid(txCtx, id); err != nil {
			return fmt.Errorf("mark transactions paid: %w", err)
		}
		s.notifier.Emit(txCtx, outbox.EventPayoutCompleted, id, payoutPayload(p, ""))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("payout_id", id.String()).Msg("payout completed manually")
	return p, nil
}

func (s *SettlementService) GetPayout(ctx context.Context, id uuid.UUID) (*payout.Batch, error) {
	return s.payouts.GetByID(ctx, id)
}

func (s *SettlementService) ListPayouts(ctx context.Context, filter payout.ListFilter) ([]*payout.Batch, error) {
	return s.payouts.List(ctx, filter)
}

// sortedGroups orders groups by vendor and currency so runs process units deterministically.
func sortedGroups(groups map[GroupKey]*SettlementGroup) []*SettlementGroup {
	out := make([]*SettlementGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].VendorID[:], out[j].VendorID[:]); c != 0 {
			return c < 0
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}
