package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/domain/vendor"
	"github.com/cassiomorais/settlement/internal/domain/webhook"
	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/cassiomorais/settlement/pkg/saga"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	stepCreatePayout      = "create_payout"
	stepClaimTransactions = "claim_transactions"

	// DefaultTransferTimeout bounds a single transfer call.
	DefaultTransferTimeout = 30 * time.Second
)

// PayoutResult describes a dispatched payout.
type PayoutResult struct {
	Payout *payout.Batch
	// Transferred is true when funds were sent through the processor.
	Transferred bool
	// TransferErr is set when the transfer failed; the payout is then marked failed.
	TransferErr error
}

// claimToken is the compensation token for the claim step.
type claimToken struct {
	PayoutID       uuid.UUID
	TransactionIDs []uuid.UUID
}

// PayoutDispatcher turns a settlement group into a payout batch and moves the funds.
type PayoutDispatcher struct {
	payouts         payout.Repository
	commissions     commission.Repository
	vendors         vendor.Repository
	txManager       TransactionManager
	gateway         PaymentGateway
	notifier        Notifier
	logger          zerolog.Logger
	transferTimeout time.Duration
}

func NewPayoutDispatcher(
	payouts payout.Repository,
	commissions commission.Repository,
	vendors vendor.Repository,
	txManager TransactionManager,
	gateway PaymentGateway,
	notifier Notifier,
	logger zerolog.Logger,
	transferTimeout time.Duration,
) *PayoutDispatcher {
	if transferTimeout <= 0 {
		transferTimeout = DefaultTransferTimeout
	}
	return &PayoutDispatcher{
		payouts:         payouts,
		commissions:     commissions,
		vendors:         vendors,
		txManager:       txManager,
		gateway:         gateway,
		notifier:        notifier,
		logger:          logger,
		transferTimeout: transferTimeout,
	}
}

// Dispatch records a payout for group and, when the vendor can receive transfers, sends it.
// The ledger steps run as a saga: if claiming the transactions fails, the batch is deleted.
// A failed transfer does not undo the ledger steps; it marks the payout failed instead.
func (d *PayoutDispatcher) Dispatch(ctx context.Context, group *SettlementGroup, paymentMethod string) (*PayoutResult, error) {
	if group == nil || len(group.TransactionIDs) == 0 {
		return nil, domainErrors.ErrEmptySettlement
	}

	v, err := d.vendors.GetByID(ctx, group.VendorID)
	if err != nil {
		return nil, fmt.Errorf("load vendor %s: %w", group.VendorID, err)
	}

	batch, err := payout.NewBatch(
		group.TenantID, group.VendorID, v.StoreID,
		group.PeriodStart, group.PeriodEnd,
		group.TransactionIDs, group.Currency, group.Totals(), paymentMethod,
	)
	if err != nil {
		return nil, err
	}

	log := d.logger.With().
		Str("payout_id", batch.ID.String()).
		Str("vendor_id", batch.VendorID.String()).
		Logger()
	ctx = log.WithContext(ctx)

	if _, err := d.ledgerSaga().Execute(ctx, batch); err != nil {
		log.Error().Err(err).Msg("payout workflow failed")
		return nil, err
	}
	log.Info().
		Int("transactions", len(batch.TransactionIDs)).
		Int64("net_amount", batch.NetAmount).
		Str("currency", batch.Currency).
		Msg("payout recorded")

	result := &PayoutResult{Payout: batch}
	if !v.HasVerifiedPayoutDestination() {
		log.Info().Msg("vendor has no verified payout destination, awaiting manual completion")
		return result, nil
	}

	d.transfer(ctx, log, batch, v, result)
	return result, nil
}

func (d *PayoutDispatcher) ledgerSaga() *saga.Saga {
	return saga.New("payout_dispatch").
		AddStep(saga.Step{
			Name: stepCreatePayout,
			Invoke: func(ctx context.Context, input any) (saga.StepResult, error) {
				batch := input.(*payout.Batch)
				if err := d.payouts.Create(ctx, batch); err != nil {
					return saga.StepResult{}, err
				}
				return saga.StepResult{Output: batch, Token: batch.ID}, nil
			},
			Compensate: func(ctx context.Context, token any) error {
				err := d.payouts.Delete(ctx, token.(uuid.UUID))
				if errors.Is(err, domainErrors.ErrPayoutNotFound) {
					return nil
				}
				return err
			},
		}).
		AddStep(saga.Step{
			Name: stepClaimTransactions,
			Invoke: func(ctx context.Context, input any) (saga.StepResult, error) {
				batch := input.(*payout.Batch)
				err := d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
					return d.commissions.MarkPendingPayout(txCtx, batch.TransactionIDs, batch.ID)
				})
				if err != nil {
					return saga.StepResult{}, err
				}
				return saga.StepResult{
					Output: batch,
					Token:  claimToken{PayoutID: batch.ID, TransactionIDs: batch.TransactionIDs},
				}, nil
			},
			Compensate: func(ctx context.Context, token any) error {
				t := token.(claimToken)
				_, err := d.commissions.ReleaseFromPayout(ctx, t.TransactionIDs, t.PayoutID)
				return err
			},
		})
}

// transfer runs outside any ledger transaction.
func (d *PayoutDispatcher) transfer(ctx context.Context, log zerolog.Logger, batch *payout.Batch, v *vendor.Vendor, result *PayoutResult) {
	callCtx, cancel := context.WithTimeout(ctx, d.transferTimeout)
	defer cancel()

	tr, err := d.gateway.CreateTransfer(callCtx, providers.TransferRequest{
		DestinationAccount: *v.ProcessorAccountID,
		AmountCents:        batch.NetAmount,
		Currency:           batch.Currency,
		IdempotencyKey:     "payout-" + batch.ID.String(),
		Metadata: map[string]string{
			webhook.MetadataPayoutID: batch.ID.String(),
			"vendor_id":              batch.VendorID.String(),
		},
	})
	if err != nil {
		result.TransferErr = err
		reason := err.Error()
		log.Warn().Err(err).Msg("payout transfer failed")
		failed := payout.StatusUpdate{
			Status:        payout.StatusFailed,
			From:          payout.StatusCreated,
			FailureReason: &reason,
		}
		applied, tErr := d.payouts.Transition(ctx, batch.ID, failed)
		if tErr != nil {
			log.Error().Err(tErr).Msg("failed to mark payout failed")
			return
		}
		if !applied {
			// A processor event moved the payout while the call was in flight.
			log.Warn().Msg("payout already moved by processor event, transfer failure not recorded")
			if current, gErr := d.payouts.GetByID(ctx, batch.ID); gErr == nil {
				result.Payout = current
			} else {
				log.Error().Err(gErr).Msg("failed to reload payout")
			}
			return
		}
		_ = batch.Apply(failed)
		d.notifier.Emit(ctx, outbox.EventPayoutFailed, batch.ID, payoutPayload(batch, reason))
		return
	}

	result.Transferred = true
	ref := tr.ID
	applied, err := d.payouts.Transition(ctx, batch.ID, payout.StatusUpdate{
		Status:            payout.StatusProcessing,
		ExternalReference: &ref,
	})
	if err != nil {
		log.Error().Err(err).Str("transfer_id", ref).Msg("transfer sent but payout status not updated")
		return
	}
	if applied {
		_ = batch.Apply(payout.StatusUpdate{Status: payout.StatusProcessing, ExternalReference: &ref})
	}
	log.Info().Str("transfer_id", ref).Bool("applied", applied).Msg("payout transfer created")
}

func payoutPayload(b *payout.Batch, failureReason string) map[string]any {
	payload := map[string]any{
		"payout_id":    b.ID.String(),
		"vendor_id":    b.VendorID.String(),
		"tenant_id":    b.TenantID.String(),
		"net_amount":   b.NetAmount,
		"currency":     b.Currency,
		"transactions": len(b.TransactionIDs),
		"status":       string(b.Status),
	}
	if b.ExternalReference != nil {
		payload["external_reference"] = *b.ExternalReference
	}
	if failureReason != "" {
		payload["failure_reason"] = failureReason
	}
	return payload
}
