package service

import (
	"time"

	"github.com/cassiomorais/settlement/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// --- Test Helpers ---

type testEnv struct {
	commissions *testutil.MockCommissionRepository
	payouts     *testutil.MockPayoutRepository
	vendors     *testutil.MockVendorRepository
	subs        *testutil.MockSubscriptionRepository
	events      *testutil.MockProcessedEventRepository
	txManager   *testutil.MockTransactionManager
	gateway     *testutil.MockGateway
	notifier    *testutil.RecordingNotifier

	policy     *SettlementPolicy
	dispatcher *PayoutDispatcher
	retries    *RetryScheduler
	reconciler *WebhookReconciler
	service    *SettlementService

	tenantID uuid.UUID
}

func newTestEnv() *testEnv {
	e := &testEnv{
		commissions: testutil.NewMockCommissionRepository(),
		payouts:     testutil.NewMockPayoutRepository(),
		vendors:     testutil.NewMockVendorRepository(),
		subs:        testutil.NewMockSubscriptionRepository(),
		events:      testutil.NewMockProcessedEventRepository(),
		txManager:   testutil.NewMockTransactionManager(),
		gateway:     &testutil.MockGateway{},
		notifier:    &testutil.RecordingNotifier{},
		tenantID:    uuid.New(),
	}
	logger := zerolog.Nop()

	e.policy = NewSettlementPolicy(e.commissions)
	e.dispatcher = NewPayoutDispatcher(e.payouts, e.commissions, e.vendors, e.txManager, e.gateway, e.notifier, logger, time.Second)
	e.retries = NewRetryScheduler(e.subs, e.gateway, e.notifier, logger, RetrySchedulerConfig{Concurrency: 4})
	e.reconciler = NewWebhookReconciler("", e.events, e.payouts, e.commissions, e.vendors, e.txManager, e.notifier, logger)
	e.service = NewSettlementService(
		Config{HoldPeriod: DefaultHoldPeriod, Concurrency: 4},
		e.policy, e.dispatcher, e.retries, e.reconciler,
		e.payouts, e.commissions, e.txManager, e.notifier, logger,
	)
	return e
}

// daysAgo returns a time far enough in the past to clear the hold period when days > 7.
func daysAgo(days int) time.Time {
	return time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}
