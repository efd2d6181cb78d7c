package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/domain/subscription"
	"github.com/cassiomorais/settlement/internal/domain/vendor"
	"github.com/cassiomorais/settlement/internal/domain/webhook"
	"github.com/google/uuid"
)

// --- Commission Repository Mock ---

// MockCommissionRepository is an in-memory commission.Repository with the same
// all-or-nothing claim semantics as the SQL implementation.
type MockCommissionRepository struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*commission.Transaction

	ListEligibleFunc      func(ctx context.Context, filter commission.EligibilityFilter) ([]*commission.Transaction, error)
	MarkPendingPayoutFunc func(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error
	ReleaseFromPayoutFunc func(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) (int64, error)
	MarkPaidFunc          func(ctx context.Context, payoutID uuid.UUID) (int64, error)
}

func NewMockCommissionRepository() *MockCommissionRepository {
	return &MockCommissionRepository{txns: make(map[uuid.UUID]*commission.Transaction)}
}

// AddTransaction pre-populates the mock.
func (m *MockCommissionRepository) AddTransaction(txns ...*commission.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txns {
		cp := *t
		m.txns[t.ID] = &cp
	}
}

// Transaction returns a copy of the stored transaction (test helper, no context needed).
func (m *MockCommissionRepository) Transaction(id uuid.UUID) *commission.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (m *MockCommissionRepository) Create(ctx context.Context, txn *commission.Transaction) error {
	m.AddTransaction(txn)
	return nil
}

func (m *MockCommissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*commission.Transaction, error) {
	if t := m.Transaction(id); t != nil {
		return t, nil
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *MockCommissionRepository) List(ctx context.Context, filter commission.ListFilter) ([]*commission.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*commission.Transaction
	for _, t := range m.txns {
		if filter.VendorID != nil && t.VendorID != *filter.VendorID {
			continue
		}
		if filter.PayoutID != nil && (t.PayoutID == nil || *t.PayoutID != *filter.PayoutID) {
			continue
		}
		if filter.PayoutStatus != nil && t.PayoutStatus != *filter.PayoutStatus {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sortTransactions(out)
	return out, nil
}

func (m *MockCommissionRepository) ListEligible(ctx context.Context, filter commission.EligibilityFilter) ([]*commission.Transaction, error) {
	if m.ListEligibleFunc != nil {
		return m.ListEligibleFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*commission.Transaction
	for _, t := range m.txns {
		if !t.IsEligible(filter.Until) {
			continue
		}
		if filter.TenantID != nil && t.TenantID != *filter.TenantID {
			continue
		}
		if filter.VendorID != nil && t.VendorID != *filter.VendorID {
			continue
		}
		if filter.From != nil && t.TransactionDate.Before(*filter.From) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sortTransactions(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockCommissionRepository) Approve(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return domainErrors.ErrTransactionNotFound
	}
	return t.Approve()
}

func (m *MockCommissionRepository) MarkPendingPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	if m.MarkPendingPayoutFunc != nil {
		return m.MarkPendingPayoutFunc(ctx, ids, payoutID)
	}
	if len(ids) == 0 {
		return domainErrors.ErrEmptySettlement
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		t, ok := m.txns[id]
		if !ok || t.Status != commission.StatusApproved || t.PayoutStatus != commission.PayoutUnpaid {
			return domainErrors.ErrTransactionsAlreadyClaimed
		}
	}
	for _, id := range ids {
		t := m.txns[id]
		pid := payoutID
		t.PayoutStatus = commission.PayoutPending
		t.PayoutID = &pid
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MockCommissionRepository) ReleaseFromPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) (int64, error) {
	if m.ReleaseFromPayoutFunc != nil {
		return m.ReleaseFromPayoutFunc(ctx, ids, payoutID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		t, ok := m.txns[id]
		if !ok || t.PayoutStatus != commission.PayoutPending || t.PayoutID == nil || *t.PayoutID != payoutID {
			continue
		}
		t.PayoutStatus = commission.PayoutUnpaid
		t.PayoutID = nil
		t.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func (m *MockCommissionRepository) MarkPaid(ctx context.Context, payoutID uuid.UUID) (int64, error) {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, payoutID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.txns {
		if t.PayoutID == nil || *t.PayoutID != payoutID || t.PayoutStatus != commission.PayoutPending {
			continue
		}
		t.PayoutStatus = commission.PayoutPaid
		t.Status = commission.StatusSettled
		t.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func sortTransactions(txns []*commission.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].TransactionDate.Equal(txns[j].TransactionDate) {
			return txns[i].TransactionDate.Before(txns[j].TransactionDate)
		}
		return txns[i].ID.String() < txns[j].ID.String()
	})
}

// --- Payout Repository Mock ---

// MockPayoutRepository is an in-memory payout.Repository with status-gated transitions.
type MockPayoutRepository struct {
	mu      sync.Mutex
	payouts map[uuid.UUID]*payout.Batch

	CreateFunc     func(ctx context.Context, batch *payout.Batch) error
	DeleteFunc     func(ctx context.Context, id uuid.UUID) error
	TransitionFunc func(ctx context.Context, id uuid.UUID, update payout.StatusUpdate) (bool, error)
}

func NewMockPayoutRepository() *MockPayoutRepository {
	return &MockPayoutRepository{payouts: make(map[uuid.UUID]*payout.Batch)}
}

// AddPayout pre-populates the mock.
func (m *MockPayoutRepository) AddPayout(b *payout.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payouts[b.ID] = copyBatch(b)
}

// Payout returns a copy of the stored payout (test helper, no context needed).
func (m *MockPayoutRepository) Payout(id uuid.UUID) *payout.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.payouts[id]
	if !ok {
		return nil
	}
	return copyBatch(b)
}

// Count returns how many payouts are stored.
func (m *MockPayoutRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payouts)
}

// All returns copies of every stored payout.
func (m *MockPayoutRepository) All() []*payout.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*payout.Batch, 0, len(m.payouts))
	for _, b := range m.payouts {
		out = append(out, copyBatch(b))
	}
	return out
}

func (m *MockPayoutRepository) Create(ctx context.Context, batch *payout.Batch) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, batch)
	}
	m.AddPayout(batch)
	return nil
}

func (m *MockPayoutRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payouts[id]; !ok {
		return domainErrors.ErrPayoutNotFound
	}
	delete(m.payouts, id)
	return nil
}

func (m *MockPayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Batch, error) {
	if b := m.Payout(id); b != nil {
		return b, nil
	}
	return nil, domainErrors.ErrPayoutNotFound
}

func (m *MockPayoutRepository) GetByExternalReference(ctx context.Context, ref string) (*payout.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.payouts {
		if b.ExternalReference != nil && *b.ExternalReference == ref {
			return copyBatch(b), nil
		}
	}
	return nil, domainErrors.ErrPayoutNotFound
}

func (m *MockPayoutRepository) List(ctx context.Context, filter payout.ListFilter) ([]*payout.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payout.Batch
	for _, b := range m.payouts {
		if filter.VendorID != nil && b.VendorID != *filter.VendorID {
			continue
		}
		if filter.TenantID != nil && b.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPayoutRepository) Transition(ctx context.Context, id uuid.UUID, update payout.StatusUpdate) (bool, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.payouts[id]
	if !ok || !b.Allows(update) {
		return false, nil
	}
	return true, b.Apply(update)
}

func copyBatch(b *payout.Batch) *payout.Batch {
	cp := *b
	cp.TransactionIDs = append([]uuid.UUID(nil), b.TransactionIDs...)
	return &cp
}

// --- Vendor Repository Mock ---

type MockVendorRepository struct {
	mu      sync.Mutex
	vendors map[uuid.UUID]*vendor.Vendor

	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error)
}

func NewMockVendorRepository() *MockVendorRepository {
	return &MockVendorRepository{vendors: make(map[uuid.UUID]*vendor.Vendor)}
}

// AddVendor pre-populates the mock.
func (m *MockVendorRepository) AddVendor(v *vendor.Vendor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.vendors[v.ID] = &cp
}

// Vendor returns a copy of the stored vendor (test helper, no context needed).
func (m *MockVendorRepository) Vendor(id uuid.UUID) *vendor.Vendor {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

func (m *MockVendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if v := m.Vendor(id); v != nil {
		return v, nil
	}
	return nil, domainErrors.ErrVendorNotFound
}

func (m *MockVendorRepository) GetByProcessorAccountID(ctx context.Context, accountID string) (*vendor.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vendors {
		if v.ProcessorAccountID != nil && *v.ProcessorAccountID == accountID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrVendorNotFound
}

func (m *MockVendorRepository) ActivateOnboarding(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok || v.OnboardingStatus != vendor.OnboardingPending {
		return false, nil
	}
	v.OnboardingStatus = vendor.OnboardingActive
	v.UpdatedAt = time.Now()
	return true, nil
}

// --- Subscription Repository Mock ---

type MockSubscriptionRepository struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscription.Subscription

	ListFailedPaymentsFunc func(ctx context.Context, limit int) ([]*subscription.Subscription, error)
	MarkPaidFunc           func(ctx context.Context, id uuid.UUID, at time.Time, reference string) error
}

func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{subs: make(map[uuid.UUID]*subscription.Subscription)}
}

// AddSubscription pre-populates the mock.
func (m *MockSubscriptionRepository) AddSubscription(subs ...*subscription.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range subs {
		cp := *s
		m.subs[s.ID] = &cp
	}
}

// Subscription returns a copy of the stored subscription (test helper, no context needed).
func (m *MockSubscriptionRepository) Subscription(id uuid.UUID) *subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	if s := m.Subscription(id); s != nil {
		return s, nil
	}
	return nil, domainErrors.ErrSubscriptionNotFound
}

func (m *MockSubscriptionRepository) ListFailedPayments(ctx context.Context, limit int) ([]*subscription.Subscription, error) {
	if m.ListFailedPaymentsFunc != nil {
		return m.ListFailedPaymentsFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*subscription.Subscription
	for _, s := range m.subs {
		if s.NeedsRetry() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSubscriptionRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time, reference string) error {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, id, at, reference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return domainErrors.ErrSubscriptionNotFound
	}
	s.PaymentStatus = subscription.PaymentPaid
	s.RetryCount = 0
	s.LastRetryError = nil
	s.LastPaymentAt = &at
	s.LastPaymentReference = &reference
	s.UpdatedAt = at
	return nil
}

func (m *MockSubscriptionRepository) RecordRetryFailure(ctx context.Context, id uuid.UUID, expectedRetryCount int, at time.Time, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.Status != subscription.StatusActive || s.RetryCount != expectedRetryCount {
		return false, nil
	}
	s.RetryCount++
	s.LastRetryAt = &at
	s.LastRetryError = &reason
	s.UpdatedAt = at
	return true, nil
}

func (m *MockSubscriptionRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.Status != subscription.StatusActive {
		return false, nil
	}
	s.Status = subscription.StatusCancelled
	s.CancellationReason = &reason
	s.CancelledAt = &at
	s.UpdatedAt = at
	return true, nil
}

// --- Processed Event Repository Mock ---

type MockProcessedEventRepository struct {
	mu   sync.Mutex
	seen map[string]webhook.EventType

	RecordFunc func(ctx context.Context, provider, eventID string, eventType webhook.EventType) (bool, error)
}

func NewMockProcessedEventRepository() *MockProcessedEventRepository {
	return &MockProcessedEventRepository{seen: make(map[string]webhook.EventType)}
}

func (m *MockProcessedEventRepository) Record(ctx context.Context, provider, eventID string, eventType webhook.EventType) (bool, error) {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, provider, eventID, eventType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + "/" + eventID
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = eventType
	return true, nil
}

// Count returns how many distinct events were recorded.
func (m *MockProcessedEventRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID, reason string) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns every inserted entry.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			now := time.Now()
			e.Status = outbox.StatusPublished
			e.PublishedAt = &now
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			e.LastError = &reason
			if e.Exhausted() {
				e.Status = outbox.StatusFailed
			}
		}
	}
	return nil
}

func (m *MockOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending {
			n++
		}
	}
	return n, nil
}

// --- Notifier Mock ---

// Notification is one Emit call captured by RecordingNotifier.
type Notification struct {
	Event       string
	AggregateID uuid.UUID
	Payload     map[string]any
}

// RecordingNotifier captures emitted notifications.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []Notification
}

func (n *RecordingNotifier) Emit(ctx context.Context, event string, aggregateID uuid.UUID, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, Notification{Event: event, AggregateID: aggregateID, Payload: payload})
}

// Events returns the captured notifications in emission order.
func (n *RecordingNotifier) Events() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.events...)
}

// Named returns the captured notifications with the given event name.
func (n *RecordingNotifier) Named(event string) []Notification {
	var out []Notification
	for _, e := range n.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
