package outbox

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification names carried on the event bus.
const (
	EventPayoutCompleted           = "payout.completed"
	EventPayoutFailed              = "payout.failed"
	EventSubscriptionCancelled     = "subscription.cancelled"
	EventSubscriptionPaymentFailed = "subscription.payment_failed"
	EventInvoiceCreated            = "invoice.created"
	EventInvoiceOverdue            = "invoice.overdue"
)

// Aggregate types an entry can refer to.
const (
	AggregatePayout       = "payout"
	AggregateSubscription = "subscription"
	AggregateInvoice      = "invoice"
)

// DefaultMaxRetries is how many relay attempts an entry gets before it is parked as failed.
const DefaultMaxRetries = 5

// Entry is a notification waiting to be relayed to the stream.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	LastError     *string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     time.Now(),
	}
}

// AggregateTypeFor derives the aggregate type from an event name such as "payout.failed".
func AggregateTypeFor(eventType string) string {
	aggregate, _, _ := strings.Cut(eventType, ".")
	return aggregate
}

// Exhausted reports whether the entry has used all of its relay attempts.
func (e *Entry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}
