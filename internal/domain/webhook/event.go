package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
)

// EventType is the processor notification type.
type EventType string

const (
	TransferCreated  EventType = "transfer.created"
	TransferReversed EventType = "transfer.reversed"
	PayoutPaid       EventType = "payout.paid"
	PayoutFailed     EventType = "payout.failed"
	AccountUpdated   EventType = "account.updated"
)

// MetadataPayoutID is the metadata key carrying our payout id on processor objects.
const MetadataPayoutID = "payout_id"

// Event is a verified notification from the payment processor.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Created int64     `json:"created"`
	Data    struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// EventObject is the subset of the processor object the reconciler reads.
type EventObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	FailureCode      string            `json:"failure_code"`
	FailureMessage   string            `json:"failure_message"`
	ArrivalDate      int64             `json:"arrival_date"`
	ChargesEnabled   bool              `json:"charges_enabled"`
	PayoutsEnabled   bool              `json:"payouts_enabled"`
	DetailsSubmitted bool              `json:"details_submitted"`
}

// ParseEvent decodes a raw notification body.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", errors.ErrMalformedEvent)
	}
	return &ev, nil
}

// Object returns the embedded processor object.
func (e *Event) Object() *EventObject {
	return &e.Data.Object
}

// PayoutID returns the payout id embedded in the object's metadata, if any.
func (o *EventObject) PayoutID() (uuid.UUID, bool) {
	raw, ok := o.Metadata[MetadataPayoutID]
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Reference returns the processor object id, or nil when the object carries none.
func (o *EventObject) Reference() *string {
	if o.ID == "" {
		return nil
	}
	ref := o.ID
	return &ref
}

// FailureReason returns the most descriptive failure text on the object.
func (o *EventObject) FailureReason(fallback string) string {
	switch {
	case o.FailureMessage != "":
		return o.FailureMessage
	case o.FailureCode != "":
		return o.FailureCode
	default:
		return fallback
	}
}

// OccurredAt returns the event creation time, or now when the processor sent none.
func (e *Event) OccurredAt() time.Time {
	if e.Created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(e.Created, 0).UTC()
}

// ProcessedEventRepository records applied events keyed by (provider, event id).
type ProcessedEventRepository interface {
	// Record stores the event id and returns false if it had already been recorded.
	Record(ctx context.Context, provider, eventID string, eventType EventType) (bool, error)
}
