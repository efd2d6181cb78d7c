package webhook

import (
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	payoutID := uuid.New()
	body := []byte(`{
		"id": "evt_1",
		"type": "payout.paid",
		"created": 1700000000,
		"data": {"object": {"id": "po_1", "amount": 17000, "currency": "usd",
			"metadata": {"payout_id": "` + payoutID.String() + `"}}}
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, PayoutPaid, ev.Type)
	assert.Equal(t, "po_1", ev.Object().ID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.OccurredAt())

	got, ok := ev.Object().PayoutID()
	require.True(t, ok)
	assert.Equal(t, payoutID, got)
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing id", `{"type": "payout.paid"}`},
		{"missing type", `{"id": "evt_1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.body))
			assert.ErrorIs(t, err, domainErrors.ErrMalformedEvent)
		})
	}
}

func TestEventObject_PayoutID(t *testing.T) {
	_, ok := (&EventObject{}).PayoutID()
	assert.False(t, ok)

	_, ok = (&EventObject{Metadata: map[string]string{MetadataPayoutID: "not-a-uuid"}}).PayoutID()
	assert.False(t, ok)
}

func TestEventObject_FailureReason(t *testing.T) {
	assert.Equal(t, "account closed", (&EventObject{FailureMessage: "account closed", FailureCode: "account_closed"}).FailureReason("x"))
	assert.Equal(t, "account_closed", (&EventObject{FailureCode: "account_closed"}).FailureReason("x"))
	assert.Equal(t, "x", (&EventObject{}).FailureReason("x"))
}
