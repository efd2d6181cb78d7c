package providers

import (
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventBody = []byte(`{"id":"evt_1","type":"payout.paid","created":1700000000,"data":{"object":{"id":"po_1"}}}`)

func TestSignatureVerifier_RoundTrip(t *testing.T) {
	v := NewSignatureVerifier("whsec_test", DefaultTolerance)

	header := v.Sign(eventBody, time.Now())
	ev, err := v.Verify(eventBody, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, webhook.PayoutPaid, ev.Type)
}

func TestSignatureVerifier_Rejects(t *testing.T) {
	v := NewSignatureVerifier("whsec_test", DefaultTolerance)
	other := NewSignatureVerifier("whsec_other", DefaultTolerance)
	now := time.Now()

	tests := []struct {
		name    string
		payload []byte
		header  string
		wantErr error
	}{
		{"missing header", eventBody, "", domainErrors.ErrMissingSignature},
		{"garbage header", eventBody, "nonsense", domainErrors.ErrInvalidSignature},
		{"no v1", eventBody, "t=123", domainErrors.ErrInvalidSignature},
		{"wrong secret", eventBody, other.Sign(eventBody, now), domainErrors.ErrInvalidSignature},
		{"tampered payload", []byte(`{"id":"evt_2","type":"payout.paid"}`), v.Sign(eventBody, now), domainErrors.ErrInvalidSignature},
		{"stale timestamp", eventBody, v.Sign(eventBody, now.Add(-time.Hour)), domainErrors.ErrInvalidSignature},
		{"valid signature, malformed body", []byte(`{}`), v.Sign([]byte(`{}`), now), domainErrors.ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.payload, tt.header)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignatureVerifier_AcceptsAnyMatchingV1(t *testing.T) {
	v := NewSignatureVerifier("whsec_test", DefaultTolerance)
	now := time.Now()

	header := v.Sign(eventBody, now) + ",v1=deadbeef"
	_, err := v.Verify(eventBody, header)
	assert.NoError(t, err)
}

func TestSignatureVerifier_EmptySecret(t *testing.T) {
	v := NewSignatureVerifier("", DefaultTolerance)

	_, err := v.Verify(eventBody, "t=1,v1=00")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
}
