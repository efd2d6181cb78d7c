package controller

import (
	"errors"
	"io"
	"net/http"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/rs/zerolog"
)

const maxWebhookBodySize = 256 << 10

// outcomeMalformed acknowledges a signed body that is not a usable event.
const outcomeMalformed = "malformed"

// WebhookController receives processor notifications. Only a verified, well-formed event is
// applied; the processor redelivers anything that is not acknowledged with 2xx.
type WebhookController struct {
	verifier    *providers.SignatureVerifier
	settlements *service.SettlementService
	metrics     *observability.Metrics
}

func NewWebhookController(verifier *providers.SignatureVerifier, settlements *service.SettlementService, metrics *observability.Metrics) *WebhookController {
	return &WebhookController{verifier: verifier, settlements: settlements, metrics: metrics}
}

func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		writeError(w, r, domainErrors.NewValidationError("body", "unreadable or too large"))
		return
	}

	ev, err := c.verifier.Verify(body, r.Header.Get(providers.SignatureHeader))
	if errors.Is(err, domainErrors.ErrMalformedEvent) {
		// Authentic but unusable; redelivery would not fix it.
		log.Warn().Err(err).Msg("ignoring malformed webhook event")
		c.observe("unknown", outcomeMalformed)
		writeJSON(w, http.StatusOK, WebhookAckResponse{Received: true, Outcome: outcomeMalformed})
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("rejected webhook delivery")
		c.observe("unknown", "rejected")
		writeError(w, r, err)
		return
	}

	outcome, err := c.settlements.ApplyWebhook(r.Context(), ev)
	if err != nil {
		// Any failure here must be retried by the processor, whatever the cause.
		log.Error().Err(err).Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("webhook handling failed")
		c.observe(string(ev.Type), "error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "event not applied", Code: "internal_error"})
		return
	}

	c.observe(string(ev.Type), string(outcome))
	writeJSON(w, http.StatusOK, WebhookAckResponse{Received: true, Outcome: string(outcome)})
}

func (c *WebhookController) observe(eventType, outcome string) {
	if c.metrics != nil {
		c.metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	}
}
