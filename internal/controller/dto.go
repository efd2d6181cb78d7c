package controller

import (
	"time"

	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---

// DispatchPeriodRequest asks for an ad-hoc payout of one vendor's eligible transactions.
type DispatchPeriodRequest struct {
	VendorID      string    `json:"vendor_id" validate:"required,uuid"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end" validate:"required"`
	PaymentMethod string    `json:"payment_method,omitempty" validate:"omitempty,max=32"`
}

// CompletePayoutRequest records a payout settled outside the processor.
type CompletePayoutRequest struct {
	Reference string `json:"reference,omitempty" validate:"omitempty,max=255"`
}

// RunSettlementRequest triggers a settlement run. AsOf defaults to now.
type RunSettlementRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// --- Response DTOs ---

// PayoutResponse represents a payout in API responses. Amounts are decimal strings in major units.
type PayoutResponse struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	VendorID          string     `json:"vendor_id"`
	StoreID           *string    `json:"store_id,omitempty"`
	PeriodStart       time.Time  `json:"period_start"`
	PeriodEnd         time.Time  `json:"period_end"`
	TransactionIDs    []string   `json:"transaction_ids"`
	Currency          string     `json:"currency"`
	GrossAmount       string     `json:"gross_amount"`
	CommissionAmount  string     `json:"commission_amount"`
	PlatformFeeAmount string     `json:"platform_fee_amount"`
	NetAmount         string     `json:"net_amount"`
	PaymentMethod     string     `json:"payment_method"`
	Status            string     `json:"status"`
	ExternalReference *string    `json:"external_reference,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DispatchResultResponse reports one payout created by a dispatch.
type DispatchResultResponse struct {
	Payout        *PayoutResponse `json:"payout"`
	Transferred   bool            `json:"transferred"`
	TransferError string          `json:"transfer_error,omitempty"`
}

// RunReportResponse summarises a batch job run.
type RunReportResponse struct {
	Job        string    `json:"job"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// WebhookAckResponse acknowledges a processor notification.
type WebhookAckResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

func FromPayout(b *payout.Batch) *PayoutResponse {
	resp := &PayoutResponse{
		ID:                b.ID.String(),
		TenantID:          b.TenantID.String(),
		VendorID:          b.VendorID.String(),
		PeriodStart:       b.PeriodStart,
		PeriodEnd:         b.PeriodEnd,
		TransactionIDs:    make([]string, len(b.TransactionIDs)),
		Currency:          b.Currency,
		GrossAmount:       formatCents(b.GrossAmount),
		CommissionAmount:  formatCents(b.CommissionAmount),
		PlatformFeeAmount: formatCents(b.PlatformFeeAmount),
		NetAmount:         formatCents(b.NetAmount),
		PaymentMethod:     b.PaymentMethod,
		Status:            string(b.Status),
		ExternalReference: b.ExternalReference,
		FailureReason:     b.FailureReason,
		ProcessedAt:       b.ProcessedAt,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
	for i, id := range b.TransactionIDs {
		resp.TransactionIDs[i] = id.String()
	}
	if b.StoreID != nil {
		s := b.StoreID.String()
		resp.StoreID = &s
	}
	return resp
}

func FromPayoutResult(r *service.PayoutResult) *DispatchResultResponse {
	resp := &DispatchResultResponse{
		Payout:      FromPayout(r.Payout),
		Transferred: r.Transferred,
	}
	if r.TransferErr != nil {
		resp.TransferError = r.TransferErr.Error()
	}
	return resp
}

func FromRunReport(r service.RunReport) *RunReportResponse {
	return &RunReportResponse{
		Job:        r.Job,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// formatCents renders minor units as a fixed two-decimal string.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
