package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PayoutController exposes payouts to back-office operators.
type PayoutController struct {
	settlements *service.SettlementService
}

func NewPayoutController(settlements *service.SettlementService) *PayoutController {
	return &PayoutController{settlements: settlements}
}

func (c *PayoutController) List(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payouts, err := c.settlements.ListPayouts(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]*PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		resp = append(resp, FromPayout(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *PayoutController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := c.settlements.GetPayout(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromPayout(p))
}

// Complete marks a payout paid out of band.
func (c *PayoutController) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CompletePayoutRequest
	if r.ContentLength != 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	p, err := c.settlements.CompletePayout(r.Context(), id, req.Reference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromPayout(p))
}

// Dispatch creates payouts for one vendor and period outside the scheduled run.
func (c *PayoutController) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchPeriodRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vendorID, err := parseUUIDParam("vendor_id", req.VendorID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	results, err := c.settlements.DispatchPeriod(r.Context(), service.PeriodPayoutRequest{
		VendorID:      vendorID,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]*DispatchResultResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, FromPayoutResult(res))
	}
	writeJSON(w, http.StatusCreated, resp)
}

// RunSettlement runs the settlement job synchronously and returns its report.
func (c *PayoutController) RunSettlement(w http.ResponseWriter, r *http.Request) {
	var req RunSettlementRequest
	if r.ContentLength != 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	report, err := c.settlements.RunSettlement(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRunReport(report))
}

// RetryPayments runs the subscription payment retry job synchronously.
func (c *PayoutController) RetryPayments(w http.ResponseWriter, r *http.Request) {
	report, err := c.settlements.RetryFailedPayments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRunReport(report))
}

func listFilterFromQuery(r *http.Request) (payout.ListFilter, error) {
	q := r.URL.Query()
	var filter payout.ListFilter
	var err error

	if filter.TenantID, err = optionalUUID("tenant_id", q.Get("tenant_id")); err != nil {
		return filter, err
	}
	if filter.VendorID, err = optionalUUID("vendor_id", q.Get("vendor_id")); err != nil {
		return filter, err
	}
	if s := q.Get("status"); s != "" {
		status := payout.Status(s)
		filter.Status = &status
	}
	if filter.From, err = optionalTime("from", q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = optionalTime("to", q.Get("to")); err != nil {
		return filter, err
	}
	if filter.Limit, err = intParam("limit", q.Get("limit"), defaultPageSize, maxPageSize); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam("offset", q.Get("offset"), 0, 1<<31-1); err != nil {
		return filter, err
	}
	return filter, nil
}
