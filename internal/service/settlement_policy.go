package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/google/uuid"
)

// DefaultHoldPeriod is how long an approved commission waits before it can be settled.
const DefaultHoldPeriod = 7 * 24 * time.Hour

// GroupKey identifies one payout: a vendor is paid once per currency.
type GroupKey struct {
	VendorID uuid.UUID
	Currency string
}

// SettlementGroup is the set of eligible transactions that will become one payout.
type SettlementGroup struct {
	TenantID          uuid.UUID
	VendorID          uuid.UUID
	Currency          string
	TransactionIDs    []uuid.UUID
	GrossAmount       int64
	CommissionAmount  int64
	PlatformFeeAmount int64
	PeriodStart       time.Time
	PeriodEnd         time.Time
}

// NetAmount is gross minus commission minus platform fee.
func (g *SettlementGroup) NetAmount() int64 {
	return g.GrossAmount - g.CommissionAmount - g.PlatformFeeAmount
}

func (g *SettlementGroup) Totals() payout.Totals {
	return payout.Totals{
		GrossAmount:       g.GrossAmount,
		CommissionAmount:  g.CommissionAmount,
		PlatformFeeAmount: g.PlatformFeeAmount,
	}
}

func (g *SettlementGroup) add(t *commission.Transaction) {
	if len(g.TransactionIDs) == 0 || t.TransactionDate.Before(g.PeriodStart) {
		g.PeriodStart = t.TransactionDate
	}
	g.TransactionIDs = append(g.TransactionIDs, t.ID)
	g.GrossAmount += t.OrderAmount
	g.CommissionAmount += t.CommissionAmount
	g.PlatformFeeAmount += t.PlatformFeeAmount
}

// Decision is the outcome of evaluating a group. A skip is not an error.
type Decision struct {
	Settle bool
	Reason string
}

// Decide skips empty groups and groups whose net amount is not positive.
func (g *SettlementGroup) Decide() Decision {
	switch {
	case len(g.TransactionIDs) == 0:
		return Decision{Reason: "no eligible transactions"}
	case g.NetAmount() <= 0:
		return Decision{Reason: fmt.Sprintf("net amount %d is not positive", g.NetAmount())}
	default:
		return Decision{Settle: true}
	}
}

// SettlementPolicy selects which commission transactions are ready to be paid out.
type SettlementPolicy struct {
	commissions commission.Repository
}

func NewSettlementPolicy(commissions commission.Repository) *SettlementPolicy {
	return &SettlementPolicy{commissions: commissions}
}

// Cutoff is the latest transaction date eligible at asOf.
func Cutoff(asOf time.Time, holdPeriod time.Duration) time.Time {
	return asOf.Add(-holdPeriod)
}

// SelectSettlement groups every approved, unpaid transaction dated on or before
// asOf - holdPeriod. Groups are not filtered; call Decide on each.
func (p *SettlementPolicy) SelectSettlement(ctx context.Context, asOf time.Time, holdPeriod time.Duration) (map[GroupKey]*SettlementGroup, error) {
	cutoff := Cutoff(asOf, holdPeriod)
	txns, err := p.commissions.ListEligible(ctx, commission.EligibilityFilter{Until: cutoff})
	if err != nil {
		return nil, fmt.Errorf("list eligible transactions: %w", err)
	}
	return GroupTransactions(txns, cutoff), nil
}

// SelectPeriod is the ad-hoc variant for one vendor and an explicit window.
func (p *SettlementPolicy) SelectPeriod(ctx context.Context, vendorID uuid.UUID, start, end time.Time) (map[GroupKey]*SettlementGroup, error) {
	txns, err := p.commissions.ListEligible(ctx, commission.EligibilityFilter{
		VendorID: &vendorID,
		From:     &start,
		Until:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible transactions for vendor %s: %w", vendorID, err)
	}
	groups := GroupTransactions(txns, end)
	for _, g := range groups {
		g.PeriodStart = start
	}
	return groups, nil
}

// GroupTransactions partitions eligible transactions by vendor and currency. Transactions that
// are not eligible at cutoff are ignored.
func GroupTransactions(txns []*commission.Transaction, cutoff time.Time) map[GroupKey]*SettlementGroup {
	groups := make(map[GroupKey]*SettlementGroup)
	for _, t := range txns {
		if !t.IsEligible(cutoff) {
			continue
		}
		key := GroupKey{VendorID: t.VendorID, Currency: t.Currency}
		g, ok := groups[key]
		if !ok {
			g = &SettlementGroup{
				TenantID:  t.TenantID,
				VendorID:  t.VendorID,
				Currency:  t.Currency,
				PeriodEnd: cutoff,
			}
			groups[key] = g
		}
		g.add(t)
	}
	return groups
}
