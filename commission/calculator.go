/*
calculator.go - Payment → commission rows

PURPOSE:
  The deterministic core: given one payment and the sale's cumulative
  state, emit one commission row per eligible recipient per phase the
  payment touches.

THE PHASE LADDER:
  The agreed down payment is split into three sequential tranches by the
  phase weights (e.g., 30/30/40). A payment toward the down payment is
  attributed to whichever tranche the cumulative total currently sits in.
  A payment that straddles a boundary is split into sub-bases, one per
  phase crossed - no commission base may span two phases in one row.

  down payment = 100,000, weights 30/30/40, prior paid = 0
  payment of 40,000 →
      phase 1: base 30,000   (fills the first tranche)
      phase 2: base 10,000   (starts the second)

OVERFLOW:
  Whatever exceeds the agreed down payment spills into the financed phase
  (PhaseFinanced). This keeps the per-phase invariant provable: summing
  base amounts for phases 1..3 across all of a sale's commissions can
  never exceed the sale's down-payment amount.

FINANCED PAYMENTS:
  Phases do not apply; the whole amount lands in PhaseFinanced. Recipients
  with AlwaysPaid earn on it unconditionally; everyone else only when the
  payout policy says so.

IDEMPOTENCE:
  Rows carry a deterministic key over (payment, recipient, phase). The
  store's unique index on the same triple turns a re-run into a no-op.
*/
package commission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// CALCULATOR INPUT
// =============================================================================

// SaleState is the slice of a sale's history the calculator needs. The
// caller (portfolio service or store) assembles it; the calculator never
// reads storage.
type SaleState struct {
	SaleID            sales.SaleID
	DownPaymentAmount decimal.Decimal

	// Cumulative prior reservation + down_payment amounts, excluding the
	// payment being calculated.
	PriorDownPaymentPaid decimal.Decimal

	FinancedAmount decimal.Decimal
}

// Input bundles everything one calculation needs. Rates and Phases come
// from Registry.RatesAsOf / PhasesAsOf for the payment date.
type Input struct {
	Payment sales.Payment
	Sale    SaleState
	Rates   []Rate
	Phases  PhaseTable

	// Payout decides financed-phase eligibility. Nil means StandardPayout.
	Payout PayoutPolicy

	// Now stamps CreatedAt; nil means time.Now.
	Now func() time.Time
}

// segment is one (phase, base) attribution of the payment amount.
type segment struct {
	phase int
	base  decimal.Decimal
}

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate translates one payment into its commission row set. It is a
// pure function of its input: same payment + same reference data = same
// rows (IDs aside). Errors are configuration-integrity violations and must
// abort the write that carried the payment.
func Calculate(in Input) ([]Commission, error) {
	if err := in.Payment.Validate(); err != nil {
		return nil, err
	}
	if in.Sale.DownPaymentAmount.IsNegative() {
		return nil, &sales.ConfigError{Reason: "negative down payment on sale state", Err: sales.ErrSaleInvalid}
	}
	for _, r := range in.Rates {
		if !sales.ValidRate(r.Rate) {
			return nil, &sales.ConfigError{
				Reason: fmt.Sprintf("rate %s for recipient %s outside [0, 0.05]", r.Rate, r.RecipientID),
				Err:    sales.ErrRateOutOfBounds,
			}
		}
	}

	payout := in.Payout
	if payout == nil {
		payout = StandardPayout{}
	}
	now := in.Now
	if now == nil {
		now = time.Now
	}

	segments := attribute(in.Payment, in.Sale, in.Phases)

	var rows []Commission
	createdAt := now()
	for _, rate := range in.Rates {
		for _, seg := range segments {
			if !payout.AppliesTo(rate, seg.phase) {
				continue
			}
			rows = append(rows, Commission{
				ID:               uuid.NewString(),
				PaymentID:        in.Payment.ID,
				SaleID:           in.Sale.SaleID,
				RecipientID:      rate.RecipientID,
				RecipientName:    rate.RecipientName,
				Phase:            seg.phase,
				Rate:             rate.Rate,
				BaseAmount:       seg.base,
				CommissionAmount: sales.Round4(seg.base.Mul(rate.Rate)),
				Status:           StatusPending,
				IdempotencyKey:   IdempotencyKey(in.Payment.ID, rate.RecipientID, seg.phase),
				CreatedAt:        createdAt,
			})
		}
	}
	return rows, nil
}

// attribute splits the payment amount across the phase ladder.
func attribute(p sales.Payment, s SaleState, phases PhaseTable) []segment {
	if !p.Type.CountsTowardDownPayment() {
		// Financed payments skip the ladder entirely.
		return []segment{{phase: PhaseFinanced, base: p.Amount}}
	}

	boundaries := phases.Boundaries(s.DownPaymentAmount)

	var segs []segment
	cursor := s.PriorDownPaymentPaid
	remaining := p.Amount

	for i := 0; i < PhaseCount && remaining.IsPositive(); i++ {
		if cursor.GreaterThanOrEqual(boundaries[i]) {
			continue // tranche already filled by prior payments
		}
		take := decimal.Min(remaining, boundaries[i].Sub(cursor))
		segs = append(segs, segment{phase: i + 1, base: take})
		cursor = cursor.Add(take)
		remaining = remaining.Sub(take)
	}

	// Anything past the agreed down payment belongs to the financed phase.
	if remaining.IsPositive() {
		segs = append(segs, segment{phase: PhaseFinanced, base: remaining})
	}
	return segs
}
