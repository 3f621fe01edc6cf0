/*
Package commission implements the commission calculation engine.

PURPOSE:
  Turns a recorded payment into zero or more commission line items: one per
  eligible recipient per phase the payment touches. This is the part of the
  system with real algorithmic content - everything around it is plumbing.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rate: who earns commission and at what percentage (reference data)
  - Phase: a sequential tranche of the down-payment commitment; the three
    phase weights always sum to exactly 1.0000
  - Commission: one immutable row per (payment, recipient, phase)

DESIGN PRINCIPLES:
  1. Determinism: the same payment + sale state + reference data always
     produces the same row set
  2. Idempotence: every row carries a deterministic key over
     (payment, recipient, phase); re-running a calculation can never
     duplicate rows
  3. Precision: decimal.Decimal throughout, half-up rounding to 4 places
     applied exactly once per row

SEE ALSO:
  - registry.go: As-of-date rate/phase lookup and integrity validation
  - calculator.go: The phase-ladder walk and boundary splitting
  - policy.go: Payout and cancellation policy strategies
*/
package commission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// RATE - Reference row: recipient + percentage
// =============================================================================

type RecipientType string

const (
	RecipientManagement RecipientType = "management"
	RecipientSalesRep   RecipientType = "sales_rep"
	RecipientSpecial    RecipientType = "special"
)

// Rate is an effective-dated reference row. A rate applies to a payment when
// it is active AND the payment date falls inside [EffectiveFrom, EffectiveTo).
// Nil bounds are open: a rate with neither bound behaves like the legacy
// flat "active" flag.
type Rate struct {
	RecipientID   sales.RecipientID
	RecipientName string
	Type          RecipientType

	// Percentage as a decimal in [0, 0.05]. 0.05 = 5%.
	Rate decimal.Decimal

	// AlwaysPaid recipients earn commission on every payment type,
	// including financed payments.
	AlwaysPaid bool

	// Active is an immediate kill switch, independent of effective dating.
	Active bool

	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

// EffectiveAt reports whether the rate applies as of the given date.
func (r Rate) EffectiveAt(at time.Time) bool {
	if !r.Active {
		return false
	}
	if r.EffectiveFrom != nil && at.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && !at.Before(*r.EffectiveTo) {
		return false
	}
	return true
}

// =============================================================================
// PHASE - Sequential tranche of the down-payment commitment
// =============================================================================

// PhaseFinanced is the flat terminal phase for payments attributed against
// the financed balance. Phases 1..3 cover the down payment only.
const PhaseFinanced = 0

// PhaseCount is the number of down-payment phases.
const PhaseCount = 3

type Phase struct {
	Number int // 1..PhaseCount
	Label  string

	// Weight of the down payment covered by this phase, in [0,1].
	// Weights of phases 1..3 sum to exactly 1.0000.
	Weight decimal.Decimal

	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

// EffectiveAt reports whether the phase row applies as of the given date.
func (p Phase) EffectiveAt(at time.Time) bool {
	if p.EffectiveFrom != nil && at.Before(*p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
		return false
	}
	return true
}

// DefaultPhases is the standard 30/30/40 split used by every current
// project. Seeded into new databases; deployments override via the
// commission_phases table.
func DefaultPhases() []Phase {
	return []Phase{
		{Number: 1, Label: "Fase 1", Weight: sales.MustDecimal("0.3000")},
		{Number: 2, Label: "Fase 2", Weight: sales.MustDecimal("0.3000")},
		{Number: 3, Label: "Fase 3", Weight: sales.MustDecimal("0.4000")},
	}
}

// =============================================================================
// COMMISSION - One row per (payment, recipient, phase)
// =============================================================================

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
)

// Commission is immutable after creation except for Status/PaidAt.
type Commission struct {
	ID        string
	PaymentID sales.PaymentID
	SaleID    sales.SaleID

	RecipientID   sales.RecipientID
	RecipientName string

	// Phase the base was attributed to: 1..3, or PhaseFinanced.
	Phase int

	Rate             decimal.Decimal
	BaseAmount       decimal.Decimal
	CommissionAmount decimal.Decimal

	Status Status
	PaidAt *time.Time

	// Deterministic over (payment, recipient, phase); the uniqueness
	// anchor for idempotent inserts.
	IdempotencyKey string

	CreatedAt time.Time
}

// IdempotencyKey builds the deterministic uniqueness key for a commission row.
func IdempotencyKey(paymentID sales.PaymentID, recipientID sales.RecipientID, phase int) string {
	return fmt.Sprintf("%s:%s:%d", paymentID, recipientID, phase)
}

// Summary aggregates commission rows for reporting.
type Summary struct {
	Rows    int
	Total   decimal.Decimal
	Pending decimal.Decimal
	Paid    decimal.Decimal
	Void    decimal.Decimal
}

// Summarize folds commission rows into per-status totals.
func Summarize(rows []Commission) Summary {
	s := Summary{
		Rows:    len(rows),
		Total:   decimal.Zero,
		Pending: decimal.Zero,
		Paid:    decimal.Zero,
		Void:    decimal.Zero,
	}
	for _, c := range rows {
		switch c.Status {
		case StatusPaid:
			s.Paid = s.Paid.Add(c.CommissionAmount)
		case StatusVoid:
			s.Void = s.Void.Add(c.CommissionAmount)
		default:
			s.Pending = s.Pending.Add(c.CommissionAmount)
		}
		// Void rows do not count toward the owed total.
		if c.Status != StatusVoid {
			s.Total = s.Total.Add(c.CommissionAmount)
		}
	}
	return s
}
