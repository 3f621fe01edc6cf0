/*
Package sales provides the shared domain model for the portfolio sales engine.

PURPOSE:
  This package contains the record types every other package works with:
  projects, sellable units, clients, sale agreements, payments, and the
  expected installment schedule. It also holds the fixed-point money
  helpers and the centralized error taxonomy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Project/Unit/Client: the inventory side of the model
  - Sale: the immutable contractual agreement binding unit + client
  - Payment: an append-only money movement against a sale
  - ExpectedPayment: a scheduled installment, independent of actual payments
  - Typed IDs: strong typing prevents mixing sale/unit/payment identifiers

DESIGN PRINCIPLES:
  1. Immutability: Payments are never mutated or deleted; Sales only change
     status and signing dates after creation
  2. Precision: decimal.Decimal for every monetary value (4 fractional digits)
  3. One active sale per unit at a time - enforced by the store, checked here

SEE ALSO:
  - money.go: Rounding and parsing helpers
  - errors.go: Sentinel and structured errors
  - commission/: Rate registry and commission calculator
  - compliance/: Payment-health evaluation
*/
package sales

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProjectID string
type UnitID string
type ClientID string
type SaleID string
type PaymentID string
type RecipientID string

// =============================================================================
// PROJECT - A development; owns units
// =============================================================================

type Project struct {
	ID          ProjectID
	Name        string // unique, lowercase key (e.g., "boulevard")
	DisplayName string // e.g., "Boulevard 5"
	CreatedAt   time.Time
}

// =============================================================================
// UNIT - Sellable inventory within a project
// =============================================================================

type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitReserved  UnitStatus = "reserved"
	UnitSold      UnitStatus = "sold"
	UnitCancelled UnitStatus = "cancelled"
)

type Unit struct {
	ID        UnitID
	ProjectID ProjectID
	Number    string // unique within the project
	UnitType  string

	PriceWithTax    decimal.Decimal
	PriceWithoutTax decimal.Decimal

	// Contractually agreed down payment (the "enganche").
	DownPayment decimal.Decimal

	Status    UnitStatus
	CreatedAt time.Time
}

// CanTransitionTo reports whether a unit status change is legal.
// The sold transition additionally requires a compare-and-swap at the
// store level; this only encodes the state machine.
func (s UnitStatus) CanTransitionTo(to UnitStatus) bool {
	switch s {
	case UnitAvailable:
		return to == UnitReserved || to == UnitSold
	case UnitReserved:
		return to == UnitAvailable || to == UnitSold
	case UnitSold:
		return to == UnitAvailable || to == UnitCancelled
	default:
		return false
	}
}

// =============================================================================
// CLIENT - A buyer, identified by normalized full name
// =============================================================================

type Client struct {
	ID        ClientID
	FullName  string // title-cased, see NormalizeName
	CreatedAt time.Time
}

// NormalizeName collapses whitespace and title-cases a client name so that
// "JUAN   perez" and "juan Perez" resolve to the same client.
func NormalizeName(name string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// =============================================================================
// SALE - The contractual agreement
// =============================================================================

type SaleStatus string

const (
	SaleActive    SaleStatus = "active"
	SaleCancelled SaleStatus = "cancelled" // desistimiento
	SaleCompleted SaleStatus = "completed" // deed signed, terminal
)

type Sale struct {
	ID         SaleID
	ProjectID  ProjectID
	UnitID     UnitID
	ClientID   ClientID
	SalesRepID RecipientID

	SaleDate        time.Time
	PriceWithTax    decimal.Decimal
	PriceWithoutTax decimal.Decimal

	// Invariant: DownPaymentAmount + FinancedAmount == PriceWithTax
	DownPaymentAmount decimal.Decimal
	FinancedAmount    decimal.Decimal

	Status SaleStatus

	ReferralApplies bool
	SpecialCase     bool
	SpecialCaseType string
	Notes           string

	// Only these dates mutate after creation (besides Status).
	PromiseSignedAt *time.Time
	DeedSignedAt    *time.Time

	CreatedAt time.Time
}

// Validate checks the configuration-integrity invariants a sale must hold
// at creation time. Violations reject the write, they are never repaired.
func (s Sale) Validate() error {
	if s.ProjectID == "" || s.UnitID == "" || s.ClientID == "" {
		return &ConfigError{Reason: "sale missing project, unit or client reference", Err: ErrSaleInvalid}
	}
	if s.DownPaymentAmount.IsNegative() || s.FinancedAmount.IsNegative() {
		return &ConfigError{Reason: "sale amounts must be non-negative", Err: ErrSaleInvalid}
	}
	if !s.DownPaymentAmount.Add(s.FinancedAmount).Equal(s.PriceWithTax) {
		return &ConfigError{
			Reason: "down_payment + financed must equal price_with_tax",
			Err:    ErrSaleAmountMismatch,
		}
	}
	return nil
}

// =============================================================================
// PAYMENT - Append-only money movement against a sale
// =============================================================================

type PaymentType string

const (
	PaymentReservation PaymentType = "reservation"
	PaymentDownPayment PaymentType = "down_payment"
	PaymentFinanced    PaymentType = "financed_payment"
)

// CountsTowardDownPayment reports whether a payment type consumes the
// agreed down-payment commitment (and therefore the phase ladder).
func (t PaymentType) CountsTowardDownPayment() bool {
	return t == PaymentReservation || t == PaymentDownPayment
}

type Payment struct {
	ID     PaymentID
	SaleID SaleID

	Date   time.Time
	Amount decimal.Decimal // always positive
	Type   PaymentType

	Method string
	Notes  string

	CreatedAt time.Time
}

// Validate rejects malformed payments before they reach the ledger.
func (p Payment) Validate() error {
	if p.SaleID == "" {
		return &ConfigError{Reason: "payment missing sale reference", Err: ErrPaymentInvalid}
	}
	if !p.Amount.IsPositive() {
		return &ConfigError{Reason: "payment amount must be positive", Err: ErrPaymentInvalid}
	}
	switch p.Type {
	case PaymentReservation, PaymentDownPayment, PaymentFinanced:
		return nil
	default:
		return &ConfigError{Reason: "unknown payment type " + string(p.Type), Err: ErrPaymentInvalid}
	}
}

// =============================================================================
// EXPECTED PAYMENT - Scheduled installment (budget or contract schedule)
// =============================================================================

type ScheduleSource string

const (
	ScheduleBudget   ScheduleSource = "budget"
	ScheduleContract ScheduleSource = "contract"
)

type ExpectedPayment struct {
	ID        string
	ProjectID ProjectID
	UnitID    UnitID

	DueDate time.Time
	Amount  decimal.Decimal

	// Assigned in due-date order when the schedule is loaded.
	InstallmentNumber int

	Source ScheduleSource
}
