/*
Package portfolio orchestrates the sales engine.

PURPOSE:
  The explicit service layer the CRUD plumbing calls into. The historical
  system computed commissions inside a database trigger; here every payment
  insert goes through RecordPayment, which makes the dependency and
  ordering explicit and testable while keeping the same guarantee: every
  payment deterministically produces its commissions inside one
  transaction.

CONTROL FLOW:
  RecordPayment:
    1. Load the sale and its payment history
    2. Classify the payment type when the caller did not supply one
    3. Resolve rates and phases AS OF the payment date (registry)
    4. Run the commission calculator
    5. Persist payment + commissions atomically

  Configuration-integrity failures (bad phase table, out-of-bounds rate)
  abort before anything is written. Duplicate commissions are silent
  no-ops. Compliance reads never fail the whole report over missing
  schedules - they degrade to "no schedule".

SEE ALSO:
  - store.go: The persistence contract and its atomicity guarantees
  - commission/calculator.go: The phase-ladder core
  - compliance/report.go: The dashboard aggregation
*/
package portfolio

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/compliance"
	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store        Store
	payout       commission.PayoutPolicy
	cancellation commission.CancellationPolicy
	now          func() time.Time
}

type Option func(*Service)

// WithPayoutPolicy selects financed-phase eligibility.
func WithPayoutPolicy(p commission.PayoutPolicy) Option {
	return func(s *Service) { s.payout = p }
}

// WithCancellationPolicy selects the desistimiento disposition.
func WithCancellationPolicy(p commission.CancellationPolicy) Option {
	return func(s *Service) { s.cancellation = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		payout:       commission.StandardPayout{},
		cancellation: commission.KeepEarned,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// SALE LIFECYCLE
// =============================================================================

// NewSale carries the immutable fields of a sale to create.
type NewSale struct {
	ProjectID  sales.ProjectID
	UnitID     sales.UnitID
	ClientID   sales.ClientID
	SalesRepID sales.RecipientID

	SaleDate        time.Time
	PriceWithTax    decimal.Decimal
	PriceWithoutTax decimal.Decimal

	DownPaymentAmount decimal.Decimal
	FinancedAmount    decimal.Decimal

	ReferralApplies bool
	SpecialCase     bool
	SpecialCaseType string
	Notes           string
}

// CreateSale validates the sale invariants and claims the unit. Exactly one
// of two concurrent attempts against the same unit succeeds; the loser gets
// a conflict, never a silent overwrite.
func (s *Service) CreateSale(ctx context.Context, in NewSale) (sales.Sale, error) {
	sale := sales.Sale{
		ID:                sales.SaleID(uuid.NewString()),
		ProjectID:         in.ProjectID,
		UnitID:            in.UnitID,
		ClientID:          in.ClientID,
		SalesRepID:        in.SalesRepID,
		SaleDate:          in.SaleDate,
		PriceWithTax:      in.PriceWithTax,
		PriceWithoutTax:   in.PriceWithoutTax,
		DownPaymentAmount: in.DownPaymentAmount,
		FinancedAmount:    in.FinancedAmount,
		Status:            sales.SaleActive,
		ReferralApplies:   in.ReferralApplies,
		SpecialCase:       in.SpecialCase,
		SpecialCaseType:   in.SpecialCaseType,
		Notes:             in.Notes,
		CreatedAt:         s.now(),
	}
	if err := sale.Validate(); err != nil {
		return sales.Sale{}, err
	}
	if err := s.store.CreateSale(ctx, sale); err != nil {
		return sales.Sale{}, err
	}
	return sale, nil
}

// CancelSale is the desistimiento: the sale moves to cancelled, the unit
// reverts to available, and commissions are disposed of per the configured
// cancellation policy.
func (s *Service) CancelSale(ctx context.Context, id sales.SaleID) error {
	return s.store.CancelSale(ctx, id, s.cancellation.VoidPending, s.cancellation.VoidPaid)
}

// CompleteSale records the deed signing. Terminal.
func (s *Service) CompleteSale(ctx context.Context, id sales.SaleID, deedSignedAt time.Time) error {
	return s.store.CompleteSale(ctx, id, deedSignedAt)
}

// =============================================================================
// PAYMENTS → COMMISSIONS
// =============================================================================

// RecordPaymentInput describes one incoming payment. Type may be empty;
// the service then classifies it from the sale's cumulative state. ID may
// be set by callers that need idempotent retries; otherwise one is issued.
type RecordPaymentInput struct {
	ID     sales.PaymentID
	SaleID sales.SaleID
	Date   time.Time
	Amount decimal.Decimal
	Type   sales.PaymentType
	Method string
	Notes  string
}

// RecordPayment persists one payment and its derived commissions
// atomically, returning the commissions actually inserted. Re-recording
// the same payment ID is a no-op for both the payment and its commissions.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (sales.Payment, []commission.Commission, error) {
	sale, err := s.store.GetSale(ctx, in.SaleID)
	if err != nil {
		return sales.Payment{}, nil, err
	}

	history, err := s.store.PaymentsForSale(ctx, in.SaleID)
	if err != nil {
		return sales.Payment{}, nil, err
	}

	payment := sales.Payment{
		ID:        in.ID,
		SaleID:    in.SaleID,
		Date:      in.Date,
		Amount:    in.Amount,
		Type:      in.Type,
		Method:    in.Method,
		Notes:     in.Notes,
		CreatedAt: s.now(),
	}
	if payment.ID == "" {
		payment.ID = sales.PaymentID(uuid.NewString())
	}
	// A replayed payment ID adopts the stored row wholesale, so the rerun
	// computes against the exact state the original write saw and produces
	// the same idempotency keys.
	for _, p := range history {
		if p.ID == payment.ID {
			payment = p
			break
		}
	}

	priorCount, priorDownPayment := priorCredit(history, payment)
	if payment.Type == "" {
		payment.Type = classifyPayment(priorCount, priorDownPayment, sale.DownPaymentAmount)
	}
	if err := payment.Validate(); err != nil {
		return sales.Payment{}, nil, err
	}

	rows, err := s.calculateCommissions(ctx, sale, payment, priorDownPayment)
	if err != nil {
		// Configuration integrity: reject the whole write, payment included.
		return sales.Payment{}, nil, err
	}

	inserted, err := s.store.RecordPayment(ctx, payment, rows)
	if err != nil {
		return sales.Payment{}, nil, err
	}
	return payment, inserted, nil
}

// calculateCommissions resolves reference data as of the payment date and
// runs the calculator. Returns no rows (and no error) when the sale's
// status excludes it from commission per the cancellation policy.
func (s *Service) calculateCommissions(ctx context.Context, sale sales.Sale, payment sales.Payment, priorDownPayment decimal.Decimal) ([]commission.Commission, error) {
	if sale.Status == sales.SaleCancelled && !s.cancellation.PayOnCancelledSale {
		return nil, nil
	}

	rates, err := s.store.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	phases, err := s.store.ListPhases(ctx)
	if err != nil {
		return nil, err
	}
	registry := commission.NewRegistry(rates, phases)

	effectiveRates, err := registry.RatesAsOf(payment.Date)
	if err != nil {
		return nil, err
	}
	phaseTable, err := registry.PhasesAsOf(payment.Date)
	if err != nil {
		return nil, err
	}

	return commission.Calculate(commission.Input{
		Payment: payment,
		Sale: commission.SaleState{
			SaleID:               sale.ID,
			DownPaymentAmount:    sale.DownPaymentAmount,
			PriorDownPaymentPaid: priorDownPayment,
			FinancedAmount:       sale.FinancedAmount,
		},
		Rates:  effectiveRates,
		Phases: phaseTable,
		Payout: s.payout,
		Now:    s.now,
	})
}

// priorCredit counts the payments recorded strictly before the given one
// and sums their down-payment credit. Recording order is the canonical
// order for attribution: commission rows are immutable once written, so a
// backdated payment must never shift the phase attribution of rows that
// were calculated before it existed. Date-first ordering would do exactly
// that and make recalculation mint duplicate rows.
func priorCredit(history []sales.Payment, p sales.Payment) (int, decimal.Decimal) {
	count := 0
	credit := decimal.Zero
	for _, h := range history {
		if h.ID == p.ID || !recordedBefore(h, p) {
			continue
		}
		count++
		if h.Type.CountsTowardDownPayment() {
			credit = credit.Add(h.Amount)
		}
	}
	return count, credit
}

// recordedBefore orders payments by recording time, with payment date and
// ID as deterministic tie-breaks for rows stamped in the same instant.
func recordedBefore(a, b sales.Payment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

// classifyPayment derives the payment type from the sale's cumulative
// state: the first payment is the reservation, pre-financing payments are
// down payments, and once the agreed down payment is exhausted everything
// is a financed payment.
func classifyPayment(priorCount int, priorDownPayment, agreedDownPayment decimal.Decimal) sales.PaymentType {
	switch {
	case priorCount == 0:
		return sales.PaymentReservation
	case priorDownPayment.LessThan(agreedDownPayment):
		return sales.PaymentDownPayment
	default:
		return sales.PaymentFinanced
	}
}

// RecalculateCommissions re-runs the calculation for an already-recorded
// payment. By the idempotence contract this inserts nothing when the rows
// already exist; it backfills rows for payments recorded before a recipient
// was configured.
func (s *Service) RecalculateCommissions(ctx context.Context, paymentID sales.PaymentID) ([]commission.Commission, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	sale, err := s.store.GetSale(ctx, payment.SaleID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.PaymentsForSale(ctx, payment.SaleID)
	if err != nil {
		return nil, err
	}
	// Same prior-credit rule as RecordPayment: recalculation reproduces the
	// original attribution, row for row, key for key.
	_, priorDownPayment := priorCredit(history, payment)

	rows, err := s.calculateCommissions(ctx, sale, payment, priorDownPayment)
	if err != nil {
		return nil, err
	}
	return s.store.RecordPayment(ctx, payment, rows)
}

// =============================================================================
// REPORTS - Read-only, recomputed per call
// =============================================================================

// ComplianceReport builds the per-project dashboard as of a date.
// Missing schedules degrade to "no schedule" rows; they never fail the
// report.
func (s *Service) ComplianceReport(ctx context.Context, projectID sales.ProjectID, asOf time.Time) (compliance.ProjectReport, error) {
	units, err := s.store.ListUnits(ctx, projectID)
	if err != nil {
		return compliance.ProjectReport{}, err
	}
	saleRows, err := s.store.ListSales(ctx, projectID)
	if err != nil {
		return compliance.ProjectReport{}, err
	}

	paymentsBySale := make(map[sales.SaleID][]sales.Payment, len(saleRows))
	for _, sale := range saleRows {
		if sale.Status != sales.SaleActive {
			continue
		}
		ps, err := s.store.PaymentsForSale(ctx, sale.ID)
		if err != nil {
			return compliance.ProjectReport{}, err
		}
		paymentsBySale[sale.ID] = ps
	}

	expectedByUnit := make(map[sales.UnitID][]sales.ExpectedPayment, len(units))
	for _, u := range units {
		exp, err := s.store.ExpectedForUnit(ctx, u.ID)
		if err != nil {
			return compliance.ProjectReport{}, err
		}
		if len(exp) == 0 {
			log.Printf("compliance: unit %s (%s) has no expected-payment schedule", u.Number, u.ID)
			continue
		}
		expectedByUnit[u.ID] = exp
	}

	return compliance.BuildProjectReport(compliance.ReportInput{
		ProjectID:      projectID,
		AsOf:           asOf,
		Units:          units,
		Sales:          saleRows,
		PaymentsBySale: paymentsBySale,
		ExpectedByUnit: expectedByUnit,
	}), nil
}

// RecipientReport lists a recipient's commission rows with status totals.
func (s *Service) RecipientReport(ctx context.Context, recipientID sales.RecipientID) ([]commission.Commission, commission.Summary, error) {
	rows, err := s.store.CommissionsForRecipient(ctx, recipientID)
	if err != nil {
		return nil, commission.Summary{}, err
	}
	return rows, commission.Summarize(rows), nil
}

// MarkCommissionPaid settles one commission row.
func (s *Service) MarkCommissionPaid(ctx context.Context, id string) error {
	return s.store.MarkCommissionPaid(ctx, id, s.now())
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// SaveRate validates and stores one commission rate row.
func (s *Service) SaveRate(ctx context.Context, r commission.Rate) error {
	if !sales.ValidRate(r.Rate) {
		return &sales.ConfigError{
			Reason: "rate outside [0, 0.05]",
			Err:    sales.ErrRateOutOfBounds,
		}
	}
	return s.store.SaveRate(ctx, r)
}

// SavePhases validates a complete replacement phase table and stores it.
func (s *Service) SavePhases(ctx context.Context, phases []commission.Phase) error {
	if _, err := commission.NewPhaseTable(phases); err != nil {
		return err
	}
	return s.store.SavePhases(ctx, phases)
}

// SetExpectedSchedule replaces a unit's installment schedule, numbering
// installments in due-date order.
func (s *Service) SetExpectedSchedule(ctx context.Context, unitID sales.UnitID, rows []sales.ExpectedPayment) error {
	unit, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return err
	}

	ordered := make([]sales.ExpectedPayment, len(rows))
	copy(ordered, rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].DueDate.Before(ordered[j].DueDate) })
	for i := range ordered {
		if ordered[i].ID == "" {
			ordered[i].ID = uuid.NewString()
		}
		ordered[i].ProjectID = unit.ProjectID
		ordered[i].UnitID = unitID
		ordered[i].InstallmentNumber = i + 1
		if ordered[i].Source == "" {
			ordered[i].Source = sales.ScheduleBudget
		}
	}
	return s.store.ReplaceExpectedSchedule(ctx, unitID, ordered)
}
