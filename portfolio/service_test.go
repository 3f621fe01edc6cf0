package portfolio_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/portfolio"
	"github.com/inmobilia/sales-engine/sales"
	"github.com/inmobilia/sales-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func money(s string) decimal.Decimal {
	return sales.MustDecimal(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store   *memory.Store
	service *portfolio.Service
	unit    sales.Unit
}

// newFixture seeds a project with one 250,000 unit (100,000 down payment),
// the default phase table, and a 2% sales-rep rate plus a 1% always-paid
// management rate.
func newFixture(t *testing.T, opts ...portfolio.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := portfolio.New(store, opts...)

	require.NoError(t, store.CreateProject(ctx, sales.Project{
		ID: "proj-1", Name: "mirador", DisplayName: "El Mirador", CreatedAt: date(2024, time.June, 1),
	}))
	unit := sales.Unit{
		ID: "unit-1", ProjectID: "proj-1", Number: "A-101",
		PriceWithTax:    money("250000"),
		PriceWithoutTax: money("210084.0336"),
		DownPayment:     money("100000"),
		Status:          sales.UnitAvailable,
		CreatedAt:       date(2024, time.June, 1),
	}
	require.NoError(t, store.CreateUnit(ctx, unit))
	require.NoError(t, store.CreateClient(ctx, sales.Client{
		ID: "client-1", FullName: "Juan Perez", CreatedAt: date(2024, time.June, 1),
	}))

	require.NoError(t, svc.SavePhases(ctx, commission.DefaultPhases()))
	require.NoError(t, svc.SaveRate(ctx, commission.Rate{
		RecipientID: "rep-1", RecipientName: "Rep One",
		Type: commission.RecipientSalesRep, Rate: money("0.02"), Active: true,
	}))
	require.NoError(t, svc.SaveRate(ctx, commission.Rate{
		RecipientID: "mgr-1", RecipientName: "Manager",
		Type: commission.RecipientManagement, Rate: money("0.01"),
		AlwaysPaid: true, Active: true,
	}))

	return &fixture{store: store, service: svc, unit: unit}
}

func (f *fixture) newSale(t *testing.T) sales.Sale {
	t.Helper()
	sale, err := f.service.CreateSale(context.Background(), portfolio.NewSale{
		ProjectID:         "proj-1",
		UnitID:            f.unit.ID,
		ClientID:          "client-1",
		SalesRepID:        "rep-1",
		SaleDate:          date(2025, time.January, 10),
		PriceWithTax:      money("250000"),
		PriceWithoutTax:   money("210084.0336"),
		DownPaymentAmount: money("100000"),
		FinancedAmount:    money("150000"),
	})
	require.NoError(t, err)
	return sale
}

func (f *fixture) pay(t *testing.T, saleID sales.SaleID, id, day, amount string) (sales.Payment, []commission.Commission) {
	t.Helper()
	d, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	p, rows, err := f.service.RecordPayment(context.Background(), portfolio.RecordPaymentInput{
		ID: sales.PaymentID(id), SaleID: saleID, Date: d, Amount: money(amount),
	})
	require.NoError(t, err)
	return p, rows
}

// =============================================================================
// SALE LIFECYCLE
// =============================================================================

func TestService_CreateSale_ClaimsUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale := f.newSale(t)
	assert.Equal(t, sales.SaleActive, sale.Status)

	u, err := f.store.GetUnit(ctx, f.unit.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.UnitSold, u.Status)
}

func TestService_CreateSale_SecondBuyerGetsConflict(t *testing.T) {
	// GIVEN: A unit already sold
	// WHEN: Another sale targets it
	// THEN: Conflict - the first buyer keeps the unit

	f := newFixture(t)
	f.newSale(t)

	_, err := f.service.CreateSale(context.Background(), portfolio.NewSale{
		ProjectID: "proj-1", UnitID: f.unit.ID, ClientID: "client-1", SalesRepID: "rep-1",
		SaleDate:          date(2025, time.January, 11),
		PriceWithTax:      money("250000"),
		PriceWithoutTax:   money("210084.0336"),
		DownPaymentAmount: money("100000"),
		FinancedAmount:    money("150000"),
	})
	require.Error(t, err)
	assert.True(t, sales.IsConflict(err))
	assert.ErrorIs(t, err, sales.ErrUnitUnavailable)
}

func TestService_CreateSale_RejectsAmountMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateSale(context.Background(), portfolio.NewSale{
		ProjectID: "proj-1", UnitID: f.unit.ID, ClientID: "client-1", SalesRepID: "rep-1",
		SaleDate:          date(2025, time.January, 10),
		PriceWithTax:      money("250000"),
		PriceWithoutTax:   money("210084.0336"),
		DownPaymentAmount: money("100000"),
		FinancedAmount:    money("149999"),
	})
	assert.ErrorIs(t, err, sales.ErrSaleAmountMismatch)
}

func TestService_CancelSale_ReleasesUnitAndVoidsPending(t *testing.T) {
	// GIVEN: A sale with pending and paid commissions, default KeepEarned
	//        cancellation policy
	// WHEN: The client walks away
	// THEN: The unit is back on the market, pending rows are void, and
	//       already-paid rows stay paid

	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	_, rows := f.pay(t, sale.ID, "pay-1", "2025-02-01", "20000")
	require.NotEmpty(t, rows)
	require.NoError(t, f.service.MarkCommissionPaid(ctx, rows[0].ID))

	require.NoError(t, f.service.CancelSale(ctx, sale.ID))

	u, err := f.store.GetUnit(ctx, f.unit.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.UnitAvailable, u.Status)

	after, err := f.store.CommissionsForSale(ctx, sale.ID)
	require.NoError(t, err)
	for _, c := range after {
		if c.ID == rows[0].ID {
			assert.Equal(t, commission.StatusPaid, c.Status, "earned commission survives")
		} else {
			assert.Equal(t, commission.StatusVoid, c.Status)
		}
	}

	// Cancelling twice is a conflict, not a silent no-op.
	err = f.service.CancelSale(ctx, sale.ID)
	assert.ErrorIs(t, err, sales.ErrSaleNotActive)
}

func TestService_CancelSale_VoidAllPolicy(t *testing.T) {
	f := newFixture(t, portfolio.WithCancellationPolicy(commission.VoidAll))
	ctx := context.Background()
	sale := f.newSale(t)

	_, rows := f.pay(t, sale.ID, "pay-1", "2025-02-01", "20000")
	require.NoError(t, f.service.MarkCommissionPaid(ctx, rows[0].ID))

	require.NoError(t, f.service.CancelSale(ctx, sale.ID))

	after, err := f.store.CommissionsForSale(ctx, sale.ID)
	require.NoError(t, err)
	for _, c := range after {
		assert.Equal(t, commission.StatusVoid, c.Status)
	}
}

func TestService_CompleteSale_RecordsDeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	deedDay := date(2026, time.March, 15)
	require.NoError(t, f.service.CompleteSale(ctx, sale.ID, deedDay))

	got, err := f.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.SaleCompleted, got.Status)
	require.NotNil(t, got.DeedSignedAt)
	assert.True(t, got.DeedSignedAt.Equal(deedDay))
}

// =============================================================================
// PAYMENT CLASSIFICATION
// =============================================================================

func TestService_RecordPayment_ClassifiesSequence(t *testing.T) {
	// GIVEN: A 100,000 down payment commitment
	// WHEN: Payments arrive without explicit types
	// THEN: First is the reservation, the rest are down payments until the
	//       commitment is covered, then financed payments

	f := newFixture(t)
	sale := f.newSale(t)

	p1, _ := f.pay(t, sale.ID, "pay-1", "2025-01-10", "5000")
	assert.Equal(t, sales.PaymentReservation, p1.Type)

	p2, _ := f.pay(t, sale.ID, "pay-2", "2025-02-10", "45000")
	assert.Equal(t, sales.PaymentDownPayment, p2.Type)

	p3, _ := f.pay(t, sale.ID, "pay-3", "2025-03-10", "50000")
	assert.Equal(t, sales.PaymentDownPayment, p3.Type)

	// Down payment fully covered (5k + 45k + 50k = 100k).
	p4, _ := f.pay(t, sale.ID, "pay-4", "2025-04-10", "10000")
	assert.Equal(t, sales.PaymentFinanced, p4.Type)
}

// =============================================================================
// COMMISSION GENERATION
// =============================================================================

func TestService_RecordPayment_GeneratesPhaseCommissions(t *testing.T) {
	// GIVEN: A fresh sale, 2% rep and 1% manager rates
	// WHEN: A 40,000 first payment arrives (straddles the 30,000 boundary)
	// THEN: Each recipient gets a phase-1 and a phase-2 row with bases
	//       30,000 and 10,000

	f := newFixture(t)
	sale := f.newSale(t)

	_, rows := f.pay(t, sale.ID, "pay-1", "2025-02-01", "40000")
	require.Len(t, rows, 4) // 2 recipients x 2 phases

	totals := make(map[sales.RecipientID]decimal.Decimal)
	for _, c := range rows {
		assert.Equal(t, commission.StatusPending, c.Status)
		totals[c.RecipientID] = totals[c.RecipientID].Add(c.CommissionAmount)
	}
	assert.True(t, totals["rep-1"].Equal(money("800")), "2% of 40,000")
	assert.True(t, totals["mgr-1"].Equal(money("400")), "1% of 40,000")
}

func TestService_RecordPayment_FinancedOnlyPaysAlwaysPaid(t *testing.T) {
	f := newFixture(t)
	sale := f.newSale(t)

	_, rows, err := f.service.RecordPayment(context.Background(), portfolio.RecordPaymentInput{
		SaleID: sale.ID,
		Date:   date(2025, time.May, 1),
		Amount: money("8000"),
		Type:   sales.PaymentFinanced,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sales.RecipientID("mgr-1"), rows[0].RecipientID)
	assert.Equal(t, commission.PhaseFinanced, rows[0].Phase)
}

func TestService_RecordPayment_ReplayIsNoOp(t *testing.T) {
	// GIVEN: A payment already recorded with commissions
	// WHEN: The same payment ID is posted again
	// THEN: No duplicate payment, no new commission rows

	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	_, first := f.pay(t, sale.ID, "pay-1", "2025-02-01", "40000")
	require.Len(t, first, 4)

	_, second := f.pay(t, sale.ID, "pay-1", "2025-02-01", "40000")
	assert.Empty(t, second)

	history, err := f.store.PaymentsForSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	all, err := f.store.CommissionsForPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestService_RecalculateCommissions_BackfillsNewRecipient(t *testing.T) {
	// GIVEN: A payment recorded before a referrer was configured
	// WHEN: The referrer rate is added and the payment recalculated
	// THEN: Only the referrer's rows are inserted; existing rows survive
	//       untouched

	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	_, first := f.pay(t, sale.ID, "pay-1", "2025-02-01", "20000")
	require.Len(t, first, 2)

	require.NoError(t, f.service.SaveRate(ctx, commission.Rate{
		RecipientID: "ref-1", RecipientName: "Referrer",
		Type: commission.RecipientSpecial, Rate: money("0.01"), Active: true,
	}))

	inserted, err := f.service.RecalculateCommissions(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, sales.RecipientID("ref-1"), inserted[0].RecipientID)
	assert.True(t, inserted[0].CommissionAmount.Equal(money("200")))

	// A second recalculation finds everything in place.
	inserted, err = f.service.RecalculateCommissions(ctx, "pay-1")
	require.NoError(t, err)
	assert.Empty(t, inserted)
}

func TestService_RecalculateCommissions_StableAfterBackdatedPayment(t *testing.T) {
	// GIVEN: A payment recorded, then a second payment backdated before it
	// WHEN: The first payment's commissions are recalculated, and the first
	//       payment is replayed
	// THEN: Neither inserts anything - prior credit follows the recording
	//       order, so the original phase attribution stands and no payment
	//       ever exceeds its own amount in commission base

	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	f.pay(t, sale.ID, "pay-a", "2025-01-10", "30000")
	f.pay(t, sale.ID, "pay-b", "2025-01-05", "30000") // backdated arrival

	inserted, err := f.service.RecalculateCommissions(ctx, "pay-a")
	require.NoError(t, err)
	assert.Empty(t, inserted)

	_, replayed := f.pay(t, sale.ID, "pay-a", "2025-01-10", "30000")
	assert.Empty(t, replayed)

	rows, err := f.store.CommissionsForPayment(ctx, "pay-a")
	require.NoError(t, err)
	base := decimal.Zero
	for _, c := range rows {
		if c.RecipientID == "rep-1" {
			assert.Equal(t, 1, c.Phase, "attribution from record time stands")
			base = base.Add(c.BaseAmount)
		}
	}
	assert.True(t, base.Equal(money("30000")), "bases sum to the payment amount")

	// The backdated payment itself lands in phase 2: phase 1 was already
	// consumed by the rows written before it arrived.
	rows, err = f.store.CommissionsForPayment(ctx, "pay-b")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, c := range rows {
		assert.Equal(t, 2, c.Phase)
	}
}

func TestService_RecordPayment_LateRateChangeUsesPaymentDate(t *testing.T) {
	// GIVEN: The rep's rate rises to 2.5% effective March 1
	// WHEN: Recording a February payment and a March payment
	// THEN: Each payment uses the rate effective on its own date

	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	march1 := date(2025, time.March, 1)
	// Close the old window and open the new one.
	require.NoError(t, f.service.SaveRate(ctx, commission.Rate{
		RecipientID: "rep-1", RecipientName: "Rep One",
		Type: commission.RecipientSalesRep, Rate: money("0.02"),
		Active: true, EffectiveTo: &march1,
	}))
	require.NoError(t, f.service.SaveRate(ctx, commission.Rate{
		RecipientID: "rep-1", RecipientName: "Rep One",
		Type: commission.RecipientSalesRep, Rate: money("0.025"),
		Active: true, EffectiveFrom: &march1,
	}))

	_, febRows := f.pay(t, sale.ID, "pay-feb", "2025-02-15", "10000")
	_, marRows := f.pay(t, sale.ID, "pay-mar", "2025-03-15", "10000")

	febRep := basesFor(febRows, "rep-1")
	marRep := basesFor(marRows, "rep-1")
	require.Len(t, febRep, 1)
	require.Len(t, marRep, 1)
	assert.True(t, febRep[0].Rate.Equal(money("0.02")))
	assert.True(t, marRep[0].Rate.Equal(money("0.025")))
}

func basesFor(rows []commission.Commission, recipient sales.RecipientID) []commission.Commission {
	var out []commission.Commission
	for _, c := range rows {
		if c.RecipientID == recipient {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// SCHEDULES AND REPORTS
// =============================================================================

func TestService_SetExpectedSchedule_NumbersInstallments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.service.SetExpectedSchedule(ctx, f.unit.ID, []sales.ExpectedPayment{
		{DueDate: date(2025, time.March, 15), Amount: money("10000")},
		{DueDate: date(2025, time.January, 15), Amount: money("10000")},
		{DueDate: date(2025, time.February, 15), Amount: money("10000")},
	})
	require.NoError(t, err)

	rows, err := f.store.ExpectedForUnit(ctx, f.unit.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, e := range rows {
		assert.Equal(t, i+1, e.InstallmentNumber)
		assert.Equal(t, sales.ScheduleBudget, e.Source)
		assert.Equal(t, f.unit.ProjectID, e.ProjectID)
	}
	assert.True(t, rows[0].DueDate.Before(rows[1].DueDate))
}

func TestService_ComplianceReport_EndToEnd(t *testing.T) {
	// GIVEN: A sold unit with a schedule, partially paid
	// WHEN: Building the project compliance report
	// THEN: The unit shows up behind schedule with project totals to match

	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	require.NoError(t, f.service.SetExpectedSchedule(ctx, f.unit.ID, []sales.ExpectedPayment{
		{DueDate: date(2025, time.January, 15), Amount: money("30000")},
		{DueDate: date(2025, time.February, 15), Amount: money("30000")},
	}))
	f.pay(t, sale.ID, "pay-1", "2025-01-15", "30000")

	report, err := f.service.ComplianceReport(ctx, "proj-1", date(2025, time.February, 28))
	require.NoError(t, err)
	require.Len(t, report.Units, 1)

	row := report.Units[0]
	assert.True(t, row.Result.ExpectedToDate.Equal(money("60000")))
	assert.True(t, row.Result.ActualTotal.Equal(money("30000")))
	assert.Equal(t, 13, row.Result.DaysDelinquent) // Feb 15 -> Feb 28
	assert.True(t, report.Variance.Equal(money("-30000")))
}

func TestService_RecipientReport_SummarizesByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale := f.newSale(t)

	_, rows := f.pay(t, sale.ID, "pay-1", "2025-02-01", "20000")
	repRows := basesFor(rows, "rep-1")
	require.NotEmpty(t, repRows)
	require.NoError(t, f.service.MarkCommissionPaid(ctx, repRows[0].ID))

	got, summary, err := f.service.RecipientReport(ctx, "rep-1")
	require.NoError(t, err)
	assert.Len(t, got, len(repRows))
	assert.True(t, summary.Paid.Equal(repRows[0].CommissionAmount))
	assert.True(t, summary.Total.Equal(money("400")), "2% of 20,000")
}

// =============================================================================
// REFERENCE DATA GUARDS
// =============================================================================

func TestService_SaveRate_RejectsOutOfBounds(t *testing.T) {
	f := newFixture(t)
	err := f.service.SaveRate(context.Background(), commission.Rate{
		RecipientID: "rep-9", Type: commission.RecipientSalesRep,
		Rate: money("0.06"), Active: true,
	})
	assert.ErrorIs(t, err, sales.ErrRateOutOfBounds)
}

func TestService_SavePhases_RejectsBadLadder(t *testing.T) {
	f := newFixture(t)
	phases := commission.DefaultPhases()
	phases[2].Weight = money("0.39")
	err := f.service.SavePhases(context.Background(), phases)
	assert.ErrorIs(t, err, sales.ErrPhaseConfig)
}
