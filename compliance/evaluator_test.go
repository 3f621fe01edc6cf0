package compliance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmobilia/sales-engine/compliance"
	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal {
	return sales.MustDecimal(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func installment(due time.Time, amount string) sales.ExpectedPayment {
	return sales.ExpectedPayment{
		UnitID:  "unit-1",
		DueDate: due,
		Amount:  money(amount),
		Source:  sales.ScheduleBudget,
	}
}

func paid(on time.Time, amount string) sales.Payment {
	return sales.Payment{
		ID:     sales.PaymentID("pay-" + amount),
		SaleID: "sale-1",
		Date:   on,
		Amount: money(amount),
		Type:   sales.PaymentDownPayment,
	}
}

// monthlySchedule builds n monthly installments of the given amount
// starting January 2025.
func monthlySchedule(n int, amount string) []sales.ExpectedPayment {
	out := make([]sales.ExpectedPayment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, installment(date(2025, time.January+time.Month(i), 15), amount))
	}
	return out
}

// =============================================================================
// EXPECTED VS ACTUAL
// =============================================================================

func TestEvaluate_BehindSchedule(t *testing.T) {
	// GIVEN: Six 10,000 installments due by June (60,000 expected) and
	//        55,000 actually paid
	// WHEN: Evaluating as of June 30
	// THEN: Variance -5,000, compliance 92%, status behind

	schedule := monthlySchedule(6, "10000")
	payments := []sales.Payment{
		paid(date(2025, time.January, 15), "30000"),
		paid(date(2025, time.April, 20), "25000"),
	}

	r := compliance.Evaluate(schedule, payments, date(2025, time.June, 30))

	assert.True(t, r.ExpectedToDate.Equal(money("60000")))
	assert.True(t, r.ActualTotal.Equal(money("55000")))
	assert.True(t, r.Variance.Equal(money("-5000")))
	require.NotNil(t, r.CompliancePct)
	assert.Equal(t, 92, *r.CompliancePct)
	assert.Equal(t, compliance.StatusBehind, r.Status)
}

func TestEvaluate_AheadOfSchedule(t *testing.T) {
	schedule := monthlySchedule(3, "10000")
	payments := []sales.Payment{paid(date(2025, time.February, 1), "50000")}

	r := compliance.Evaluate(schedule, payments, date(2025, time.March, 31))

	assert.True(t, r.Variance.Equal(money("20000")))
	assert.Equal(t, compliance.StatusAhead, r.Status)
	assert.Equal(t, 0, r.DaysDelinquent)
}

func TestEvaluate_OnTrackWithinTolerance(t *testing.T) {
	// GIVEN: Actual within a cent of expected
	// WHEN: Evaluating
	// THEN: on_track - the tolerance absorbs rounding residue, nothing more

	schedule := monthlySchedule(1, "10000")
	payments := []sales.Payment{paid(date(2025, time.January, 15), "9999.99")}

	r := compliance.Evaluate(schedule, payments, date(2025, time.January, 31))
	assert.Equal(t, compliance.StatusOnTrack, r.Status)

	// A full cent past the tolerance tips the status.
	payments = []sales.Payment{paid(date(2025, time.January, 15), "9999.98")}
	r = compliance.Evaluate(schedule, payments, date(2025, time.January, 31))
	assert.Equal(t, compliance.StatusBehind, r.Status)
}

func TestEvaluate_NoScheduleToDate(t *testing.T) {
	// GIVEN: No installments due yet (or no schedule at all)
	// WHEN: Evaluating
	// THEN: no_schedule, and the percentage is nil - never a divide by
	//       zero, never a fake 100%

	r := compliance.Evaluate(nil, []sales.Payment{paid(date(2025, time.January, 2), "5000")}, date(2025, time.January, 31))
	assert.Equal(t, compliance.StatusNoSchedule, r.Status)
	assert.Nil(t, r.CompliancePct)

	future := monthlySchedule(3, "10000")
	r = compliance.Evaluate(future, nil, date(2024, time.December, 1))
	assert.Equal(t, compliance.StatusNoSchedule, r.Status)
	assert.Nil(t, r.CompliancePct)
}

func TestEvaluate_AsOfExcludesLaterRows(t *testing.T) {
	// GIVEN: Payments and installments on both sides of the as-of date
	// WHEN: Evaluating historically
	// THEN: Only rows dated on or before as-of count

	schedule := monthlySchedule(6, "10000")
	payments := []sales.Payment{
		paid(date(2025, time.January, 15), "10000"),
		paid(date(2025, time.May, 15), "40000"), // after as-of
	}

	r := compliance.Evaluate(schedule, payments, date(2025, time.February, 28))
	assert.True(t, r.ExpectedToDate.Equal(money("20000")))
	assert.True(t, r.ActualTotal.Equal(money("10000")))
}

// =============================================================================
// DELINQUENCY
// =============================================================================

func TestEvaluate_DaysDelinquentFromEarliestUnmetInstallment(t *testing.T) {
	// GIVEN: Two installments due, only the first covered
	// WHEN: Evaluating 20 days after the second came due
	// THEN: Delinquency is counted from the second installment's due date

	schedule := monthlySchedule(2, "10000")
	payments := []sales.Payment{paid(date(2025, time.January, 15), "10000")}

	r := compliance.Evaluate(schedule, payments, date(2025, time.March, 7))
	assert.Equal(t, 20, r.DaysDelinquent)
	assert.Equal(t, compliance.Bucket1To30, compliance.BucketFor(r.DaysDelinquent))
}

func TestEvaluate_CatchUpResetsDelinquency(t *testing.T) {
	// GIVEN: A client who paid late but has now covered everything due
	// WHEN: Evaluating after the catch-up payment
	// THEN: Zero days delinquent - delinquency measures the current hole,
	//       not past sins

	schedule := monthlySchedule(2, "10000")
	payments := []sales.Payment{paid(date(2025, time.March, 1), "20000")}

	r := compliance.Evaluate(schedule, payments, date(2025, time.March, 7))
	assert.Equal(t, 0, r.DaysDelinquent)
	assert.Equal(t, compliance.StatusOnTrack, r.Status)
}

func TestEvaluate_DueTodayIsNotYetBehind(t *testing.T) {
	// GIVEN: The only unmet installment comes due on the evaluation date
	// WHEN: Evaluating that same day
	// THEN: Variance is negative but nothing has aged a full day yet, so
	//       the sale is not behind

	schedule := monthlySchedule(1, "10000")

	r := compliance.Evaluate(schedule, nil, date(2025, time.January, 15))
	assert.True(t, r.Variance.Equal(money("-10000")))
	assert.Equal(t, 0, r.DaysDelinquent)
	assert.Equal(t, compliance.StatusOnTrack, r.Status)

	// One day later it is behind.
	r = compliance.Evaluate(schedule, nil, date(2025, time.January, 16))
	assert.Equal(t, 1, r.DaysDelinquent)
	assert.Equal(t, compliance.StatusBehind, r.Status)
}

func TestEvaluate_PartialCoverageStillDelinquentOnFirstHole(t *testing.T) {
	// GIVEN: 15,000 paid against two 10,000 installments
	// WHEN: Evaluating
	// THEN: The first installment is covered; delinquency runs from the
	//       second (cumulative 20,000 > 15,000)

	schedule := monthlySchedule(2, "10000")
	payments := []sales.Payment{paid(date(2025, time.January, 10), "15000")}

	r := compliance.Evaluate(schedule, payments, date(2025, time.February, 25))
	assert.Equal(t, 10, r.DaysDelinquent) // Feb 15 -> Feb 25
}

// =============================================================================
// AGING BUCKETS
// =============================================================================

func TestBucketFor_PartitionIsTotalAndDisjoint(t *testing.T) {
	// GIVEN: Day counts at and around every boundary
	// WHEN: Classifying
	// THEN: Each lands in exactly the expected bucket

	cases := map[int]compliance.Bucket{
		-5:  compliance.BucketCurrent,
		0:   compliance.BucketCurrent,
		1:   compliance.Bucket1To30,
		30:  compliance.Bucket1To30,
		31:  compliance.Bucket31To60,
		60:  compliance.Bucket31To60,
		61:  compliance.Bucket61To90,
		90:  compliance.Bucket61To90,
		91:  compliance.BucketOver90,
		365: compliance.BucketOver90,
	}
	for days, want := range cases {
		assert.Equal(t, want, compliance.BucketFor(days), "days=%d", days)
	}
}

func TestBuckets_SeverityOrder(t *testing.T) {
	want := []compliance.Bucket{
		compliance.BucketCurrent, compliance.Bucket1To30, compliance.Bucket31To60,
		compliance.Bucket61To90, compliance.BucketOver90,
	}
	assert.Equal(t, want, compliance.Buckets())
}
