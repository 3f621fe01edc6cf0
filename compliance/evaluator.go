/*
Package compliance classifies payment health.

PURPOSE:
  Given a sale's expected installment schedule and its actual payments,
  compute expected-to-date vs. actual-to-date amounts, a delinquency
  day-count, and a status classification. Everything here is a pure
  function of (ExpectedPayment[], Payment[], evaluation date): no state,
  recomputed on every query, safely parallelizable.

THE DELINQUENCY RULE:
  days_delinquent counts from the earliest UNMET installment - the oldest
  due date whose cumulative expected amount still exceeds the cumulative
  actual amount. It is NOT "today minus last payment date": a customer who
  pays irregularly but catches up shows 0 delinquent days once caught up.

NULL SAFETY:
  compliance_pct is undefined (nil) when nothing is expected to date.
  Never 0, never 100, never a division error - the caller surfaces it as
  "no expectation set".
*/
package compliance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// STATUS CLASSIFICATION
// =============================================================================

type Status string

const (
	StatusAhead      Status = "ahead"
	StatusOnTrack    Status = "on_track"
	StatusBehind     Status = "behind"
	StatusNoSchedule Status = "no_schedule" // nothing expected to date
)

// onTrackTolerance absorbs sub-cent noise from imported schedules; variance
// within ±tolerance still classifies as on_track.
var onTrackTolerance = sales.MustDecimal("0.01")

// =============================================================================
// RESULT
// =============================================================================

// Result is the computed payment-health snapshot for one sale as of a date.
type Result struct {
	AsOf time.Time

	ExpectedToDate decimal.Decimal
	ActualTotal    decimal.Decimal

	// ActualTotal - ExpectedToDate. Negative means behind.
	Variance decimal.Decimal

	// Rounded integer percentage for display. Nil when ExpectedToDate is
	// zero (undefined, not 0 and not 100). May exceed 100 when ahead.
	CompliancePct *int

	// Days since the earliest unmet installment's due date; 0 when caught up.
	DaysDelinquent int

	Status Status
}

// =============================================================================
// EVALUATION
// =============================================================================

// Evaluate computes the compliance snapshot for one sale. expected is the
// unit's installment schedule, payments the sale's actual payments; both
// may arrive unordered. asOf supports historical reporting - only rows
// dated on or before it count.
func Evaluate(expected []sales.ExpectedPayment, payments []sales.Payment, asOf time.Time) Result {
	schedule := make([]sales.ExpectedPayment, len(expected))
	copy(schedule, expected)
	sort.Slice(schedule, func(i, j int) bool { return schedule[i].DueDate.Before(schedule[j].DueDate) })

	expectedToDate := decimal.Zero
	for _, e := range schedule {
		if !e.DueDate.After(asOf) {
			expectedToDate = expectedToDate.Add(e.Amount)
		}
	}

	actualTotal := decimal.Zero
	for _, p := range payments {
		if !p.Date.After(asOf) {
			actualTotal = actualTotal.Add(p.Amount)
		}
	}

	r := Result{
		AsOf:           asOf,
		ExpectedToDate: expectedToDate,
		ActualTotal:    actualTotal,
		Variance:       actualTotal.Sub(expectedToDate),
	}

	if expectedToDate.IsPositive() {
		pct := int(actualTotal.Div(expectedToDate).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
		r.CompliancePct = &pct
	}

	if r.Variance.IsNegative() {
		r.DaysDelinquent = daysDelinquent(schedule, actualTotal, asOf)
	}

	r.Status = classify(expectedToDate, r.Variance, r.DaysDelinquent)
	return r
}

// daysDelinquent finds the earliest due installment whose cumulative
// expected amount the actual total has not covered, and counts days from
// its due date to asOf.
func daysDelinquent(schedule []sales.ExpectedPayment, actualTotal decimal.Decimal, asOf time.Time) int {
	cum := decimal.Zero
	for _, e := range schedule {
		if e.DueDate.After(asOf) {
			break
		}
		cum = cum.Add(e.Amount)
		if cum.GreaterThan(actualTotal) {
			if d := daysBetween(e.DueDate, asOf); d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}

// classify maps the computed numbers to a status. behind requires BOTH a
// shortfall past the tolerance and at least one full day of delinquency:
// an installment due this very day has not aged yet.
func classify(expectedToDate, variance decimal.Decimal, daysDelinquent int) Status {
	switch {
	case expectedToDate.IsZero():
		return StatusNoSchedule
	case variance.GreaterThan(onTrackTolerance):
		return StatusAhead
	case variance.Neg().GreaterThan(onTrackTolerance) && daysDelinquent > 0:
		return StatusBehind
	default:
		return StatusOnTrack
	}
}

// daysBetween counts whole days between two dates, normalized to UTC
// midnight so time-of-day noise never shifts an aging bucket.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
