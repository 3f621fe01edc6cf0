/*
report.go - Per-project compliance aggregation

PURPOSE:
  Rolls per-sale compliance results up into the project dashboard shape:
  one row per unit plus project totals and an aging-bucket histogram.
  Derived/query logic only - no persisted state.

DEDUPLICATION:
  A unit may carry several historical sales (desistimiento then resale).
  Compliance considers only the ACTIVE sale; when more than one active
  sale exists for a unit (dirty historical data), the most recent one by
  sale date wins, ties broken by creation time.
*/
package compliance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// REPORT SHAPES
// =============================================================================

// UnitCompliance is one dashboard row.
type UnitCompliance struct {
	ProjectID  sales.ProjectID
	UnitID     sales.UnitID
	UnitNumber string
	SaleID     sales.SaleID
	ClientID   sales.ClientID

	Result Result
	Bucket Bucket
}

// ProjectReport aggregates compliance for every unit with an active sale.
type ProjectReport struct {
	ProjectID sales.ProjectID
	AsOf      time.Time

	Units []UnitCompliance

	ExpectedToDate decimal.Decimal
	ActualTotal    decimal.Decimal
	Variance       decimal.Decimal

	// Project-level percentage; nil when nothing is expected to date.
	CompliancePct *int

	// Unit count per aging bucket.
	Buckets map[Bucket]int
}

// ReportInput carries the already-loaded rows the aggregation works over.
// The portfolio service assembles it; this package never touches storage.
type ReportInput struct {
	ProjectID sales.ProjectID
	AsOf      time.Time

	Units          []sales.Unit
	Sales          []sales.Sale
	PaymentsBySale map[sales.SaleID][]sales.Payment
	ExpectedByUnit map[sales.UnitID][]sales.ExpectedPayment
}

// =============================================================================
// AGGREGATION
// =============================================================================

// BuildProjectReport evaluates every unit's active sale and folds the
// results into project totals.
func BuildProjectReport(in ReportInput) ProjectReport {
	report := ProjectReport{
		ProjectID:      in.ProjectID,
		AsOf:           in.AsOf,
		ExpectedToDate: decimal.Zero,
		ActualTotal:    decimal.Zero,
		Variance:       decimal.Zero,
		Buckets:        make(map[Bucket]int),
	}

	salesByUnit := make(map[sales.UnitID][]sales.Sale)
	for _, s := range in.Sales {
		salesByUnit[s.UnitID] = append(salesByUnit[s.UnitID], s)
	}

	units := make([]sales.Unit, len(in.Units))
	copy(units, in.Units)
	sort.Slice(units, func(i, j int) bool { return units[i].Number < units[j].Number })

	for _, u := range units {
		sale, ok := ActiveSale(salesByUnit[u.ID])
		if !ok {
			continue
		}

		result := Evaluate(in.ExpectedByUnit[u.ID], in.PaymentsBySale[sale.ID], in.AsOf)
		row := UnitCompliance{
			ProjectID:  in.ProjectID,
			UnitID:     u.ID,
			UnitNumber: u.Number,
			SaleID:     sale.ID,
			ClientID:   sale.ClientID,
			Result:     result,
			Bucket:     BucketFor(result.DaysDelinquent),
		}
		report.Units = append(report.Units, row)

		report.ExpectedToDate = report.ExpectedToDate.Add(result.ExpectedToDate)
		report.ActualTotal = report.ActualTotal.Add(result.ActualTotal)
		report.Buckets[row.Bucket]++
	}

	report.Variance = report.ActualTotal.Sub(report.ExpectedToDate)
	if report.ExpectedToDate.IsPositive() {
		pct := int(report.ActualTotal.Div(report.ExpectedToDate).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
		report.CompliancePct = &pct
	}
	return report
}

// ActiveSale picks the sale compliance should consider for a unit: the
// most recent active one. Returns false when the unit has no active sale.
func ActiveSale(rows []sales.Sale) (sales.Sale, bool) {
	var best sales.Sale
	found := false
	for _, s := range rows {
		if s.Status != sales.SaleActive {
			continue
		}
		if !found || s.SaleDate.After(best.SaleDate) ||
			(s.SaleDate.Equal(best.SaleDate) && s.CreatedAt.After(best.CreatedAt)) {
			best = s
			found = true
		}
	}
	return best, found
}
