/*
registry.go - Rate registry: point-in-time rate and phase lookup

PURPOSE:
  Answers "which recipients, at which rates, and under which phase split
  apply to a payment dated D?". A pure filter over reference rows - no
  computation beyond integrity validation.

POINT-IN-TIME CORRECTNESS:
  Rates and phases are effective-dated (EffectiveFrom/EffectiveTo) so that
  changing the rules never corrupts historical commissions: the calculator
  always joins against the reference state as of the payment date, not the
  current state. The flat Active flag survives as a kill switch.

INTEGRITY:
  Reference data that fails validation fails LOUDLY. A phase table whose
  weights do not sum to exactly 1.0000 rejects the triggering payment
  write; it never silently computes a wrong split.
*/
package commission

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// PHASE TABLE - Validated, ordered phase split
// =============================================================================

// PhaseTable is a validated set of phases 1..PhaseCount whose weights sum
// to exactly 1.0000. Construct via NewPhaseTable or Registry.PhasesAsOf.
type PhaseTable struct {
	phases [PhaseCount]Phase
}

// NewPhaseTable validates and orders a phase row set.
func NewPhaseTable(phases []Phase) (PhaseTable, error) {
	var t PhaseTable
	if len(phases) != PhaseCount {
		return t, &sales.ConfigError{
			Reason: fmt.Sprintf("expected %d commission phases, got %d", PhaseCount, len(phases)),
			Err:    sales.ErrPhaseConfig,
		}
	}

	seen := make(map[int]bool, PhaseCount)
	sum := decimal.Zero
	for _, p := range phases {
		if p.Number < 1 || p.Number > PhaseCount {
			return t, &sales.ConfigError{
				Reason: fmt.Sprintf("phase number %d outside 1..%d", p.Number, PhaseCount),
				Err:    sales.ErrPhaseConfig,
			}
		}
		if seen[p.Number] {
			return t, &sales.ConfigError{
				Reason: fmt.Sprintf("duplicate phase number %d", p.Number),
				Err:    sales.ErrPhaseConfig,
			}
		}
		if p.Weight.IsNegative() {
			return t, &sales.ConfigError{
				Reason: fmt.Sprintf("phase %d has negative weight", p.Number),
				Err:    sales.ErrPhaseConfig,
			}
		}
		seen[p.Number] = true
		sum = sum.Add(p.Weight)
		t.phases[p.Number-1] = p
	}

	if !sum.Equal(decimal.NewFromInt(1)) {
		return t, &sales.ConfigError{
			Reason: fmt.Sprintf("phase weights sum to %s, must be exactly 1.0000", sum),
			Err:    sales.ErrPhaseConfig,
		}
	}
	return t, nil
}

// Phase returns the phase row for a number in 1..PhaseCount.
func (t PhaseTable) Phase(number int) Phase {
	return t.phases[number-1]
}

// Boundaries returns the cumulative upper bound of each phase against the
// agreed down payment. The last boundary is the exact down payment, so
// weight rounding can never leave a gap at the top of the ladder.
func (t PhaseTable) Boundaries(downPayment decimal.Decimal) [PhaseCount]decimal.Decimal {
	var b [PhaseCount]decimal.Decimal
	cum := decimal.Zero
	for i := 0; i < PhaseCount-1; i++ {
		cum = cum.Add(t.phases[i].Weight)
		b[i] = sales.Round4(downPayment.Mul(cum))
	}
	b[PhaseCount-1] = downPayment
	return b
}

// =============================================================================
// REGISTRY - As-of-date reference lookup
// =============================================================================

// Registry holds the loaded rate and phase reference rows. It is a pure
// in-memory filter: callers load rows from the store and ask for the
// state as of a payment date.
type Registry struct {
	rates  []Rate
	phases []Phase
}

func NewRegistry(rates []Rate, phases []Phase) *Registry {
	return &Registry{rates: rates, phases: phases}
}

// RatesAsOf returns the rates applicable at the given date, validated
// against the [0, 0.05] band. An out-of-bounds rate is a configuration
// error, not a row to skip.
func (r *Registry) RatesAsOf(at time.Time) ([]Rate, error) {
	var out []Rate
	for _, rate := range r.rates {
		if !rate.EffectiveAt(at) {
			continue
		}
		if !sales.ValidRate(rate.Rate) {
			return nil, &sales.ConfigError{
				Reason: fmt.Sprintf("rate %s for recipient %s outside [0, 0.05]", rate.Rate, rate.RecipientID),
				Err:    sales.ErrRateOutOfBounds,
			}
		}
		out = append(out, rate)
	}
	// Deterministic output order regardless of storage order.
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

// PhasesAsOf returns the validated phase table applicable at the given date.
// Missing or malformed phase configuration fails loudly: the caller must
// abort the triggering write.
func (r *Registry) PhasesAsOf(at time.Time) (PhaseTable, error) {
	var effective []Phase
	for _, p := range r.phases {
		if p.EffectiveAt(at) {
			effective = append(effective, p)
		}
	}
	return NewPhaseTable(effective)
}

// Validate checks the whole reference set for integrity: every rate within
// bounds and, for every distinct effective window, a complete phase table.
// Used at seed/startup time to surface bad configuration early.
func (r *Registry) Validate(at time.Time) error {
	if _, err := r.RatesAsOf(at); err != nil {
		return err
	}
	_, err := r.PhasesAsOf(at)
	return err
}
