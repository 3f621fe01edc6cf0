/*
policy.go - Payout and cancellation policy strategies

PURPOSE:
  Two business questions have no single right answer and therefore live
  behind strategies selected per deployment, never hardcoded:

  1. Who earns commission on financed payments? AlwaysPaid recipients do
     unconditionally; for everyone else it is a deployment knob.
  2. What happens to commissions when a sale is cancelled (desistimiento)?
     Pay, claw back, or defer - the business has not settled this, so the
     engine ships the three defensible readings and the deployment picks.
*/
package commission

// =============================================================================
// PAYOUT POLICY - Financed-phase eligibility
// =============================================================================

// PayoutPolicy decides whether a rate earns commission for a base amount
// attributed to the given phase.
type PayoutPolicy interface {
	AppliesTo(rate Rate, phase int) bool
}

// StandardPayout: every active rate earns on down-payment phases 1..3;
// only AlwaysPaid recipients earn on the financed phase.
type StandardPayout struct{}

func (StandardPayout) AppliesTo(rate Rate, phase int) bool {
	if phase == PhaseFinanced {
		return rate.AlwaysPaid
	}
	return true
}

// InclusivePayout: every active rate earns on every phase, financed
// included. For deployments that commission the full payment stream.
type InclusivePayout struct{}

func (InclusivePayout) AppliesTo(Rate, int) bool { return true }

// =============================================================================
// CANCELLATION POLICY - Desistimiento disposition
// =============================================================================

// CancellationPolicy describes what happens to a sale's commissions when
// the sale is cancelled, and whether payments recorded afterwards still
// earn commission.
type CancellationPolicy struct {
	Name string

	// VoidPending voids commissions not yet paid out.
	VoidPending bool

	// VoidPaid additionally voids already-paid commissions (claw back).
	VoidPaid bool

	// PayOnCancelledSale keeps calculating commissions for payments that
	// arrive after cancellation.
	PayOnCancelledSale bool
}

var (
	// KeepEarned is the default: paid commissions stand, pending ones are
	// voided, and post-cancellation payments earn nothing.
	KeepEarned = CancellationPolicy{Name: "keep_earned", VoidPending: true}

	// PayAll leaves every commission untouched and keeps paying on
	// post-cancellation payments.
	PayAll = CancellationPolicy{Name: "pay_all", PayOnCancelledSale: true}

	// VoidAll claws back everything, paid rows included.
	VoidAll = CancellationPolicy{Name: "void_all", VoidPending: true, VoidPaid: true}
)
