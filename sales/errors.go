/*
errors.go - Centralized error taxonomy for the sales engine

PURPOSE:
  All error types in one place. Packages wrap these with domain context;
  the API layer maps them onto HTTP status codes.

ERROR CATEGORIES (see the error-handling design):
  1. Configuration integrity - fatal, rejects the triggering write
     (phase weights, rate bounds, sale amount invariant)
  2. Concurrency conflict - recoverable, caller retries or reports
     "unit unavailable" (the double-booking race)
  3. Idempotence collision - silent no-op, NOT surfaced as an error
     (duplicate commission insert for an already-processed payment)
  4. Data-quality warning - logged, degraded to null fields on the
     compliance read path

USAGE:
  if errors.Is(err, sales.ErrUnitUnavailable) {
      // report conflict, let the caller retry another unit
  }
*/
package sales

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPhaseConfig is returned when the commission phase table is missing,
	// incomplete, or its weights do not sum to exactly 1.0000. This rejects
	// the triggering payment write; it is never swallowed.
	ErrPhaseConfig = errors.New("commission phase configuration invalid")

	// ErrRateOutOfBounds is returned when a commission rate falls outside
	// the [0, 0.05] band.
	ErrRateOutOfBounds = errors.New("commission rate outside allowed bounds")

	// ErrSaleAmountMismatch is returned when down_payment + financed does
	// not equal price_with_tax.
	ErrSaleAmountMismatch = errors.New("sale amounts do not reconcile")

	// ErrSaleInvalid covers other sale validation failures.
	ErrSaleInvalid = errors.New("invalid sale")

	// ErrPaymentInvalid covers payment validation failures (non-positive
	// amount, unknown type).
	ErrPaymentInvalid = errors.New("invalid payment")

	// ErrUnitUnavailable is returned when the unit status compare-and-swap
	// fails during sale creation: another sale won the race or the unit was
	// never available. Recoverable; the caller reports a conflict.
	ErrUnitUnavailable = errors.New("unit not available for sale")

	// ErrSaleNotActive is returned when a lifecycle transition targets a
	// sale that is not in the required status.
	ErrSaleNotActive = errors.New("sale is not active")

	// ErrDuplicateCommission is raised internally when a commission insert
	// collides with an existing (payment, recipient, phase) row. Stores
	// treat it as a no-op and never propagate it to callers.
	ErrDuplicateCommission = errors.New("commission already recorded for payment")

	// ErrDuplicatePayment is raised when a payment ID is recorded twice.
	// Like commission collisions, re-recording is an idempotent no-op.
	ErrDuplicatePayment = errors.New("payment already recorded")

	// Not-found sentinels.
	ErrProjectNotFound    = errors.New("project not found")
	ErrUnitNotFound       = errors.New("unit not found")
	ErrClientNotFound     = errors.New("client not found")
	ErrSaleNotFound       = errors.New("sale not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrCommissionNotFound = errors.New("commission not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError is a configuration-integrity violation. It aborts the whole
// transaction that triggered it.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration integrity: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UnitUnavailableError reports the losing side of the double-booking race
// with the status the unit actually held.
type UnitUnavailableError struct {
	UnitID UnitID
	Status UnitStatus
}

func (e *UnitUnavailableError) Error() string {
	return fmt.Sprintf("unit %s not available (status: %s)", e.UnitID, e.Status)
}

func (e *UnitUnavailableError) Unwrap() error { return ErrUnitUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether the error is a recoverable concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrUnitUnavailable) || errors.Is(err, ErrSaleNotActive)
}

// IsConfigError reports whether the error is a configuration-integrity
// violation that must abort the triggering write.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrPhaseConfig) ||
		errors.Is(err, ErrRateOutOfBounds) ||
		errors.Is(err, ErrSaleAmountMismatch) ||
		errors.Is(err, ErrSaleInvalid) ||
		errors.Is(err, ErrPaymentInvalid)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrUnitNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrCommissionNotFound)
}

// IsClientError reports whether the error is due to invalid client input
// rather than an internal failure.
func IsClientError(err error) bool {
	return IsConfigError(err) || IsConflict(err) || IsNotFound(err)
}
