/*
store.go - Persistence contract for the portfolio service

PURPOSE:
  Defines the interface between the domain logic and the database.
  Implementations: store/sqlite (production) and store/memory (tests/dev).

ATOMICITY CONTRACT:
  Two operations are transactional by definition, not by caller discipline:

  CreateSale    - the unit status compare-and-swap (available → sold) and
                  the sale insert happen in one transaction. When the CAS
                  matches zero rows the whole operation fails with a
                  conflict; two concurrent attempts can never both win.
  RecordPayment - the payment insert and its commission inserts happen in
                  one transaction. A commission failure rolls back the
                  payment; a payment is never left with partially-computed
                  commissions.

IDEMPOTENCE CONTRACT:
  Payments are append-only and keyed by ID; re-recording an existing
  payment ID is a no-op. Commissions are unique per
  (payment, recipient, phase); a colliding insert is silently skipped,
  never surfaced as an error.
*/
package portfolio

import (
	"context"
	"time"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/sales"
)

// Store is the full persistence surface the service needs.
type Store interface {
	CatalogStore
	SaleStore
	PaymentStore
	CommissionStore
	ReferenceStore
}

// CatalogStore persists the inventory side: projects, units, clients.
type CatalogStore interface {
	CreateProject(ctx context.Context, p sales.Project) error
	GetProject(ctx context.Context, id sales.ProjectID) (sales.Project, error)
	ListProjects(ctx context.Context) ([]sales.Project, error)

	CreateUnit(ctx context.Context, u sales.Unit) error
	GetUnit(ctx context.Context, id sales.UnitID) (sales.Unit, error)
	ListUnits(ctx context.Context, projectID sales.ProjectID) ([]sales.Unit, error)

	CreateClient(ctx context.Context, c sales.Client) error
	GetClient(ctx context.Context, id sales.ClientID) (sales.Client, error)
	FindClientByName(ctx context.Context, normalizedName string) (sales.Client, error)
}

// SaleStore persists the sale lifecycle.
type SaleStore interface {
	// CreateSale claims the unit via CAS and inserts the sale atomically.
	// Returns *sales.UnitUnavailableError when the unit is not available.
	CreateSale(ctx context.Context, s sales.Sale) error

	GetSale(ctx context.Context, id sales.SaleID) (sales.Sale, error)
	ListSales(ctx context.Context, projectID sales.ProjectID) ([]sales.Sale, error)
	SalesForUnit(ctx context.Context, unitID sales.UnitID) ([]sales.Sale, error)

	// CancelSale atomically flips the sale to cancelled, releases the unit
	// back to available, and voids commissions per the policy flags.
	// Returns sales.ErrSaleNotActive when the sale is not active.
	CancelSale(ctx context.Context, id sales.SaleID, voidPending, voidPaid bool) error

	// CompleteSale records the deed signing and moves the sale to its
	// terminal status. Returns sales.ErrSaleNotActive when not active.
	CompleteSale(ctx context.Context, id sales.SaleID, deedSignedAt time.Time) error

	SetPromiseSigned(ctx context.Context, id sales.SaleID, signedAt time.Time) error
}

// PaymentStore persists the append-only payment ledger.
type PaymentStore interface {
	// RecordPayment inserts the payment and its commission rows in one
	// transaction. Returns the commissions actually inserted (duplicates
	// skipped).
	RecordPayment(ctx context.Context, p sales.Payment, rows []commission.Commission) ([]commission.Commission, error)

	GetPayment(ctx context.Context, id sales.PaymentID) (sales.Payment, error)
	PaymentsForSale(ctx context.Context, saleID sales.SaleID) ([]sales.Payment, error)
}

// CommissionStore reads and settles commission rows. Amount fields are
// immutable; only status and paid date ever change.
type CommissionStore interface {
	CommissionsForPayment(ctx context.Context, paymentID sales.PaymentID) ([]commission.Commission, error)
	CommissionsForSale(ctx context.Context, saleID sales.SaleID) ([]commission.Commission, error)
	CommissionsForRecipient(ctx context.Context, recipientID sales.RecipientID) ([]commission.Commission, error)
	MarkCommissionPaid(ctx context.Context, id string, paidAt time.Time) error
}

// ReferenceStore persists commission reference data and the expected
// installment schedules.
type ReferenceStore interface {
	SaveRate(ctx context.Context, r commission.Rate) error
	ListRates(ctx context.Context) ([]commission.Rate, error)

	SavePhases(ctx context.Context, phases []commission.Phase) error
	ListPhases(ctx context.Context) ([]commission.Phase, error)

	// ReplaceExpectedSchedule swaps a unit's whole installment schedule.
	ReplaceExpectedSchedule(ctx context.Context, unitID sales.UnitID, rows []sales.ExpectedPayment) error
	ExpectedForUnit(ctx context.Context, unitID sales.UnitID) ([]sales.ExpectedPayment, error)
}
