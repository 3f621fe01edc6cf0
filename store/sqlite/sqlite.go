/*
Package sqlite provides the SQLite-backed implementation of the portfolio
storage interfaces.

PURPOSE:
  Implements portfolio.Store using database/sql + mattn/go-sqlite3. The
  same patterns apply to PostgreSQL in production - only minor SQL dialect
  differences.

INVARIANTS ENFORCED AT THE SCHEMA LEVEL:
  - UNIQUE(project_id, unit_number): no duplicate units in a project
  - UNIQUE(unit_id) WHERE status='active' on sales: at most one active
    sale per unit, even if application code misbehaves
  - UNIQUE(payment_id, recipient_id, phase) on commissions: the
    serialization mechanism for concurrent commission computation; the
    loser's insert is a no-op, never an error

CONCURRENCY:
  The unit status transition is a compare-and-swap:
      UPDATE units SET status='sold' WHERE id=? AND status='available'
  Zero matched rows means another sale won the race; the caller gets a
  conflict. The CAS and the sale insert share one transaction, so two
  concurrent attempts can never both succeed.

  A sync.RWMutex serializes writers on top of SQLite's single-writer
  model. With PostgreSQL, row locks and the same unique indexes replace
  the mutex.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) for better read concurrency and
  crash recovery. Foreign keys are ON.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - portfolio/store.go: Interface definitions and atomicity contract
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/portfolio"
	"github.com/inmobilia/sales-engine/sales"
)

// Store implements portfolio.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ portfolio.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and lets the
	// store mutex serialize writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		unit_number TEXT NOT NULL,
		unit_type TEXT,
		price_with_tax TEXT NOT NULL,
		price_without_tax TEXT NOT NULL,
		down_payment TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		created_at TEXT NOT NULL,
		UNIQUE(project_id, unit_number)
	);

	CREATE INDEX IF NOT EXISTS idx_units_project
		ON units(project_id);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_name
		ON clients(full_name);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		unit_id TEXT NOT NULL REFERENCES units(id),
		client_id TEXT NOT NULL REFERENCES clients(id),
		sales_rep_id TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		price_with_tax TEXT NOT NULL,
		price_without_tax TEXT NOT NULL,
		down_payment_amount TEXT NOT NULL,
		financed_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		referral_applies INTEGER NOT NULL DEFAULT 0,
		special_case INTEGER NOT NULL DEFAULT 0,
		special_case_type TEXT,
		notes TEXT,
		promise_signed_at TEXT,
		deed_signed_at TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one active sale per unit. Cancelled/completed
	-- sales accumulate as history; the partial index only guards 'active'.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_one_active_per_unit
		ON sales(unit_id) WHERE status = 'active';

	CREATE INDEX IF NOT EXISTS idx_sales_project
		ON sales(project_id);
	CREATE INDEX IF NOT EXISTS idx_sales_unit
		ON sales(unit_id);

	-- Payments are append-only: no UPDATE, no DELETE. Corrections happen
	-- as new payments.
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		payment_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		method TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_sale_date
		ON payments(sale_id, payment_date);

	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL REFERENCES payments(id),
		sale_id TEXT NOT NULL REFERENCES sales(id),
		recipient_id TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		phase INTEGER NOT NULL,
		rate TEXT NOT NULL,
		base_amount TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		paid_at TEXT,
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: the idempotence anchor. Two concurrent calculations of the
	-- same payment collide here; the loser's insert is a silent no-op.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_commissions_payment_recipient_phase
		ON commissions(payment_id, recipient_id, phase);

	CREATE INDEX IF NOT EXISTS idx_commissions_sale
		ON commissions(sale_id);
	CREATE INDEX IF NOT EXISTS idx_commissions_recipient
		ON commissions(recipient_id);

	CREATE TABLE IF NOT EXISTS commission_rates (
		recipient_id TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		recipient_type TEXT NOT NULL,
		rate TEXT NOT NULL,
		always_paid INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		effective_from TEXT,
		effective_to TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_rates_recipient_window
		ON commission_rates(recipient_id, IFNULL(effective_from, ''));

	CREATE TABLE IF NOT EXISTS commission_phases (
		phase_number INTEGER NOT NULL,
		label TEXT NOT NULL,
		weight TEXT NOT NULL,
		effective_from TEXT,
		effective_to TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_phases_number_window
		ON commission_phases(phase_number, IFNULL(effective_from, ''));

	CREATE TABLE IF NOT EXISTS expected_payments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		unit_id TEXT NOT NULL REFERENCES units(id),
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		installment_number INTEGER NOT NULL,
		source TEXT NOT NULL,
		UNIQUE(unit_id, installment_number)
	);

	CREATE INDEX IF NOT EXISTS idx_expected_unit_due
		ON expected_payments(unit_id, due_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

const timeLayout = time.RFC3339

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func decodeTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := decodeTime(ns.String)
	return &t
}

func decodeDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) CreateProject(ctx context.Context, p sales.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, display_name, created_at) VALUES (?, ?, ?, ?)`,
		string(p.ID), p.Name, p.DisplayName, encodeTime(p.CreatedAt))
	return err
}

func (s *Store) GetProject(ctx context.Context, id sales.ProjectID) (sales.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, display_name, created_at FROM projects WHERE id = ?`, string(id))

	var p sales.Project
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sales.Project{}, sales.ErrProjectNotFound
		}
		return sales.Project{}, err
	}
	p.CreatedAt = decodeTime(createdAt)
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]sales.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, display_name, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.Project
	for rows.Next() {
		var p sales.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = decodeTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

const unitColumns = `id, project_id, unit_number, unit_type, price_with_tax,
	price_without_tax, down_payment, status, created_at`

func (s *Store) CreateUnit(ctx context.Context, u sales.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO units (`+unitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(u.ID), string(u.ProjectID), u.Number, u.UnitType,
		u.PriceWithTax.String(), u.PriceWithoutTax.String(), u.DownPayment.String(),
		string(u.Status), encodeTime(u.CreatedAt))
	return err
}

func scanUnit(scan func(...any) error) (sales.Unit, error) {
	var u sales.Unit
	var unitType sql.NullString
	var priceWith, priceWithout, downPayment, createdAt string
	err := scan(&u.ID, &u.ProjectID, &u.Number, &unitType,
		&priceWith, &priceWithout, &downPayment, &u.Status, &createdAt)
	if err != nil {
		return sales.Unit{}, err
	}
	u.UnitType = unitType.String
	u.PriceWithTax = decodeDecimal(priceWith)
	u.PriceWithoutTax = decodeDecimal(priceWithout)
	u.DownPayment = decodeDecimal(downPayment)
	u.CreatedAt = decodeTime(createdAt)
	return u, nil
}

func (s *Store) GetUnit(ctx context.Context, id sales.UnitID) (sales.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = ?`, string(id))
	u, err := scanUnit(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Unit{}, sales.ErrUnitNotFound
	}
	return u, err
}

func (s *Store) ListUnits(ctx context.Context, projectID sales.ProjectID) ([]sales.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE project_id = ? ORDER BY unit_number`,
		string(projectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.Unit
	for rows.Next() {
		u, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CreateClient(ctx context.Context, c sales.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, full_name, created_at) VALUES (?, ?, ?)`,
		string(c.ID), c.FullName, encodeTime(c.CreatedAt))
	return err
}

func (s *Store) GetClient(ctx context.Context, id sales.ClientID) (sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOneClient(ctx, `SELECT id, full_name, created_at FROM clients WHERE id = ?`, string(id))
}

func (s *Store) FindClientByName(ctx context.Context, normalizedName string) (sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOneClient(ctx,
		`SELECT id, full_name, created_at FROM clients WHERE full_name = ? LIMIT 1`,
		normalizedName)
}

func (s *Store) scanOneClient(ctx context.Context, query string, arg any) (sales.Client, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var c sales.Client
	var createdAt string
	if err := row.Scan(&c.ID, &c.FullName, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sales.Client{}, sales.ErrClientNotFound
		}
		return sales.Client{}, err
	}
	c.CreatedAt = decodeTime(createdAt)
	return c, nil
}

// =============================================================================
// SALE LIFECYCLE
// =============================================================================

// CreateSale claims the unit and inserts the sale in one transaction.
// The CAS is the whole trick: "set sold where available" matches zero rows
// when another sale got there first, and zero matched rows means conflict.
func (s *Store) CreateSale(ctx context.Context, sale sales.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE units SET status = ? WHERE id = ? AND status = ?`,
		string(sales.UnitSold), string(sale.UnitID), string(sales.UnitAvailable))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM units WHERE id = ?`, string(sale.UnitID)).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sales.ErrUnitNotFound
		}
		if err != nil {
			return err
		}
		return &sales.UnitUnavailableError{UnitID: sale.UnitID, Status: sales.UnitStatus(status)}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sales (id, project_id, unit_id, client_id, sales_rep_id, sale_date,
		   price_with_tax, price_without_tax, down_payment_amount, financed_amount,
		   status, referral_applies, special_case, special_case_type, notes,
		   promise_signed_at, deed_signed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sale.ID), string(sale.ProjectID), string(sale.UnitID), string(sale.ClientID),
		string(sale.SalesRepID), encodeTime(sale.SaleDate),
		sale.PriceWithTax.String(), sale.PriceWithoutTax.String(),
		sale.DownPaymentAmount.String(), sale.FinancedAmount.String(),
		string(sale.Status), boolToInt(sale.ReferralApplies), boolToInt(sale.SpecialCase),
		sale.SpecialCaseType, sale.Notes,
		encodeTimePtr(sale.PromiseSignedAt), encodeTimePtr(sale.DeedSignedAt),
		encodeTime(sale.CreatedAt))
	if err != nil {
		return err
	}
	return tx.Commit()
}

const saleColumns = `id, project_id, unit_id, client_id, sales_rep_id, sale_date,
	price_with_tax, price_without_tax, down_payment_amount, financed_amount,
	status, referral_applies, special_case, special_case_type, notes,
	promise_signed_at, deed_signed_at, created_at`

func scanSale(scan func(...any) error) (sales.Sale, error) {
	var sale sales.Sale
	var saleDate, priceWith, priceWithout, downPayment, financed, createdAt string
	var referral, special int
	var specialType, notes, promiseAt, deedAt sql.NullString
	err := scan(&sale.ID, &sale.ProjectID, &sale.UnitID, &sale.ClientID, &sale.SalesRepID,
		&saleDate, &priceWith, &priceWithout, &downPayment, &financed,
		&sale.Status, &referral, &special, &specialType, &notes, &promiseAt, &deedAt, &createdAt)
	if err != nil {
		return sales.Sale{}, err
	}
	sale.SaleDate = decodeTime(saleDate)
	sale.PriceWithTax = decodeDecimal(priceWith)
	sale.PriceWithoutTax = decodeDecimal(priceWithout)
	sale.DownPaymentAmount = decodeDecimal(downPayment)
	sale.FinancedAmount = decodeDecimal(financed)
	sale.ReferralApplies = referral != 0
	sale.SpecialCase = special != 0
	sale.SpecialCaseType = specialType.String
	sale.Notes = notes.String
	sale.PromiseSignedAt = decodeTimePtr(promiseAt)
	sale.DeedSignedAt = decodeTimePtr(deedAt)
	sale.CreatedAt = decodeTime(createdAt)
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id sales.SaleID) (sales.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = ?`, string(id))
	sale, err := scanSale(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return sale, err
}

func (s *Store) listSales(ctx context.Context, where string, arg any) ([]sales.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE `+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.Sale
	for rows.Next() {
		sale, err := scanSale(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, projectID sales.ProjectID) ([]sales.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSales(ctx, `project_id = ?`, string(projectID))
}

func (s *Store) SalesForUnit(ctx context.Context, unitID sales.UnitID) ([]sales.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSales(ctx, `unit_id = ?`, string(unitID))
}

// CancelSale flips the sale, releases the unit, and voids commissions per
// the policy flags - all in one transaction.
func (s *Store) CancelSale(ctx context.Context, id sales.SaleID, voidPending, voidPaid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sales SET status = ? WHERE id = ? AND status = ?`,
		string(sales.SaleCancelled), string(id), string(sales.SaleActive))
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = ?`, string(id)).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sales.ErrSaleNotFound
		}
		if err != nil {
			return err
		}
		return sales.ErrSaleNotActive
	}

	// The unit goes back on the market.
	_, err = tx.ExecContext(ctx,
		`UPDATE units SET status = ?
		 WHERE id = (SELECT unit_id FROM sales WHERE id = ?)`,
		string(sales.UnitAvailable), string(id))
	if err != nil {
		return err
	}

	for _, st := range voidableStatuses(voidPending, voidPaid) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE commissions SET status = ? WHERE sale_id = ? AND status = ?`,
			string(commission.StatusVoid), string(id), string(st)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func voidableStatuses(voidPending, voidPaid bool) []commission.Status {
	var out []commission.Status
	if voidPending {
		out = append(out, commission.StatusPending)
	}
	if voidPaid {
		out = append(out, commission.StatusPaid)
	}
	return out
}

func (s *Store) CompleteSale(ctx context.Context, id sales.SaleID, deedSignedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sales SET status = ?, deed_signed_at = ? WHERE id = ? AND status = ?`,
		string(sales.SaleCompleted), encodeTime(deedSignedAt), string(id), string(sales.SaleActive))
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = ?`, string(id)).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sales.ErrSaleNotFound
		}
		if err != nil {
			return err
		}
		return sales.ErrSaleNotActive
	}
	return nil
}

func (s *Store) SetPromiseSigned(ctx context.Context, id sales.SaleID, signedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sales SET promise_signed_at = ? WHERE id = ?`,
		encodeTime(signedAt), string(id))
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sales.ErrSaleNotFound
	}
	return nil
}

// =============================================================================
// PAYMENTS + COMMISSIONS
// =============================================================================

// RecordPayment writes the payment and its commission rows atomically.
// INSERT OR IGNORE makes both sides idempotent: a replayed payment ID and
// a colliding (payment, recipient, phase) row are silent no-ops. Only rows
// actually inserted are returned.
func (s *Store) RecordPayment(ctx context.Context, p sales.Payment, rows []commission.Commission) ([]commission.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Surface a missing sale as a domain error, not an FK failure.
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sales WHERE id = ?`, string(p.SaleID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sales.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO payments (id, sale_id, payment_date, amount, payment_type,
		   method, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.SaleID), encodeTime(p.Date), p.Amount.String(),
		string(p.Type), p.Method, p.Notes, encodeTime(p.CreatedAt))
	if err != nil {
		return nil, err
	}

	var inserted []commission.Commission
	for _, c := range rows {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO commissions (id, payment_id, sale_id, recipient_id,
			   recipient_name, phase, rate, base_amount, commission_amount, status,
			   paid_at, idempotency_key, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, string(c.PaymentID), string(c.SaleID), string(c.RecipientID),
			c.RecipientName, c.Phase, c.Rate.String(), c.BaseAmount.String(),
			c.CommissionAmount.String(), string(c.Status),
			encodeTimePtr(c.PaidAt), c.IdempotencyKey, encodeTime(c.CreatedAt))
		if err != nil {
			return nil, err
		}
		if affected, _ := res.RowsAffected(); affected == 1 {
			inserted = append(inserted, c)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func scanPayment(scan func(...any) error) (sales.Payment, error) {
	var p sales.Payment
	var date, amount, createdAt string
	var method, notes sql.NullString
	err := scan(&p.ID, &p.SaleID, &date, &amount, &p.Type, &method, &notes, &createdAt)
	if err != nil {
		return sales.Payment{}, err
	}
	p.Date = decodeTime(date)
	p.Amount = decodeDecimal(amount)
	p.Method = method.String
	p.Notes = notes.String
	p.CreatedAt = decodeTime(createdAt)
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id sales.PaymentID) (sales.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sale_id, payment_date, amount, payment_type, method, notes, created_at
		 FROM payments WHERE id = ?`, string(id))

	p, err := scanPayment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Payment{}, sales.ErrPaymentNotFound
	}
	return p, err
}

func (s *Store) PaymentsForSale(ctx context.Context, saleID sales.SaleID) ([]sales.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sale_id, payment_date, amount, payment_type, method, notes, created_at
		 FROM payments WHERE sale_id = ? ORDER BY payment_date, created_at`, string(saleID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const commissionColumns = `id, payment_id, sale_id, recipient_id, recipient_name,
	phase, rate, base_amount, commission_amount, status, paid_at, idempotency_key, created_at`

func scanCommission(scan func(...any) error) (commission.Commission, error) {
	var c commission.Commission
	var rate, base, amount, createdAt string
	var paidAt sql.NullString
	err := scan(&c.ID, &c.PaymentID, &c.SaleID, &c.RecipientID, &c.RecipientName,
		&c.Phase, &rate, &base, &amount, &c.Status, &paidAt, &c.IdempotencyKey, &createdAt)
	if err != nil {
		return commission.Commission{}, err
	}
	c.Rate = decodeDecimal(rate)
	c.BaseAmount = decodeDecimal(base)
	c.CommissionAmount = decodeDecimal(amount)
	c.PaidAt = decodeTimePtr(paidAt)
	c.CreatedAt = decodeTime(createdAt)
	return c, nil
}

func (s *Store) listCommissions(ctx context.Context, where string, arg any) ([]commission.Commission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE `+where+` ORDER BY idempotency_key`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commission.Commission
	for rows.Next() {
		c, err := scanCommission(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CommissionsForPayment(ctx context.Context, paymentID sales.PaymentID) ([]commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCommissions(ctx, `payment_id = ?`, string(paymentID))
}

func (s *Store) CommissionsForSale(ctx context.Context, saleID sales.SaleID) ([]commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCommissions(ctx, `sale_id = ?`, string(saleID))
}

func (s *Store) CommissionsForRecipient(ctx context.Context, recipientID sales.RecipientID) ([]commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCommissions(ctx, `recipient_id = ?`, string(recipientID))
}

func (s *Store) MarkCommissionPaid(ctx context.Context, id string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE commissions SET status = ?, paid_at = ? WHERE id = ?`,
		string(commission.StatusPaid), encodeTime(paidAt), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sales.ErrCommissionNotFound
	}
	return nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// SaveRate upserts one effective-dated rate row, keyed by
// (recipient, effective_from). Delete-then-insert keeps the upsert portable
// across SQLite versions with expression indexes.
func (s *Store) SaveRate(ctx context.Context, r commission.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM commission_rates
		 WHERE recipient_id = ? AND IFNULL(effective_from, '') = IFNULL(?, '')`,
		string(r.RecipientID), encodeTimePtr(r.EffectiveFrom))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO commission_rates (recipient_id, recipient_name, recipient_type,
		   rate, always_paid, active, effective_from, effective_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.RecipientID), r.RecipientName, string(r.Type), r.Rate.String(),
		boolToInt(r.AlwaysPaid), boolToInt(r.Active),
		encodeTimePtr(r.EffectiveFrom), encodeTimePtr(r.EffectiveTo))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListRates(ctx context.Context) ([]commission.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT recipient_id, recipient_name, recipient_type, rate, always_paid,
		   active, effective_from, effective_to
		 FROM commission_rates ORDER BY recipient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commission.Rate
	for rows.Next() {
		var r commission.Rate
		var rate string
		var alwaysPaid, active int
		var from, to sql.NullString
		if err := rows.Scan(&r.RecipientID, &r.RecipientName, &r.Type, &rate,
			&alwaysPaid, &active, &from, &to); err != nil {
			return nil, err
		}
		r.Rate = decodeDecimal(rate)
		r.AlwaysPaid = alwaysPaid != 0
		r.Active = active != 0
		r.EffectiveFrom = decodeTimePtr(from)
		r.EffectiveTo = decodeTimePtr(to)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SavePhases upserts phase rows keyed by (number, effective_from).
func (s *Store) SavePhases(ctx context.Context, phases []commission.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range phases {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM commission_phases
			 WHERE phase_number = ? AND IFNULL(effective_from, '') = IFNULL(?, '')`,
			p.Number, encodeTimePtr(p.EffectiveFrom))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO commission_phases (phase_number, label, weight, effective_from, effective_to)
			 VALUES (?, ?, ?, ?, ?)`,
			p.Number, p.Label, p.Weight.String(),
			encodeTimePtr(p.EffectiveFrom), encodeTimePtr(p.EffectiveTo))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListPhases(ctx context.Context) ([]commission.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase_number, label, weight, effective_from, effective_to
		 FROM commission_phases ORDER BY phase_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commission.Phase
	for rows.Next() {
		var p commission.Phase
		var weight string
		var from, to sql.NullString
		if err := rows.Scan(&p.Number, &p.Label, &weight, &from, &to); err != nil {
			return nil, err
		}
		p.Weight = decodeDecimal(weight)
		p.EffectiveFrom = decodeTimePtr(from)
		p.EffectiveTo = decodeTimePtr(to)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceExpectedSchedule(ctx context.Context, unitID sales.UnitID, rows []sales.ExpectedPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expected_payments WHERE unit_id = ?`, string(unitID)); err != nil {
		return err
	}
	for _, e := range rows {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO expected_payments (id, project_id, unit_id, due_date, amount,
			   installment_number, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, string(e.ProjectID), string(e.UnitID), encodeTime(e.DueDate),
			e.Amount.String(), e.InstallmentNumber, string(e.Source))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ExpectedForUnit(ctx context.Context, unitID sales.UnitID) ([]sales.ExpectedPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, unit_id, due_date, amount, installment_number, source
		 FROM expected_payments WHERE unit_id = ? ORDER BY due_date`, string(unitID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.ExpectedPayment
	for rows.Next() {
		var e sales.ExpectedPayment
		var due, amount string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.UnitID, &due, &amount,
			&e.InstallmentNumber, &e.Source); err != nil {
			return nil, err
		}
		e.DueDate = decodeTime(due)
		e.Amount = decodeDecimal(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// SEEDING
// =============================================================================

// SeedDefaultPhases installs the standard 30/30/40 phase table when
// commission_phases is empty. Called on server startup.
func (s *Store) SeedDefaultPhases(ctx context.Context) error {
	s.mu.RLock()
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commission_phases`).Scan(&count)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.SavePhases(ctx, commission.DefaultPhases())
}
