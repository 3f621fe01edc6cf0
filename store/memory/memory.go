// Package memory provides an in-memory Store implementation (tests/dev).
// It honors the same atomicity and idempotence contracts as the SQLite
// store: operations mutate nothing until their checks pass, and every
// mutation happens under one lock acquisition.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/portfolio"
	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

var _ portfolio.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	projects map[sales.ProjectID]sales.Project
	units    map[sales.UnitID]sales.Unit
	clients  map[sales.ClientID]sales.Client

	// One entry per (project, unit number) to enforce uniqueness.
	unitNumbers map[sales.ProjectID]map[string]sales.UnitID

	sales          map[sales.SaleID]sales.Sale
	payments       map[sales.PaymentID]sales.Payment
	paymentsBySale map[sales.SaleID][]sales.PaymentID

	commissions    map[string]commission.Commission // by row ID
	commissionKeys map[string]string                // idempotency key → row ID

	rates  map[string]commission.Rate // recipient + effective_from
	phases map[string]commission.Phase

	expected map[sales.UnitID][]sales.ExpectedPayment
}

func New() *Store {
	return &Store{
		projects:       make(map[sales.ProjectID]sales.Project),
		units:          make(map[sales.UnitID]sales.Unit),
		clients:        make(map[sales.ClientID]sales.Client),
		unitNumbers:    make(map[sales.ProjectID]map[string]sales.UnitID),
		sales:          make(map[sales.SaleID]sales.Sale),
		payments:       make(map[sales.PaymentID]sales.Payment),
		paymentsBySale: make(map[sales.SaleID][]sales.PaymentID),
		commissions:    make(map[string]commission.Commission),
		commissionKeys: make(map[string]string),
		rates:          make(map[string]commission.Rate),
		phases:         make(map[string]commission.Phase),
		expected:       make(map[sales.UnitID][]sales.ExpectedPayment),
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Store) CreateProject(_ context.Context, p sales.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *Store) GetProject(_ context.Context, id sales.ProjectID) (sales.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return sales.Project{}, sales.ErrProjectNotFound
	}
	return p, nil
}

func (m *Store) ListProjects(_ context.Context) ([]sales.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]sales.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) CreateUnit(_ context.Context, u sales.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[u.ProjectID]; !ok {
		return sales.ErrProjectNotFound
	}
	numbers := m.unitNumbers[u.ProjectID]
	if numbers == nil {
		numbers = make(map[string]sales.UnitID)
		m.unitNumbers[u.ProjectID] = numbers
	}
	if existing, ok := numbers[u.Number]; ok && existing != u.ID {
		return &sales.ConfigError{Reason: "unit number already exists in project", Err: sales.ErrSaleInvalid}
	}
	numbers[u.Number] = u.ID
	m.units[u.ID] = u
	return nil
}

func (m *Store) GetUnit(_ context.Context, id sales.UnitID) (sales.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return sales.Unit{}, sales.ErrUnitNotFound
	}
	return u, nil
}

func (m *Store) ListUnits(_ context.Context, projectID sales.ProjectID) ([]sales.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []sales.Unit
	for _, u := range m.units {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Store) CreateClient(_ context.Context, c sales.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return nil
}

func (m *Store) GetClient(_ context.Context, id sales.ClientID) (sales.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return sales.Client{}, sales.ErrClientNotFound
	}
	return c, nil
}

func (m *Store) FindClientByName(_ context.Context, normalizedName string) (sales.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.FullName == normalizedName {
			return c, nil
		}
	}
	return sales.Client{}, sales.ErrClientNotFound
}

// =============================================================================
// SALE LIFECYCLE
// =============================================================================

// CreateSale claims the unit and inserts the sale under one lock: the
// in-memory equivalent of the SQL CAS + insert transaction.
func (m *Store) CreateSale(_ context.Context, s sales.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.units[s.UnitID]
	if !ok {
		return sales.ErrUnitNotFound
	}
	if u.Status != sales.UnitAvailable {
		return &sales.UnitUnavailableError{UnitID: u.ID, Status: u.Status}
	}

	u.Status = sales.UnitSold
	m.units[u.ID] = u
	m.sales[s.ID] = s
	return nil
}

func (m *Store) GetSale(_ context.Context, id sales.SaleID) (sales.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[id]
	if !ok {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return s, nil
}

func (m *Store) ListSales(_ context.Context, projectID sales.ProjectID) ([]sales.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []sales.Sale
	for _, s := range m.sales {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) SalesForUnit(_ context.Context, unitID sales.UnitID) ([]sales.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []sales.Sale
	for _, s := range m.sales {
		if s.UnitID == unitID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) CancelSale(_ context.Context, id sales.SaleID, voidPending, voidPaid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return sales.ErrSaleNotFound
	}
	if s.Status != sales.SaleActive {
		return sales.ErrSaleNotActive
	}

	s.Status = sales.SaleCancelled
	m.sales[id] = s

	if u, ok := m.units[s.UnitID]; ok {
		u.Status = sales.UnitAvailable
		m.units[u.ID] = u
	}

	for rowID, c := range m.commissions {
		if c.SaleID != id {
			continue
		}
		if (c.Status == commission.StatusPending && voidPending) ||
			(c.Status == commission.StatusPaid && voidPaid) {
			c.Status = commission.StatusVoid
			m.commissions[rowID] = c
		}
	}
	return nil
}

func (m *Store) CompleteSale(_ context.Context, id sales.SaleID, deedSignedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return sales.ErrSaleNotFound
	}
	if s.Status != sales.SaleActive {
		return sales.ErrSaleNotActive
	}
	s.Status = sales.SaleCompleted
	s.DeedSignedAt = &deedSignedAt
	m.sales[id] = s
	return nil
}

func (m *Store) SetPromiseSigned(_ context.Context, id sales.SaleID, signedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return sales.ErrSaleNotFound
	}
	s.PromiseSignedAt = &signedAt
	m.sales[id] = s
	return nil
}

// =============================================================================
// PAYMENTS + COMMISSIONS
// =============================================================================

// RecordPayment is atomic under the lock and idempotent: an existing
// payment ID skips the payment insert, an existing commission key skips
// that row. Only rows actually inserted are returned.
func (m *Store) RecordPayment(_ context.Context, p sales.Payment, rows []commission.Commission) ([]commission.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sales[p.SaleID]; !ok {
		return nil, sales.ErrSaleNotFound
	}

	if _, exists := m.payments[p.ID]; !exists {
		m.payments[p.ID] = p
		m.paymentsBySale[p.SaleID] = append(m.paymentsBySale[p.SaleID], p.ID)
	}

	var inserted []commission.Commission
	for _, c := range rows {
		if _, dup := m.commissionKeys[c.IdempotencyKey]; dup {
			continue
		}
		m.commissions[c.ID] = c
		m.commissionKeys[c.IdempotencyKey] = c.ID
		inserted = append(inserted, c)
	}
	return inserted, nil
}

func (m *Store) GetPayment(_ context.Context, id sales.PaymentID) (sales.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return sales.Payment{}, sales.ErrPaymentNotFound
	}
	return p, nil
}

func (m *Store) PaymentsForSale(_ context.Context, saleID sales.SaleID) ([]sales.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.paymentsBySale[saleID]
	out := make([]sales.Payment, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.payments[id])
	}
	// Same ordering as the SQLite store: date, then recording time.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Store) CommissionsForPayment(_ context.Context, paymentID sales.PaymentID) ([]commission.Commission, error) {
	return m.filterCommissions(func(c commission.Commission) bool { return c.PaymentID == paymentID })
}

func (m *Store) CommissionsForSale(_ context.Context, saleID sales.SaleID) ([]commission.Commission, error) {
	return m.filterCommissions(func(c commission.Commission) bool { return c.SaleID == saleID })
}

func (m *Store) CommissionsForRecipient(_ context.Context, recipientID sales.RecipientID) ([]commission.Commission, error) {
	return m.filterCommissions(func(c commission.Commission) bool { return c.RecipientID == recipientID })
}

func (m *Store) filterCommissions(keep func(commission.Commission) bool) ([]commission.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []commission.Commission
	for _, c := range m.commissions {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdempotencyKey < out[j].IdempotencyKey })
	return out, nil
}

func (m *Store) MarkCommissionPaid(_ context.Context, id string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commissions[id]
	if !ok {
		return sales.ErrCommissionNotFound
	}
	c.Status = commission.StatusPaid
	c.PaidAt = &paidAt
	m.commissions[id] = c
	return nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func rateKey(r commission.Rate) string {
	key := string(r.RecipientID)
	if r.EffectiveFrom != nil {
		key += "@" + r.EffectiveFrom.UTC().Format("2006-01-02")
	}
	return key
}

func phaseKey(p commission.Phase) string {
	key := string(rune('0' + p.Number))
	if p.EffectiveFrom != nil {
		key += "@" + p.EffectiveFrom.UTC().Format("2006-01-02")
	}
	return key
}

func (m *Store) SaveRate(_ context.Context, r commission.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rateKey(r)] = r
	return nil
}

func (m *Store) ListRates(_ context.Context) ([]commission.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]commission.Rate, 0, len(m.rates))
	for _, r := range m.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

func (m *Store) SavePhases(_ context.Context, phases []commission.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range phases {
		m.phases[phaseKey(p)] = p
	}
	return nil
}

func (m *Store) ListPhases(_ context.Context) ([]commission.Phase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]commission.Phase, 0, len(m.phases))
	for _, p := range m.phases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Store) ReplaceExpectedSchedule(_ context.Context, unitID sales.UnitID, rows []sales.ExpectedPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[unitID]; !ok {
		return sales.ErrUnitNotFound
	}
	cp := make([]sales.ExpectedPayment, len(rows))
	copy(cp, rows)
	m.expected[unitID] = cp
	return nil
}

func (m *Store) ExpectedForUnit(_ context.Context, unitID sales.UnitID) ([]sales.ExpectedPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.expected[unitID]
	out := make([]sales.ExpectedPayment, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}
