/*
handlers.go - HTTP API handlers for the unit-sales engine

PURPOSE:
  Exposes the sales/commission/compliance engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic in the portfolio service.

ENDPOINTS:
  Catalog:
    GET    /api/projects                    List projects
    POST   /api/projects                    Create project
    GET    /api/projects/{id}               Get project
    GET    /api/projects/{id}/units         List units in project
    POST   /api/units                       Create unit
    GET    /api/units/{id}                  Get unit
    POST   /api/clients                     Create client
    GET    /api/clients/{id}                Get client

  Sales:
    POST   /api/sales                       Create sale (claims the unit)
    GET    /api/sales/{id}                  Get sale
    POST   /api/sales/{id}/cancel           Cancel sale (desistimiento)
    POST   /api/sales/{id}/complete         Record the deed signing
    POST   /api/sales/{id}/payments         Record payment + commissions
    GET    /api/sales/{id}/payments         Payment history
    GET    /api/sales/{id}/commissions      Commission rows for the sale

  Commissions:
    POST   /api/payments/{id}/recalculate   Idempotent recalculation
    POST   /api/commissions/{id}/pay        Mark a commission row paid
    GET    /api/recipients/{id}/commissions Recipient report + summary

  Reference data:
    GET    /api/rates                       List commission rates
    PUT    /api/rates                       Upsert an effective-dated rate
    GET    /api/phases                      List phase table
    PUT    /api/phases                      Replace phase table (validated)
    GET    /api/units/{id}/expected         Expected payment schedule
    PUT    /api/units/{id}/expected         Replace expected schedule

  Reports:
    GET    /api/projects/{id}/compliance?as_of=YYYY-MM-DD
                                            Project compliance report

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, configuration errors
  - 404: Resource not found
  - 409: Conflict (unit already sold, sale not active)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - portfolio/service.go: The domain logic behind every handler
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/portfolio"
	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   portfolio.Store
	Service *portfolio.Service
}

// NewHandler creates a handler over the given store. The service wraps the
// same store.
func NewHandler(store portfolio.Store, opts ...portfolio.Option) *Handler {
	return &Handler{
		Store:   store,
		Service: portfolio.New(store, opts...),
	}
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

// ListProjects returns all projects.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}
	out := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateProject creates a project.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}

	p := sales.Project{
		ID:          sales.ProjectID(uuid.NewString()),
		Name:        req.Name,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now(),
	}
	if err := h.Store.CreateProject(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// GetProject returns one project.
// GET /api/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := sales.ProjectID(chi.URLParam(r, "id"))
	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

// ListUnits returns the units of a project.
// GET /api/projects/{id}/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	projectID := sales.ProjectID(chi.URLParam(r, "id"))
	units, err := h.Store.ListUnits(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}
	out := make([]UnitDTO, 0, len(units))
	for _, u := range units {
		out = append(out, toUnitDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateUnit creates a unit in a project.
// POST /api/units
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" || req.UnitNumber == "" {
		writeError(w, http.StatusBadRequest, "project_id and unit_number are required", nil)
		return
	}

	priceWith, err := parseMoney(req.PriceWithTax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price_with_tax", err)
		return
	}
	priceWithout, err := parseMoney(req.PriceWithoutTax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price_without_tax", err)
		return
	}
	downPayment, err := parseMoney(req.DownPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid down_payment", err)
		return
	}

	u := sales.Unit{
		ID:              sales.UnitID(uuid.NewString()),
		ProjectID:       sales.ProjectID(req.ProjectID),
		Number:          req.UnitNumber,
		UnitType:        req.UnitType,
		PriceWithTax:    priceWith,
		PriceWithoutTax: priceWithout,
		DownPayment:     downPayment,
		Status:          sales.UnitAvailable,
		CreatedAt:       time.Now(),
	}
	if err := h.Store.CreateUnit(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitDTO(u))
}

// GetUnit returns one unit.
// GET /api/units/{id}
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := sales.UnitID(chi.URLParam(r, "id"))
	u, err := h.Store.GetUnit(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get unit", err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(u))
}

// CreateClient creates a client. Names are normalized before storage so
// duplicate detection is spelling-insensitive.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	name := sales.NormalizeName(req.FullName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "full_name is required", nil)
		return
	}

	// Reuse the existing record when the normalized name already exists.
	if existing, err := h.Store.FindClientByName(r.Context(), name); err == nil {
		writeJSON(w, http.StatusOK, toClientDTO(existing))
		return
	}

	c := sales.Client{
		ID:        sales.ClientID(uuid.NewString()),
		FullName:  name,
		CreatedAt: time.Now(),
	}
	if err := h.Store.CreateClient(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

// GetClient returns one client.
// GET /api/clients/{id}
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := sales.ClientID(chi.URLParam(r, "id"))
	c, err := h.Store.GetClient(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

// =============================================================================
// SALE ENDPOINTS
// =============================================================================

// CreateSale creates a sale and claims the unit. A unit that is not
// available yields 409, never a silent overwrite.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saleDate, err := parseTime(req.SaleDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_date", err)
		return
	}
	priceWith, err := parseMoney(req.PriceWithTax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price_with_tax", err)
		return
	}
	priceWithout, err := parseMoney(req.PriceWithoutTax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price_without_tax", err)
		return
	}
	downPayment, err := parseMoney(req.DownPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid down_payment_amount", err)
		return
	}
	financed, err := parseMoney(req.FinancedAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid financed_amount", err)
		return
	}

	sale, err := h.Service.CreateSale(r.Context(), portfolio.NewSale{
		ProjectID:         sales.ProjectID(req.ProjectID),
		UnitID:            sales.UnitID(req.UnitID),
		ClientID:          sales.ClientID(req.ClientID),
		SalesRepID:        sales.RecipientID(req.SalesRepID),
		SaleDate:          saleDate,
		PriceWithTax:      priceWith,
		PriceWithoutTax:   priceWithout,
		DownPaymentAmount: downPayment,
		FinancedAmount:    financed,
		ReferralApplies:   req.ReferralApplies,
		SpecialCase:       req.SpecialCase,
		SpecialCaseType:   req.SpecialCaseType,
		Notes:             req.Notes,
	})
	if err != nil {
		writeDomainError(w, "Failed to create sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GetSale returns one sale.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := sales.SaleID(chi.URLParam(r, "id"))
	sale, err := h.Store.GetSale(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// CancelSale cancels an active sale, releasing the unit and disposing of
// commissions per the configured cancellation policy.
// POST /api/sales/{id}/cancel
func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	id := sales.SaleID(chi.URLParam(r, "id"))
	if err := h.Service.CancelSale(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to cancel sale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// CompleteSale records the deed signing and closes the sale.
// POST /api/sales/{id}/complete
func (h *Handler) CompleteSale(w http.ResponseWriter, r *http.Request) {
	id := sales.SaleID(chi.URLParam(r, "id"))

	var req CompleteSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	deedAt, err := parseTime(req.DeedSignedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deed_signed_at", err)
		return
	}

	if err := h.Service.CompleteSale(r.Context(), id, deedAt); err != nil {
		writeDomainError(w, "Failed to complete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// =============================================================================
// PAYMENT + COMMISSION ENDPOINTS
// =============================================================================

// RecordPayment records one payment against a sale and returns both the
// payment and the commission rows it generated. Re-posting the same
// payment ID is a no-op that returns zero new commissions.
// POST /api/sales/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	saleID := sales.SaleID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseTime(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	payment, rows, err := h.Service.RecordPayment(r.Context(), portfolio.RecordPaymentInput{
		ID:     sales.PaymentID(req.ID),
		SaleID: saleID,
		Date:   date,
		Amount: amount,
		Type:   sales.PaymentType(req.Type),
		Method: req.Method,
		Notes:  req.Notes,
	})
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Payment:     toPaymentDTO(payment),
		Commissions: toCommissionDTOs(rows),
	})
}

// ListPayments returns the payment history of a sale.
// GET /api/sales/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	saleID := sales.SaleID(chi.URLParam(r, "id"))
	payments, err := h.Store.PaymentsForSale(r.Context(), saleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	out := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListSaleCommissions returns all commission rows of a sale.
// GET /api/sales/{id}/commissions
func (h *Handler) ListSaleCommissions(w http.ResponseWriter, r *http.Request) {
	saleID := sales.SaleID(chi.URLParam(r, "id"))
	rows, err := h.Store.CommissionsForSale(r.Context(), saleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(rows))
}

// RecalculateCommissions re-derives commissions for an already-recorded
// payment. Safe to call any number of times: existing rows survive, only
// missing ones are inserted.
// POST /api/payments/{id}/recalculate
func (h *Handler) RecalculateCommissions(w http.ResponseWriter, r *http.Request) {
	paymentID := sales.PaymentID(chi.URLParam(r, "id"))
	inserted, err := h.Service.RecalculateCommissions(r.Context(), paymentID)
	if err != nil {
		writeDomainError(w, "Failed to recalculate commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(inserted))
}

// MarkCommissionPaid transitions one commission row to paid.
// POST /api/commissions/{id}/pay
func (h *Handler) MarkCommissionPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.MarkCommissionPaid(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to mark commission paid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// RecipientReport returns a recipient's commission rows plus totals by
// status.
// GET /api/recipients/{id}/commissions
func (h *Handler) RecipientReport(w http.ResponseWriter, r *http.Request) {
	recipientID := sales.RecipientID(chi.URLParam(r, "id"))
	rows, summary, err := h.Service.RecipientReport(r.Context(), recipientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build recipient report", err)
		return
	}
	writeJSON(w, http.StatusOK, RecipientReportResponse{
		RecipientID: string(recipientID),
		Commissions: toCommissionDTOs(rows),
		Summary:     toSummaryDTO(summary),
	})
}

// =============================================================================
// REFERENCE DATA ENDPOINTS
// =============================================================================

// ListRates returns all effective-dated commission rates.
// GET /api/rates
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rates", err)
		return
	}
	out := make([]RateDTO, 0, len(rates))
	for _, rt := range rates {
		out = append(out, toRateDTO(rt))
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveRate upserts one effective-dated rate. Rates outside [0, 0.05] are
// rejected.
// PUT /api/rates
func (h *Handler) SaveRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := parseMoney(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	from, err := parseTimePtr(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from", err)
		return
	}
	to, err := parseTimePtr(req.EffectiveTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_to", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rec := commission.Rate{
		RecipientID:   sales.RecipientID(req.RecipientID),
		RecipientName: req.RecipientName,
		Type:          commission.RecipientType(req.Type),
		Rate:          rate,
		AlwaysPaid:    req.AlwaysPaid,
		Active:        active,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
	if err := h.Service.SaveRate(r.Context(), rec); err != nil {
		writeDomainError(w, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rec))
}

// ListPhases returns the phase table.
// GET /api/phases
func (h *Handler) ListPhases(w http.ResponseWriter, r *http.Request) {
	phases, err := h.Store.ListPhases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list phases", err)
		return
	}
	out := make([]PhaseDTO, 0, len(phases))
	for _, p := range phases {
		out = append(out, toPhaseDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// SavePhases replaces the phase table. Weights must sum to exactly 1.
// PUT /api/phases
func (h *Handler) SavePhases(w http.ResponseWriter, r *http.Request) {
	var req []PhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	phases := make([]commission.Phase, 0, len(req))
	for _, pr := range req {
		weight, err := parseMoney(pr.Weight)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid weight", err)
			return
		}
		from, err := parseTimePtr(pr.EffectiveFrom)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_from", err)
			return
		}
		to, err := parseTimePtr(pr.EffectiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_to", err)
			return
		}
		phases = append(phases, commission.Phase{
			Number:        pr.Number,
			Label:         pr.Label,
			Weight:        weight,
			EffectiveFrom: from,
			EffectiveTo:   to,
		})
	}

	if err := h.Service.SavePhases(r.Context(), phases); err != nil {
		writeDomainError(w, "Failed to save phases", err)
		return
	}
	out := make([]PhaseDTO, 0, len(phases))
	for _, p := range phases {
		out = append(out, toPhaseDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// ExpectedSchedule returns the expected payment schedule of a unit.
// GET /api/units/{id}/expected
func (h *Handler) ExpectedSchedule(w http.ResponseWriter, r *http.Request) {
	unitID := sales.UnitID(chi.URLParam(r, "id"))
	rows, err := h.Store.ExpectedForUnit(r.Context(), unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get expected schedule", err)
		return
	}
	out := make([]ExpectedPaymentDTO, 0, len(rows))
	for _, e := range rows {
		out = append(out, toExpectedPaymentDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// SetExpectedSchedule replaces the expected payment schedule of a unit.
// Installment numbers are assigned by due date order.
// PUT /api/units/{id}/expected
func (h *Handler) SetExpectedSchedule(w http.ResponseWriter, r *http.Request) {
	unitID := sales.UnitID(chi.URLParam(r, "id"))

	var req ExpectedScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rows := make([]sales.ExpectedPayment, 0, len(req.Rows))
	for _, er := range req.Rows {
		due, err := parseTime(er.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date", err)
			return
		}
		amount, err := parseMoney(er.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		rows = append(rows, sales.ExpectedPayment{
			ProjectID: sales.ProjectID(req.ProjectID),
			UnitID:    unitID,
			DueDate:   due,
			Amount:    amount,
			Source:    sales.ScheduleSource(er.Source),
		})
	}

	if err := h.Service.SetExpectedSchedule(r.Context(), unitID, rows); err != nil {
		writeDomainError(w, "Failed to set expected schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"installments": len(rows)})
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// ComplianceReport builds the per-project compliance report as of the
// given date (default: now).
// GET /api/projects/{id}/compliance?as_of=YYYY-MM-DD
func (h *Handler) ComplianceReport(w http.ResponseWriter, r *http.Request) {
	projectID := sales.ProjectID(chi.URLParam(r, "id"))

	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := parseTime(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
		asOf = parsed
	}

	report, err := h.Service.ComplianceReport(r.Context(), projectID, asOf)
	if err != nil {
		writeDomainError(w, "Failed to build compliance report", err)
		return
	}
	writeJSON(w, http.StatusOK, toComplianceReportDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error classes onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case sales.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case sales.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case sales.IsConfigError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
