/*
handlers_test.go - HTTP tests for the REST API

Tests drive the full router against an in-memory SQLite store, covering:
- Catalog creation and client deduplication
- Sale lifecycle (create, conflict, cancel, complete)
- Payment recording with commission generation
- Reference data validation
- Compliance reports
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inmobilia/sales-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedDefaultPhases(context.Background()))

	return &testAPI{t: t, router: NewRouter(NewHandler(store))}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// seedCatalog creates a project, a unit and a client, plus a 2% sales-rep
// rate, and returns their generated IDs.
func (a *testAPI) seedCatalog() (projectID, unitID, clientID string) {
	a.t.Helper()

	rec := a.do("POST", "/api/projects", CreateProjectRequest{
		Name: "mirador", DisplayName: "El Mirador",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode[ProjectDTO](a.t, rec)

	rec = a.do("POST", "/api/units", CreateUnitRequest{
		ProjectID:       project.ID,
		UnitNumber:      "A-101",
		PriceWithTax:    "250000",
		PriceWithoutTax: "210084.0336",
		DownPayment:     "100000",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	unit := decode[UnitDTO](a.t, rec)

	rec = a.do("POST", "/api/clients", CreateClientRequest{FullName: "Juan Perez"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decode[ClientDTO](a.t, rec)

	rec = a.do("PUT", "/api/rates", RateRequest{
		RecipientID: "rep-1", RecipientName: "Rep One",
		Type: "sales_rep", Rate: "0.02",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	return project.ID, unit.ID, client.ID
}

func (a *testAPI) createSale(projectID, unitID, clientID string) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.do("POST", "/api/sales", CreateSaleRequest{
		ProjectID:       projectID,
		UnitID:          unitID,
		ClientID:        clientID,
		SalesRepID:      "rep-1",
		SaleDate:        "2025-01-10",
		PriceWithTax:    "250000",
		PriceWithoutTax: "210084.0336",
		DownPayment:     "100000",
		FinancedAmount:  "150000",
	})
}

// =============================================================================
// CATALOG
// =============================================================================

func TestAPI_CreateClient_DeduplicatesByNormalizedName(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do("POST", "/api/clients", CreateClientRequest{FullName: "Juan Perez"})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[ClientDTO](t, rec)

	// Same person, different casing and spacing: returns the existing row.
	rec = api.do("POST", "/api/clients", CreateClientRequest{FullName: "JUAN   perez"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[ClientDTO](t, rec)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Juan Perez", second.FullName)
}

func TestAPI_GetUnknownSale_Is404(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do("GET", "/api/sales/no-such-sale", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Error)
}

// =============================================================================
// SALE LIFECYCLE
// =============================================================================

func TestAPI_SaleLifecycle_WithPaymentAndCommissions(t *testing.T) {
	api := newTestAPI(t)
	projectID, unitID, clientID := api.seedCatalog()

	// WHEN: The sale is created
	rec := api.createSale(projectID, unitID, clientID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[SaleDTO](t, rec)
	assert.Equal(t, "active", sale.Status)

	// THEN: The unit is claimed
	rec = api.do("GET", "/api/units/"+unitID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sold", decode[UnitDTO](t, rec).Status)

	// WHEN: A 40,000 payment lands
	rec = api.do("POST", fmt.Sprintf("/api/sales/%s/payments", sale.ID), RecordPaymentRequest{
		Date: "2025-02-01", Amount: "40000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[RecordPaymentResponse](t, rec)

	// THEN: The first payment classifies as a reservation and the base
	// splits across phase 1 (30,000) and phase 2 (10,000) at 2%.
	assert.Equal(t, "reservation", resp.Payment.Type)
	require.Len(t, resp.Commissions, 2)
	byPhase := make(map[int]CommissionDTO)
	for _, c := range resp.Commissions {
		byPhase[c.Phase] = c
	}
	assert.Equal(t, "600", byPhase[1].CommissionAmount)
	assert.Equal(t, "200", byPhase[2].CommissionAmount)

	// AND: The rows are queryable by sale
	rec = api.do("GET", fmt.Sprintf("/api/sales/%s/commissions", sale.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]CommissionDTO](t, rec), 2)

	// WHEN: The deed is signed
	rec = api.do("POST", fmt.Sprintf("/api/sales/%s/complete", sale.ID), CompleteSaleRequest{
		DeedSignedAt: "2026-03-15",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do("GET", "/api/sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[SaleDTO](t, rec)
	assert.Equal(t, "completed", got.Status)
	require.NotNil(t, got.DeedSignedAt)
}

func TestAPI_SecondSaleOnSameUnit_Is409(t *testing.T) {
	api := newTestAPI(t)
	projectID, unitID, clientID := api.seedCatalog()

	rec := api.createSale(projectID, unitID, clientID)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.createSale(projectID, unitID, clientID)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Contains(t, body.Details, "not available")
}

func TestAPI_CancelSale_ReleasesUnitForResale(t *testing.T) {
	api := newTestAPI(t)
	projectID, unitID, clientID := api.seedCatalog()

	rec := api.createSale(projectID, unitID, clientID)
	require.Equal(t, http.StatusCreated, rec.Code)
	sale := decode[SaleDTO](t, rec)

	rec = api.do("POST", fmt.Sprintf("/api/sales/%s/cancel", sale.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do("GET", "/api/units/"+unitID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "available", decode[UnitDTO](t, rec).Status)

	// The unit can be sold again.
	rec = api.createSale(projectID, unitID, clientID)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_CreateSale_AmountMismatch_Is400(t *testing.T) {
	api := newTestAPI(t)
	projectID, unitID, clientID := api.seedCatalog()

	rec := api.do("POST", "/api/sales", CreateSaleRequest{
		ProjectID: projectID, UnitID: unitID, ClientID: clientID,
		SalesRepID: "rep-1", SaleDate: "2025-01-10",
		PriceWithTax: "250000", PriceWithoutTax: "210084.0336",
		// 100000 + 100000 != 250000
		DownPayment: "100000", FinancedAmount: "100000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_MalformedBody_Is400(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("POST", "/api/sales", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAPI_ReplayedPayment_ReturnsNoNewCommissions(t *testing.T) {
	api := newTestAPI(t)
	projectID, unitID, clientID := api.seedCatalog()

	rec := api.createSale(projectID, unitID, clientID)
	require.Equal(t, http.StatusCreated, rec.Code)
	sale := decode[SaleDTO](t, rec)

	body := RecordPaymentRequest{ID: "pay-1", Date: "2025-02-01", Amount: "20000"}

	rec = api.do("POST", fmt.Sprintf("/api/sales/%s/payments", sale.ID), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[RecordPaymentResponse](t, rec)
	require.Len(t, first.Commissions, 1)

	// Same client-supplied payment ID: accepted, no duplicate rows.
	rec = api.do("POST", fmt.Sprintf("/api/sales/%s/payments", sale.ID), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[RecordPaymentResponse](t, rec)
	assert.Empty(t, second.Commissions)

	rec = api.do("GET", fmt.Sprintf("/api/sales/%s/payments", sale.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PaymentDTO](t, rec), 1)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestAPI_SaveRate_RejectsOutOfBounds(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do("PUT", "/api/rates", RateRequest{
		RecipientID: "rep-1", RecipientName: "Rep One",
		Type: "sales_rep", Rate: "0.06",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SavePhases_RejectsBrokenLadder(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do("PUT", "/api/phases", []PhaseRequest{
		{Number: 1, Label: "Fase 1", Weight: "0.5"},
		{Number: 2, Label: "Fase 2", Weight: "0.3"},
		{Number: 3, Label: "Fase 3", Weight: "0.3"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COMPLIANCE
// =============================================================================

func TestAPI_ComplianceReport(t *testing.T) {
	api := newTestAPI(t)
	projectID, unitID, clientID := api.seedCatalog()

	rec := api.createSale(projectID, unitID, clientID)
	require.Equal(t, http.StatusCreated, rec.Code)
	sale := decode[SaleDTO](t, rec)

	// Two 30,000 installments due mid-January and mid-February.
	rec = api.do("PUT", fmt.Sprintf("/api/units/%s/expected", unitID), ExpectedScheduleRequest{
		ProjectID: projectID,
		Rows: []ExpectedPaymentRequest{
			{DueDate: "2025-01-15", Amount: "30000"},
			{DueDate: "2025-02-15", Amount: "30000"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Only the first installment gets covered.
	rec = api.do("POST", fmt.Sprintf("/api/sales/%s/payments", sale.ID), RecordPaymentRequest{
		Date: "2025-01-14", Amount: "30000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do("GET", fmt.Sprintf("/api/projects/%s/compliance?as_of=2025-02-28", projectID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[ComplianceReportDTO](t, rec)

	require.Len(t, report.Units, 1)
	unit := report.Units[0]
	assert.Equal(t, "60000", unit.ExpectedToDate)
	assert.Equal(t, "30000", unit.ActualTotal)
	assert.Equal(t, "-30000", unit.Variance)
	require.NotNil(t, unit.CompliancePct)
	assert.Equal(t, 50, *unit.CompliancePct)
	assert.Equal(t, 13, unit.DaysDelinquent, "Feb 15 due date, as of Feb 28")
	assert.Equal(t, "behind", unit.Status)
	assert.Equal(t, "1-30", unit.Bucket)
}
