/*
dto.go - Request/response data structures for the REST API

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY ENCODING:
  All monetary fields travel as decimal strings ("40000.0000") to preserve
  the 4-decimal-place precision. float64 JSON numbers would silently
  corrupt amounts. Times travel as RFC3339; optional times as null.

SEE ALSO:
  - handlers.go: Where these are parsed and produced
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/inmobilia/sales-engine/commission"
	"github.com/inmobilia/sales-engine/compliance"
	"github.com/inmobilia/sales-engine/sales"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the JSON shape of all error replies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func encodeTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := encodeTime(*t)
	return &s
}

// =============================================================================
// CATALOG
// =============================================================================

type CreateProjectRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type ProjectDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

func toProjectDTO(p sales.Project) ProjectDTO {
	return ProjectDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		DisplayName: p.DisplayName,
		CreatedAt:   encodeTime(p.CreatedAt),
	}
}

type CreateUnitRequest struct {
	ProjectID       string `json:"project_id"`
	UnitNumber      string `json:"unit_number"`
	UnitType        string `json:"unit_type,omitempty"`
	PriceWithTax    string `json:"price_with_tax"`
	PriceWithoutTax string `json:"price_without_tax"`
	DownPayment     string `json:"down_payment"`
}

type UnitDTO struct {
	ID              string `json:"id"`
	ProjectID       string `json:"project_id"`
	UnitNumber      string `json:"unit_number"`
	UnitType        string `json:"unit_type,omitempty"`
	PriceWithTax    string `json:"price_with_tax"`
	PriceWithoutTax string `json:"price_without_tax"`
	DownPayment     string `json:"down_payment"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func toUnitDTO(u sales.Unit) UnitDTO {
	return UnitDTO{
		ID:              string(u.ID),
		ProjectID:       string(u.ProjectID),
		UnitNumber:      u.Number,
		UnitType:        u.UnitType,
		PriceWithTax:    u.PriceWithTax.String(),
		PriceWithoutTax: u.PriceWithoutTax.String(),
		DownPayment:     u.DownPayment.String(),
		Status:          string(u.Status),
		CreatedAt:       encodeTime(u.CreatedAt),
	}
}

type CreateClientRequest struct {
	FullName string `json:"full_name"`
}

type ClientDTO struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	CreatedAt string `json:"created_at"`
}

func toClientDTO(c sales.Client) ClientDTO {
	return ClientDTO{
		ID:        string(c.ID),
		FullName:  c.FullName,
		CreatedAt: encodeTime(c.CreatedAt),
	}
}

// =============================================================================
// SALES
// =============================================================================

type CreateSaleRequest struct {
	ProjectID       string `json:"project_id"`
	UnitID          string `json:"unit_id"`
	ClientID        string `json:"client_id"`
	SalesRepID      string `json:"sales_rep_id"`
	SaleDate        string `json:"sale_date"`
	PriceWithTax    string `json:"price_with_tax"`
	PriceWithoutTax string `json:"price_without_tax"`
	DownPayment     string `json:"down_payment_amount"`
	FinancedAmount  string `json:"financed_amount"`
	ReferralApplies bool   `json:"referral_applies,omitempty"`
	SpecialCase     bool   `json:"special_case,omitempty"`
	SpecialCaseType string `json:"special_case_type,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type SaleDTO struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	UnitID          string  `json:"unit_id"`
	ClientID        string  `json:"client_id"`
	SalesRepID      string  `json:"sales_rep_id"`
	SaleDate        string  `json:"sale_date"`
	PriceWithTax    string  `json:"price_with_tax"`
	PriceWithoutTax string  `json:"price_without_tax"`
	DownPayment     string  `json:"down_payment_amount"`
	FinancedAmount  string  `json:"financed_amount"`
	Status          string  `json:"status"`
	ReferralApplies bool    `json:"referral_applies"`
	SpecialCase     bool    `json:"special_case"`
	SpecialCaseType string  `json:"special_case_type,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	PromiseSignedAt *string `json:"promise_signed_at"`
	DeedSignedAt    *string `json:"deed_signed_at"`
	CreatedAt       string  `json:"created_at"`
}

func toSaleDTO(s sales.Sale) SaleDTO {
	return SaleDTO{
		ID:              string(s.ID),
		ProjectID:       string(s.ProjectID),
		UnitID:          string(s.UnitID),
		ClientID:        string(s.ClientID),
		SalesRepID:      string(s.SalesRepID),
		SaleDate:        encodeTime(s.SaleDate),
		PriceWithTax:    s.PriceWithTax.String(),
		PriceWithoutTax: s.PriceWithoutTax.String(),
		DownPayment:     s.DownPaymentAmount.String(),
		FinancedAmount:  s.FinancedAmount.String(),
		Status:          string(s.Status),
		ReferralApplies: s.ReferralApplies,
		SpecialCase:     s.SpecialCase,
		SpecialCaseType: s.SpecialCaseType,
		Notes:           s.Notes,
		PromiseSignedAt: encodeTimePtr(s.PromiseSignedAt),
		DeedSignedAt:    encodeTimePtr(s.DeedSignedAt),
		CreatedAt:       encodeTime(s.CreatedAt),
	}
}

type CompleteSaleRequest struct {
	DeedSignedAt string `json:"deed_signed_at"`
}

// =============================================================================
// PAYMENTS + COMMISSIONS
// =============================================================================

type RecordPaymentRequest struct {
	// Optional: callers that retry supply their own ID for idempotence.
	ID     string `json:"id,omitempty"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
	// Optional: empty means "classify from the sale's cumulative state".
	Type   string `json:"type,omitempty"`
	Method string `json:"method,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type PaymentDTO struct {
	ID        string `json:"id"`
	SaleID    string `json:"sale_id"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Type      string `json:"type"`
	Method    string `json:"method,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toPaymentDTO(p sales.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        string(p.ID),
		SaleID:    string(p.SaleID),
		Date:      encodeTime(p.Date),
		Amount:    p.Amount.String(),
		Type:      string(p.Type),
		Method:    p.Method,
		Notes:     p.Notes,
		CreatedAt: encodeTime(p.CreatedAt),
	}
}

type RecordPaymentResponse struct {
	Payment     PaymentDTO      `json:"payment"`
	Commissions []CommissionDTO `json:"commissions"`
}

type CommissionDTO struct {
	ID               string  `json:"id"`
	PaymentID        string  `json:"payment_id"`
	SaleID           string  `json:"sale_id"`
	RecipientID      string  `json:"recipient_id"`
	RecipientName    string  `json:"recipient_name"`
	Phase            int     `json:"phase"`
	Rate             string  `json:"rate"`
	BaseAmount       string  `json:"base_amount"`
	CommissionAmount string  `json:"commission_amount"`
	Status           string  `json:"status"`
	PaidAt           *string `json:"paid_at"`
	CreatedAt        string  `json:"created_at"`
}

func toCommissionDTO(c commission.Commission) CommissionDTO {
	return CommissionDTO{
		ID:               c.ID,
		PaymentID:        string(c.PaymentID),
		SaleID:           string(c.SaleID),
		RecipientID:      string(c.RecipientID),
		RecipientName:    c.RecipientName,
		Phase:            c.Phase,
		Rate:             c.Rate.String(),
		BaseAmount:       c.BaseAmount.String(),
		CommissionAmount: c.CommissionAmount.String(),
		Status:           string(c.Status),
		PaidAt:           encodeTimePtr(c.PaidAt),
		CreatedAt:        encodeTime(c.CreatedAt),
	}
}

func toCommissionDTOs(rows []commission.Commission) []CommissionDTO {
	out := make([]CommissionDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, toCommissionDTO(c))
	}
	return out
}

type SummaryDTO struct {
	Rows    int    `json:"rows"`
	Total   string `json:"total"`
	Pending string `json:"pending"`
	Paid    string `json:"paid"`
	Void    string `json:"void"`
}

func toSummaryDTO(s commission.Summary) SummaryDTO {
	return SummaryDTO{
		Rows:    s.Rows,
		Total:   s.Total.String(),
		Pending: s.Pending.String(),
		Paid:    s.Paid.String(),
		Void:    s.Void.String(),
	}
}

type RecipientReportResponse struct {
	RecipientID string          `json:"recipient_id"`
	Commissions []CommissionDTO `json:"commissions"`
	Summary     SummaryDTO      `json:"summary"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type RateRequest struct {
	RecipientID   string  `json:"recipient_id"`
	RecipientName string  `json:"recipient_name"`
	Type          string  `json:"type"`
	Rate          string  `json:"rate"`
	AlwaysPaid    bool    `json:"always_paid,omitempty"`
	Active        *bool   `json:"active,omitempty"` // nil means active
	EffectiveFrom *string `json:"effective_from,omitempty"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
}

type RateDTO struct {
	RecipientID   string  `json:"recipient_id"`
	RecipientName string  `json:"recipient_name"`
	Type          string  `json:"type"`
	Rate          string  `json:"rate"`
	AlwaysPaid    bool    `json:"always_paid"`
	Active        bool    `json:"active"`
	EffectiveFrom *string `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
}

func toRateDTO(r commission.Rate) RateDTO {
	return RateDTO{
		RecipientID:   string(r.RecipientID),
		RecipientName: r.RecipientName,
		Type:          string(r.Type),
		Rate:          r.Rate.String(),
		AlwaysPaid:    r.AlwaysPaid,
		Active:        r.Active,
		EffectiveFrom: encodeTimePtr(r.EffectiveFrom),
		EffectiveTo:   encodeTimePtr(r.EffectiveTo),
	}
}

type PhaseRequest struct {
	Number        int     `json:"number"`
	Label         string  `json:"label"`
	Weight        string  `json:"weight"`
	EffectiveFrom *string `json:"effective_from,omitempty"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
}

type PhaseDTO struct {
	Number        int     `json:"number"`
	Label         string  `json:"label"`
	Weight        string  `json:"weight"`
	EffectiveFrom *string `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
}

func toPhaseDTO(p commission.Phase) PhaseDTO {
	return PhaseDTO{
		Number:        p.Number,
		Label:         p.Label,
		Weight:        p.Weight.String(),
		EffectiveFrom: encodeTimePtr(p.EffectiveFrom),
		EffectiveTo:   encodeTimePtr(p.EffectiveTo),
	}
}

type ExpectedPaymentRequest struct {
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
	Source  string `json:"source,omitempty"`
}

type ExpectedScheduleRequest struct {
	ProjectID string                   `json:"project_id"`
	Rows      []ExpectedPaymentRequest `json:"rows"`
}

type ExpectedPaymentDTO struct {
	ID                string `json:"id"`
	ProjectID         string `json:"project_id"`
	UnitID            string `json:"unit_id"`
	DueDate           string `json:"due_date"`
	Amount            string `json:"amount"`
	InstallmentNumber int    `json:"installment_number"`
	Source            string `json:"source"`
}

func toExpectedPaymentDTO(e sales.ExpectedPayment) ExpectedPaymentDTO {
	return ExpectedPaymentDTO{
		ID:                e.ID,
		ProjectID:         string(e.ProjectID),
		UnitID:            string(e.UnitID),
		DueDate:           encodeTime(e.DueDate),
		Amount:            e.Amount.String(),
		InstallmentNumber: e.InstallmentNumber,
		Source:            string(e.Source),
	}
}

// =============================================================================
// COMPLIANCE REPORTING
// =============================================================================

type UnitComplianceDTO struct {
	UnitID         string `json:"unit_id"`
	UnitNumber     string `json:"unit_number"`
	SaleID         string `json:"sale_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ExpectedToDate string `json:"expected_to_date"`
	ActualTotal    string `json:"actual_total"`
	Variance       string `json:"variance"`
	CompliancePct  *int   `json:"compliance_pct"`
	DaysDelinquent int    `json:"days_delinquent"`
	Status         string `json:"status"`
	Bucket         string `json:"bucket"`
}

type ComplianceReportDTO struct {
	ProjectID      string              `json:"project_id"`
	AsOf           string              `json:"as_of"`
	Units          []UnitComplianceDTO `json:"units"`
	ExpectedToDate string              `json:"expected_to_date"`
	ActualTotal    string              `json:"actual_total"`
	Variance       string              `json:"variance"`
	CompliancePct  *int                `json:"compliance_pct"`
	Buckets        map[string]int      `json:"buckets"`
}

func toComplianceReportDTO(r compliance.ProjectReport) ComplianceReportDTO {
	units := make([]UnitComplianceDTO, 0, len(r.Units))
	for _, u := range r.Units {
		units = append(units, UnitComplianceDTO{
			UnitID:         string(u.UnitID),
			UnitNumber:     u.UnitNumber,
			SaleID:         string(u.SaleID),
			ClientID:       string(u.ClientID),
			ExpectedToDate: u.Result.ExpectedToDate.String(),
			ActualTotal:    u.Result.ActualTotal.String(),
			Variance:       u.Result.Variance.String(),
			CompliancePct:  u.Result.CompliancePct,
			DaysDelinquent: u.Result.DaysDelinquent,
			Status:         string(u.Result.Status),
			Bucket:         string(u.Bucket),
		})
	}
	buckets := make(map[string]int, len(r.Buckets))
	for b, n := range r.Buckets {
		buckets[string(b)] = n
	}
	return ComplianceReportDTO{
		ProjectID:      string(r.ProjectID),
		AsOf:           encodeTime(r.AsOf),
		Units:          units,
		ExpectedToDate: r.ExpectedToDate.String(),
		ActualTotal:    r.ActualTotal.String(),
		Variance:       r.Variance.String(),
		CompliancePct:  r.CompliancePct,
		Buckets:        buckets,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Date-only input is common for payment and due dates.
	return time.Parse("2006-01-02", s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
