/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY IN TRANSIT:
  Amounts cross the wire as decimal strings ("250.00"), never floats.
  Handlers parse them back into engine.Money before any arithmetic.

DATES:
  Calendar dates are ISO (YYYY-MM-DD); timestamps are RFC3339.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scheme.go: SchemeJSON type embedded in scheme endpoints
*/
package api

import (
	"time"

	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/engine"
)

// =============================================================================
// CASE TYPES
// =============================================================================

// CaseDTO represents a case in API responses.
type CaseDTO struct {
	Number    string `json:"number"`
	CompanyID string `json:"company_id"`
	Agent     string `json:"agent,omitempty"`

	DebtorName    string `json:"debtor_name,omitempty"`
	DebtorTaxID   string `json:"debtor_tax_id,omitempty"`
	DebtorPhone   string `json:"debtor_phone,omitempty"`
	DebtorEmail   string `json:"debtor_email,omitempty"`
	DebtorAddress string `json:"debtor_address,omitempty"`

	ProductType      string `json:"product_type,omitempty"`
	Principal        string `json:"principal"`
	InstallmentCount int    `json:"installment_count"`
	AmountRecovered  string `json:"amount_recovered"`
	DiscountTotal    string `json:"discount_total"`
	AmountDue        string `json:"amount_due"`

	PurchaseDate     *string `json:"purchase_date,omitempty"`
	FirstDefaultDate *string `json:"first_default_date,omitempty"`
	ReceivedDate     string  `json:"received_date"`

	Status           string  `json:"status"`
	Archived         bool    `json:"archived"`
	ArchivedAt       *string `json:"archived_at,omitempty"`
	ArchiveReason    string  `json:"archive_reason,omitempty"`
	AssignmentDate   *string `json:"assignment_date,omitempty"`
	Comments         string  `json:"comments,omitempty"`
	DocumentAttached bool    `json:"document_attached"`

	Touchpoints []TouchpointDTO `json:"touchpoints"`
	Version     int64           `json:"version"`
}

// TouchpointDTO is one slot of the outreach sequence.
type TouchpointDTO struct {
	Kind       string  `json:"kind"`
	Done       bool    `json:"done"`
	At         *string `json:"at,omitempty"`
	Outcome    *string `json:"outcome,omitempty"`
	PromisedAt *string `json:"promised_at,omitempty"`
}

// CreateCaseRequest is the request to open a new case.
type CreateCaseRequest struct {
	Number           string  `json:"number"`
	CompanyID        string  `json:"company_id"`
	Agent            string  `json:"agent,omitempty"`
	DebtorName       string  `json:"debtor_name,omitempty"`
	DebtorTaxID      string  `json:"debtor_tax_id,omitempty"`
	DebtorPhone      string  `json:"debtor_phone,omitempty"`
	DebtorEmail      string  `json:"debtor_email,omitempty"`
	DebtorAddress    string  `json:"debtor_address,omitempty"`
	ProductType      string  `json:"product_type,omitempty"`
	Principal        string  `json:"principal"`
	InstallmentCount int     `json:"installment_count,omitempty"`
	PurchaseDate     *string `json:"purchase_date,omitempty"`
	FirstDefaultDate *string `json:"first_default_date,omitempty"`
	ReceivedDate     string  `json:"received_date"`
	Comments         string  `json:"comments,omitempty"`
}

// UpdateCaseRequest carries the editable fields; absent fields stay as
// they are.
type UpdateCaseRequest struct {
	Agent            *string `json:"agent,omitempty"`
	DebtorName       *string `json:"debtor_name,omitempty"`
	DebtorTaxID      *string `json:"debtor_tax_id,omitempty"`
	DebtorPhone      *string `json:"debtor_phone,omitempty"`
	DebtorEmail      *string `json:"debtor_email,omitempty"`
	DebtorAddress    *string `json:"debtor_address,omitempty"`
	ProductType      *string `json:"product_type,omitempty"`
	Principal        *string `json:"principal,omitempty"`
	InstallmentCount *int    `json:"installment_count,omitempty"`
	PurchaseDate     *string `json:"purchase_date,omitempty"`
	FirstDefaultDate *string `json:"first_default_date,omitempty"`
	Comments         *string `json:"comments,omitempty"`
	DocumentAttached *bool   `json:"document_attached,omitempty"`
}

// UpdateCaseResponse wraps the updated case with the revocation warning.
type UpdateCaseResponse struct {
	Case              CaseDTO `json:"case"`
	AssignmentRevoked bool    `json:"assignment_revoked"`
}

// StatusRequest sets a direct case status (AGREEMENT, UNLOCATABLE, ACTIVE).
type StatusRequest struct {
	Status string `json:"status"`
}

// ArchiveRequest carries the archive reason.
type ArchiveRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TouchpointRequest marks one outreach slot done or undone.
type TouchpointRequest struct {
	Kind       string  `json:"kind"`
	Done       bool    `json:"done"`
	Outcome    *string `json:"outcome,omitempty"`
	PromisedAt *string `json:"promised_at,omitempty"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentDTO represents a ledger payment.
type PaymentDTO struct {
	ID         string `json:"id"`
	CaseNumber string `json:"case_number"`
	Amount     string `json:"amount"`
	Discount   string `json:"discount"`
	Method     string `json:"method"`
	PaidAt     string `json:"paid_at"`
	Commission string `json:"commission"`
	Reference  string `json:"reference,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreatePaymentRequest records a payment against a case.
type CreatePaymentRequest struct {
	Amount    string `json:"amount"`
	Discount  string `json:"discount,omitempty"`
	Method    string `json:"method"`
	PaidAt    string `json:"paid_at"`
	Reference string `json:"reference,omitempty"`
}

// EditPaymentRequest corrects a payment's amount and discount.
type EditPaymentRequest struct {
	Amount   string `json:"amount"`
	Discount string `json:"discount,omitempty"`
}

// PaymentResponse wraps the created payment with the refreshed case.
type PaymentResponse struct {
	Payment PaymentDTO `json:"payment"`
	Case    CaseDTO    `json:"case"`
}

// =============================================================================
// COMPANY AND SCHEME TYPES
// =============================================================================

// CompanyDTO represents a client company.
type CompanyDTO struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	TaxID              string   `json:"tax_id,omitempty"`
	Active             bool     `json:"active"`
	ProductTypes       []string `json:"product_types"`
	AssignableProducts []string `json:"assignable_products"`
}

// CompanySummaryDTO is the per-client dashboard rollup.
type CompanySummaryDTO struct {
	CompanyID        string `json:"company_id"`
	TotalRecovered   string `json:"total_recovered"`
	TotalOutstanding string `json:"total_outstanding"`
	TotalCommission  string `json:"total_commission"`
	ActiveCases      int    `json:"active_cases"`
	RecoveredCases   int    `json:"recovered_cases"`
}

// CommissionPreviewRequest asks what a payment amount would earn.
type CommissionPreviewRequest struct {
	CompanyID   string `json:"company_id"`
	Category    string `json:"category"`
	ProductType string `json:"product_type,omitempty"`
	Amount      string `json:"amount"`
}

// CommissionPreviewDTO is the preview result.
type CommissionPreviewDTO struct {
	Amount     string `json:"amount"`
	Commission string `json:"commission"`
}

// =============================================================================
// BATCH TYPES
// =============================================================================

// AgingResultDTO summarizes a bulk aging run.
type AgingResultDTO struct {
	Processed int               `json:"processed"`
	Unchanged int               `json:"unchanged"`
	Failures  []AgingFailureDTO `json:"failures,omitempty"`
}

// AgingFailureDTO records one case the run could not process.
type AgingFailureDTO struct {
	CaseNumber string `json:"case_number"`
	Error      string `json:"error"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCaseDTO(c *engine.Case) CaseDTO {
	dto := CaseDTO{
		Number:           string(c.Number),
		CompanyID:        string(c.CompanyID),
		Agent:            c.Agent,
		DebtorName:       c.DebtorName,
		DebtorTaxID:      c.DebtorTaxID,
		DebtorPhone:      c.DebtorPhone,
		DebtorEmail:      c.DebtorEmail,
		DebtorAddress:    c.DebtorAddress,
		ProductType:      c.ProductType,
		Principal:        c.Principal.String(),
		InstallmentCount: c.InstallmentCount,
		AmountRecovered:  c.AmountRecovered.String(),
		DiscountTotal:    c.DiscountTotal.String(),
		AmountDue:        c.AmountDue.String(),
		PurchaseDate:     dateStr(c.PurchaseDate),
		FirstDefaultDate: dateStr(c.FirstDefaultDate),
		ReceivedDate:     c.ReceivedDate.String(),
		Status:           string(c.Status),
		Archived:         c.Lifecycle.IsArchived(),
		ArchiveReason:    c.Lifecycle.Reason,
		AssignmentDate:   dateStr(c.AssignmentDate),
		Comments:         c.Comments,
		DocumentAttached: c.DocumentAttached,
		Version:          c.Version,
	}

	if c.Lifecycle.ArchivedAt != nil {
		at := c.Lifecycle.ArchivedAt.UTC().Format(time.RFC3339)
		dto.ArchivedAt = &at
	}

	dto.Touchpoints = make([]TouchpointDTO, 0, engine.TouchpointCount)
	for kind := engine.TouchpointKind(0); kind < engine.TouchpointCount; kind++ {
		tp := c.Touchpoints[kind]
		tdto := TouchpointDTO{Kind: kind.String(), Done: tp.Done}
		if tp.At != nil {
			at := tp.At.UTC().Format(time.RFC3339)
			tdto.At = &at
		}
		if tp.Outcome != nil {
			outcome := string(*tp.Outcome)
			tdto.Outcome = &outcome
		}
		if tp.PromisedAt != nil {
			promised := tp.PromisedAt.String()
			tdto.PromisedAt = &promised
		}
		dto.Touchpoints = append(dto.Touchpoints, tdto)
	}

	return dto
}

func toCaseDTOs(cases []*engine.Case) []CaseDTO {
	dtos := make([]CaseDTO, len(cases))
	for i, c := range cases {
		dtos[i] = toCaseDTO(c)
	}
	return dtos
}

func toPaymentDTO(p engine.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         string(p.ID),
		CaseNumber: string(p.CaseNumber),
		Amount:     p.Amount.String(),
		Discount:   p.Discount.String(),
		Method:     p.Method,
		PaidAt:     p.PaidAt.String(),
		Commission: p.Commission.String(),
		Reference:  p.Reference,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPaymentDTOs(payments []engine.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toCompanyDTO(co *engine.Company) CompanyDTO {
	dto := CompanyDTO{
		ID:                 string(co.ID),
		Name:               co.Name,
		TaxID:              co.TaxID,
		Active:             co.Active,
		ProductTypes:       co.ProductTypes,
		AssignableProducts: co.AssignableProducts,
	}
	if dto.ProductTypes == nil {
		dto.ProductTypes = []string{}
	}
	if dto.AssignableProducts == nil {
		dto.AssignableProducts = []string{}
	}
	return dto
}

func toCompanySummaryDTO(sum *collections.CompanySummary) CompanySummaryDTO {
	return CompanySummaryDTO{
		CompanyID:        string(sum.CompanyID),
		TotalRecovered:   sum.TotalRecovered.String(),
		TotalOutstanding: sum.TotalOutstanding.String(),
		TotalCommission:  sum.TotalCommission.String(),
		ActiveCases:      sum.ActiveCases,
		RecoveredCases:   sum.RecoveredCases,
	}
}

func toAgingResultDTO(result *collections.BatchResult) AgingResultDTO {
	dto := AgingResultDTO{Processed: result.Processed, Unchanged: result.Unchanged}
	for _, f := range result.Failures {
		dto.Failures = append(dto.Failures, AgingFailureDTO{
			CaseNumber: string(f.CaseNumber),
			Error:      f.Err.Error(),
		})
	}
	return dto
}

func dateStr(d *engine.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
