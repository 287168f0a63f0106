/*
handlers.go - HTTP API handlers for the collections system

PURPOSE:
  Exposes the collections engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the service
  layer - no business rule lives here.

ENDPOINTS:
  Companies:
    GET    /api/companies                  List client companies
    POST   /api/companies                  Create or update a company
    GET    /api/companies/{id}            Company details
    GET    /api/companies/{id}/summary    Dashboard rollup
    GET    /api/companies/{id}/schemes    Commission schemes

  Cases:
    GET    /api/cases                      List (filter by company/status/archived)
    POST   /api/cases                      Open a case
    GET    /api/cases/{number}             Case details
    PUT    /api/cases/{number}             Edit a case
    DELETE /api/cases/{number}             Purge (archived cases only)
    POST   /api/cases/{number}/assign      Run the assignment gate
    POST   /api/cases/{number}/status      AGREEMENT / UNLOCATABLE / ACTIVE
    POST   /api/cases/{number}/touchpoints Mark an outreach slot
    POST   /api/cases/{number}/archive     Soft delete
    POST   /api/cases/{number}/restore     Undo soft delete
    GET    /api/cases/{number}/methods     Allowed payment methods right now

  Payments:
    GET    /api/cases/{number}/payments    Full ledger
    POST   /api/cases/{number}/payments    Record a payment
    PUT    /api/cases/{number}/payments/{id}    Correct a payment
    DELETE /api/cases/{number}/payments/{id}    Remove a payment

  Schemes:
    POST   /api/schemes                    Author a scheme (JSON, validated)
    DELETE /api/schemes/{id}               Remove a scheme
    POST   /api/schemes/preview            Commission preview for an amount

  Admin:
    POST   /api/admin/aging                Run the bulk aging pass now

DETERMINISM:
  Every date-sensitive endpoint accepts ?as_of=YYYY-MM-DD and falls
  back to the wall clock. Tests and replays pin the date explicitly.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, rejected operations
  - 404: Resource not found (including a missing commission scheme)
  - 409: Concurrent modification (retryable)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - collections/service.go: The operations invoked here
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/engine"
	"github.com/recobro/collections-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *collections.Service
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *collections.Service) *Handler {
	return &Handler{Service: svc}
}

// asOf resolves the effective date: explicit ?as_of wins, otherwise the
// wall clock. Malformed values report false.
func asOf(r *http.Request) (engine.Date, bool) {
	q := r.URL.Query().Get("as_of")
	if q == "" {
		return engine.DateOf(time.Now().UTC()), true
	}
	d, err := engine.ParseDate(q)
	if err != nil {
		return engine.Date{}, false
	}
	return d, true
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// ListCompanies returns all client companies.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Service.Store().ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list companies", err)
		return
	}

	dtos := make([]CompanyDTO, len(companies))
	for i, co := range companies {
		dtos[i] = toCompanyDTO(co)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCompany returns a single company.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id := engine.CompanyID(chi.URLParam(r, "id"))

	co, err := h.Service.Store().GetCompany(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get company", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(co))
}

// SaveCompany creates or updates a company.
func (h *Handler) SaveCompany(w http.ResponseWriter, r *http.Request) {
	var req CompanyDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Company id and name are required", nil)
		return
	}

	co := &engine.Company{
		ID:                 engine.CompanyID(req.ID),
		Name:               req.Name,
		TaxID:              req.TaxID,
		Active:             req.Active,
		ProductTypes:       req.ProductTypes,
		AssignableProducts: req.AssignableProducts,
	}
	if err := h.Service.Store().SaveCompany(r.Context(), co); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save company", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyDTO(co))
}

// GetCompanySummary returns the dashboard rollup for a company.
func (h *Handler) GetCompanySummary(w http.ResponseWriter, r *http.Request) {
	id := engine.CompanyID(chi.URLParam(r, "id"))

	sum, err := h.Service.SummarizeCompany(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to summarize company", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanySummaryDTO(sum))
}

// ListCompanySchemes returns a company's schemes for one category.
func (h *Handler) ListCompanySchemes(w http.ResponseWriter, r *http.Request) {
	id := engine.CompanyID(chi.URLParam(r, "id"))
	category := engine.CaseCategory(r.URL.Query().Get("category"))
	if category == "" {
		category = engine.CategoryArrears
	}

	schemes, err := h.Service.Store().SchemesByCompany(r.Context(), id, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schemes", err)
		return
	}

	dtos := make([]factory.SchemeJSON, len(schemes))
	for i, sc := range schemes {
		dtos[i] = factory.ToJSON(sc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CASE HANDLERS
// =============================================================================

// ListCases returns cases matching the query filters.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	filter := collections.CaseFilter{
		CompanyID: engine.CompanyID(r.URL.Query().Get("company_id")),
		Status:    engine.CaseStatus(r.URL.Query().Get("status")),
		Archived:  r.URL.Query().Get("archived") == "true",
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown status filter", nil)
		return
	}

	cases, err := h.Service.Store().ListCases(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cases", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTOs(cases))
}

// GetCase returns a single case.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	c, err := h.Service.Store().GetCase(r.Context(), number)
	if err != nil {
		writeDomainError(w, "Failed to get case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// CreateCase opens a new case.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Number == "" || req.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "Case number and company_id are required", nil)
		return
	}

	received, err := engine.ParseDate(req.ReceivedDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid received_date (use YYYY-MM-DD)", err)
		return
	}
	purchase, err := parseOptionalDate(req.PurchaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase_date (use YYYY-MM-DD)", err)
		return
	}
	firstDefault, err := parseOptionalDate(req.FirstDefaultDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid first_default_date (use YYYY-MM-DD)", err)
		return
	}

	principal, err := engine.ParseMoney(req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal amount", err)
		return
	}

	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	c, err := h.Service.CreateCase(r.Context(), collections.CreateCaseInput{
		Number:           engine.CaseNumber(req.Number),
		CompanyID:        engine.CompanyID(req.CompanyID),
		Agent:            req.Agent,
		DebtorName:       req.DebtorName,
		DebtorTaxID:      req.DebtorTaxID,
		DebtorPhone:      req.DebtorPhone,
		DebtorEmail:      req.DebtorEmail,
		DebtorAddress:    req.DebtorAddress,
		ProductType:      req.ProductType,
		Principal:        principal,
		InstallmentCount: req.InstallmentCount,
		PurchaseDate:     purchase,
		FirstDefaultDate: firstDefault,
		ReceivedDate:     received,
		Comments:         req.Comments,
	}, today)
	if err != nil {
		writeDomainError(w, "Failed to create case", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCaseDTO(c))
}

// UpdateCase edits a case and reports whether the edit revoked an
// existing assignment.
func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	var req UpdateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	edit := collections.CaseEdit{
		Agent:            req.Agent,
		DebtorName:       req.DebtorName,
		DebtorTaxID:      req.DebtorTaxID,
		DebtorPhone:      req.DebtorPhone,
		DebtorEmail:      req.DebtorEmail,
		DebtorAddress:    req.DebtorAddress,
		ProductType:      req.ProductType,
		InstallmentCount: req.InstallmentCount,
		Comments:         req.Comments,
		DocumentAttached: req.DocumentAttached,
	}
	if req.Principal != nil {
		principal, err := engine.ParseMoney(*req.Principal)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid principal amount", err)
			return
		}
		edit.Principal = &principal
	}
	var err error
	if edit.PurchaseDate, err = parseOptionalDate(req.PurchaseDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase_date (use YYYY-MM-DD)", err)
		return
	}
	if edit.FirstDefaultDate, err = parseOptionalDate(req.FirstDefaultDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid first_default_date (use YYYY-MM-DD)", err)
		return
	}

	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	result, err := h.Service.UpdateCase(r.Context(), number, edit, today)
	if err != nil {
		writeDomainError(w, "Failed to update case", err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateCaseResponse{
		Case:              toCaseDTO(result.Case),
		AssignmentRevoked: result.AssignmentRevoked,
	})
}

// AssignCase runs the eligibility gate; the error response carries the
// full unmet checklist.
func (h *Handler) AssignCase(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	c, err := h.Service.AssignCase(r.Context(), number, today)
	if err != nil {
		writeDomainError(w, "Failed to assign case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// SetStatus performs a direct status transition.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	target := engine.CaseStatus(req.Status)
	if !target.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown status", nil)
		return
	}

	c, err := h.Service.SetStatus(r.Context(), number, target)
	if err != nil {
		writeDomainError(w, "Failed to set status", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// SetTouchpoint marks one outreach slot done or undone.
func (h *Handler) SetTouchpoint(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	var req TouchpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind, ok := touchpointKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown touchpoint kind", nil)
		return
	}

	var outcome *engine.Outcome
	if req.Outcome != nil {
		o := engine.Outcome(*req.Outcome)
		outcome = &o
	}
	promised, err := parseOptionalDate(req.PromisedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid promised_at (use YYYY-MM-DD)", err)
		return
	}

	c, err := h.Service.SetTouchpoint(r.Context(), number, kind, req.Done, outcome, promised, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to set touchpoint", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// ArchiveCase soft deletes a case.
func (h *Handler) ArchiveCase(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	var req ArchiveRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body means no reason
	}

	c, err := h.Service.ArchiveCase(r.Context(), number, req.Reason, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to archive case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// RestoreCase undoes a soft delete.
func (h *Handler) RestoreCase(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	c, err := h.Service.RestoreCase(r.Context(), number)
	if err != nil {
		writeDomainError(w, "Failed to restore case", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// PurgeCase permanently deletes an archived case.
func (h *Handler) PurgeCase(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	if err := h.Service.PurgeCase(r.Context(), number); err != nil {
		writeDomainError(w, "Failed to purge case", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purged": string(number)})
}

// ListMethods returns the payment methods currently accepted on a case.
func (h *Handler) ListMethods(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	c, err := h.Service.Store().GetCase(r.Context(), number)
	if err != nil {
		writeDomainError(w, "Failed to get case", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": engine.AllowedMethods(c)})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns the full ledger for a case.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	if _, err := h.Service.Store().GetCase(r.Context(), number); err != nil {
		writeDomainError(w, "Failed to get case", err)
		return
	}
	payments, err := h.Service.Store().PaymentsByCase(r.Context(), number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// CreatePayment records a payment against a case.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paidAt, err := engine.ParseDate(req.PaidAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_at (use YYYY-MM-DD)", err)
		return
	}
	amount, err := engine.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment amount", err)
		return
	}
	discount, err := parseOptionalMoney(req.Discount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid discount amount", err)
		return
	}
	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	c, p, err := h.Service.ApplyPayment(r.Context(), number, engine.PaymentRequest{
		Amount:    amount,
		Discount:  discount,
		Method:    req.Method,
		PaidAt:    paidAt,
		Reference: req.Reference,
	}, today)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{Payment: toPaymentDTO(*p), Case: toCaseDTO(c)})
}

// EditPayment corrects a payment's amount and discount.
func (h *Handler) EditPayment(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))
	id := engine.PaymentID(chi.URLParam(r, "id"))

	var req EditPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := engine.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment amount", err)
		return
	}
	discount, err := parseOptionalMoney(req.Discount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid discount amount", err)
		return
	}
	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	c, err := h.Service.EditPayment(r.Context(), number, id, amount, discount, today)
	if err != nil {
		writeDomainError(w, "Failed to edit payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// DeletePayment removes a payment; the case recomputes and may reopen.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	number := engine.CaseNumber(chi.URLParam(r, "number"))
	id := engine.PaymentID(chi.URLParam(r, "id"))

	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	c, err := h.Service.DeletePayment(r.Context(), number, id, today)
	if err != nil {
		writeDomainError(w, "Failed to delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

// CreateScheme authors a commission scheme from JSON. All tier
// invariants are validated here; computation never re-checks.
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var sj factory.SchemeJSON
	if err := json.NewDecoder(r.Body).Decode(&sj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scheme, err := factory.FromJSON(sj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheme", err)
		return
	}
	if err := h.Service.SaveScheme(r.Context(), scheme); err != nil {
		writeDomainError(w, "Failed to save scheme", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ToJSON(scheme))
}

// DeleteScheme removes a scheme.
func (h *Handler) DeleteScheme(w http.ResponseWriter, r *http.Request) {
	id := engine.SchemeID(chi.URLParam(r, "id"))

	if err := h.Service.Store().DeleteScheme(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete scheme", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// PreviewCommission computes what a payment amount would earn under the
// currently configured scheme.
func (h *Handler) PreviewCommission(w http.ResponseWriter, r *http.Request) {
	var req CommissionPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := engine.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid preview amount", err)
		return
	}

	commission, err := h.Service.CommissionFor(r.Context(),
		engine.CompanyID(req.CompanyID),
		engine.CaseCategory(req.Category),
		req.ProductType,
		amount,
	)
	if err != nil {
		writeDomainError(w, "Failed to compute commission", err)
		return
	}
	writeJSON(w, http.StatusOK, CommissionPreviewDTO{
		Amount:     req.Amount,
		Commission: commission.Round2().String(),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerAging runs the bulk aging pass immediately.
func (h *Handler) TriggerAging(w http.ResponseWriter, r *http.Request) {
	today, ok := asOf(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", nil)
		return
	}

	result, err := h.Service.AgeAllCases(r.Context(), today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Aging run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgingResultDTO(result))
}

// =============================================================================
// RESPONSE HELPERS
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

// writeDomainError maps engine/service errors onto HTTP statuses and
// attaches the structured context clients need to act on the rejection.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var ineligible *engine.AssignmentIneligibleError
	if errors.As(err, &ineligible) {
		reasons := make([]string, len(ineligible.Unmet))
		for i, r := range ineligible.Unmet {
			reasons[i] = string(r)
		}
		resp.Code = "assignment_ineligible"
		resp.Details = reasons
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var badMethod *engine.InvalidPaymentMethodError
	if errors.As(err, &badMethod) {
		resp.Code = "method_not_allowed"
		resp.Details = map[string]any{
			"method":  badMethod.Method,
			"allowed": badMethod.Allowed,
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	switch {
	case engine.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, resp)
	case engine.IsRetryable(err):
		writeJSON(w, http.StatusConflict, resp)
	case engine.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func parseOptionalDate(s *string) (*engine.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := engine.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseOptionalMoney treats an absent field as zero. Anything present
// must parse; malformed amounts are rejected, never zeroed.
func parseOptionalMoney(s string) (engine.Money, error) {
	if s == "" {
		return engine.ZeroMoney(), nil
	}
	return engine.ParseMoney(s)
}

func touchpointKind(name string) (engine.TouchpointKind, bool) {
	for kind := engine.TouchpointKind(0); kind < engine.TouchpointCount; kind++ {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}
