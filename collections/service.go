/*
service.go - Case operations as atomic read-modify-write units

PURPOSE:
  Implements every externally visible operation on a case. Each one
  follows the same shape:

    1. acquire the per-case lock (fail fast if contended)
    2. open a store transaction
    3. load the case and, when money moves, the FULL payment ledger
    4. compute with the engine (totals always re-summed, never
       incremented)
    5. persist case + payment changes with the version check
    6. commit; nothing is written if any step rejected

  A rejected operation leaves persisted state exactly as it was.

SEE ALSO:
  - engine: the pure computation invoked here
  - batch.go: bulk aging with per-case isolation
*/
package collections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/recobro/collections-engine/engine"
)

// Service wires the engine to a store and the lock registry.
type Service struct {
	store Store
	locks *caseLocks
}

func NewService(store Store) *Service {
	return &Service{store: store, locks: newCaseLocks()}
}

// Store exposes the underlying store for read-only callers (API listing
// endpoints). Mutations must go through the service.
func (s *Service) Store() Store { return s.store }

// =============================================================================
// CASE CREATION AND EDITING
// =============================================================================

// CreateCaseInput carries the caller-provided fields of a new case. The
// case number comes from the surrounding system and is immutable after.
type CreateCaseInput struct {
	Number           engine.CaseNumber
	CompanyID        engine.CompanyID
	Agent            string
	DebtorName       string
	DebtorTaxID      string
	DebtorPhone      string
	DebtorEmail      string
	DebtorAddress    string
	ProductType      string
	Principal        engine.Money
	InstallmentCount int
	PurchaseDate     *engine.Date
	FirstDefaultDate *engine.Date
	ReceivedDate     engine.Date
	Comments         string
}

func (s *Service) CreateCase(ctx context.Context, in CreateCaseInput, today engine.Date) (*engine.Case, error) {
	if in.Principal.IsNegative() {
		return nil, engine.ErrInvalidAmount
	}
	if in.PurchaseDate != nil && in.FirstDefaultDate != nil && in.PurchaseDate.After(*in.FirstDefaultDate) {
		return nil, engine.ErrInvalidDates
	}

	c := engine.NewCase(in.Number, in.CompanyID, in.Principal, in.ReceivedDate)
	c.Agent = in.Agent
	c.DebtorName = in.DebtorName
	c.DebtorTaxID = in.DebtorTaxID
	c.DebtorPhone = in.DebtorPhone
	c.DebtorEmail = in.DebtorEmail
	c.DebtorAddress = in.DebtorAddress
	c.ProductType = in.ProductType
	c.InstallmentCount = in.InstallmentCount
	c.PurchaseDate = in.PurchaseDate
	c.FirstDefaultDate = in.FirstDefaultDate
	c.Comments = in.Comments

	engine.RecomputeDue(c, engine.LedgerSummary{}, today)

	err := s.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetCompany(ctx, in.CompanyID); err != nil {
			return err
		}
		return tx.InsertCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CaseEdit carries the editable fields. Nil pointers mean "unchanged".
type CaseEdit struct {
	Agent            *string
	DebtorName       *string
	DebtorTaxID      *string
	DebtorPhone      *string
	DebtorEmail      *string
	DebtorAddress    *string
	ProductType      *string
	Principal        *engine.Money
	InstallmentCount *int
	PurchaseDate     *engine.Date
	FirstDefaultDate *engine.Date
	Comments         *string
	DocumentAttached *bool
}

// EditResult reports the outcome of a case edit, including whether the
// edit knocked an assigned case back to active arrears.
type EditResult struct {
	Case              *engine.Case
	AssignmentRevoked bool
}

// UpdateCase applies an edit, reruns the accrual calculator, and
// re-checks assignment eligibility. An edit that removes eligibility
// while the case is ASSIGNED flips it back to ACTIVE and the result
// carries a warning flag for the caller to surface.
func (s *Service) UpdateCase(ctx context.Context, number engine.CaseNumber, edit CaseEdit, today engine.Date) (*EditResult, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &EditResult{}
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}

		applyEdit(c, edit)
		if c.PurchaseDate != nil && c.FirstDefaultDate != nil && c.PurchaseDate.After(*c.FirstDefaultDate) {
			return engine.ErrInvalidDates
		}

		payments, err := tx.PaymentsByCase(ctx, number)
		if err != nil {
			return err
		}
		summary := engine.Summarize(payments)
		c.AmountRecovered = summary.Recovered.Round2()
		c.DiscountTotal = summary.Discounts.Round2()

		company, err := tx.GetCompany(ctx, c.CompanyID)
		if err != nil {
			return err
		}
		result.AssignmentRevoked = engine.ReviewAssignment(c, summary, engine.AssignmentCheck{
			Company:          company,
			DocumentAttached: c.DocumentAttached,
			Today:            today,
		})
		engine.RecomputeDue(c, summary, today)
		engine.SettleIfPaid(c)
		engine.ReopenIfUnpaid(c)

		result.Case = c
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyEdit(c *engine.Case, e CaseEdit) {
	if e.Agent != nil {
		c.Agent = *e.Agent
	}
	if e.DebtorName != nil {
		c.DebtorName = *e.DebtorName
	}
	if e.DebtorTaxID != nil {
		c.DebtorTaxID = *e.DebtorTaxID
	}
	if e.DebtorPhone != nil {
		c.DebtorPhone = *e.DebtorPhone
	}
	if e.DebtorEmail != nil {
		c.DebtorEmail = *e.DebtorEmail
	}
	if e.DebtorAddress != nil {
		c.DebtorAddress = *e.DebtorAddress
	}
	if e.ProductType != nil {
		c.ProductType = *e.ProductType
	}
	if e.Principal != nil {
		c.Principal = *e.Principal
	}
	if e.InstallmentCount != nil {
		c.InstallmentCount = *e.InstallmentCount
	}
	if e.PurchaseDate != nil {
		c.PurchaseDate = e.PurchaseDate
	}
	if e.FirstDefaultDate != nil {
		c.FirstDefaultDate = e.FirstDefaultDate
	}
	if e.Comments != nil {
		c.Comments = *e.Comments
	}
	if e.DocumentAttached != nil {
		c.DocumentAttached = *e.DocumentAttached
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

// ApplyPayment validates and records a payment, derives its commission,
// refreshes every derived case field, and settles the case when the due
// amount drops to the threshold. All or nothing.
func (s *Service) ApplyPayment(ctx context.Context, number engine.CaseNumber, req engine.PaymentRequest, today engine.Date) (*engine.Case, *engine.Payment, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var (
		updated *engine.Case
		created *engine.Payment
	)
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}

		req, err = engine.ValidatePayment(c, req)
		if err != nil {
			return err
		}

		// Commission is derived at creation time under the scheme in
		// force right now. A missing scheme rejects the payment; the
		// case stays untouched.
		scheme, err := engine.ResolveScheme(s.lookupWith(ctx, tx), c.CompanyID, c.Category(), c.ProductType)
		if err != nil {
			return err
		}

		p := engine.Payment{
			ID:         engine.PaymentID(uuid.NewString()),
			CaseNumber: number,
			Amount:     req.Amount,
			Discount:   req.Discount,
			Method:     req.Method,
			PaidAt:     req.PaidAt,
			Commission: engine.CommissionFor(scheme, req.Amount).Round2(),
			Reference:  req.Reference,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}

		if err := s.recomputeCase(ctx, tx, c, today); err != nil {
			return err
		}

		updated = c
		created = &p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, created, nil
}

// EditPayment corrects a payment's amount and discount. The commission
// stays as derived at creation. The new amount must still fit under the
// due amount the case would have without this payment.
func (s *Service) EditPayment(ctx context.Context, number engine.CaseNumber, id engine.PaymentID, newAmount, newDiscount engine.Money, today engine.Date) (*engine.Case, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *engine.Case
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}

		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}

		p, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if p.CaseNumber != number {
			return engine.ErrPaymentNotFound
		}

		// The corrected amount must fit under the due amount the case
		// would have without this payment. Same guard as a new payment.
		payments, err := tx.PaymentsByCase(ctx, number)
		if err != nil {
			return err
		}
		remainder := make([]engine.Payment, 0, len(payments))
		for _, q := range payments {
			if q.ID != id {
				remainder = append(remainder, q)
			}
		}
		if err := engine.ValidateAmendedAmount(c, remainder, newAmount, today); err != nil {
			return err
		}
		if newDiscount.IsNegative() {
			newDiscount = engine.ZeroMoney()
		}

		p.Amount = newAmount
		p.Discount = newDiscount
		if err := tx.UpdatePayment(ctx, *p); err != nil {
			return err
		}

		if err := s.recomputeCase(ctx, tx, c, today); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePayment removes a payment and fully recomputes the case, which
// may reopen a PAID case.
func (s *Service) DeletePayment(ctx context.Context, number engine.CaseNumber, id engine.PaymentID, today engine.Date) (*engine.Case, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *engine.Case
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}

		p, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if p.CaseNumber != number {
			return engine.ErrPaymentNotFound
		}
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}

		if err := s.recomputeCase(ctx, tx, c, today); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// recomputeCase refreshes every derived field from the full ledger and
// applies the payment-driven transitions. Must run inside the caller's
// store transaction.
func (s *Service) recomputeCase(ctx context.Context, tx Store, c *engine.Case, today engine.Date) error {
	payments, err := tx.PaymentsByCase(ctx, c.Number)
	if err != nil {
		return err
	}
	summary := engine.Summarize(payments)
	c.AmountRecovered = summary.Recovered.Round2()
	c.DiscountTotal = summary.Discounts.Round2()

	engine.RecomputeDue(c, summary, today)
	engine.SettleIfPaid(c)
	engine.ReopenIfUnpaid(c)

	return tx.UpdateCase(ctx, c)
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// AssignCase runs the eligibility gate and, on success, accelerates the
// case. On failure the error carries the complete unmet checklist.
func (s *Service) AssignCase(ctx context.Context, number engine.CaseNumber, today engine.Date) (*engine.Case, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *engine.Case
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}

		company, err := tx.GetCompany(ctx, c.CompanyID)
		if err != nil {
			return err
		}
		payments, err := tx.PaymentsByCase(ctx, number)
		if err != nil {
			return err
		}

		if err := engine.Assign(c, engine.Summarize(payments), engine.AssignmentCheck{
			Company:          company,
			DocumentAttached: c.DocumentAttached,
			Today:            today,
		}); err != nil {
			return err
		}

		updated = c
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetStatus performs the direct user transitions (AGREEMENT,
// UNLOCATABLE, back to ACTIVE). PAID and ASSIGNED cannot be set here.
func (s *Service) SetStatus(ctx context.Context, number engine.CaseNumber, target engine.CaseStatus) (*engine.Case, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *engine.Case
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}
		if !engine.SetStatus(c, target) {
			return engine.ErrInvalidTransition(c.Status, target)
		}
		updated = c
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetTouchpoint marks one outreach slot done or undone.
func (s *Service) SetTouchpoint(ctx context.Context, number engine.CaseNumber, kind engine.TouchpointKind, done bool, outcome *engine.Outcome, promisedAt *engine.Date, at time.Time) (*engine.Case, error) {
	if !kind.Valid() {
		return nil, engine.ErrInvalidTouchpoint
	}

	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *engine.Case
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if c.Lifecycle.IsArchived() {
			return engine.ErrCaseArchived
		}
		c.Touchpoints.Set(kind, done, at, outcome, promisedAt)
		updated = c
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// ARCHIVE / RESTORE / PURGE
// =============================================================================

func (s *Service) ArchiveCase(ctx context.Context, number engine.CaseNumber, reason string, at time.Time) (*engine.Case, error) {
	return s.setLifecycle(ctx, number, func(c *engine.Case) {
		c.Lifecycle = c.Lifecycle.Archive(at, reason)
	})
}

func (s *Service) RestoreCase(ctx context.Context, number engine.CaseNumber) (*engine.Case, error) {
	return s.setLifecycle(ctx, number, func(c *engine.Case) {
		c.Lifecycle = c.Lifecycle.Restore()
	})
}

func (s *Service) setLifecycle(ctx context.Context, number engine.CaseNumber, mutate func(*engine.Case)) (*engine.Case, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *engine.Case
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		mutate(c)
		updated = c
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PurgeCase permanently deletes an archived case and its payments.
// A purged case is never resurrected.
func (s *Service) PurgeCase(ctx context.Context, number engine.CaseNumber) error {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}
		if !c.Lifecycle.IsArchived() {
			return engine.ErrPurgeLiveCase
		}
		return tx.DeleteCase(ctx, number)
	})
}

// =============================================================================
// COMMISSION
// =============================================================================

// lookupWith adapts a store to the engine's SchemeLookup.
func (s *Service) lookupWith(ctx context.Context, st SchemeStore) engine.SchemeLookup {
	return func(companyID engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
		return st.SchemesByCompany(ctx, companyID, category)
	}
}

// CommissionFor resolves the applicable scheme and computes the
// commission a payment amount would earn. Used for previews; the
// authoritative value is derived inside ApplyPayment.
func (s *Service) CommissionFor(ctx context.Context, companyID engine.CompanyID, category engine.CaseCategory, productType string, amount engine.Money) (engine.Money, error) {
	scheme, err := engine.ResolveScheme(s.lookupWith(ctx, s.store), companyID, category, productType)
	if err != nil {
		return engine.ZeroMoney(), err
	}
	return engine.CommissionFor(scheme, amount), nil
}

// SaveScheme validates and persists a commission scheme. Tier problems
// are caught here, at authoring time, never during computation.
func (s *Service) SaveScheme(ctx context.Context, scheme *engine.CommissionScheme) error {
	if scheme.Mode == engine.ModeTiered {
		if err := engine.ValidateTiers(scheme.Tiers); err != nil {
			return err
		}
	}
	if scheme.ID == "" {
		scheme.ID = engine.SchemeID(uuid.NewString())
	}
	return s.store.SaveScheme(ctx, scheme)
}

// =============================================================================
// COMPANY AGGREGATES
// =============================================================================

// CompanySummary is the per-client dashboard rollup.
type CompanySummary struct {
	CompanyID        engine.CompanyID
	TotalRecovered   engine.Money
	TotalOutstanding engine.Money
	TotalCommission  engine.Money
	ActiveCases      int
	RecoveredCases   int
}

// SummarizeCompany computes the dashboard aggregates over a company's
// live cases.
func (s *Service) SummarizeCompany(ctx context.Context, id engine.CompanyID) (*CompanySummary, error) {
	if _, err := s.store.GetCompany(ctx, id); err != nil {
		return nil, err
	}

	cases, err := s.store.ListCases(ctx, CaseFilter{CompanyID: id})
	if err != nil {
		return nil, err
	}

	sum := &CompanySummary{
		CompanyID:        id,
		TotalRecovered:   engine.ZeroMoney(),
		TotalOutstanding: engine.ZeroMoney(),
		TotalCommission:  engine.ZeroMoney(),
	}
	for _, c := range cases {
		sum.TotalRecovered = sum.TotalRecovered.Add(c.AmountRecovered)
		sum.TotalOutstanding = sum.TotalOutstanding.Add(c.AmountDue)
		switch c.Status {
		case engine.StatusPaid:
			sum.RecoveredCases++
		default:
			sum.ActiveCases++
		}

		payments, err := s.store.PaymentsByCase(ctx, c.Number)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			sum.TotalCommission = sum.TotalCommission.Add(p.Commission)
		}
	}
	return sum, nil
}
