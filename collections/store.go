/*
Package collections orchestrates the debt engine against a store.

PURPOSE:
  The engine package is pure computation; this package is where
  operations become transactions. Every mutation - payment apply, edit,
  delete, assignment, case edit, archive - is a single read-modify-write
  unit: acquire the per-case lock, load the case and its full payment
  ledger inside a store transaction, compute with the engine, persist
  with an optimistic version check, release.

KEY INTERFACES (this file):
  CaseStore:    Case records with version-checked updates
  PaymentStore: Payment records per case
  CompanyStore: Client companies
  SchemeStore:  Commission schemes per company
  Store:        All of the above plus WithTx

CONCURRENCY CONTRACT:
  UpdateCase compares the in-memory Version against the stored row and
  fails with engine.ErrConcurrentModification on mismatch. Combined with
  full-ledger recomputation of totals, a retried operation is idempotent.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - collections/store: in-memory store for tests and dev
*/
package collections

import (
	"context"

	"github.com/recobro/collections-engine/engine"
)

// =============================================================================
// CASE STORE
// =============================================================================

// CaseFilter narrows ListCases. Zero values mean "any".
type CaseFilter struct {
	CompanyID engine.CompanyID
	Status    engine.CaseStatus

	// Archived selects the trash view when true; default is live cases.
	Archived bool
}

type CaseStore interface {
	// GetCase returns the case or engine.ErrCaseNotFound.
	GetCase(ctx context.Context, number engine.CaseNumber) (*engine.Case, error)

	// InsertCase persists a new case at version 1.
	InsertCase(ctx context.Context, c *engine.Case) error

	// UpdateCase persists the case if the stored version still matches
	// c.Version, then increments it. Returns
	// engine.ErrConcurrentModification on a stale version.
	UpdateCase(ctx context.Context, c *engine.Case) error

	ListCases(ctx context.Context, filter CaseFilter) ([]*engine.Case, error)

	// DeleteCase permanently removes the case and its payments.
	// Irreversible; only valid for archived cases.
	DeleteCase(ctx context.Context, number engine.CaseNumber) error
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

type PaymentStore interface {
	InsertPayment(ctx context.Context, p engine.Payment) error

	// UpdatePayment rewrites an existing payment (correction flow).
	UpdatePayment(ctx context.Context, p engine.Payment) error

	// DeletePayment removes a payment or returns engine.ErrPaymentNotFound.
	DeletePayment(ctx context.Context, id engine.PaymentID) error

	GetPayment(ctx context.Context, id engine.PaymentID) (*engine.Payment, error)

	// PaymentsByCase returns the full ledger for a case, ordered by
	// payment date.
	PaymentsByCase(ctx context.Context, number engine.CaseNumber) ([]engine.Payment, error)
}

// =============================================================================
// COMPANY AND SCHEME STORES
// =============================================================================

type CompanyStore interface {
	SaveCompany(ctx context.Context, co *engine.Company) error
	GetCompany(ctx context.Context, id engine.CompanyID) (*engine.Company, error)
	ListCompanies(ctx context.Context) ([]*engine.Company, error)
}

type SchemeStore interface {
	// SaveScheme persists a scheme. Tier validation is the caller's job
	// (factory.ParseScheme / Service.SaveScheme).
	SaveScheme(ctx context.Context, s *engine.CommissionScheme) error

	DeleteScheme(ctx context.Context, id engine.SchemeID) error

	// SchemesByCompany returns schemes scoped to one category.
	SchemesByCompany(ctx context.Context, id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store is everything the service needs from persistence.
type Store interface {
	CaseStore
	PaymentStore
	CompanyStore
	SchemeStore

	// WithTx executes fn atomically: if fn returns an error nothing is
	// committed. Mutations inside fn use the Store passed to it.
	WithTx(ctx context.Context, fn func(Store) error) error
}
