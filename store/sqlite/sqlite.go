/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements collections.Store using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  cases:     Debt files, one row per case, optimistic version column
  payments:  Payment ledger, rows belong to exactly one case
  companies: Client companies with product and assignability lists
  schemes:   Commission schemes (flat percent or tier bands as JSON)

OPTIMISTIC CONCURRENCY:
  UpdateCase guards with "WHERE number = ? AND version = ?". A zero
  row count means another writer got there first and the caller gets
  engine.ErrConcurrentModification; the service layer retries from a
  fresh read.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/collections.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := collections.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - collections/store.go: Interface definitions
  - collections/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/engine"
)

// Store implements collections.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; a second pooled connection would
	// also see a different database entirely under ":memory:".
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Companies (clients that own cases and commission schemes)
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tax_id TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		product_types_json TEXT NOT NULL DEFAULT '[]',
		assignable_products_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Cases (one row per debt file)
	CREATE TABLE IF NOT EXISTS cases (
		number TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		agent TEXT NOT NULL DEFAULT '',
		debtor_name TEXT NOT NULL DEFAULT '',
		debtor_tax_id TEXT NOT NULL DEFAULT '',
		debtor_phone TEXT NOT NULL DEFAULT '',
		debtor_email TEXT NOT NULL DEFAULT '',
		debtor_address TEXT NOT NULL DEFAULT '',
		product_type TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL,
		installment_count INTEGER NOT NULL DEFAULT 0,
		amount_recovered TEXT NOT NULL DEFAULT '0',
		discount_total TEXT NOT NULL DEFAULT '0',
		amount_due TEXT NOT NULL DEFAULT '0',
		purchase_date TEXT,
		first_default_date TEXT,
		received_date TEXT NOT NULL,
		status TEXT NOT NULL,
		lifecycle_state TEXT NOT NULL DEFAULT 'active',
		archived_at TEXT,
		archive_reason TEXT NOT NULL DEFAULT '',
		assignment_date TEXT,
		comments TEXT NOT NULL DEFAULT '',
		document_attached BOOLEAN NOT NULL DEFAULT FALSE,
		touchpoints_json TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_cases_company
		ON cases(company_id);
	CREATE INDEX IF NOT EXISTS idx_cases_status
		ON cases(status);

	-- Composite index for the live-case listing (hot path: bulk aging)
	CREATE INDEX IF NOT EXISTS idx_cases_lifecycle_status
		ON cases(lifecycle_state, status);

	-- Payments (ledger rows; removed with their case)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		case_number TEXT NOT NULL REFERENCES cases(number) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		discount TEXT NOT NULL DEFAULT '0',
		method TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		commission TEXT NOT NULL DEFAULT '0',
		reference TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Full-ledger summation per case (hot path: every recompute)
	CREATE INDEX IF NOT EXISTS idx_payments_case
		ON payments(case_number, paid_at);

	-- Commission schemes (tier bands stored as JSON)
	CREATE TABLE IF NOT EXISTS schemes (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		category TEXT NOT NULL,
		product_type TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		flat_percent TEXT NOT NULL DEFAULT '0',
		tiers_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_company_category
		ON schemes(company_id, category);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the row mapping
// helpers serve plain and transactional calls alike.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CASE STORE (collections.CaseStore interface)
// =============================================================================

const caseColumns = `number, company_id, agent,
	debtor_name, debtor_tax_id, debtor_phone, debtor_email, debtor_address,
	product_type, principal, installment_count,
	amount_recovered, discount_total, amount_due,
	purchase_date, first_default_date, received_date,
	status, lifecycle_state, archived_at, archive_reason,
	assignment_date, comments, document_attached, touchpoints_json, version`

// GetCase returns the case or engine.ErrCaseNotFound.
func (s *Store) GetCase(ctx context.Context, number engine.CaseNumber) (*engine.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCase(ctx, s.db, number)
}

func getCase(ctx context.Context, db dbtx, number engine.CaseNumber) (*engine.Case, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE number = ?", number)
	c, err := scanCase(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return c, nil
}

// InsertCase persists a new case at version 1.
func (s *Store) InsertCase(ctx context.Context, c *engine.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCase(ctx, s.db, c)
}

func insertCase(ctx context.Context, db dbtx, c *engine.Case) error {
	touchpoints, err := json.Marshal(c.Touchpoints)
	if err != nil {
		return fmt.Errorf("failed to encode touchpoints: %w", err)
	}

	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	_, err = db.ExecContext(ctx, query,
		c.Number, c.CompanyID, c.Agent,
		c.DebtorName, c.DebtorTaxID, c.DebtorPhone, c.DebtorEmail, c.DebtorAddress,
		c.ProductType, c.Principal.Value.String(), c.InstallmentCount,
		c.AmountRecovered.Value.String(), c.DiscountTotal.Value.String(), c.AmountDue.Value.String(),
		nullDate(c.PurchaseDate), nullDate(c.FirstDefaultDate), c.ReceivedDate.String(),
		string(c.Status), string(c.Lifecycle.State), nullTime(c.Lifecycle.ArchivedAt), c.Lifecycle.Reason,
		nullDate(c.AssignmentDate), c.Comments, c.DocumentAttached, string(touchpoints),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrConcurrentModification
		}
		return fmt.Errorf("failed to insert case: %w", err)
	}
	c.Version = 1
	return nil
}

// UpdateCase persists the case if the stored version still matches, then
// increments it. A stale version yields engine.ErrConcurrentModification.
func (s *Store) UpdateCase(ctx context.Context, c *engine.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCase(ctx, s.db, c)
}

func updateCase(ctx context.Context, db dbtx, c *engine.Case) error {
	touchpoints, err := json.Marshal(c.Touchpoints)
	if err != nil {
		return fmt.Errorf("failed to encode touchpoints: %w", err)
	}

	query := `
		UPDATE cases SET
			company_id = ?, agent = ?,
			debtor_name = ?, debtor_tax_id = ?, debtor_phone = ?, debtor_email = ?, debtor_address = ?,
			product_type = ?, principal = ?, installment_count = ?,
			amount_recovered = ?, discount_total = ?, amount_due = ?,
			purchase_date = ?, first_default_date = ?, received_date = ?,
			status = ?, lifecycle_state = ?, archived_at = ?, archive_reason = ?,
			assignment_date = ?, comments = ?, document_attached = ?, touchpoints_json = ?,
			version = version + 1
		WHERE number = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		c.CompanyID, c.Agent,
		c.DebtorName, c.DebtorTaxID, c.DebtorPhone, c.DebtorEmail, c.DebtorAddress,
		c.ProductType, c.Principal.Value.String(), c.InstallmentCount,
		c.AmountRecovered.Value.String(), c.DiscountTotal.Value.String(), c.AmountDue.Value.String(),
		nullDate(c.PurchaseDate), nullDate(c.FirstDefaultDate), c.ReceivedDate.String(),
		string(c.Status), string(c.Lifecycle.State), nullTime(c.Lifecycle.ArchivedAt), c.Lifecycle.Reason,
		nullDate(c.AssignmentDate), c.Comments, c.DocumentAttached, string(touchpoints),
		c.Number, c.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer bumped the version.
		var exists int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM cases WHERE number = ?", c.Number).Scan(&exists); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		if exists == 0 {
			return engine.ErrCaseNotFound
		}
		return engine.ErrConcurrentModification
	}

	c.Version++
	return nil
}

// ListCases returns cases matching the filter, ordered by case number.
func (s *Store) ListCases(ctx context.Context, filter collections.CaseFilter) ([]*engine.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCases(ctx, s.db, filter)
}

func listCases(ctx context.Context, db dbtx, filter collections.CaseFilter) ([]*engine.Case, error) {
	query := "SELECT " + caseColumns + " FROM cases WHERE lifecycle_state = ?"
	args := []any{string(engine.LifecycleActive)}
	if filter.Archived {
		args[0] = string(engine.LifecycleArchived)
	}
	if filter.CompanyID != "" {
		query += " AND company_id = ?"
		args = append(args, filter.CompanyID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY number ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []*engine.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// DeleteCase permanently removes the case; its payments cascade.
func (s *Store) DeleteCase(ctx context.Context, number engine.CaseNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteCase(ctx, s.db, number)
}

func deleteCase(ctx context.Context, db dbtx, number engine.CaseNumber) error {
	res, err := db.ExecContext(ctx, "DELETE FROM cases WHERE number = ?", number)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	if affected == 0 {
		return engine.ErrCaseNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*engine.Case, error) {
	var (
		c                engine.Case
		principal        string
		recovered        string
		discounts        string
		due              string
		purchaseDate     sql.NullString
		firstDefaultDate sql.NullString
		receivedDate     string
		lifecycleState   string
		archivedAt       sql.NullString
		assignmentDate   sql.NullString
		touchpointsJSON  string
	)

	err := row.Scan(
		&c.Number, &c.CompanyID, &c.Agent,
		&c.DebtorName, &c.DebtorTaxID, &c.DebtorPhone, &c.DebtorEmail, &c.DebtorAddress,
		&c.ProductType, &principal, &c.InstallmentCount,
		&recovered, &discounts, &due,
		&purchaseDate, &firstDefaultDate, &receivedDate,
		&c.Status, &lifecycleState, &archivedAt, &c.Lifecycle.Reason,
		&assignmentDate, &c.Comments, &c.DocumentAttached, &touchpointsJSON, &c.Version,
	)
	if err != nil {
		return nil, err
	}

	c.Principal = engine.MustParseMoney(principal)
	c.AmountRecovered = engine.MustParseMoney(recovered)
	c.DiscountTotal = engine.MustParseMoney(discounts)
	c.AmountDue = engine.MustParseMoney(due)
	c.PurchaseDate = parseNullDate(purchaseDate)
	c.FirstDefaultDate = parseNullDate(firstDefaultDate)
	c.ReceivedDate, _ = engine.ParseDate(receivedDate)
	c.Lifecycle.State = engine.LifecycleState(lifecycleState)
	c.Lifecycle.ArchivedAt = parseNullTime(archivedAt)
	c.AssignmentDate = parseNullDate(assignmentDate)

	if touchpointsJSON != "" {
		json.Unmarshal([]byte(touchpointsJSON), &c.Touchpoints)
	}

	return &c, nil
}

// =============================================================================
// PAYMENT STORE (collections.PaymentStore interface)
// =============================================================================

const paymentColumns = `id, case_number, amount, discount, method, paid_at, commission, reference, created_at`

func (s *Store) InsertPayment(ctx context.Context, p engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, db dbtx, p engine.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.CaseNumber,
		p.Amount.Value.String(), p.Discount.Value.String(),
		p.Method, p.PaidAt.String(), p.Commission.Value.String(),
		p.Reference, p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// UpdatePayment rewrites an existing payment (correction flow).
func (s *Store) UpdatePayment(ctx context.Context, p engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayment(ctx, s.db, p)
}

func updatePayment(ctx context.Context, db dbtx, p engine.Payment) error {
	query := `
		UPDATE payments SET
			amount = ?, discount = ?, method = ?, paid_at = ?, commission = ?, reference = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		p.Amount.Value.String(), p.Discount.Value.String(),
		p.Method, p.PaidAt.String(), p.Commission.Value.String(), p.Reference,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if affected == 0 {
		return engine.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id engine.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, db dbtx, id engine.PaymentID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if affected == 0 {
		return engine.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id engine.PaymentID) (*engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, db dbtx, id engine.PaymentID) (*engine.Payment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return p, nil
}

// PaymentsByCase returns the full ledger for a case, ordered by payment date.
func (s *Store) PaymentsByCase(ctx context.Context, number engine.CaseNumber) ([]engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsByCase(ctx, s.db, number)
}

func paymentsByCase(ctx context.Context, db dbtx, number engine.CaseNumber) ([]engine.Payment, error) {
	query := "SELECT " + paymentColumns + ` FROM payments
		WHERE case_number = ?
		ORDER BY paid_at ASC, created_at ASC`

	rows, err := db.QueryContext(ctx, query, number)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []engine.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (*engine.Payment, error) {
	var (
		p          engine.Payment
		amount     string
		discount   string
		paidAt     string
		commission string
		createdAt  string
	)

	err := row.Scan(
		&p.ID, &p.CaseNumber, &amount, &discount,
		&p.Method, &paidAt, &commission, &p.Reference, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.Amount = engine.MustParseMoney(amount)
	p.Discount = engine.MustParseMoney(discount)
	p.Commission = engine.MustParseMoney(commission)
	p.PaidAt, _ = engine.ParseDate(paidAt)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &p, nil
}

// =============================================================================
// COMPANY STORE (collections.CompanyStore interface)
// =============================================================================

func (s *Store) SaveCompany(ctx context.Context, co *engine.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCompany(ctx, s.db, co)
}

func saveCompany(ctx context.Context, db dbtx, co *engine.Company) error {
	products, _ := json.Marshal(co.ProductTypes)
	assignable, _ := json.Marshal(co.AssignableProducts)

	query := `
		INSERT INTO companies (id, name, tax_id, active, product_types_json, assignable_products_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tax_id = excluded.tax_id,
			active = excluded.active,
			product_types_json = excluded.product_types_json,
			assignable_products_json = excluded.assignable_products_json,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, query,
		co.ID, co.Name, co.TaxID, co.Active,
		string(products), string(assignable), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

func (s *Store) GetCompany(ctx context.Context, id engine.CompanyID) (*engine.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCompany(ctx, s.db, id)
}

func getCompany(ctx context.Context, db dbtx, id engine.CompanyID) (*engine.Company, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, tax_id, active, product_types_json, assignable_products_json FROM companies WHERE id = ?",
		id)
	co, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	return co, nil
}

func (s *Store) ListCompanies(ctx context.Context) ([]*engine.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCompanies(ctx, s.db)
}

func listCompanies(ctx context.Context, db dbtx) ([]*engine.Company, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, tax_id, active, product_types_json, assignable_products_json FROM companies ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []*engine.Company
	for rows.Next() {
		co, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, co)
	}
	return companies, rows.Err()
}

func scanCompany(row rowScanner) (*engine.Company, error) {
	var (
		co             engine.Company
		taxID          sql.NullString
		productsJSON   string
		assignableJSON string
	)

	if err := row.Scan(&co.ID, &co.Name, &taxID, &co.Active, &productsJSON, &assignableJSON); err != nil {
		return nil, err
	}

	co.TaxID = taxID.String
	json.Unmarshal([]byte(productsJSON), &co.ProductTypes)
	json.Unmarshal([]byte(assignableJSON), &co.AssignableProducts)

	return &co, nil
}

// =============================================================================
// SCHEME STORE (collections.SchemeStore interface)
// =============================================================================

// tierRow is the JSON layout of one band in tiers_json. Money travels as
// decimal strings to keep exactness through the round trip.
type tierRow struct {
	Min     string  `json:"min"`
	Max     *string `json:"max,omitempty"`
	Percent string  `json:"percent"`
}

func (s *Store) SaveScheme(ctx context.Context, sc *engine.CommissionScheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveScheme(ctx, s.db, sc)
}

func saveScheme(ctx context.Context, db dbtx, sc *engine.CommissionScheme) error {
	rows := make([]tierRow, 0, len(sc.Tiers))
	for _, t := range sc.Tiers {
		r := tierRow{Min: t.Min.Value.String(), Percent: t.Percent.Value.String()}
		if t.Max != nil {
			max := t.Max.Value.String()
			r.Max = &max
		}
		rows = append(rows, r)
	}
	tiers, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode tiers: %w", err)
	}

	query := `
		INSERT INTO schemes (id, company_id, category, product_type, mode, flat_percent, tiers_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			category = excluded.category,
			product_type = excluded.product_type,
			mode = excluded.mode,
			flat_percent = excluded.flat_percent,
			tiers_json = excluded.tiers_json
	`

	_, err = db.ExecContext(ctx, query,
		sc.ID, sc.CompanyID, string(sc.Category), sc.ProductType,
		string(sc.Mode), sc.FlatPercent.Value.String(), string(tiers),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save scheme: %w", err)
	}
	return nil
}

func (s *Store) DeleteScheme(ctx context.Context, id engine.SchemeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteScheme(ctx, s.db, id)
}

func deleteScheme(ctx context.Context, db dbtx, id engine.SchemeID) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM schemes WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete scheme: %w", err)
	}
	return nil
}

// SchemesByCompany returns schemes scoped to one category.
func (s *Store) SchemesByCompany(ctx context.Context, id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schemesByCompany(ctx, s.db, id, category)
}

func schemesByCompany(ctx context.Context, db dbtx, id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
	query := `
		SELECT id, company_id, category, product_type, mode, flat_percent, tiers_json
		FROM schemes
		WHERE company_id = ? AND category = ?
		ORDER BY id ASC
	`

	rows, err := db.QueryContext(ctx, query, id, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query schemes: %w", err)
	}
	defer rows.Close()

	var schemes []*engine.CommissionScheme
	for rows.Next() {
		var (
			sc          engine.CommissionScheme
			flatPercent string
			tiersJSON   string
		)
		if err := rows.Scan(&sc.ID, &sc.CompanyID, &sc.Category, &sc.ProductType,
			&sc.Mode, &flatPercent, &tiersJSON); err != nil {
			return nil, fmt.Errorf("failed to scan scheme: %w", err)
		}

		sc.FlatPercent = engine.MustParseMoney(flatPercent)

		var tierRows []tierRow
		json.Unmarshal([]byte(tiersJSON), &tierRows)
		for _, r := range tierRows {
			t := engine.CommissionTier{
				Min:     engine.MustParseMoney(r.Min),
				Percent: engine.MustParseMoney(r.Percent),
			}
			if r.Max != nil {
				max := engine.MustParseMoney(*r.Max)
				t.Max = &max
			}
			sc.Tiers = append(sc.Tiers, t)
		}

		schemes = append(schemes, &sc)
	}
	return schemes, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (collections.Store WithTx)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store collections.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetCase(ctx context.Context, number engine.CaseNumber) (*engine.Case, error) {
	return getCase(ctx, ts.tx, number)
}

func (ts *txStore) InsertCase(ctx context.Context, c *engine.Case) error {
	return insertCase(ctx, ts.tx, c)
}

func (ts *txStore) UpdateCase(ctx context.Context, c *engine.Case) error {
	return updateCase(ctx, ts.tx, c)
}

func (ts *txStore) ListCases(ctx context.Context, filter collections.CaseFilter) ([]*engine.Case, error) {
	return listCases(ctx, ts.tx, filter)
}

func (ts *txStore) DeleteCase(ctx context.Context, number engine.CaseNumber) error {
	return deleteCase(ctx, ts.tx, number)
}

func (ts *txStore) InsertPayment(ctx context.Context, p engine.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txStore) UpdatePayment(ctx context.Context, p engine.Payment) error {
	return updatePayment(ctx, ts.tx, p)
}

func (ts *txStore) DeletePayment(ctx context.Context, id engine.PaymentID) error {
	return deletePayment(ctx, ts.tx, id)
}

func (ts *txStore) GetPayment(ctx context.Context, id engine.PaymentID) (*engine.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) PaymentsByCase(ctx context.Context, number engine.CaseNumber) ([]engine.Payment, error) {
	return paymentsByCase(ctx, ts.tx, number)
}

func (ts *txStore) SaveCompany(ctx context.Context, co *engine.Company) error {
	return saveCompany(ctx, ts.tx, co)
}

func (ts *txStore) GetCompany(ctx context.Context, id engine.CompanyID) (*engine.Company, error) {
	return getCompany(ctx, ts.tx, id)
}

func (ts *txStore) ListCompanies(ctx context.Context) ([]*engine.Company, error) {
	return listCompanies(ctx, ts.tx)
}

func (ts *txStore) SaveScheme(ctx context.Context, sc *engine.CommissionScheme) error {
	return saveScheme(ctx, ts.tx, sc)
}

func (ts *txStore) DeleteScheme(ctx context.Context, id engine.SchemeID) error {
	return deleteScheme(ctx, ts.tx, id)
}

func (ts *txStore) SchemesByCompany(ctx context.Context, id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
	return schemesByCompany(ctx, ts.tx, id, category)
}

func (ts *txStore) WithTx(ctx context.Context, fn func(store collections.Store) error) error {
	// Already inside a transaction; nested calls share it.
	return fn(ts)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "cases", "schemes", "companies"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullDate(d *engine.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) *engine.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := engine.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
