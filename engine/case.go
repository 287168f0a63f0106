/*
case.go - The debt file and its follow-up history

PURPOSE:
  Defines the Case record: debtor data, financials, business status,
  lifecycle (soft-delete), and the fixed follow-up touchpoint sequence.

STATUS vs LIFECYCLE:
  Status is the business state of the debt (active arrears, paid,
  assigned for acceleration, payment agreement, unlocatable debtor).
  Lifecycle is orthogonal: a case in ANY status can be archived (soft
  deleted) and later restored, until a permanent purge removes it for
  good. Modeling these as one enum plus one tagged value avoids the
  combinatorial boolean-flag drift this replaces.

TOUCHPOINTS:
  The outreach sequence is a fixed array indexed by a small enum: five
  message attempts, five call attempts, and four credit-bureau steps.
  Mutation is touchpoints[index].Done = true - never field access by a
  string-built name.
*/
package engine

import "time"

// =============================================================================
// CASE STATUS - Business state of the debt
// =============================================================================

type CaseStatus string

const (
	StatusActive      CaseStatus = "ACTIVE"      // in arrears, being collected
	StatusPaid        CaseStatus = "PAID"        // due amount cleared
	StatusAssigned    CaseStatus = "ASSIGNED"    // accelerated, full balance due
	StatusAgreement   CaseStatus = "AGREEMENT"   // payment plan agreed with debtor
	StatusUnlocatable CaseStatus = "UNLOCATABLE" // debtor cannot be reached
)

func (s CaseStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaid, StatusAssigned, StatusAgreement, StatusUnlocatable:
		return true
	}
	return false
}

// CaseCategory scopes commission schemes: a payment on an assigned case
// is commissioned under different rules than ordinary arrears collection.
type CaseCategory string

const (
	CategoryArrears  CaseCategory = "ARREARS"
	CategoryAssigned CaseCategory = "ASSIGNED"
)

// Category returns the commission category the case currently falls under.
func (c *Case) Category() CaseCategory {
	if c.Status == StatusAssigned {
		return CategoryAssigned
	}
	return CategoryArrears
}

// =============================================================================
// LIFECYCLE - Soft delete, orthogonal to status
// =============================================================================

type LifecycleState string

const (
	LifecycleActive   LifecycleState = "active"
	LifecycleArchived LifecycleState = "archived"
)

// Lifecycle is the archive/restore tagged value. Archived cases keep
// their status and can be restored until a permanent purge.
type Lifecycle struct {
	State      LifecycleState
	ArchivedAt *time.Time
	Reason     string
}

func ActiveLifecycle() Lifecycle { return Lifecycle{State: LifecycleActive} }

func (l Lifecycle) IsArchived() bool { return l.State == LifecycleArchived }

func (l Lifecycle) Archive(at time.Time, reason string) Lifecycle {
	return Lifecycle{State: LifecycleArchived, ArchivedAt: &at, Reason: reason}
}

func (l Lifecycle) Restore() Lifecycle { return ActiveLifecycle() }

// =============================================================================
// TOUCHPOINTS - Fixed outreach sequence
// =============================================================================

// TouchpointKind indexes the fixed follow-up sequence.
type TouchpointKind int

const (
	TouchMessage1 TouchpointKind = iota
	TouchMessage2
	TouchMessage3
	TouchMessage4
	TouchMessage5
	TouchCall1
	TouchCall2
	TouchCall3
	TouchCall4
	TouchCall5
	TouchBureauSent       // report sent to the credit bureau
	TouchBureauReceived   // bureau acknowledgement received
	TouchBureauRegistered // debtor registered in the bureau file
	TouchBureauFollowUp   // follow-up call after registration
	TouchpointCount
)

var touchpointNames = [TouchpointCount]string{
	"message_1", "message_2", "message_3", "message_4", "message_5",
	"call_1", "call_2", "call_3", "call_4", "call_5",
	"bureau_sent", "bureau_received", "bureau_registered", "bureau_follow_up",
}

func (k TouchpointKind) Valid() bool { return k >= 0 && k < TouchpointCount }

func (k TouchpointKind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return touchpointNames[k]
}

// Outcome records what happened on a completed touchpoint.
type Outcome string

const (
	OutcomeRefuses      Outcome = "REFUSES"        // does not want to pay
	OutcomeHangsUp      Outcome = "HANGS_UP"       // answers and hangs up
	OutcomeFamilyHelp   Outcome = "FAMILY_HELP"    // seeking family help
	OutcomePhoneMissing Outcome = "PHONE_MISSING"  // number does not exist
	OutcomePhoneDown    Outcome = "PHONE_DOWN"     // number out of service
	OutcomeWrongNumber  Outcome = "WRONG_NUMBER"
	OutcomeNoAnswer     Outcome = "NO_ANSWER"
	OutcomeWillTry      Outcome = "WILL_TRY"  // will try to get the money
	OutcomeWillPay      Outcome = "WILL_PAY"  // committed to pay (PromisedAt set)
	OutcomeRefunded     Outcome = "REFUNDED"
	OutcomeWillRefund   Outcome = "WILL_REFUND"
	OutcomeCannotPay    Outcome = "CANNOT_PAY"
	OutcomeWaiting      Outcome = "WAITING" // awaiting a response
)

// Touchpoint is one slot in the outreach sequence.
type Touchpoint struct {
	Done       bool
	At         *time.Time
	Outcome    *Outcome
	PromisedAt *Date // set when Outcome is WILL_PAY
}

// Touchpoints is the full fixed sequence for a case.
type Touchpoints [TouchpointCount]Touchpoint

// Reset clears every slot: done flags, timestamps, and recorded outcomes.
// Used when a case is assigned and collection starts over.
func (t *Touchpoints) Reset() {
	for i := range t {
		t[i] = Touchpoint{}
	}
}

// Set marks a slot done (or undone) with its outcome.
func (t *Touchpoints) Set(kind TouchpointKind, done bool, at time.Time, outcome *Outcome, promisedAt *Date) {
	if !kind.Valid() {
		return
	}
	if !done {
		t[kind] = Touchpoint{}
		return
	}
	t[kind] = Touchpoint{Done: true, At: &at, Outcome: outcome, PromisedAt: promisedAt}
}

// =============================================================================
// CASE - The debt file
// =============================================================================

type Case struct {
	Number    CaseNumber
	CompanyID CompanyID
	Agent     string // collector handling the file; empty when unassigned

	// Debtor
	DebtorName    string
	DebtorTaxID   string
	DebtorPhone   string
	DebtorEmail   string
	DebtorAddress string

	// Financials. AmountRecovered and AmountDue are derived: recovered is
	// always the sum over the payment ledger, due is the accrual
	// calculator's output. Neither is ever edited directly.
	ProductType      string
	Principal        Money
	InstallmentCount int
	AmountRecovered  Money
	DiscountTotal    Money
	AmountDue        Money

	PurchaseDate     *Date
	FirstDefaultDate *Date
	ReceivedDate     Date

	Status         CaseStatus
	Lifecycle      Lifecycle
	AssignmentDate *Date // set on transition to ASSIGNED, kept for history
	Comments       string

	// DocumentAttached records that the supporting document required for
	// assignment is on file. Storage of the document itself is the
	// surrounding application's concern.
	DocumentAttached bool

	Touchpoints Touchpoints

	// Version for optimistic concurrency. Incremented by the store on
	// every successful write.
	Version int64
}

// NewCase creates a case in its initial state: ACTIVE, nothing recovered,
// full principal due.
func NewCase(number CaseNumber, companyID CompanyID, principal Money, received Date) *Case {
	return &Case{
		Number:       number,
		CompanyID:    companyID,
		Principal:    principal,
		AmountDue:    principal.Round2(),
		ReceivedDate: received,
		Status:       StatusActive,
		Lifecycle:    ActiveLifecycle(),
	}
}

// ArrearsAgeDays returns how long the case has been in default as of today.
// Cases without a default date have no measurable arrears age.
func (c *Case) ArrearsAgeDays(today Date) int {
	if c.FirstDefaultDate == nil {
		return 0
	}
	return DaysBetween(*c.FirstDefaultDate, today)
}

// =============================================================================
// COMPANY - The client that owns cases and commission schemes
// =============================================================================

type Company struct {
	ID     CompanyID
	Name   string
	TaxID  string
	Active bool

	// ProductTypes the company collects through the agency.
	ProductTypes []string

	// AssignableProducts is the subset of ProductTypes eligible for the
	// assignment/cession flow. Empty means assignment is disabled for
	// this company.
	AssignableProducts []string
}

// AssignmentEnabled reports whether the company can assign any product.
func (co *Company) AssignmentEnabled() bool {
	return len(co.AssignableProducts) > 0
}

// ProductAssignable reports whether a specific product is in the
// assignable allow-list.
func (co *Company) ProductAssignable(productType string) bool {
	for _, p := range co.AssignableProducts {
		if p == productType {
			return true
		}
	}
	return false
}
