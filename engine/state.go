/*
state.go - Case state machine and assignment eligibility

PURPOSE:
  Owns the legal status transitions of a case and the assignment gate.

TRANSITIONS:
  ACTIVE -> PAID        only as a side effect of payment application
  ACTIVE -> ASSIGNED    through the eligibility gate below
  ACTIVE -> AGREEMENT   direct (payment plan agreed)
  ACTIVE -> UNLOCATABLE direct (debtor unreachable)
  PAID   -> ACTIVE      only by deleting/editing a payment (reopen)
  ASSIGNED -> ACTIVE    only when a case edit removes eligibility

  Archive/restore is orthogonal and lives on Lifecycle, not here.

ASSIGNMENT GATE:
  Every requirement is evaluated and every failure reported - the caller
  must be able to show the complete checklist, not just the first miss.

ASSIGNMENT SIDE EFFECTS:
  1. Due amount recomputed with the calendar dropped (acceleration)
  2. Every follow-up touchpoint reset
  3. Assignment date stamped
*/
package engine

// =============================================================================
// ASSIGNMENT ELIGIBILITY
// =============================================================================

// assignMinArrearsDays is the minimum arrears age before a case can be
// assigned. Fixed by contract with the client companies.
const assignMinArrearsDays = 67

// AssignmentRequirement names one condition of the assignment gate.
type AssignmentRequirement string

const (
	ReqCompanyEnabled    AssignmentRequirement = "company has no assignable products configured"
	ReqProductAssignable AssignmentRequirement = "case product type is not assignable"
	ReqStatusActive      AssignmentRequirement = "case is not in active arrears"
	ReqArrearsAge        AssignmentRequirement = "arrears age below minimum"
	ReqDocumentAttached  AssignmentRequirement = "required supporting document missing"
)

// AssignmentCheck is the input state the gate cannot read from the case
// itself.
type AssignmentCheck struct {
	Company          *Company
	DocumentAttached bool
	Today            Date
}

// CheckAssignment evaluates every assignment requirement and returns the
// full list of unmet ones. An empty slice means the case is eligible.
func CheckAssignment(c *Case, check AssignmentCheck) []AssignmentRequirement {
	var unmet []AssignmentRequirement

	if check.Company == nil || !check.Company.AssignmentEnabled() {
		unmet = append(unmet, ReqCompanyEnabled)
	}
	if check.Company == nil || !check.Company.ProductAssignable(c.ProductType) {
		unmet = append(unmet, ReqProductAssignable)
	}
	if c.Status != StatusActive {
		unmet = append(unmet, ReqStatusActive)
	}
	if c.FirstDefaultDate == nil || c.ArrearsAgeDays(check.Today) <= assignMinArrearsDays {
		unmet = append(unmet, ReqArrearsAge)
	}
	if !check.DocumentAttached {
		unmet = append(unmet, ReqDocumentAttached)
	}

	return unmet
}

// Assign transitions an eligible case to ASSIGNED, applying all side
// effects. Returns AssignmentIneligibleError with the full checklist
// when any requirement fails; the case is left untouched.
func Assign(c *Case, summary LedgerSummary, check AssignmentCheck) error {
	if unmet := CheckAssignment(c, check); len(unmet) > 0 {
		return &AssignmentIneligibleError{CaseNumber: c.Number, Unmet: unmet}
	}

	c.Status = StatusAssigned
	c.AmountDue = AcceleratedDue(c.Principal, summary)
	c.Touchpoints.Reset()
	stamped := check.Today
	c.AssignmentDate = &stamped
	return nil
}

// =============================================================================
// PAYMENT-DRIVEN TRANSITIONS
// =============================================================================

// SettleIfPaid flips an open case to PAID when its due amount has
// dropped to the settlement threshold. A paid case stays visible
// (lifecycle untouched) so it appears in the recovered view rather than
// the trash.
func SettleIfPaid(c *Case) bool {
	if c.Status != StatusActive && c.Status != StatusAssigned && c.Status != StatusAgreement {
		return false
	}
	if !SettlesCase(c.AmountDue) {
		return false
	}
	c.Status = StatusPaid
	return true
}

// ReopenIfUnpaid reverses a PAID status when a payment correction leaves
// debt outstanding again. Returns true if the case reopened.
func ReopenIfUnpaid(c *Case) bool {
	if c.Status != StatusPaid || SettlesCase(c.AmountDue) {
		return false
	}
	c.Status = StatusActive
	return true
}

// =============================================================================
// EDIT-DRIVEN TRANSITIONS
// =============================================================================

// ReviewAssignment re-checks eligibility after a case edit. If the case
// is ASSIGNED and the edit removed eligibility, it falls back to ACTIVE
// (the calendar applies again) and the function returns true so the
// caller can surface a warning. The status requirement is skipped: the
// case being ASSIGNED is exactly what is under review.
func ReviewAssignment(c *Case, summary LedgerSummary, check AssignmentCheck) bool {
	if c.Status != StatusAssigned {
		return false
	}

	unmet := CheckAssignment(c, check)
	remaining := unmet[:0]
	for _, r := range unmet {
		if r != ReqStatusActive {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		return false
	}

	c.Status = StatusActive
	RecomputeDue(c, summary, check.Today)
	return true
}

// SetStatus performs the direct transitions a user may request:
// AGREEMENT and UNLOCATABLE from an open case, and back to ACTIVE.
// PAID and ASSIGNED are never set directly.
func SetStatus(c *Case, target CaseStatus) bool {
	switch target {
	case StatusAgreement, StatusUnlocatable:
		return transitionFromOpen(c, target)
	case StatusActive:
		if c.Status == StatusAgreement || c.Status == StatusUnlocatable {
			c.Status = StatusActive
			return true
		}
	}
	return false
}

func transitionFromOpen(c *Case, target CaseStatus) bool {
	if c.Status != StatusActive && c.Status != StatusAgreement && c.Status != StatusUnlocatable {
		return false
	}
	if c.Status == target {
		return false
	}
	c.Status = target
	return true
}
