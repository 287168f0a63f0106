/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; structured variants carry
  the context a caller needs to display or retry.

ERROR CATEGORIES:
  1. Payment errors - overpayment, disallowed method
  2. Transition errors - assignment eligibility (full checklist)
  3. Commission errors - missing scheme, bad tier configuration
  4. Store errors - not found, concurrent modification

Every error here is recoverable by the caller: the engine rejects and
leaves persisted state untouched, it never crashes the process.
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOverpayment is returned when a payment exceeds the amount due
	// plus the rounding tolerance.
	ErrOverpayment = errors.New("payment exceeds amount due")

	// ErrInvalidPaymentMethod is returned when the method is not allowed
	// for the case's current status.
	ErrInvalidPaymentMethod = errors.New("payment method not allowed")

	// ErrAssignmentIneligible is returned when a case fails the
	// assignment gate. The structured variant lists every unmet
	// requirement, not just the first.
	ErrAssignmentIneligible = errors.New("case not eligible for assignment")

	// ErrSchemeNotFound is returned when no commission scheme applies.
	// Zero commission is NOT a silent default; callers must handle this.
	ErrSchemeNotFound = errors.New("no applicable commission scheme")

	// ErrInvalidTierConfiguration is returned at scheme-authoring time
	// for overlapping or duplicate commission bands.
	ErrInvalidTierConfiguration = errors.New("invalid commission tier configuration")

	// ErrConcurrentModification is returned when an optimistic version
	// check or lock acquisition fails. Fail fast; the caller retries.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrCaseNotFound is returned when a referenced case doesn't exist.
	ErrCaseNotFound = errors.New("case not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrCompanyNotFound is returned when a referenced company doesn't exist.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrCaseArchived is returned for mutations against an archived case.
	ErrCaseArchived = errors.New("case is archived")

	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidDates is returned when a purchase date falls after the
	// first default date.
	ErrInvalidDates = errors.New("purchase date after first default date")

	// ErrInvalidTouchpoint is returned for a touchpoint index outside
	// the fixed sequence.
	ErrInvalidTouchpoint = errors.New("invalid touchpoint")

	// ErrPurgeLiveCase is returned when permanently deleting a case
	// that has not been archived first.
	ErrPurgeLiveCase = errors.New("case must be archived before permanent delete")

	// errTransition backs TransitionError for errors.Is matching.
	errTransition = errors.New("illegal status transition")
)

// TransitionError reports a status change the state machine forbids.
type TransitionError struct {
	From CaseStatus
	To   CaseStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return errTransition }

// ErrInvalidTransition builds a TransitionError.
func ErrInvalidTransition(from, to CaseStatus) error {
	return &TransitionError{From: from, To: to}
}

// IsTransitionError reports whether err is an illegal-transition error.
func IsTransitionError(err error) bool { return errors.Is(err, errTransition) }

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverpaymentError reports how far a payment overshot the due amount.
type OverpaymentError struct {
	CaseNumber CaseNumber
	AmountDue  Money
	Attempted  Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment on case %s: due %s, attempted %s",
		e.CaseNumber, e.AmountDue, e.Attempted)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// InvalidPaymentMethodError reports a disallowed method and what would
// have been accepted, so the caller can present the alternatives.
type InvalidPaymentMethodError struct {
	CaseNumber CaseNumber
	Method     string
	Status     CaseStatus
	Allowed    []string
}

func (e *InvalidPaymentMethodError) Error() string {
	return fmt.Sprintf("method %q not allowed on case %s (status %s); allowed: %s",
		e.Method, e.CaseNumber, e.Status, strings.Join(e.Allowed, ", "))
}

func (e *InvalidPaymentMethodError) Unwrap() error { return ErrInvalidPaymentMethod }

// AssignmentIneligibleError carries the FULL list of unmet requirements
// so callers can display the whole checklist.
type AssignmentIneligibleError struct {
	CaseNumber CaseNumber
	Unmet      []AssignmentRequirement
}

func (e *AssignmentIneligibleError) Error() string {
	reasons := make([]string, len(e.Unmet))
	for i, r := range e.Unmet {
		reasons[i] = string(r)
	}
	return fmt.Sprintf("case %s not eligible for assignment: %s",
		e.CaseNumber, strings.Join(reasons, "; "))
}

func (e *AssignmentIneligibleError) Unwrap() error { return ErrAssignmentIneligible }

// SchemeNotFoundError identifies the lookup that had no matching scheme.
type SchemeNotFoundError struct {
	CompanyID   CompanyID
	Category    CaseCategory
	ProductType string
}

func (e *SchemeNotFoundError) Error() string {
	return fmt.Sprintf("no commission scheme for company %s, category %s, product %q",
		e.CompanyID, e.Category, e.ProductType)
}

func (e *SchemeNotFoundError) Unwrap() error { return ErrSchemeNotFound }

// TierConfigurationError pinpoints the offending band.
type TierConfigurationError struct {
	Index  int
	Detail string
}

func (e *TierConfigurationError) Error() string {
	return fmt.Sprintf("tier %d: %s", e.Index, e.Detail)
}

func (e *TierConfigurationError) Unwrap() error { return ErrInvalidTierConfiguration }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrAssignmentIneligible) ||
		errors.Is(err, ErrInvalidTierConfiguration) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDates) ||
		errors.Is(err, ErrCaseArchived) ||
		errors.Is(err, ErrInvalidTouchpoint) ||
		errors.Is(err, ErrPurgeLiveCase) ||
		errors.Is(err, errTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCaseNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrCompanyNotFound) ||
		errors.Is(err, ErrSchemeNotFound)
}
