/*
ledger.go - Payment records and ledger totals

PURPOSE:
  Defines the Payment record and the rules for accepting one: the
  overpayment guard and the method allow-list. Also computes the ledger
  totals (recovered, discounts) that feed the accrual calculator.

TOTALS ARE ALWAYS FULL SUMS:
  amount_recovered is recomputed as the sum over ALL remaining payments
  after every apply/edit/delete - never incremental add or subtract.
  A retried write is therefore idempotent and totals cannot drift.

OVERPAYMENT:
  A payment may not exceed the current due amount plus a 0.01 tolerance
  for rounding. Anything above that is rejected, never clamped.

METHODS:
  "transfer" is always accepted. While the case is ACTIVE its own product
  method (stripe, sequra, ...) is also accepted. Once ASSIGNED only a
  fixed short list applies - see AllowedMethods.
*/
package engine

import "time"

// =============================================================================
// PAYMENT - One ledger entry
// =============================================================================

// Payment belongs to exactly one case. Created once; never mutated except
// through the explicit edit operation, which recomputes the whole case.
type Payment struct {
	ID         PaymentID
	CaseNumber CaseNumber
	Amount     Money // > 0
	Discount   Money // >= 0, debt forgiven alongside the payment
	Method     string
	PaidAt     Date
	Commission Money // derived at creation, immutable thereafter
	Reference  string // voucher / receipt reference, free text
	CreatedAt  time.Time
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

const (
	// MethodTransfer is accepted for every case in every status.
	MethodTransfer = "transfer"

	// MethodCard is the designated alternate accepted on assigned cases.
	MethodCard = "card"
)

// overpaymentEpsilon tolerates float rounding in amounts entered upstream.
var overpaymentEpsilon = MustParseMoney("0.01")

// paidThreshold is the absolute residue below which a debt counts as
// cleared. Small remainders from rounding should not keep a case open.
var paidThreshold = MustParseMoney("1.00")

// AllowedMethods returns the methods accepted for the case's current
// status. The assigned-case list is intentionally fixed rather than
// company-configurable; see DESIGN.md.
func AllowedMethods(c *Case) []string {
	if c.Status == StatusAssigned {
		return []string{MethodTransfer, MethodCard}
	}
	methods := []string{MethodTransfer}
	if c.Status == StatusActive && c.ProductType != "" {
		methods = append(methods, c.ProductType)
	}
	return methods
}

// MethodAllowed reports whether the method is acceptable right now.
func MethodAllowed(c *Case, method string) bool {
	for _, m := range AllowedMethods(c) {
		if m == method {
			return true
		}
	}
	return false
}

// =============================================================================
// VALIDATION
// =============================================================================

// PaymentRequest is a payment before acceptance.
type PaymentRequest struct {
	Amount    Money
	Discount  Money
	Method    string
	PaidAt    Date
	Reference string
}

// ValidatePayment checks a request against the case's current state.
// On success it returns the request with the discount normalized (absent
// or negative discounts become zero - the one silent correction the
// design allows).
func ValidatePayment(c *Case, req PaymentRequest) (PaymentRequest, error) {
	if !req.Amount.IsPositive() {
		return req, ErrInvalidAmount
	}

	if req.Amount.GreaterThan(c.AmountDue.Add(overpaymentEpsilon)) {
		return req, &OverpaymentError{
			CaseNumber: c.Number,
			AmountDue:  c.AmountDue,
			Attempted:  req.Amount,
		}
	}

	if !MethodAllowed(c, req.Method) {
		return req, &InvalidPaymentMethodError{
			CaseNumber: c.Number,
			Method:     req.Method,
			Status:     c.Status,
			Allowed:    AllowedMethods(c),
		}
	}

	if req.Discount.IsNegative() {
		req.Discount = ZeroMoney()
	}
	return req, nil
}

// ValidateAmendedAmount checks a corrected payment amount against the
// due amount the case would carry with that payment removed from the
// ledger. The same overpayment tolerance as for new payments applies;
// a correction cannot push the ledger past the debt any more than the
// original payment could.
func ValidateAmendedAmount(c *Case, remainder []Payment, newAmount Money, today Date) error {
	if !newAmount.IsPositive() {
		return ErrInvalidAmount
	}

	without := *c
	headroom := RecomputeDue(&without, Summarize(remainder), today)
	if newAmount.GreaterThan(headroom.Add(overpaymentEpsilon)) {
		return &OverpaymentError{
			CaseNumber: c.Number,
			AmountDue:  headroom,
			Attempted:  newAmount,
		}
	}
	return nil
}

// =============================================================================
// LEDGER TOTALS
// =============================================================================

// Summarize computes the full-ledger totals for a case's payments.
func Summarize(payments []Payment) LedgerSummary {
	s := LedgerSummary{Recovered: ZeroMoney(), Discounts: ZeroMoney()}
	for _, p := range payments {
		s.Recovered = s.Recovered.Add(p.Amount)
		s.Discounts = s.Discounts.Add(p.Discount)
	}
	return s
}

// SettlesCase reports whether a due amount is low enough to mark the
// case PAID. The threshold is absolute, not a percentage.
func SettlesCase(due Money) bool {
	return !due.GreaterThan(paidThreshold)
}
