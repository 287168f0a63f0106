/*
accrual.go - Due-amount calculation

PURPOSE:
  Answers the central question of the system: how much of this debt is
  collectible today? The calculator is a pure function of the case's
  financials, its payment history totals, and an explicit "today".

TWO MODES:
  Simple debt (no calendar):
    No first-default date or no installments. The whole principal is due:
      due = max(0, principal - recovered - discounts)

  Scheduled debt:
    Principal split into monthly installments starting at the first
    default date. Only matured installments are due:
      installment = principal / count          (exact, unrounded)
      matured     = months elapsed, min 1, capped at count
      due         = max(0, installment x matured - recovered - discounts)

MONTH MATH:
  The default's day-of-month re-triggers on each anniversary: with a
  default on the 15th, the next installment matures on the 15th of every
  following month. See MonthsElapsed in types.go.

ROUNDING:
  The per-installment value is NOT rounded. Rounding happens once, on the
  final due amount, so repeated recomputation never drifts.

RECOMPUTATION TRIGGERS (enforced by the collections service):
  (a) a payment or discount is recorded, edited, or deleted
  (b) principal / installment count / first default date are edited
  (c) time advances into a new month (the daily aging job)
*/
package engine

import "github.com/shopspring/decimal"

// LedgerSummary carries the payment-history totals the calculator needs.
// Both values are full-ledger sums, never incremental.
type LedgerSummary struct {
	Recovered Money
	Discounts Money
}

// DueInput is everything the calculator looks at.
type DueInput struct {
	Principal        Money
	InstallmentCount int
	FirstDefaultDate *Date
	Summary          LedgerSummary
	Today            Date
}

// DueAmount computes the amount currently collectible. Pure: no I/O, no
// clock access, idempotent for unchanged inputs.
func DueAmount(in DueInput) Money {
	// Degenerate financials fall back to simple-debt math.
	if in.FirstDefaultDate == nil || in.InstallmentCount <= 0 || !in.Principal.IsPositive() {
		return simpleDue(in)
	}

	// Nothing has matured before the first default.
	if in.FirstDefaultDate.After(in.Today) {
		return ZeroMoney()
	}

	installment := in.Principal.Div(decimal.NewFromInt(int64(in.InstallmentCount)))

	matured := MonthsElapsed(*in.FirstDefaultDate, in.Today)
	if matured > in.InstallmentCount {
		matured = in.InstallmentCount
	}

	theoretical := installment.Mul(decimal.NewFromInt(int64(matured)))
	due := theoretical.Sub(in.Summary.Recovered).Sub(in.Summary.Discounts)
	return due.FloorZero().Round2()
}

func simpleDue(in DueInput) Money {
	due := in.Principal.Sub(in.Summary.Recovered).Sub(in.Summary.Discounts)
	return due.FloorZero().Round2()
}

// AcceleratedDue computes the due amount when the installment calendar no
// longer applies: the full remaining balance is immediately payable.
// Used on assignment.
func AcceleratedDue(principal Money, summary LedgerSummary) Money {
	due := principal.Sub(summary.Recovered).Sub(summary.Discounts)
	return due.FloorZero().Round2()
}

// RecomputeDue refreshes the case's derived due amount in place and
// returns it. Assigned cases stay accelerated regardless of their
// original calendar.
func RecomputeDue(c *Case, summary LedgerSummary, today Date) Money {
	if c.Status == StatusAssigned {
		c.AmountDue = AcceleratedDue(c.Principal, summary)
		return c.AmountDue
	}
	c.AmountDue = DueAmount(DueInput{
		Principal:        c.Principal,
		InstallmentCount: c.InstallmentCount,
		FirstDefaultDate: c.FirstDefaultDate,
		Summary:          summary,
		Today:            today,
	})
	return c.AmountDue
}
