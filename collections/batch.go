/*
batch.go - Bulk aging of active cases

PURPOSE:
  Time alone changes what is due: a scheduled debt matures another
  installment when the default's day-of-month comes around again. The
  aging pass re-runs the accrual calculator over every live open case so
  arrears move forward even with no new activity.

ISOLATION:
  Cases are processed independently. One case failing - lock contention,
  version conflict, storage error - never aborts the batch, and no lock
  is ever held across more than one case. Failures are collected and
  reported, not discarded.
*/
package collections

import (
	"context"

	"github.com/recobro/collections-engine/engine"
)

// BatchFailure records one case the aging pass could not process.
type BatchFailure struct {
	CaseNumber engine.CaseNumber
	Err        error
}

// BatchResult summarizes an aging pass.
type BatchResult struct {
	Processed int
	Unchanged int
	Failures  []BatchFailure
}

// Failed reports whether any case failed.
func (r *BatchResult) Failed() bool { return len(r.Failures) > 0 }

// AgeAllCases recomputes the due amount of every live, unsettled case as
// of today. Each case is its own read-modify-write unit.
func (s *Service) AgeAllCases(ctx context.Context, today engine.Date) (*BatchResult, error) {
	cases, err := s.store.ListCases(ctx, CaseFilter{})
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, c := range cases {
		if c.Status == engine.StatusPaid {
			result.Unchanged++
			continue
		}

		changed, err := s.ageCase(ctx, c.Number, today)
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{CaseNumber: c.Number, Err: err})
			continue
		}
		if changed {
			result.Processed++
		} else {
			result.Unchanged++
		}
	}
	return result, nil
}

// ageCase recomputes one case under its own lock. Returns whether the
// stored due amount actually moved.
func (s *Service) ageCase(ctx context.Context, number engine.CaseNumber, today engine.Date) (bool, error) {
	unlock, err := s.locks.acquire(number)
	if err != nil {
		return false, err
	}
	defer unlock()

	changed := false
	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, number)
		if err != nil {
			return err
		}

		payments, err := tx.PaymentsByCase(ctx, number)
		if err != nil {
			return err
		}
		summary := engine.Summarize(payments)

		before := c.AmountDue
		engine.RecomputeDue(c, summary, today)
		engine.SettleIfPaid(c)

		if c.AmountDue.Equal(before) {
			return nil
		}
		changed = true
		return tx.UpdateCase(ctx, c)
	})
	return changed, err
}
