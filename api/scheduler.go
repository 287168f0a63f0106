/*
scheduler.go - Scheduled bulk aging

PURPOSE:
  Time alone moves debts forward: every day some case crosses its
  default's day-of-month anniversary and another installment matures.
  The scheduler runs the bulk aging pass on a cron expression so due amounts
  stay current without manual triggers.

DESIGN:
  - robfig/cron with a standard 5-field expression from config
  - One run at a time; a run overlapping the next tick is skipped
  - Failures inside a run are per-case and logged, never fatal

USAGE:
  scheduler, err := NewAgingScheduler(svc, "0 6 * * *")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - collections/batch.go: AgeAllCases, the work being scheduled
  - handlers.go: TriggerAging endpoint (manual run)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/engine"
	"github.com/robfig/cron/v3"
)

// AgingScheduler runs the daily due-amount recalculation.
type AgingScheduler struct {
	Service *collections.Service

	cron    *cron.Cron
	running sync.Mutex
}

// NewAgingScheduler creates a scheduler on the given cron expression.
func NewAgingScheduler(svc *collections.Service, expr string) (*AgingScheduler, error) {
	s := &AgingScheduler{
		Service: svc,
		cron:    cron.New(),
	}
	if _, err := s.cron.AddFunc(expr, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the scheduler.
func (s *AgingScheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Aging scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *AgingScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] Aging scheduler stopped")
}

// RunNow triggers a pass outside the schedule (startup catch-up).
func (s *AgingScheduler) RunNow() {
	s.runOnce()
}

func (s *AgingScheduler) runOnce() {
	if !s.running.TryLock() {
		log.Println("[Scheduler] Previous aging run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	today := engine.DateOf(time.Now().UTC())
	log.Printf("[Scheduler] Aging run starting as of %s", today)

	result, err := s.Service.AgeAllCases(context.Background(), today)
	if err != nil {
		log.Printf("[Scheduler] Aging run failed: %v", err)
		return
	}

	log.Printf("[Scheduler] Aging run done: %d updated, %d unchanged, %d failed",
		result.Processed, result.Unchanged, len(result.Failures))
	for _, f := range result.Failures {
		log.Printf("[Scheduler] Case %s failed: %v", f.CaseNumber, f.Err)
	}
}
