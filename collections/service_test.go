package collections_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/collections/store"
	"github.com/recobro/collections-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*collections.Service, *store.Memory) {
	mem := store.NewMemory()
	svc := collections.NewService(mem)

	err := mem.SaveCompany(context.Background(), &engine.Company{
		ID:                 "finloans",
		Name:               "Finloans",
		ProductTypes:       []string{"stripe", "sequra"},
		AssignableProducts: []string{"sequra"},
	})
	require.NoError(t, err)

	// Flat 10% on arrears collection, all products.
	err = mem.SaveScheme(context.Background(), &engine.CommissionScheme{
		ID:          "arrears-flat",
		CompanyID:   "finloans",
		Category:    engine.CategoryArrears,
		Mode:        engine.ModeFlat,
		FlatPercent: money("10"),
	})
	require.NoError(t, err)

	return svc, mem
}

func money(s string) engine.Money {
	return engine.MustParseMoney(s)
}

func date(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func datePtr(year int, month time.Month, day int) *engine.Date {
	d := date(year, month, day)
	return &d
}

func scheduledCase(number string) collections.CreateCaseInput {
	return collections.CreateCaseInput{
		Number:           engine.CaseNumber(number),
		CompanyID:        "finloans",
		DebtorName:       "J. Doe",
		ProductType:      "stripe",
		Principal:        money("1200"),
		InstallmentCount: 12,
		FirstDefaultDate: datePtr(2024, time.January, 15),
		ReceivedDate:     date(2024, time.February, 1),
	}
}

func transfer(amount string, paidAt engine.Date) engine.PaymentRequest {
	return engine.PaymentRequest{
		Amount: money(amount),
		Method: engine.MethodTransfer,
		PaidAt: paidAt,
	}
}

// =============================================================================
// CASE CREATION
// =============================================================================

func TestCreateCase_DerivesInitialDue(t *testing.T) {
	// GIVEN: A new scheduled case received on 2024-02-01
	// WHEN: Creating it as of 2024-04-20
	// THEN: Four installments of 100 are already due

	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), date(2024, time.April, 20))
	require.NoError(t, err)

	assert.Equal(t, engine.StatusActive, c.Status)
	assert.Equal(t, "400.00", c.AmountDue.String())
	assert.Equal(t, int64(1), c.Version)
}

func TestCreateCase_UnknownCompanyRejected(t *testing.T) {
	svc, _ := newTestService(t)

	in := scheduledCase("EXP-1001")
	in.CompanyID = "nobody"
	_, err := svc.CreateCase(context.Background(), in, date(2024, time.April, 20))
	assert.ErrorIs(t, err, engine.ErrCompanyNotFound)
}

func TestCreateCase_PurchaseAfterDefaultRejected(t *testing.T) {
	svc, _ := newTestService(t)

	in := scheduledCase("EXP-1001")
	in.PurchaseDate = datePtr(2024, time.March, 1) // after the 2024-01-15 default
	_, err := svc.CreateCase(context.Background(), in, date(2024, time.April, 20))
	assert.ErrorIs(t, err, engine.ErrInvalidDates)
}

// =============================================================================
// PAYMENT CONSERVATION
// =============================================================================

func TestApplyPayment_ConservesLedgerTotals(t *testing.T) {
	// GIVEN: A case with 400 due
	// WHEN: Recording several payments
	// THEN: recovered + discounts + due always equals what had matured

	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	c, p, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("150", today), today)
	require.NoError(t, err)
	assert.Equal(t, "150.00", c.AmountRecovered.String())
	assert.Equal(t, "250.00", c.AmountDue.String())
	assert.Equal(t, "15.00", p.Commission.String(), "flat 10% of the payment")

	req := transfer("100", today)
	req.Discount = money("50")
	c, _, err = svc.ApplyPayment(ctx, "EXP-1001", req, today)
	require.NoError(t, err)
	assert.Equal(t, "250.00", c.AmountRecovered.String())
	assert.Equal(t, "50.00", c.DiscountTotal.String())
	assert.Equal(t, "100.00", c.AmountDue.String())
}

func TestApplyPayment_OverpaymentRejectedAtomically(t *testing.T) {
	// GIVEN: A case with 400 due
	// WHEN: Attempting to pay 400.02
	// THEN: The rejection leaves no trace in the ledger or the case

	svc, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	_, _, err = svc.ApplyPayment(ctx, "EXP-1001", transfer("400.02", today), today)
	require.ErrorIs(t, err, engine.ErrOverpayment)

	payments, err := mem.PaymentsByCase(ctx, "EXP-1001")
	require.NoError(t, err)
	assert.Empty(t, payments)

	c, err := mem.GetCase(ctx, "EXP-1001")
	require.NoError(t, err)
	assert.Equal(t, "400.00", c.AmountDue.String())
}

func TestApplyPayment_MissingSchemeRejectsPayment(t *testing.T) {
	// GIVEN: A company with no commission scheme configured
	// WHEN: Recording a payment
	// THEN: The payment is rejected outright; zero commission is never
	//       silently assumed

	svc, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	require.NoError(t, mem.DeleteScheme(ctx, "arrears-flat"))

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	_, _, err = svc.ApplyPayment(ctx, "EXP-1001", transfer("100", today), today)
	require.ErrorIs(t, err, engine.ErrSchemeNotFound)

	payments, err := mem.PaymentsByCase(ctx, "EXP-1001")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// =============================================================================
// SETTLEMENT AND REOPENING
// =============================================================================

func TestApplyPayment_SettlesWithinThreshold(t *testing.T) {
	// GIVEN: A case with 400 matured
	// WHEN: A payment leaves only 0.50 outstanding
	// THEN: The residue is below the settlement threshold and the case
	//       flips to PAID

	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	c, _, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("399.50", today), today)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaid, c.Status)
	assert.Equal(t, "0.50", c.AmountDue.String())
}

func TestDeletePayment_ReopensSettledCase(t *testing.T) {
	// GIVEN: A case settled by a payment
	// WHEN: Deleting that payment
	// THEN: The debt is outstanding again and the case returns to ACTIVE

	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	_, p, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("400", today), today)
	require.NoError(t, err)

	c, err := svc.DeletePayment(ctx, "EXP-1001", p.ID, today)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusActive, c.Status)
	assert.Equal(t, "400.00", c.AmountDue.String())
	assert.Equal(t, "0.00", c.AmountRecovered.String())
}

func TestEditPayment_RecomputesAndKeepsCommission(t *testing.T) {
	// GIVEN: A recorded payment of 150 with 15 commission
	// WHEN: Correcting the amount down to 100
	// THEN: The due amount recomputes from the full ledger but the
	//       commission stays as derived at creation

	svc, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	_, p, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("150", today), today)
	require.NoError(t, err)

	c, err := svc.EditPayment(ctx, "EXP-1001", p.ID, money("100"), engine.ZeroMoney(), today)
	require.NoError(t, err)
	assert.Equal(t, "100.00", c.AmountRecovered.String())
	assert.Equal(t, "300.00", c.AmountDue.String())

	stored, err := mem.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", stored.Commission.String())
}

func TestEditPayment_OverpaymentRejected(t *testing.T) {
	// GIVEN: A case with 400 matured carrying a 150 payment
	// WHEN: Correcting the payment beyond the debt
	// THEN: The correction is rejected against the due amount the case
	//       would have without this payment, and nothing changes

	svc, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	_, p, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("150", today), today)
	require.NoError(t, err)

	_, err = svc.EditPayment(ctx, "EXP-1001", p.ID, money("10000"), engine.ZeroMoney(), today)
	require.ErrorIs(t, err, engine.ErrOverpayment)

	var overErr *engine.OverpaymentError
	require.ErrorAs(t, err, &overErr)
	assert.Equal(t, "400.00", overErr.AmountDue.String(), "headroom excludes the edited payment")
	assert.Equal(t, "10000.00", overErr.Attempted.String())

	stored, err := mem.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "150.00", stored.Amount.String())

	c, err := mem.GetCase(ctx, "EXP-1001")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusActive, c.Status)
	assert.Equal(t, "250.00", c.AmountDue.String())

	// The full matured amount plus the cent tolerance still fits.
	c, err = svc.EditPayment(ctx, "EXP-1001", p.ID, money("400.01"), engine.ZeroMoney(), today)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaid, c.Status)
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

func assignableInput(number string) collections.CreateCaseInput {
	in := scheduledCase(number)
	in.ProductType = "sequra"
	return in
}

func TestAssignCase_AcceleratesAndSwitchesCommissionCategory(t *testing.T) {
	// GIVEN: An eligible documented case on an assignable product
	// WHEN: Assigning it and recording a card payment
	// THEN: The full balance is due and commission comes from the
	//       assigned-category scheme

	svc, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.June, 1) // 138 days of arrears

	require.NoError(t, mem.SaveScheme(ctx, &engine.CommissionScheme{
		ID:          "assigned-flat",
		CompanyID:   "finloans",
		Category:    engine.CategoryAssigned,
		Mode:        engine.ModeFlat,
		FlatPercent: money("20"),
	}))

	_, err := svc.CreateCase(ctx, assignableInput("EXP-2001"), today)
	require.NoError(t, err)
	attached := true
	_, err = svc.UpdateCase(ctx, "EXP-2001", collections.CaseEdit{DocumentAttached: &attached}, today)
	require.NoError(t, err)

	c, err := svc.AssignCase(ctx, "EXP-2001", today)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAssigned, c.Status)
	assert.Equal(t, "1200.00", c.AmountDue.String(), "calendar no longer applies")
	require.NotNil(t, c.AssignmentDate)

	c, p, err := svc.ApplyPayment(ctx, "EXP-2001", engine.PaymentRequest{
		Amount: money("200"), Method: engine.MethodCard, PaidAt: today,
	}, today)
	require.NoError(t, err)
	assert.Equal(t, "40.00", p.Commission.String(), "20% assigned-category rate")
	assert.Equal(t, "1000.00", c.AmountDue.String())
}

func TestAssignCase_ReportsEveryUnmetRequirement(t *testing.T) {
	// GIVEN: A young, undocumented case on a non-assignable product
	// WHEN: Attempting assignment
	// THEN: The error carries the complete checklist, not the first miss

	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.February, 1) // 17 days of arrears

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-2001"), today) // stripe: not assignable
	require.NoError(t, err)

	_, err = svc.AssignCase(ctx, "EXP-2001", today)
	require.ErrorIs(t, err, engine.ErrAssignmentIneligible)

	var ie *engine.AssignmentIneligibleError
	require.ErrorAs(t, err, &ie)
	assert.ElementsMatch(t, []engine.AssignmentRequirement{
		engine.ReqProductAssignable,
		engine.ReqArrearsAge,
		engine.ReqDocumentAttached,
	}, ie.Unmet)
}

func TestUpdateCase_EditRevokesAssignment(t *testing.T) {
	// GIVEN: An assigned case
	// WHEN: An edit switches it to a non-assignable product
	// THEN: It falls back to ACTIVE with the calendar due, and the edit
	//       result carries the revocation warning

	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.June, 1)

	_, err := svc.CreateCase(ctx, assignableInput("EXP-2001"), today)
	require.NoError(t, err)
	attached := true
	_, err = svc.UpdateCase(ctx, "EXP-2001", collections.CaseEdit{DocumentAttached: &attached}, today)
	require.NoError(t, err)
	_, err = svc.AssignCase(ctx, "EXP-2001", today)
	require.NoError(t, err)

	product := "stripe"
	res, err := svc.UpdateCase(ctx, "EXP-2001", collections.CaseEdit{ProductType: &product}, today)
	require.NoError(t, err)
	assert.True(t, res.AssignmentRevoked)
	assert.Equal(t, engine.StatusActive, res.Case.Status)
	// The January through May anniversaries have passed: 500 of 1200 matured.
	assert.Equal(t, "500.00", res.Case.AmountDue.String())
}

// =============================================================================
// STATUS AND TOUCHPOINTS
// =============================================================================

func TestSetStatus_DirectTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	c, err := svc.SetStatus(ctx, "EXP-1001", engine.StatusAgreement)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAgreement, c.Status)

	_, err = svc.SetStatus(ctx, "EXP-1001", engine.StatusPaid)
	require.Error(t, err)
	assert.True(t, engine.IsTransitionError(err))
}

func TestSetTouchpoint_RecordsOutcomeAndPromise(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	outcome := engine.OutcomeWillPay
	promised := date(2024, time.May, 1)
	c, err := svc.SetTouchpoint(ctx, "EXP-1001", engine.TouchCall1, true, &outcome, &promised, time.Now())
	require.NoError(t, err)

	tp := c.Touchpoints[engine.TouchCall1]
	assert.True(t, tp.Done)
	require.NotNil(t, tp.Outcome)
	assert.Equal(t, engine.OutcomeWillPay, *tp.Outcome)
	require.NotNil(t, tp.PromisedAt)
	assert.Equal(t, "2024-05-01", tp.PromisedAt.String())

	// Undoing clears the slot entirely.
	c, err = svc.SetTouchpoint(ctx, "EXP-1001", engine.TouchCall1, false, nil, nil, time.Now())
	require.NoError(t, err)
	assert.False(t, c.Touchpoints[engine.TouchCall1].Done)
	assert.Nil(t, c.Touchpoints[engine.TouchCall1].Outcome)
}

// =============================================================================
// ARCHIVE / RESTORE / PURGE
// =============================================================================

func TestArchive_BlocksMutationsUntilRestore(t *testing.T) {
	// GIVEN: An archived case
	// WHEN: Recording a payment, editing, or assigning
	// THEN: Everything is rejected until the case is restored

	svc, _ := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)
	_, recorded, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("100", today), today)
	require.NoError(t, err)

	c, err := svc.ArchiveCase(ctx, "EXP-1001", "client recalled the file", time.Now())
	require.NoError(t, err)
	assert.True(t, c.Lifecycle.IsArchived())
	assert.Equal(t, engine.StatusActive, c.Status, "archiving keeps the status")

	_, _, err = svc.ApplyPayment(ctx, "EXP-1001", transfer("100", today), today)
	assert.ErrorIs(t, err, engine.ErrCaseArchived)
	_, err = svc.EditPayment(ctx, "EXP-1001", recorded.ID, money("50"), engine.ZeroMoney(), today)
	assert.ErrorIs(t, err, engine.ErrCaseArchived)
	_, err = svc.DeletePayment(ctx, "EXP-1001", recorded.ID, today)
	assert.ErrorIs(t, err, engine.ErrCaseArchived)
	_, err = svc.UpdateCase(ctx, "EXP-1001", collections.CaseEdit{}, today)
	assert.ErrorIs(t, err, engine.ErrCaseArchived)
	_, err = svc.SetStatus(ctx, "EXP-1001", engine.StatusAgreement)
	assert.ErrorIs(t, err, engine.ErrCaseArchived)

	_, err = svc.RestoreCase(ctx, "EXP-1001")
	require.NoError(t, err)
	_, _, err = svc.ApplyPayment(ctx, "EXP-1001", transfer("100", today), today)
	assert.NoError(t, err)
}

func TestPurgeCase_RefusesLiveCase(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)
	_, _, err = svc.ApplyPayment(ctx, "EXP-1001", transfer("100", today), today)
	require.NoError(t, err)

	err = svc.PurgeCase(ctx, "EXP-1001")
	assert.ErrorIs(t, err, engine.ErrPurgeLiveCase)

	_, err = svc.ArchiveCase(ctx, "EXP-1001", "done", time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.PurgeCase(ctx, "EXP-1001"))

	_, err = mem.GetCase(ctx, "EXP-1001")
	assert.ErrorIs(t, err, engine.ErrCaseNotFound)
	payments, err := mem.PaymentsByCase(ctx, "EXP-1001")
	require.NoError(t, err)
	assert.Empty(t, payments, "purge removes the payment ledger too")
}

// =============================================================================
// BULK AGING
// =============================================================================

func TestAgeAllCases_MovesArrearsForward(t *testing.T) {
	// GIVEN: Cases created in April
	// WHEN: The aging pass runs in May, past the anniversary day
	// THEN: Each unsettled case matures one more installment; paid cases
	//       are untouched

	svc, _ := newTestService(t)
	ctx := context.Background()
	april := date(2024, time.April, 20)

	for i := 1; i <= 3; i++ {
		_, err := svc.CreateCase(ctx, scheduledCase(fmt.Sprintf("EXP-%d", i)), april)
		require.NoError(t, err)
	}
	// Settle the third.
	_, _, err := svc.ApplyPayment(ctx, "EXP-3", transfer("400", april), april)
	require.NoError(t, err)

	res, err := svc.AgeAllCases(ctx, date(2024, time.May, 15))
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Unchanged)

	c, err := svc.Store().GetCase(ctx, "EXP-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", c.AmountDue.String())
}

func TestAgeAllCases_IsIdempotentWithinADay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	april := date(2024, time.April, 20)

	_, err := svc.CreateCase(ctx, scheduledCase("EXP-1"), april)
	require.NoError(t, err)

	may := date(2024, time.May, 15)
	res, err := svc.AgeAllCases(ctx, may)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	res, err = svc.AgeAllCases(ctx, may)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 1, res.Unchanged)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

// blockingStore parks the first transaction until released, so a test
// can observe the per-case lock while an operation is in flight.
type blockingStore struct {
	collections.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) WithTx(ctx context.Context, fn func(collections.Store) error) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.Store.WithTx(ctx, fn)
}

func TestLockedCase_FailsFast(t *testing.T) {
	// GIVEN: A payment in flight holding the case lock
	// WHEN: A second operation targets the same case
	// THEN: It fails immediately with a retryable conflict

	setup, mem := newTestService(t)
	ctx := context.Background()
	today := date(2024, time.April, 20)

	_, err := setup.CreateCase(ctx, scheduledCase("EXP-1001"), today)
	require.NoError(t, err)

	blocking := &blockingStore{
		Store:   mem,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := collections.NewService(blocking)

	paymentDone := make(chan error, 1)
	go func() {
		_, _, err := svc.ApplyPayment(ctx, "EXP-1001", transfer("100", today), today)
		paymentDone <- err
	}()
	<-blocking.entered

	_, err = svc.SetStatus(ctx, "EXP-1001", engine.StatusAgreement)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)
	assert.True(t, engine.IsRetryable(err))

	close(blocking.release)
	require.NoError(t, <-paymentDone)
}

func TestStaleVersion_Conflicts(t *testing.T) {
	// GIVEN: Two readers holding the same case snapshot
	// WHEN: Both write it back
	// THEN: The second write loses the optimistic version check

	_, mem := newTestService(t)
	ctx := context.Background()

	c := engine.NewCase("EXP-1001", "finloans", money("100"), date(2024, time.February, 1))
	require.NoError(t, mem.InsertCase(ctx, c))

	first, err := mem.GetCase(ctx, "EXP-1001")
	require.NoError(t, err)
	second, err := mem.GetCase(ctx, "EXP-1001")
	require.NoError(t, err)

	first.Comments = "first writer"
	require.NoError(t, mem.UpdateCase(ctx, first))

	second.Comments = "second writer"
	err = mem.UpdateCase(ctx, second)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)
}
