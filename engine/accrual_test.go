package engine_test

import (
	"testing"
	"time"

	"github.com/recobro/collections-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func datePtr(year int, month time.Month, day int) *engine.Date {
	d := date(year, month, day)
	return &d
}

func money(s string) engine.Money {
	return engine.MustParseMoney(s)
}

func assertMoney(t *testing.T, got engine.Money, want string) {
	t.Helper()
	if !got.Equal(money(want)) {
		t.Errorf("got %s, want %s", got.Value.String(), want)
	}
}

// =============================================================================
// MONTH MATH
// =============================================================================

func TestMonthsElapsed_AnniversaryReTrigger(t *testing.T) {
	anchor := date(2024, time.January, 15)

	cases := []struct {
		today engine.Date
		want  int
	}{
		{date(2024, time.January, 15), 1},  // anchor day itself
		{date(2024, time.January, 20), 1},  // later in the anchor month
		{date(2024, time.February, 14), 1}, // day before the anniversary
		{date(2024, time.February, 15), 2}, // anniversary re-triggers
		{date(2024, time.April, 10), 3},    // April not re-triggered yet
		{date(2024, time.April, 20), 4},    // Jan..Apr all matured
		{date(2025, time.January, 15), 13}, // across a year boundary
	}

	for _, tc := range cases {
		if got := engine.MonthsElapsed(anchor, tc.today); got != tc.want {
			t.Errorf("MonthsElapsed(%s, %s) = %d, want %d", anchor, tc.today, got, tc.want)
		}
	}
}

// =============================================================================
// SCHEDULED DEBT
// =============================================================================

func TestDueAmount_ScheduledDebt(t *testing.T) {
	// GIVEN: 1200 principal over 12 installments, first default 2024-01-15,
	//        150 already recovered
	// WHEN: Computing the due amount on 2024-04-20
	// THEN: Four installments of 100 have matured; due = 400 - 150 = 250.00

	due := engine.DueAmount(engine.DueInput{
		Principal:        money("1200"),
		InstallmentCount: 12,
		FirstDefaultDate: datePtr(2024, time.January, 15),
		Summary:          engine.LedgerSummary{Recovered: money("150"), Discounts: engine.ZeroMoney()},
		Today:            date(2024, time.April, 20),
	})
	assertMoney(t, due, "250.00")
}

func TestDueAmount_BeforeAnniversaryDay(t *testing.T) {
	// GIVEN: The same debt
	// WHEN: Computing on 2024-04-10, before the month's 15th
	// THEN: Only three installments matured; due = 300 - 150 = 150.00

	due := engine.DueAmount(engine.DueInput{
		Principal:        money("1200"),
		InstallmentCount: 12,
		FirstDefaultDate: datePtr(2024, time.January, 15),
		Summary:          engine.LedgerSummary{Recovered: money("150"), Discounts: engine.ZeroMoney()},
		Today:            date(2024, time.April, 10),
	})
	assertMoney(t, due, "150.00")
}

func TestDueAmount_DefaultInFuture(t *testing.T) {
	// GIVEN: A first default date that has not arrived
	// WHEN: Computing the due amount
	// THEN: Nothing has matured

	due := engine.DueAmount(engine.DueInput{
		Principal:        money("1200"),
		InstallmentCount: 12,
		FirstDefaultDate: datePtr(2024, time.June, 1),
		Today:            date(2024, time.April, 20),
	})
	assertMoney(t, due, "0")
}

func TestDueAmount_CappedAtInstallmentCount(t *testing.T) {
	// GIVEN: A 12-installment debt three years past its default
	// WHEN: Computing the due amount
	// THEN: Maturity caps at the full principal, not 36 installments

	due := engine.DueAmount(engine.DueInput{
		Principal:        money("1200"),
		InstallmentCount: 12,
		FirstDefaultDate: datePtr(2021, time.January, 15),
		Today:            date(2024, time.April, 20),
	})
	assertMoney(t, due, "1200.00")
}

func TestDueAmount_UnroundedInstallment(t *testing.T) {
	// GIVEN: 1000 over 3 installments (333.333... each, never rounded)
	// WHEN: All three have matured
	// THEN: The final due is the full principal, not 3 x 333.33 = 999.99

	due := engine.DueAmount(engine.DueInput{
		Principal:        money("1000"),
		InstallmentCount: 3,
		FirstDefaultDate: datePtr(2024, time.January, 15),
		Today:            date(2024, time.December, 20),
	})
	assertMoney(t, due, "1000.00")
}

func TestDueAmount_FlooredAtZero(t *testing.T) {
	// GIVEN: Recovered plus discounts exceed what has matured
	// WHEN: Computing the due amount
	// THEN: Due floors at zero, never negative

	due := engine.DueAmount(engine.DueInput{
		Principal:        money("1200"),
		InstallmentCount: 12,
		FirstDefaultDate: datePtr(2024, time.January, 15),
		Summary:          engine.LedgerSummary{Recovered: money("90"), Discounts: money("50")},
		Today:            date(2024, time.January, 20),
	})
	assertMoney(t, due, "0")
}

func TestDueAmount_Idempotent(t *testing.T) {
	// GIVEN: Fixed inputs
	// WHEN: Computing the due amount repeatedly
	// THEN: The value never drifts

	in := engine.DueInput{
		Principal:        money("977.31"),
		InstallmentCount: 7,
		FirstDefaultDate: datePtr(2024, time.March, 3),
		Summary:          engine.LedgerSummary{Recovered: money("123.45"), Discounts: money("10")},
		Today:            date(2024, time.August, 9),
	}

	first := engine.DueAmount(in)
	for i := 0; i < 10; i++ {
		if got := engine.DueAmount(in); !got.Equal(first) {
			t.Fatalf("recomputation drifted: %s != %s", got, first)
		}
	}
}

func TestDueAmount_MonotonicOverTime(t *testing.T) {
	// GIVEN: A scheduled debt with a frozen ledger
	// WHEN: Time advances day by day across a year
	// THEN: The due amount never decreases

	prev := engine.ZeroMoney()
	today := date(2024, time.January, 15)
	for i := 0; i < 365; i++ {
		due := engine.DueAmount(engine.DueInput{
			Principal:        money("1200"),
			InstallmentCount: 12,
			FirstDefaultDate: datePtr(2024, time.January, 15),
			Today:            today,
		})
		if due.LessThan(prev) {
			t.Fatalf("due decreased at %s: %s < %s", today, due, prev)
		}
		prev = due
		today = today.AddDays(1)
	}
}

// =============================================================================
// SIMPLE DEBT
// =============================================================================

func TestDueAmount_SimpleDebt(t *testing.T) {
	// GIVEN: A debt without an installment calendar
	// WHEN: Computing the due amount
	// THEN: The whole remaining balance is due immediately

	due := engine.DueAmount(engine.DueInput{
		Principal: money("350.40"),
		Summary:   engine.LedgerSummary{Recovered: money("100"), Discounts: money("0.40")},
		Today:     date(2024, time.April, 20),
	})
	assertMoney(t, due, "250.00")
}

func TestDueAmount_DegenerateCalendarFallsBackToSimple(t *testing.T) {
	// A default date with zero installments is treated as a simple debt.
	due := engine.DueAmount(engine.DueInput{
		Principal:        money("500"),
		InstallmentCount: 0,
		FirstDefaultDate: datePtr(2024, time.January, 15),
		Today:            date(2024, time.February, 1),
	})
	assertMoney(t, due, "500.00")
}

// =============================================================================
// ACCELERATION
// =============================================================================

func TestAcceleratedDue_IgnoresCalendar(t *testing.T) {
	// GIVEN: A scheduled debt mid-calendar
	// WHEN: Accelerating (assignment)
	// THEN: The full remaining balance is due regardless of maturity

	due := engine.AcceleratedDue(money("1200"), engine.LedgerSummary{
		Recovered: money("150"),
		Discounts: engine.ZeroMoney(),
	})
	assertMoney(t, due, "1050.00")
}

func TestRecomputeDue_AssignedStaysAccelerated(t *testing.T) {
	// GIVEN: An assigned case whose calendar would only have 400 matured
	// WHEN: Recomputing the due amount
	// THEN: The accelerated figure wins

	c := engine.NewCase("EXP-1", "co", money("1200"), date(2024, time.January, 15))
	c.InstallmentCount = 12
	c.FirstDefaultDate = datePtr(2024, time.January, 15)
	c.Status = engine.StatusAssigned

	engine.RecomputeDue(c, engine.LedgerSummary{Recovered: money("150")}, date(2024, time.April, 20))
	assertMoney(t, c.AmountDue, "1050.00")
}
