package engine_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/recobro/collections-engine/engine"
)

func openCase(status engine.CaseStatus, due string) *engine.Case {
	c := engine.NewCase("EXP-1", "co", money(due), date(2024, time.January, 2))
	c.ProductType = "stripe"
	c.Status = status
	c.AmountDue = money(due)
	return c
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

func TestAllowedMethods(t *testing.T) {
	cases := []struct {
		status engine.CaseStatus
		want   []string
	}{
		{engine.StatusActive, []string{"transfer", "stripe"}},
		{engine.StatusAssigned, []string{"transfer", "card"}},
		{engine.StatusAgreement, []string{"transfer"}},
		{engine.StatusUnlocatable, []string{"transfer"}},
		{engine.StatusPaid, []string{"transfer"}},
	}

	for _, tc := range cases {
		got := engine.AllowedMethods(openCase(tc.status, "100"))
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: AllowedMethods = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestAllowedMethods_NoProductType(t *testing.T) {
	c := openCase(engine.StatusActive, "100")
	c.ProductType = ""

	if got := engine.AllowedMethods(c); !reflect.DeepEqual(got, []string{"transfer"}) {
		t.Errorf("AllowedMethods = %v, want transfer only", got)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidatePayment_OverpaymentEpsilon(t *testing.T) {
	// GIVEN: A case with 100.00 due
	// WHEN: Paying 100.01 and 100.02
	// THEN: One cent over is tolerated; two cents over is rejected

	c := openCase(engine.StatusActive, "100.00")

	if _, err := engine.ValidatePayment(c, engine.PaymentRequest{Amount: money("100.01"), Method: "transfer"}); err != nil {
		t.Fatalf("100.01 rejected: %v", err)
	}

	_, err := engine.ValidatePayment(c, engine.PaymentRequest{Amount: money("100.02"), Method: "transfer"})
	if !errors.Is(err, engine.ErrOverpayment) {
		t.Fatalf("100.02: got %v, want ErrOverpayment", err)
	}

	var over *engine.OverpaymentError
	if !errors.As(err, &over) {
		t.Fatal("error is not an OverpaymentError")
	}
	assertMoney(t, over.AmountDue, "100.00")
	assertMoney(t, over.Attempted, "100.02")
}

func TestValidatePayment_NonPositiveAmount(t *testing.T) {
	c := openCase(engine.StatusActive, "100")

	for _, amount := range []string{"0", "-5"} {
		if _, err := engine.ValidatePayment(c, engine.PaymentRequest{Amount: money(amount), Method: "transfer"}); !errors.Is(err, engine.ErrInvalidAmount) {
			t.Errorf("amount %s: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestValidatePayment_MethodNotAllowed(t *testing.T) {
	// Card is only accepted on assigned cases.
	c := openCase(engine.StatusActive, "100")

	_, err := engine.ValidatePayment(c, engine.PaymentRequest{Amount: money("50"), Method: "card"})
	if !errors.Is(err, engine.ErrInvalidPaymentMethod) {
		t.Fatalf("got %v, want ErrInvalidPaymentMethod", err)
	}

	var im *engine.InvalidPaymentMethodError
	if !errors.As(err, &im) {
		t.Fatal("error is not an InvalidPaymentMethodError")
	}
	if !reflect.DeepEqual(im.Allowed, []string{"transfer", "stripe"}) {
		t.Errorf("allowed list %v, want [transfer stripe]", im.Allowed)
	}

	c.Status = engine.StatusAssigned
	if _, err := engine.ValidatePayment(c, engine.PaymentRequest{Amount: money("50"), Method: "card"}); err != nil {
		t.Fatalf("card on assigned case rejected: %v", err)
	}
}

func TestValidatePayment_NormalizesDiscount(t *testing.T) {
	c := openCase(engine.StatusActive, "100")

	req, err := engine.ValidatePayment(c, engine.PaymentRequest{Amount: money("50"), Discount: money("-10"), Method: "transfer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertMoney(t, req.Discount, "0")
}

func TestValidateAmendedAmount(t *testing.T) {
	// GIVEN: A 300 debt with two payments, one being corrected
	// WHEN: Checking candidate amounts against the remaining ledger
	// THEN: The headroom is the due amount without the corrected payment,
	//       with the same cent tolerance as a new payment

	c := openCase(engine.StatusActive, "300")
	remainder := []engine.Payment{{ID: "other", Amount: money("100"), Discount: engine.ZeroMoney()}}
	today := date(2024, time.April, 20)

	if err := engine.ValidateAmendedAmount(c, remainder, money("200.01"), today); err != nil {
		t.Fatalf("200.01 rejected: %v", err)
	}

	err := engine.ValidateAmendedAmount(c, remainder, money("200.02"), today)
	if !errors.Is(err, engine.ErrOverpayment) {
		t.Fatalf("200.02: got %v, want ErrOverpayment", err)
	}
	var over *engine.OverpaymentError
	if !errors.As(err, &over) {
		t.Fatal("error is not an OverpaymentError")
	}
	assertMoney(t, over.AmountDue, "200.00")

	if err := engine.ValidateAmendedAmount(c, remainder, money("0"), today); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
}

// =============================================================================
// LEDGER TOTALS
// =============================================================================

func TestSummarize(t *testing.T) {
	payments := []engine.Payment{
		{Amount: money("100"), Discount: money("10")},
		{Amount: money("50.25"), Discount: engine.ZeroMoney()},
		{Amount: money("0.75"), Discount: money("5")},
	}

	s := engine.Summarize(payments)
	assertMoney(t, s.Recovered, "151.00")
	assertMoney(t, s.Discounts, "15.00")

	empty := engine.Summarize(nil)
	assertMoney(t, empty.Recovered, "0")
	assertMoney(t, empty.Discounts, "0")
}

func TestSettlesCase(t *testing.T) {
	// The residue threshold is absolute: anything at or below 1.00 settles.
	cases := []struct {
		due  string
		want bool
	}{
		{"0", true},
		{"0.99", true},
		{"1.00", true},
		{"1.01", false},
		{"250", false},
	}

	for _, tc := range cases {
		if got := engine.SettlesCase(money(tc.due)); got != tc.want {
			t.Errorf("SettlesCase(%s) = %v, want %v", tc.due, got, tc.want)
		}
	}
}
