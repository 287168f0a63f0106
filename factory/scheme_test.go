package factory_test

import (
	"errors"
	"testing"

	"github.com/recobro/collections-engine/engine"
	"github.com/recobro/collections-engine/factory"
)

// =============================================================================
// FLAT SCHEMES
// =============================================================================

func TestParseScheme_Flat(t *testing.T) {
	scheme, err := factory.ParseScheme(`{
		"id": "acme-arrears",
		"company_id": "acme",
		"category": "ARREARS",
		"mode": "FLAT",
		"percent": "12.5"
	}`)
	if err != nil {
		t.Fatalf("Failed to parse scheme: %v", err)
	}

	if scheme.Mode != engine.ModeFlat {
		t.Errorf("Mode = %s, want FLAT", scheme.Mode)
	}
	if !scheme.FlatPercent.Equal(engine.MustParseMoney("12.5")) {
		t.Errorf("FlatPercent = %s, want 12.5", scheme.FlatPercent.Value)
	}
	if !scheme.AppliesToAll() {
		t.Error("scheme without product_type should apply to all products")
	}
}

func TestParseScheme_FlatRejectsTiers(t *testing.T) {
	_, err := factory.ParseScheme(`{
		"id": "x", "company_id": "acme", "category": "ARREARS",
		"mode": "FLAT", "percent": "10",
		"tiers": [{"min": "0", "percent": "5"}]
	}`)
	if err == nil {
		t.Fatal("flat scheme with tiers accepted")
	}
}

func TestParseScheme_RejectsMalformedPercent(t *testing.T) {
	for _, percent := range []string{"", "abc", "-5"} {
		_, err := factory.ParseScheme(`{
			"id": "x", "company_id": "acme", "category": "ARREARS",
			"mode": "FLAT", "percent": "` + percent + `"
		}`)
		if err == nil {
			t.Errorf("percent %q accepted", percent)
		}
	}
}

// =============================================================================
// TIERED SCHEMES
// =============================================================================

func TestParseScheme_Tiered(t *testing.T) {
	scheme, err := factory.ParseScheme(factory.TieredSchemeJSON(
		"acme-assigned", "acme", engine.CategoryAssigned,
		[][3]string{{"0", "1000", "10"}, {"1000", "", "5"}},
	))
	if err != nil {
		t.Fatalf("Failed to parse scheme: %v", err)
	}

	if len(scheme.Tiers) != 2 {
		t.Fatalf("got %d tiers, want 2", len(scheme.Tiers))
	}
	if scheme.Tiers[1].Max != nil {
		t.Error("last band should be unbounded")
	}

	if c := engine.CommissionFor(scheme, engine.MustParseMoney("999.99")); !c.Equal(engine.MustParseMoney("99.999")) {
		t.Errorf("commission below boundary = %s, want 99.999", c.Value)
	}
}

func TestParseScheme_RejectsMalformedBandBounds(t *testing.T) {
	// A bound that fails to parse must be an error, not a zero that
	// happens to slip through band validation.
	_, err := factory.ParseScheme(`{
		"id": "x", "company_id": "acme", "category": "ARREARS",
		"mode": "TIERED",
		"tiers": [{"min": "abc", "percent": "10"}]
	}`)
	if err == nil {
		t.Error("malformed band minimum accepted")
	}

	_, err = factory.ParseScheme(`{
		"id": "x", "company_id": "acme", "category": "ARREARS",
		"mode": "TIERED",
		"tiers": [{"min": "0", "max": "1,000", "percent": "10"}]
	}`)
	if err == nil {
		t.Error("malformed band maximum accepted")
	}
}

func TestParseScheme_TiersValidatedAtAuthoringTime(t *testing.T) {
	// The gap is caught here, before the scheme ever reaches storage.
	_, err := factory.ParseScheme(factory.TieredSchemeJSON(
		"broken", "acme", engine.CategoryArrears,
		[][3]string{{"0", "500", "10"}, {"600", "", "5"}},
	))
	if !errors.Is(err, engine.ErrInvalidTierConfiguration) {
		t.Fatalf("got %v, want ErrInvalidTierConfiguration", err)
	}
}

func TestParseScheme_UnknownCategoryAndMode(t *testing.T) {
	if _, err := factory.ParseScheme(`{
		"id": "x", "company_id": "acme", "category": "WEEKENDS",
		"mode": "FLAT", "percent": "10"
	}`); err == nil {
		t.Error("unknown category accepted")
	}

	if _, err := factory.ParseScheme(`{
		"id": "x", "company_id": "acme", "category": "ARREARS",
		"mode": "SLIDING", "percent": "10"
	}`); err == nil {
		t.Error("unknown mode accepted")
	}
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestToJSON_PreservesTierShape(t *testing.T) {
	src := factory.TieredSchemeJSON(
		"acme-assigned", "acme", engine.CategoryAssigned,
		[][3]string{{"0", "1000", "10"}, {"1000", "", "5"}},
	)
	scheme, err := factory.ParseScheme(src)
	if err != nil {
		t.Fatalf("Failed to parse scheme: %v", err)
	}

	sj := factory.ToJSON(scheme)
	if sj.Mode != "TIERED" || len(sj.Tiers) != 2 {
		t.Fatalf("round trip lost shape: %+v", sj)
	}
	if sj.Tiers[0].Max == nil || *sj.Tiers[0].Max != "1000" {
		t.Errorf("bounded max = %v, want 1000", sj.Tiers[0].Max)
	}
	if sj.Tiers[1].Max != nil {
		t.Error("unbounded max should stay absent")
	}
}
