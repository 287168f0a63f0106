/*
commission.go - Commission computation

PURPOSE:
  Computes the fee the agency earns on a payment, under the scheme the
  client company configured for the case's category and product.

SCHEME RESOLUTION:
  1. Exact match on (category, product type)
  2. Match on (category, applies-to-all-products)
  3. Nothing found -> SchemeNotFoundError. A missing scheme is an error
     the caller must handle, distinguishable from "0% commission due".

MODES:
  FLAT:   commission = amount x percentage / 100
  TIERED: locate the band whose [min, max) contains the amount; the last
          band may be unbounded. commission = amount x band pct / 100.

TIER INVARIANTS:
  Bands partition [0, inf): sorted by minimum, no overlaps, no duplicate
  minimums, at most one unbounded band (the last). Validated when a
  scheme is authored (ValidateTiers), not at computation time.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEME MODEL
// =============================================================================

type SchemeMode string

const (
	ModeFlat   SchemeMode = "FLAT"
	ModeTiered SchemeMode = "TIERED"
)

// CommissionScheme is one commission rule owned by a client company.
// ProductType empty means the scheme applies to all products.
type CommissionScheme struct {
	ID          SchemeID
	CompanyID   CompanyID
	Category    CaseCategory
	ProductType string
	Mode        SchemeMode

	// FLAT
	FlatPercent Money

	// TIERED, sorted by Min ascending
	Tiers []CommissionTier
}

// CommissionTier is one amount band. Max nil means unbounded.
type CommissionTier struct {
	Min     Money
	Max     *Money
	Percent Money
}

// AppliesToAll reports whether the scheme is a product wildcard.
func (s *CommissionScheme) AppliesToAll() bool { return s.ProductType == "" }

// =============================================================================
// COMPUTATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// CommissionFor computes the commission a scheme yields on a payment
// amount. The scheme is assumed valid (tiers checked at authoring time).
func CommissionFor(s *CommissionScheme, amount Money) Money {
	if s.Mode == ModeFlat {
		return amount.Mul(s.FlatPercent.Value.Div(hundred))
	}

	for _, t := range s.Tiers {
		if amount.LessThan(t.Min) {
			continue
		}
		if t.Max != nil && !amount.LessThan(*t.Max) {
			continue
		}
		return amount.Mul(t.Percent.Value.Div(hundred))
	}
	// Valid tier sets partition [0, inf), so only negative amounts land
	// here; they owe nothing.
	return ZeroMoney()
}

// SchemeLookup resolves the schemes configured for a company. The
// collections service provides one backed by the scheme store.
type SchemeLookup func(companyID CompanyID, category CaseCategory) ([]*CommissionScheme, error)

// ResolveScheme picks the applicable scheme: exact product match first,
// then the all-products wildcard. No match is an error.
func ResolveScheme(lookup SchemeLookup, companyID CompanyID, category CaseCategory, productType string) (*CommissionScheme, error) {
	schemes, err := lookup(companyID, category)
	if err != nil {
		return nil, err
	}

	var wildcard *CommissionScheme
	for _, s := range schemes {
		if s.ProductType == productType && productType != "" {
			return s, nil
		}
		if s.AppliesToAll() && wildcard == nil {
			wildcard = s
		}
	}
	if wildcard != nil {
		return wildcard, nil
	}
	return nil, &SchemeNotFoundError{CompanyID: companyID, Category: category, ProductType: productType}
}

// =============================================================================
// AUTHORING-TIME VALIDATION
// =============================================================================

// ValidateTiers enforces the band invariants. Call when saving a scheme;
// computation assumes it already passed.
func ValidateTiers(tiers []CommissionTier) error {
	if len(tiers) == 0 {
		return &TierConfigurationError{Index: 0, Detail: "tiered scheme has no bands"}
	}

	sorted := make([]CommissionTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Min.LessThan(sorted[j].Min)
	})

	if !sorted[0].Min.IsZero() {
		return &TierConfigurationError{Index: 0, Detail: "first band must start at 0"}
	}

	for i, t := range sorted {
		if t.Min.IsNegative() {
			return &TierConfigurationError{Index: i, Detail: "band minimum is negative"}
		}
		if t.Percent.IsNegative() {
			return &TierConfigurationError{Index: i, Detail: "band percentage is negative"}
		}
		if t.Max != nil && !t.Max.GreaterThan(t.Min) {
			return &TierConfigurationError{Index: i, Detail: "band maximum not above its minimum"}
		}
		if i > 0 && t.Min.Equal(sorted[i-1].Min) {
			return &TierConfigurationError{Index: i, Detail: "duplicate band minimum"}
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Max == nil {
				return &TierConfigurationError{Index: i - 1, Detail: "unbounded band must be last"}
			}
			if !prev.Max.Equal(t.Min) {
				if t.Min.LessThan(*prev.Max) {
					return &TierConfigurationError{Index: i, Detail: "bands overlap"}
				}
				return &TierConfigurationError{Index: i, Detail: "gap between bands"}
			}
		}
	}
	return nil
}
