/*
Package factory provides JSON to Go commission-scheme conversion.

PURPOSE:
  Converts JSON scheme definitions into engine.CommissionScheme objects.
  This enables scheme configuration without code changes - account
  managers can define a client's commission terms in JSON, and the
  factory creates the proper Go structs with all tier invariants checked
  up front.

WHY JSON?
  - Non-developers can author a client's commission terms
  - Easy integration with admin UI
  - Version control for scheme definitions
  - Database storage of scheme configs

JSON SCHEMA:
  {
    "id": "acme-arrears-tiered",
    "company_id": "acme",
    "category": "ARREARS",
    "product_type": "",
    "mode": "TIERED",
    "tiers": [
      {"min": "0", "max": "1000", "percent": "10"},
      {"min": "1000", "percent": "5"}
    ]
  }

  Flat mode replaces "tiers" with "percent": "12.5". Amounts travel as
  decimal strings; floats would lose exactness before the engine ever
  sees them.

VALIDATION:
  All tier invariants (bands partition [0, inf), no overlaps, no gaps,
  one unbounded band at most) are enforced here at authoring time.
  Computation assumes a valid scheme.

USAGE:
  scheme, err := factory.ParseScheme(jsonString)
  if err != nil {
      // engine.ErrInvalidTierConfiguration et al.
  }
  store.SaveScheme(ctx, scheme)

SEE ALSO:
  - engine/commission.go: Scheme model and tier invariants
  - collections/service.go: SaveScheme entry point
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/recobro/collections-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the JSON representation of a commission scheme.
type SchemeJSON struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Category    string     `json:"category"`
	ProductType string     `json:"product_type,omitempty"` // empty applies to all products
	Mode        string     `json:"mode"`
	Percent     string     `json:"percent,omitempty"` // FLAT only
	Tiers       []TierJSON `json:"tiers,omitempty"`   // TIERED only
}

// TierJSON represents one amount band. Max absent means unbounded.
type TierJSON struct {
	Min     string  `json:"min"`
	Max     *string `json:"max,omitempty"`
	Percent string  `json:"percent"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseScheme parses a JSON string into a validated CommissionScheme.
func ParseScheme(jsonStr string) (*engine.CommissionScheme, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return FromJSON(sj)
}

// FromJSON converts SchemeJSON to a validated engine.CommissionScheme.
func FromJSON(sj SchemeJSON) (*engine.CommissionScheme, error) {
	if sj.ID == "" {
		return nil, fmt.Errorf("scheme id is required")
	}
	if sj.CompanyID == "" {
		return nil, fmt.Errorf("scheme company_id is required")
	}

	category, err := parseCategory(sj.Category)
	if err != nil {
		return nil, err
	}

	scheme := &engine.CommissionScheme{
		ID:          engine.SchemeID(sj.ID),
		CompanyID:   engine.CompanyID(sj.CompanyID),
		Category:    category,
		ProductType: sj.ProductType,
	}

	switch sj.Mode {
	case string(engine.ModeFlat):
		scheme.Mode = engine.ModeFlat
		pct, err := parsePercent(sj.Percent)
		if err != nil {
			return nil, err
		}
		scheme.FlatPercent = pct
		if len(sj.Tiers) > 0 {
			return nil, fmt.Errorf("flat scheme must not define tiers")
		}

	case string(engine.ModeTiered):
		scheme.Mode = engine.ModeTiered
		for i, tj := range sj.Tiers {
			tier, err := parseTier(tj)
			if err != nil {
				return nil, fmt.Errorf("tier %d: %w", i, err)
			}
			scheme.Tiers = append(scheme.Tiers, tier)
		}
		if err := engine.ValidateTiers(scheme.Tiers); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown scheme mode: %q", sj.Mode)
	}

	return scheme, nil
}

// ToJSON converts a CommissionScheme back to its JSON representation.
func ToJSON(scheme *engine.CommissionScheme) SchemeJSON {
	sj := SchemeJSON{
		ID:          string(scheme.ID),
		CompanyID:   string(scheme.CompanyID),
		Category:    string(scheme.Category),
		ProductType: scheme.ProductType,
		Mode:        string(scheme.Mode),
	}

	if scheme.Mode == engine.ModeFlat {
		sj.Percent = scheme.FlatPercent.Value.String()
		return sj
	}

	for _, t := range scheme.Tiers {
		tj := TierJSON{Min: t.Min.Value.String(), Percent: t.Percent.Value.String()}
		if t.Max != nil {
			max := t.Max.Value.String()
			tj.Max = &max
		}
		sj.Tiers = append(sj.Tiers, tj)
	}
	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCategory(s string) (engine.CaseCategory, error) {
	switch s {
	case string(engine.CategoryArrears):
		return engine.CategoryArrears, nil
	case string(engine.CategoryAssigned):
		return engine.CategoryAssigned, nil
	default:
		return "", fmt.Errorf("unknown scheme category: %q", s)
	}
}

func parsePercent(s string) (engine.Money, error) {
	if s == "" {
		return engine.ZeroMoney(), fmt.Errorf("flat scheme requires a percent")
	}
	m, err := engine.ParseMoney(s)
	if err != nil {
		return engine.ZeroMoney(), fmt.Errorf("malformed percent: %q", s)
	}
	if m.IsNegative() {
		return engine.ZeroMoney(), fmt.Errorf("percent is negative: %q", s)
	}
	return m, nil
}

func parseTier(tj TierJSON) (engine.CommissionTier, error) {
	var tier engine.CommissionTier

	if tj.Min == "" {
		return tier, fmt.Errorf("band minimum is required")
	}
	min, err := engine.ParseMoney(tj.Min)
	if err != nil {
		return tier, fmt.Errorf("malformed band minimum: %q", tj.Min)
	}
	tier.Min = min

	pct, err := parsePercent(tj.Percent)
	if err != nil {
		return tier, err
	}
	tier.Percent = pct

	if tj.Max != nil {
		max, err := engine.ParseMoney(*tj.Max)
		if err != nil {
			return tier, fmt.Errorf("malformed band maximum: %q", *tj.Max)
		}
		tier.Max = &max
	}
	return tier, nil
}

// =============================================================================
// PRESET SCHEMES
// =============================================================================

// FlatSchemeJSON builds the JSON for a flat-percentage scheme. Convenience
// for seeding and tests.
func FlatSchemeJSON(id, companyID string, category engine.CaseCategory, percent string) string {
	sj := SchemeJSON{
		ID:        id,
		CompanyID: companyID,
		Category:  string(category),
		Mode:      string(engine.ModeFlat),
		Percent:   percent,
	}
	data, _ := json.Marshal(sj)
	return string(data)
}

// TieredSchemeJSON builds the JSON for a tiered scheme from (min, max,
// percent) triples; pass an empty max for the unbounded last band.
func TieredSchemeJSON(id, companyID string, category engine.CaseCategory, bands [][3]string) string {
	sj := SchemeJSON{
		ID:        id,
		CompanyID: companyID,
		Category:  string(category),
		Mode:      string(engine.ModeTiered),
	}
	for _, b := range bands {
		tj := TierJSON{Min: b[0], Percent: b[2]}
		if b[1] != "" {
			max := b[1]
			tj.Max = &max
		}
		sj.Tiers = append(sj.Tiers, tj)
	}
	data, _ := json.Marshal(sj)
	return string(data)
}
