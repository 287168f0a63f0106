/*
Package engine provides the core debt-state and accrual computation.

PURPOSE:
  This package contains the pure computation layer of the collections
  system: exact money arithmetic, calendar-date math, the due-amount
  calculator, payment validation, the case state machine, and the
  commission engine. It knows nothing about HTTP, persistence, or
  rendering - it consumes plain case and payment records and returns
  updated numeric and state values.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An exact decimal amount (never binary floating point)
  - Date: A calendar date without time-of-day, used for all due-date math
  - CaseNumber / PaymentID / CompanyID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors.
     Rounding to two decimals happens only at persistence boundaries.
  2. Determinism: "today" is always an explicit parameter, never read
     from the ambient clock inside a computation.
  3. Type Safety: Strong typing for identifiers prevents mixing case
     numbers with payment or company IDs.

SEE ALSO:
  - accrual.go: Due-amount calculation
  - ledger.go: Payment validation and ledger totals
  - state.go: Case status transitions and assignment eligibility
  - commission.go: Flat and tiered commission schemes
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

// ParseMoney parses a decimal string from untrusted input. Malformed
// strings are an error, never a zero amount.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney(), err
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses a decimal string known to be well formed
// (literals and store round-trips), returning zero on malformed input.
// Anything arriving over the wire goes through ParseMoney instead.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money            { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money            { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money  { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) GreaterThan(o Money) bool     { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool        { return m.Value.LessThan(o.Value) }
func (m Money) Equal(o Money) bool           { return m.Value.Equal(o.Value) }
func (m Money) Min(o Money) Money            { if m.LessThan(o) { return m }; return o }
func (m Money) Max(o Money) Money            { if m.GreaterThan(o) { return m }; return o }

// Round2 rounds to two decimal places. Only call this when writing a
// derived value to a persisted field; intermediate results stay exact to
// prevent cumulative drift across repeated recomputations.
func (m Money) Round2() Money { return Money{Value: m.Value.Round(2)} }

// FloorZero clamps negative amounts to zero.
func (m Money) FloorZero() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

func (m Money) String() string { return m.Value.StringFixed(2) }

// Float64 returns an approximate float value for display/serialization.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// =============================================================================
// DATE - Calendar date without time-of-day
// =============================================================================

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(o Date) bool        { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool         { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool         { return d.normalize().Equal(o.normalize()) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }
func (d Date) IsZero() bool              { return d.Time.IsZero() }

func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }

func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// DaysBetween returns whole days from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// MonthsElapsed counts calendar months from the anchor date to today,
// counting the anchor month itself once today has reached the anchor's
// day-of-month. The anchor month always counts at minimum one, so a
// defaulted installment is due the moment the case exists.
//
//	anchor 2024-01-15, today 2024-04-20 -> 4 (Jan..Apr; day 20 >= 15)
//	anchor 2024-01-15, today 2024-04-10 -> 3 (April not re-triggered yet)
func MonthsElapsed(anchor, today Date) int {
	months := (today.Year()-anchor.Year())*12 + int(today.Month()) - int(anchor.Month())
	if today.Day() >= anchor.Day() {
		months++
	}
	if months < 1 {
		months = 1
	}
	return months
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// CaseNumber is the unique case identifier. It is assigned by the
// surrounding system and immutable once set.
type CaseNumber string

type PaymentID string
type CompanyID string
type SchemeID string
