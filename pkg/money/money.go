// Package money implements exact fixed-precision currency amounts.
//
// A Money value wraps a decimal.Decimal and never touches binary floating
// point. Precision and rounding are not global: they live in a Context that
// the caller builds once and passes to whatever parses user input.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	// maxIntegerDigits bounds parsed amounts so they fit NUMERIC(20, places).
	maxIntegerDigits = 15
	// maxScale bounds the exponent of parsed input before rounding.
	maxScale = 30
)

var (
	ErrMalformed  = errors.New("malformed decimal amount")
	ErrOutOfRange = errors.New("amount out of range")
)

// Money is an exact decimal amount.
type Money struct {
	value decimal.Decimal
}

// New wraps a decimal without rounding it.
func New(value decimal.Decimal) Money {
	return Money{value: value}
}

// RequireFromString parses s without rounding and panics on error.
// Intended for constants and tests.
func RequireFromString(s string) Money {
	return Money{value: decimal.RequireFromString(s)}
}

// Zero returns an unscaled zero.
func Zero() Money {
	return Money{value: decimal.Zero}
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	total := decimal.Zero
	for _, m := range ms {
		total = total.Add(m.value)
	}
	return Money{value: total}
}

func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value)} }
func (m Money) Neg() Money        { return Money{value: m.value.Neg()} }
func (m Money) Abs() Money        { return Money{value: m.value.Abs()} }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(n Money) int          { return m.value.Cmp(n.value) }
func (m Money) Equal(n Money) bool       { return m.value.Equal(n.value) }
func (m Money) LessThan(n Money) bool    { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool { return m.value.GreaterThan(n.value) }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }
func (m Money) IsNegative() bool         { return m.value.IsNegative() }

// Decimal exposes the underlying value for aggregation.
func (m Money) Decimal() decimal.Decimal { return m.value }

// String renders the amount with the number of fractional digits it carries,
// so a value rounded to two places always prints two places ("0.10").
func (m Money) String() string {
	if exp := m.value.Exponent(); exp < 0 {
		return m.value.StringFixed(-exp)
	}
	return m.value.StringFixed(0)
}

// go-money formats int64 minor units; larger totals fall back to plain text.
var (
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
	minMinorUnits = decimal.NewFromInt(math.MinInt64)
)

// Display formats the amount for humans using the currency's symbol and
// separators, e.g. "$1,234.50".
func (m Money) Display(currency string) string {
	cur := gomoney.GetCurrency(currency)
	if cur == nil {
		return m.String() + " " + currency
	}
	minor := m.value.Shift(int32(cur.Fraction)).Round(0)
	if minor.GreaterThan(maxMinorUnits) || minor.LessThan(minMinorUnits) {
		return m.String() + " " + currency
	}
	return cur.Formatter().Format(minor.IntPart())
}

// MarshalJSON encodes the amount as a JSON string to keep it exact.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "12.34" and 12.34.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	m.value = d
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case Money:
		m.value = v.value
		return nil
	case decimal.Decimal:
		m.value = v
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.value = d
	return nil
}
