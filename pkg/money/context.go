package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Rounding selects how amounts with extra digits are brought to Places.
type Rounding int

const (
	// RoundHalfUp rounds ties away from zero (2.675 -> 2.68).
	RoundHalfUp Rounding = iota
	// RoundHalfEven rounds ties to the even neighbour (0.125 -> 0.12).
	RoundHalfEven
	// RoundDown truncates toward zero.
	RoundDown
)

func (r Rounding) String() string {
	switch r {
	case RoundHalfUp:
		return "half_up"
	case RoundHalfEven:
		return "half_even"
	case RoundDown:
		return "down"
	default:
		return fmt.Sprintf("rounding(%d)", int(r))
	}
}

// ParseRounding maps a config name to a Rounding.
func ParseRounding(name string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "half_up":
		return RoundHalfUp, nil
	case "half_even", "bankers":
		return RoundHalfEven, nil
	case "down", "truncate":
		return RoundDown, nil
	default:
		return 0, fmt.Errorf("unknown rounding mode %q", name)
	}
}

// Context carries the precision, rounding rule and currency an engine
// works in. The zero value is not usable; build one with NewContext.
type Context struct {
	Currency string
	Places   int32
	Rounding Rounding
}

// DefaultContext is USD at two places, rounding half up.
func DefaultContext() Context {
	return Context{Currency: "USD", Places: 2, Rounding: RoundHalfUp}
}

// NewContext validates its arguments against the ISO currency table.
func NewContext(currency string, places int32, rounding Rounding) (Context, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if gomoney.GetCurrency(code) == nil {
		return Context{}, fmt.Errorf("unknown currency %q", currency)
	}
	if places < 0 || places > 8 {
		return Context{}, fmt.Errorf("places must be between 0 and 8, got %d", places)
	}
	if rounding < RoundHalfUp || rounding > RoundDown {
		return Context{}, fmt.Errorf("invalid rounding %d", rounding)
	}
	return Context{Currency: code, Places: places, Rounding: rounding}, nil
}

// Parse reads a decimal string and rounds it to the context precision.
// Signs are kept; rejecting negative amounts is the caller's concern.
func (c Context) Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if exp := d.Exponent(); exp > maxIntegerDigits || exp < -maxScale {
		return Money{}, fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}
	rounded := c.round(d)
	if rounded.Abs().GreaterThanOrEqual(decimal.New(1, maxIntegerDigits)) {
		return Money{}, fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}
	return Money{value: rounded}, nil
}

// Round brings m to the context precision.
func (c Context) Round(m Money) Money {
	return Money{value: c.round(m.value)}
}

// Zero is zero at the context precision ("0.00").
func (c Context) Zero() Money {
	return Money{value: decimal.Zero.Round(c.Places)}
}

// Format renders m with the context currency.
func (c Context) Format(m Money) string {
	return m.Display(c.Currency)
}

func (c Context) round(d decimal.Decimal) decimal.Decimal {
	switch c.Rounding {
	case RoundHalfEven:
		return d.RoundBank(c.Places)
	case RoundDown:
		// Truncate leaves short values unscaled; Round rescales exactly.
		return d.Truncate(c.Places).Round(c.Places)
	default:
		return d.Round(c.Places)
	}
}
