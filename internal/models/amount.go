package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a sum of money with two digits after the decimal separator,
// stored as a signed number of cents. Arithmetic on it never suffers from
// floating point issues.
type Amount int64

var (
	// ErrFractionTooLarge means the fractional component has more than two digits.
	ErrFractionTooLarge = errors.New("fractional component has more than two digits")
	// ErrBadAmountFormat means the value is not a number with at most one decimal separator.
	ErrBadAmountFormat = errors.New("malformed amount")
)

// NewAmount builds an amount from whole units and cents. Cents must be in
// [0, 100); the sign is carried by units.
func NewAmount(units int64, cents int64) (Amount, error) {
	if cents < 0 || cents > 99 {
		return 0, ErrFractionTooLarge
	}
	if units < 0 {
		return Amount(units*100 - cents), nil
	}
	return Amount(units*100 + cents), nil
}

// AmountFromUnits converts whole units into an Amount.
func AmountFromUnits(units int64) Amount {
	return Amount(units * 100)
}

// ParseAmount accepts "123", "123.45" and "123,45", with an optional leading
// sign. The fraction is a number of cents, so "1.5" is one unit and five
// cents. An empty component (".50", "123."), more than one separator, or a
// fraction beyond two digits is an error.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(strings.ReplaceAll(s, ",", "."), ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadAmountFormat, s)
	}
	units, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadAmountFormat, s)
	}
	if len(parts) == 1 {
		return AmountFromUnits(units), nil
	}
	if len(parts[1]) > 2 {
		return 0, ErrFractionTooLarge
	}
	cents, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || cents < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadAmountFormat, s)
	}
	if strings.HasPrefix(s, "-") {
		return Amount(units*100 - cents), nil
	}
	return Amount(units*100 + cents), nil
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a == 0 }

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount { return -a }

// Cents returns the raw number of cents.
func (a Amount) Cents() int64 { return int64(a) }

func (a Amount) String() string {
	cents := int64(a)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON renders the amount as a decimal string, e.g. "123.45".
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string ("123.45", "123,45") or a bare
// number. Bare integers are whole units, not cents.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrBadAmountFormat, string(data))
	}
	if units, err := n.Int64(); err == nil {
		*a = AmountFromUnits(units)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadAmountFormat, string(data))
	}
	parsed, err := ParseAmount(strconv.FormatFloat(f, 'f', 2, 64))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
