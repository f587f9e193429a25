package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents) of the shop currency
type Money int64

var hundred = decimal.NewFromInt(100)

// ErrInvalidMoney is returned for amounts that cannot be represented
var ErrInvalidMoney = errors.New("invalid amount")

// ParseMoney parses a decimal string such as "50" or "12.5".
// Amounts with more than two decimal places are rejected.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal amount to minor units
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than two decimals", ErrInvalidMoney, d.String())
	}
	return Money(cents.IntPart()), nil
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats with two decimals, e.g. "50.00"
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// IsPositive reports whether the amount is greater than zero
func (m Money) IsPositive() bool {
	return m > 0
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*m = Money(v)
	case nil:
		*m = 0
	case []byte:
		return m.scanText(string(v))
	case string:
		return m.scanText(v)
	default:
		return fmt.Errorf("unsupported money type %T", src)
	}
	return nil
}

func (m *Money) scanText(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*m = Money(d.IntPart())
	return nil
}

// UnmarshalYAML accepts catalog prices written as "5.00" or 5
func (m *Money) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
