// Package units converts between raw ledger amounts and their human-readable
// form, where one display unit equals 10^decimals raw units.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNegative      = errors.New("amount must not be negative")
	ErrPrecision     = errors.New("amount has more fractional digits than the token supports")
	ErrTooLarge      = errors.New("amount does not fit in 256 bits")
)

// Parse reads a raw amount written as a base-10 integer.
func Parse(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// ToDisplay renders a raw amount in display units.
func ToDisplay(amount *uint256.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals))
}

// FromDisplay converts a display amount back to raw units.
func FromDisplay(d decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegative
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrPrecision, d.String(), decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrTooLarge
	}
	return v, nil
}

// ParseDisplay reads a display amount such as "12.5" and converts it to raw units.
func ParseDisplay(s string, decimals uint8) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	return FromDisplay(d, decimals)
}
