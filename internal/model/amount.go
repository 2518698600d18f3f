package model

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of decimal places between the smallest unit (wei) and one currency unit.
const Decimals = 18

// ParseAmount parses a base-10 integer amount of wei.
func ParseAmount(s string) (uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return *v, nil
}

// ParseUnits converts a decimal amount of currency units (e.g. "0.001") to wei.
// Fractions finer than one wei are rejected.
func ParseUnits(s string) (uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return uint256.Int{}, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
	}

	wei := d.Shift(Decimals)
	if !wei.IsInteger() {
		return uint256.Int{}, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, Decimals)
	}

	v, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return uint256.Int{}, fmt.Errorf("%w: %q", ErrArithmeticOverflow, s)
	}
	return *v, nil
}

// FormatUnits renders a wei amount as currency units, e.g. 1045000000000000000 -> "1.045".
func FormatUnits(a uint256.Int) string {
	return decimal.NewFromBigInt(a.ToBig(), -Decimals).String()
}
