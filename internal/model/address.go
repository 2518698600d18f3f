package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte account identifier in canonical lowercase 0x-prefixed hex form.
type Address string

// ParseAddress validates s and returns its canonical form. Comparison is case-insensitive,
// so any mix of upper and lower case hex digits is accepted.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "0x") || !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	return Address(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

// MustParseAddress is like ParseAddress but panics on invalid input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the canonical representation.
func (a Address) String() string {
	return string(a)
}

// Short returns a display form such as 0x1234...abcd.
func (a Address) Short() string {
	s := string(a)
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
