package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Address is a wallet address in canonical form: "0x" followed by 40
// lowercase hex characters. Identity is case-insensitive, so every Address
// held by the system is normalized by ParseAddress.
type Address string

// SystemActor is the creator recorded for the bootstrap SuperAdmin.
const SystemActor = "system"

var addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates a 20-byte hex address and returns its lowercase form
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("address cannot be empty")
	}
	if !addressRegex.MatchString(s) {
		return "", fmt.Errorf("address must be 0x followed by 40 hex characters")
	}
	return Address(strings.ToLower(s)), nil
}

// MustParseAddress is like ParseAddress but panics on invalid input.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the string representation
func (a Address) String() string {
	return string(a)
}

// Equal compares two addresses case-insensitively
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// Short returns the first 8 characters of the address ("0x" + 6 hex),
// used for default display names.
func (a Address) Short() string {
	s := string(a)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
