// Package core provides the budget domain types and input parsing.
//
// This file contains amount parsing. Amounts are whole integer units;
// anything that is not a plain base-10 integer is rejected so that a
// bad form value never reaches storage.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a submitted amount string to an integer amount.
//
// Only optionally-signed base-10 integers are accepted. Decimal points,
// currency symbols, grouping separators and anything non-numeric return
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12")   -> 12, nil
//	ParseAmount("-4")   -> -4, nil
//	ParseAmount("abc")  -> 0, ErrInvalidAmount
//	ParseAmount("12.5") -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	digits := s
	if strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
		digits = digits[1:]
	}
	if digits == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
