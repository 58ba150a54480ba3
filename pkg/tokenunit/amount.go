// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tokenunit provides the amount type used for ledger tokens.
package tokenunit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/bits"
	"strconv"
)

var (
	// ErrOverflow is returned when an arithmetic operation on amounts
	// does not fit into 64 bits.
	ErrOverflow = errors.New("amount overflow")

	// ErrUnderflow is returned when subtracting a larger amount from a
	// smaller one.
	ErrUnderflow = errors.New("amount underflow")
)

// Amount is an indivisible quantity of ledger tokens. Ledger amounts are
// unsigned 64-bit integers, so every operation that may wrap around is
// checked.
type Amount uint64

// Zero is the zero amount.
const Zero Amount = 0

// Add returns a+b, or ErrOverflow if the sum does not fit into 64 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}

	return Amount(sum), nil
}

// Sub returns a-b, or ErrUnderflow if b is larger than a.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}

	return Amount(diff), nil
}

// Sum adds up all the given amounts, failing on the first overflow.
func Sum(amounts ...Amount) (Amount, error) {
	var (
		total Amount
		err   error
	)
	for _, amt := range amounts {
		total, err = total.Add(amt)
		if err != nil {
			return 0, err
		}
	}

	return total, nil
}

// String returns the amount in base 10 without any unit suffix, matching the
// `balance_str` representation used by the ledger tooling.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ParseAmount parses a base 10 token amount.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return Amount(v), nil
}

// ToInt64 converts the amount to an int64, capping at math.MaxInt64. SQL
// backends store amounts as signed 64-bit integers.
func (a Amount) ToInt64() int64 {
	if a > math.MaxInt64 {
		slog.Warn("Capping amount to math.MaxInt64",
			slog.Uint64("old", uint64(a)),
			slog.Int64("new", math.MaxInt64))

		return math.MaxInt64
	}

	return int64(a)
}

// FromInt64 converts a signed 64-bit integer read from storage back into an
// amount. Negative values are rejected.
func FromInt64(v int64) (Amount, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: negative amount %d", ErrUnderflow, v)
	}

	return Amount(v), nil
}
