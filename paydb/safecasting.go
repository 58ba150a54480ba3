package paydb

import (
	"errors"
	"fmt"
	"math"

	"github.com/ledgerpay/paywallet/pkg/tokenunit"
)

// ErrCastingOverflow is returned when a value cannot be safely cast to the
// desired type.
var ErrCastingOverflow = errors.New("casting overflow")

// amountToInt64 safely casts a token amount to the signed column type,
// returning an error if the value is out of range.
func amountToInt64(v tokenunit.Amount) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("could not cast %d to int64: %w", v,
			ErrCastingOverflow)
	}

	return int64(v), nil
}

// int64ToAmount safely casts a stored amount back to a token amount,
// returning an error if the value is negative.
func int64ToAmount(v int64) (tokenunit.Amount, error) {
	if v < 0 {
		return 0, fmt.Errorf("could not cast %d to amount: %w", v,
			ErrCastingOverflow)
	}

	return tokenunit.Amount(v), nil
}

// intToInt32 safely casts an int to an int32, returning an error if the
// value is out of range.
func intToInt32(v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("could not cast %d to int32: %w", v,
			ErrCastingOverflow)
	}

	return int32(v), nil
}
