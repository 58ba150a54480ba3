package paydb

import (
	"errors"
	"math"
	"testing"

	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/sqldb"
	"github.com/stretchr/testify/require"
)

// TestAmountToInt64 checks token amounts fit the signed column type.
func TestAmountToInt64(t *testing.T) {
	t.Parallel()

	v, err := amountToInt64(math.MaxInt64)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), v)

	_, err = amountToInt64(math.MaxInt64 + 1)
	require.ErrorIs(t, err, ErrCastingOverflow)
}

// TestInt64ToAmount checks negative stored amounts are refused.
func TestInt64ToAmount(t *testing.T) {
	t.Parallel()

	v, err := int64ToAmount(42)
	require.NoError(t, err)
	require.Equal(t, tokenunit.Amount(42), v)

	_, err = int64ToAmount(-1)
	require.ErrorIs(t, err, ErrCastingOverflow)
}

// TestIntToInt32 checks the position cast.
func TestIntToInt32(t *testing.T) {
	t.Parallel()

	v, err := intToInt32(7)
	require.NoError(t, err)
	require.Equal(t, int32(7), v)

	_, err = intToInt32(math.MaxInt32 + 1)
	require.ErrorIs(t, err, ErrCastingOverflow)
}

// TestWrapDBError checks store errors keep their cause and classify unique
// violations as constraint errors.
func TestWrapDBError(t *testing.T) {
	t.Parallel()

	err := wrapDBError("insert receipt", ErrNilDB)

	var storeErr Error
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, ErrDatabase, storeErr.Code)
	require.ErrorIs(t, err, ErrNilDB)

	err = wrapDBError("insert receipt", &sqldb.ErrSQLUniqueConstraintViolation{
		DBError: errors.New("duplicate key"),
	})
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, ErrConstraint, storeErr.Code)

	var uniqueErr *sqldb.ErrSQLUniqueConstraintViolation
	require.ErrorAs(t, err, &uniqueErr)

	require.NoError(t, wrapDBError("noop", nil))
}
