package tokenunit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAmountAdd checks that addition detects overflow.
func TestAmountAdd(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		a, b    Amount
		want    Amount
		wantErr error
	}{
		{
			name: "small values",
			a:    2,
			b:    40,
			want: 42,
		},
		{
			name: "max plus zero",
			a:    math.MaxUint64,
			b:    0,
			want: math.MaxUint64,
		},
		{
			name:    "overflow",
			a:       math.MaxUint64,
			b:       1,
			wantErr: ErrOverflow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.a.Add(tc.b)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

// TestAmountSub checks that subtraction detects underflow.
func TestAmountSub(t *testing.T) {
	t.Parallel()

	got, err := Amount(6).Sub(5)
	require.NoError(t, err)
	require.Equal(t, Amount(1), got)

	got, err = Amount(6).Sub(6)
	require.NoError(t, err)
	require.Equal(t, Zero, got)

	_, err = Amount(1).Sub(2)
	require.ErrorIs(t, err, ErrUnderflow)
}

// TestSum checks the variadic sum helper.
func TestSum(t *testing.T) {
	t.Parallel()

	total, err := Sum()
	require.NoError(t, err)
	require.Equal(t, Zero, total)

	total, err = Sum(1, 2, 1, 2)
	require.NoError(t, err)
	require.Equal(t, Amount(6), total)

	_, err = Sum(math.MaxUint64-1, 1, 1)
	require.ErrorIs(t, err, ErrOverflow)
}

// TestAmountStringRoundTrip checks String and ParseAmount agree, including
// at the upper bound.
func TestAmountStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, a := range []Amount{0, 6, 50_000_000_000, math.MaxUint64} {
		parsed, err := ParseAmount(a.String())
		require.NoError(t, err)
		require.Equal(t, a, parsed)
	}

	_, err := ParseAmount("-1")
	require.Error(t, err)

	_, err = ParseAmount("abc")
	require.Error(t, err)
}

// TestInt64Conversion checks the capping conversion used by SQL backends.
func TestInt64Conversion(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(42), Amount(42).ToInt64())
	require.Equal(t, int64(math.MaxInt64), Amount(math.MaxUint64).ToInt64())

	a, err := FromInt64(42)
	require.NoError(t, err)
	require.Equal(t, Amount(42), a)

	_, err = FromInt64(-1)
	require.ErrorIs(t, err, ErrUnderflow)
}
