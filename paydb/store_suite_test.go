package paydb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/ledgerpay/paywallet/wallet"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// storeFactory creates an empty, migrated store driven by c.
type storeFactory func(t *testing.T, c clock.Clock) ReceiptStore

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func feeTxn(refs ...string) wallet.PaymentTxn {
	return wallet.PaymentTxn{
		Amount: 2,
		Inputs: refs,
		Outputs: []wallet.Output{{
			Recipient: "pay:sov:refund",
			Amount:    1,
		}},
	}
}

// runStoreSuite runs the receipt store tests against a backend.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("add and get", func(t *testing.T) {
		testAddAndGet(t, newStore)
	})
	t.Run("double spend", func(t *testing.T) {
		testDoubleSpend(t, newStore)
	})
	t.Run("list", func(t *testing.T) {
		testList(t, newStore)
	})
	t.Run("invalid", func(t *testing.T) {
		testInvalid(t, newStore)
	})
}

func testAddAndGet(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	store := newStore(t, clock.NewTestClock(testEpoch))

	txn := wallet.PaymentTxn{
		Amount: 3,
		Inputs: []string{"txo:a:1", "txo:a:2"},
		Outputs: []wallet.Output{
			{Recipient: "pay:sov:refund", Amount: 1},
			{
				Recipient: "pay:sov:payee",
				Amount:    3,
				Extra:     fn.Some("memo"),
			},
		},
	}

	added, err := store.AddReceipt(
		ctx, TransferReceipt("pay:sov:payee", txn, `{"op":"REPLY"}`),
	)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, added.ID)
	require.Equal(t, testEpoch, added.CreatedAt)

	got, err := store.GetReceipt(ctx, added.ID)
	require.NoError(t, err)
	require.Equal(t, added, got)

	spent, err := store.IsSpent(ctx, "txo:a:2")
	require.NoError(t, err)
	require.True(t, spent)

	spent, err = store.IsSpent(ctx, "txo:b:1")
	require.NoError(t, err)
	require.False(t, spent)

	_, err = store.GetReceipt(ctx, uuid.New())
	require.ErrorIs(t, err, ErrReceiptNotFound)
}

func testDoubleSpend(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	store := newStore(t, clock.NewTestClock(testEpoch))

	key := ledger.SchemaAction().Key()

	_, err := store.AddReceipt(
		ctx, FeeReceipt(key, feeTxn("txo:a:1"), "{}"),
	)
	require.NoError(t, err)

	_, err = store.AddReceipt(
		ctx, FeeReceipt(key, feeTxn("txo:b:1", "txo:a:1"), "{}"),
	)
	require.ErrorIs(t, err, ErrSourceSpent)

	// The refused receipt left nothing behind.
	spent, err := store.IsSpent(ctx, "txo:b:1")
	require.NoError(t, err)
	require.False(t, spent)

	receipts, err := store.ListReceipts(ctx, ListReceiptsQuery{})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
}

func testList(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	testClock := clock.NewTestClock(testEpoch)
	store := newStore(t, testClock)

	key := ledger.CredDefAction().Key()

	first, err := store.AddReceipt(
		ctx, FeeReceipt(key, feeTxn("txo:1"), "{}"),
	)
	require.NoError(t, err)

	testClock.SetTime(testEpoch.Add(time.Minute))
	second, err := store.AddReceipt(
		ctx, TransferReceipt("pay:sov:payee", feeTxn("txo:2"), "{}"),
	)
	require.NoError(t, err)

	testClock.SetTime(testEpoch.Add(2 * time.Minute))
	third, err := store.AddReceipt(
		ctx, FeeReceipt(key, feeTxn("txo:3"), "{}"),
	)
	require.NoError(t, err)

	ids := func(receipts []Receipt) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(receipts))
		for _, r := range receipts {
			out = append(out, r.ID)
		}

		return out
	}

	all, err := store.ListReceipts(ctx, ListReceiptsQuery{})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, ids(all))
	require.Equal(t, []string{"txo:3"}, all[0].Txn.Inputs)

	fees, err := store.ListReceipts(ctx, ListReceiptsQuery{
		Kind: fn.Some(KindFee),
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{third.ID, first.ID}, ids(fees))

	latest, err := store.ListReceipts(ctx, ListReceiptsQuery{
		Kind:  fn.Some(KindFee),
		Limit: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{third.ID}, ids(latest))

	none, err := store.ListReceipts(ctx, ListReceiptsQuery{
		Kind: fn.Some(ReceiptKind("refund")),
	})
	require.NoError(t, err)
	require.Empty(t, none)
	require.NotNil(t, none)
}

func testInvalid(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	store := newStore(t, nil)

	tests := []struct {
		name    string
		params  AddReceiptParams
		wantErr error
	}{
		{
			name:    "fee without action",
			params:  FeeReceipt("", feeTxn("txo:x"), "{}"),
			wantErr: ErrInvalidReceipt,
		},
		{
			name: "transfer without payee",
			params: TransferReceipt(
				"", feeTxn("txo:x"), "{}",
			),
			wantErr: ErrInvalidReceipt,
		},
		{
			name:    "unknown kind",
			params:  AddReceiptParams{Kind: "refund"},
			wantErr: ErrInvalidReceipt,
		},
		{
			name: "amount overflow",
			params: TransferReceipt("pay:sov:payee",
				wallet.PaymentTxn{
					Amount: ^tokenunit.Amount(0),
				}, "{}"),
			wantErr: ErrCastingOverflow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.AddReceipt(ctx, tc.params)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
