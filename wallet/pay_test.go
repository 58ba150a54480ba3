package wallet

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const payee = "pay:sov:payee"

// transferOp is the operation of a transfer built by the fixture ledger.
type transferOp struct {
	Operation struct {
		Type    string   `json:"type"`
		Inputs  []string `json:"inputs"`
		Outputs []Output `json:"outputs"`
		Extra   *string  `json:"extra"`
	} `json:"operation"`
}

func decodeTransfer(t *testing.T, req string) transferOp {
	t.Helper()

	var op transferOp
	require.NoError(t, json.Unmarshal([]byte(req), &op))

	return op
}

// TestPay checks a payment spends enough sources for the amount plus the
// transfer price.
func TestPay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		transferFee tokenunit.Amount
		amount      tokenunit.Amount
		wantInputs  []string
		wantOutputs []Output
	}{
		{
			name:       "free transfer",
			amount:     3,
			wantInputs: []string{refA("1"), refA("2")},
			wantOutputs: []Output{
				{Recipient: payee, Amount: 3},
			},
		},
		{
			name:        "paid transfer with change",
			transferFee: 1,
			amount:      1,
			wantInputs:  []string{refA("1"), refA("2")},
			wantOutputs: []Output{
				{Recipient: addrB, Amount: 1},
				{Recipient: payee, Amount: 1},
			},
		},
		{
			name:        "whole balance",
			transferFee: 2,
			amount:      4,
			wantInputs: []string{
				refA("1"), refA("2"), refB("1"), refB("2"),
			},
			wantOutputs: []Output{
				{Recipient: payee, Amount: 4},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e, deps := newFixtureEngine(t)
			fees := ledger.DefaultFees()
			fees[ledger.TxnTypeTransfer] = tc.transferFee
			deps.ledger.SetFees(fees)

			txn, resp, err := e.Pay(
				context.Background(), tc.amount, payee,
			)
			require.NoError(t, err)
			require.Equal(t, ledger.FixtureSubmitResponse, resp)
			require.Equal(t, &PaymentTxn{
				Amount:  tc.amount,
				Inputs:  tc.wantInputs,
				Outputs: tc.wantOutputs,
			}, txn)

			transfers := deps.ledger.Transfers()
			require.Len(t, transfers, 1)

			op := decodeTransfer(t, transfers[0])
			require.Equal(t, ledger.TxnTypeTransfer, op.Operation.Type)
			require.Equal(t, tc.wantInputs, op.Operation.Inputs)
			require.Equal(t, tc.wantOutputs, op.Operation.Outputs)
			require.Nil(t, op.Operation.Extra)

			require.Equal(t, transfers, deps.ledger.Submitted())
		})
	}
}

// TestPayAgreement checks the accepted agreement travels in the transfer's
// extra field.
func TestPayAgreement(t *testing.T) {
	t.Parallel()

	acceptedAt := time.Unix(1700000000, 0)
	agreement := NewStaticAgreement(Agreement{
		Digest:    fn.Some("abcd"),
		Mechanism: "on_file",
	}, clock.NewTestClock(acceptedAt))

	e, deps := newFixtureEngine(t, func(cfg *Config) {
		cfg.Agreement = agreement
	})

	_, _, err := e.Pay(context.Background(), 1, payee)
	require.NoError(t, err)

	op := decodeTransfer(t, deps.ledger.Transfers()[0])
	require.NotNil(t, op.Operation.Extra)
	require.JSONEq(t, `{"taaAcceptance":{"mechanism":"on_file",`+
		`"taaDigest":"abcd","time":1699920000}}`, *op.Operation.Extra)
}

// TestPayErrors checks failures before and during submission.
func TestPayErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty payee", func(t *testing.T) {
		t.Parallel()

		e, deps := newFixtureEngine(t)

		_, _, err := e.Pay(ctx, 1, "")
		require.ErrorIs(t, err, ErrEmptyPayee)
		require.Empty(t, deps.ledger.Transfers())
	})

	t.Run("no payment method", func(t *testing.T) {
		t.Parallel()

		e, _ := newFixtureEngine(t, func(cfg *Config) {
			cfg.PaymentMethod = fn.None[string]()
		})

		_, _, err := e.Pay(ctx, 1, payee)
		require.ErrorIs(t, err, ErrConfigurationMissing)
	})

	t.Run("amount above balance", func(t *testing.T) {
		t.Parallel()

		e, deps := newFixtureEngine(t)

		_, _, err := e.Pay(ctx, 7, payee)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		require.Empty(t, deps.ledger.Transfers())
	})

	t.Run("fee pushes over balance", func(t *testing.T) {
		t.Parallel()

		e, deps := newFixtureEngine(t)
		fees := ledger.DefaultFees()
		fees[ledger.TxnTypeTransfer] = 1
		deps.ledger.SetFees(fees)

		_, _, err := e.Pay(ctx, 6, payee)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("amount overflow", func(t *testing.T) {
		t.Parallel()

		e, deps := newFixtureEngine(t)
		fees := ledger.DefaultFees()
		fees[ledger.TxnTypeTransfer] = 1
		deps.ledger.SetFees(fees)

		_, _, err := e.Pay(ctx, ^tokenunit.Amount(0), payee)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("invalid agreement", func(t *testing.T) {
		t.Parallel()

		e, deps := newFixtureEngine(t, func(cfg *Config) {
			cfg.Agreement = NewStaticAgreement(Agreement{
				Digest: fn.Some("abcd"),
			}, nil)
		})

		_, _, err := e.Pay(ctx, 1, payee)
		require.ErrorIs(t, err, ErrInvalidAgreement)
		require.Empty(t, deps.ledger.Transfers())
	})

	t.Run("build failure", func(t *testing.T) {
		t.Parallel()

		e, deps := newMockEngine(t)
		deps.ledger.On(
			"GetAuthRule", ctx, testIdentity,
			ledger.TransferAction(),
		).Return(fn.None[ledger.AuthRule](), nil).Once()
		deps.signer.On("ListPaymentAddresses", ctx).Return(
			[]string{addrA}, nil,
		).Once()
		deps.ledger.On(
			"GetSourcesPage", ctx, testIdentity, addrA,
			fn.None[int64](),
		).Return(sourcesPage(addrA, fn.None[int64](), 5), nil).Once()
		deps.ledger.On(
			"BuildTransferRequest", ctx, testIdentity,
			[]string{addrA + "#0"}, mock.Anything, fn.None[string](),
		).Return("", "", errLedger).Once()

		_, _, err := e.Pay(ctx, 2, payee)
		require.ErrorIs(t, err, errLedger)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		e, deps := newFixtureEngine(t)
		deps.ledger.SetSubmitResponse(
			`{"op":"REQNACK","reason":"source spent"}`,
		)

		txn, _, err := e.Pay(ctx, 1, payee)
		require.ErrorIs(t, err, ledger.ErrRejected)
		require.Nil(t, txn)
	})
}
