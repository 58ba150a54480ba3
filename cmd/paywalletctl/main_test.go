package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/wallet"
	"github.com/stretchr/testify/require"
)

// runMock runs paywalletctl against the demo ledger with a receipt journal
// in dir and returns what the command printed.
func runMock(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	base := []string{
		"--mock",
		"--appdata", dir,
		"--maxlogfiles", "0",
		"--db.sqlitepath", filepath.Join(dir, "receipts.db"),
	}

	var out bytes.Buffer
	err := run(append(base, args...), &out)

	return out.String(), err
}

// TestRunBalance checks the demo wallet balance is printed.
func TestRunBalance(t *testing.T) {
	out, err := runMock(t, t.TempDir(), "balance")
	require.NoError(t, err)

	var info wallet.WalletInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.EqualValues(t, 6, info.Balance)
	require.Len(t, info.Addresses, 2)
}

// TestRunPrice checks prices are resolved by action name and descriptor.
func TestRunPrice(t *testing.T) {
	dir := t.TempDir()

	out, err := runMock(t, dir, "price", "--action", "schema")
	require.NoError(t, err)
	require.JSONEq(t, `{"price":2}`, out)

	out, err = runMock(t, dir, "price", "--action", "creddef",
		"--requirements")
	require.NoError(t, err)
	require.JSONEq(t, `{"price":42,"requirements":[{"role":"0",`+
		`"sig_count":1,"need_to_be_owner":false,`+
		`"off_ledger_signature":false}]}`, out)

	_, err = runMock(t, dir, "price", "--action", "nym")
	require.ErrorIs(t, err, errUnknownAction)
}

// TestRunPayAndReceipts checks a payment is journaled and listed.
func TestRunPayAndReceipts(t *testing.T) {
	dir := t.TempDir()
	payee := ledger.FixtureAddress("sov", "payee")

	out, err := runMock(t, dir, "pay", "--amount", "1", "--payee", payee)
	require.NoError(t, err)

	var paid struct {
		Payment wallet.PaymentTxn `json:"payment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &paid))
	require.EqualValues(t, 1, paid.Payment.Amount)
	require.Len(t, paid.Payment.Inputs, 1)

	out, err = runMock(t, dir, "receipts", "--kind", "transfer")
	require.NoError(t, err)

	var receipts []receiptJSON
	require.NoError(t, json.Unmarshal([]byte(out), &receipts))
	require.Len(t, receipts, 1)
	require.Equal(t, payee, receipts[0].Payee)
	require.Equal(t, paid.Payment, receipts[0].Payment)

	out, err = runMock(t, dir, "receipts", "--id", receipts[0].ID)
	require.NoError(t, err)

	var single receiptJSON
	require.NoError(t, json.Unmarshal([]byte(out), &single))
	require.Equal(t, receipts[0], single)
}

// TestRunPayTwice checks a second --mock run does not reuse the sources the
// journal records as spent.
func TestRunPayTwice(t *testing.T) {
	dir := t.TempDir()
	payee := ledger.FixtureAddress("sov", "payee")

	var inputs []string
	for range 2 {
		out, err := runMock(
			t, dir, "pay", "--amount", "1", "--payee", payee,
		)
		require.NoError(t, err)

		var paid struct {
			Payment wallet.PaymentTxn `json:"payment"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &paid))
		require.Len(t, paid.Payment.Inputs, 1)

		inputs = append(inputs, paid.Payment.Inputs[0])
	}
	require.NotEqual(t, inputs[0], inputs[1])

	out, err := runMock(t, dir, "receipts", "--kind", "transfer")
	require.NoError(t, err)

	var receipts []receiptJSON
	require.NoError(t, json.Unmarshal([]byte(out), &receipts))
	require.Len(t, receipts, 2)

	// Both spends came from the first address, its 1 and 2 token
	// sources, and neither is counted again.
	out, err = runMock(t, dir, "balance")
	require.NoError(t, err)

	var info wallet.WalletInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.EqualValues(t, 3, info.Balance)
}

// TestRunSubmit checks a paid write is submitted and its fee journaled.
func TestRunSubmit(t *testing.T) {
	dir := t.TempDir()

	reqFile := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(reqFile, []byte(`{"operation":`+
		`{"type":"101","data":{"name":"gvt"}},"identifier":"`+
		mockIdentity+`"}`), 0600))

	out, err := runMock(t, dir, "submit", "--action", "schema",
		"--request", reqFile)
	require.NoError(t, err)

	var submitted struct {
		Payment  *wallet.PaymentTxn `json:"payment"`
		Response json.RawMessage    `json:"response"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &submitted))
	require.NotNil(t, submitted.Payment)
	require.EqualValues(t, 2, submitted.Payment.Amount)
	require.JSONEq(
		t, ledger.FixtureSubmitResponse, string(submitted.Response),
	)

	out, err = runMock(t, dir, "receipts", "--kind", "fee")
	require.NoError(t, err)

	var receipts []receiptJSON
	require.NoError(t, json.Unmarshal([]byte(out), &receipts))
	require.Len(t, receipts, 1)
	require.Equal(t, ledger.SchemaAction().Key(), receipts[0].Action)
}

// TestRunNoJournal checks receipt commands fail without a journal.
func TestRunNoJournal(t *testing.T) {
	_, err := runMock(t, t.TempDir(), "--db.backend", "none", "receipts")
	require.ErrorIs(t, err, errNoJournal)
}

// TestRunImportIdentityMock checks key store commands refuse the demo
// signer.
func TestRunImportIdentityMock(t *testing.T) {
	_, err := runMock(t, t.TempDir(), "importidentity", "--seed", "s")
	require.ErrorIs(t, err, errNoKeyStore)
}

// TestRunSignVerify checks signatures round trip through the hex encoding.
func TestRunSignVerify(t *testing.T) {
	dir := t.TempDir()
	addr := ledger.FixtureAddresses("sov")[0]

	sig, err := runMock(t, dir, "sign", "--address", addr, "--msg", "hi")
	require.NoError(t, err)

	out, err := runMock(t, dir, "verify", "--address", addr, "--msg", "hi",
		"--sig", string(bytes.TrimSpace([]byte(sig))))
	require.NoError(t, err)
	require.JSONEq(t, `{"valid":true}`, out)
}
