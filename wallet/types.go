// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
)

type (
	// Source is an unspent token output of a payment address.
	Source = ledger.Source

	// Output is a token output created by a transaction.
	Output = ledger.Output

	// FeeSchedule maps a transaction type or fee alias to its price.
	FeeSchedule = ledger.FeeSchedule
)

// AddressInfo is the balance and sources of a single payment address at the
// time it was queried.
type AddressInfo struct {
	Address string           `json:"address"`
	Balance tokenunit.Amount `json:"balance"`
	Sources []Source         `json:"utxo"`
}

// WalletInfo is the balance of every payment address of the wallet that
// belongs to the configured payment method.
type WalletInfo struct {
	Balance   tokenunit.Amount
	Addresses []AddressInfo
}

// walletInfoJSON is the wire representation of WalletInfo.
type walletInfoJSON struct {
	Balance    tokenunit.Amount `json:"balance"`
	BalanceStr string           `json:"balance_str"`
	Addresses  []AddressInfo    `json:"addresses"`
}

// MarshalJSON implements json.Marshaler. The balance is also rendered as a
// string for consumers that cannot represent 64-bit integers.
func (w WalletInfo) MarshalJSON() ([]byte, error) {
	addrs := w.Addresses
	if addrs == nil {
		addrs = []AddressInfo{}
	}

	return json.Marshal(walletInfoJSON{
		Balance:    w.Balance,
		BalanceStr: w.Balance.String(),
		Addresses:  addrs,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *WalletInfo) UnmarshalJSON(data []byte) error {
	var raw walletInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.BalanceStr != "" && raw.BalanceStr != raw.Balance.String() {
		return fmt.Errorf("balance %d does not match balance_str %q",
			raw.Balance, raw.BalanceStr)
	}

	*w = WalletInfo{
		Balance:   raw.Balance,
		Addresses: raw.Addresses,
	}

	return nil
}

// PaymentTxn is the receipt of a payment the wallet made.
type PaymentTxn struct {
	// Amount is the price paid, or the amount sent to a payee.
	Amount tokenunit.Amount `json:"amount"`

	// Credit is true for inbound payments. The engine only produces
	// outbound ones.
	Credit bool `json:"credit"`

	// Inputs are the references of the spent sources.
	Inputs []string `json:"inputs"`

	// Outputs are the created outputs, change first.
	Outputs []Output `json:"outputs"`
}

// newPaymentTxn builds an outbound receipt.
func newPaymentTxn(amount tokenunit.Amount, inputs []string,
	outputs []Output) PaymentTxn {

	if outputs == nil {
		outputs = []Output{}
	}

	return PaymentTxn{
		Amount:  amount,
		Credit:  false,
		Inputs:  inputs,
		Outputs: outputs,
	}
}

// RequestInfo is the price of an action for a requester along with the
// constraints that made it payable.
type RequestInfo struct {
	Price        tokenunit.Amount `json:"price"`
	Requirements []Requirement    `json:"requirements"`
}

// Requirement is a satisfied ROLE constraint.
type Requirement struct {
	Role               string `json:"role"`
	SigCount           uint32 `json:"sig_count"`
	NeedToBeOwner      bool   `json:"need_to_be_owner"`
	OffLedgerSignature bool   `json:"off_ledger_signature"`
}
