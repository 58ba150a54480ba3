// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package paydb is the receipt journal of the payment wallet. It records
// every fee payment and transfer the engine completed, on SQLite or
// PostgreSQL.
package paydb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerpay/paywallet/wallet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ReceiptKind tells a fee payment apart from a transfer.
type ReceiptKind string

const (
	// KindFee is a ledger write paid with fees.
	KindFee ReceiptKind = "fee"

	// KindTransfer is a token payment to a payee.
	KindTransfer ReceiptKind = "transfer"
)

// Receipt is a stored payment.
type Receipt struct {
	ID   uuid.UUID
	Kind ReceiptKind

	// ActionKey is the auth rule key of the paid action, set for fee
	// receipts.
	ActionKey string

	// Payee is the recipient of a transfer.
	Payee string

	// Txn is the payment as returned by the engine.
	Txn wallet.PaymentTxn

	// Response is the raw ledger reply.
	Response string

	CreatedAt time.Time
}

// AddReceiptParams holds the fields of a new receipt.
type AddReceiptParams struct {
	Kind      ReceiptKind
	ActionKey string
	Payee     string
	Txn       wallet.PaymentTxn
	Response  string
}

// validate checks the mandatory fields of a new receipt.
func (p *AddReceiptParams) validate() error {
	switch p.Kind {
	case KindFee:
		if p.ActionKey == "" {
			return ErrInvalidReceipt
		}

	case KindTransfer:
		if p.Payee == "" {
			return ErrInvalidReceipt
		}

	default:
		return ErrInvalidReceipt
	}

	return nil
}

// ListReceiptsQuery filters ListReceipts.
type ListReceiptsQuery struct {
	// Kind restricts the result to one kind of receipt.
	Kind fn.Option[ReceiptKind]

	// Limit caps the number of receipts returned. Zero means no limit.
	Limit uint32
}

// ReceiptStore is the receipt journal.
type ReceiptStore interface {
	// AddReceipt stores a new receipt. A receipt spending a source that
	// an earlier receipt spent is refused with ErrSourceSpent.
	AddReceipt(ctx context.Context, params AddReceiptParams) (*Receipt,
		error)

	// GetReceipt fetches a receipt by id.
	GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error)

	// ListReceipts returns receipts, newest first.
	ListReceipts(ctx context.Context,
		query ListReceiptsQuery) ([]Receipt, error)

	// IsSpent reports whether a receipt spent the source ref.
	IsSpent(ctx context.Context, ref string) (bool, error)
}

// FeeReceipt returns the params recording a fee payment for action.
func FeeReceipt(actionKey string, txn wallet.PaymentTxn,
	response string) AddReceiptParams {

	return AddReceiptParams{
		Kind:      KindFee,
		ActionKey: actionKey,
		Txn:       txn,
		Response:  response,
	}
}

// TransferReceipt returns the params recording a transfer to payee.
func TransferReceipt(payee string, txn wallet.PaymentTxn,
	response string) AddReceiptParams {

	return AddReceiptParams{
		Kind:     KindTransfer,
		Payee:    payee,
		Txn:      txn,
		Response: response,
	}
}
