package wallet

import (
	"context"
	"fmt"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Pay transfers amount tokens to payee. The wallet funds the amount plus the
// price of a transfer, sends the change back to the refund address and the
// amount to payee. When an agreement source is configured its acceptance
// metadata is attached to the transfer.
func (e *Engine) Pay(ctx context.Context, amount tokenunit.Amount,
	payee string) (*PaymentTxn, string, error) {

	if payee == "" {
		return nil, "", ErrEmptyPayee
	}

	if _, err := e.paymentMethod(); err != nil {
		return nil, "", err
	}

	log.Debugf("Sending %v tokens to %s", amount, payee)

	transferPrice, err := e.ResolvePrice(
		ctx, ledger.TransferAction(), fn.None[RequesterProfile](),
	)
	if err != nil {
		return nil, "", err
	}

	total, err := amount.Add(transferPrice)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}

	sel, err := e.SelectInputs(ctx, total)
	if err != nil {
		return nil, "", err
	}

	outputs := BuildOutputs(
		sel.Remainder, sel.RefundAddress, fn.Some(payee), fn.Some(amount),
	)

	extra, err := e.transferExtra(ctx)
	if err != nil {
		return nil, "", err
	}

	req, _, err := e.cfg.Ledger.BuildTransferRequest(
		ctx, e.cfg.Identity, sel.Inputs, outputs, extra,
	)
	if err != nil {
		return nil, "", fmt.Errorf("unable to build transfer: %w", err)
	}

	resp, err := e.submit(ctx, req)
	if err != nil {
		return nil, "", err
	}

	txn := newPaymentTxn(amount, sel.Inputs, outputs)

	log.Infof("Sent %v tokens to %s (transfer price %v)", amount, payee,
		transferPrice)

	return &txn, resp, nil
}
