// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Submitter executes ledger writes and payments.
type Submitter interface {
	// SubmitWithFee submits a ledger write, paying the price of action
	// when there is one. The receipt is None when nothing was paid.
	SubmitWithFee(ctx context.Context, req string,
		action ledger.Action) (fn.Option[PaymentTxn], string, error)

	// Pay transfers amount tokens to payee.
	Pay(ctx context.Context, amount tokenunit.Amount,
		payee string) (*PaymentTxn, string, error)
}

// A compile time check to ensure that Engine implements the interface.
var _ Submitter = (*Engine)(nil)

// SubmitWithFee submits req, attaching fees when action has a price.
//
// Without a payment method, or when the action is free, the request is
// signed and submitted unmodified and no receipt is returned. Otherwise
// sources covering the price are selected, the change goes back to the
// refund address, and the signed request is submitted with the fees
// attached. Nothing is retried and a receipt is only returned once the
// ledger accepted the request and its fee response could be parsed.
func (e *Engine) SubmitWithFee(ctx context.Context, req string,
	action ledger.Action) (fn.Option[PaymentTxn], string, error) {

	none := fn.None[PaymentTxn]()

	if e.cfg.PaymentMethod.IsNone() {
		log.Debugf("No payment method configured, submitting %s "+
			"without fees", action.Key())

		resp, err := e.submitPlain(ctx, req)
		return none, resp, err
	}

	price, err := e.ResolvePrice(ctx, action, fn.None[RequesterProfile]())
	if err != nil {
		return none, "", err
	}

	if price == 0 {
		log.Debugf("Action %s is free, submitting without fees",
			action.Key())

		resp, err := e.submitPlain(ctx, req)
		return none, resp, err
	}

	log.Debugf("Action %s costs %v, attaching fees", action.Key(), price)

	sel, err := e.SelectInputs(ctx, price)
	if err != nil {
		return none, "", err
	}

	outputs := BuildOutputs(
		sel.Remainder, sel.RefundAddress, fn.None[string](),
		fn.None[tokenunit.Amount](),
	)

	resp, err := e.submitWithFees(ctx, req, sel.Inputs, outputs)
	if err != nil {
		return none, "", err
	}

	txn := newPaymentTxn(price, sel.Inputs, outputs)

	log.Infof("Paid %v for %s using %d inputs", price, action.Key(),
		len(sel.Inputs))

	return fn.Some(txn), resp, nil
}

// submitPlain signs and submits req as the configured identity.
func (e *Engine) submitPlain(ctx context.Context, req string) (string,
	error) {

	return ledger.SignAndSubmit(
		ctx, e.cfg.Ledger, e.cfg.Signer, e.cfg.Identity, req,
	)
}

// submitWithFees signs req, attaches the fee inputs and outputs, submits it
// and parses the fee part of the reply.
func (e *Engine) submitWithFees(ctx context.Context, req string,
	inputs []string, outputs []Output) (string, error) {

	signed, err := e.cfg.Signer.SignRequest(ctx, e.cfg.Identity, req)
	if err != nil {
		return "", fmt.Errorf("unable to sign request: %w", err)
	}

	withFees, method, err := e.cfg.Ledger.AttachFees(
		ctx, e.cfg.Identity, signed, inputs, outputs,
	)
	if err != nil {
		return "", fmt.Errorf("unable to attach fees: %w", err)
	}

	resp, err := e.submit(ctx, withFees)
	if err != nil {
		return "", err
	}

	receipts, err := e.cfg.Ledger.ParseFeeResponse(ctx, method, resp)
	if err != nil {
		return "", fmt.Errorf("%w: cannot parse fee response: %w",
			ErrInvalidResponse, err)
	}

	log.Tracef("Fee receipts: %v", spewDump(receipts))

	return resp, nil
}

// submit sends an already signed request and checks the reply. A ledger
// refusal for lack of funds also matches ErrInsufficientFunds.
func (e *Engine) submit(ctx context.Context, req string) (string, error) {
	resp, err := e.cfg.Ledger.Submit(ctx, req)
	if err == nil {
		err = ledger.CheckResponse(resp)
	}

	switch {
	case ledger.IsInsufficientFunds(err):
		return "", fmt.Errorf("%w: %w", ErrInsufficientFunds, err)

	case errors.Is(err, ledger.ErrMalformedResponse):
		return "", fmt.Errorf("%w: %w", ErrInvalidResponse, err)

	case err != nil:
		return "", err
	}

	return resp, nil
}
