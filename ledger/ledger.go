// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger defines the access layer used to talk to the permissioned
// ledger, along with a deterministic fixture and a JSON-RPC implementation.
package ledger

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Ledger is the ledger access layer used by the payment engine. Requests
// and responses are opaque JSON documents; only sources, outputs, auth
// rules and fee schedules are interpreted.
type Ledger interface {
	// Submit sends a signed request to the ledger and returns the raw
	// reply.
	Submit(ctx context.Context, req string) (string, error)

	// GetSourcesPage returns one page of the sources owned by address.
	// A None cursor requests the first page.
	GetSourcesPage(ctx context.Context, identity, address string,
		from fn.Option[int64]) (SourcesPage, error)

	// AttachFees adds the fee inputs and change outputs to req and
	// returns the new request together with the payment method that
	// must be used to parse the reply.
	AttachFees(ctx context.Context, identity, req string,
		inputs []string, outputs []Output) (string, string, error)

	// ParseFeeResponse extracts the fee receipts from the reply to a
	// request built with AttachFees.
	ParseFeeResponse(ctx context.Context, method,
		resp string) (string, error)

	// BuildTransferRequest builds a token transfer spending inputs into
	// outputs. It returns the request and its payment method.
	BuildTransferRequest(ctx context.Context, identity string,
		inputs []string, outputs []Output,
		extra fn.Option[string]) (string, string, error)

	// GetAuthRule returns the auth rule the ledger enforces for action.
	// None means the ledger has no rule for it.
	GetAuthRule(ctx context.Context, identity string,
		action Action) (fn.Option[AuthRule], error)

	// GetFeeSchedule returns the current fee schedule for the payment
	// method.
	GetFeeSchedule(ctx context.Context, identity,
		method string) (FeeSchedule, error)
}

// RequestSigner signs ledger requests on behalf of an identity.
type RequestSigner interface {
	// SignRequest returns req signed by identity.
	SignRequest(ctx context.Context, identity, req string) (string, error)
}

// SignAndSubmit signs req as identity, submits it and checks the reply for
// a rejection.
func SignAndSubmit(ctx context.Context, l Ledger, signer RequestSigner,
	identity, req string) (string, error) {

	signed, err := signer.SignRequest(ctx, identity, req)
	if err != nil {
		return "", err
	}

	log.Tracef("Submitting request for %s: %v", identity, spewDump(signed))

	resp, err := l.Submit(ctx, signed)
	if err != nil {
		return "", err
	}

	if err := CheckResponse(resp); err != nil {
		return "", err
	}

	return resp, nil
}
