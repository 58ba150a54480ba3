// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// JSON-RPC methods served by a ledger access node.
const (
	methodSubmitRequest     = "submit_request"
	methodGetSources        = "get_payment_sources"
	methodAddRequestFees    = "add_request_fees"
	methodParseFeeResponse  = "parse_response_with_fees"
	methodBuildPaymentReq   = "build_payment_req"
	methodGetAuthRule       = "get_auth_rule"
	methodGetTxnFees        = "get_txn_fees"
	defaultRPCPaymentMethod = "sov"
)

var (
	// ErrMissingRPCHost is returned when no ledger access node is
	// configured.
	ErrMissingRPCHost = errors.New("ledger rpc host not set")
)

// RPCConfig holds the connection settings of a ledger access node.
type RPCConfig struct {
	// Host is the host:port of the node.
	Host string

	// User and Pass authenticate against the node.
	User string
	Pass string

	// Certificates is the PEM encoded TLS certificate of the node. It is
	// ignored when DisableTLS is set.
	Certificates []byte

	// DisableTLS talks plain HTTP to the node.
	DisableTLS bool
}

// validate checks the config is usable.
func (c *RPCConfig) validate() error {
	if c.Host == "" {
		return ErrMissingRPCHost
	}

	return nil
}

// RPCLedger is a Ledger backed by a JSON-RPC ledger access node. Every call is
// a single HTTP POST; nothing is retried at this layer.
type RPCLedger struct {
	client *rpcclient.Client
}

// A compile-time assertion to ensure RPCLedger satisfies the Ledger
// interface.
var _ Ledger = (*RPCLedger)(nil)

// NewRPCLedger creates a client for the ledger access node described by cfg.
func NewRPCLedger(cfg *RPCConfig) (*RPCLedger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		Certificates: cfg.Certificates,
		DisableTLS:   cfg.DisableTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create ledger rpc client: %w",
			err)
	}

	log.Infof("Using ledger access node at %s", cfg.Host)

	return &RPCLedger{client: client}, nil
}

// Stop shuts the underlying client down.
func (r *RPCLedger) Stop() {
	r.client.Shutdown()
	r.client.WaitForShutdown()
}

// rpcResult carries the outcome of an asynchronous request.
type rpcResult struct {
	resp json.RawMessage
	err  error
}

// call performs a JSON-RPC request, abandoning it when ctx is done. Error
// replies from the node are returned as *RejectedError.
func (r *RPCLedger) call(ctx context.Context, method string,
	params ...any) (json.RawMessage, error) {

	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("unable to encode %s params: %w",
				method, err)
		}
		rawParams = append(rawParams, raw)
	}

	future := r.client.RawRequestAsync(method, rawParams)

	done := make(chan rpcResult, 1)
	go func() {
		resp, err := future.Receive()
		done <- rpcResult{resp: resp, err: err}
	}()

	var res rpcResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case res = <-done:
	}

	var rpcErr *btcjson.RPCError
	switch {
	case errors.As(res.err, &rpcErr):
		log.Debugf("Ledger call %s failed with code %d: %s", method,
			rpcErr.Code, rpcErr.Message)

		return nil, newCodeError(int(rpcErr.Code), rpcErr.Message)

	case res.err != nil:
		return nil, fmt.Errorf("ledger rpc %s: %w", method, res.err)
	}

	log.Tracef("Ledger call %s returned %v", method, spewDump(res.resp))

	return res.resp, nil
}

// asText returns a reply as plain text. Replies may be either a JSON string
// holding a document or the document itself.
func asText(raw json.RawMessage) (string, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}

		return s, nil
	}

	return string(raw), nil
}

// Submit sends req to the ledger.
func (r *RPCLedger) Submit(ctx context.Context, req string) (string, error) {
	raw, err := r.call(ctx, methodSubmitRequest, req)
	if err != nil {
		return "", err
	}

	return asText(raw)
}

// sourcesReply is the result of get_payment_sources.
type sourcesReply struct {
	Sources []Source `json:"sources"`
	Next    *int64   `json:"next"`
}

// GetSourcesPage fetches one page of sources for address.
func (r *RPCLedger) GetSourcesPage(ctx context.Context, identity,
	address string, from fn.Option[int64]) (SourcesPage, error) {

	raw, err := r.call(
		ctx, methodGetSources, identity, address, optionToPtr(from),
	)
	if err != nil {
		return SourcesPage{}, err
	}

	var reply sourcesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return SourcesPage{}, fmt.Errorf("%w: %w", ErrMalformedResponse,
			err)
	}

	return SourcesPage{
		Sources: reply.Sources,
		Next:    fn.OptionFromPtr(reply.Next),
	}, nil
}

// requestReply is the result of the request builders.
type requestReply struct {
	Request string `json:"request"`
	Method  string `json:"method"`
}

// decodeRequestReply decodes a builder reply, defaulting the payment method.
func decodeRequestReply(raw json.RawMessage) (string, string, error) {
	var reply requestReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if reply.Request == "" {
		return "", "", fmt.Errorf("%w: empty request",
			ErrMalformedResponse)
	}

	if reply.Method == "" {
		reply.Method = defaultRPCPaymentMethod
	}

	return reply.Request, reply.Method, nil
}

// AttachFees asks the node to add fee inputs and outputs to req.
func (r *RPCLedger) AttachFees(ctx context.Context, identity, req string,
	inputs []string, outputs []Output) (string, string, error) {

	raw, err := r.call(
		ctx, methodAddRequestFees, identity, req, inputs, outputs, nil,
	)
	if err != nil {
		return "", "", err
	}

	return decodeRequestReply(raw)
}

// ParseFeeResponse asks the node to extract the fee receipts from resp.
func (r *RPCLedger) ParseFeeResponse(ctx context.Context, method,
	resp string) (string, error) {

	raw, err := r.call(ctx, methodParseFeeResponse, method, resp)
	if err != nil {
		return "", err
	}

	return asText(raw)
}

// BuildTransferRequest asks the node to build a transfer request.
func (r *RPCLedger) BuildTransferRequest(ctx context.Context,
	identity string, inputs []string, outputs []Output,
	extra fn.Option[string]) (string, string, error) {

	raw, err := r.call(
		ctx, methodBuildPaymentReq, identity, inputs, outputs,
		optionToPtr(extra),
	)
	if err != nil {
		return "", "", err
	}

	return decodeRequestReply(raw)
}

// GetAuthRule fetches the constraint the ledger enforces for action. A
// not-found reply, or a null result, yields None.
func (r *RPCLedger) GetAuthRule(ctx context.Context, identity string,
	action Action) (fn.Option[AuthRule], error) {

	raw, err := r.call(
		ctx, methodGetAuthRule, identity, action.AuthType,
		action.AuthAction, action.Field, optionToPtr(action.OldValue),
		optionToPtr(action.NewValue),
	)
	switch {
	case HasCode(err, CodeNotFound):
		log.Debugf("No auth rule for %s", action.Key())
		return fn.None[AuthRule](), nil

	case err != nil:
		return fn.None[AuthRule](), err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return fn.None[AuthRule](), nil
	}

	constraint, err := ParseConstraint(raw)
	if err != nil {
		return fn.None[AuthRule](), err
	}

	return fn.Some(AuthRule{Action: action, Constraint: constraint}), nil
}

// GetFeeSchedule fetches the current fee schedule.
func (r *RPCLedger) GetFeeSchedule(ctx context.Context, identity,
	method string) (FeeSchedule, error) {

	raw, err := r.call(ctx, methodGetTxnFees, identity, method)
	if err != nil {
		return nil, err
	}

	var fees FeeSchedule
	if err := json.Unmarshal(raw, &fees); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return fees, nil
}
