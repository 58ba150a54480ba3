// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Address ids of the fixture wallet.
const (
	FixtureAddressA   = "9UFgyjuJxi1i1HD"
	FixtureAddressB   = "zR3GN9lfbCVtHjp"
	FixtureNewAddress = "J81AxU9hVHYFtJc"
)

// FixtureSubmitResponse is the reply the fixture ledger returns for every
// submitted request.
const FixtureSubmitResponse = `{"op":"REPLY","result":{"txn":` +
	`{"type":"101","data":{"data":{"name":"fixture","version":"1.0",` +
	`"attr_names":["name"]}}},"txnMetadata":{"seqNo":1}}}`

// FixtureAddress builds a fixture payment address for method.
func FixtureAddress(method, id string) string {
	return MethodPrefix(method) + ":" + id
}

// FixtureAddresses returns the two addresses owned by the fixture wallet.
func FixtureAddresses(method string) []string {
	return []string{
		FixtureAddress(method, FixtureAddressA),
		FixtureAddress(method, FixtureAddressB),
	}
}

// DefaultFees returns the fee schedule served by the fixture ledger.
func DefaultFees() FeeSchedule {
	return FeeSchedule{
		"0": 0, "1": 0, "3": 0, "100": 0,
		"101": 2, "102": 42, "103": 0, "104": 0, "105": 0,
		"107": 0, "108": 0, "109": 0, "110": 0, "111": 0, "112": 0,
		"113": 2, "114": 2, "115": 0, "116": 0, "117": 0, "118": 0,
		"119": 0, "10001": 0,
	}
}

// DefaultAuthRules returns the auth rules served by the fixture ledger,
// keyed by Action.Key.
func DefaultAuthRules() map[string]AuthRule {
	rules := make(map[string]AuthRule)
	add := func(a Action, c Constraint) {
		rules[a.Key()] = AuthRule{Action: a, Constraint: c}
	}

	add(SchemaAction(), RoleConstraint("0", 1, TxnTypeSchema))
	add(CredDefAction(), RoleConstraint("0", 1, TxnTypeCredDef))
	add(RevRegDefAction(), RoleConstraint("0", 1, TxnTypeRevRegDef))
	add(RevRegEntryAction(), RoleConstraint("0", 1, TxnTypeRevRegEntry))
	add(TransferAction(), RoleConstraint(AnyRole, 0, TxnTypeTransfer))

	return rules
}

// fixtureSources returns the two sources, 1 and 2 tokens, held by a fixture
// address.
func fixtureSources(address string) []Source {
	return []Source{
		{
			Ref:            fn.Some("txo:" + address + ":1"),
			PaymentAddress: address,
			Amount:         1,
			Extra:          fn.Some("yqeiv5SisTeUGkw"),
		},
		{
			Ref:            fn.Some("txo:" + address + ":2"),
			PaymentAddress: address,
			Amount:         2,
			Extra:          fn.Some("Lu1pdm7BuAN2WNi"),
		},
	}
}

// FixtureLedger is a deterministic in-memory Ledger. It serves fixed sources,
// auth rules and fees, and records every request it is handed.
type FixtureLedger struct {
	method string

	mu sync.Mutex

	// pages holds the source pages per address.
	pages map[string][][]Source

	rules map[string]AuthRule
	fees  FeeSchedule

	submitResp string

	submitted []string
	transfers []string
}

// A compile-time assertion to ensure FixtureLedger satisfies the Ledger
// interface.
var _ Ledger = (*FixtureLedger)(nil)

// NewFixtureLedger returns a fixture ledger for the given payment method
// holding the fixture wallet: two addresses with sources of 1 and 2 tokens.
func NewFixtureLedger(method string) *FixtureLedger {
	pages := make(map[string][][]Source)
	for _, addr := range FixtureAddresses(method) {
		pages[addr] = [][]Source{fixtureSources(addr)}
	}

	return &FixtureLedger{
		method:     method,
		pages:      pages,
		rules:      DefaultAuthRules(),
		fees:       DefaultFees(),
		submitResp: FixtureSubmitResponse,
	}
}

// SetSourcePages replaces the source pages served for address.
func (f *FixtureLedger) SetSourcePages(address string, pages ...[]Source) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pages[address] = pages
}

// SetAuthRule installs or replaces the rule for action.
func (f *FixtureLedger) SetAuthRule(action Action, c Constraint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules[action.Key()] = AuthRule{Action: action, Constraint: c}
}

// RemoveAuthRule deletes the rule for action.
func (f *FixtureLedger) RemoveAuthRule(action Action) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.rules, action.Key())
}

// SetFees replaces the fee schedule.
func (f *FixtureLedger) SetFees(fees FeeSchedule) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fees = maps.Clone(fees)
}

// SetSubmitResponse replaces the reply returned by Submit.
func (f *FixtureLedger) SetSubmitResponse(resp string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitResp = resp
}

// Submitted returns the requests handed to Submit so far.
func (f *FixtureLedger) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.submitted...)
}

// Transfers returns the transfer requests built so far.
func (f *FixtureLedger) Transfers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.transfers...)
}

// SourceRefs returns the refs of every source the fixture currently serves.
func (f *FixtureLedger) SourceRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var refs []string
	for _, pages := range f.pages {
		for _, page := range pages {
			for _, src := range page {
				src.Ref.WhenSome(func(ref string) {
					refs = append(refs, ref)
				})
			}
		}
	}

	return refs
}

// Spend removes the sources with the given refs, as the ledger does once a
// request spending them is accepted. Unknown refs are ignored.
func (f *FixtureLedger) Spend(refs ...string) {
	spent := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		spent[ref] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for addr, pages := range f.pages {
		kept := make([][]Source, 0, len(pages))
		for _, page := range pages {
			var left []Source
			for _, src := range page {
				_, isSpent := spent[src.Ref.UnwrapOr("")]
				if src.Ref.IsSome() && isSpent {
					continue
				}
				left = append(left, src)
			}
			kept = append(kept, left)
		}
		f.pages[addr] = kept
	}
}

// Submit records req and returns the configured reply.
func (f *FixtureLedger) Submit(_ context.Context, req string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, req)

	return f.submitResp, nil
}

// GetSourcesPage serves the configured pages. The cursor is the index of the
// page to return.
func (f *FixtureLedger) GetSourcesPage(_ context.Context, _ string,
	address string, from fn.Option[int64]) (SourcesPage, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	pages := f.pages[address]
	idx := from.UnwrapOr(0)

	if idx < 0 || (idx > 0 && idx >= int64(len(pages))) {
		return SourcesPage{}, newCodeError(CodeInvalidTransaction,
			fmt.Sprintf("unknown sources cursor %d", idx))
	}

	if len(pages) == 0 {
		return SourcesPage{Next: fn.None[int64]()}, nil
	}

	page := SourcesPage{
		Sources: append([]Source(nil), pages[idx]...),
		Next:    fn.None[int64](),
	}
	if idx+1 < int64(len(pages)) {
		page.Next = fn.Some(idx + 1)
	}

	return page, nil
}

// fixtureFees is the fee section appended to requests by AttachFees.
type fixtureFees struct {
	Inputs  []string `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// AttachFees embeds the inputs and outputs under a "fees" key of req.
func (f *FixtureLedger) AttachFees(_ context.Context, _ string, req string,
	inputs []string, outputs []Output) (string, string, error) {

	var body map[string]json.RawMessage
	err := json.Unmarshal([]byte(req), &body)
	if err != nil || body == nil {
		return "", "", newCodeError(CodeInvalidTransaction,
			"request is not a JSON object")
	}

	fees, err := json.Marshal(fixtureFees{
		Inputs:  inputs,
		Outputs: outputs,
	})
	if err != nil {
		return "", "", err
	}
	body["fees"] = fees

	withFees, err := json.Marshal(body)
	if err != nil {
		return "", "", err
	}

	return string(withFees), f.method, nil
}

// ParseFeeResponse returns an empty receipt list for every reply.
func (f *FixtureLedger) ParseFeeResponse(_ context.Context, method,
	_ string) (string, error) {

	if method != f.method {
		return "", newCodeError(CodeInvalidTransaction,
			fmt.Sprintf("unknown payment method %q", method))
	}

	return "[]", nil
}

// fixtureTransfer is the request built by BuildTransferRequest.
type fixtureTransfer struct {
	Operation struct {
		Type    string   `json:"type"`
		Inputs  []string `json:"inputs"`
		Outputs []Output `json:"outputs"`
		Extra   *string  `json:"extra,omitempty"`
	} `json:"operation"`
	Identifier string `json:"identifier"`
}

// BuildTransferRequest builds and records a transfer request.
func (f *FixtureLedger) BuildTransferRequest(_ context.Context,
	identity string, inputs []string, outputs []Output,
	extra fn.Option[string]) (string, string, error) {

	var t fixtureTransfer
	t.Operation.Type = TxnTypeTransfer
	t.Operation.Inputs = inputs
	t.Operation.Outputs = outputs
	t.Operation.Extra = optionToPtr(extra)
	t.Identifier = identity

	req, err := json.Marshal(t)
	if err != nil {
		return "", "", err
	}

	f.mu.Lock()
	f.transfers = append(f.transfers, string(req))
	f.mu.Unlock()

	return string(req), f.method, nil
}

// GetAuthRule returns the configured rule for action, or None.
func (f *FixtureLedger) GetAuthRule(_ context.Context, _ string,
	action Action) (fn.Option[AuthRule], error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	rule, ok := f.rules[action.Key()]
	if !ok {
		return fn.None[AuthRule](), nil
	}

	return fn.Some(rule), nil
}

// GetFeeSchedule returns a copy of the configured fee schedule.
func (f *FixtureLedger) GetFeeSchedule(_ context.Context, _ string,
	method string) (FeeSchedule, error) {

	if method != f.method {
		return nil, newCodeError(CodeInvalidTransaction,
			fmt.Sprintf("unknown payment method %q", method))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return maps.Clone(f.fees), nil
}
