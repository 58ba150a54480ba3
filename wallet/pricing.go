// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// noRole is how a missing role is spelled by older ledgers and configs.
const noRole = "null"

// Pricer resolves how much the ledger charges for an action.
type Pricer interface {
	// FeeSchedule returns the current fee schedule.
	FeeSchedule(ctx context.Context) (FeeSchedule, error)

	// ResolvePrice returns the price of action for requester. When no
	// requester is given the configured identity is used.
	ResolvePrice(ctx context.Context, action ledger.Action,
		requester fn.Option[RequesterProfile]) (tokenunit.Amount, error)

	// RequestPrice is ResolvePrice for JSON encoded arguments.
	RequestPrice(ctx context.Context, actionJSON string,
		requesterJSON fn.Option[string]) (tokenunit.Amount, error)
}

// A compile time check to ensure that Engine implements the interface.
var _ Pricer = (*Engine)(nil)

// RequesterProfile describes who performs a ledger write.
type RequesterProfile struct {
	// Role is the ledger role of the requester. None means no role.
	Role fn.Option[string]

	// SigCount is the number of signatures on the request.
	SigCount uint32

	// IsOwner is true when the requester owns the object written.
	IsOwner bool

	// IsOffLedgerSignature is true when the requester is not on the
	// ledger.
	IsOffLedgerSignature bool
}

// DefaultRequester returns the profile used when the caller does not give
// one: a single owner signature made by an on-ledger identity.
func DefaultRequester(role fn.Option[string]) RequesterProfile {
	return RequesterProfile{
		Role:                 normalizeRole(role),
		SigCount:             1,
		IsOwner:              true,
		IsOffLedgerSignature: false,
	}
}

// normalizeRole maps the "null" and empty spellings of a missing role to
// None.
func normalizeRole(role fn.Option[string]) fn.Option[string] {
	return fn.MapOptionZ(role, func(r string) fn.Option[string] {
		if r == "" || r == noRole {
			return fn.None[string]()
		}

		return fn.Some(r)
	})
}

// requesterJSON is the wire representation of a RequesterProfile.
type requesterJSON struct {
	Role                 *string `json:"role"`
	SigCount             uint32  `json:"sig_count"`
	IsOwner              bool    `json:"is_owner"`
	IsOffLedgerSignature bool    `json:"is_off_ledger_signature"`
}

// MarshalJSON implements json.Marshaler.
func (r RequesterProfile) MarshalJSON() ([]byte, error) {
	w := requesterJSON{
		SigCount:             r.SigCount,
		IsOwner:              r.IsOwner,
		IsOffLedgerSignature: r.IsOffLedgerSignature,
	}
	r.Role.WhenSome(func(role string) {
		w.Role = &role
	})

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RequesterProfile) UnmarshalJSON(data []byte) error {
	var w requesterJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = RequesterProfile{
		Role:                 normalizeRole(fn.OptionFromPtr(w.Role)),
		SigCount:             w.SigCount,
		IsOwner:              w.IsOwner,
		IsOffLedgerSignature: w.IsOffLedgerSignature,
	}

	return nil
}

// ResolvePrice returns the price of action for requester.
func (e *Engine) ResolvePrice(ctx context.Context, action ledger.Action,
	requester fn.Option[RequesterProfile]) (tokenunit.Amount, error) {

	info, err := e.ResolveRequestInfo(ctx, action, requester)
	if err != nil {
		return 0, err
	}

	return info.Price, nil
}

// ResolveRequestInfo returns the price of action for requester together
// with the constraints the requester satisfied. An action the ledger has no
// auth rule for is free.
func (e *Engine) ResolveRequestInfo(ctx context.Context,
	action ledger.Action,
	requester fn.Option[RequesterProfile]) (*RequestInfo, error) {

	rule, err := e.cfg.Ledger.GetAuthRule(ctx, e.cfg.Identity, action)
	if err != nil {
		return nil, fmt.Errorf("%w: auth rule for %s: %w",
			ErrPricingUnavailable, action.Key(), err)
	}

	if rule.IsNone() {
		log.Debugf("No auth rule for %s, action is free", action.Key())

		return &RequestInfo{Requirements: []Requirement{}}, nil
	}

	fees, err := e.FeeSchedule(ctx)
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return nil, err

	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrPricingUnavailable, err)
	}

	profile, err := e.requester(ctx, requester)
	if err != nil {
		return nil, err
	}

	constraint := rule.UnwrapOr(ledger.AuthRule{}).Constraint

	info, ok := evaluate(constraint, profile, fees)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequesterUnauthorized,
			action.Key())
	}

	log.Debugf("Action %s costs %v", action.Key(), info.Price)

	return &info, nil
}

// requester returns the given profile, or the default profile of the
// configured identity.
func (e *Engine) requester(ctx context.Context,
	requester fn.Option[RequesterProfile]) (RequesterProfile, error) {

	if requester.IsSome() {
		return requester.UnwrapOr(RequesterProfile{}), nil
	}

	role, err := e.role(ctx)
	if err != nil {
		return RequesterProfile{}, fmt.Errorf("unable to look up role "+
			"of %s: %w", e.cfg.Identity, err)
	}

	return DefaultRequester(role), nil
}

// RequestPrice decodes an action descriptor and an optional requester
// profile and returns the price.
func (e *Engine) RequestPrice(ctx context.Context, actionJSON string,
	requesterJSON fn.Option[string]) (tokenunit.Amount, error) {

	action, err := ledger.ParseAction(actionJSON)
	if err != nil {
		return 0, err
	}

	requester := fn.None[RequesterProfile]()
	if requesterJSON.IsSome() {
		var profile RequesterProfile
		err := json.Unmarshal(
			[]byte(requesterJSON.UnwrapOr("")), &profile,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidRequester, err)
		}
		requester = fn.Some(profile)
	}

	return e.ResolvePrice(ctx, action, requester)
}

// evaluate checks requester against a constraint tree. ROLE leaves charge
// the fee of their alias, OR picks the cheapest satisfied branch and AND
// requires every branch, charging the most expensive one.
func evaluate(c ledger.Constraint, r RequesterProfile,
	fees FeeSchedule) (RequestInfo, bool) {

	switch c.ID {
	case ledger.ConstraintRole:
		if !roleSatisfied(c, r) {
			return RequestInfo{}, false
		}

		return RequestInfo{
			Price: fees[c.Metadata.Fees],
			Requirements: []Requirement{{
				Role:               c.Role,
				SigCount:           c.SigCount,
				NeedToBeOwner:      c.NeedToBeOwner,
				OffLedgerSignature: c.OffLedgerSignature,
			}},
		}, true

	case ledger.ConstraintOr:
		var (
			best  RequestInfo
			found bool
		)
		for _, child := range c.Constraints {
			info, ok := evaluate(child, r, fees)
			if !ok {
				continue
			}

			if !found || info.Price < best.Price {
				best, found = info, true
			}
		}

		return best, found

	case ledger.ConstraintAnd:
		combined := RequestInfo{Requirements: []Requirement{}}
		for _, child := range c.Constraints {
			info, ok := evaluate(child, r, fees)
			if !ok {
				return RequestInfo{}, false
			}

			combined.Price = max(combined.Price, info.Price)
			combined.Requirements = append(
				combined.Requirements, info.Requirements...,
			)
		}

		return combined, len(c.Constraints) > 0
	}

	// FORBIDDEN and unknown nodes can never be satisfied.
	return RequestInfo{}, false
}

// roleSatisfied checks a requester against a single ROLE constraint.
func roleSatisfied(c ledger.Constraint, r RequesterProfile) bool {
	roleOK := c.Role == ledger.AnyRole ||
		fn.MapOptionZ(r.Role, func(role string) bool {
			return role == c.Role
		}) ||
		(r.Role.IsNone() && c.Role == "")

	switch {
	case !roleOK:
		return false

	case r.SigCount < c.SigCount:
		return false

	case c.NeedToBeOwner && !r.IsOwner:
		return false

	case r.IsOffLedgerSignature && !c.OffLedgerSignature:
		return false
	}

	return true
}
