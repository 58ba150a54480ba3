// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"

	"github.com/ledgerpay/paywallet/pkg/tokenunit"
)

// Selection is the result of a coin selection pass.
type Selection struct {
	// Remainder is the selected amount in excess of the cost. It is
	// returned to RefundAddress as change.
	Remainder tokenunit.Amount

	// Inputs are the references of the selected sources in selection
	// order.
	Inputs []string

	// RefundAddress is the last address visited by the selection.
	RefundAddress string
}

// CoinSelector selects the sources that fund a payment.
type CoinSelector interface {
	// SelectInputs selects sources covering cost.
	SelectInputs(ctx context.Context, cost tokenunit.Amount) (*Selection,
		error)
}

// A compile time check to ensure that Engine implements the interface.
var _ CoinSelector = (*Engine)(nil)

// SelectInputs selects sources covering cost from a fresh WalletInfo.
//
// Selection is a greedy prefix over the wallet: addresses are visited in the
// order the signer lists them and sources in the order the ledger returns
// them. The refund address is set to every address visited, and the walk
// stops as soon as the accumulated amount covers the cost, even before the
// first source of a newly visited address. The result is deterministic for a
// given wallet state. ErrInsufficientFunds is returned when cost exceeds the
// wallet balance or when a selected source has no reference.
func (e *Engine) SelectInputs(ctx context.Context,
	cost tokenunit.Amount) (*Selection, error) {

	info, err := e.WalletInfo(ctx)
	if err != nil {
		return nil, err
	}

	return selectInputs(info, cost)
}

// selectInputs runs the selection over a wallet snapshot.
func selectInputs(info *WalletInfo, cost tokenunit.Amount) (*Selection,
	error) {

	if cost > info.Balance {
		return nil, fmt.Errorf("%w: cost %v exceeds balance %v",
			ErrInsufficientFunds, cost, info.Balance)
	}

	var (
		inputs      []string
		accumulated tokenunit.Amount
		refund      string
	)

addresses:
	for _, addr := range info.Addresses {
		refund = addr.Address

		for _, src := range addr.Sources {
			if accumulated >= cost {
				break addresses
			}

			ref, err := src.Ref.UnwrapOrErr(fmt.Errorf("%w: source "+
				"of %s has no reference", ErrInsufficientFunds,
				addr.Address))
			if err != nil {
				return nil, err
			}

			inputs = append(inputs, ref)

			// The balance check above bounds the sum.
			accumulated += src.Amount
		}
	}

	remainder, err := accumulated.Sub(cost)
	if err != nil {
		return nil, fmt.Errorf("%w: selected %v for cost %v",
			ErrInsufficientFunds, accumulated, cost)
	}

	if inputs == nil {
		inputs = []string{}
	}

	log.Debugf("Selected %d inputs worth %v for cost %v, refund to %s",
		len(inputs), accumulated, cost, refund)

	return &Selection{
		Remainder:     remainder,
		Inputs:        inputs,
		RefundAddress: refund,
	}, nil
}
