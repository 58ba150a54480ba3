// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the fee-aware payment engine: source inventory,
// coin selection, output building, action pricing and the two submission
// workflows.
package wallet

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Engine is the payment engine. It keeps no state of its own besides the
// optional caller owned RoleCache, so a single Engine may be used from
// several goroutines. Sources are never reserved: concurrent spends of the
// same source race and the ledger rejects the loser.
type Engine struct {
	cfg Config
}

// New creates an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.PaymentMethod.WhenSome(func(method string) {
		log.Infof("Payment engine using method %q for identity %s",
			method, cfg.Identity)
	})
	if cfg.PaymentMethod.IsNone() {
		log.Infof("Payment engine without payment method, ledger "+
			"writes are submitted without fees (identity %s)",
			cfg.Identity)
	}

	return &Engine{cfg: cfg}, nil
}

// PaymentMethod returns the configured payment method.
func (e *Engine) PaymentMethod() fn.Option[string] {
	return e.cfg.PaymentMethod
}

// paymentMethod returns the configured payment method or
// ErrConfigurationMissing.
func (e *Engine) paymentMethod() (string, error) {
	return e.cfg.PaymentMethod.UnwrapOrErr(
		fmt.Errorf("%w: payment method", ErrConfigurationMissing),
	)
}

// role returns the role of the configured identity, through the role cache
// when one is configured.
func (e *Engine) role(ctx context.Context) (fn.Option[string], error) {
	if e.cfg.RoleCache == nil {
		return e.cfg.Signer.GetRole(ctx, e.cfg.Identity)
	}

	return e.cfg.RoleCache.Lookup(ctx, e.cfg.Identity, e.cfg.Signer.GetRole)
}
