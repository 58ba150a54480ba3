// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keychain holds the payment address keys and identity keys used to
// authorize ledger writes.
package keychain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrUnknownAddress is returned when no key is held for a payment
	// address.
	ErrUnknownAddress = errors.New("unknown payment address")

	// ErrUnknownIdentity is returned when no key is held for an identity.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrInvalidAddress is returned when a payment address cannot be
	// parsed.
	ErrInvalidAddress = errors.New("invalid payment address")

	// ErrInvalidRequest is returned when a request to sign is not a JSON
	// object.
	ErrInvalidRequest = errors.New("invalid ledger request")
)

// Signer is the key and signing service used by the payment engine.
type Signer interface {
	ledger.RequestSigner

	// CreatePaymentAddress creates a new payment address for method. The
	// same seed always yields the same address.
	CreatePaymentAddress(ctx context.Context, method string,
		seed fn.Option[string]) (string, error)

	// ListPaymentAddresses returns every payment address held.
	ListPaymentAddresses(ctx context.Context) ([]string, error)

	// SignWithAddress signs msg with the key of address.
	SignWithAddress(ctx context.Context, address string,
		msg []byte) ([]byte, error)

	// VerifyWithAddress checks sig is a signature of msg by address.
	VerifyWithAddress(ctx context.Context, address string, msg,
		sig []byte) (bool, error)

	// GetRole returns the ledger role of identity. None means the
	// identity has no role.
	GetRole(ctx context.Context, identity string) (fn.Option[string],
		error)
}

// ParsePaymentAddress splits a `pay:<method>:<id>` address.
func ParsePaymentAddress(address string) (string, string, error) {
	parts := strings.SplitN(address, ":", 3)
	if len(parts) != 3 || parts[0] != ledger.PaymentAddressPrefix ||
		parts[1] == "" || parts[2] == "" {

		return "", "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return parts[1], parts[2], nil
}
