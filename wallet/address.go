package wallet

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// AddressManager creates payment addresses and signs with their keys.
type AddressManager interface {
	// CreatePaymentAddress creates a payment address for the configured
	// method, deterministically when a seed is given.
	CreatePaymentAddress(ctx context.Context,
		seed fn.Option[string]) (string, error)

	// SignWithAddress signs msg with the key of address.
	SignWithAddress(ctx context.Context, address string,
		msg []byte) ([]byte, error)

	// VerifyWithAddress checks sig was made by address over msg.
	VerifyWithAddress(ctx context.Context, address string, msg,
		sig []byte) (bool, error)
}

// A compile time check to ensure that Engine implements the interface.
var _ AddressManager = (*Engine)(nil)

// CreatePaymentAddress creates a payment address for the configured payment
// method.
func (e *Engine) CreatePaymentAddress(ctx context.Context,
	seed fn.Option[string]) (string, error) {

	method, err := e.paymentMethod()
	if err != nil {
		return "", err
	}

	return e.cfg.Signer.CreatePaymentAddress(ctx, method, seed)
}

// SignWithAddress signs msg with the key of address.
func (e *Engine) SignWithAddress(ctx context.Context, address string,
	msg []byte) ([]byte, error) {

	return e.cfg.Signer.SignWithAddress(ctx, address, msg)
}

// VerifyWithAddress checks sig was made by address over msg.
func (e *Engine) VerifyWithAddress(ctx context.Context, address string, msg,
	sig []byte) (bool, error) {

	return e.cfg.Signer.VerifyWithAddress(ctx, address, msg, sig)
}
