package keychain

import (
	"context"
	"sync/atomic"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// FixtureSigner is a deterministic Signer serving the fixture wallet. It
// holds no keys: signing echoes the message and every signature verifies.
type FixtureSigner struct {
	method string
	role   fn.Option[string]

	roleLookups atomic.Int64
}

// A compile-time assertion to ensure FixtureSigner satisfies the Signer
// interface.
var _ Signer = (*FixtureSigner)(nil)

// NewFixtureSigner returns a fixture signer for method whose identities hold
// the trustee role "0".
func NewFixtureSigner(method string) *FixtureSigner {
	return &FixtureSigner{
		method: method,
		role:   fn.Some("0"),
	}
}

// WithRole returns a copy of the signer reporting role for every identity.
func (f *FixtureSigner) WithRole(role fn.Option[string]) *FixtureSigner {
	return &FixtureSigner{
		method: f.method,
		role:   role,
	}
}

// RoleLookups returns how many times GetRole was called.
func (f *FixtureSigner) RoleLookups() int64 {
	return f.roleLookups.Load()
}

// CreatePaymentAddress always returns the same new fixture address.
func (f *FixtureSigner) CreatePaymentAddress(_ context.Context, method string,
	_ fn.Option[string]) (string, error) {

	return ledger.FixtureAddress(method, ledger.FixtureNewAddress), nil
}

// ListPaymentAddresses returns the two fixture wallet addresses.
func (f *FixtureSigner) ListPaymentAddresses(_ context.Context) ([]string,
	error) {

	return ledger.FixtureAddresses(f.method), nil
}

// SignWithAddress returns msg unchanged.
func (f *FixtureSigner) SignWithAddress(_ context.Context, _ string,
	msg []byte) ([]byte, error) {

	return append([]byte(nil), msg...), nil
}

// VerifyWithAddress always succeeds.
func (f *FixtureSigner) VerifyWithAddress(_ context.Context, _ string, _,
	_ []byte) (bool, error) {

	return true, nil
}

// SignRequest returns req unchanged.
func (f *FixtureSigner) SignRequest(_ context.Context, _,
	req string) (string, error) {

	return req, nil
}

// GetRole returns the configured role.
func (f *FixtureSigner) GetRole(_ context.Context, _ string) (
	fn.Option[string], error) {

	f.roleLookups.Add(1)

	return f.role, nil
}
