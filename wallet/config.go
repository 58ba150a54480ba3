package wallet

import (
	"fmt"

	"github.com/ledgerpay/paywallet/keychain"
	"github.com/ledgerpay/paywallet/ledger"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Config holds the collaborators and settings of an Engine.
type Config struct {
	// Ledger is the ledger access layer. Use a *ledger.FixtureLedger for
	// tests and demos.
	Ledger ledger.Ledger

	// Signer holds the payment address and identity keys.
	Signer keychain.Signer

	// Identity is the ledger identity requests are signed as.
	Identity string

	// PaymentMethod is the payment method of the wallet, e.g. "sov".
	// When None, ledger writes are submitted without fees and token
	// operations fail with ErrConfigurationMissing.
	PaymentMethod fn.Option[string]

	// Agreement provides the transaction author agreement to accept on
	// transfers. Nil means the ledger requires none.
	Agreement AgreementSource

	// RoleCache remembers the role of Identity across calls. Nil means
	// the role is looked up every time it is needed.
	RoleCache *RoleCache
}

// validate checks the mandatory collaborators are set.
func (c *Config) validate() error {
	switch {
	case c.Ledger == nil:
		return fmt.Errorf("%w: ledger", ErrConfigurationMissing)

	case c.Signer == nil:
		return fmt.Errorf("%w: signer", ErrConfigurationMissing)

	case c.Identity == "":
		return fmt.Errorf("%w: identity", ErrConfigurationMissing)
	}

	return nil
}
