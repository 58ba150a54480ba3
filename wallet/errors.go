package wallet

import "errors"

var (
	// ErrInsufficientFunds is returned when the wallet cannot cover a
	// cost, either because its balance is too low or because a selected
	// source carries no reference.
	ErrInsufficientFunds = errors.New("insufficient token amount")

	// ErrInvalidResponse is returned when the ledger sends back data that
	// cannot be used, such as a source cursor that does not advance.
	ErrInvalidResponse = errors.New("invalid ledger response")

	// ErrConfigurationMissing is returned when an operation needs a
	// setting that was not configured.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrPricingUnavailable is returned when the price of an action
	// cannot be determined because the ledger could not be reached.
	ErrPricingUnavailable = errors.New("pricing unavailable")

	// ErrRequesterUnauthorized is returned when the requester satisfies
	// none of the constraints of an action's auth rule.
	ErrRequesterUnauthorized = errors.New("requester not authorized")

	// ErrInvalidRequester is returned when a requester profile cannot be
	// decoded.
	ErrInvalidRequester = errors.New("invalid requester profile")

	// ErrEmptyPayee is returned when paying to an empty address.
	ErrEmptyPayee = errors.New("payee address cannot be empty")
)
