// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// PaymentAddressPrefix is the scheme every payment address starts with. A
// full address has the form `pay:<method>:<id>`.
const PaymentAddressPrefix = "pay"

// MethodPrefix returns the address prefix used by the given payment method,
// e.g. `pay:sov`.
func MethodPrefix(method string) string {
	return PaymentAddressPrefix + ":" + method
}

// HasMethod reports whether address belongs to the given payment method.
func HasMethod(address, method string) bool {
	return strings.HasPrefix(address, MethodPrefix(method)+":")
}

// Source is an unspent token output owned by a payment address.
type Source struct {
	// Ref is the ledger reference used to spend the source. The ledger
	// may omit it, in which case the source cannot be selected.
	Ref fn.Option[string]

	// PaymentAddress is the address owning the source.
	PaymentAddress string

	// Amount is the number of tokens held by the source.
	Amount tokenunit.Amount

	// Extra is free-form data attached when the source was created.
	Extra fn.Option[string]
}

// sourceJSON is the wire representation of a Source.
type sourceJSON struct {
	Source         *string          `json:"source,omitempty"`
	PaymentAddress string           `json:"paymentAddress"`
	Amount         tokenunit.Amount `json:"amount"`
	Extra          *string          `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(sourceJSON{
		Source:         optionToPtr(s.Ref),
		PaymentAddress: s.PaymentAddress,
		Amount:         s.Amount,
		Extra:          optionToPtr(s.Extra),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Source) UnmarshalJSON(data []byte) error {
	var w sourceJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}

	*s = Source{
		Ref:            fn.OptionFromPtr(w.Source),
		PaymentAddress: w.PaymentAddress,
		Amount:         w.Amount,
		Extra:          fn.OptionFromPtr(w.Extra),
	}

	return nil
}

// Output is a token output created by a transaction.
type Output struct {
	// Source is only set on outputs echoed back by the ledger.
	Source fn.Option[string]

	// Recipient is the payment address receiving the tokens.
	Recipient string

	// Amount is the number of tokens sent to the recipient.
	Amount tokenunit.Amount

	// Extra is optional data stored alongside the output.
	Extra fn.Option[string]
}

// outputJSON is the wire representation of an Output.
type outputJSON struct {
	Source    *string          `json:"source,omitempty"`
	Recipient string           `json:"recipient"`
	Amount    tokenunit.Amount `json:"amount"`
	Extra     *string          `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{
		Source:    optionToPtr(o.Source),
		Recipient: o.Recipient,
		Amount:    o.Amount,
		Extra:     optionToPtr(o.Extra),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Output) UnmarshalJSON(data []byte) error {
	var w outputJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid output: %w", err)
	}

	*o = Output{
		Source:    fn.OptionFromPtr(w.Source),
		Recipient: w.Recipient,
		Amount:    w.Amount,
		Extra:     fn.OptionFromPtr(w.Extra),
	}

	return nil
}

// SourcesPage is one page of sources returned for a payment address. Next
// holds the cursor of the following page, if any.
type SourcesPage struct {
	Sources []Source
	Next    fn.Option[int64]
}

// FeeSchedule maps a ledger transaction type, or a fee alias referenced by an
// auth rule, to its price in tokens.
type FeeSchedule map[string]tokenunit.Amount

// optionToPtr converts an optional value into a pointer suitable for
// `omitempty` JSON encoding.
func optionToPtr[T any](o fn.Option[T]) *T {
	return fn.MapOptionZ(o, func(v T) *T {
		return &v
	})
}
