package wallet

import (
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BuildOutputs returns the outputs of a payment: the change to refund when
// remainder is positive, then the payee output when a payee is given. A
// payee without an amount receives zero. An empty list is valid.
func BuildOutputs(remainder tokenunit.Amount, refund string,
	payee fn.Option[string],
	payeeAmount fn.Option[tokenunit.Amount]) []Output {

	outputs := make([]Output, 0, 2)
	if remainder > 0 {
		outputs = append(outputs, Output{
			Recipient: refund,
			Amount:    remainder,
		})
	}

	payee.WhenSome(func(addr string) {
		outputs = append(outputs, Output{
			Recipient: addr,
			Amount:    payeeAmount.UnwrapOr(0),
		})
	})

	return outputs
}
