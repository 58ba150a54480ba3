package wallet

import (
	"context"
	"fmt"
)

// FeeSchedule fetches the current fee schedule of the configured payment
// method. The schedule is read from the ledger on every call.
func (e *Engine) FeeSchedule(ctx context.Context) (FeeSchedule, error) {
	method, err := e.paymentMethod()
	if err != nil {
		return nil, err
	}

	fees, err := e.cfg.Ledger.GetFeeSchedule(ctx, e.cfg.Identity, method)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch fee schedule: %w", err)
	}

	if fees == nil {
		fees = FeeSchedule{}
	}

	return fees, nil
}
