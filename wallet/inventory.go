package wallet

import (
	"context"
	"fmt"

	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Inventory provides read access to the payment addresses of the wallet and
// the sources they hold.
type Inventory interface {
	// ListAddresses returns every payment address held by the signer.
	ListAddresses(ctx context.Context) ([]string, error)

	// AddressInfo fetches all the sources of address, following the
	// ledger's pagination.
	AddressInfo(ctx context.Context, address string) (*AddressInfo,
		error)

	// WalletInfo fetches the balance of every address of the configured
	// payment method.
	WalletInfo(ctx context.Context) (*WalletInfo, error)
}

// A compile time check to ensure that Engine implements the interface.
var _ Inventory = (*Engine)(nil)

// ListAddresses returns the payment addresses known to the signer.
func (e *Engine) ListAddresses(ctx context.Context) ([]string, error) {
	return e.cfg.Signer.ListPaymentAddresses(ctx)
}

// AddressInfo queries the sources of address page by page. Pages are
// appended in the order the ledger returns them. A continuation cursor that
// does not advance past the previous one is rejected with
// ErrInvalidResponse.
func (e *Engine) AddressInfo(ctx context.Context,
	address string) (*AddressInfo, error) {

	var (
		sources []Source
		cursor  = fn.None[int64]()
	)
	for {
		page, err := e.cfg.Ledger.GetSourcesPage(
			ctx, e.cfg.Identity, address, cursor,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch sources of %s: %w",
				address, err)
		}

		sources = append(sources, page.Sources...)

		next, ok := nextCursor(cursor, page.Next)
		if !ok {
			return nil, fmt.Errorf("%w: source cursor %d for %s "+
				"does not advance", ErrInvalidResponse,
				page.Next.UnwrapOr(0), address)
		}
		if next.IsNone() {
			break
		}

		cursor = next
	}

	balance, err := sumSources(sources)
	if err != nil {
		return nil, err
	}

	log.Debugf("Address %s holds %d sources worth %v", address,
		len(sources), balance)

	if sources == nil {
		sources = []Source{}
	}

	return &AddressInfo{
		Address: address,
		Balance: balance,
		Sources: sources,
	}, nil
}

// nextCursor validates the cursor returned with a page. It returns false
// when the cursor does not move forward.
func nextCursor(prev, next fn.Option[int64]) (fn.Option[int64], bool) {
	if next.IsNone() {
		return next, true
	}

	n := next.UnwrapOr(0)
	if prev.IsSome() && n <= prev.UnwrapOr(0) {
		return fn.None[int64](), false
	}

	return next, true
}

// sumSources adds up the amounts held by sources.
func sumSources(sources []Source) (tokenunit.Amount, error) {
	total := tokenunit.Zero
	for _, s := range sources {
		var err error
		total, err = total.Add(s.Amount)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
	}

	return total, nil
}

// WalletInfo fetches every address of the configured payment method and
// sums their balances. Addresses of other methods are skipped. Any ledger
// failure aborts the whole query.
func (e *Engine) WalletInfo(ctx context.Context) (*WalletInfo, error) {
	method, err := e.paymentMethod()
	if err != nil {
		return nil, err
	}

	addresses, err := e.ListAddresses(ctx)
	if err != nil {
		return nil, err
	}

	info := &WalletInfo{Addresses: []AddressInfo{}}
	for _, addr := range addresses {
		if !ledger.HasMethod(addr, method) {
			log.Warnf("Payment address %s is not compatible with "+
				"payment method %q", addr, method)

			continue
		}

		addrInfo, err := e.AddressInfo(ctx, addr)
		if err != nil {
			return nil, err
		}

		info.Balance, err = info.Balance.Add(addrInfo.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		info.Addresses = append(info.Addresses, *addrInfo)
	}

	log.Tracef("Wallet info: %v", spewDump(info))

	return info, nil
}
