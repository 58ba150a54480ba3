package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/ledgerpay/paywallet/keychain"
	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/paydb"
	"github.com/ledgerpay/paywallet/wallet"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/term"
)

// mockIdentity is the identity used with --mock.
const mockIdentity = "V4SGRU86Z58d6TV7PBUe6f"

// errNoKeyStore is returned by commands that need the key store when the
// demo signer is in use.
var errNoKeyStore = errors.New("command requires a key store, not --mock")

// app holds everything a command needs. It is filled in by start right
// before the selected command runs.
type app struct {
	cfg *config
	out io.Writer

	engine   *wallet.Engine
	keyStore *keychain.KeyStore
	receipts fn.Option[paydb.ReceiptStore]

	// readPassphrase returns the key store passphrase.
	readPassphrase func() ([]byte, error)

	closers []func()
}

func newApp(cfg *config, out io.Writer) *app {
	return &app{
		cfg:            cfg,
		out:            out,
		readPassphrase: readPassphrase,
	}
}

// readPassphrase reads the key store passphrase from the environment, or
// prompts for it on the terminal.
func readPassphrase() ([]byte, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	fmt.Fprint(os.Stderr, "Key store passphrase: ")
	pass, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("unable to read passphrase: %w", err)
	}

	return pass, nil
}

// paymentMethod returns the configured payment method.
func (a *app) paymentMethod() fn.Option[string] {
	if a.cfg.NoPaymentMethod || a.cfg.PaymentMethod == "" {
		return fn.None[string]()
	}

	return fn.Some(a.cfg.PaymentMethod)
}

// agreement returns the configured transaction author agreement, or nil.
func (a *app) agreement() wallet.AgreementSource {
	taa := a.cfg.Agreement
	if taa.Mechanism == "" {
		return nil
	}

	optional := func(s string) fn.Option[string] {
		if s == "" {
			return fn.None[string]()
		}

		return fn.Some(s)
	}

	return wallet.NewStaticAgreement(wallet.Agreement{
		Text:      optional(taa.Text),
		Version:   optional(taa.Version),
		Digest:    optional(taa.Digest),
		Mechanism: taa.Mechanism,
	}, clock.NewDefaultClock())
}

// start builds the engine and opens the receipt journal.
func (a *app) start() error {
	var (
		l        ledger.Ledger
		s        keychain.Signer
		identity string
		fixture  *ledger.FixtureLedger
	)

	if a.cfg.Mock {
		log.Infof("Using the demo ledger and signer")

		fixture = ledger.NewFixtureLedger(
			a.paymentMethod().UnwrapOr(defaultPaymentMethod),
		)
		l = fixture
		s = keychain.NewFixtureSigner(
			a.paymentMethod().UnwrapOr(defaultPaymentMethod),
		)
		identity = mockIdentity
	} else {
		rpcLedger, err := a.openLedger()
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rpcLedger.Stop)

		pass, err := a.readPassphrase()
		if err != nil {
			return err
		}

		keyStore, err := keychain.OpenKeyStore(
			a.cfg.KeyStore.Dir, pass, keychain.DefaultScryptOptions,
		)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := keyStore.Close(); err != nil {
				log.Errorf("Unable to close key store: %v", err)
			}
		})

		l, s = rpcLedger, keyStore
		a.keyStore = keyStore
		identity = a.cfg.Ledger.Identity
	}

	engine, err := wallet.New(wallet.Config{
		Ledger:        l,
		Signer:        s,
		Identity:      identity,
		PaymentMethod: a.paymentMethod(),
		Agreement:     a.agreement(),
		RoleCache:     wallet.NewRoleCache(),
	})
	if err != nil {
		return err
	}
	a.engine = engine

	if err := a.openReceipts(); err != nil {
		return err
	}

	if fixture != nil {
		return a.replaySpent(context.Background(), fixture)
	}

	return nil
}

// replaySpent drops the demo sources the journal records as spent, so the
// demo wallet reflects the payments of earlier --mock runs.
func (a *app) replaySpent(ctx context.Context,
	fixture *ledger.FixtureLedger) error {

	store, err := a.receipts.UnwrapOrErr(errNoJournal)
	if errors.Is(err, errNoJournal) {
		return nil
	}

	var spent []string
	for _, ref := range fixture.SourceRefs() {
		isSpent, err := store.IsSpent(ctx, ref)
		if err != nil {
			return fmt.Errorf("unable to read spent sources: %w", err)
		}
		if isSpent {
			spent = append(spent, ref)
		}
	}

	if len(spent) > 0 {
		log.Debugf("Removing %d journaled sources from the demo "+
			"wallet", len(spent))
		fixture.Spend(spent...)
	}

	return nil
}

// openLedger connects to the configured ledger access node.
func (a *app) openLedger() (*ledger.RPCLedger, error) {
	var certs []byte
	if !a.cfg.Ledger.NoTLS && a.cfg.Ledger.CAFile != "" {
		var err error
		certs, err = os.ReadFile(cleanAndExpandPath(a.cfg.Ledger.CAFile))
		if err != nil {
			return nil, fmt.Errorf("unable to read ledger "+
				"certificate: %w", err)
		}
	}

	return ledger.NewRPCLedger(&ledger.RPCConfig{
		Host:         a.cfg.Ledger.Host,
		User:         a.cfg.Ledger.User,
		Pass:         a.cfg.Ledger.Pass,
		Certificates: certs,
		DisableTLS:   a.cfg.Ledger.NoTLS,
	})
}

// openReceipts opens the configured receipt journal, if any.
func (a *app) openReceipts() error {
	var (
		store paydb.ReceiptStore
		db    *sql.DB
		err   error
	)

	switch a.cfg.DB.Backend {
	case dbBackendSQLite:
		store, db, err = paydb.OpenSQLite(
			a.cfg.DB.SQLitePath, clock.NewDefaultClock(),
		)

	case dbBackendPostgres:
		store, db, err = paydb.OpenPostgres(
			a.cfg.DB.PostgresDSN, clock.NewDefaultClock(),
		)

	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to open receipt journal: %w", err)
	}

	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			log.Errorf("Unable to close receipt journal: %v", err)
		}
	})
	a.receipts = fn.Some(store)

	return nil
}

// stop releases everything start acquired, in reverse order.
func (a *app) stop() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// record stores a receipt when a journal is configured. The payment already
// happened, so a failure to record it is logged and not returned.
func (a *app) record(ctx context.Context, params paydb.AddReceiptParams) {
	a.receipts.WhenSome(func(store paydb.ReceiptStore) {
		r, err := store.AddReceipt(ctx, params)
		if err != nil {
			log.Errorf("Unable to record %s receipt: %v",
				params.Kind, err)
			return
		}

		log.Infof("Recorded %s receipt %v", r.Kind, r.ID)
	})
}
