package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/paydb"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/ledgerpay/paywallet/wallet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// errNoJournal is returned by receipt commands when the journal is
	// disabled.
	errNoJournal = errors.New("receipt journal disabled, set --db.backend")

	// errUnknownAction is returned for an action that is neither a known
	// name nor an action descriptor.
	errUnknownAction = errors.New("unknown action")
)

// namedActions are the actions that can be given by name instead of as a
// JSON descriptor.
var namedActions = map[string]func() ledger.Action{
	"schema":      ledger.SchemaAction,
	"creddef":     ledger.CredDefAction,
	"revregdef":   ledger.RevRegDefAction,
	"revregentry": ledger.RevRegEntryAction,
	"transfer":    ledger.TransferAction,
}

// parseActionArg resolves an action name or JSON descriptor.
func parseActionArg(arg string) (ledger.Action, error) {
	if newAction, ok := namedActions[strings.ToLower(arg)]; ok {
		return newAction(), nil
	}

	if strings.HasPrefix(strings.TrimSpace(arg), "{") {
		return ledger.ParseAction(arg)
	}

	return ledger.Action{}, fmt.Errorf("%w: %q", errUnknownAction, arg)
}

// optionalArg returns None for an empty command line value.
func optionalArg(s string) fn.Option[string] {
	if s == "" {
		return fn.None[string]()
	}

	return fn.Some(s)
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// registerCommands adds every command to parser. The commands share a.
func registerCommands(parser *flags.Parser, a *app) error {
	commands := []struct {
		name, short, long string
		cmd               flags.Commander
	}{
		{
			name:  "balance",
			short: "Show the balance and sources of the wallet",
			long: "Lists every payment address of the configured " +
				"payment method with its sources and balance.",
			cmd: &balanceCommand{app: a},
		},
		{
			name:  "addresses",
			short: "List the payment addresses of the wallet",
			cmd:   &addressesCommand{app: a},
		},
		{
			name:  "newaddress",
			short: "Create a payment address",
			cmd:   &newAddressCommand{app: a},
		},
		{
			name:  "fees",
			short: "Show the fee schedule of the ledger",
			cmd:   &feesCommand{app: a},
		},
		{
			name:  "price",
			short: "Show the price of a ledger write",
			long: "Resolves the price of an action for the " +
				"wallet identity or for the given requester. " +
				"The action is one of schema, creddef, " +
				"revregdef, revregentry, transfer or a JSON " +
				"action descriptor.",
			cmd: &priceCommand{app: a},
		},
		{
			name:  "selectinputs",
			short: "Show the sources that would pay a cost",
			cmd:   &selectInputsCommand{app: a},
		},
		{
			name:  "submit",
			short: "Submit a ledger write, paying its fee",
			long: "Signs the request as the wallet identity, pays " +
				"the price of the action from the wallet and " +
				"submits it. Free actions are submitted as is.",
			cmd: &submitCommand{app: a},
		},
		{
			name:  "pay",
			short: "Send tokens to a payment address",
			cmd:   &payCommand{app: a},
		},
		{
			name:  "receipts",
			short: "List recorded payments",
			cmd:   &receiptsCommand{app: a},
		},
		{
			name:  "sign",
			short: "Sign a message with a payment address key",
			cmd:   &signCommand{app: a},
		},
		{
			name:  "verify",
			short: "Verify a payment address signature",
			cmd:   &verifyCommand{app: a},
		},
		{
			name:  "importidentity",
			short: "Import the signing key of a ledger identity",
			cmd:   &importIdentityCommand{app: a},
		},
	}

	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.cmd)
		if err != nil {
			return err
		}
	}

	return nil
}

type balanceCommand struct {
	app *app
}

func (x *balanceCommand) Execute(_ []string) error {
	info, err := x.app.engine.WalletInfo(context.Background())
	if err != nil {
		return err
	}

	return printJSON(x.app.out, info)
}

type addressesCommand struct {
	app *app
}

func (x *addressesCommand) Execute(_ []string) error {
	addrs, err := x.app.engine.ListAddresses(context.Background())
	if err != nil {
		return err
	}

	return printJSON(x.app.out, addrs)
}

type newAddressCommand struct {
	app *app

	Seed string `long:"seed" description:"Seed of the address key, random when empty"`
}

func (x *newAddressCommand) Execute(_ []string) error {
	addr, err := x.app.engine.CreatePaymentAddress(
		context.Background(), optionalArg(x.Seed),
	)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(x.app.out, addr)
	return err
}

type feesCommand struct {
	app *app
}

func (x *feesCommand) Execute(_ []string) error {
	fees, err := x.app.engine.FeeSchedule(context.Background())
	if err != nil {
		return err
	}

	return printJSON(x.app.out, fees)
}

type priceCommand struct {
	app *app

	Action       string `long:"action" required:"true" description:"Action name or JSON action descriptor"`
	Requester    string `long:"requester" description:"JSON requester profile, defaults to the wallet identity"`
	Requirements bool   `long:"requirements" description:"Also show the satisfied constraints"`
}

func (x *priceCommand) Execute(_ []string) error {
	ctx := context.Background()

	action, err := parseActionArg(x.Action)
	if err != nil {
		return err
	}

	if !x.Requirements {
		actionJSON, err := json.Marshal(action)
		if err != nil {
			return err
		}

		price, err := x.app.engine.RequestPrice(
			ctx, string(actionJSON), optionalArg(x.Requester),
		)
		if err != nil {
			return err
		}

		return printJSON(x.app.out, map[string]tokenunit.Amount{
			"price": price,
		})
	}

	requester := fn.None[wallet.RequesterProfile]()
	if x.Requester != "" {
		var profile wallet.RequesterProfile
		err := json.Unmarshal([]byte(x.Requester), &profile)
		if err != nil {
			return fmt.Errorf("%w: %w", wallet.ErrInvalidRequester,
				err)
		}
		requester = fn.Some(profile)
	}

	info, err := x.app.engine.ResolveRequestInfo(ctx, action, requester)
	if err != nil {
		return err
	}

	return printJSON(x.app.out, info)
}

type selectInputsCommand struct {
	app *app

	Cost uint64 `long:"cost" description:"Amount to cover"`
}

func (x *selectInputsCommand) Execute(_ []string) error {
	sel, err := x.app.engine.SelectInputs(
		context.Background(), tokenunit.Amount(x.Cost),
	)
	if err != nil {
		return err
	}

	return printJSON(x.app.out, struct {
		Inputs        []string         `json:"inputs"`
		Remainder     tokenunit.Amount `json:"remainder"`
		RefundAddress string           `json:"refund_address"`
	}{
		Inputs:        sel.Inputs,
		Remainder:     sel.Remainder,
		RefundAddress: sel.RefundAddress,
	})
}

type submitCommand struct {
	app *app

	Action  string `long:"action" required:"true" description:"Action name or JSON action descriptor"`
	Request string `long:"request" required:"true" description:"File holding the JSON request, - for stdin"`
}

// readRequest reads the request file, or stdin for "-".
func readRequest(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(cleanAndExpandPath(path))
	}
	if err != nil {
		return "", fmt.Errorf("unable to read request: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

func (x *submitCommand) Execute(_ []string) error {
	ctx := context.Background()

	action, err := parseActionArg(x.Action)
	if err != nil {
		return err
	}

	req, err := readRequest(x.Request)
	if err != nil {
		return err
	}

	txn, resp, err := x.app.engine.SubmitWithFee(ctx, req, action)
	if err != nil {
		return err
	}

	txn.WhenSome(func(t wallet.PaymentTxn) {
		x.app.record(ctx, paydb.FeeReceipt(action.Key(), t, resp))
	})

	return printJSON(x.app.out, struct {
		Payment  *wallet.PaymentTxn `json:"payment"`
		Response json.RawMessage    `json:"response"`
	}{
		Payment:  fn.MapOptionZ(txn, ptrTo[wallet.PaymentTxn]),
		Response: rawResponse(resp),
	})
}

// rawResponse embeds a ledger reply as is when it is JSON.
func rawResponse(resp string) json.RawMessage {
	if json.Valid([]byte(resp)) {
		return json.RawMessage(resp)
	}

	b, _ := json.Marshal(resp)
	return b
}

// ptrTo returns a pointer to a copy of v.
func ptrTo[T any](v T) *T {
	return &v
}

type payCommand struct {
	app *app

	Amount uint64 `long:"amount" required:"true" description:"Number of tokens to send"`
	Payee  string `long:"payee" required:"true" description:"Payment address of the recipient"`
}

func (x *payCommand) Execute(_ []string) error {
	ctx := context.Background()

	txn, resp, err := x.app.engine.Pay(
		ctx, tokenunit.Amount(x.Amount), x.Payee,
	)
	if err != nil {
		return err
	}

	x.app.record(ctx, paydb.TransferReceipt(x.Payee, *txn, resp))

	return printJSON(x.app.out, struct {
		Payment  *wallet.PaymentTxn `json:"payment"`
		Response json.RawMessage    `json:"response"`
	}{
		Payment:  txn,
		Response: rawResponse(resp),
	})
}

type receiptsCommand struct {
	app *app

	ID    string `long:"id" description:"Show a single receipt"`
	Kind  string `long:"kind" choice:"fee" choice:"transfer" description:"Only list receipts of this kind"`
	Limit uint32 `long:"limit" description:"Maximum number of receipts, 0 for all"`
}

// receiptJSON is the printed form of a receipt.
type receiptJSON struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Action    string            `json:"action,omitempty"`
	Payee     string            `json:"payee,omitempty"`
	Payment   wallet.PaymentTxn `json:"payment"`
	CreatedAt string            `json:"created_at"`
}

func newReceiptJSON(r *paydb.Receipt) receiptJSON {
	return receiptJSON{
		ID:        r.ID.String(),
		Kind:      string(r.Kind),
		Action:    r.ActionKey,
		Payee:     r.Payee,
		Payment:   r.Txn,
		CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (x *receiptsCommand) Execute(_ []string) error {
	ctx := context.Background()

	store, err := x.app.receipts.UnwrapOrErr(errNoJournal)
	if err != nil {
		return err
	}

	if x.ID != "" {
		id, err := uuid.Parse(x.ID)
		if err != nil {
			return fmt.Errorf("invalid receipt id: %w", err)
		}

		r, err := store.GetReceipt(ctx, id)
		if err != nil {
			return err
		}

		return printJSON(x.app.out, newReceiptJSON(r))
	}

	query := paydb.ListReceiptsQuery{Limit: x.Limit}
	if x.Kind != "" {
		query.Kind = fn.Some(paydb.ReceiptKind(x.Kind))
	}

	receipts, err := store.ListReceipts(ctx, query)
	if err != nil {
		return err
	}

	out := make([]receiptJSON, 0, len(receipts))
	for i := range receipts {
		out = append(out, newReceiptJSON(&receipts[i]))
	}

	return printJSON(x.app.out, out)
}

type signCommand struct {
	app *app

	Address string `long:"address" required:"true" description:"Payment address to sign with"`
	Message string `long:"msg" required:"true" description:"Message to sign"`
}

func (x *signCommand) Execute(_ []string) error {
	sig, err := x.app.engine.SignWithAddress(
		context.Background(), x.Address, []byte(x.Message),
	)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(x.app.out, hex.EncodeToString(sig))
	return err
}

type verifyCommand struct {
	app *app

	Address   string `long:"address" required:"true" description:"Payment address that signed"`
	Message   string `long:"msg" required:"true" description:"Signed message"`
	Signature string `long:"sig" required:"true" description:"Hex encoded signature"`
}

func (x *verifyCommand) Execute(_ []string) error {
	sig, err := hex.DecodeString(x.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	ok, err := x.app.engine.VerifyWithAddress(
		context.Background(), x.Address, []byte(x.Message), sig,
	)
	if err != nil {
		return err
	}

	return printJSON(x.app.out, map[string]bool{"valid": ok})
}

type importIdentityCommand struct {
	app *app

	Seed string `long:"seed" required:"true" description:"Seed of the identity signing key"`
	Role string `long:"role" description:"Ledger role of the identity, empty for none"`
}

func (x *importIdentityCommand) Execute(_ []string) error {
	if x.app.keyStore == nil {
		return errNoKeyStore
	}

	identity := x.app.cfg.Ledger.Identity
	err := x.app.keyStore.ImportIdentity(
		context.Background(), identity, x.Seed, optionalArg(x.Role),
	)
	if err != nil {
		return err
	}

	log.Infof("Imported identity %s", identity)

	return nil
}
