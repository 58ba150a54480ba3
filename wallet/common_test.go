package wallet

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/ledgerpay/paywallet/keychain"
	"github.com/ledgerpay/paywallet/ledger"
	"github.com/ledgerpay/paywallet/pkg/tokenunit"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errMock   = errors.New("mock error")
	errLedger = errors.New("ledger unreachable")
	errSign   = errors.New("sign fail")
	errRole   = errors.New("role lookup fail")
)

const (
	testMethod   = "sov"
	testIdentity = "V4SGRU86Z58d6TV7PBUe6f"
)

var (
	// addrA and addrB are the two addresses of the fixture wallet, each
	// holding sources of 1 and 2 tokens.
	addrA = ledger.FixtureAddress(testMethod, ledger.FixtureAddressA)
	addrB = ledger.FixtureAddress(testMethod, ledger.FixtureAddressB)
)

// refA and refB return the reference of the n-th fixture source of an
// address.
func refA(n string) string { return "txo:" + addrA + ":" + n }
func refB(n string) string { return "txo:" + addrB + ":" + n }

// fixtureDeps holds the fixture collaborators of an engine.
type fixtureDeps struct {
	ledger *ledger.FixtureLedger
	signer *keychain.FixtureSigner
}

// newFixtureEngine creates an engine over the fixture wallet. Options can
// adjust the config before the engine is built.
func newFixtureEngine(t *testing.T,
	opts ...func(*Config)) (*Engine, *fixtureDeps) {

	t.Helper()

	deps := &fixtureDeps{
		ledger: ledger.NewFixtureLedger(testMethod),
		signer: keychain.NewFixtureSigner(testMethod),
	}

	cfg := Config{
		Ledger:        deps.ledger,
		Signer:        deps.signer,
		Identity:      testIdentity,
		PaymentMethod: fn.Some(testMethod),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e, err := New(cfg)
	require.NoError(t, err)

	return e, deps
}

// mockDeps holds the mocked collaborators of an engine.
type mockDeps struct {
	ledger *mockLedger
	signer *mockSigner
}

// newMockEngine creates an engine with mocked collaborators. Expectations
// are asserted when the test ends.
func newMockEngine(t *testing.T,
	opts ...func(*Config)) (*Engine, *mockDeps) {

	t.Helper()

	deps := &mockDeps{
		ledger: &mockLedger{},
		signer: &mockSigner{},
	}
	t.Cleanup(func() {
		deps.ledger.AssertExpectations(t)
		deps.signer.AssertExpectations(t)
	})

	cfg := Config{
		Ledger:        deps.ledger,
		Signer:        deps.signer,
		Identity:      testIdentity,
		PaymentMethod: fn.Some(testMethod),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e, err := New(cfg)
	require.NoError(t, err)

	return e, deps
}

// mockLedger is a mock implementation of ledger.Ledger.
type mockLedger struct {
	mock.Mock
}

// A compile-time assertion to ensure mockLedger satisfies the Ledger
// interface.
var _ ledger.Ledger = (*mockLedger)(nil)

func (m *mockLedger) Submit(ctx context.Context, req string) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) GetSourcesPage(ctx context.Context, identity,
	address string, from fn.Option[int64]) (ledger.SourcesPage, error) {

	args := m.Called(ctx, identity, address, from)
	return args.Get(0).(ledger.SourcesPage), args.Error(1)
}

func (m *mockLedger) AttachFees(ctx context.Context, identity, req string,
	inputs []string, outputs []ledger.Output) (string, string, error) {

	args := m.Called(ctx, identity, req, inputs, outputs)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockLedger) ParseFeeResponse(ctx context.Context, method,
	resp string) (string, error) {

	args := m.Called(ctx, method, resp)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) BuildTransferRequest(ctx context.Context,
	identity string, inputs []string, outputs []ledger.Output,
	extra fn.Option[string]) (string, string, error) {

	args := m.Called(ctx, identity, inputs, outputs, extra)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockLedger) GetAuthRule(ctx context.Context, identity string,
	action ledger.Action) (fn.Option[ledger.AuthRule], error) {

	args := m.Called(ctx, identity, action)
	return args.Get(0).(fn.Option[ledger.AuthRule]), args.Error(1)
}

func (m *mockLedger) GetFeeSchedule(ctx context.Context, identity,
	method string) (ledger.FeeSchedule, error) {

	args := m.Called(ctx, identity, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(ledger.FeeSchedule), args.Error(1)
}

// mockSigner is a mock implementation of keychain.Signer.
type mockSigner struct {
	mock.Mock
}

// A compile-time assertion to ensure mockSigner satisfies the Signer
// interface.
var _ keychain.Signer = (*mockSigner)(nil)

func (m *mockSigner) CreatePaymentAddress(ctx context.Context, method string,
	seed fn.Option[string]) (string, error) {

	args := m.Called(ctx, method, seed)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) ListPaymentAddresses(ctx context.Context) ([]string,
	error) {

	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSigner) SignWithAddress(ctx context.Context, address string,
	msg []byte) ([]byte, error) {

	args := m.Called(ctx, address, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockSigner) VerifyWithAddress(ctx context.Context, address string,
	msg, sig []byte) (bool, error) {

	args := m.Called(ctx, address, msg, sig)
	return args.Bool(0), args.Error(1)
}

func (m *mockSigner) SignRequest(ctx context.Context, identity,
	req string) (string, error) {

	args := m.Called(ctx, identity, req)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) GetRole(ctx context.Context, identity string) (
	fn.Option[string], error) {

	args := m.Called(ctx, identity)
	return args.Get(0).(fn.Option[string]), args.Error(1)
}

// sourcesPage builds a single page of sources for address.
func sourcesPage(address string, next fn.Option[int64],
	amounts ...uint64) ledger.SourcesPage {

	page := ledger.SourcesPage{Next: next}
	for i, amt := range amounts {
		page.Sources = append(page.Sources, Source{
			Ref:            fn.Some(address + "#" + strconv.Itoa(i)),
			PaymentAddress: address,
			Amount:         tokenunit.Amount(amt),
		})
	}

	return page
}
