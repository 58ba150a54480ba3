package ledger

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
)

var errMock = errors.New("mock error")

// mockSigner is a mock implementation of RequestSigner.
type mockSigner struct {
	mock.Mock
}

// SignRequest implements RequestSigner.
func (m *mockSigner) SignRequest(ctx context.Context, identity,
	req string) (string, error) {

	args := m.Called(ctx, identity, req)
	return args.String(0), args.Error(1)
}

// mockLedger is a mock implementation of Ledger.
type mockLedger struct {
	mock.Mock
}

// A compile-time assertion to ensure mockLedger satisfies the Ledger
// interface.
var _ Ledger = (*mockLedger)(nil)

func (m *mockLedger) Submit(ctx context.Context, req string) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) GetSourcesPage(ctx context.Context, identity,
	address string, from fn.Option[int64]) (SourcesPage, error) {

	args := m.Called(ctx, identity, address, from)
	return args.Get(0).(SourcesPage), args.Error(1)
}

func (m *mockLedger) AttachFees(ctx context.Context, identity, req string,
	inputs []string, outputs []Output) (string, string, error) {

	args := m.Called(ctx, identity, req, inputs, outputs)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockLedger) ParseFeeResponse(ctx context.Context, method,
	resp string) (string, error) {

	args := m.Called(ctx, method, resp)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) BuildTransferRequest(ctx context.Context,
	identity string, inputs []string, outputs []Output,
	extra fn.Option[string]) (string, string, error) {

	args := m.Called(ctx, identity, inputs, outputs, extra)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockLedger) GetAuthRule(ctx context.Context, identity string,
	action Action) (fn.Option[AuthRule], error) {

	args := m.Called(ctx, identity, action)
	return args.Get(0).(fn.Option[AuthRule]), args.Error(1)
}

func (m *mockLedger) GetFeeSchedule(ctx context.Context, identity,
	method string) (FeeSchedule, error) {

	args := m.Called(ctx, identity, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(FeeSchedule), args.Error(1)
}
