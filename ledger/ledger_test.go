package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSignAndSubmit checks signing is composed with submission and that
// rejections are surfaced.
func TestSignAndSubmit(t *testing.T) {
	t.Parallel()

	const (
		identity = "V4SGRU86Z58d6TV7PBUe6f"
		req      = `{"operation":{"type":"101"}}`
		signed   = `{"operation":{"type":"101"},"signature":"sig"}`
		reply    = `{"op":"REPLY","result":{}}`
		rejected = `{"op":"REJECT","reason":"client request invalid"}`
	)

	tests := []struct {
		name      string
		signErr   error
		submitErr error
		reply     string
		wantErr   error
	}{
		{
			name:  "success",
			reply: reply,
		},
		{
			name:    "sign failure",
			signErr: errMock,
			wantErr: errMock,
		},
		{
			name:      "submit failure",
			submitErr: errMock,
			wantErr:   errMock,
		},
		{
			name:    "rejected",
			reply:   rejected,
			wantErr: ErrRejected,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			signer := &mockSigner{}
			l := &mockLedger{}
			t.Cleanup(func() {
				signer.AssertExpectations(t)
				l.AssertExpectations(t)
			})

			signer.On("SignRequest", ctx, identity, req).Return(
				signed, tc.signErr,
			).Once()

			if tc.signErr == nil {
				l.On("Submit", ctx, signed).Return(
					tc.reply, tc.submitErr,
				).Once()
			}

			resp, err := SignAndSubmit(ctx, l, signer, identity, req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Empty(t, resp)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.reply, resp)
		})
	}
}

// TestCheckResponse checks reply classification.
func TestCheckResponse(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckResponse(`{"op":"REPLY","result":{}}`))
	require.NoError(t, CheckResponse(`{"result":{}}`))

	err := CheckResponse(`{"op":"REQNACK","reason":"bad"}`)
	require.ErrorIs(t, err, ErrRejected)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, OpReqNack, rejected.Code)
	require.Equal(t, "bad", rejected.Reason)

	err = CheckResponse("not json")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

// TestRejectedErrorCodes checks numeric code helpers.
func TestRejectedErrorCodes(t *testing.T) {
	t.Parallel()

	err := newCodeError(CodeInsufficientFunds, "not enough")
	require.ErrorIs(t, err, ErrRejected)
	require.True(t, IsInsufficientFunds(err))
	require.True(t, HasCode(err, CodeInsufficientFunds))
	require.False(t, HasCode(err, CodeNotFound))
	require.False(t, IsInsufficientFunds(errMock))
	require.Equal(t, "ledger rejected request: 702: not enough", err.Error())
}

// TestMethodPrefix checks payment address prefix matching.
func TestMethodPrefix(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pay:sov", MethodPrefix("sov"))
	require.True(t, HasMethod("pay:sov:abc", "sov"))
	require.False(t, HasMethod("pay:sovx:abc", "sov"))
	require.False(t, HasMethod("pay:null:abc", "sov"))
	require.False(t, HasMethod("pay:sov", "sov"))
}
