package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRequest() *Request {
	return &Request{
		ID:       "req-1",
		Amount:   decimal.RequireFromString("5.00"),
		IssuerID: 1,
		TargetID: 2,
		Mode:     RequestOpen,
	}
}

func TestRequestValidate(t *testing.T) {
	r := openRequest()
	assert.NoError(t, r.Validate(false))

	r.Amount = decimal.Zero
	assert.ErrorIs(t, r.Validate(false), ErrNonPositiveAmount)

	self := openRequest()
	self.TargetID = self.IssuerID
	assert.ErrorIs(t, self.Validate(false), ErrSelfRequestNotAllowed)
	assert.NoError(t, self.Validate(true))
}

func TestRequestTransition_TerminalOnce(t *testing.T) {
	r := openRequest()

	require.NoError(t, r.Transition(RequestFulfilled))
	assert.Equal(t, RequestFulfilled, r.Mode)

	// A second response of either kind is rejected and the mode is unchanged.
	assert.ErrorIs(t, r.Transition(RequestRejected), ErrRequestNotOpen)
	assert.ErrorIs(t, r.Transition(RequestFulfilled), ErrRequestNotOpen)
	assert.Equal(t, RequestFulfilled, r.Mode)
}

func TestRequestTransition_OnlyTerminalModes(t *testing.T) {
	r := openRequest()

	assert.ErrorIs(t, r.Transition(RequestOpen), ErrRequestBadTransition)
	assert.ErrorIs(t, r.Transition(RequestMode("WEIRD")), ErrRequestBadTransition)
	assert.Equal(t, RequestOpen, r.Mode)
}
