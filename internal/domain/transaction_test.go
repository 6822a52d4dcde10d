package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestTransactionValidate(t *testing.T) {
	amount := decimal.RequireFromString("10.00")

	tests := []struct {
		name      string
		tx        Transaction
		allowSelf bool
		wantErr   error
	}{
		{
			name: "user to user",
			tx:   Transaction{Amount: amount, ReceiverID: 2, SenderID: ptr(int64(1))},
		},
		{
			name: "gateway credit",
			tx:   Transaction{Amount: amount, ReceiverID: 2, GatewayID: ptr("gw-1")},
		},
		{
			name:    "no source",
			tx:      Transaction{Amount: amount, ReceiverID: 2},
			wantErr: ErrTransactionNoSource,
		},
		{
			name: "two sources",
			tx: Transaction{
				Amount: amount, ReceiverID: 2,
				SenderID: ptr(int64(1)), GatewayID: ptr("gw-1"),
			},
			wantErr: ErrTransactionTwoSources,
		},
		{
			name:    "no receiver",
			tx:      Transaction{Amount: amount, SenderID: ptr(int64(1))},
			wantErr: ErrTransactionNoReceiver,
		},
		{
			name:    "zero amount",
			tx:      Transaction{Amount: decimal.Zero, ReceiverID: 2, SenderID: ptr(int64(1))},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "self transfer denied by default",
			tx:      Transaction{Amount: amount, ReceiverID: 1, SenderID: ptr(int64(1))},
			wantErr: ErrSelfTransferNotAllowed,
		},
		{
			name:      "self transfer allowed by policy",
			tx:        Transaction{Amount: amount, ReceiverID: 1, SenderID: ptr(int64(1))},
			allowSelf: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate(tt.allowSelf)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTransactionIsGateway(t *testing.T) {
	gw := Transaction{GatewayID: ptr("gw-1")}
	assert.True(t, gw.IsGateway())

	user := Transaction{SenderID: ptr(int64(1))}
	assert.False(t, user.IsGateway())
}
