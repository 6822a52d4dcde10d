package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTransactionNoSource    = errors.New("transaction requires either a sender or gateway details")
	ErrTransactionTwoSources  = errors.New("transaction cannot have both a sender and gateway details")
	ErrTransactionNoReceiver  = errors.New("transaction requires a receiver")
	ErrSelfTransferNotAllowed = errors.New("sender and receiver must differ")
)

// GatewayTransactionDetails records the external payment provider that acted
// as the counterpart of a transaction instead of a user. A details record
// exists only paired with exactly one transaction whose sender is absent.
type GatewayTransactionDetails struct {
	ID        string
	Provider  string
	CreatedAt time.Time
}

// Transaction is one immutable fact in the append-only ledger. A positive
// Amount always flows towards the receiver; the source is either a sending
// user or a payment gateway, never both and never neither.
type Transaction struct {
	ID          string
	Amount      decimal.Decimal
	CreatedAt   time.Time
	ReceiverID  int64
	SenderID    *int64
	GatewayID   *string
	Description string
}

// IsGateway reports whether the transaction was credited by a payment
// gateway rather than another user.
func (t *Transaction) IsGateway() bool {
	return t.SenderID == nil
}

// Validate enforces the ledger invariants before a transaction may be
// appended. allowSelf mirrors the settings.allow_send_to_self flag.
func (t *Transaction) Validate(allowSelf bool) error {
	if t.ReceiverID == 0 {
		return ErrTransactionNoReceiver
	}
	if t.SenderID == nil && t.GatewayID == nil {
		return ErrTransactionNoSource
	}
	if t.SenderID != nil && t.GatewayID != nil {
		return ErrTransactionTwoSources
	}
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if t.SenderID != nil && *t.SenderID == t.ReceiverID && !allowSelf {
		return ErrSelfTransferNotAllowed
	}

	return nil
}
