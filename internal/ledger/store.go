// Package ledger implements the append-only transaction log, derived
// balances, and the money-request lifecycle.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/kwitt-bot/kwitt/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrRequestNotFound = errors.New("request not found")
	ErrGatewayNotFound = errors.New("gateway details not found")
)

// UserStore persists ledger participants. Username lookups are
// case-insensitive; chat id, telegram id, and username are unique.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	ByID(ctx context.Context, id int64) (*domain.User, error)
	ByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	ByUsername(ctx context.Context, username string) (*domain.User, error)
	SaveBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
	All(ctx context.Context) ([]domain.User, error)
}

// TransactionStore is the append-only transaction log. Transactions are
// never updated or deleted.
type TransactionStore interface {
	Append(ctx context.Context, t *domain.Transaction) error
	// AppendWithGateway writes the gateway details and the paired
	// transaction atomically: both records exist afterwards or neither does.
	AppendWithGateway(ctx context.Context, d *domain.GatewayTransactionDetails, t *domain.Transaction) error
	// ByUser returns every transaction the user participates in as sender
	// or receiver, oldest first.
	ByUser(ctx context.Context, userID int64) ([]domain.Transaction, error)
	GatewayByID(ctx context.Context, id string) (*domain.GatewayTransactionDetails, error)
}

// RequestStore persists money requests.
type RequestStore interface {
	Create(ctx context.Context, r *domain.Request) error
	ByID(ctx context.Context, id string) (*domain.Request, error)
	// Transition atomically moves an OPEN request to a terminal mode.
	// Returns domain.ErrRequestNotOpen when the request is already closed
	// and ErrRequestNotFound when the id is unknown.
	Transition(ctx context.Context, id string, to domain.RequestMode) error
}
