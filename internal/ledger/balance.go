package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kwitt-bot/kwitt/internal/domain"
	"github.com/kwitt-bot/kwitt/pkg/metrics"
)

// BalanceEngine derives a user's balance from the transaction log.
type BalanceEngine struct {
	users        UserStore
	transactions TransactionStore
	log          *slog.Logger
}

// NewBalanceEngine constructs the engine over the given stores.
func NewBalanceEngine(users UserStore, transactions TransactionStore, log *slog.Logger) *BalanceEngine {
	if log == nil {
		log = slog.Default()
	}

	return &BalanceEngine{users: users, transactions: transactions, log: log}
}

// Recompute rescans every transaction the user participates in, summing
// +amount for receipts and -amount for sends. A self-transfer contributes
// nothing. The result overwrites the user's cached balance.
//
// This is a full O(n) rescan with no incremental maintenance, acceptable at
// small scale. Callers that mutate the ledger must hold the user's lock so
// the append and the recompute are not interleaved with another writer.
func (e *BalanceEngine) Recompute(ctx context.Context, user *domain.User) (decimal.Decimal, error) {
	txs, err := e.transactions.ByUser(ctx, user.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load transactions for balance: %w", err)
	}

	balance := decimal.Zero
	for _, t := range txs {
		if t.SenderID != nil && *t.SenderID == t.ReceiverID {
			continue
		}

		switch {
		case t.ReceiverID == user.ID:
			balance = balance.Add(t.Amount)
		case t.SenderID != nil && *t.SenderID == user.ID:
			balance = balance.Sub(t.Amount)
		}
	}

	if err := e.users.SaveBalance(ctx, user.ID, balance); err != nil {
		return decimal.Zero, fmt.Errorf("save recomputed balance: %w", err)
	}

	user.Balance = balance
	metrics.RecordBalanceRecompute()

	e.log.Debug("balance recomputed",
		slog.Int64("user_id", user.ID),
		slog.String("balance", domain.FormatAmount(balance)),
		slog.Int("transactions", len(txs)),
	)

	return balance, nil
}
