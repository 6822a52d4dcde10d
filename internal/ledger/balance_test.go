package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwitt-bot/kwitt/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addUser(t *testing.T, store *MemoryStore, telegramID int64, username string) *domain.User {
	t.Helper()

	user := &domain.User{
		ChatID:     telegramID * 100,
		TelegramID: telegramID,
		Username:   username,
		Balance:    decimal.Zero,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func appendTransfer(t *testing.T, store *MemoryStore, from, to int64, amount string) {
	t.Helper()

	tx := &domain.Transaction{
		Amount:     decimal.RequireFromString(amount),
		ReceiverID: to,
		SenderID:   &from,
	}
	require.NoError(t, store.Transactions().Append(context.Background(), tx))
}

func appendGatewayCredit(t *testing.T, store *MemoryStore, to int64, amount string) {
	t.Helper()

	err := store.Transactions().AppendWithGateway(context.Background(),
		&domain.GatewayTransactionDetails{Provider: "test_gateway"},
		&domain.Transaction{
			Amount:     decimal.RequireFromString(amount),
			ReceiverID: to,
		})
	require.NoError(t, err)
}

func TestBalanceEngine_SumsReceiptsAndSends(t *testing.T) {
	store := NewMemoryStore()
	engine := NewBalanceEngine(store.Users(), store.Transactions(), testLogger())
	ctx := context.Background()

	alice := addUser(t, store, 1, "alice")
	bob := addUser(t, store, 2, "bob")

	appendGatewayCredit(t, store, alice.ID, "100.00")
	appendTransfer(t, store, alice.ID, bob.ID, "30.00")
	appendTransfer(t, store, bob.ID, alice.ID, "5.50")

	got, err := engine.Recompute(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "75.50", domain.FormatAmount(got))
	assert.Equal(t, "75.50", domain.FormatAmount(alice.Balance))

	got, err = engine.Recompute(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "24.50", domain.FormatAmount(got))

	// The recomputed value is persisted, not only returned.
	stored, err := store.Users().ByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "24.50", domain.FormatAmount(stored.Balance))
}

func TestBalanceEngine_SelfTransfersNetToZero(t *testing.T) {
	store := NewMemoryStore()
	engine := NewBalanceEngine(store.Users(), store.Transactions(), testLogger())
	ctx := context.Background()

	alice := addUser(t, store, 1, "alice")

	appendGatewayCredit(t, store, alice.ID, "40.00")
	appendTransfer(t, store, alice.ID, alice.ID, "15.00")

	got, err := engine.Recompute(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "40.00", domain.FormatAmount(got))
}

func TestBalanceEngine_EmptyLogIsZero(t *testing.T) {
	store := NewMemoryStore()
	engine := NewBalanceEngine(store.Users(), store.Transactions(), testLogger())

	alice := addUser(t, store, 1, "alice")

	got, err := engine.Recompute(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestBalanceEngine_RecomputeIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	engine := NewBalanceEngine(store.Users(), store.Transactions(), testLogger())
	ctx := context.Background()

	alice := addUser(t, store, 1, "alice")
	appendGatewayCredit(t, store, alice.ID, "12.34")

	first, err := engine.Recompute(ctx, alice)
	require.NoError(t, err)
	second, err := engine.Recompute(ctx, alice)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}
