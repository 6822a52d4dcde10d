package ledger

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwitt-bot/kwitt/internal/domain"
	errors "github.com/kwitt-bot/kwitt/internal/errors"
)

func newTestService(allowSelf bool) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	engine := NewBalanceEngine(store.Users(), store.Transactions(), testLogger())
	service := NewService(
		store.Users(), store.Transactions(), store.Requests(),
		engine, func() bool { return allowSelf }, testLogger())
	return service, store
}

func register(t *testing.T, service *Service, telegramID int64, username string) *domain.User {
	t.Helper()

	user, created, err := service.Register(context.Background(), RegisterInfo{
		ChatID:      telegramID * 100,
		TelegramID:  telegramID,
		Username:    username,
		DisplayName: username,
	})
	require.NoError(t, err)
	require.True(t, created)
	return user
}

func credit(t *testing.T, service *Service, user *domain.User, amount string) {
	t.Helper()

	_, err := service.GatewayCredit(context.Background(), user,
		decimal.RequireFromString(amount), "test_gateway", "")
	require.NoError(t, err)
}

func appCode(t *testing.T, err error) string {
	t.Helper()

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestService_RegisterIsIdempotentPerTelegramID(t *testing.T) {
	service, _ := newTestService(false)
	ctx := context.Background()

	first, created, err := service.Register(ctx, RegisterInfo{ChatID: 100, TelegramID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.Balance.IsZero())

	second, created, err := service.Register(ctx, RegisterInfo{ChatID: 100, TelegramID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestService_TransferMovesMoneyAndRecomputesBothBalances(t *testing.T) {
	service, _ := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	bob := register(t, service, 2, "bob")
	credit(t, service, alice, "100.00")

	result, err := service.Transfer(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("30.00"),
		TargetUsername: "bob",
		Description:    "lunch",
	})
	require.NoError(t, err)

	assert.Equal(t, "70.00", domain.FormatAmount(result.Sender.Balance))
	assert.Equal(t, "30.00", domain.FormatAmount(result.Receiver.Balance))
	assert.Equal(t, bob.ID, result.Receiver.ID)
	require.NotNil(t, result.Transaction.SenderID)
	assert.Equal(t, alice.ID, *result.Transaction.SenderID)
	assert.Equal(t, "lunch", result.Transaction.Description)
	assert.Nil(t, result.Transaction.GatewayID)
}

func TestService_TransferTargetIsCaseInsensitive(t *testing.T) {
	service, _ := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	register(t, service, 2, "Bob")
	credit(t, service, alice, "10.00")

	_, err := service.Transfer(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("10.00"),
		TargetUsername: "bob",
	})
	assert.NoError(t, err)
}

func TestService_TransferInsufficientFunds(t *testing.T) {
	service, _ := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	register(t, service, 2, "bob")
	credit(t, service, alice, "5.00")

	_, err := service.Transfer(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("10.00"),
		TargetUsername: "bob",
	})

	require.Error(t, err)
	assert.Equal(t, "E100", appCode(t, err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Your balance is 5.00, you can not send 10.00.", appErr.UserMessage)

	// Nothing was appended: the balance is untouched.
	balance, err := service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "5.00", domain.FormatAmount(balance))
}

func TestService_TransferUnknownTarget(t *testing.T) {
	service, _ := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	credit(t, service, alice, "10.00")

	_, err := service.Transfer(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("1.00"),
		TargetUsername: "ghost",
	})

	assert.Equal(t, "E120", appCode(t, err))
}

func TestService_SelfTransferPolicy(t *testing.T) {
	denied, _ := newTestService(false)
	ctx := context.Background()

	alice := register(t, denied, 1, "alice")
	credit(t, denied, alice, "10.00")

	_, err := denied.Transfer(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("3.00"),
		TargetUsername: "alice",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSelfTransferNotAllowed)

	allowed, _ := newTestService(true)
	bob := register(t, allowed, 2, "bob")
	credit(t, allowed, bob, "10.00")

	result, err := allowed.Transfer(ctx, bob, TransferArgs{
		Amount:         decimal.RequireFromString("3.00"),
		TargetUsername: "bob",
	})
	require.NoError(t, err)

	// A self transfer nets to zero.
	assert.Equal(t, "10.00", domain.FormatAmount(result.Sender.Balance))
}

func TestService_RequestLifecycleAccept(t *testing.T) {
	service, store := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	bob := register(t, service, 2, "bob")

	created, err := service.CreateRequest(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("25.00"),
		TargetUsername: "bob",
		Description:    "concert ticket",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestOpen, created.Request.Mode)
	assert.Equal(t, bob.ID, created.Target.ID)

	response, err := service.RespondRequest(ctx, bob, created.Request.ID, true)
	require.NoError(t, err)
	assert.True(t, response.Accepted)
	assert.Equal(t, domain.RequestFulfilled, response.Request.Mode)
	assert.Equal(t, alice.ID, response.Issuer.ID)

	// Fulfillment does not append a ledger transaction.
	txs, err := store.Transactions().ByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestService_RequestRepeatResponseIsNoOp(t *testing.T) {
	service, store := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	bob := register(t, service, 2, "bob")

	created, err := service.CreateRequest(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("5.00"),
		TargetUsername: "bob",
	})
	require.NoError(t, err)

	_, err = service.RespondRequest(ctx, bob, created.Request.ID, false)
	require.NoError(t, err)

	_, err = service.RespondRequest(ctx, bob, created.Request.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRequestNotOpen)

	// The terminal mode is unchanged by the late accept.
	stored, err := store.Requests().ByID(ctx, created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, stored.Mode)
}

func TestService_RequestAnsweredByNonTarget(t *testing.T) {
	service, store := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	register(t, service, 2, "bob")
	mallory := register(t, service, 3, "mallory")

	created, err := service.CreateRequest(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("5.00"),
		TargetUsername: "bob",
	})
	require.NoError(t, err)

	_, err = service.RespondRequest(ctx, mallory, created.Request.ID, true)
	assert.Equal(t, "E130", appCode(t, err))

	stored, err := store.Requests().ByID(ctx, created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestOpen, stored.Mode)
}

func TestService_ClosedRequestReportedAsClosedToNonTarget(t *testing.T) {
	service, store := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	bob := register(t, service, 2, "bob")
	mallory := register(t, service, 3, "mallory")

	created, err := service.CreateRequest(ctx, alice, TransferArgs{
		Amount:         decimal.RequireFromString("5.00"),
		TargetUsername: "bob",
	})
	require.NoError(t, err)

	_, err = service.RespondRequest(ctx, bob, created.Request.ID, true)
	require.NoError(t, err)

	// Once closed, the request reports "not open" to anyone, target or not.
	_, err = service.RespondRequest(ctx, mallory, created.Request.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRequestNotOpen)

	stored, err := store.Requests().ByID(ctx, created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestFulfilled, stored.Mode)
}

func TestService_RespondUnknownRequest(t *testing.T) {
	service, _ := newTestService(false)

	bob := register(t, service, 2, "bob")

	_, err := service.RespondRequest(context.Background(), bob, "no-such-id", true)
	assert.Equal(t, "E120", appCode(t, err))
}

func TestService_SelfRequestDenied(t *testing.T) {
	service, _ := newTestService(false)

	alice := register(t, service, 1, "alice")

	_, err := service.CreateRequest(context.Background(), alice, TransferArgs{
		Amount:         decimal.RequireFromString("5.00"),
		TargetUsername: "alice",
	})
	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, domain.ErrSelfRequestNotAllowed))
}

func TestService_GatewayCredit(t *testing.T) {
	service, store := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")

	tx, err := service.GatewayCredit(ctx, alice, decimal.RequireFromString("42.00"), "telegram_dev_command", "")
	require.NoError(t, err)
	require.NotNil(t, tx.GatewayID)
	assert.Nil(t, tx.SenderID)
	assert.True(t, tx.IsGateway())

	details, err := store.Transactions().GatewayByID(ctx, *tx.GatewayID)
	require.NoError(t, err)
	assert.Equal(t, "telegram_dev_command", details.Provider)

	assert.Equal(t, "42.00", domain.FormatAmount(alice.Balance))
}

func TestService_GatewayCreditRejectsNonPositiveAmount(t *testing.T) {
	service, _ := newTestService(false)

	alice := register(t, service, 1, "alice")

	_, err := service.GatewayCredit(context.Background(), alice, decimal.Zero, "test", "")
	assert.Equal(t, "E100", appCode(t, err))
}

func TestService_HistoryAnnotatesCounterparts(t *testing.T) {
	service, _ := newTestService(true)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	register(t, service, 2, "bob")
	credit(t, service, alice, "100.00")

	_, err := service.Transfer(ctx, alice, TransferArgs{
		Amount: decimal.RequireFromString("20.00"), TargetUsername: "bob",
	})
	require.NoError(t, err)
	_, err = service.Transfer(ctx, alice, TransferArgs{
		Amount: decimal.RequireFromString("1.00"), TargetUsername: "alice",
	})
	require.NoError(t, err)

	entries, err := service.History(ctx, alice)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Gain)
	assert.Equal(t, "test_gateway", entries[0].Counterpart)

	assert.False(t, entries[1].Gain)
	assert.Equal(t, "@bob", entries[1].Counterpart)

	assert.Equal(t, "yourself", entries[2].Counterpart)
}

func TestService_ReconcileAll(t *testing.T) {
	service, store := newTestService(false)
	ctx := context.Background()

	alice := register(t, service, 1, "alice")
	register(t, service, 2, "bob")
	credit(t, service, alice, "10.00")

	// Corrupt the cached balance; reconciliation must restore it.
	require.NoError(t, store.Users().SaveBalance(ctx, alice.ID, decimal.RequireFromString("999.00")))

	n, err := service.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	restored, err := store.Users().ByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", domain.FormatAmount(restored.Balance))
}
