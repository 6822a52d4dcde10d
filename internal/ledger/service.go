package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kwitt-bot/kwitt/internal/domain"
	errors "github.com/kwitt-bot/kwitt/internal/errors"
	"github.com/kwitt-bot/kwitt/pkg/metrics"
)

// Service implements the transfer, request, and gateway credit protocols on
// top of the stores. All ledger mutations for a user run under that user's
// lock, so the append and the balance recompute are never interleaved with
// another writer touching the same balance.
type Service struct {
	users        UserStore
	transactions TransactionStore
	requests     RequestStore
	engine       *BalanceEngine
	allowSelf    func() bool
	locks        *userLocks
	log          *slog.Logger
}

// NewService wires the ledger service. allowSelf reports the current
// self-transfer policy; it is read per operation so the flag can be
// hot-reloaded.
func NewService(
	users UserStore,
	transactions TransactionStore,
	requests RequestStore,
	engine *BalanceEngine,
	allowSelf func() bool,
	log *slog.Logger,
) *Service {
	if allowSelf == nil {
		allowSelf = func() bool { return false }
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:        users,
		transactions: transactions,
		requests:     requests,
		engine:       engine,
		allowSelf:    allowSelf,
		locks:        newUserLocks(),
		log:          log,
	}
}

// RegisterInfo carries the identity details captured on first contact.
type RegisterInfo struct {
	ChatID       int64
	TelegramID   int64
	Username     string
	DisplayName  string
	LanguageCode string
}

// Register returns the existing user for the telegram id or creates a new
// one with a zero balance. The second return value reports whether a new
// user was created.
func (s *Service) Register(ctx context.Context, info RegisterInfo) (*domain.User, bool, error) {
	user, err := s.users.ByTelegramID(ctx, info.TelegramID)
	if err == nil {
		return user, false, nil
	}
	if !stdErrors.Is(err, ErrUserNotFound) {
		return nil, false, errors.NewDatabaseError(err)
	}

	newUser := &domain.User{
		ChatID:       info.ChatID,
		TelegramID:   info.TelegramID,
		Username:     info.Username,
		DisplayName:  info.DisplayName,
		LanguageCode: info.LanguageCode,
		Balance:      decimal.Zero,
	}

	if err := s.users.Create(ctx, newUser); err != nil {
		if stdErrors.Is(err, ErrUserExists) {
			// Lost a registration race; the other writer won.
			existing, lookupErr := s.users.ByTelegramID(ctx, info.TelegramID)
			if lookupErr != nil {
				return nil, false, errors.NewDatabaseError(lookupErr)
			}
			return existing, false, nil
		}
		return nil, false, errors.NewDatabaseError(err)
	}

	s.log.Info("user registered",
		slog.Int64("user_id", newUser.ID),
		slog.Int64("telegram_id", newUser.TelegramID),
		slog.String("username", newUser.Username),
	)

	return newUser, true, nil
}

// Lookup resolves a ledger user by telegram id.
func (s *Service) Lookup(ctx context.Context, telegramID int64) (*domain.User, error) {
	return s.users.ByTelegramID(ctx, telegramID)
}

// TransferResult reports a completed transfer with both parties' balances
// already recomputed.
type TransferResult struct {
	Transaction *domain.Transaction
	Sender      *domain.User
	Receiver    *domain.User
}

// Transfer appends one transaction from sender to the named target and
// recomputes both balances.
func (s *Service) Transfer(ctx context.Context, sender *domain.User, args TransferArgs) (*TransferResult, error) {
	receiver, err := s.users.ByUsername(ctx, args.TargetUsername)
	if err != nil {
		if stdErrors.Is(err, ErrUserNotFound) {
			metrics.RecordTransfer("rejected", 0)
			return nil, errors.NewNotFoundError(fmt.Sprintf(
				"We couldn't find @%s, maybe they are not registered yet?", args.TargetUsername))
		}
		return nil, errors.NewDatabaseError(err)
	}

	if receiver.ID == sender.ID && !s.allowSelf() {
		metrics.RecordTransfer("rejected", 0)
		return nil, errors.NewValidationError("You can't send money to yourself!", domain.ErrSelfTransferNotAllowed)
	}

	unlock := s.locks.lock(sender.ID, receiver.ID)
	defer unlock()

	// Re-read under the lock so the funds check sees the latest projection.
	current, err := s.users.ByID(ctx, sender.ID)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	if args.Amount.GreaterThan(current.Balance) {
		metrics.RecordTransfer("rejected", 0)
		return nil, errors.NewValidationError(fmt.Sprintf(
			"Your balance is %s, you can not send %s.",
			domain.FormatAmount(current.Balance), domain.FormatAmount(args.Amount)), nil)
	}

	senderID := sender.ID
	t := &domain.Transaction{
		Amount:      args.Amount,
		ReceiverID:  receiver.ID,
		SenderID:    &senderID,
		Description: args.Description,
	}
	if err := t.Validate(s.allowSelf()); err != nil {
		metrics.RecordTransfer("rejected", 0)
		return nil, errors.NewValidationError(err.Error(), err)
	}

	if err := s.transactions.Append(ctx, t); err != nil {
		metrics.RecordTransfer("failed", 0)
		return nil, errors.NewDatabaseError(err)
	}

	// The append succeeded, so the transfer is a ledger fact even if a
	// recompute below fails; balances can always be rebuilt later.
	if _, err := s.engine.Recompute(ctx, current); err != nil {
		metrics.RecordTransfer("failed", 0)
		return nil, errors.NewDatabaseError(err)
	}
	if _, err := s.engine.Recompute(ctx, receiver); err != nil {
		metrics.RecordTransfer("failed", 0)
		return nil, errors.NewDatabaseError(err)
	}

	metrics.RecordTransfer("ok", args.Amount.InexactFloat64())

	s.log.Info("transfer completed",
		slog.Int64("sender_id", current.ID),
		slog.Int64("receiver_id", receiver.ID),
		slog.String("amount", domain.FormatAmount(args.Amount)),
	)

	return &TransferResult{Transaction: t, Sender: current, Receiver: receiver}, nil
}

// Balance recomputes and returns the user's balance under the user's lock.
func (s *Service) Balance(ctx context.Context, user *domain.User) (decimal.Decimal, error) {
	unlock := s.locks.lock(user.ID)
	defer unlock()

	balance, err := s.engine.Recompute(ctx, user)
	if err != nil {
		return decimal.Zero, errors.NewDatabaseError(err)
	}

	return balance, nil
}

// HistoryEntry is one transaction annotated for display from the viewpoint
// of a specific user.
type HistoryEntry struct {
	Transaction domain.Transaction
	// Gain is true when the amount flowed towards the user.
	Gain bool
	// Counterpart names the other side: "@username", a gateway provider, or
	// "yourself" for self-transfers.
	Counterpart string
}

// History lists the user's transactions, oldest first.
func (s *Service) History(ctx context.Context, user *domain.User) ([]HistoryEntry, error) {
	txs, err := s.transactions.ByUser(ctx, user.ID)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	entries := make([]HistoryEntry, 0, len(txs))
	for _, t := range txs {
		entry := HistoryEntry{Transaction: t, Gain: t.ReceiverID == user.ID}

		switch {
		case t.IsGateway():
			provider := "gateway"
			if t.GatewayID != nil {
				if gw, gwErr := s.transactions.GatewayByID(ctx, *t.GatewayID); gwErr == nil {
					provider = gw.Provider
				}
			}
			entry.Counterpart = provider
		case *t.SenderID == t.ReceiverID:
			entry.Counterpart = "yourself"
		case entry.Gain:
			entry.Counterpart = s.mention(ctx, *t.SenderID)
		default:
			entry.Counterpart = s.mention(ctx, t.ReceiverID)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Service) mention(ctx context.Context, userID int64) string {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("user %d", userID)
	}
	return user.Mention()
}

// RequestResult reports a created money request and its resolved target.
type RequestResult struct {
	Request *domain.Request
	Target  *domain.User
}

// CreateRequest opens a money request from issuer to the named target.
func (s *Service) CreateRequest(ctx context.Context, issuer *domain.User, args TransferArgs) (*RequestResult, error) {
	target, err := s.users.ByUsername(ctx, args.TargetUsername)
	if err != nil {
		if stdErrors.Is(err, ErrUserNotFound) {
			return nil, errors.NewNotFoundError(fmt.Sprintf(
				"We couldn't find @%s, maybe they are not registered yet?", args.TargetUsername))
		}
		return nil, errors.NewDatabaseError(err)
	}

	r := &domain.Request{
		ID:          uuid.NewString(),
		Amount:      args.Amount,
		IssuerID:    issuer.ID,
		TargetID:    target.ID,
		Description: args.Description,
		Mode:        domain.RequestOpen,
	}
	if err := r.Validate(s.allowSelf()); err != nil {
		if stdErrors.Is(err, domain.ErrSelfRequestNotAllowed) {
			return nil, errors.NewValidationError("You can't request money from yourself!", err)
		}
		return nil, errors.NewValidationError(err.Error(), err)
	}

	if err := s.requests.Create(ctx, r); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	metrics.RecordRequestEvent("created")

	s.log.Info("request created",
		slog.String("request_id", r.ID),
		slog.Int64("issuer_id", issuer.ID),
		slog.Int64("target_id", target.ID),
		slog.String("amount", domain.FormatAmount(r.Amount)),
	)

	return &RequestResult{Request: r, Target: target}, nil
}

// RequestResponse reports the outcome of a target's answer to a request.
type RequestResponse struct {
	Request  *domain.Request
	Issuer   *domain.User
	Accepted bool
}

// RespondRequest applies the target's accept or reject answer. The
// transition happens at most once; late or repeated answers report the
// request as no longer open without changing state. Accepting a request
// does not create a transaction yet; that is a deliberate extension point.
func (s *Service) RespondRequest(ctx context.Context, responder *domain.User, requestID string, accept bool) (*RequestResponse, error) {
	r, err := s.requests.ByID(ctx, requestID)
	if err != nil {
		if stdErrors.Is(err, ErrRequestNotFound) {
			return nil, errors.NewNotFoundError("We couldn't find that request.")
		}
		return nil, errors.NewDatabaseError(err)
	}

	// A closed request is reported as such to anyone, before the responder
	// check; the transition below still guards against races on open ones.
	if r.Mode != domain.RequestOpen {
		return nil, errors.NewValidationError("This request is not open anymore.", domain.ErrRequestNotOpen)
	}

	if r.TargetID != responder.ID {
		// Security-relevant: someone answered a request addressed to a
		// different user.
		s.log.Warn("request answered by non-target user",
			slog.String("request_id", r.ID),
			slog.Int64("target_id", r.TargetID),
			slog.Int64("responder_id", responder.ID),
			slog.Int64("responder_telegram_id", responder.TelegramID),
		)
		metrics.RecordRequestEvent("refused")
		return nil, errors.NewAuthorizationError(fmt.Sprintf(
			"request %s addressed to user %d answered by user %d", r.ID, r.TargetID, responder.ID))
	}

	to := domain.RequestRejected
	event := "rejected"
	if accept {
		to = domain.RequestFulfilled
		event = "fulfilled"
	}

	if err := s.requests.Transition(ctx, r.ID, to); err != nil {
		if stdErrors.Is(err, domain.ErrRequestNotOpen) {
			return nil, errors.NewValidationError("This request is not open anymore.", err)
		}
		if stdErrors.Is(err, ErrRequestNotFound) {
			return nil, errors.NewNotFoundError("We couldn't find that request.")
		}
		return nil, errors.NewDatabaseError(err)
	}
	r.Mode = to

	issuer, err := s.users.ByID(ctx, r.IssuerID)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	metrics.RecordRequestEvent(event)

	return &RequestResponse{Request: r, Issuer: issuer, Accepted: accept}, nil
}

// GatewayCredit records a credit from an external payment provider: the
// gateway details and the paired transaction are written atomically, then
// the receiver's balance is recomputed.
func (s *Service) GatewayCredit(ctx context.Context, user *domain.User, amount decimal.Decimal, provider, description string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("The amount must be positive.", domain.ErrNonPositiveAmount)
	}

	unlock := s.locks.lock(user.ID)
	defer unlock()

	d := &domain.GatewayTransactionDetails{Provider: provider}
	t := &domain.Transaction{
		Amount:      amount,
		ReceiverID:  user.ID,
		Description: description,
	}

	if err := s.transactions.AppendWithGateway(ctx, d, t); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	if _, err := s.engine.Recompute(ctx, user); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	s.log.Info("gateway credit recorded",
		slog.Int64("user_id", user.ID),
		slog.String("provider", provider),
		slog.String("amount", domain.FormatAmount(amount)),
	)

	return t, nil
}

// ReconcileAll recomputes every user's cached balance from the log. Used by
// the periodic reconciliation job and the manage CLI.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	users, err := s.users.All(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}

	for i := range users {
		user := users[i]
		unlock := s.locks.lock(user.ID)
		_, err := s.engine.Recompute(ctx, &user)
		unlock()
		if err != nil {
			return i, fmt.Errorf("recompute user %d: %w", user.ID, err)
		}
	}

	return len(users), nil
}
