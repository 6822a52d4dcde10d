package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kwitt-bot/kwitt/internal/domain"
)

const pqUniqueViolation = "23505"

// PostgresStore bundles the SQL-backed implementations of the three stores.
type PostgresStore struct {
	users        *pgUsers
	transactions *pgTransactions
	requests     *pgRequests
}

// NewPostgresStore builds the SQL-backed store over an open connection pool.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	return &PostgresStore{
		users:        &pgUsers{db: db, log: log},
		transactions: &pgTransactions{db: db, log: log},
		requests:     &pgRequests{db: db, log: log},
	}
}

func (s *PostgresStore) Users() UserStore               { return s.users }
func (s *PostgresStore) Transactions() TransactionStore { return s.transactions }
func (s *PostgresStore) Requests() RequestStore         { return s.requests }

type pgUsers struct {
	db  *sql.DB
	log *slog.Logger
}

var _ UserStore = (*pgUsers)(nil)

func (r *pgUsers) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (chat_id, telegram_id, username, display_name, language_code, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.ChatID,
		user.TelegramID,
		user.Username,
		user.DisplayName,
		user.LanguageCode,
		user.Balance.StringFixed(domain.MoneyScale),
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrUserExists
		}

		if r.log != nil {
			r.log.Error("failed to create user", slog.Int64("telegram_id", user.TelegramID), slog.Any("error", err))
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *pgUsers) ByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = userSelect + ` WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *pgUsers) ByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	const query = userSelect + ` WHERE telegram_id = $1`
	return r.scanOne(ctx, query, telegramID)
}

func (r *pgUsers) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = userSelect + ` WHERE lower(username) = lower($1)`
	return r.scanOne(ctx, query, username)
}

const userSelect = `
	SELECT id, chat_id, telegram_id, username, display_name, language_code, balance, created_at
	FROM users
`

func (r *pgUsers) scanOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, query, arg)

	user, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

func scanUser(scan func(dest ...any) error) (*domain.User, error) {
	var (
		user    domain.User
		balance string
	)

	if err := scan(
		&user.ID,
		&user.ChatID,
		&user.TelegramID,
		&user.Username,
		&user.DisplayName,
		&user.LanguageCode,
		&balance,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse stored balance %q: %w", balance, err)
	}
	user.Balance = parsed

	return &user, nil
}

func (r *pgUsers) SaveBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	const query = `UPDATE users SET balance = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, balance.StringFixed(domain.MoneyScale))
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to save balance", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return fmt.Errorf("update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *pgUsers) All(ctx context.Context) ([]domain.User, error) {
	const query = userSelect + ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

type pgTransactions struct {
	db  *sql.DB
	log *slog.Logger
}

var _ TransactionStore = (*pgTransactions)(nil)

func (r *pgTransactions) Append(ctx context.Context, t *domain.Transaction) error {
	prepareTransaction(t)

	const query = `
		INSERT INTO transactions (id, amount, created_at, receiver_id, sender_id, gateway_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.Amount.StringFixed(domain.MoneyScale),
		t.CreatedAt,
		t.ReceiverID,
		t.SenderID,
		t.GatewayID,
		t.Description,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to append transaction", slog.String("transaction_id", t.ID), slog.Any("error", err))
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// AppendWithGateway writes the gateway details and the transaction in a
// single SQL transaction, so the pair is observed fully written or not at
// all.
func (r *pgTransactions) AppendWithGateway(ctx context.Context, d *domain.GatewayTransactionDetails, t *domain.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gateway transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	const detailsQuery = `
		INSERT INTO gateway_transaction_details (id, provider, created_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, detailsQuery, d.ID, d.Provider, d.CreatedAt); err != nil {
		return fmt.Errorf("insert gateway details: %w", err)
	}

	gatewayID := d.ID
	t.GatewayID = &gatewayID
	prepareTransaction(t)

	const txQuery = `
		INSERT INTO transactions (id, amount, created_at, receiver_id, sender_id, gateway_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(
		ctx,
		txQuery,
		t.ID,
		t.Amount.StringFixed(domain.MoneyScale),
		t.CreatedAt,
		t.ReceiverID,
		t.SenderID,
		t.GatewayID,
		t.Description,
	); err != nil {
		return fmt.Errorf("insert gateway transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gateway transaction: %w", err)
	}

	return nil
}

func prepareTransaction(t *domain.Transaction) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
}

func (r *pgTransactions) ByUser(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	const query = `
		SELECT id, amount, created_at, receiver_id, sender_id, gateway_id, description
		FROM transactions
		WHERE receiver_id = $1 OR sender_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			amount string
		)
		if err := rows.Scan(&t.ID, &amount, &t.CreatedAt, &t.ReceiverID, &t.SenderID, &t.GatewayID, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		t.Amount = parsed

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}

func (r *pgTransactions) GatewayByID(ctx context.Context, id string) (*domain.GatewayTransactionDetails, error) {
	const query = `
		SELECT id, provider, created_at
		FROM gateway_transaction_details
		WHERE id = $1
	`

	var d domain.GatewayTransactionDetails
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Provider, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGatewayNotFound
		}
		return nil, fmt.Errorf("select gateway details: %w", err)
	}

	return &d, nil
}

type pgRequests struct {
	db  *sql.DB
	log *slog.Logger
}

var _ RequestStore = (*pgRequests)(nil)

func (r *pgRequests) Create(ctx context.Context, req *domain.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.Mode == "" {
		req.Mode = domain.RequestOpen
	}

	const query = `
		INSERT INTO requests (id, amount, created_at, issuer_id, target_id, description, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		req.ID,
		req.Amount.StringFixed(domain.MoneyScale),
		req.CreatedAt,
		req.IssuerID,
		req.TargetID,
		req.Description,
		string(req.Mode),
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create request", slog.String("request_id", req.ID), slog.Any("error", err))
		}
		return fmt.Errorf("insert request: %w", err)
	}

	return nil
}

func (r *pgRequests) ByID(ctx context.Context, id string) (*domain.Request, error) {
	const query = `
		SELECT id, amount, created_at, issuer_id, target_id, description, mode
		FROM requests
		WHERE id = $1
	`

	var (
		req    domain.Request
		amount string
		mode   string
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&amount,
		&req.CreatedAt,
		&req.IssuerID,
		&req.TargetID,
		&req.Description,
		&mode,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("select request: %w", err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	req.Amount = parsed
	req.Mode = domain.RequestMode(mode)

	return &req, nil
}

// Transition uses a conditional update so the OPEN -> terminal move happens
// at most once even under concurrent responses.
func (r *pgRequests) Transition(ctx context.Context, id string, to domain.RequestMode) error {
	if to != domain.RequestFulfilled && to != domain.RequestRejected {
		return domain.ErrRequestBadTransition
	}

	const query = `UPDATE requests SET mode = $2 WHERE id = $1 AND mode = $3`

	res, err := r.db.ExecContext(ctx, query, id, string(to), string(domain.RequestOpen))
	if err != nil {
		return fmt.Errorf("transition request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition request result: %w", err)
	}

	if affected == 0 {
		if _, err := r.ByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrRequestNotOpen
	}

	return nil
}
