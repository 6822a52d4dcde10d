package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kwitt-bot/kwitt/internal/domain"
)

// MemoryStore is an in-memory implementation of all three stores. It backs
// tests and local development without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	nextUserID   int64
	users        map[int64]*domain.User
	transactions []domain.Transaction
	gateways     map[string]*domain.GatewayTransactionDetails
	requests     map[string]*domain.Request
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextUserID: 1,
		users:      make(map[int64]*domain.User),
		gateways:   make(map[string]*domain.GatewayTransactionDetails),
		requests:   make(map[string]*domain.Request),
	}
}

// Users returns the UserStore view.
func (m *MemoryStore) Users() UserStore { return (*memoryUsers)(m) }

// Transactions returns the TransactionStore view.
func (m *MemoryStore) Transactions() TransactionStore { return (*memoryTransactions)(m) }

// Requests returns the RequestStore view.
func (m *MemoryStore) Requests() RequestStore { return (*memoryRequests)(m) }

type memoryUsers MemoryStore

var _ UserStore = (*memoryUsers)(nil)

// Create stores a new user, enforcing chat id, telegram id, and username
// uniqueness.
func (m *memoryUsers) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.ChatID == user.ChatID || existing.TelegramID == user.TelegramID {
			return ErrUserExists
		}
		if user.Username != "" && strings.EqualFold(existing.Username, user.Username) {
			return ErrUserExists
		}
	}

	user.ID = m.nextUserID
	m.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memoryUsers) ByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

func (m *memoryUsers) ByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.TelegramID == telegramID {
			clone := *user
			return &clone, nil
		}
	}

	return nil, ErrUserNotFound
}

func (m *memoryUsers) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Username != "" && strings.EqualFold(user.Username, username) {
			clone := *user
			return &clone, nil
		}
	}

	return nil, ErrUserNotFound
}

func (m *memoryUsers) SaveBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	user.Balance = balance
	return nil
}

func (m *memoryUsers) All(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]domain.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, *user)
	}

	return users, nil
}

type memoryTransactions MemoryStore

var _ TransactionStore = (*memoryTransactions)(nil)

// Append adds one transaction to the log.
func (m *memoryTransactions) Append(ctx context.Context, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(t)
	return nil
}

// AppendWithGateway writes both records under one lock so no reader ever
// observes the pair half-complete.
func (m *memoryTransactions) AppendWithGateway(ctx context.Context, d *domain.GatewayTransactionDetails, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	clone := *d
	m.gateways[d.ID] = &clone

	gatewayID := d.ID
	t.GatewayID = &gatewayID
	m.appendLocked(t)
	return nil
}

func (m *memoryTransactions) appendLocked(t *domain.Transaction) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	m.transactions = append(m.transactions, *t)
}

func (m *memoryTransactions) ByUser(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Transaction
	for _, t := range m.transactions {
		if t.ReceiverID == userID || (t.SenderID != nil && *t.SenderID == userID) {
			out = append(out, t)
		}
	}

	return out, nil
}

func (m *memoryTransactions) GatewayByID(ctx context.Context, id string) (*domain.GatewayTransactionDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.gateways[id]
	if !ok {
		return nil, ErrGatewayNotFound
	}

	clone := *d
	return &clone, nil
}

type memoryRequests MemoryStore

var _ RequestStore = (*memoryRequests)(nil)

func (m *memoryRequests) Create(ctx context.Context, r *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Mode == "" {
		r.Mode = domain.RequestOpen
	}

	clone := *r
	m.requests[r.ID] = &clone
	return nil
}

func (m *memoryRequests) ByID(ctx context.Context, id string) (*domain.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}

	clone := *r
	return &clone, nil
}

func (m *memoryRequests) Transition(ctx context.Context, id string, to domain.RequestMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}

	return r.Transition(to)
}
