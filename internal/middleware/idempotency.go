package middleware

import (
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/internal/idempotency"
)

const idempotencyKeyKey = "idempotency.key"

// Idempotency ensures one update is handled at most once, even when Telegram
// redelivers it after a long-poll timeout. The before hook takes the
// processing lock; a key already locked or completed ends the update without
// reaching the handler. The after hook marks the key completed and releases
// the lock, so it runs exactly once per update by chain contract.
type Idempotency struct {
	store idempotency.Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewIdempotency constructs the deduplication middleware. ttl bounds how long
// a completed key suppresses redeliveries.
func NewIdempotency(store idempotency.Store, ttl time.Duration, log *slog.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}

	return &Idempotency{store: store, ttl: ttl, log: log}
}

func (m *Idempotency) Before(c *dispatch.Context) (dispatch.Outcome, error) {
	if m.store == nil {
		return dispatch.Continue, nil
	}

	key := updateKey(c.Update())
	if key == "" {
		return dispatch.Continue, nil
	}

	locked, err := m.store.Lock(c.Ctx(), key, 5*time.Minute)
	if err != nil {
		m.log.Warn("idempotency lock failed", slog.String("key", key), slog.Any("error", err))
		return dispatch.Continue, nil
	}

	if !locked {
		m.log.Info("duplicate update suppressed", slog.String("key", key))
		return dispatch.End, nil
	}

	record, err := m.store.Get(c.Ctx(), key)
	if err == nil && record != nil && record.Status == idempotency.StatusCompleted {
		_ = m.store.ReleaseLock(c.Ctx(), key)
		m.log.Info("already-handled update suppressed", slog.String("key", key))
		return dispatch.End, nil
	}

	c.Set(idempotencyKeyKey, key)

	return dispatch.Continue, nil
}

func (m *Idempotency) After(c *dispatch.Context) error {
	v, ok := c.Get(idempotencyKeyKey)
	if !ok {
		return nil
	}
	key := v.(string)

	record := &idempotency.Record{Status: idempotency.StatusCompleted}
	if err := m.store.Set(c.Ctx(), key, record, m.ttl); err != nil {
		m.log.Warn("idempotency record write failed", slog.String("key", key), slog.Any("error", err))
	}

	return m.store.ReleaseLock(c.Ctx(), key)
}

// updateKey derives a stable deduplication key for an update. Callback
// queries carry a unique id; messages are keyed by chat and message id. The
// identifying parts are hashed so stored keys have a fixed shape.
func updateKey(u telebot.Update) string {
	if cb := u.Callback; cb != nil {
		if cb.ID != "" {
			return fmt.Sprintf("cb:%s", idempotency.GenerateKey(cb.ID))
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			return fmt.Sprintf("cb:%s", idempotency.GenerateKey(cb.Message.Chat.ID, cb.Message.ID))
		}
	}

	if msg := u.Message; msg != nil && msg.Chat != nil && msg.ID != 0 {
		return fmt.Sprintf("msg:%s", idempotency.GenerateKey(msg.Chat.ID, msg.ID))
	}

	return ""
}
