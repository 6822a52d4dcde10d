package middleware

import (
	"log/slog"

	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/internal/ledger"
	"github.com/kwitt-bot/kwitt/internal/usercache"
)

// Actor resolves the Telegram sender to a ledger user and attaches it to the
// update context. Unknown senders pass through with no actor set; handlers
// that need one tell the user to /start first. Resolution goes through the
// Redis cache when one is configured.
type Actor struct {
	service *ledger.Service
	cache   *usercache.Cache
	log     *slog.Logger
}

// NewActor constructs the actor-resolution middleware.
func NewActor(service *ledger.Service, cache *usercache.Cache, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}

	return &Actor{service: service, cache: cache, log: log}
}

func (m *Actor) Before(c *dispatch.Context) (dispatch.Outcome, error) {
	sender := c.Sender()
	if sender == nil {
		return dispatch.Continue, nil
	}

	if cached, err := m.cache.Get(c.Ctx(), sender.ID); err != nil {
		m.log.Warn("user cache read failed",
			slog.Int64("telegram_id", sender.ID),
			slog.Any("error", err),
		)
	} else if cached != nil {
		c.SetActor(cached)
		return dispatch.Continue, nil
	}

	user, err := m.service.Lookup(c.Ctx(), sender.ID)
	if err != nil {
		// Unknown senders are not an error; /start registers them.
		return dispatch.Continue, nil
	}

	c.SetActor(user)

	if err := m.cache.Set(c.Ctx(), user); err != nil {
		m.log.Warn("user cache write failed",
			slog.Int64("telegram_id", sender.ID),
			slog.Any("error", err),
		)
	}

	return dispatch.Continue, nil
}

func (m *Actor) After(c *dispatch.Context) error {
	return nil
}
