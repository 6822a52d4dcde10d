package dispatch

import (
	"context"
	"errors"

	telebot "gopkg.in/telebot.v3"

	"github.com/kwitt-bot/kwitt/internal/domain"
	"github.com/kwitt-bot/kwitt/internal/update"
)

// ErrNoChat is returned by Reply and ChatAction when the update carries no
// chat and no explicit chat id was provided.
var ErrNoChat = errors.New("update has no chat to reply to")

// Replier delivers outbound messages. The bot transport implements it; tests
// substitute a recorder.
type Replier interface {
	Send(chatID int64, text string, opts ...interface{}) error
	ChatAction(chatID int64, action string) error
}

// Context carries all per-update state through the middleware chain and into
// the handler. One Context is allocated per update and released
// unconditionally after the after-phase, so no state survives into the next
// update handled by the same worker.
type Context struct {
	ctx     context.Context
	upd     telebot.Update
	kind    update.Kind
	command *update.Command
	actor   *domain.User
	replier Replier
	scratch map[string]any
}

func newContext(ctx context.Context, upd telebot.Update, kind update.Kind, cmd *update.Command, r Replier) *Context {
	return &Context{
		ctx:     ctx,
		upd:     upd,
		kind:    kind,
		command: cmd,
		replier: r,
		scratch: make(map[string]any),
	}
}

// Ctx returns the request-scoped context carrying the correlation id.
func (c *Context) Ctx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Update returns the raw inbound update.
func (c *Context) Update() telebot.Update { return c.upd }

// Kind returns the classified update kind.
func (c *Context) Kind() update.Kind { return c.kind }

// Command returns the parsed command, or nil for non-command updates.
func (c *Context) Command() *update.Command { return c.command }

// Actor returns the resolved ledger user behind the update, or nil when the
// sender is unknown to the ledger.
func (c *Context) Actor() *domain.User { return c.actor }

// SetActor records the resolved user. Called by the actor middleware.
func (c *Context) SetActor(u *domain.User) { c.actor = u }

// Sender returns the raw Telegram sender of the update, if any.
func (c *Context) Sender() *telebot.User { return update.Sender(c.upd) }

// ChatID returns the chat the update originated from, or 0 when absent.
func (c *Context) ChatID() int64 { return update.ChatID(c.upd) }

// Get reads a scratch value shared between middlewares.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.scratch[key]
	return v, ok
}

// Set stores a scratch value shared between middlewares.
func (c *Context) Set(key string, value any) {
	c.scratch[key] = value
}

// Reply sends text to the update's chat.
func (c *Context) Reply(text string, opts ...interface{}) error {
	return c.ReplyTo(c.ChatID(), text, opts...)
}

// ReplyTo sends text to an explicit chat.
func (c *Context) ReplyTo(chatID int64, text string, opts ...interface{}) error {
	if chatID == 0 {
		return ErrNoChat
	}
	if c.replier == nil {
		return nil
	}
	return c.replier.Send(chatID, text, opts...)
}

// ChatAction sends a chat action (typing, etc.) to the update's chat.
func (c *Context) ChatAction(action string) error {
	chatID := c.ChatID()
	if chatID == 0 {
		return ErrNoChat
	}
	if c.replier == nil {
		return nil
	}
	return c.replier.ChatAction(chatID, action)
}

// Replier exposes the outbound transport for handlers that notify third
// parties (for example the receiver of a transfer).
func (c *Context) Replier() Replier { return c.replier }

// release drops all per-update state. The dispatcher calls it after the
// after-phase regardless of how handling went.
func (c *Context) release() {
	c.actor = nil
	c.command = nil
	c.scratch = nil
	c.ctx = nil
}
