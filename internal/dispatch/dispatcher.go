package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/kwitt-bot/kwitt/internal/update"
	"github.com/kwitt-bot/kwitt/pkg/logger"
)

// Config assembles a Dispatcher. All fields are read once at construction;
// the dispatcher never mutates its routing tables afterwards.
type Config struct {
	Registry    *Registry
	Middlewares []Middleware
	Replier     Replier

	// Fixed-kind handlers. A nil handler makes the kind a no-op. Unknown
	// commands fall back to OnMessage.
	OnMessage            Handler
	OnEditedMessage      Handler
	OnInlineQuery        Handler
	OnChosenInlineResult Handler
	OnCallbackQuery      Handler
	OnChannelPost        Handler
	OnEditedChannelPost  Handler

	// OnFailure receives every failure caught at the dispatch boundary.
	// When nil, failures are logged and echoed to the user only under Debug.
	OnFailure func(c *Context, err error)

	Log   *slog.Logger
	Debug bool
}

// Dispatcher classifies inbound updates, runs the middleware chain, and
// routes each update to exactly one handler. Failures never escape a
// dispatch: they are routed to the failure handler and the process keeps
// accepting updates.
type Dispatcher struct {
	registry  *Registry
	chain     *Chain
	replier   Replier
	handlers  map[update.Kind]Handler
	onFailure func(c *Context, err error)
	log       *slog.Logger
	debug     bool
}

// New builds a Dispatcher from the config.
func New(cfg Config) *Dispatcher {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	d := &Dispatcher{
		registry: registry,
		chain:    NewChain(log, cfg.Middlewares...),
		replier:  cfg.Replier,
		handlers: map[update.Kind]Handler{
			update.KindMessage:            cfg.OnMessage,
			update.KindEditedMessage:      cfg.OnEditedMessage,
			update.KindInlineQuery:        cfg.OnInlineQuery,
			update.KindChosenInlineResult: cfg.OnChosenInlineResult,
			update.KindCallbackQuery:      cfg.OnCallbackQuery,
			update.KindChannelPost:        cfg.OnChannelPost,
			update.KindEditedChannelPost:  cfg.OnEditedChannelPost,
		},
		onFailure: cfg.OnFailure,
		log:       log,
		debug:     cfg.Debug,
	}

	if d.onFailure == nil {
		d.onFailure = d.defaultFailureHandler
	}

	return d
}

// Registry exposes the command registry, mainly for the transport layer to
// announce commands to Telegram.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// HandleUpdate processes one inbound update to completion. It is safe to
// call from multiple workers concurrently; each call owns its Context.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd telebot.Update) {
	kind, cmd := update.Classify(upd)
	if kind == update.KindNone {
		d.log.Debug("update carries no handleable payload", slog.Int("update_id", upd.ID))
		return
	}

	ctx = logger.WithCorrelationID(ctx, uuid.NewString())
	c := newContext(ctx, upd, kind, cmd, d.replier)
	defer c.release()

	if err := d.chain.Run(c, d.route); err != nil {
		d.onFailure(c, err)
	}
}

// route is the root handler the chain wraps. The switch over kinds is
// exhaustive: every classified kind maps to exactly one branch.
func (d *Dispatcher) route(c *Context) (Outcome, error) {
	switch c.Kind() {
	case update.KindCommand:
		return d.routeCommand(c)
	case update.KindMessage:
		return d.invoke(update.KindMessage, c)
	case update.KindEditedMessage:
		return d.invoke(update.KindEditedMessage, c)
	case update.KindInlineQuery:
		return d.invoke(update.KindInlineQuery, c)
	case update.KindChosenInlineResult:
		return d.invoke(update.KindChosenInlineResult, c)
	case update.KindCallbackQuery:
		return d.invoke(update.KindCallbackQuery, c)
	case update.KindChannelPost:
		return d.invoke(update.KindChannelPost, c)
	case update.KindEditedChannelPost:
		return d.invoke(update.KindEditedChannelPost, c)
	default:
		return Continue, nil
	}
}

func (d *Dispatcher) routeCommand(c *Context) (Outcome, error) {
	cmd := c.Command()
	if cmd == nil {
		return d.invoke(update.KindMessage, c)
	}

	if handler, ok := d.registry.Lookup(cmd.Name); ok {
		return handler.Func(c)
	}

	// Unrecognized command names fall back to the plain-message handler.
	return d.invoke(update.KindMessage, c)
}

func (d *Dispatcher) invoke(kind update.Kind, c *Context) (Outcome, error) {
	h := d.handlers[kind]
	if h == nil {
		return Continue, nil
	}
	return h(c)
}

func (d *Dispatcher) defaultFailureHandler(c *Context, err error) {
	attrs := []any{
		slog.String("kind", c.Kind().String()),
		slog.Any("error", err),
	}
	if id := logger.CorrelationIDFromContext(c.Ctx()); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if sender := c.Sender(); sender != nil {
		attrs = append(attrs, slog.Int64("telegram_id", sender.ID))
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}

	d.log.Error("update handling failed", attrs...)

	if d.debug {
		_ = c.Reply("Error: " + err.Error())
	}
}
