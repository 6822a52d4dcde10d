package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/kwitt-bot/kwitt/internal/dispatch"
	errors "github.com/kwitt-bot/kwitt/internal/errors"
	"github.com/kwitt-bot/kwitt/internal/ledger"
	"github.com/kwitt-bot/kwitt/internal/usercache"
	"github.com/kwitt-bot/kwitt/pkg/config"
)

// Bot owns the Telegram transport: it polls raw updates and feeds them to a
// pool of dispatcher workers. Routing happens entirely in the dispatcher, so
// every update kind passes through the same middleware chain.
type Bot struct {
	telebot    *telebot.Bot
	poller     telebot.Poller
	dispatcher *dispatch.Dispatcher
	replier    *TelebotReplier
	errHandler *errors.Handler
	workers    int
	log        *slog.Logger

	updates chan telebot.Update
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New builds the Telegram bot: transport, handler set, registry, and
// dispatcher, wired with the given middleware chain.
func New(
	cfg config.Config,
	log *slog.Logger,
	service *ledger.Service,
	cache *usercache.Cache,
	middlewares []dispatch.Middleware,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		// Polling happens in our own loop; telebot only provides the API
		// client and the poller.
		Synchronous: true,
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	var poller telebot.Poller
	if cfg.Bot.Mode == "webhook" {
		poller = &telebot.Webhook{Listen: cfg.Server.Port}
	} else {
		poller = &telebot.LongPoller{Timeout: cfg.Bot.Timeout}
	}

	replier := NewTelebotReplier(tb, log)
	handlers := NewHandlers(service, cache, replier, cfg.Bot.Name, log)
	registry := dispatch.NewRegistry(handlers.Commands()...)
	handlers.BindRegistry(registry)

	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)

	dispatcher := dispatch.New(dispatch.Config{
		Registry:        registry,
		Middlewares:     middlewares,
		Replier:         replier,
		OnMessage:       handlers.Message,
		OnCallbackQuery: handlers.Callback,
		OnFailure: func(c *dispatch.Context, err error) {
			userMsg, _ := errHandler.Handle(c.Ctx(), err)
			if userMsg != "" && c.ChatID() != 0 {
				_ = c.Reply(userMsg)
			}
		},
		Log:   log,
		Debug: cfg.Debug,
	})

	workers := cfg.Bot.Workers
	if workers <= 0 {
		workers = 1
	}

	b := &Bot{
		telebot:    tb,
		poller:     poller,
		dispatcher: dispatcher,
		replier:    replier,
		errHandler: errHandler,
		workers:    workers,
		log:        log,
		updates:    make(chan telebot.Update, 100),
		stop:       make(chan struct{}),
	}

	if err := b.announceCommands(); err != nil {
		log.Warn("failed to announce commands to telegram", slog.Any("error", err))
	}

	return b, nil
}

// Start launches the poller and the worker pool. It returns immediately.
func (b *Bot) Start(ctx context.Context) {
	go b.poller.Poll(b.telebot, b.updates, b.stop)

	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}

	b.log.Info("telegram bot started",
		slog.String("name", b.telebot.Me.Username),
		slog.Int("workers", b.workers),
	)
}

// Stop halts polling and waits for in-flight updates to finish.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot...")
	close(b.stop)
	b.wg.Wait()
}

// Telebot exposes the underlying client for integrations such as health
// checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Dispatcher exposes the update dispatcher, mainly for tests.
func (b *Bot) Dispatcher() *dispatch.Dispatcher {
	return b.dispatcher
}

func (b *Bot) worker(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-b.stop:
			return
		case upd := <-b.updates:
			b.dispatcher.HandleUpdate(ctx, upd)
		}
	}
}

// announceCommands publishes the command list so Telegram clients can offer
// completion.
func (b *Bot) announceCommands() error {
	names := b.dispatcher.Registry().Names()

	commands := make([]telebot.Command, 0, len(names))
	for _, name := range names {
		cmd, ok := b.dispatcher.Registry().Lookup(name)
		if !ok {
			continue
		}
		commands = append(commands, telebot.Command{Text: cmd.Name, Description: cmd.Help})
	}

	return b.telebot.SetCommands(commands)
}
