package bot

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	errors "github.com/kwitt-bot/kwitt/internal/errors"
)

// TelebotReplier delivers outbound messages through telebot. Sends go through
// a circuit breaker so a Telegram API outage sheds load instead of piling up
// blocked workers.
type TelebotReplier struct {
	bot     *telebot.Bot
	breaker *errors.CircuitBreaker
	log     *slog.Logger
}

// NewTelebotReplier wraps a telebot instance as an outbound transport.
func NewTelebotReplier(bot *telebot.Bot, log *slog.Logger) *TelebotReplier {
	if log == nil {
		log = slog.Default()
	}

	return &TelebotReplier{
		bot:     bot,
		breaker: errors.NewCircuitBreaker(),
		log:     log,
	}
}

// Send delivers text to a chat. opts are passed through to telebot
// (reply markup, parse mode).
func (r *TelebotReplier) Send(chatID int64, text string, opts ...interface{}) error {
	err := r.breaker.Call(func() error {
		_, sendErr := r.bot.Send(telebot.ChatID(chatID), text, opts...)
		return sendErr
	})
	if err != nil {
		r.log.Warn("outbound send failed",
			slog.Int64("chat_id", chatID),
			slog.Any("error", err),
		)
		return errors.NewTransportError(err)
	}

	return nil
}

// ChatAction shows a chat action such as "typing" in the chat.
func (r *TelebotReplier) ChatAction(chatID int64, action string) error {
	err := r.breaker.Call(func() error {
		return r.bot.Notify(telebot.ChatID(chatID), telebot.ChatAction(action))
	})
	if err != nil {
		return errors.NewTransportError(err)
	}

	return nil
}

// Respond acknowledges a callback query so the client stops showing the
// loading spinner.
func (r *TelebotReplier) Respond(cb *telebot.Callback, text string) error {
	err := r.breaker.Call(func() error {
		return r.bot.Respond(cb, &telebot.CallbackResponse{Text: text})
	})
	if err != nil {
		return errors.NewTransportError(err)
	}

	return nil
}
