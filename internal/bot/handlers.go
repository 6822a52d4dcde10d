package bot

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/kwitt-bot/kwitt/internal/bot/keyboard"
	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/internal/domain"
	errors "github.com/kwitt-bot/kwitt/internal/errors"
	"github.com/kwitt-bot/kwitt/internal/ledger"
	"github.com/kwitt-bot/kwitt/internal/usercache"
	"github.com/kwitt-bot/kwitt/pkg/metrics"
)

var markdownEscaper = regexp.MustCompile("([*_`\\[])")

func escapeMarkdown(text string) string {
	return markdownEscaper.ReplaceAllString(text, `\$1`)
}

// Handlers holds the command handlers behind the dispatcher's registry.
type Handlers struct {
	service  *ledger.Service
	cache    *usercache.Cache
	replier  *TelebotReplier
	registry *dispatch.Registry
	botName  string
	log      *slog.Logger
}

// NewHandlers constructs the command handler set. botName is the public bot
// handle used in user-facing copy, e.g. "@KwittBot".
func NewHandlers(service *ledger.Service, cache *usercache.Cache, replier *TelebotReplier, botName string, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}

	return &Handlers{
		service: service,
		cache:   cache,
		replier: replier,
		botName: botName,
		log:     log,
	}
}

// BindRegistry hands the finished registry back so /start can show the help
// listing after registering a new user.
func (h *Handlers) BindRegistry(r *dispatch.Registry) {
	h.registry = r
}

// Commands lists every command handled by the bot. The built-in help command
// comes from the registry itself.
func (h *Handlers) Commands() []dispatch.CommandHandler {
	return []dispatch.CommandHandler{
		{Name: "start", Help: "Register to " + h.botName + ".", Func: h.Start},
		{Name: "send", Help: "Send money to a friend.", Func: h.Send},
		{Name: "request", Help: "Request money from a friend.", Func: h.Request},
		{Name: "balance", Help: "Show your current balance.", Func: h.Balance},
		{Name: "transactions", Help: "Show your transaction history.", Func: h.Transactions},
		{Name: "credit", Help: "Charge your " + h.botName + " account.", Func: h.Credit},
		{Name: "debit", Help: "Withdraw money from your " + h.botName + " account.", Func: h.Debit},
	}
}

// Start registers the sender or welcomes them back.
func (h *Handlers) Start(c *dispatch.Context) (dispatch.Outcome, error) {
	sender := c.Sender()
	if sender == nil {
		return dispatch.End, nil
	}

	if c.Actor() != nil {
		metrics.RecordCommand("start", "ok")
		return dispatch.End, c.Reply(fmt.Sprintf(
			"Seems like we've already got you covered. Type /help if you don't know how to use %s!", h.botName))
	}

	displayName := strings.TrimSpace(sender.FirstName + " " + sender.LastName)

	if err := c.Reply(fmt.Sprintf(
		"Hi %s, I am %s! Seems like this is your first time here, so I'll quickly set up everything for you.",
		displayName, h.botName)); err != nil {
		return dispatch.End, err
	}
	_ = c.ChatAction("typing")

	user, created, err := h.service.Register(c.Ctx(), ledger.RegisterInfo{
		ChatID:       c.ChatID(),
		TelegramID:   sender.ID,
		Username:     sender.Username,
		DisplayName:  displayName,
		LanguageCode: sender.LanguageCode,
	})
	if err != nil {
		metrics.RecordCommand("start", "error")
		return dispatch.End, err
	}
	c.SetActor(user)

	if created {
		if err := c.Reply(fmt.Sprintf("Done. You can now use %s!", h.botName)); err != nil {
			return dispatch.End, err
		}
	}

	metrics.RecordCommand("start", "ok")

	if h.registry != nil {
		return dispatch.End, c.Reply(h.registry.HelpText())
	}
	return dispatch.End, nil
}

// Send handles "/send <amount> @<username> [description]".
func (h *Handlers) Send(c *dispatch.Context) (dispatch.Outcome, error) {
	actor := c.Actor()
	if actor == nil {
		return dispatch.End, c.Reply("I don't know you yet. Type /start first!")
	}

	args, err := ledger.ParseTransferArgs(c.Command().Text)
	if err != nil {
		metrics.RecordCommand("send", "rejected")
		return dispatch.End, parseFailure(err, "/send <amount> @<username> [description]")
	}

	result, err := h.service.Transfer(c.Ctx(), actor, args)
	if err != nil {
		metrics.RecordCommand("send", "rejected")
		return dispatch.End, err
	}

	h.invalidate(c, result.Sender.TelegramID, result.Receiver.TelegramID)
	metrics.RecordCommand("send", "ok")

	if err := c.Reply(fmt.Sprintf("You've sent %s to %s! Your new balance is %s.",
		domain.FormatAmount(args.Amount), result.Receiver.Mention(),
		domain.FormatAmount(result.Sender.Balance))); err != nil {
		return dispatch.End, err
	}

	if result.Receiver.ID != result.Sender.ID {
		if err := c.ReplyTo(result.Receiver.ChatID, fmt.Sprintf(
			"You just received %s from %s!",
			domain.FormatAmount(args.Amount), result.Sender.Mention())); err != nil {
			h.log.Warn("receiver notification failed",
				slog.Int64("chat_id", result.Receiver.ChatID), slog.Any("error", err))
		}
	}

	return dispatch.End, nil
}

// Request handles "/request <amount> @<username> [description]". The target
// gets an inline accept/reject keyboard.
func (h *Handlers) Request(c *dispatch.Context) (dispatch.Outcome, error) {
	actor := c.Actor()
	if actor == nil {
		return dispatch.End, c.Reply("I don't know you yet. Type /start first!")
	}

	args, err := ledger.ParseTransferArgs(c.Command().Text)
	if err != nil {
		metrics.RecordCommand("request", "rejected")
		return dispatch.End, parseFailure(err, "/request <amount> @<username> [description]")
	}

	result, err := h.service.CreateRequest(c.Ctx(), actor, args)
	if err != nil {
		metrics.RecordCommand("request", "rejected")
		return dispatch.End, err
	}

	markup, err := keyboard.RequestMarkup(result.Request.ID)
	if err != nil {
		return dispatch.End, err
	}

	text := fmt.Sprintf("%s requests %s from you.",
		actor.Mention(), domain.FormatAmount(args.Amount))
	if args.Description != "" {
		text += "\n" + args.Description
	}

	if err := c.ReplyTo(result.Target.ChatID, text, markup); err != nil {
		return dispatch.End, err
	}

	metrics.RecordCommand("request", "ok")

	return dispatch.End, c.Reply(fmt.Sprintf("Your request was sent to %s.", result.Target.Mention()))
}

// Balance recomputes and shows the sender's balance.
func (h *Handlers) Balance(c *dispatch.Context) (dispatch.Outcome, error) {
	actor := c.Actor()
	if actor == nil {
		return dispatch.End, c.Reply(
			"Sorry, we can't find you in our database! Type /start to register.")
	}

	_ = c.ChatAction("typing")

	balance, err := h.service.Balance(c.Ctx(), actor)
	if err != nil {
		metrics.RecordCommand("balance", "error")
		return dispatch.End, err
	}

	h.invalidate(c, actor.TelegramID)
	metrics.RecordCommand("balance", "ok")

	return dispatch.End, c.Reply(
		fmt.Sprintf("Your balance is *%s*", domain.FormatAmount(balance)),
		telebot.ModeMarkdown)
}

// Transactions lists the sender's transaction history, oldest first.
func (h *Handlers) Transactions(c *dispatch.Context) (dispatch.Outcome, error) {
	actor := c.Actor()
	if actor == nil {
		return dispatch.End, c.Reply("Sorry, who are you again? Type /start to register.")
	}

	entries, err := h.service.History(c.Ctx(), actor)
	if err != nil {
		metrics.RecordCommand("transactions", "error")
		return dispatch.End, err
	}

	lines := []string{"Here is a list of your transactions:"}
	for _, e := range entries {
		var msg string
		switch {
		case e.Counterpart == "yourself":
			msg = "to yourself"
		case e.Gain:
			msg = "from " + e.Counterpart
		default:
			msg = "to " + e.Counterpart
		}
		msg += fmt.Sprintf(" (%s)", e.Transaction.CreatedAt.Format("2006-01-02 15:04"))

		lines = append(lines, fmt.Sprintf("*%s* %s",
			domain.FormatAmount(e.Transaction.Amount), escapeMarkdown(msg)))
	}

	if len(entries) == 0 {
		lines = append(lines, "*No transactions*")
	}

	metrics.RecordCommand("transactions", "ok")

	return dispatch.End, c.Reply(strings.Join(lines, "\n"), telebot.ModeMarkdown)
}

// Credit handles "/credit <amount>" through the development gateway.
func (h *Handlers) Credit(c *dispatch.Context) (dispatch.Outcome, error) {
	actor := c.Actor()
	if actor == nil {
		return dispatch.End, c.Reply(
			"Sorry, we can't find you in our database! Type /start to register.")
	}

	fields := strings.Fields(c.Command().Text)
	if len(fields) == 0 {
		metrics.RecordCommand("credit", "rejected")
		return dispatch.End, errors.NewParseError("Invalid syntax. Use: /credit <amount>")
	}

	amount, err := domain.ParseAmount(fields[0])
	if err != nil {
		metrics.RecordCommand("credit", "rejected")
		return dispatch.End, errors.NewParseError("Invalid amount.")
	}

	if _, err := h.service.GatewayCredit(c.Ctx(), actor, amount, "telegram_dev_command",
		strings.Join(fields[1:], " ")); err != nil {
		metrics.RecordCommand("credit", "error")
		return dispatch.End, err
	}

	h.invalidate(c, actor.TelegramID)
	metrics.RecordCommand("credit", "ok")

	return dispatch.End, c.Reply(
		fmt.Sprintf("You've been credited *%s*", domain.FormatAmount(amount)),
		telebot.ModeMarkdown)
}

// Debit acknowledges the command; withdrawals need a gateway flow the ledger
// cannot represent yet, since every transaction must name a receiver.
func (h *Handlers) Debit(c *dispatch.Context) (dispatch.Outcome, error) {
	if c.Actor() == nil {
		return dispatch.End, c.Reply(
			"Sorry, we can't find you in our database! Type /start to register.")
	}

	metrics.RecordCommand("debit", "ok")

	return dispatch.End, c.Reply("Withdrawals are not supported yet. Stay tuned!")
}

// Message is the fallback for plain messages and unrecognized commands.
func (h *Handlers) Message(c *dispatch.Context) (dispatch.Outcome, error) {
	if c.Sender() == nil {
		return dispatch.Continue, nil
	}

	return dispatch.End, c.Reply("I don't understand that. Type /help to see what I can do.")
}

func (h *Handlers) invalidate(c *dispatch.Context, telegramIDs ...int64) {
	for _, id := range telegramIDs {
		if err := h.cache.Invalidate(c.Ctx(), id); err != nil {
			h.log.Warn("user cache invalidation failed",
				slog.Int64("telegram_id", id), slog.Any("error", err))
		}
	}
}

// parseFailure maps argument parsing failures to user-facing parse errors.
func parseFailure(err error, usage string) error {
	switch {
	case stdErrors.Is(err, ledger.ErrBadSyntax), stdErrors.Is(err, ledger.ErrBadUsername):
		return errors.NewParseError("Invalid syntax. Use: " + usage)
	default:
		return errors.NewParseError("Invalid amount.")
	}
}
