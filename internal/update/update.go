// Package update classifies raw Telegram updates into the fixed set of
// kinds the dispatcher routes on.
package update

import (
	"regexp"
	"strings"

	telebot "gopkg.in/telebot.v3"
)

// Kind identifies exactly one way an update is handled. Classification is
// mutually exclusive and follows a fixed priority order.
type Kind int

const (
	KindNone Kind = iota
	KindCommand
	KindMessage
	KindEditedMessage
	KindInlineQuery
	KindChosenInlineResult
	KindCallbackQuery
	KindChannelPost
	KindEditedChannelPost
)

var kindNames = map[Kind]string{
	KindNone:               "none",
	KindCommand:            "command",
	KindMessage:            "message",
	KindEditedMessage:      "edited_message",
	KindInlineQuery:        "inline_query",
	KindChosenInlineResult: "chosen_inline_result",
	KindCallbackQuery:      "callback_query",
	KindChannelPost:        "channel_post",
	KindEditedChannelPost:  "edited_channel_post",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is a parsed /name directive with its remaining argument text.
type Command struct {
	Name string
	Text string
}

var commandPattern = regexp.MustCompile(`^/([A-Za-z0-9_]+)`)

// ParseCommand extracts a command from message text. The argument text is
// everything after the name token with leading whitespace stripped. Returns
// nil when the text does not start with a command.
func ParseCommand(text string) *Command {
	m := commandPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	return &Command{
		Name: m[1],
		Text: strings.TrimLeft(text[len(m[0]):], " \t"),
	}
}

// Classify determines the single kind of an update. A message whose text
// parses as a command wins over a plain message; the remaining kinds follow
// the documented priority order.
func Classify(u telebot.Update) (Kind, *Command) {
	switch {
	case u.Message != nil:
		if cmd := ParseCommand(u.Message.Text); cmd != nil {
			return KindCommand, cmd
		}
		return KindMessage, nil
	case u.EditedMessage != nil:
		return KindEditedMessage, nil
	case u.Query != nil:
		return KindInlineQuery, nil
	case u.InlineResult != nil:
		return KindChosenInlineResult, nil
	case u.Callback != nil:
		return KindCallbackQuery, nil
	case u.ChannelPost != nil:
		return KindChannelPost, nil
	case u.EditedChannelPost != nil:
		return KindEditedChannelPost, nil
	default:
		return KindNone, nil
	}
}

// Sender returns the Telegram user behind the update, if any.
func Sender(u telebot.Update) *telebot.User {
	switch {
	case u.Message != nil:
		return u.Message.Sender
	case u.EditedMessage != nil:
		return u.EditedMessage.Sender
	case u.Query != nil:
		return u.Query.Sender
	case u.InlineResult != nil:
		return u.InlineResult.Sender
	case u.Callback != nil:
		return u.Callback.Sender
	default:
		return nil
	}
}

// ChatID returns the chat an update originated from, or 0 when the update
// has no chat (inline queries and chosen inline results).
func ChatID(u telebot.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.EditedMessage != nil && u.EditedMessage.Chat != nil:
		return u.EditedMessage.Chat.ID
	case u.Callback != nil && u.Callback.Message != nil && u.Callback.Message.Chat != nil:
		return u.Callback.Message.Chat.ID
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return u.ChannelPost.Chat.ID
	case u.EditedChannelPost != nil && u.EditedChannelPost.Chat != nil:
		return u.EditedChannelPost.Chat.ID
	default:
		return 0
	}
}
