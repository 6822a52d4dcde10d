package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantNil  bool
		wantName string
		wantText string
	}{
		{name: "bare command", text: "/balance", wantName: "balance", wantText: ""},
		{name: "command with args", text: "/send 10.50 @alice lunch", wantName: "send", wantText: "10.50 @alice lunch"},
		{name: "leading whitespace stripped", text: "/send    10 @bob", wantName: "send", wantText: "10 @bob"},
		{name: "underscore and digits", text: "/cmd_2 x", wantName: "cmd_2", wantText: "x"},
		{name: "plain text", text: "hello", wantNil: true},
		{name: "slash only", text: "/", wantNil: true},
		{name: "slash mid-text", text: "a /send", wantNil: true},
		{name: "empty", text: "", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ParseCommand(tt.text)
			if tt.wantNil {
				assert.Nil(t, cmd)
				return
			}
			require.NotNil(t, cmd)
			assert.Equal(t, tt.wantName, cmd.Name)
			assert.Equal(t, tt.wantText, cmd.Text)
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	msg := &telebot.Message{Text: "hello"}
	cmdMsg := &telebot.Message{Text: "/start"}

	tests := []struct {
		name string
		upd  telebot.Update
		want Kind
	}{
		{name: "command beats message", upd: telebot.Update{Message: cmdMsg}, want: KindCommand},
		{name: "plain message", upd: telebot.Update{Message: msg}, want: KindMessage},
		{
			name: "message beats edited message",
			upd:  telebot.Update{Message: msg, EditedMessage: msg},
			want: KindMessage,
		},
		{name: "edited message", upd: telebot.Update{EditedMessage: msg}, want: KindEditedMessage},
		{
			name: "edited message beats inline query",
			upd:  telebot.Update{EditedMessage: msg, Query: &telebot.Query{}},
			want: KindEditedMessage,
		},
		{name: "inline query", upd: telebot.Update{Query: &telebot.Query{}}, want: KindInlineQuery},
		{
			name: "chosen inline result",
			upd:  telebot.Update{InlineResult: &telebot.InlineResult{}},
			want: KindChosenInlineResult,
		},
		{name: "callback query", upd: telebot.Update{Callback: &telebot.Callback{}}, want: KindCallbackQuery},
		{
			name: "callback beats channel post",
			upd:  telebot.Update{Callback: &telebot.Callback{}, ChannelPost: msg},
			want: KindCallbackQuery,
		},
		{name: "channel post", upd: telebot.Update{ChannelPost: msg}, want: KindChannelPost},
		{name: "edited channel post", upd: telebot.Update{EditedChannelPost: msg}, want: KindEditedChannelPost},
		{name: "empty update", upd: telebot.Update{}, want: KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, cmd := Classify(tt.upd)
			assert.Equal(t, tt.want, kind)
			if tt.want == KindCommand {
				require.NotNil(t, cmd)
				assert.Equal(t, "start", cmd.Name)
			} else {
				assert.Nil(t, cmd)
			}
		})
	}
}

func TestChatID(t *testing.T) {
	chat := &telebot.Chat{ID: 77}

	assert.Equal(t, int64(77), ChatID(telebot.Update{Message: &telebot.Message{Chat: chat}}))
	assert.Equal(t, int64(77), ChatID(telebot.Update{
		Callback: &telebot.Callback{Message: &telebot.Message{Chat: chat}},
	}))
	assert.Zero(t, ChatID(telebot.Update{Query: &telebot.Query{}}))
}
