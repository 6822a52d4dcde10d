package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineKeyboardBuilder_Build(t *testing.T) {
	markup, err := NewInlineKeyboard().
		AddRow(
			InlineButton{Text: "Send", Verb: VerbAccept, Data: "req-1"},
			InlineButton{Text: "Reject", Verb: VerbReject, Data: "req-1"},
		).
		AddRow(InlineButton{Text: "Also reject", Verb: VerbReject, Data: "req-2"}).
		Build()
	require.NoError(t, err)

	require.Len(t, markup.InlineKeyboard, 2)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "Send", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "send:req-1", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "reject:req-1", markup.InlineKeyboard[0][1].Data)
	assert.Equal(t, "reject:req-2", markup.InlineKeyboard[1][0].Data)
}

func TestInlineKeyboardBuilder_EmptyRowIgnored(t *testing.T) {
	markup, err := NewInlineKeyboard().AddRow().Build()
	require.NoError(t, err)
	assert.Empty(t, markup.InlineKeyboard)
}

func TestInlineKeyboardBuilder_EncodingFailureAborts(t *testing.T) {
	_, err := NewInlineKeyboard().
		AddRow(InlineButton{Text: "Send", Verb: VerbAccept, Data: strings.Repeat("x", 100)}).
		Build()
	assert.ErrorIs(t, err, ErrCallbackTooLong)
}

func TestRequestMarkup(t *testing.T) {
	markup, err := RequestMarkup("req-9")
	require.NoError(t, err)

	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)

	verb, data, err := DecodeCallback(markup.InlineKeyboard[0][0].Data)
	require.NoError(t, err)
	assert.Equal(t, VerbAccept, verb)
	assert.Equal(t, "req-9", data)

	verb, _, err = DecodeCallback(markup.InlineKeyboard[0][1].Data)
	require.NoError(t, err)
	assert.Equal(t, VerbReject, verb)
}
