package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

type recordingReplier struct {
	sent []sentMessage
}

type sentMessage struct {
	chatID int64
	text   string
}

func (r *recordingReplier) Send(chatID int64, text string, opts ...interface{}) error {
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (r *recordingReplier) ChatAction(chatID int64, action string) error {
	return nil
}

func messageUpdate(text string) telebot.Update {
	return telebot.Update{Message: &telebot.Message{
		Text:   text,
		Chat:   &telebot.Chat{ID: 42},
		Sender: &telebot.User{ID: 7},
	}}
}

func TestDispatcher_RoutesCommandToRegistry(t *testing.T) {
	var gotArgs string
	d := New(Config{
		Registry: NewRegistry(CommandHandler{
			Name: "send",
			Func: func(c *Context) (Outcome, error) {
				gotArgs = c.Command().Text
				return End, nil
			},
		}),
		Log: testLogger(),
	})

	d.HandleUpdate(context.Background(), messageUpdate("/send 5 @alice"))

	assert.Equal(t, "5 @alice", gotArgs)
}

func TestDispatcher_UnknownCommandFallsBackToMessageHandler(t *testing.T) {
	fallbackRan := false
	d := New(Config{
		Registry: NewRegistry(),
		OnMessage: func(c *Context) (Outcome, error) {
			fallbackRan = true
			return End, nil
		},
		Log: testLogger(),
	})

	d.HandleUpdate(context.Background(), messageUpdate("/definitelynotacommand"))

	assert.True(t, fallbackRan)
}

func TestDispatcher_EmptyUpdateIsIgnored(t *testing.T) {
	d := New(Config{
		OnMessage: func(c *Context) (Outcome, error) {
			t.Fatal("message handler must not run for an empty update")
			return End, nil
		},
		Log: testLogger(),
	})

	d.HandleUpdate(context.Background(), telebot.Update{})
}

func TestDispatcher_FailureReachesOnFailureAndKeepsServing(t *testing.T) {
	boom := errors.New("boom")
	var caught error

	d := New(Config{
		Registry: NewRegistry(CommandHandler{
			Name: "send",
			Func: func(c *Context) (Outcome, error) { return End, boom },
		}),
		OnFailure: func(c *Context, err error) { caught = err },
		Log:       testLogger(),
	})

	d.HandleUpdate(context.Background(), messageUpdate("/send"))
	assert.ErrorIs(t, caught, boom)

	// Next update is handled normally.
	caught = nil
	d.HandleUpdate(context.Background(), messageUpdate("/help"))
	assert.NoError(t, caught)
}

func TestDispatcher_PanicIsCaughtAtBoundary(t *testing.T) {
	var caught error

	d := New(Config{
		Registry: NewRegistry(CommandHandler{
			Name: "send",
			Func: func(c *Context) (Outcome, error) { panic("kaboom") },
		}),
		OnFailure: func(c *Context, err error) { caught = err },
		Log:       testLogger(),
	})

	d.HandleUpdate(context.Background(), messageUpdate("/send"))

	var pe *PanicError
	require.ErrorAs(t, caught, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestDispatcher_MiddlewaresWrapEveryKind(t *testing.T) {
	var events []string
	mw := &recordingMiddleware{name: "mw", events: &events}

	d := New(Config{
		Middlewares: []Middleware{mw},
		OnCallbackQuery: func(c *Context) (Outcome, error) {
			events = append(events, "callback")
			return End, nil
		},
		Log: testLogger(),
	})

	d.HandleUpdate(context.Background(), telebot.Update{Callback: &telebot.Callback{}})

	assert.Equal(t, []string{"mw.before", "callback", "mw.after"}, events)
}

func TestDispatcher_RepliesGoThroughReplier(t *testing.T) {
	replier := &recordingReplier{}

	d := New(Config{
		Registry: NewRegistry(CommandHandler{
			Name: "ping",
			Func: func(c *Context) (Outcome, error) {
				return End, c.Reply("pong")
			},
		}),
		Replier: replier,
		Log:     testLogger(),
	})

	d.HandleUpdate(context.Background(), messageUpdate("/ping"))

	require.Len(t, replier.sent, 1)
	assert.Equal(t, int64(42), replier.sent[0].chatID)
	assert.Equal(t, "pong", replier.sent[0].text)
}
