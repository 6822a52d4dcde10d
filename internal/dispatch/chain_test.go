package dispatch

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

type recordingMiddleware struct {
	name    string
	events  *[]string
	before  func(c *Context) (Outcome, error)
	after   func(c *Context) error
	befores int
	afters  int
}

func (m *recordingMiddleware) Before(c *Context) (Outcome, error) {
	m.befores++
	*m.events = append(*m.events, m.name+".before")
	if m.before != nil {
		return m.before(c)
	}
	return Continue, nil
}

func (m *recordingMiddleware) After(c *Context) error {
	m.afters++
	*m.events = append(*m.events, m.name+".after")
	if m.after != nil {
		return m.after(c)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext() *Context {
	return newContext(nil, telebot.Update{}, 0, nil, nil)
}

func TestChain_OrderAndSingleAfterRun(t *testing.T) {
	var events []string
	a := &recordingMiddleware{name: "a", events: &events}
	b := &recordingMiddleware{name: "b", events: &events}

	ch := NewChain(testLogger(), a, b)

	err := ch.Run(testContext(), func(c *Context) (Outcome, error) {
		events = append(events, "handler")
		return Continue, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.before", "b.before", "handler", "b.after", "a.after"}, events)
	assert.Equal(t, 1, a.afters)
	assert.Equal(t, 1, b.afters)
}

func TestChain_BeforeErrorSkipsHandlerButRunsAllAfters(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	a := &recordingMiddleware{name: "a", events: &events}
	b := &recordingMiddleware{
		name:   "b",
		events: &events,
		before: func(c *Context) (Outcome, error) { return Continue, boom },
	}
	c := &recordingMiddleware{name: "c", events: &events}

	ch := NewChain(testLogger(), a, b, c)

	handlerRan := false
	err := ch.Run(testContext(), func(*Context) (Outcome, error) {
		handlerRan = true
		return Continue, nil
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, handlerRan)
	// c's before never ran, but every middleware's after still runs once.
	assert.Equal(t, 0, c.befores)
	assert.Equal(t, []string{"a.before", "b.before", "c.after", "b.after", "a.after"}, events)
}

func TestChain_EndStopsForwardPhaseWithoutError(t *testing.T) {
	var events []string
	a := &recordingMiddleware{
		name:   "a",
		events: &events,
		before: func(c *Context) (Outcome, error) { return End, nil },
	}
	b := &recordingMiddleware{name: "b", events: &events}

	ch := NewChain(testLogger(), a, b)

	handlerRan := false
	err := ch.Run(testContext(), func(*Context) (Outcome, error) {
		handlerRan = true
		return Continue, nil
	})

	require.NoError(t, err)
	assert.False(t, handlerRan)
	assert.Equal(t, []string{"a.before", "b.after", "a.after"}, events)
}

func TestChain_HandlerPanicBecomesErrorAndAftersRun(t *testing.T) {
	var events []string
	a := &recordingMiddleware{name: "a", events: &events}

	ch := NewChain(testLogger(), a)

	err := ch.Run(testContext(), func(*Context) (Outcome, error) {
		panic("kaboom")
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, 1, a.afters)
}

func TestChain_ForwardFailureTakesPrecedenceOverAfterFailure(t *testing.T) {
	var events []string
	handlerErr := errors.New("handler failed")
	afterErr := errors.New("after failed")

	a := &recordingMiddleware{
		name:   "a",
		events: &events,
		after:  func(c *Context) error { return afterErr },
	}

	ch := NewChain(testLogger(), a)

	err := ch.Run(testContext(), func(*Context) (Outcome, error) {
		return Continue, handlerErr
	})

	assert.ErrorIs(t, err, handlerErr)
	assert.Equal(t, 1, a.afters)
}

func TestChain_AfterErrorReportedWhenForwardSucceeds(t *testing.T) {
	var events []string
	afterErr := errors.New("after failed")

	a := &recordingMiddleware{name: "a", events: &events}
	b := &recordingMiddleware{
		name:   "b",
		events: &events,
		after:  func(c *Context) error { return afterErr },
	}

	ch := NewChain(testLogger(), a, b)

	err := ch.Run(testContext(), func(*Context) (Outcome, error) {
		return Continue, nil
	})

	assert.ErrorIs(t, err, afterErr)
	// The later after hook still ran despite b's failure.
	assert.Equal(t, 1, a.afters)
}

func TestChain_AfterPanicIsContained(t *testing.T) {
	var events []string
	a := &recordingMiddleware{name: "a", events: &events}
	b := &recordingMiddleware{
		name:   "b",
		events: &events,
		after:  func(c *Context) error { panic("after kaboom") },
	}

	ch := NewChain(testLogger(), a, b)

	err := ch.Run(testContext(), func(*Context) (Outcome, error) {
		return Continue, nil
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, a.afters)
}
