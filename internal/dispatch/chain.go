package dispatch

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Handler processes one classified update.
type Handler func(c *Context) (Outcome, error)

// Middleware wraps every update's handling with a before and an after hook.
// Before hooks run in registration order; a Before returning End or an error
// skips the remaining before hooks and the handler. After hooks run in
// reverse registration order for every middleware in the chain, exactly once
// per update, no matter how the before-phase or the handler ended.
type Middleware interface {
	Before(c *Context) (Outcome, error)
	After(c *Context) error
}

// Hooks adapts plain functions to the Middleware interface. Either hook may
// be nil.
type Hooks struct {
	BeforeFunc func(c *Context) (Outcome, error)
	AfterFunc  func(c *Context) error
}

func (h Hooks) Before(c *Context) (Outcome, error) {
	if h.BeforeFunc == nil {
		return Continue, nil
	}
	return h.BeforeFunc(c)
}

func (h Hooks) After(c *Context) error {
	if h.AfterFunc == nil {
		return nil
	}
	return h.AfterFunc(c)
}

// PanicError wraps a recovered panic so the failure handler can log the
// stack trace.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Chain is the ordered middleware sequence. It is built once at startup and
// never mutated afterwards.
type Chain struct {
	mws []Middleware
	log *slog.Logger
}

// NewChain builds a chain over the given middlewares in registration order.
func NewChain(log *slog.Logger, mws ...Middleware) *Chain {
	if log == nil {
		log = slog.Default()
	}

	return &Chain{mws: append([]Middleware(nil), mws...), log: log}
}

// Run executes the before-phase, the handler, and the after-phase for one
// update. It returns the first failure encountered: a before or handler
// error (panics included) takes precedence, otherwise the first after-hook
// failure. Later after-hook failures are logged and do not stop the
// remaining after hooks.
func (ch *Chain) Run(c *Context, h Handler) error {
	fail := ch.runForward(c, h)

	var afterFail error
	for i := len(ch.mws) - 1; i >= 0; i-- {
		if err := ch.runAfter(ch.mws[i], c); err != nil {
			if fail == nil && afterFail == nil {
				afterFail = err
				continue
			}
			ch.log.Error("after-hook failed", slog.Any("error", err))
		}
	}

	if fail != nil {
		return fail
	}
	return afterFail
}

func (ch *Chain) runForward(c *Context, h Handler) (fail error) {
	defer func() {
		if r := recover(); r != nil {
			fail = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	for _, mw := range ch.mws {
		outcome, err := mw.Before(c)
		if err != nil {
			return err
		}
		if outcome == End {
			return nil
		}
	}

	if h == nil {
		return nil
	}

	_, err := h(c)
	return err
}

func (ch *Chain) runAfter(mw Middleware, c *Context) (fail error) {
	defer func() {
		if r := recover(); r != nil {
			fail = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return mw.After(c)
}
