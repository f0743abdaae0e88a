// Package dispatch turns the next text message of a user into the transition
// their pending intent asked for.
//
// Routes are evaluated in registration order. The first route whose target
// equals the sender's intent runs and the event is Handled; otherwise the
// event passes through to command and menu handling.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/m3rciful/adminbot/core/logger"
	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
)

// Outcome tags a dispatch result.
type Outcome int

const (
	// PassThrough means no intent claimed the event.
	PassThrough Outcome = iota
	// Handled means a route consumed the event, successfully or not.
	Handled
)

func (o Outcome) String() string {
	if o == Handled {
		return "handled"
	}
	return "pass_through"
}

// Result describes what happened to an event.
type Result struct {
	Outcome Outcome
	Target  state.Target
	// Kind is one of the Kind* constants for handled events.
	Kind string
}

// HandlerFunc performs one transition.
type HandlerFunc func(ctx context.Context, t *Turn) error

// Route binds a handler to an intent target.
type Route struct {
	Target state.Target
	Name   string
	Handle HandlerFunc
	// FailureText replaces DefaultFailureText for unexpected errors.
	FailureText string
}

// Turn is the input of one handler invocation.
type Turn struct {
	Event  chat.Event
	Intent state.Intent

	store    state.Store
	consumed bool
}

// Consume clears the sender's intent. Later calls are no-ops.
func (t *Turn) Consume() {
	if t.consumed {
		return
	}
	t.store.Clear(t.Event.UserID)
	t.consumed = true
}

// Next replaces the sender's intent from inside a handler. Use it instead of
// Dispatcher.Expect, which would wait on the lock the handler holds.
func (t *Turn) Next(target state.Target, payload state.Payload, back string) {
	t.store.Set(t.Event.UserID, target, payload, back)
	t.consumed = true
}

// Consumed reports whether Consume ran.
func (t *Turn) Consumed() bool { return t.consumed }

// Replier sends error replies back to the sender.
type Replier interface {
	Send(ctx context.Context, chatID int64, msg chat.Message) error
}

// Observer receives dispatch metrics.
type Observer interface {
	DispatchOutcome(target, outcome string, took time.Duration)
	DispatchPassThrough()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithFailureText overrides DefaultFailureText for routes that set none.
func WithFailureText(text string) Option {
	return func(d *Dispatcher) {
		if text != "" {
			d.failureText = text
		}
	}
}

// Dispatcher owns the pending-intent store and the ordered route list.
type Dispatcher struct {
	store       state.Store
	replier     Replier
	routes      []Route
	locks       *keyedMutex
	observer    Observer
	failureText string
}

// New validates routes and builds a Dispatcher. Two routes for one target is
// a wiring error.
func New(store state.Store, replier Replier, routes []Route, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("dispatch: nil intent store")
	}
	if replier == nil {
		return nil, fmt.Errorf("dispatch: nil replier")
	}
	seen := make(map[state.Target]string, len(routes))
	for i, r := range routes {
		if r.Target == "" || r.Handle == nil {
			return nil, fmt.Errorf("dispatch: route %d (%q) is incomplete", i, r.Name)
		}
		if prev, dup := seen[r.Target]; dup {
			return nil, fmt.Errorf("dispatch: target %q registered by %q and %q", r.Target, prev, r.Name)
		}
		seen[r.Target] = r.Name
	}
	d := &Dispatcher{
		store:       store,
		replier:     replier,
		routes:      append([]Route(nil), routes...),
		locks:       newKeyedMutex(),
		failureText: DefaultFailureText,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Expect records what the next text message of userID means, replacing any
// earlier intent.
func (d *Dispatcher) Expect(ctx context.Context, userID int64, target state.Target, payload state.Payload, back string) {
	unlock := d.locks.Lock(userID)
	defer unlock()
	d.store.Set(userID, target, payload, back)
	logger.LogEvent(ctx, logger.DISP, slog.LevelDebug, "intent.set",
		slog.Int64("user_id", userID),
		slog.String("target", string(target)),
	)
}

// Cancel drops the user's intent, if any.
func (d *Dispatcher) Cancel(ctx context.Context, userID int64) (state.Intent, bool) {
	unlock := d.locks.Lock(userID)
	defer unlock()
	in, ok := d.store.Get(userID)
	if ok {
		d.store.Clear(userID)
		logger.LogEvent(ctx, logger.DISP, slog.LevelDebug, "intent.cancel",
			slog.Int64("user_id", userID),
			slog.String("target", string(in.Target)),
		)
	}
	return in, ok
}

// Pending returns the user's current intent.
func (d *Dispatcher) Pending(userID int64) (state.Intent, bool) {
	return d.store.Get(userID)
}

// Dispatch runs the route matching the sender's intent. Events from one user
// are processed one at a time. Handler errors and panics are reported to the
// sender and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev chat.Event) Result {
	unlock := d.locks.Lock(ev.UserID)
	defer unlock()

	intent, ok := d.store.Get(ev.UserID)
	if !ok {
		d.passThrough()
		return Result{Outcome: PassThrough}
	}
	for _, r := range d.routes {
		if r.Target != intent.Target {
			continue
		}
		return d.run(ctx, r, ev, intent)
	}
	logger.LogEvent(ctx, logger.DISP, slog.LevelWarn, "intent.unrouted",
		slog.Int64("user_id", ev.UserID),
		slog.String("target", string(intent.Target)),
	)
	d.passThrough()
	return Result{Outcome: PassThrough, Target: intent.Target}
}

func (d *Dispatcher) passThrough() {
	if d.observer != nil {
		d.observer.DispatchPassThrough()
	}
}

func (d *Dispatcher) run(ctx context.Context, r Route, ev chat.Event, intent state.Intent) Result {
	ctx = logger.WithHandler(ctx, "intent."+r.Name)
	turn := &Turn{Event: ev, Intent: intent, store: d.store}
	start := time.Now()

	err := d.invoke(ctx, r, turn)
	took := time.Since(start)
	kind, reply, userFacing := classify(err)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("target", string(r.Target)),
		slog.String("outcome", kind),
		slog.Bool("consumed", turn.Consumed()),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	switch {
	case err == nil:
		logger.LogEvent(ctx, logger.DISP, slog.LevelInfo, "intent.handled", attrs...)
	case userFacing:
		logger.LogEvent(ctx, logger.DISP, slog.LevelInfo, "intent.rejected",
			append(attrs, slog.String("reason", logger.SanitizeLimit(err.Error(), 256)))...)
		d.reply(ctx, ev.ChatID, reply)
	default:
		logger.LogEvent(ctx, logger.DISP, slog.LevelError, "intent.failed",
			append(attrs,
				slog.Int64("user_id", ev.UserID),
				slog.String("input", logger.SanitizeLimit(ev.Text, 256)),
				slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
			)...)
		text := r.FailureText
		if text == "" {
			text = d.failureText
		}
		d.reply(ctx, ev.ChatID, chat.Message{Text: text})
	}
	if d.observer != nil {
		d.observer.DispatchOutcome(string(r.Target), kind, took)
	}
	return Result{Outcome: Handled, Target: r.Target, Kind: kind}
}

func (d *Dispatcher) invoke(ctx context.Context, r Route, t *Turn) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.LogEvent(ctx, logger.DISP, slog.LevelError, "intent.panic",
				slog.String("target", string(r.Target)),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("dispatch: handler %s panicked: %v", r.Name, rec)
		}
	}()
	return r.Handle(ctx, t)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, msg chat.Message) {
	if err := d.replier.Send(ctx, chatID, msg); err != nil {
		logger.LogEvent(ctx, logger.DISP, slog.LevelWarn, "intent.reply_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
