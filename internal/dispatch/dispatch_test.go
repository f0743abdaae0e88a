package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
)

type sent struct {
	chatID int64
	text   string
}

type recordingReplier struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recordingReplier) Send(_ context.Context, chatID int64, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{chatID: chatID, text: msg.Text})
	return nil
}

func (r *recordingReplier) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.text)
	}
	return out
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
	passes   int
}

func (o *countingObserver) DispatchOutcome(target, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[target+"/"+outcome]++
}

func (o *countingObserver) DispatchPassThrough() {
	o.mu.Lock()
	o.passes++
	o.mu.Unlock()
}

func event(userID int64, text string) chat.Event {
	return chat.Event{UserID: userID, ChatID: userID, Text: text}
}

func newDispatcher(t *testing.T, routes ...Route) (*Dispatcher, *state.MemoryStore, *recordingReplier, *countingObserver) {
	t.Helper()
	store := state.NewMemoryStore()
	replier := &recordingReplier{}
	obs := &countingObserver{}
	d, err := New(store, replier, routes, WithObserver(obs))
	require.NoError(t, err)
	return d, store, replier, obs
}

func TestDispatchPassesThroughWithoutIntent(t *testing.T) {
	called := false
	d, _, replier, obs := newDispatcher(t, Route{
		Target: state.TargetSupport,
		Name:   "support",
		Handle: func(context.Context, *Turn) error { called = true; return nil },
	})

	res := d.Dispatch(context.Background(), event(1, "hello"))
	assert.Equal(t, PassThrough, res.Outcome)
	assert.False(t, called)
	assert.Empty(t, replier.texts())
	assert.Equal(t, 1, obs.passes)
}

func TestDispatchRunsFirstMatchingRouteOnly(t *testing.T) {
	var order []string
	mk := func(name string, target state.Target) Route {
		return Route{Target: target, Name: name, Handle: func(_ context.Context, turn *Turn) error {
			order = append(order, name)
			turn.Consume()
			return nil
		}}
	}
	d, store, _, obs := newDispatcher(t,
		mk("user", state.TargetAdminUserID),
		mk("balance", state.TargetBalanceAmount),
		mk("support", state.TargetSupport),
	)
	ctx := context.Background()
	d.Expect(ctx, 5, state.TargetBalanceAmount, state.Payload{state.KeyUserID: int64(9)}, "")

	res := d.Dispatch(ctx, event(5, "50"))
	assert.Equal(t, Handled, res.Outcome)
	assert.Equal(t, state.TargetBalanceAmount, res.Target)
	assert.Equal(t, KindOK, res.Kind)
	assert.Equal(t, []string{"balance"}, order)
	assert.Zero(t, store.Len())
	assert.Equal(t, 1, obs.outcomes["admin_balance_amount/ok"])
}

func TestValidationErrorKeepsIntentAndReplies(t *testing.T) {
	d, _, replier, _ := newDispatcher(t, Route{
		Target: state.TargetAdminUserID,
		Name:   "user",
		Handle: func(context.Context, *Turn) error { return Invalid("⚠️ Invalid user ID.") },
	})
	ctx := context.Background()
	d.Expect(ctx, 3, state.TargetAdminUserID, nil, "admin")

	res := d.Dispatch(ctx, event(3, "abc"))
	assert.Equal(t, KindValidation, res.Kind)
	assert.Equal(t, []string{"⚠️ Invalid user ID."}, replier.texts())
	in, ok := d.Pending(3)
	require.True(t, ok)
	assert.Equal(t, "admin", in.BackCommand)
}

func TestCollaboratorErrorSendsFailureText(t *testing.T) {
	d, _, replier, obs := newDispatcher(t,
		Route{
			Target: state.TargetAddSocial,
			Name:   "social",
			Handle: func(_ context.Context, turn *Turn) error {
				turn.Consume()
				return errors.New("insert failed")
			},
		},
		Route{
			Target:      state.TargetSupport,
			Name:        "support",
			FailureText: "support is down",
			Handle:      func(context.Context, *Turn) error { return errors.New("relay broken") },
		},
	)
	ctx := context.Background()

	d.Expect(ctx, 1, state.TargetAddSocial, nil, "")
	res := d.Dispatch(ctx, event(1, "Join-https://example.com"))
	assert.Equal(t, KindFailure, res.Kind)

	d.Expect(ctx, 2, state.TargetSupport, nil, "")
	d.Dispatch(ctx, event(2, "help"))

	assert.Equal(t, []string{DefaultFailureText, "support is down"}, replier.texts())
	assert.Equal(t, 1, obs.outcomes["add_social/failure"])
}

func TestPanicIsIsolated(t *testing.T) {
	d, _, replier, _ := newDispatcher(t, Route{
		Target: state.TargetAddAdminID,
		Name:   "add_admin",
		Handle: func(context.Context, *Turn) error { panic("nil map") },
	})
	ctx := context.Background()
	d.Expect(ctx, 4, state.TargetAddAdminID, nil, "")

	var res Result
	require.NotPanics(t, func() { res = d.Dispatch(ctx, event(4, "99")) })
	assert.Equal(t, Handled, res.Outcome)
	assert.Equal(t, KindFailure, res.Kind)
	assert.Equal(t, []string{DefaultFailureText}, replier.texts())

	// the next event is still processed
	d.Expect(ctx, 4, state.TargetAddAdminID, nil, "")
	res = d.Dispatch(ctx, event(4, "100"))
	assert.Equal(t, KindFailure, res.Kind)
}

func TestWrappedUserErrorsAreClassified(t *testing.T) {
	d, _, replier, _ := newDispatcher(t,
		Route{Target: state.TargetEditTaskName, Name: "task", Handle: func(_ context.Context, turn *Turn) error {
			turn.Consume()
			return errors.Join(errors.New("reload"), Missing("⚠️ Task not found !"))
		}},
		Route{Target: state.TargetSupport, Name: "support", Handle: func(context.Context, *Turn) error {
			return Full("wait")
		}},
	)
	ctx := context.Background()
	d.Expect(ctx, 1, state.TargetEditTaskName, nil, "")
	assert.Equal(t, KindNotFound, d.Dispatch(ctx, event(1, "new")).Kind)
	d.Expect(ctx, 2, state.TargetSupport, nil, "")
	assert.Equal(t, KindCapacity, d.Dispatch(ctx, event(2, "hi")).Kind)
	assert.Equal(t, []string{"⚠️ Task not found !", "wait"}, replier.texts())
}

func TestTurnNextReplacesIntent(t *testing.T) {
	d, _, _, _ := newDispatcher(t, Route{Target: state.TargetAdminUserID, Name: "user", Handle: func(_ context.Context, turn *Turn) error {
		turn.Next(state.TargetBalanceAmount, state.Payload{state.KeyUserID: int64(7)}, "user")
		return nil
	}})
	ctx := context.Background()
	d.Expect(ctx, 1, state.TargetAdminUserID, nil, "")
	d.Dispatch(ctx, event(1, "7"))

	in, ok := d.Pending(1)
	require.True(t, ok)
	assert.Equal(t, state.TargetBalanceAmount, in.Target)
}

func TestCancel(t *testing.T) {
	d, _, _, _ := newDispatcher(t)
	ctx := context.Background()
	_, ok := d.Cancel(ctx, 1)
	assert.False(t, ok)

	d.Expect(ctx, 1, state.TargetSupport, nil, "main")
	in, ok := d.Cancel(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, state.TargetSupport, in.Target)
	_, ok = d.Pending(1)
	assert.False(t, ok)
}

func TestNewRejectsDuplicateTargets(t *testing.T) {
	noop := func(context.Context, *Turn) error { return nil }
	_, err := New(state.NewMemoryStore(), &recordingReplier{}, []Route{
		{Target: state.TargetSupport, Name: "a", Handle: noop},
		{Target: state.TargetSupport, Name: "b", Handle: noop},
	})
	require.Error(t, err)

	_, err = New(state.NewMemoryStore(), &recordingReplier{}, []Route{{Target: state.TargetSupport, Name: "nil"}})
	require.Error(t, err)
}

func TestSameUserEventsAreSerialized(t *testing.T) {
	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
		effects  atomic.Int32
	)
	d, _, _, _ := newDispatcher(t, Route{Target: state.TargetSupport, Name: "support", Handle: func(_ context.Context, turn *Turn) error {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)
		time.Sleep(5 * time.Millisecond)
		turn.Consume()
		effects.Add(1)
		return nil
	}})
	ctx := context.Background()
	d.Expect(ctx, 8, state.TargetSupport, nil, "")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(ctx, event(8, "double submit"))
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	// only the first event found the intent
	assert.Equal(t, int32(1), effects.Load())
	assert.Zero(t, d.locks.size())
}
