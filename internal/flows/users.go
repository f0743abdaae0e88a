package flows

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/store"
)

// MaxBalanceDelta bounds a single balance change in either direction.
const MaxBalanceDelta = 1_000_000_000

// UserLookup opens the settings of the user whose id the admin sends.
func (f *Flows) UserLookup() dispatch.Route {
	return dispatch.Route{
		Target: state.TargetAdminUserID,
		Name:   "user_lookup",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			id, err := strconv.ParseInt(strings.TrimSpace(t.Event.Text), 10, 64)
			if err != nil {
				return dispatch.Invalid("⚠️ Invalid user ID.")
			}
			u, err := f.store.FindUser(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return dispatch.Missing("⚠️ User not found in bot database.")
			}
			if err != nil {
				return err
			}
			t.Consume()
			return f.send(ctx, t.Event.ChatID,
				f.views.UserSettings(u).Message(),
				withKeyboard("User Settings.", f.views.Main(true).Keyboard),
			)
		},
	}
}

// Balance adds the amount the admin sends to the selected user's balance.
func (f *Flows) Balance() dispatch.Route {
	return dispatch.Route{
		Target:      state.TargetBalanceAmount,
		Name:        "balance",
		FailureText: "⚠️ Failed to update balance. Contact DevOps.",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			mainKB := f.views.Main(true).Keyboard
			userID, ok := t.Intent.Payload.Int64(state.KeyUserID)
			if !ok {
				t.Consume()
				return &dispatch.NotFoundError{Reply: withKeyboard("⚠️ Invalid user selection.", mainKB)}
			}
			if _, err := f.store.FindUser(ctx, userID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					t.Consume()
					return &dispatch.NotFoundError{Reply: withKeyboard("⚠️ User not found in the database.", mainKB)}
				}
				return err
			}

			amount, err := parseAmount(t.Event.Text)
			if err != nil {
				return dispatch.Invalid("⚠️ Invalid amount !\n\nUse numbers between -1B and 1B")
			}

			t.Consume()
			if _, err := f.store.AddBalance(ctx, userID, amount); err != nil {
				return err
			}
			u, err := f.store.FindUser(ctx, userID)
			if err != nil {
				return err
			}
			return f.send(ctx, t.Event.ChatID,
				withKeyboard(fmt.Sprintf("✅ Balance Added : %s₹%s\n", sign(amount), strconv.FormatFloat(amount, 'f', -1, 64)), mainKB),
				f.views.UserSettings(u).Message(),
			)
		},
	}
}

func parseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxBalanceDelta {
		return 0, fmt.Errorf("amount %v out of range", v)
	}
	return v, nil
}

func sign(v float64) string {
	if v >= 0 {
		return "+"
	}
	return ""
}

