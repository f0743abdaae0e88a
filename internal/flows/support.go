package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/adminbot/core/logger"
	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/support"
)

// Support relays the user's message to the admins.
func (f *Flows) Support() dispatch.Route {
	return dispatch.Route{
		Target:      state.TargetSupport,
		Name:        "support",
		FailureText: "<b>⚠️ Failed to send response !</b>",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			text := strings.TrimSpace(t.Event.Text)
			if text == "" {
				return dispatch.Invalid("⚠️ Please send your query as text.")
			}
			t.Consume()

			sub, err := f.relay.Submit(ctx, t.Event, text)
			if errors.Is(err, support.ErrCapacity) {
				return &dispatch.CapacityError{Reply: withKeyboard(
					"<b>⚠️ Please wait for existing queries to be answered.</b>",
					f.views.Main(f.admins.IsAdmin(ctx, t.Event.UserID)).Keyboard,
				)}
			}
			if err != nil {
				return err
			}
			f.deleteInput(ctx, t.Event)
			return f.send(ctx, t.Event.ChatID,
				chat.Message{Text: fmt.Sprintf("<b>✅ Message delivered to admins.\n\nℹ️ Query ID : <code>%s</code></b>", sub.QueryID)},
				f.mainMenu(ctx, t.Event.UserID),
			)
		},
	}
}

// ReplyToQuery delivers the admin's answer to the user who asked.
func (f *Flows) ReplyToQuery() dispatch.Route {
	return dispatch.Route{
		Target:      state.TargetReplyToQuery,
		Name:        "reply_to_query",
		FailureText: "⚠️ Unable to send message !",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			userID, okUser := t.Intent.Payload.Int64(state.KeyUserID)
			queryID, okQuery := t.Intent.Payload.String(state.KeyQueryID)
			t.Consume()
			if !okUser || !okQuery {
				return dispatch.Missing("⚠️ Invalid query selection.")
			}
			f.deleteInput(ctx, t.Event)

			if err := f.relay.Resolve(ctx, userID, queryID, t.Event.Text); err != nil {
				return err
			}
			return f.send(ctx, t.Event.ChatID,
				withKeyboard("<b>✅ Message delivered to the user.</b>",
					button("Send Again", support.ReplyCallback, support.ReplyData(userID, queryID))),
				f.mainMenu(ctx, t.Event.UserID),
			)
		},
	}
}

func (f *Flows) deleteInput(ctx context.Context, ev chat.Event) {
	if ev.MessageID == 0 {
		return
	}
	if err := f.messenger.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
		logger.LogEvent(ctx, logger.DISP, slog.LevelDebug, "input.delete_failed",
			slog.Int64("chat_id", ev.ChatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
