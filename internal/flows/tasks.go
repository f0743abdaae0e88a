package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/adminbot/core/telegram/format"
	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/menu"
	"github.com/m3rciful/adminbot/internal/store"
)

const taskNotFound = "⚠️ Task not found !"

// EditTask stores the admin's text into one field of the selected task. The
// message field accepts *bold*, _italic_ and ``mono`` markup.
func (f *Flows) EditTask(target state.Target, field store.TaskField) dispatch.Route {
	return dispatch.Route{
		Target:      target,
		Name:        "edit_task_" + string(field),
		FailureText: "An error occurred while updating the task.",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			taskID, ok := t.Intent.Payload.String(state.KeyTaskID)
			t.Consume()
			if !ok {
				return dispatch.Missing(taskNotFound)
			}
			value := t.Event.Text
			if field == store.TaskMessage {
				value = format.ApplyMarkup(value)
			}
			if err := f.store.UpdateTaskField(ctx, taskID, field, value); err != nil {
				return err
			}
			if _, err := f.store.FindTask(ctx, taskID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return dispatch.Missing(taskNotFound)
				}
				return err
			}
			f.views.Invalidate()
			return f.send(ctx, t.Event.ChatID, withKeyboard(
				fmt.Sprintf("<b>✅ %s updated.</b>", field.Label()),
				button("↩️ Go Back", menu.CbEditTask, taskID),
			))
		},
	}
}
