// Package helpers sends replies from telebot handlers through the shared
// outbound dispatcher.
package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/logger"
	"github.com/m3rciful/adminbot/core/telegram/keyboard"
	"github.com/m3rciful/adminbot/core/telegram/reply"
	"github.com/m3rciful/adminbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// Options returns HTML send options carrying the message keyboard.
func Options(msg reply.Message) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		ReplyMarkup:           keyboard.Markup(msg.Keyboard),
		DisableWebPagePreview: true,
	}
}

// SendHTML sends msg to the current chat.
func SendHTML(c tele.Context, msg reply.Message) error {
	opts := Options(msg)
	return sendAsync(c, "send.html", "sendMessage", func() error {
		return c.Send(msg.Text, opts)
	})
}

// SendAll sends msgs to the current chat in order, stopping at the first
// failure.
func SendAll(c tele.Context, msgs ...reply.Message) error {
	return sendAsync(c, "send.batch", "sendMessage", func() error {
		for _, msg := range msgs {
			if err := c.Send(msg.Text, Options(msg)); err != nil {
				return err
			}
		}
		return nil
	})
}

// EditOrSendHTML edits the message behind a callback or sends a new one.
func EditOrSendHTML(c tele.Context, msg reply.Message) error {
	opts := Options(msg)
	return sendAsync(c, "edit.html", "editMessageText", func() error {
		return c.EditOrSend(msg.Text, opts)
	})
}
