package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/adminbot/core/telegram"
)

// Intents claims text that answers a pending prompt. handled is false when
// the sender has nothing pending.
type Intents interface {
	HandleText(c tele.Context) (handled bool, err error)
}

// TextOptions controls fallback behaviour for text and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// Commands guards admin-only commands reached through an alias.
	Commands CommandRouteOptions
}

// TextRoutes builds the text and document handlers. Text goes to the
// pending intent first, then to commands and their aliases, then to the
// fallbacks.
func TextRoutes(intents Intents, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()

		if intents != nil {
			var handled bool
			err := handleWithSummary(c, "intent", start, func() error {
				var err error
				handled, err = intents.HandleText(c)
				return err
			})
			if handled || err != nil {
				return err
			}
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				h := guard(cmd, opts.Commands)
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return h(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
		{Endpoint: tele.OnDocument, Handler: docHandler},
	}
}
