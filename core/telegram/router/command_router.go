package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/logger"
	tg "github.com/m3rciful/adminbot/core/telegram"
	"github.com/m3rciful/adminbot/core/telegram/commands"
	"github.com/m3rciful/adminbot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Admins        middleware.AdminChecker
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to its slash endpoint.
// Admin-only commands are guarded by the admin check.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  wrapCommand(name, def, opts),
		})
	}

	logger.LogEvent(logger.Background(), logger.TWire, slog.LevelInfo, "complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// guard applies the admin check to admin-only commands.
func guard(def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	if !def.AdminOnly {
		return def.Handler
	}
	return middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		Checker:  opts.Admins,
		OnReject: opts.OnAdminReject,
	})(def.Handler)
}

// wrapCommand applies the admin check and the handler summary log.
func wrapCommand(name string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	h := guard(def, opts)
	handlerName := normalizeHandlerName(name)
	return func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, handlerName, start, func() error { return h(c) })
	}
}
