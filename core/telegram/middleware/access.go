package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/logger"
	tghelpers "github.com/m3rciful/adminbot/core/telegram/helpers"
)

// AdminChecker decides whether a user may run admin-only handlers.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	Checker  AdminChecker
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only admins reach downstream handlers. Without a
// checker every user is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			user := c.Sender()
			if user != nil && opts.Checker != nil && opts.Checker.IsAdmin(ctx, user.ID) {
				return next(c)
			}
			var userID int64
			if user != nil {
				userID = user.ID
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "access.denied", slog.Int64("user_id", userID))
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
