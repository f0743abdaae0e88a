package middleware

import (
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/logger"
	tghelpers "github.com/m3rciful/adminbot/core/telegram/helpers"
)

const maxTrackedUsers = 10_000

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the refill period of one token per user.
	Interval time.Duration
	// Burst is the number of updates accepted back to back.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Observe is called for every dropped update.
	Observe func()
}

// RateLimitMiddleware drops updates of a user that exceed a token bucket of
// Burst tokens refilled every Interval. Limiters of the least recently seen
// users are evicted.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limiters, _ := lru.New[int64, *rate.Limiter](maxTrackedUsers)

	limiterFor := func(userID int64) *rate.Limiter {
		if l, ok := limiters.Get(userID); ok {
			return l
		}
		l := rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)
		if prev, ok, _ := limiters.PeekOrAdd(userID, l); ok {
			return prev
		}
		return l
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if limiterFor(user.ID).Allow() {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "rate_limit",
				slog.Int64("user_id", user.ID),
				slog.String("kind", UpdateKind(c.Update())),
			)
			if opts.Observe != nil {
				opts.Observe()
			}
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
