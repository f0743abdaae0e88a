package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/adminbot/core/config"
	"github.com/m3rciful/adminbot/core/telegram/middleware"
)

// MiddlewareHooks receives events from the default middleware chain.
type MiddlewareHooks struct {
	OnLimited   tele.HandlerFunc
	RateLimited func()
	Duplicate   func()
	Updates     middleware.UpdateObserver
}

// DefaultMiddlewares builds the shared middleware chain: recover, logger,
// de-duplication, rate limiting and update metrics, in that order.
func DefaultMiddlewares(cfg *coreconfig.Config, hooks MiddlewareHooks) ([]Middleware, error) {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if cfg == nil {
		return mws, nil
	}

	dedupSize := cfg.Dedup.Size
	dedup, err := middleware.DedupMiddleware(dedupSize, hooks.Duplicate)
	if err != nil {
		return nil, err
	}
	mws = append(mws, Middleware{Name: "dedup", Use: dedup})

	if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			ex[strings.ToLower(t)] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  interval,
				Burst:     cfg.RateLimit.Burst,
				Exclude:   ex,
				OnLimited: hooks.OnLimited,
				Observe:   hooks.RateLimited,
			}),
		})
	}

	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware(hooks.Updates)})
	return mws, nil
}
