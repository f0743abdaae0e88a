package middleware

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/logger"
	tghelpers "github.com/m3rciful/adminbot/core/telegram/helpers"
)

// DedupMiddleware drops updates whose ID was already processed. Telegram
// redelivers updates after webhook timeouts and restarts. The last size IDs
// are remembered.
func DedupMiddleware(size int, onDuplicate func()) (tele.MiddlewareFunc, error) {
	if size <= 0 {
		size = 1024
	}
	seen, err := lru.New[int, struct{}](size)
	if err != nil {
		return nil, err
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id := c.Update().ID
			if id == 0 {
				return next(c)
			}
			if ok, _ := seen.ContainsOrAdd(id, struct{}{}); ok {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelInfo, "update.duplicate",
					slog.Int("update_id", id),
				)
				if onDuplicate != nil {
					onDuplicate()
				}
				return nil
			}
			return next(c)
		}
	}, nil
}
