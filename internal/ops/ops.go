// Package ops serves health, readiness, metrics and support backlog
// introspection over HTTP.
package ops

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/adminbot/core/logger"
)

// Config controls the ops listener. An empty Addr disables it.
type Config struct {
	Addr            string `yaml:"addr" envconfig:"OPS_ADDR"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec" envconfig:"OPS_SHUTDOWN_TIMEOUT_SEC"`
}

// Pinger checks a dependency the bot needs to serve traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backlog exposes unanswered support queries.
type Backlog interface {
	Outstanding(userID int64) []string
}

// NewHandler builds the gin engine. gatherer defaults to the global registry.
func NewHandler(db Pinger, backlog Backlog, gatherer prometheus.Gatherer) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/debug/support/:user_id", func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
			return
		}
		queries := backlog.Outstanding(userID)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "pending": len(queries), "query_ids": queries})
	})
	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.LogEvent(c.Request.Context(), logger.OPS, level, "http.request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("code", c.Writer.Status()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// Serve runs handler on cfg.Addr until ctx is cancelled.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	if cfg.Addr == "" {
		return nil
	}
	timeout := time.Duration(cfg.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogEvent(ctx, logger.OPS, slog.LevelInfo, "ops.listen", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	logger.LogEvent(ctx, logger.OPS, slog.LevelInfo, "ops.stopped", slog.String("status", logger.Status(err)))
	return err
}
