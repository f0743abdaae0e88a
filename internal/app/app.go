package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/bootstrap"
	"github.com/m3rciful/adminbot/core/logger"
	coretelegram "github.com/m3rciful/adminbot/core/telegram"
	"github.com/m3rciful/adminbot/core/telegram/router"
	"github.com/m3rciful/adminbot/core/telegram/sender"
	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/admins"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/flows"
	"github.com/m3rciful/adminbot/internal/menu"
	"github.com/m3rciful/adminbot/internal/metrics"
	"github.com/m3rciful/adminbot/internal/ops"
	"github.com/m3rciful/adminbot/internal/store"
	"github.com/m3rciful/adminbot/internal/support"
	"github.com/m3rciful/adminbot/migrations"
)

// Deps are the externally built resources of an App.
type Deps struct {
	DB  *sqlx.DB
	Bot *tele.Bot
	// Messenger defaults to a telebot adapter around Bot.
	Messenger  chat.Messenger
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// App is the assembled bot.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	bot      *tele.Bot
	gatherer prometheus.Gatherer

	store    *store.Store
	metrics  *metrics.Metrics
	admins   *admins.Resolver
	relay    *support.Relay
	menu     *menu.Menu
	intents  *dispatch.Dispatcher
	handlers *Handlers
	registry *coretelegram.Registry
}

// New wires the conversational core around deps.
func New(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if deps.DB == nil {
		return nil, errors.New("app: nil database")
	}
	messenger := deps.Messenger
	if messenger == nil {
		if deps.Bot == nil {
			return nil, errors.New("app: either a bot or a messenger is required")
		}
		messenger = NewMessenger(deps.Bot)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	m, err := metrics.New(deps.Registerer)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	st := store.New(deps.DB)
	resolver := admins.NewResolver(cfg.AdminIDs(), st)
	relay := support.NewRelay(resolver, messenger, support.Options{
		Cap:      cfg.Support.MaxOpen,
		IDLength: cfg.Support.IDLength,
		Observer: m,
	})
	views := menu.New(st, relay, cfg.Cache.TTL(), m.CacheObserver)
	fl := flows.New(st, resolver, relay, views, messenger)

	intents, err := dispatch.New(state.NewMemoryStore(), messenger, fl.Routes(), dispatch.WithObserver(m))
	if err != nil {
		return nil, fmt.Errorf("app: dispatcher: %w", err)
	}

	handlers := NewHandlers(st, resolver, intents, views)
	reg := coretelegram.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		return nil, fmt.Errorf("app: handlers: %w", err)
	}
	logRegistered(logger.Background(), reg)

	return &App{
		cfg:      cfg,
		db:       deps.DB,
		bot:      deps.Bot,
		gatherer: gatherer,
		store:    st,
		metrics:  m,
		admins:   resolver,
		relay:    relay,
		menu:     views,
		intents:  intents,
		handlers: handlers,
		registry: reg,
	}, nil
}

// Bootstrap prepares the database, seeds configured tasks, connects the bot
// and assembles the App.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:       &cfg.Config,
		Database:     cfg.Database,
		Migrations:   migrations.FS,
		ReadyTimeout: time.Duration(cfg.DBReadyTimeoutSec) * time.Second,
		Seeders:      []bootstrap.Seeder{TaskSeeder(cfg.Tasks)},
	})
	if err != nil {
		return nil, err
	}
	bot, err := coretelegram.NewBot(&cfg.Config, false)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a, err := New(cfg, Deps{DB: res.DB, Bot: bot})
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// TaskSeeder upserts tasks from configuration.
func TaskSeeder(tasks []store.Task) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		st := store.New(db)
		for _, t := range tasks {
			if err := st.UpsertTask(ctx, t); err != nil {
				return fmt.Errorf("seed task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// TelegramRunOptions assembles middlewares and routes for the runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	mws, err := coretelegram.DefaultMiddlewares(&a.cfg.Config, coretelegram.MiddlewareHooks{
		OnLimited:   a.handlers.Limited,
		RateLimited: a.metrics.RateLimited,
		Duplicate:   a.metrics.Duplicate,
		Updates:     a.metrics,
	})
	if err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: middlewares: %w", err)
	}

	cmdOpts := router.CommandRouteOptions{Admins: a.admins, OnAdminReject: a.handlers.denied}
	routes := router.CommandRoutes(a.registry, cmdOpts)
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.TextRoutes(a.handlers, a.registry, router.TextOptions{
		UnknownDocument: a.handlers.UnknownDocument,
		Commands:        cmdOpts,
	})...)

	return coretelegram.RunOptions{
		Config:   &a.cfg.Config,
		Registry: a.registry,
		Bot:      a.bot,
		DispatcherOptions: sender.Options{
			QueueSize:  a.cfg.Sender.QueueSize,
			Workers:    a.cfg.Sender.Workers,
			MaxRetries: a.cfg.Sender.MaxRetries,
			OnResult:   a.metrics.SenderResult,
		},
		Middlewares: mws,
		Routes:      routes,
	}, nil
}

// Background serves the ops endpoints until ctx is done.
func (a *App) Background(ctx context.Context) error {
	return ops.Serve(ctx, a.cfg.Ops, ops.NewHandler(a.store, a.relay, a.gatherer))
}

// Close releases the database.
func (a *App) Close() error {
	err := a.db.Close()
	logger.LogEvent(logger.Background(), logger.L, slog.LevelInfo, "app.close",
		slog.String("status", logger.Status(err)),
	)
	return err
}
