// Command adminbot runs the Telegram admin bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m3rciful/adminbot/core/buildinfo"
	corecmd "github.com/m3rciful/adminbot/core/cmd"
	"github.com/m3rciful/adminbot/core/database"
	"github.com/m3rciful/adminbot/core/logger"
	"github.com/m3rciful/adminbot/internal/app"
	"github.com/m3rciful/adminbot/migrations"
)

const (
	configEnv     = "CONFIG_PATH"
	defaultConfig = "config.yaml"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "adminbot",
		Short:         "Telegram admin bot",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (overrides "+configEnv+").")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "adminbot "+buildinfo.String())
		},
	})
	return root
}

func options(configPath string) corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnv,
		DefaultConfigPath: defaultConfig,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			a, err := app.Bootstrap(ctx, appCfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	}
}

func run(configPath string) error {
	return corecmd.Run(options(configPath))
}

func migrate(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	path, err := corecmd.ResolveConfigPath(options(configPath))
	if err != nil {
		return err
	}
	cfg, err := app.Load(path)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()
	return database.RunMigrations(ctx, cfg.Database, migrations.FS)
}
