// Package app wires the admin bot: configuration, storage, the
// conversational core, the Telegram handlers and the ops server.
package app

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/adminbot/core/config"
	"github.com/m3rciful/adminbot/core/database"
	"github.com/m3rciful/adminbot/internal/cache"
	"github.com/m3rciful/adminbot/internal/ops"
	"github.com/m3rciful/adminbot/internal/store"
	"github.com/m3rciful/adminbot/internal/support"
)

// SupportConfig bounds the support relay.
type SupportConfig struct {
	// MaxOpen is the number of unanswered queries a user may have.
	MaxOpen  int `yaml:"max_open" envconfig:"SUPPORT_MAX_OPEN"`
	IDLength int `yaml:"id_length" envconfig:"SUPPORT_ID_LENGTH"`
}

// CacheConfig sets the lifetime of cached menu lists.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
}

// TTL returns the configured lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SenderConfig tunes the outbound dispatcher used by command replies.
type SenderConfig struct {
	QueueSize  int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers    int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Support  SupportConfig   `yaml:"support"`
	Cache    CacheConfig     `yaml:"cache"`
	Sender   SenderConfig    `yaml:"sender"`
	Ops      ops.Config      `yaml:"ops"`
	// Tasks are upserted at startup. Admins edit them from the bot.
	Tasks []store.Task `yaml:"tasks"`
	// DBReadyTimeoutSec bounds the startup wait for the database.
	DBReadyTimeoutSec int `yaml:"db_ready_timeout_sec" envconfig:"DB_READY_TIMEOUT_SEC"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, overlays the environment and normalizes
// the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and applies defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Support.MaxOpen <= 0 {
		c.Support.MaxOpen = support.DefaultCap
	}
	if c.Support.IDLength <= 0 {
		c.Support.IDLength = support.DefaultIDLength
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = int(cache.DefaultTTL / time.Second)
	}
	if c.DBReadyTimeoutSec <= 0 {
		c.DBReadyTimeoutSec = 30
	}
	seen := make(map[string]struct{}, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.ID == "" {
			return fmt.Errorf("tasks[%d]: id is required", i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("tasks[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
