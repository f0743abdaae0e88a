package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/internal/support"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admins: [1, 2]
database:
  driver: sqlite
  path: /tmp/adminbot.db
ops:
  addr: ":9090"
tasks:
  - id: join
    name: Join channel
    message_text: Join us
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, cfg.CoreConfig().AdminIDs())
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, support.DefaultCap, cfg.Support.MaxOpen)
	assert.Equal(t, support.DefaultIDLength, cfg.Support.IDLength)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, ":9090", cfg.Ops.Addr)
	assert.Equal(t, 1, cfg.Database.MaxConnections)
	require.Len(t, cfg.Tasks, 1)
	assert.Equal(t, "Join us", cfg.Tasks[0].MessageText)
}

func TestLoadRejectsDuplicateTasks(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
database:
  driver: sqlite
  path: /tmp/adminbot.db
tasks:
  - id: join
  - id: join
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestLoadRequiresToken(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/adminbot.db
`)
	_, err := Load(path)
	assert.Error(t, err)
}
