package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/migrations"
)

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_init.up.sql", "0002_tasks.up.sql", "0003_sites.up.sql"}
	assert.Equal(t, []string{"0002_tasks.up.sql", "0003_sites.up.sql"}, selectApplied(files, 1, 3))
	assert.Nil(t, selectApplied(files, 3, 3))
}

func TestListMigrationFilesSkipsDown(t *testing.T) {
	files := fstest.MapFS{
		"0002_b.up.sql":   {Data: []byte("")},
		"0001_a.up.sql":   {Data: []byte("")},
		"0001_a.down.sql": {Data: []byte("")},
		"embed.go":        {Data: []byte("")},
	}
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, listMigrationFiles(files))
}

func TestSQLiteConnectAndMigrate(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "bot.db")}
	require.NoError(t, cfg.Normalize())
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, cfg, migrations.FS))
	// second run is a no-op
	require.NoError(t, RunMigrations(ctx, cfg, migrations.FS))

	db, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.GetContext(ctx, &n, db.Rebind("SELECT COUNT(*) FROM users WHERE user_id > ?"), 0))
	assert.Zero(t, n)
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Host: "db", Name: "bot"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "5432", cfg.Port)
	assert.Contains(t, cfg.MigrateURL(), "@db:5432/bot?sslmode=disable")

	bad := Config{Driver: "mysql"}
	assert.Error(t, bad.Normalize())

	lite := Config{Driver: "SQLite", Path: "x.db", MaxConnections: 8}
	require.NoError(t, lite.Normalize())
	assert.Equal(t, 1, lite.MaxConnections)
	assert.Equal(t, "sqlite://x.db", lite.MigrateURL())
}
