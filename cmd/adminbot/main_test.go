package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/core/buildinfo"
	corecmd "github.com/m3rciful/adminbot/core/cmd"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "adminbot "+buildinfo.String()+"\n", out.String())
}

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv(configEnv, "/etc/adminbot.yaml")

	path, err := corecmd.ResolveConfigPath(options("custom.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", path)

	path, err = corecmd.ResolveConfigPath(options(""))
	require.NoError(t, err)
	assert.Equal(t, "/etc/adminbot.yaml", path)

	t.Setenv(configEnv, "")
	path, err = corecmd.ResolveConfigPath(options(""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, path)
}

func TestMigrateFailsOnMissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "--config", "/nonexistent/adminbot.yaml"})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}
