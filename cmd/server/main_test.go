package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/internal/config"
	"arenanet/internal/stats"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arenanet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestWeaponsPrintsDefaultTable(t *testing.T) {
	stdout, _, err := executeCLI(t, "weapons")
	require.NoError(t, err)

	assert.Contains(t, stdout, "默认配装: ")
	for _, name := range []string{"link", "rocket", "shock", "sniper"} {
		assert.Contains(t, stdout, name+" (收枪")
	}
	assert.Contains(t, stdout, "refire=0.70s damage=45")
	assert.Contains(t, stdout, "charging")
}

func TestWeaponsAppliesConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
weapons:
  sniper:
    damage: [90]
`)
	stdout, _, err := executeCLI(t, "weapons", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "refire=1.33s damage=90")
}

func TestFlagsOverrideAndValidate(t *testing.T) {
	_, _, err := executeCLI(t, "weapons", "--proto", "quic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quic")

	flags := &rootFlags{addr: "127.0.0.1:9999", proto: "kcp"}
	cfg, err := flags.load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "kcp", cfg.Server.Proto)
}

func TestMissingConfigFileFails(t *testing.T) {
	_, _, err := executeCLI(t, "weapons", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOpenSinkFollowsConfig(t *testing.T) {
	cfg := config.Default()
	sink, err := openSink(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, sink.(stats.Fanout))
	require.NoError(t, sink.Close())

	cfg.Stats.Enabled = true
	cfg.Stats.SqlitePath = filepath.Join(t.TempDir(), "stats.db")
	sink, err = openSink(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, sink.(stats.Fanout), 1)
	require.NoError(t, sink.Close())
}
