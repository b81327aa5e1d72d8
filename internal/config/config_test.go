package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/pkg/weapon"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "tcp", cfg.Server.Proto)
	assert.Equal(t, 60, cfg.Server.TPS)
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, []string{"shock", "link", "rocket", "sniper"}, cfg.Server.Loadout)
	assert.Equal(t, 20, cfg.Server.FragLimit)
	assert.Equal(t, 2*time.Second, cfg.Server.RespawnDelay)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Stats.Enabled)
	assert.Equal(t, "arenanet.db", cfg.Stats.SqlitePath)
	assert.Equal(t, "localhost:12201", cfg.Gelf.Address)

	assert.Equal(t, weapon.DefaultTuning(), cfg.Netcode.Tuning())
	assert.InDelta(t, 0.25, cfg.Netcode.Latency().MaxValidationSeconds, 1e-12)
	assert.InDelta(t, 45, cfg.Netcode.Rewind().ClaimedPadding(true, 70), 1e-12)
}

func TestLoad_WithValidConfigFile(t *testing.T) {

	path := writeConfig(t, "arenanet.yaml", `
server:
  addr: ":9100"
  proto: kcp
netcode:
  rhythm_window: 0.15
  lookahead_window: 4
weapons:
  sniper:
    damage: [80]
    headshot_damage: 150
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "kcp", cfg.Server.Proto)
	assert.Equal(t, "debug", cfg.Log.Level)

	tuning := cfg.Netcode.Tuning()
	assert.InDelta(t, 0.15, tuning.RhythmWindow, 1e-12)
	assert.Equal(t, int32(4), tuning.LookaheadWindow)

	sniper, err := cfg.Weapon("sniper")
	require.NoError(t, err)
	assert.Equal(t, 80, sniper.Modes[0].Damage)
	assert.Equal(t, 150, sniper.Headshot.Damage)

	// 内置表不受覆盖影响
	builtin, _ := weapon.Lookup("sniper")
	assert.Equal(t, 125, builtin.Headshot.Damage)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ARENANET_SERVER_PROTO", "ws")
	t.Setenv("ARENANET_NETCODE_CLOCK_SKEW_LIMIT", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws", cfg.Server.Proto)
	assert.InDelta(t, 0.5, cfg.Netcode.Tuning().ClockSkewLimit, 1e-12)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad proto", "server:\n  proto: udp\n"},
		{"unknown weapon", "weapons:\n  railgun:\n    damage: [1]\n"},
		{"zero tps", "server:\n  tps: 0\n"},
		{"negative frag limit", "server:\n  frag_limit: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "arenanet.yaml", tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultMatchesLoadWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, Default())
}

func TestWeaponTableIsSorted(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	table, err := cfg.WeaponTable()
	require.NoError(t, err)
	require.Len(t, table, len(weapon.Catalog()))
	for i := 1; i < len(table); i++ {
		assert.Less(t, table[i-1].Name, table[i].Name)
	}
}

// chdir switches the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
