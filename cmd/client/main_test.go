package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/internal/client"
	"arenanet/internal/config"
	"arenanet/internal/server"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	stderr := &bytes.Buffer{}
	root.SetOut(&bytes.Buffer{})
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stderr.String(), err
}

func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"

	srv := server.NewGameServer(cfg, zerolog.Nop())
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Shutdown)
	return srv.Addr().String()
}

func TestPeerRunsDrillUntilDuration(t *testing.T) {
	addr := startServer(t)

	logs, err := executeCLI(t, "--addr", addr, "--drill", "--weapon", "sniper", "--duration", "300ms")
	require.NoError(t, err)
	assert.Contains(t, logs, "已进入竞技场")
	assert.Contains(t, logs, "客户端退出")
}

func TestPeerRejectsUnknownWeapon(t *testing.T) {
	addr := startServer(t)

	_, err := executeCLI(t, "--addr", addr, "--loadout", "shock", "--weapon", "sniper", "--duration", "100ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sniper")
}

func TestPeerReportsRejectedJoin(t *testing.T) {
	addr := startServer(t)

	_, err := executeCLI(t, "--addr", addr, "--loadout", "railgun")
	assert.ErrorIs(t, err, client.ErrJoinRejected)
}
