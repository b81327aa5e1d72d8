package server

import (
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/internal/config"
	"arenanet/pkg/protocol"
)

func newTestConnection(t *testing.T, mutate ...func(*config.Config)) *Connection {
	t.Helper()
	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}
	srv := NewGameServer(cfg, zerolog.Nop())
	t.Cleanup(srv.Shutdown)

	local, remote := net.Pipe()
	t.Cleanup(func() { remote.Close() })
	c := NewConnection(local, srv)
	t.Cleanup(c.CloseWithoutNotify)
	return c
}

func encode(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	data, err := protocol.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestRoundTripSmoothing(t *testing.T) {
	c := newTestConnection(t)
	assert.Zero(t, c.RoundTripMs())

	c.observeRTT(100)
	assert.InDelta(t, 100, c.RoundTripMs(), 1e-9)

	c.observeRTT(200)
	assert.InDelta(t, 112.5, c.RoundTripMs(), 1e-9)
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	c := newTestConnection(t)
	require.NoError(t, c.handleMessage(encode(t, &protocol.Ping{ClientTime: 1234})))

	data := <-c.sendChan
	pkt, err := protocol.UnmarshalPacket(data)
	require.NoError(t, err)
	pong, err := protocol.ParsePong(pkt)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), pong.ClientTime)
	assert.Positive(t, pong.ServerTime)
}

func TestGameMessagesRequireJoin(t *testing.T) {
	c := newTestConnection(t)
	err := c.handleMessage(encode(t, &protocol.FireRequest{EventIndex: 1}))
	assert.ErrorIs(t, err, ErrNotJoined)

	err = c.handleMessage(encode(t, &protocol.FireAck{}))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestSendAfterCloseFails(t *testing.T) {
	c := newTestConnection(t)
	c.CloseWithoutNotify()
	assert.ErrorIs(t, c.Send([]byte{1}), ErrConnClosed)
}

func TestLimiterSeparatesFireAndInput(t *testing.T) {
	l := newLimiter(config.LimitsConfig{FireRate: 1, FireBurst: 2, InputRate: 1, InputBurst: 1})

	assert.True(t, l.allow(EventFire))
	assert.True(t, l.allow(EventStopFire))
	assert.False(t, l.allow(EventBeamHit))

	assert.True(t, l.allow(EventInput))
	assert.False(t, l.allow(EventInput))

	assert.True(t, l.allow(EventPing))
}

func TestLimiterDisabledWhenRateIsZero(t *testing.T) {
	l := newLimiter(config.LimitsConfig{})
	for i := 0; i < 100; i++ {
		require.True(t, l.allow(EventFire))
	}
}
