package server

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/internal/config"
	"arenanet/pkg/protocol"
)

func startTestServer(t *testing.T) *GameServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	srv := NewGameServer(cfg, zerolog.Nop())
	require.NoError(t, srv.Listen())
	srv.wg.Add(1)
	go srv.acceptLoop()
	t.Cleanup(srv.Shutdown)
	return srv
}

func writeFrame(t *testing.T, w io.Writer, pkt *protocol.Packet) {
	t.Helper()
	data, err := protocol.MarshalPacket(pkt)
	require.NoError(t, err)
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	_, err = w.Write(frame)
	require.NoError(t, err)
}

// readUntil 读到指定类型的消息为止
func readUntil(t *testing.T, conn net.Conn, typ protocol.MessageType) *protocol.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var length uint32
		require.NoError(t, binary.Read(conn, binary.BigEndian, &length))
		data := make([]byte, length)
		_, err := io.ReadFull(conn, data)
		require.NoError(t, err)
		pkt, err := protocol.UnmarshalPacket(data)
		require.NoError(t, err)
		if pkt.Type == typ {
			return pkt
		}
	}
}

func TestServerJoinOverTCP(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, protocol.NewJoinRequestPacket("alice", 0, "", []string{"sniper", "shock"}))
	resp, err := protocol.ParseJoinResponse(readUntil(t, conn, protocol.MessageTypeJoinResponse))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, DefaultArenaID, resp.ArenaID)
	assert.Equal(t, []string{"sniper", "shock"}, resp.Weapons)
	assert.NotEmpty(t, resp.SessionToken)

	snap, err := protocol.ParseSnapshot(readUntil(t, conn, protocol.MessageTypeSnapshot))
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, resp.PlayerID, snap.Entities[0].ID)

	assert.Eventually(t, func() bool {
		return srv.Stats()[DefaultArenaID].Players == 1
	}, time.Second, 10*time.Millisecond)
}

func TestServerRejectsBadJoin(t *testing.T) {
	srv := startTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, protocol.NewJoinRequestPacket("bob", 0, "", []string{"railgun"}))
	resp, err := protocol.ParseJoinResponse(readUntil(t, conn, protocol.MessageTypeJoinResponse))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestServerReconnectWithToken(t *testing.T) {
	srv := startTestServer(t)

	first, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	writeFrame(t, first, protocol.NewJoinRequestPacket("alice", 0, "", nil))
	joined, err := protocol.ParseJoinResponse(readUntil(t, first, protocol.MessageTypeJoinResponse))
	require.NoError(t, err)
	require.True(t, joined.Success)
	first.Close()

	second, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	writeFrame(t, second, protocol.NewPacket(&protocol.ReconnectRequest{SessionToken: joined.SessionToken}))
	again, err := protocol.ParseJoinResponse(readUntil(t, second, protocol.MessageTypeJoinResponse))
	require.NoError(t, err)
	require.True(t, again.Success, again.Error)
	assert.Equal(t, joined.PlayerID, again.PlayerID)
}
