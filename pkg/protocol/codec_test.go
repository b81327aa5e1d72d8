package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/weapon"
)

func roundTrip(t *testing.T, msg Message) *Packet {
	t.Helper()
	data, err := Marshal(msg)
	require.NoError(t, err)
	pkt, err := UnmarshalPacket(data)
	require.NoError(t, err)
	require.Equal(t, msg.MessageType(), pkt.Type)
	return pkt
}

func TestFireRequestSurvivesWire(t *testing.T) {
	in := weapon.FireRequest{
		Weapon:     2,
		Mode:       1,
		EventIndex: -3,
		ClientTime: 12.5,
		Predicted:  true,
		Aim:        geom.Rotator{Pitch: -10, Yaw: 90},
		Claimed:    7,
		ZOffset:    140,
	}
	pkt := roundTrip(t, FireRequestToProto(in))

	got, err := ParseFireRequest(pkt)
	require.NoError(t, err)
	assert.Equal(t, in, got.Core())
}

func TestSnapshotKeepsZeroValueEntities(t *testing.T) {
	snap := &Snapshot{
		Frame:      42,
		ServerTime: 3.25,
		Entities: []EntityState{
			{},
			{ID: 2, Position: Vec3{X: 1, Y: -2, Z: 3}, Health: 55, Sliding: true},
		},
	}
	got, err := ParseSnapshot(roundTrip(t, snap))
	require.NoError(t, err)
	require.Len(t, got.Entities, 2)
	assert.Equal(t, snap.Entities[1], got.Entities[1])
	assert.Equal(t, 3.25, got.ServerTime)
}

func TestParseRejectsWrongType(t *testing.T) {
	pkt := NewPingPacket(99)
	_, err := ParseFireAck(pkt)
	assert.ErrorIs(t, err, ErrWrongType)

	ping, err := ParsePing(pkt)
	require.NoError(t, err)
	assert.Equal(t, int64(99), ping.ClientTime)
}

func TestUnmarshalPacketErrors(t *testing.T) {
	_, err := UnmarshalPacket(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)

	// 长度前缀超出剩余数据
	_, err = UnmarshalPacket([]byte{0x12, 0x05, 0x01})
	assert.Error(t, err)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	payload := (&FireAck{Weapon: 1, AuthoritativeIndex: 4}).appendWire(nil)
	payload = appendString(payload, 15, "future")
	got, err := ParseFireAck(&Packet{Type: MessageTypeFireAck, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, int32(4), got.AuthoritativeIndex)
}

func TestOversizedModeBecomesInvalid(t *testing.T) {
	req := (&FireRequest{Mode: 300, Weapon: 999}).Core()
	assert.False(t, req.Mode.Valid())
	assert.Equal(t, uint8(0xff), req.Weapon)
}

func TestPlayerInputSwitch(t *testing.T) {
	in := &PlayerInput{Seq: 3, Forward: true, Yaw: 45, Switch: true}
	got, err := ParsePlayerInput(roundTrip(t, in))
	require.NoError(t, err)
	assert.True(t, got.Switch)
	assert.Equal(t, int32(0), got.Slot)
	assert.Equal(t, core.Input{Forward: true, Yaw: 45}, got.Core())
}

func TestShotEventFromResolved(t *testing.T) {
	shot := &weapon.ShotResolved{Mode: 0, EventIndex: 5, Hit: 9, Damage: 125, Headshot: true, Location: geom.V(1, 2, 3)}
	got, err := ParseShotEvent(roundTrip(t, ShotToProto(4, 1, shot)))
	require.NoError(t, err)
	assert.Equal(t, int32(4), got.Shooter)
	assert.Equal(t, int32(9), got.Hit)
	assert.Equal(t, int32(125), got.Damage)
	assert.True(t, got.Headshot)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, got.Location)
}
