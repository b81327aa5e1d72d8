package client

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/internal/config"
	"arenanet/pkg/core"
	"arenanet/pkg/protocol"
	"arenanet/pkg/weapon"
)

// fakeLink 记录发出的消息，按顺序吐出预先放入的服务器消息
type fakeLink struct {
	sent     []protocol.Message
	inputs   []*protocol.PlayerInput
	timeline []any // 输入和消息按发出顺序
	snaps    []*protocol.Snapshot
	acks     []*protocol.FireAck
	shots    []*protocol.ShotEvent
	leaves   []int32
	rtt      float64
	errs     chan error
}

func newFakeLink() *fakeLink {
	return &fakeLink{rtt: 40, errs: make(chan error, 1)}
}

func (l *fakeLink) Send(msg protocol.Message) error {
	l.sent = append(l.sent, msg)
	l.timeline = append(l.timeline, msg)
	return nil
}

func (l *fakeLink) SendInput(in core.Input, slot int) int32 {
	msg := &protocol.PlayerInput{Seq: int32(len(l.inputs) + 1), Forward: in.Forward, Yaw: float32(in.Yaw)}
	if slot >= 0 {
		msg.Switch = true
		msg.Slot = int32(slot)
	}
	l.inputs = append(l.inputs, msg)
	l.timeline = append(l.timeline, msg)
	return msg.Seq
}

func (l *fakeLink) RoundTripMs() float64 { return l.rtt }
func (l *fakeLink) Errors() <-chan error { return l.errs }

func (l *fakeLink) ReceiveSnapshot() *protocol.Snapshot {
	if len(l.snaps) == 0 {
		return nil
	}
	s := l.snaps[0]
	l.snaps = l.snaps[1:]
	return s
}

func (l *fakeLink) ReceiveFireAck() *protocol.FireAck {
	if len(l.acks) == 0 {
		return nil
	}
	a := l.acks[0]
	l.acks = l.acks[1:]
	return a
}

func (l *fakeLink) ReceiveShot() *protocol.ShotEvent {
	if len(l.shots) == 0 {
		return nil
	}
	s := l.shots[0]
	l.shots = l.shots[1:]
	return s
}

func (l *fakeLink) ReceivePlayerLeave() int32 {
	if len(l.leaves) == 0 {
		return -1
	}
	id := l.leaves[0]
	l.leaves = l.leaves[1:]
	return id
}

func (l *fakeLink) fireRequests() []*protocol.FireRequest {
	var out []*protocol.FireRequest
	for _, m := range l.sent {
		if r, ok := m.(*protocol.FireRequest); ok {
			out = append(out, r)
		}
	}
	return out
}

func (l *fakeLink) stopRequests() []*protocol.StopRequest {
	var out []*protocol.StopRequest
	for _, m := range l.sent {
		if r, ok := m.(*protocol.StopRequest); ok {
			out = append(out, r)
		}
	}
	return out
}

const (
	selfID   = 1
	targetID = 2
)

func newTestPeer(t *testing.T, weapons ...string) (*Peer, *fakeLink) {
	t.Helper()
	link := newFakeLink()
	p, err := NewPeer(link, &protocol.JoinResponse{
		Success:    true,
		PlayerID:   selfID,
		ServerTime: 10,
		Weapons:    weapons,
	}, config.Default(), zerolog.Nop())
	require.NoError(t, err)
	return p, link
}

// lineUpSnapshot 自己在 (2,4)，目标在同一行的 (8,4)
func lineUpSnapshot(frame int32, serverTime float64) *protocol.Snapshot {
	return &protocol.Snapshot{
		Frame:      frame,
		ServerTime: serverTime,
		Phase:      protocol.PhaseRunning,
		Entities: []protocol.EntityState{
			{ID: selfID, Position: protocol.ToVec3(core.TileCenter(2, 4)), Health: 100},
			{ID: targetID, Team: 1, Position: protocol.ToVec3(core.TileCenter(8, 4)), Health: 100, Yaw: 180},
		},
	}
}

func TestNewPeerBuildsClientLoadout(t *testing.T) {
	p, _ := newTestPeer(t, "shock", "sniper")

	require.Len(t, p.Loadout().Weapons(), 2)
	assert.True(t, p.Loadout().Current().Equipped())
	assert.Equal(t, weapon.SideClient, p.Loadout().Current().Side())
	assert.Equal(t, 1, p.Slot("sniper"))
	assert.Equal(t, -1, p.Slot("rocket"))
	assert.InDelta(t, 10.0, p.Now(), 1e-9)
}

func TestNewPeerRejectsBadWelcome(t *testing.T) {
	_, err := NewPeer(newFakeLink(), &protocol.JoinResponse{PlayerID: 1}, config.Default(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoWeapons)

	_, err = NewPeer(newFakeLink(), &protocol.JoinResponse{PlayerID: 1, Weapons: []string{"railgun"}}, config.Default(), zerolog.Nop())
	assert.Error(t, err)
}

func TestApplySnapshotMirrorsWorld(t *testing.T) {
	p, _ := newTestPeer(t, "shock")
	p.SetInput(core.Input{Yaw: 30})

	p.ApplySnapshot(lineUpSnapshot(5, 12))

	assert.True(t, p.Running())
	assert.Equal(t, int32(5), p.Frame())
	assert.InDelta(t, 12.0, p.Now(), 1e-9)
	require.NotNil(t, p.World().Entity(targetID))
	assert.InDelta(t, 180.0, p.World().Entity(targetID).Rotation.Yaw, 1e-6)
	assert.Equal(t, core.TileCenter(2, 4), p.Self().Position)
	// 本地视角不被快照覆盖
	assert.InDelta(t, 30.0, p.Self().Rotation.Yaw, 1e-9)

	// 旧帧忽略，时钟不后退
	stale := lineUpSnapshot(4, 11)
	stale.Entities = stale.Entities[:1]
	p.ApplySnapshot(stale)
	assert.NotNil(t, p.World().Entity(targetID))
	assert.InDelta(t, 12.0, p.Now(), 1e-9)

	// 快照里消失的实体被移除
	gone := lineUpSnapshot(6, 12.5)
	gone.Entities = gone.Entities[:1]
	p.ApplySnapshot(gone)
	assert.Nil(t, p.World().Entity(targetID))
	assert.NotNil(t, p.World().Entity(selfID))
}

func TestPredictedShotClaimsTarget(t *testing.T) {
	p, link := newTestPeer(t, "shock")
	p.ApplySnapshot(lineUpSnapshot(1, 10))
	p.SetInput(core.Input{Yaw: 0})

	assert.Equal(t, weapon.Started, p.StartFire(0))

	reqs := link.fireRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int32(targetID), reqs[0].Claimed)
	assert.Equal(t, int32(1), reqs[0].EventIndex)
	assert.True(t, reqs[0].Predicted)
	assert.InDelta(t, 10.0, float64(reqs[0].ClientTime), 1e-6)
	assert.Equal(t, 1, p.Stats().Shots)

	p.StopFire(0)
	stops := link.stopRequests()
	require.Len(t, stops, 1)
	assert.Equal(t, int32(1), stops[0].EventIndex)
}

func TestFireAckCorrectsClientIndex(t *testing.T) {
	p, link := newTestPeer(t, "shock")
	p.ApplySnapshot(lineUpSnapshot(1, 10))
	p.StartFire(0)
	p.StopFire(0)

	link.acks = append(link.acks, &protocol.FireAck{Weapon: 0, Mode: 0, AuthoritativeIndex: 3})
	p.Update(1.0 / 60)

	assert.Equal(t, int32(3), p.Loadout().Current().Slot(0).ClientIndex)
	assert.Equal(t, 1, p.Stats().Acks)
	assert.Equal(t, 1, p.Stats().Desyncs)

	// 一致的确认不算失步
	p.ApplyFireAck(&protocol.FireAck{Weapon: 0, Mode: 0, AuthoritativeIndex: 3})
	assert.Equal(t, 2, p.Stats().Acks)
	assert.Equal(t, 1, p.Stats().Desyncs)

	// 未知武器忽略
	p.ApplyFireAck(&protocol.FireAck{Weapon: 9})
	assert.Equal(t, 2, p.Stats().Acks)
}

func TestUpdateSendsInputAndSwitch(t *testing.T) {
	p, link := newTestPeer(t, "shock", "sniper")

	require.True(t, p.Switch(1))
	require.Len(t, link.inputs, 1)
	assert.True(t, link.inputs[0].Switch)
	assert.Equal(t, int32(1), link.inputs[0].Slot)

	// 已经是当前武器或越界时不发送
	assert.False(t, p.Switch(1))
	assert.False(t, p.Switch(5))
	require.Len(t, link.inputs, 1)

	p.SetInput(core.Input{Forward: true, Yaw: 90})
	p.Update(1.0 / 60)
	p.Update(1.0 / 60)

	require.Len(t, link.inputs, 3)
	assert.True(t, link.inputs[1].Forward)
	assert.False(t, link.inputs[1].Switch)
	assert.False(t, link.inputs[2].Switch)
	assert.Equal(t, "sniper", p.Loadout().Current().Config().Name)
	assert.InDelta(t, 10.0+2.0/60, p.Now(), 1e-9)
}

func TestShotAndLeaveBookkeeping(t *testing.T) {
	p, link := newTestPeer(t, "shock")
	p.ApplySnapshot(lineUpSnapshot(1, 10))

	link.shots = append(link.shots,
		&protocol.ShotEvent{Shooter: selfID, Hit: targetID, Damage: 45},
		&protocol.ShotEvent{Shooter: targetID, Hit: selfID, Damage: 70},
		&protocol.ShotEvent{Shooter: selfID},
	)
	link.leaves = append(link.leaves, targetID, selfID)
	p.Update(1.0 / 60)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 45, stats.Damage)
	assert.Equal(t, 1, stats.TakenHit)
	assert.Nil(t, p.World().Entity(targetID))
	assert.NotNil(t, p.World().Entity(selfID))
}

func TestRemoteEntitiesAreInterpolated(t *testing.T) {
	p, _ := newTestPeer(t, "shock")
	p.ApplySnapshot(lineUpSnapshot(1, 10))

	moved := lineUpSnapshot(2, 10.1)
	moved.Entities[1].Position = protocol.ToVec3(core.TileCenter(9, 4))
	p.ApplySnapshot(moved)
	// 显示时间 10.0，仍在旧位置
	assert.InDelta(t, core.TileCenter(8, 4).X, p.World().Entity(targetID).Position.X, 1e-6)

	p.Update(0.05)
	mid := (core.TileCenter(8, 4).X + core.TileCenter(9, 4).X) / 2
	assert.InDelta(t, mid, p.World().Entity(targetID).Position.X, 1e-6)
}

// movingSnapshots 目标沿 +X 每 0.1 秒走一格
func movingSnapshots(vx float32) []*protocol.Snapshot {
	first := lineUpSnapshot(1, 10)
	first.Entities[1].Velocity = protocol.Vec3{X: vx}
	second := lineUpSnapshot(2, 10.1)
	second.Entities[1].Position = protocol.ToVec3(core.TileCenter(9, 4))
	second.Entities[1].Velocity = protocol.Vec3{X: vx}
	return []*protocol.Snapshot{first, second}
}

func TestProjectileWeaponLeadsRemoteEntities(t *testing.T) {
	from, to := core.TileCenter(8, 4).X, core.TileCenter(9, 4).X

	tests := []struct {
		name   string
		weapon string
		rtt    float64
		vx     float32
		want   float64
	}{
		// 单程 70ms 扣掉 20ms 抖动，前推 0.05 秒
		{"投射物前推", "link", 140, 300, (from + to) / 2},
		{"即时命中不前推", "sniper", 140, 300, from},
		{"延迟太低不前推", "link", 40, 300, from},
		{"目标静止不前推", "link", 140, 0, from},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, link := newTestPeer(t, tt.weapon)
			link.rtt = tt.rtt
			for _, snap := range movingSnapshots(tt.vx) {
				p.ApplySnapshot(snap)
			}
			assert.InDelta(t, tt.want, p.World().Entity(targetID).Position.X, 1e-6)

			p.Update(0)
			assert.InDelta(t, tt.want, p.World().Entity(targetID).Position.X, 1e-6)
		})
	}
}

func TestSwitchIsSentBeforeNewWeaponFires(t *testing.T) {
	p, link := newTestPeer(t, "shock", "sniper")
	p.ApplySnapshot(lineUpSnapshot(1, 10))
	require.Equal(t, weapon.Started, p.StartFire(0))

	// 快照把时钟推过射击间隔，收枪当场完成，按住的扳机让狙击枪立即开火
	p.ApplySnapshot(lineUpSnapshot(2, 11))
	require.True(t, p.Switch(1))
	require.Equal(t, "sniper", p.Loadout().Current().Config().Name)

	switchAt, fireAt := -1, -1
	for i, m := range link.timeline {
		switch msg := m.(type) {
		case *protocol.PlayerInput:
			if msg.Switch && msg.Slot == 1 && switchAt < 0 {
				switchAt = i
			}
		case *protocol.FireRequest:
			if msg.Weapon == 1 && fireAt < 0 {
				fireAt = i
			}
		}
	}
	require.GreaterOrEqual(t, switchAt, 0)
	require.GreaterOrEqual(t, fireAt, 0)
	assert.Less(t, switchAt, fireAt)
}
