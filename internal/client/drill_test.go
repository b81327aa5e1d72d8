package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/pkg/protocol"
)

func quickDrill() DrillConfig {
	cfg := DefaultDrillConfig()
	cfg.Hold = 0.1
	cfg.Rest = 0.1
	cfg.Cycle = 0
	return cfg
}

func TestDrillAimsAndFiresAtNearestTarget(t *testing.T) {
	p, link := newTestPeer(t, "shock")
	p.ApplySnapshot(lineUpSnapshot(1, 10))
	d := NewDrill(quickDrill())

	d.Think(p)

	assert.InDelta(t, 0.0, p.Input().Yaw, 1e-6)
	assert.Less(t, p.Input().Pitch, 0.0)
	reqs := link.fireRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int32(targetID), reqs[0].Claimed)

	// 按住时间到了松开，一轮结束
	p.Update(0.2)
	d.Think(p)
	assert.Len(t, link.stopRequests(), 1)
	assert.Equal(t, 1, d.Bursts())

	// 休息期间不再开火
	p.Update(0.05)
	d.Think(p)
	assert.Len(t, link.fireRequests(), 1)
}

func TestDrillHoldsFireOutsideRunningPhase(t *testing.T) {
	p, link := newTestPeer(t, "shock")
	snap := lineUpSnapshot(1, 10)
	snap.Phase = protocol.PhaseEnded
	p.ApplySnapshot(snap)

	d := NewDrill(quickDrill())
	d.Think(p)

	assert.Empty(t, link.fireRequests())
}

func TestDrillWandersWithoutTarget(t *testing.T) {
	p, link := newTestPeer(t, "shock")
	snap := lineUpSnapshot(1, 10)
	snap.Entities = snap.Entities[:1]
	p.ApplySnapshot(snap)

	d := NewDrill(quickDrill())
	d.Think(p)
	p.Update(0.5)
	d.Think(p)

	assert.True(t, p.Input().Forward)
	assert.InDelta(t, 45.0, p.Input().Yaw, 1e-6)
	assert.Empty(t, link.fireRequests())
}

func TestDrillCyclesWeapons(t *testing.T) {
	p, _ := newTestPeer(t, "shock", "sniper")
	p.ApplySnapshot(lineUpSnapshot(1, 10))
	cfg := quickDrill()
	cfg.Cycle = 1
	d := NewDrill(cfg)

	d.Think(p)
	p.Update(0.2)
	d.Think(p)

	require.Equal(t, 1, d.Bursts())
	// 收枪可能要等剩余射击间隔
	for i := 0; i < 120 && p.Loadout().Switching(); i++ {
		p.Update(1.0 / 60)
	}
	assert.Equal(t, "sniper", p.Loadout().Current().Config().Name)
}
