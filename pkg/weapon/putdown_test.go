package weapon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutDownWaitsForRefire(t *testing.T) {
	r := newRig(t, SideClient, rifle())
	require.Equal(t, Started, r.w.StartFire(0))

	r.clock.Set(0.1)
	assert.False(t, r.w.PutDown())
	assert.True(t, r.w.Equipped())
	assert.True(t, r.w.Switching())
	assert.Equal(t, StateIdle, r.w.State())
	require.Len(t, r.rec.stops, 1)

	// 剩余 0.4 超过收枪时间 0.2，再等 0.2
	r.at(0.31)
	assert.False(t, r.w.Equipped())
	assert.Equal(t, StateInactive, r.w.State())
	assert.InDelta(t, 0.51, r.w.EarliestFire(), 1e-9)
	assert.Equal(t, 1, r.rec.count(EventPutDown))
}

func TestPutDownImmediateNearEndOfRefire(t *testing.T) {
	r := newRig(t, SideClient, rifle())
	r.w.StartFire(0)

	r.clock.Set(0.4)
	assert.True(t, r.w.PutDown())
	assert.False(t, r.w.Equipped())
	assert.InDelta(t, 0.5, r.w.EarliestFire(), 1e-9)
}

func TestLoadoutSwitchCarriesCooldownAndHeldTrigger(t *testing.T) {
	r := newRig(t, SideClient, rifle())
	second, err := New(4, beamGun(), r.w.env)
	require.NoError(t, err)

	l := NewLoadout(r.w, second)
	require.Same(t, r.w, l.Current())
	require.Equal(t, Started, l.StartFire(0))

	r.clock.Set(0.1)
	require.True(t, l.Switch(1))
	assert.True(t, l.Switching())

	r.clock.Set(0.31)
	l.Step(0)
	require.Same(t, second, l.Current())
	assert.False(t, l.Switching())
	assert.True(t, second.Equipped())
	// 扳机仍按住，新武器在冷却结束后开火
	assert.True(t, second.RetryPending())

	r.clock.Set(0.53)
	l.Step(0)
	last := r.rec.fires[len(r.rec.fires)-1]
	assert.Equal(t, uint8(4), last.Weapon)
	assert.Equal(t, int32(1), last.EventIndex)
}

func TestLoadoutSwitchRejectsSameOrInvalid(t *testing.T) {
	r := newRig(t, SideListenHost, rifle())
	l := NewLoadout(r.w)
	assert.False(t, l.Switch(0))
	assert.False(t, l.Switch(3))
	assert.Nil(t, l.Weapon(9))
	assert.Same(t, r.w, l.Weapon(3))
}
