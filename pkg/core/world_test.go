package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/pkg/geom"
	"arenanet/pkg/schedule"
)

func TestParseGameMapRejectsRaggedTemplate(t *testing.T) {
	_, err := ParseGameMap([]string{"W..", "W."}, 1)
	assert.ErrorIs(t, err, ErrRaggedMap)

	_, err = ParseGameMap(nil, 1)
	assert.ErrorIs(t, err, ErrEmptyMap)
}

func TestTraceHitsWallFace(t *testing.T) {
	m, err := ParseGameMap([]string{"...", "..W", "..."}, 1)
	require.NoError(t, err)

	start := geom.V(0.5*TileSize, 1.5*TileSize, 100)
	end := geom.V(3*TileSize, 1.5*TileSize, 100)
	hit, ok := m.Trace(start, end, 0)
	require.True(t, ok)
	assert.InDelta(t, 2*TileSize, hit.Location.X, 1e-6)
	assert.Equal(t, geom.V(-1, 0, 0), hit.Normal)
}

func TestTraceSweepHitsEarlier(t *testing.T) {
	m, err := ParseGameMap([]string{"...", "..W", "..."}, 1)
	require.NoError(t, err)

	start := geom.V(0.5*TileSize, 1.5*TileSize, 100)
	end := geom.V(3*TileSize, 1.5*TileSize, 100)
	hit, ok := m.Trace(start, end, 10)
	require.True(t, ok)
	assert.InDelta(t, 2*TileSize-10, hit.Location.X, 1e-6)
}

func TestTraceMissReturnsEnd(t *testing.T) {
	m, err := ParseGameMap([]string{"...", "...", "..."}, 1)
	require.NoError(t, err)

	end := geom.V(2*TileSize, 2*TileSize, 50)
	hit, ok := m.Trace(geom.V(10, 10, 50), end, 0)
	assert.False(t, ok)
	assert.Equal(t, end, hit.Location)
	assert.Equal(t, 1.0, hit.Fraction)
}

func TestTraceHitsFloor(t *testing.T) {
	m, err := ParseGameMap([]string{"...", "...", "..."}, 1)
	require.NoError(t, err)

	hit, ok := m.Trace(geom.V(100, 100, 100), geom.V(100, 100, -100), 0)
	require.True(t, ok)
	assert.InDelta(t, 0, hit.Location.Z, 1e-9)
	assert.Equal(t, geom.V(0, 0, 1), hit.Normal)
}

func TestEntityMoveStopsAtWall(t *testing.T) {
	m, err := ParseGameMap([]string{"...", "..W", "..."}, 1)
	require.NoError(t, err)
	world := NewWorld(schedule.NewManualClock(0), m)

	e := NewEntity(1, 0, TileCenter(1, 1), nil)
	require.NoError(t, world.AddEntity(e))
	e.Velocity = geom.V(DefaultMoveSpeed, 0, 0)

	for i := 0; i < 60; i++ {
		world.Update(FixedDeltaTime)
	}
	assert.Less(t, e.Position.X+e.Capsule.Radius, 2*TileSize)
}

func TestWorldSpawnAndRemove(t *testing.T) {
	clock := schedule.NewManualClock(0)
	world := NewWorld(clock, nil)

	e, err := world.Spawn(3, 1)
	require.NoError(t, err)
	assert.Same(t, e, world.Entity(3))
	assert.Equal(t, 1, world.History.Len())

	_, err = world.Spawn(3, 1)
	assert.ErrorIs(t, err, ErrDuplicateID)

	require.NoError(t, world.RemoveEntity(3))
	assert.Nil(t, world.Entity(3))
	assert.ErrorIs(t, world.RemoveEntity(3), ErrEntityMissing)
}

func TestApplyInputSetsVelocity(t *testing.T) {
	world := NewWorld(schedule.NewManualClock(0), nil)
	e, err := world.Spawn(1, 0)
	require.NoError(t, err)

	require.True(t, ApplyInput(world, 1, Input{Forward: true, Yaw: 90}))
	assert.InDelta(t, 0, e.Velocity.X, 1e-6)
	assert.InDelta(t, DefaultMoveSpeed, e.Velocity.Y, 1e-6)

	assert.False(t, ApplyInput(world, 42, Input{Forward: true}))
}

func TestApplyDamage(t *testing.T) {
	e := NewEntity(1, 0, geom.Vec3{}, nil)
	assert.False(t, e.ApplyDamage(60))
	assert.True(t, e.ApplyDamage(60))
	assert.True(t, e.Dead)
	assert.False(t, e.ApplyDamage(10))
}
