package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/pkg/geom"
	"arenanet/pkg/schedule"
)

// 每 0.05 秒沿 X 轴移动 10 个单位
func walk(t *testing.T, clock *schedule.ManualClock, track *Track, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		x := float64(i) * 10
		clock.Set(float64(i) * 0.05)
		require.True(t, track.Append(Sample{Time: clock.Now(), Position: geom.V(x, 0, 0)}))
	}
}

func TestRewindZeroReturnsLive(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock)
	walk(t, clock, track, 5)

	track.SetLive(geom.V(999, 1, 2), geom.Rotator{})
	assert.Equal(t, geom.V(999, 1, 2), track.RewindLocation(0))
	assert.Equal(t, geom.V(999, 1, 2), track.RewindLocation(-0.3))

	empty := NewTrack(clock)
	empty.SetLive(geom.V(3, 3, 3), geom.Rotator{})
	assert.Equal(t, geom.V(3, 3, 3), empty.RewindLocation(0.1))
}

func TestRewindInterpolates(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock)
	walk(t, clock, track, 5) // 最新样本 t=0.2, x=40

	got := track.RewindLocation(0.075) // 目标 0.125，落在 0.1 与 0.15 之间
	assert.InDelta(t, 25, got.X, 1e-9)
}

func TestRewindBeyondOldestReturnsOldest(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock)
	walk(t, clock, track, 5)

	oldest, ok := track.Oldest()
	require.True(t, ok)
	assert.Equal(t, oldest.Position, track.RewindLocation(5))
}

func TestRewindSnapsAcrossTeleport(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock)
	track.Append(Sample{Time: 0, Position: geom.V(0, 0, 0)})
	track.Append(Sample{Time: 0.1, Position: geom.V(10, 0, 0), Teleported: true})
	track.Append(Sample{Time: 0.2, Position: geom.V(500, 0, 0)})
	clock.Set(0.2)

	assert.Equal(t, geom.V(10, 0, 0), track.RewindLocation(0.05))
	assert.InDelta(t, 5, track.RewindLocation(0.15).X, 1e-9)
}

func TestRewindAfterLastSampleUsesNewest(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock)
	walk(t, clock, track, 3)

	clock.Set(1.0)
	assert.Equal(t, geom.V(20, 0, 0), track.RewindLocation(0.1))
}

func TestPruneKeepsOneSampleBeyondMaxAge(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock, WithMaxAge(0.1))
	walk(t, clock, track, 20) // 最新 t=0.95

	oldest, _ := track.Oldest()
	assert.Less(t, oldest.Time, 0.85)
	samples := track.Samples()
	require.GreaterOrEqual(t, len(samples), 2)
	assert.GreaterOrEqual(t, samples[1].Time, 0.85-1e-9)
}

func TestAppendDropsOutOfOrderSamples(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock)
	require.True(t, track.Append(Sample{Time: 1, Position: geom.V(1, 0, 0)}))
	assert.False(t, track.Append(Sample{Time: 0.5, Position: geom.V(2, 0, 0)}))
	assert.Equal(t, 1, track.Len())
}

func TestRecordThrottle(t *testing.T) {
	clock := schedule.NewManualClock(0)
	track := NewTrack(clock, WithSaveInterval(0.1))

	assert.True(t, track.Record(geom.V(0, 0, 0), geom.Rotator{}, false, false))
	clock.Set(0.05)
	assert.False(t, track.Record(geom.V(5, 0, 0), geom.Rotator{}, false, false))
	assert.Equal(t, geom.V(5, 0, 0), track.Live())
	assert.True(t, track.Record(geom.V(6, 0, 0), geom.Rotator{}, false, true))
	assert.Equal(t, 2, track.Len())
}

func TestStore(t *testing.T) {
	clock := schedule.NewManualClock(0)
	store := NewStore(clock)
	store.Append(7, Sample{Time: 0, Position: geom.V(1, 1, 1)})

	pos, ok := store.RewindLocation(7, 0.1)
	require.True(t, ok)
	assert.Equal(t, geom.V(1, 1, 1), pos)

	_, ok = store.RewindLocation(8, 0.1)
	assert.False(t, ok)

	store.Remove(7)
	assert.Zero(t, store.Len())
}
