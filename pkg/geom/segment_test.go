package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentDistanceParallelOffset(t *testing.T) {
	d := SegmentDistance(V(0, 0, 0), V(100, 0, 0), V(50, 24, -10), V(50, 24, 10))
	assert.InDelta(t, 24.0, d, 1e-9)
}

func TestSegmentDistanceClampsToEndpoints(t *testing.T) {
	// 第二条线段完全在第一条线段末端之外
	d := SegmentDistance(V(0, 0, 0), V(10, 0, 0), V(13, 4, 0), V(13, 4, 5))
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestSegmentClosestPointsDegenerate(t *testing.T) {
	c1, c2 := SegmentClosestPoints(V(1, 1, 1), V(1, 1, 1), V(0, 0, -5), V(0, 0, 5))
	assert.Equal(t, V(1, 1, 1), c1)
	assert.InDelta(t, 0.0, c2.Dist(V(0, 0, 1)), 1e-9)
}

func TestClosestPointOnSegment(t *testing.T) {
	assert.Equal(t, V(5, 0, 0), ClosestPointOnSegment(V(5, 7, 0), V(0, 0, 0), V(10, 0, 0)))
	assert.Equal(t, V(10, 0, 0), ClosestPointOnSegment(V(15, 7, 0), V(0, 0, 0), V(10, 0, 0)))
}

func TestPointDistToLine(t *testing.T) {
	assert.InDelta(t, 3.0, PointDistToLine(V(4, 3, 0), V(2, 0, 0), V(0, 0, 0)), 1e-9)
}

func TestRotatorVector(t *testing.T) {
	v := Rotator{Yaw: 90}.Vector()
	assert.InDelta(t, 0.0, v.X, 1e-9)
	assert.InDelta(t, 1.0, v.Y, 1e-9)

	up := Rotator{Pitch: 90}.Vector()
	assert.InDelta(t, 1.0, up.Z, 1e-9)
}

func TestLookAtRoundTripsThroughVector(t *testing.T) {
	from, to := V(10, 20, 30), V(-40, 70, 5)
	dir := LookAt(from, to).Vector()
	want := to.Sub(from).Normalize()
	assert.InDelta(t, want.X, dir.X, 1e-9)
	assert.InDelta(t, want.Y, dir.Y, 1e-9)
	assert.InDelta(t, want.Z, dir.Z, 1e-9)

	assert.Equal(t, Rotator{}, LookAt(from, from))
}

func TestRotatorFinite(t *testing.T) {
	assert.True(t, Rotator{Pitch: -10, Yaw: 270}.Finite())
	assert.False(t, Rotator{Pitch: math.NaN()}.Finite())
	assert.False(t, Rotator{Roll: math.Inf(-1)}.Finite())
}
