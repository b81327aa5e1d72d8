package weapon

import (
	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/rewind"
)

// isHeadshot 头部球心到射线的距离小于放大后的头部半径即为爆头。队友不算。
func (w *Weapon) isHeadshot(m Mode, target *core.Entity, start, dir, hitLocation geom.Vec3, predictionTime float64) bool {
	hs := w.cfg.Headshot
	if hs == nil || !hs.Modes[m] || target == nil {
		return false
	}
	if rewind.SameTeam(w.env.Owner, target) {
		return false
	}
	scale := hs.Scale
	if target.Sliding && hs.SlidingScale > 0 {
		scale = hs.SlidingScale
	}
	if scale <= 0 {
		scale = 1
	}
	head := target.HeadLocation(predictionTime)
	if dir.IsNearlyZero(1e-8) {
		dir = hitLocation.Sub(start)
	}
	return geom.PointDistToLine(head, dir, hitLocation) < target.HeadRadius*target.HeadScale*scale
}
