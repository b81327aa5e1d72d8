package rewind

import (
	"math"

	"github.com/rs/zerolog"

	"arenanet/pkg/core"
	"arenanet/pkg/geom"
)

// Request 一次命中检测
type Request struct {
	Shooter        *core.Entity
	Start          geom.Vec3
	End            geom.Vec3
	Radius         float64 // 0 为射线
	PredictionTime float64 // 回溯秒数
	Authority      bool    // 只有权威端才回溯

	Claimed    core.EntityID // 客户端声称命中的实体，享有额外半径
	OwnerRTTMs float64
}

// HitResult 命中结果
type HitResult struct {
	Blocking    bool         // 命中场景或实体
	Entity      *core.Entity // 命中的实体，可能为空
	Location    geom.Vec3    // 胶囊表面命中点或场景命中点
	ImpactPoint geom.Vec3    // 射线上离胶囊最近的点
	Normal      geom.Vec3
	Fraction    float64

	PredictionTime float64
	ClaimedPadding float64
	InvalidClaim   bool    // 声称的目标不存在或已死亡
	SearchOffset   float64 // 时间搜索找到声称目标时的偏移
}

// HitEntity 命中实体编号
func (r HitResult) HitEntity() core.EntityID {
	if r.Entity == nil {
		return core.NoEntity
	}
	return r.Entity.ID
}

// Option 配置 Tester
type Option func(*Tester)

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tester) {
		t.log = l
	}
}

// Tester 对静态场景和回溯后的实体胶囊做命中检测
type Tester struct {
	cfg   Config
	world *core.World
	log   zerolog.Logger
}

// New 创建检测器
func New(world *core.World, cfg Config, opts ...Option) *Tester {
	t := &Tester{cfg: cfg, world: world, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config 当前参数
func (t *Tester) Config() Config {
	return t.cfg
}

// probe 单个胶囊的检测结果
type probe struct {
	point        geom.Vec3 // 射线上的最近点
	capsulePoint geom.Vec3 // 胶囊中心线上的最近点
	radius       float64
	hit          bool
}

// Trace 执行检测，只返回最佳命中
func (t *Tester) Trace(req Request) HitResult {
	wh, blocked := t.world.TraceWorld(req.Start, req.End, req.Radius)
	provisional := wh.Location

	res := HitResult{
		Blocking:       blocked,
		Location:       provisional,
		ImpactPoint:    provisional,
		Normal:         wh.Normal,
		Fraction:       wh.Fraction,
		PredictionTime: req.PredictionTime,
	}

	var claimed *core.Entity
	if req.Claimed != core.NoEntity {
		claimed = t.world.Entity(req.Claimed)
		if claimed == nil || claimed.Dead {
			claimed = nil
			res.InvalidClaim = true
		}
	}

	rewinding := req.Authority && req.PredictionTime > 0

	var best *core.Entity
	var bestProbe probe
	for _, e := range t.world.Entities {
		if !t.candidate(req.Shooter, e) {
			continue
		}
		pad := 0.0
		if e == claimed {
			pad = t.cfg.ClaimedPadding(!e.Velocity.IsNearlyZero(t.cfg.MovingTolerance), req.OwnerRTTMs)
			res.ClaimedPadding = pad
		}
		center := e.Position
		if rewinding {
			center = e.RewindLocation(req.PredictionTime)
		}
		p := probeCapsule(req.Start, provisional, center, e, req.Radius, pad)
		if !p.hit {
			continue
		}
		// 距离相同时保留先遍历到的实体
		if best == nil || p.point.DistSq(req.Start) < bestProbe.point.DistSq(req.Start) {
			best = e
			bestProbe = p
		}
	}

	if req.Authority && t.cfg.TimeSearch && claimed != nil && best != claimed {
		if p, off, ok := t.searchClaimed(req, claimed, provisional); ok {
			best = claimed
			bestProbe = p
			res.SearchOffset = off
			t.log.Debug().
				Int32("target", int32(claimed.ID)).
				Float64("offset_ms", off*1000).
				Float64("base_ms", req.PredictionTime*1000).
				Msg("时间搜索找到声称目标")
		}
	}

	if best == nil {
		return res
	}

	back := math.Sqrt(math.Max(0, bestProbe.radius*bestProbe.radius-bestProbe.point.DistSq(bestProbe.capsulePoint)))
	loc := bestProbe.point.Add(req.Start.Sub(req.End).Normalize().Scale(back))

	res.Blocking = true
	res.Entity = best
	res.Location = loc
	res.ImpactPoint = bestProbe.point
	res.Normal = loc.Sub(bestProbe.capsulePoint).Normalize()
	if total := req.End.Dist(req.Start); total > 0 {
		res.Fraction = bestProbe.point.Dist(req.Start) / total
	} else {
		res.Fraction = 0
	}
	return res
}

func (t *Tester) candidate(shooter, e *core.Entity) bool {
	if e == nil || e.Dead || e == shooter {
		return false
	}
	if shooter != nil && !t.cfg.TeammatesBlock && SameTeam(shooter, e) {
		return false
	}
	return true
}

// searchClaimed 在基准回溯时间附近前后搜索声称的目标，第一个命中的偏移生效
func (t *Tester) searchClaimed(req Request, claimed *core.Entity, provisional geom.Vec3) (probe, float64, bool) {
	for _, off := range t.cfg.SearchOffsets() {
		alt := req.PredictionTime + off
		if alt <= 0 || alt >= t.cfg.MaxRewind {
			continue
		}
		center := claimed.RewindLocation(alt)
		p := probeCapsule(req.Start, provisional, center, claimed, req.Radius, t.cfg.SearchPadding)
		if p.hit {
			return p, off, true
		}
	}
	return probe{}, 0, false
}

// SameTeam 两个实体是否同队，队伍 0 表示无队伍
func SameTeam(a, b *core.Entity) bool {
	return a.Team != 0 && a.Team == b.Team
}

// probeCapsule 线段 start->end 与以 center 为中心的实体胶囊做距离检测
func probeCapsule(start, end, center geom.Vec3, e *core.Entity, traceRadius, pad float64) probe {
	halfHeight := e.Capsule.HalfHeight
	if e.Sliding && e.SlideHeight > 0 {
		center.Z = center.Z - halfHeight + e.SlideHeight
		halfHeight = e.SlideHeight
	}
	radius := e.Capsule.Radius

	// 半径不小于半高时按球处理
	if radius >= halfHeight {
		point := geom.ClosestPointOnSegment(center, start, end)
		limit := halfHeight + traceRadius + pad
		return probe{
			point:        point,
			capsulePoint: center,
			radius:       halfHeight,
			hit:          point.DistSq(center) < limit*limit,
		}
	}

	seg := geom.V(0, 0, halfHeight-radius)
	point, capsulePoint := geom.SegmentClosestPoints(start, end, center.Sub(seg), center.Add(seg))
	limit := radius + traceRadius + pad
	return probe{
		point:        point,
		capsulePoint: capsulePoint,
		radius:       radius,
		hit:          point.DistSq(capsulePoint) < limit*limit,
	}
}

// CapsuleDistance 线段到实体胶囊中心线的最近距离（未减去半径），用于诊断和测试
func CapsuleDistance(start, end geom.Vec3, e *core.Entity, center geom.Vec3) float64 {
	p := probeCapsule(start, end, center, e, 0, 0)
	return p.point.Dist(p.capsulePoint)
}
