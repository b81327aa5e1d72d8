package weapon

import (
	"math"

	"arenanet/pkg/core"
	"arenanet/pkg/rewind"
)

// beam 持续光束：客户端累计伤害，攒够整数批量后上报，权威端校验后结算
type beam struct {
	w            *Weapon
	cfg          BeamConfig
	mode         Mode
	acc          float64
	lastActivity float64
	watching     bool
	target       core.EntityID
}

func (b *beam) reset() {
	b.acc = 0
	b.lastActivity = 0
	b.watching = false
	b.target = core.NoEntity
}

func (b *beam) dps() float64 {
	if b.cfg.DamagePerSecond > 0 {
		return b.cfg.DamagePerSecond
	}
	mc := b.w.mode(b.mode)
	return float64(mc.Damage) / mc.Refire
}

func (b *beam) begin(m Mode) {
	w := b.w
	b.mode = m
	w.current = m
	w.slots[m].Active = true
	w.firing = m
	w.enter(StateContinuousBeam, ReasonNone)
	b.reset()
	b.touch()
	w.slots[m].LastFireTime = w.now()
	w.announce(m)
}

func (b *beam) touch() {
	b.lastActivity = b.w.now()
	b.watching = true
}

func (b *beam) step(dt float64) {
	w := b.w
	if w.env.Side.Local() {
		b.accumulate(dt)
		return
	}
	if w.env.Side != SideDedicated || !b.watching {
		return
	}
	if idle := w.now() - b.lastActivity; idle > b.cfg.Timeout {
		w.log.Warn().Float64("idle", idle).Msg("光束长时间没有上报，停止")
		w.pending[b.mode] = false
		w.goIdle(ReasonBeamTimeout)
	}
}

// accumulate 零回溯检测光束目标，按 dps*dt 累计
func (b *beam) accumulate(dt float64) {
	w := b.w
	if w.env.Tester == nil {
		return
	}
	owner := w.env.Owner
	mc := w.mode(b.mode)
	start := w.fireStart()
	res := w.env.Tester.Trace(rewind.Request{
		Shooter: owner,
		Start:   start,
		End:     start.Add(owner.Rotation.Vector().Scale(mc.TraceRange)),
		Radius:  mc.TraceRadius,
	})
	if res.Entity == nil || !res.Entity.Damageable || res.Entity.Dead {
		b.acc = 0
		b.target = core.NoEntity
		return
	}
	if res.Entity.ID != b.target {
		b.acc = 0
		b.target = res.Entity.ID
	}

	b.acc += b.dps() * dt
	whole := math.Floor(b.acc)
	if int(whole) < b.cfg.BatchSize {
		return
	}
	b.acc -= whole
	report := BeamHitReport{
		Weapon: w.ID,
		Target: b.target,
		Impact: res.Location,
		Damage: int32(whole),
	}
	if w.env.Side.Authority() {
		if err := w.HandleBeamHit(report); err != nil {
			w.log.Debug().Err(err).Msg("本地光束伤害无效")
		}
		return
	}
	w.env.Outbox.SendBeamHit(report)
}

// HandleBeamHit 权威端校验并结算客户端上报的光束伤害
func (w *Weapon) HandleBeamHit(r BeamHitReport) error {
	b := w.beam
	if b == nil {
		return ErrBeamInactive
	}
	if !w.equipped {
		return ErrNotEquipped
	}
	b.touch()

	if r.Damage <= 0 {
		return ErrBeamDamage
	}
	var target *core.Entity
	if w.env.World != nil {
		target = w.env.World.Entity(r.Target)
	}
	if target == nil || target.Dead {
		return ErrBeamTargetMissing
	}

	damage := int(r.Damage)
	mult := b.cfg.FireRateMultiplier
	if mult <= 0 {
		mult = 1
	}
	if b.cfg.DamageCap > 0 {
		if limit := int(math.Ceil(b.cfg.DamageCap * mult)); damage > limit {
			damage = limit
		}
	}

	maxDist := w.mode(b.mode).TraceRange + b.cfg.RangeTolerance
	if dist := r.Impact.Dist(w.fireStart()); dist > maxDist {
		w.log.Debug().Float64("dist", dist).Float64("max", maxDist).Msg("光束命中点超出射程")
		return ErrBeamOutOfRange
	}

	w.emit(Event{Kind: EventShotResolved, Shot: &ShotResolved{
		Mode:       b.mode,
		EventIndex: w.slots[b.mode].AuthoritativeIndex,
		Hit:        target.ID,
		Location:   r.Impact,
		Damage:     damage,
		Beam:       true,
	}})
	return nil
}
