package client

import (
	"math"

	"arenanet/pkg/bt"
	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/weapon"
)

// DrillConfig 练习机器人的节奏
type DrillConfig struct {
	Mode      weapon.Mode
	Hold      float64 // 每轮按住扳机的秒数
	Rest      float64 // 两轮之间松开的秒数
	Range     float64 // 超出距离的目标忽略
	Cycle     int     // 每打完多少轮换下一把武器，0 表示不换
	TurnSpeed float64 // 没有目标时每秒转动的角度
}

func DefaultDrillConfig() DrillConfig {
	return DrillConfig{
		Hold:      0.6,
		Rest:      0.4,
		Range:     3000,
		Cycle:     4,
		TurnSpeed: 90,
	}
}

// Drill 行为树驱动的开火练习：找最近的活人，瞄准，按节奏扣扳机，定期换枪
type Drill struct {
	cfg  DrillConfig
	root bt.Node[*Drill]

	peer     *Peer
	last     float64
	dt       float64
	target   *core.Entity
	holding  bool
	phaseEnd float64
	bursts   int
}

var _ Brain = (*Drill)(nil)

func NewDrill(cfg DrillConfig) *Drill {
	d := &Drill{cfg: cfg, last: -1}
	d.root = bt.Select[*Drill](
		bt.Seq[*Drill](
			bt.If((*Drill).cannotFire),
			bt.Do((*Drill).release),
		),
		bt.Seq[*Drill](
			bt.If((*Drill).acquire),
			bt.Do((*Drill).aim),
			bt.Do((*Drill).burst),
		),
		bt.Do((*Drill).wander),
	)
	return d
}

// Think 每帧从根重新求值
func (d *Drill) Think(p *Peer) {
	d.peer = p
	now := p.Now()
	if d.last >= 0 {
		d.dt = now - d.last
	}
	d.last = now
	d.root.Tick(d)
}

// Bursts 已完成的开火轮数
func (d *Drill) Bursts() int {
	return d.bursts
}

func (d *Drill) cannotFire() bool {
	return d.peer.Self().Dead || !d.peer.Running() || d.peer.Loadout().Switching()
}

func (d *Drill) release() bt.Status {
	if d.holding {
		d.peer.StopFire(d.cfg.Mode)
		d.holding = false
		d.phaseEnd = d.peer.Now() + d.cfg.Rest
	}
	d.target = nil
	return bt.StatusSuccess
}

// acquire 保留仍然有效的目标，否则选最近的
func (d *Drill) acquire() bool {
	self := d.peer.Self()
	if d.valid(d.target) {
		return true
	}
	d.target = nil
	best := math.Inf(1)
	for _, e := range d.peer.World().Entities {
		if !d.valid(e) {
			continue
		}
		if dist := e.Position.Dist(self.Position); dist < best {
			best = dist
			d.target = e
		}
	}
	return d.target != nil
}

func (d *Drill) valid(e *core.Entity) bool {
	self := d.peer.Self()
	if e == nil || e == self || e.Dead || d.peer.World().Entity(e.ID) != e {
		return false
	}
	return e.Position.Dist(self.Position) <= d.cfg.Range
}

func (d *Drill) aim() bt.Status {
	self := d.peer.Self()
	rot := geom.LookAt(self.EyeLocation(), d.target.Position)
	in := d.peer.Input()
	in.Yaw, in.Pitch = rot.Yaw, rot.Pitch
	in.Forward = false
	d.peer.SetInput(in)
	return bt.StatusSuccess
}

// burst 按住 Hold 秒后松开 Rest 秒，一轮结束返回 Success
func (d *Drill) burst() bt.Status {
	now := d.peer.Now()
	if now < d.phaseEnd {
		return bt.StatusRunning
	}
	if !d.holding {
		d.peer.StartFire(d.cfg.Mode)
		d.holding = true
		d.phaseEnd = now + d.cfg.Hold
		return bt.StatusRunning
	}
	d.peer.StopFire(d.cfg.Mode)
	d.holding = false
	d.phaseEnd = now + d.cfg.Rest
	d.bursts++
	if d.cfg.Cycle > 0 && d.bursts%d.cfg.Cycle == 0 {
		d.nextWeapon()
	}
	return bt.StatusSuccess
}

func (d *Drill) nextWeapon() {
	l := d.peer.Loadout()
	n := len(l.Weapons())
	if n < 2 {
		return
	}
	cur := 0
	for i, w := range l.Weapons() {
		if w == l.Current() {
			cur = i
			break
		}
	}
	d.peer.Switch((cur + 1) % n)
}

// wander 没有目标时原地转圈并前进
func (d *Drill) wander() bt.Status {
	d.release()
	in := d.peer.Input()
	in.Yaw = math.Mod(in.Yaw+d.cfg.TurnSpeed*d.dt, 360)
	in.Pitch = 0
	in.Forward = true
	d.peer.SetInput(in)
	return bt.StatusRunning
}
