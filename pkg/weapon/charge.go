package weapon

import (
	"arenanet/pkg/geom"
	"arenanet/pkg/latency"
	"arenanet/pkg/schedule"
)

// ChargeSession 一次蓄力的进度
type ChargeSession struct {
	Loaded         int
	MaxLoaded      int
	LoadDurations  []float64
	Charging       bool // 扳机仍按住，继续装填
	GraceActive    bool
	Pattern        int
	PutDownPending bool
}

// chargeLoad 蓄力装填状态机：装填 -> 宽限 -> 连发 -> 恢复
type chargeLoad struct {
	w       *Weapon
	cfg     ChargeConfig
	session ChargeSession
	mode    Mode
	queued  bool // 权威端：本轮装填中已收到下一轮的开火请求
}

func (c *chargeLoad) reset() {
	c.session = ChargeSession{MaxLoaded: c.cfg.MaxLoaded}
	c.queued = false
}

func (c *chargeLoad) durations() []float64 {
	d := make([]float64, c.cfg.MaxLoaded)
	for i := range d {
		d[i] = c.cfg.LoadTime
	}
	d[0] = c.cfg.FirstLoadTime
	return d
}

func (c *chargeLoad) begin(m Mode) {
	w := c.w
	c.mode = m
	c.queued = false
	w.current = m
	w.slots[m].Active = true
	w.firing = m
	w.enter(StateCharging, ReasonNone)
	w.slots[m].LastFireTime = w.now()

	c.session = ChargeSession{
		MaxLoaded:     c.cfg.MaxLoaded,
		LoadDurations: c.durations(),
		Charging:      true,
	}
	w.announce(m)
	w.tasks.Set(schedule.RoleLoad, c.session.LoadDurations[0], c.loadDone)
}

func (c *chargeLoad) loadDone() {
	s := &c.session
	s.Loaded++
	if s.Loaded >= s.MaxLoaded {
		s.GraceActive = true
		c.w.tasks.Set(schedule.RoleGrace, c.cfg.GracePeriod, c.graceDone)
		return
	}
	c.w.tasks.Set(schedule.RoleLoad, s.LoadDurations[s.Loaded], c.loadDone)
}

// graceDone 装满后宽限期结束，强制发射
func (c *chargeLoad) graceDone() {
	c.session.GraceActive = false
	c.session.Charging = false
	c.w.slots[c.mode].Active = false
	c.endFiring()
}

// press 蓄力状态下按下开火
func (c *chargeLoad) press(m Mode) StartResult {
	w := c.w
	if m == c.mode {
		w.pending[m] = true
		return Busy
	}
	if !c.session.Charging {
		// 连发或恢复中，等 refire 检查时处理
		w.pending[m] = true
		return Buffered
	}
	w.pending[m] = false
	w.clearRetry(m)
	if c.cfg.Patterns > 1 {
		c.session.Pattern = (c.session.Pattern + 1) % c.cfg.Patterns
	}
	w.emit(Event{Kind: EventPatternCycled, Pattern: c.session.Pattern})
	return Cycled
}

// release 松开扳机或收到停火
func (c *chargeLoad) release(m Mode) {
	if m != c.mode || !c.session.Charging {
		return
	}
	c.session.Charging = false
	c.endFiring()
}

// endFiring 停止装填并发射已装填的弹药。
// 第一发尚未装好但剩余时间小于单程延迟加抖动时，视为已装好。
func (c *chargeLoad) endFiring() {
	w := c.w
	s := &c.session
	s.GraceActive = false
	w.tasks.Clear(schedule.RoleGrace)
	if !w.env.Side.Local() {
		// 远端持有者的这一轮到此结束，下一轮要等新的开火请求
		w.pending[c.mode] = c.queued
		c.queued = false
	}

	if s.Loaded <= 0 {
		if !w.tasks.Active(schedule.RoleLoad) {
			w.goIdle(ReasonEarlyRelease)
			return
		}
		remaining := w.tasks.Remaining(schedule.RoleLoad)
		t := w.env.Tuning
		tolerance := geom.Clamp(latency.OneWaySeconds(w.env.RTT)+t.GhostJitter, 0, t.GhostMaxTolerance)
		w.tasks.Clear(schedule.RoleLoad)
		if remaining >= tolerance {
			w.log.Debug().
				Float64("remaining", remaining).
				Float64("tolerance", tolerance).
				Msg("蓄力未完成，不发射")
			w.goIdle(ReasonEarlyRelease)
			return
		}
		s.Loaded = 1
		w.log.Debug().
			Float64("remaining", remaining).
			Float64("tolerance", tolerance).
			Msg("松开时第一发即将装好，补发一发")
	}
	w.tasks.Clear(schedule.RoleLoad)

	if !w.gateOpen() {
		s.Loaded = 0
		w.goIdle(ReasonGated)
		return
	}
	c.fireLoaded()
}

func (c *chargeLoad) fireLoaded() {
	s := &c.session
	if s.Loaded <= 0 {
		c.finish()
		return
	}
	c.fireRound()
	if s.Loaded <= 0 {
		c.finish()
		return
	}
	if c.cfg.BurstInterval <= 0 {
		c.flush()
		c.finish()
		return
	}
	c.w.tasks.Set(schedule.RoleBurst, c.cfg.BurstInterval, c.fireLoaded)
}

// flush 一次性打完剩余弹药，循环次数有上限并强制递减
func (c *chargeLoad) flush() {
	s := &c.session
	limit := c.w.env.Tuning.BurstSafetyCap
	for n := 0; s.Loaded > 0; n++ {
		if n >= limit {
			c.w.log.Warn().Int("loaded", s.Loaded).Int("limit", limit).Msg("连发循环超过上限，丢弃剩余弹药")
			s.Loaded = 0
			return
		}
		before := s.Loaded
		c.fireRound()
		if s.Loaded >= before {
			s.Loaded = before - 1
		}
	}
}

func (c *chargeLoad) fireRound() {
	w := c.w
	c.session.Loaded--
	switch {
	case w.env.Side.Authority():
		w.resolveShot(c.mode, c.session.Pattern)
	case w.env.Side == SideClient:
		owner := w.env.Owner
		w.emit(Event{Kind: EventShotFired, Fired: &ShotFired{
			Mode:       c.mode,
			EventIndex: w.slots[c.mode].ClientIndex,
			Start:      w.fireStart(),
			Direction:  owner.Rotation.Vector(),
		}})
	}
}

func (c *chargeLoad) finish() {
	w := c.w
	w.tasks.Clear(schedule.RoleGrace)
	w.tasks.Clear(schedule.RoleLoad)
	w.tasks.Set(schedule.RoleRefire, w.mode(c.mode).Refire, c.refireCheck)
}

// refireCheck 恢复结束：切枪优先，扳机仍按住（远端持有者则是收到了下一轮请求）时开始下一轮蓄力
func (c *chargeLoad) refireCheck() {
	w := c.w
	if w.state != StateCharging {
		return
	}
	if c.session.PutDownPending || w.switching {
		w.goIdle(ReasonPutDown)
		w.standardPutDown()
		return
	}
	m := c.mode
	if w.pending[m] && w.equipped && w.gateOpen() {
		c.begin(m)
		return
	}
	w.goIdle(ReasonRelease)
	for other := Mode(0); other < NumModes; other++ {
		if other != m && w.pending[other] {
			w.StartFire(other)
			return
		}
	}
}

// putDown 连发、蓄力或宽限期间推迟切枪，恢复阶段按普通规则切枪
func (c *chargeLoad) putDown() bool {
	w := c.w
	s := &c.session
	if w.tasks.Active(schedule.RoleBurst) || s.Charging || s.GraceActive {
		s.PutDownPending = true
		return false
	}
	if s.Loaded > 0 {
		c.flush()
	}
	return w.standardPutDown()
}
