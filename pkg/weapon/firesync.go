package weapon

import (
	"math"

	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/latency"
	"arenanet/pkg/rewind"
	"arenanet/pkg/schedule"
)

// StartFire 本地按下开火
func (w *Weapon) StartFire(m Mode) StartResult {
	if !m.Valid() {
		return Ignored
	}
	if !w.equipped || w.switching {
		// 切枪结束后再处理
		w.pending[m] = true
		return Ignored
	}

	if w.mode(m).State == StateZooming {
		w.pending[m] = true
		w.current = m
		w.enter(StateZooming, ReasonNone)
		return Started
	}

	if w.state == StateCharging && w.charge != nil {
		return w.charge.press(m)
	}

	if w.state == StateIdle {
		// 上一轮残留的标记
		w.firing = NoMode
		for i := range w.slots {
			w.slots[i].Active = false
		}
	}

	if !w.gateOpen() {
		return Ignored
	}

	for i := range w.slots {
		if Mode(i) != m && w.slots[i].Active {
			return Busy
		}
	}

	if w.onCooldown(w.now(), w.env.Tuning.ClientCooldownTolerance) {
		if w.slots[m].Active || w.firing == m {
			w.clearRetry(m)
			return CoolingDown
		}
		w.pending[m] = true
		// 只有本地操控的非权威端重试，权威端按请求校验
		if w.env.Side == SideClient {
			w.scheduleRetry(m)
			return RetryScheduled
		}
		return CoolingDown
	}
	w.clearRetry(m)

	if w.firing == m {
		return Busy
	}

	w.slots[m].Active = true
	w.firing = m
	w.pending[m] = true
	w.beginFiringSequence(m)
	return Started
}

// StopFire 本地松开开火，重复调用无副作用
func (w *Weapon) StopFire(m Mode) {
	if !m.Valid() {
		return
	}
	held := w.pending[m]
	w.pending[m] = false
	w.clearRetry(m)

	switch w.state {
	case StateZooming:
		if w.current == m {
			w.enter(StateIdle, ReasonRelease)
		}
		return
	case StateCharging:
		if w.charge == nil || w.current != m {
			return
		}
		// 宽限期已经强制发射时也要告知权威端，连发和恢复阶段同样如此
		if w.env.Side == SideClient && (held || w.charge.session.Charging) {
			w.env.Outbox.SendStopRequest(StopRequest{
				Weapon:     w.ID,
				Mode:       m,
				EventIndex: w.slots[m].ClientIndex,
				ClientTime: w.now(),
				Pattern:    uint8(w.charge.session.Pattern),
			})
		}
		if w.charge.session.Charging {
			w.slots[m].Active = false
			w.charge.release(m)
		}
		return
	case StateContinuousBeam:
		if w.beam != nil && w.current == m {
			if w.env.Side == SideClient {
				w.env.Outbox.SendStopBeam(StopBeam{Weapon: w.ID})
				w.env.Outbox.SendStopRequest(StopRequest{Weapon: w.ID, Mode: m, EventIndex: w.slots[m].ClientIndex, ClientTime: w.now()})
			}
			w.goIdle(ReasonRelease)
		}
		return
	}

	if !w.slots[m].Active && w.firing != m {
		return
	}
	if w.env.Side == SideClient {
		w.env.Outbox.SendStopRequest(StopRequest{Weapon: w.ID, Mode: m, EventIndex: w.slots[m].ClientIndex, ClientTime: w.now()})
	}
	w.stopTransactional(m, ReasonRelease)
}

func (w *Weapon) stopTransactional(m Mode, reason StopReason) {
	w.slots[m].Active = false
	if w.firing == m {
		w.firing = NoMode
	}
	if w.state == StateTransactional && w.current == m {
		w.enter(StateIdle, reason)
	}
}

// onCooldown 任一开过火的模式距上次开火不足 refire-tolerance，或尚未到切枪后的最早开火时间
func (w *Weapon) onCooldown(now, tolerance float64) bool {
	if now < w.earliestFire {
		return true
	}
	for i, s := range w.slots {
		if !s.Fired() {
			continue
		}
		if now-s.LastFireTime < w.mode(Mode(i)).Refire-tolerance {
			return true
		}
	}
	return false
}

// readyTime 冷却全部结束的时刻
func (w *Weapon) readyTime() float64 {
	ready := w.earliestFire
	for i, s := range w.slots {
		if s.Fired() {
			ready = math.Max(ready, s.LastFireTime+w.mode(Mode(i)).Refire)
		}
	}
	return ready
}

func (w *Weapon) scheduleRetry(m Mode) {
	delay := w.readyTime() - w.now()
	if delay > w.env.Tuning.RetryEpsilon {
		delay += w.env.Tuning.RetryEpsilon
	} else {
		delay = 0
	}
	w.retryMode = m
	w.tasks.Set(schedule.RoleRetry, delay, func() {
		w.retryMode = NoMode
		if w.pending[m] {
			w.StartFire(m)
		}
	})
}

func (w *Weapon) clearRetry(m Mode) {
	if w.retryMode == m {
		w.tasks.Clear(schedule.RoleRetry)
		w.retryMode = NoMode
	}
}

// beginFiringSequence 按模式配置进入对应的开火状态
func (w *Weapon) beginFiringSequence(m Mode) {
	w.current = m
	switch w.mode(m).State {
	case StateTransactional:
		w.enter(StateTransactional, ReasonNone)
		if w.env.Side.Local() {
			w.tasks.Set(schedule.RoleRefire, w.mode(m).Refire, w.refireCheck)
		}
		w.fireShot(m)
	case StateCharging:
		w.charge.begin(m)
	case StateContinuousBeam:
		w.beam.begin(m)
	case StateZooming:
		w.enter(StateZooming, ReasonNone)
	}
}

// refireCheck 射击间隔到期：扳机仍按住就继续，否则停火
func (w *Weapon) refireCheck() {
	if w.state != StateTransactional {
		return
	}
	m := w.current
	if w.pending[m] && w.equipped && !w.switching && w.gateOpen() {
		w.tasks.Set(schedule.RoleRefire, w.mode(m).Refire, w.refireCheck)
		w.fireShot(m)
		return
	}
	w.StopFire(m)
}

// fireShot 发射一发：客户端预测并发送请求，权威端结算
func (w *Weapon) fireShot(m Mode) {
	if w.env.Side == SideClient {
		w.predictShot(m)
		return
	}
	if !w.env.Side.Authority() {
		return
	}
	// 远端持有者只能通过请求开火
	if w.aim == nil && !w.env.Side.Local() && w.state != StateCharging && w.state != StateContinuousBeam && w.firing == NoMode {
		return
	}
	w.compensateRhythm(m)
	w.resolveShot(m, 0)
}

// compensateRhythm 晚到的事件按理论节奏记录开火时间，早到的按实际时间记录
func (w *Weapon) compensateRhythm(m Mode) {
	s := &w.slots[m]
	now := w.now()
	if !s.Fired() {
		s.LastFireTime = now
		return
	}
	theoretical := s.LastFireTime + w.mode(m).Refire
	if now < theoretical+w.env.Tuning.RhythmWindow {
		s.LastFireTime = math.Min(theoretical, now)
	} else {
		s.LastFireTime = now
	}
}

// predictShot 客户端本地开火：零回溯检测声称目标，序号加一并发送请求
func (w *Weapon) predictShot(m Mode) {
	s := &w.slots[m]
	s.ClientIndex++
	s.LastFireTime = w.now()

	owner := w.env.Owner
	owner.SavePose()
	start := w.fireStart()
	dir := owner.Rotation.Vector()
	mc := w.mode(m)

	claimed := core.NoEntity
	if mc.Kind == latency.HitScan && w.env.Tester != nil {
		res := w.env.Tester.Trace(rewind.Request{
			Shooter: owner,
			Start:   start,
			End:     start.Add(dir.Scale(mc.TraceRange)),
			Radius:  mc.TraceRadius,
		})
		claimed = res.HitEntity()
	}

	w.emit(Event{Kind: EventShotFired, Fired: &ShotFired{
		Mode:       m,
		EventIndex: s.ClientIndex,
		Start:      start,
		Direction:  dir,
		Claimed:    claimed,
	}})
	w.env.Outbox.SendFireRequest(FireRequest{
		Weapon:     w.ID,
		Mode:       m,
		EventIndex: s.ClientIndex,
		ClientTime: w.now(),
		Predicted:  true,
		Aim:        owner.Rotation,
		Claimed:    claimed,
		ZOffset:    EncodeZOffset(viewHeight(owner), owner.EyeHeight),
	})
}

// validate 远端开火请求的校验，顺序固定
func (w *Weapon) validate(req FireRequest) error {
	if !req.Mode.Valid() || w.mode(req.Mode).State == StateZooming {
		return ErrInvalidMode
	}
	if !w.equipped {
		return ErrNotEquipped
	}
	if !w.gateOpen() {
		return ErrFireGated
	}
	t := w.env.Tuning
	s := w.slots[req.Mode]
	continuing := w.state == StateCharging && w.current == req.Mode
	if req.EventIndex <= s.AuthoritativeIndex {
		return ErrRejectedStale
	}
	if req.EventIndex > s.AuthoritativeIndex+t.LookaheadWindow {
		return ErrRejectedOutOfWindow
	}
	now := w.now()
	// NaN 的比较恒为 false，写成反向判断才能拒绝
	if !(math.Abs(now-req.ClientTime) <= t.ClockSkewLimit) {
		return ErrRejectedClockSkew
	}
	for i, slot := range w.slots {
		// 持续按住时的下一轮蓄力由权威端自行开始，不再检查间隔
		if !slot.Fired() || (continuing && Mode(i) == req.Mode) {
			continue
		}
		if now-slot.LastFireTime < w.mode(Mode(i)).Refire-t.ServerCooldownTolerance-t.ValidationEpsilon {
			return ErrRejectedCooldown
		}
	}
	return nil
}

// HandleFireRequest 权威端处理开火请求。无论接受与否都回复确认。
func (w *Weapon) HandleFireRequest(req FireRequest) error {
	err := w.validate(req)

	ackMode := req.Mode
	var ackIndex int32
	if req.Mode.Valid() {
		if err == nil {
			w.acceptFireRequest(req)
		}
		ackIndex = w.slots[req.Mode].AuthoritativeIndex
	}

	if err != nil {
		w.log.Debug().
			Err(err).
			Uint8("mode", uint8(req.Mode)).
			Int32("index", req.EventIndex).
			Float64("client_time", req.ClientTime).
			Msg("拒绝开火请求")
	}

	w.env.Outbox.SendFireAck(FireAck{Weapon: w.ID, Mode: ackMode, AuthoritativeIndex: ackIndex})
	w.emit(Event{Kind: EventRequest, Request: &RequestOutcome{
		Mode:       req.Mode,
		EventIndex: req.EventIndex,
		ClientTime: req.ClientTime,
		ServerTime: w.now(),
		Err:        err,
	}})
	return err
}

func (w *Weapon) acceptFireRequest(req FireRequest) {
	m := req.Mode
	// 另一模式的开火事件视为隐式停火
	for i := range w.slots {
		if Mode(i) != m && (w.slots[i].Active || w.firing == Mode(i)) {
			w.forceStop(Mode(i))
		}
	}

	w.slots[m].AuthoritativeIndex = req.EventIndex
	z, hasZ := DecodeZOffset(req.ZOffset)
	w.aim = &AimContext{
		Rotation:   req.Aim,
		ZOffset:    z,
		HasZOffset: hasZ,
		Claimed:    req.Claimed,
		EventIndex: req.EventIndex,
		Predicted:  req.Predicted,
	}
	defer func() { w.aim = nil }()

	w.slots[m].Active = true
	w.firing = m
	w.pending[m] = true

	switch {
	case w.state == StateTransactional && w.current == m:
		w.fireShot(m)
	case w.state == StateCharging && w.current == m:
		// 下一轮蓄力在恢复结束时开始
		if w.charge.session.Charging {
			w.charge.queued = true
		}
	case w.state == StateContinuousBeam && w.current == m:
		w.beam.touch()
	default:
		w.beginFiringSequence(m)
	}
}

// forceStop 权威端直接结束某个模式，不发送任何消息
func (w *Weapon) forceStop(m Mode) {
	w.pending[m] = false
	switch {
	case w.state == StateCharging && w.current == m && w.charge != nil:
		w.slots[m].Active = false
		w.charge.queued = false
		w.charge.release(m)
	case w.state == StateContinuousBeam && w.current == m:
		w.goIdle(ReasonRelease)
	default:
		w.stopTransactional(m, ReasonRelease)
	}
}

// HandleStopRequest 权威端处理停火请求，旧于权威序号的停火被忽略
func (w *Weapon) HandleStopRequest(req StopRequest) {
	if !req.Mode.Valid() {
		return
	}
	if req.EventIndex < w.slots[req.Mode].AuthoritativeIndex {
		w.log.Debug().
			Uint8("mode", uint8(req.Mode)).
			Int32("index", req.EventIndex).
			Int32("authoritative", w.slots[req.Mode].AuthoritativeIndex).
			Msg("忽略过旧的停火请求")
		return
	}
	if w.charge != nil && w.state == StateCharging && w.current == req.Mode && w.charge.cfg.Patterns > 0 {
		w.charge.session.Pattern = int(req.Pattern) % w.charge.cfg.Patterns
	}
	w.forceStop(req.Mode)
}

// HandleStopBeam 权威端收到光束结束
func (w *Weapon) HandleStopBeam() {
	if w.state == StateContinuousBeam {
		w.pending[w.current] = false
		w.goIdle(ReasonRelease)
	}
}

// HandleFireAck 客户端收到确认，以权威序号为准
func (w *Weapon) HandleFireAck(ack FireAck) {
	if !ack.Mode.Valid() {
		return
	}
	s := &w.slots[ack.Mode]
	if s.ClientIndex != ack.AuthoritativeIndex {
		w.log.Debug().
			Uint8("mode", uint8(ack.Mode)).
			Int32("local", s.ClientIndex).
			Int32("server", ack.AuthoritativeIndex).
			Msg("客户端序号已纠正")
		w.emit(Event{Kind: EventDesync, Desync: &Desync{Mode: ack.Mode, Local: s.ClientIndex, Server: ack.AuthoritativeIndex}})
	}
	s.ClientIndex = ack.AuthoritativeIndex
}

// traceShot 即时命中检测。权威端按持有者延迟回溯，客户端不回溯。
func (w *Weapon) traceShot(m Mode) (rewind.HitResult, geom.Vec3, geom.Vec3) {
	owner := w.env.Owner
	mc := w.mode(m)
	start := w.fireStart()
	dir := w.aimRotation().Vector()
	end := start.Add(dir.Scale(mc.TraceRange))
	if w.env.Tester == nil {
		return rewind.HitResult{Location: end, Fraction: 1}, start, dir
	}

	req := rewind.Request{
		Shooter: owner,
		Start:   start,
		End:     end,
		Radius:  mc.TraceRadius,
	}
	if w.env.Side.Authority() && !w.env.Side.Local() {
		req.Authority = true
		req.PredictionTime = w.env.Latency.HitValidationTime(true, w.env.RTT)
		if w.env.RTT != nil {
			req.OwnerRTTMs = w.env.RTT.RoundTripMs()
		}
		if w.aim != nil {
			req.Claimed = w.aim.Claimed
		}
	}
	return w.env.Tester.Trace(req), start, dir
}

// resolveShot 权威端结算一发
func (w *Weapon) resolveShot(m Mode, pattern int) {
	mc := w.mode(m)
	shot := &ShotResolved{
		Mode:    m,
		Pattern: pattern,
		Damage:  mc.Damage,
	}
	if w.aim != nil {
		shot.EventIndex = w.aim.EventIndex
		shot.Predicted = w.aim.Predicted
	} else {
		shot.EventIndex = w.slots[m].AuthoritativeIndex
	}

	if mc.Kind == latency.Projectile {
		// 抛射物由上层生成，这里只给出起点和方向上的射程终点
		start := w.fireStart()
		shot.Projectile = true
		shot.Location = start.Add(w.aimRotation().Vector().Scale(mc.TraceRange))
		w.emit(Event{Kind: EventShotResolved, Shot: shot})
		return
	}

	res, start, dir := w.traceShot(m)
	shot.Location = res.Location
	shot.RewindSeconds = res.PredictionTime
	shot.Padding = res.ClaimedPadding
	shot.SearchOffset = res.SearchOffset
	shot.InvalidClaim = res.InvalidClaim
	if res.InvalidClaim && w.aim != nil {
		w.log.Debug().Err(ErrInvalidClaimedTarget).Int32("claimed", int32(w.aim.Claimed)).Msg("声称的目标无效")
	}
	if res.Entity != nil {
		shot.Hit = res.Entity.ID
		if w.isHeadshot(m, res.Entity, start, dir, res.Location, res.PredictionTime+res.SearchOffset) {
			shot.Headshot = true
			shot.Damage = w.cfg.Headshot.Damage
		}
	} else {
		shot.Damage = 0
	}
	w.emit(Event{Kind: EventShotResolved, Shot: shot})
}

// announce 客户端进入蓄力或光束时发送一次开火请求，之后的弹药由权威端自行结算
func (w *Weapon) announce(m Mode) {
	if w.env.Side != SideClient {
		return
	}
	s := &w.slots[m]
	s.ClientIndex++
	owner := w.env.Owner
	w.env.Outbox.SendFireRequest(FireRequest{
		Weapon:     w.ID,
		Mode:       m,
		EventIndex: s.ClientIndex,
		ClientTime: w.now(),
		Aim:        owner.Rotation,
		ZOffset:    EncodeZOffset(viewHeight(owner), owner.EyeHeight),
	})
}
