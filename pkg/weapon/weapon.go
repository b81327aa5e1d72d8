package weapon

import (
	"math"

	"github.com/rs/zerolog"

	"arenanet/pkg/core"
	"arenanet/pkg/latency"
	"arenanet/pkg/rewind"
	"arenanet/pkg/schedule"
)

// Slot 单个开火模式的同步记录
type Slot struct {
	Active             bool
	AuthoritativeIndex int32
	ClientIndex        int32
	LastFireTime       float64 // 负数表示从未开火
}

// Fired 是否开过火
func (s Slot) Fired() bool {
	return s.LastFireTime >= 0
}

// Env 武器运行所需的外部依赖
type Env struct {
	Clock    schedule.Clock
	Side     Side
	Owner    *core.Entity
	World    *core.World
	Tester   *rewind.Tester
	Latency  *latency.Estimator
	RTT      latency.RTTSource // 持有者的往返延迟
	Outbox   Outbox
	Listener Listener
	FireGate func() bool // 返回 false 时禁止开火，例如比赛已结束
	Tuning   Tuning
	Logger   zerolog.Logger
}

// Weapon 单把武器的开火状态机
type Weapon struct {
	ID  uint8
	cfg Config
	env Env
	log zerolog.Logger

	tasks *schedule.Table
	slots [NumModes]Slot

	state   StateKind
	current Mode
	firing  Mode

	pending      [NumModes]bool // 扳机按住
	earliestFire float64
	retryMode    Mode

	aim *AimContext

	equipped  bool
	switching bool

	charge *chargeLoad
	beam   *beam
}

// New 创建武器，初始为未装备
func New(id uint8, cfg Config, env Env) (*Weapon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env.Clock == nil || env.Owner == nil {
		return nil, ErrInvalidConfig
	}
	if env.Outbox == nil {
		env.Outbox = nopOutbox{}
	}
	if env.Listener == nil {
		env.Listener = ListenerFunc(func(Event) {})
	}
	if env.Latency == nil {
		env.Latency = latency.New(latency.DefaultConfig())
	}
	if env.Tuning == (Tuning{}) {
		env.Tuning = DefaultTuning()
	}

	w := &Weapon{
		ID:        id,
		cfg:       cfg,
		env:       env,
		tasks:     schedule.NewTable(env.Clock),
		state:     StateInactive,
		current:   0,
		firing:    NoMode,
		retryMode: NoMode,
	}
	w.log = env.Logger.With().
		Str("weapon", cfg.Name).
		Int32("owner", int32(env.Owner.ID)).
		Str("side", env.Side.String()).
		Logger()
	for i := range w.slots {
		w.slots[i].LastFireTime = -1
	}
	if cfg.Charge != nil {
		w.charge = &chargeLoad{w: w, cfg: *cfg.Charge}
		w.charge.reset()
	}
	if cfg.Beam != nil {
		w.beam = &beam{w: w, cfg: *cfg.Beam}
		for m := Mode(0); m < NumModes; m++ {
			if cfg.Modes[m].State == StateContinuousBeam {
				w.beam.mode = m
				break
			}
		}
	}
	return w, nil
}

func (w *Weapon) Config() Config        { return w.cfg }
func (w *Weapon) State() StateKind      { return w.state }
func (w *Weapon) CurrentMode() Mode     { return w.current }
func (w *Weapon) Firing() Mode          { return w.firing }
func (w *Weapon) Equipped() bool        { return w.equipped }
func (w *Weapon) Switching() bool       { return w.switching }
func (w *Weapon) Side() Side            { return w.env.Side }
func (w *Weapon) Owner() *core.Entity   { return w.env.Owner }
func (w *Weapon) EarliestFire() float64 { return w.earliestFire }

// Slot 指定模式的同步记录副本
func (w *Weapon) Slot(m Mode) Slot {
	if !m.Valid() {
		return Slot{}
	}
	return w.slots[m]
}

// Pending 指定模式的扳机是否按住
func (w *Weapon) Pending(m Mode) bool {
	return m.Valid() && w.pending[m]
}

// RetryPending 是否有待执行的冷却重试
func (w *Weapon) RetryPending() bool {
	return w.tasks.Active(schedule.RoleRetry)
}

// Charge 当前蓄力会话，没有蓄力能力时 ok 为 false
func (w *Weapon) Charge() (ChargeSession, bool) {
	if w.charge == nil {
		return ChargeSession{}, false
	}
	return w.charge.session, true
}

// BeamAccumulated 当前累计但尚未上报的光束伤害
func (w *Weapon) BeamAccumulated() float64 {
	if w.beam == nil {
		return 0
	}
	return w.beam.acc
}

func (w *Weapon) now() float64 {
	return w.env.Clock.Now()
}

func (w *Weapon) mode(m Mode) ModeConfig {
	return w.cfg.Modes[m]
}

func (w *Weapon) gateOpen() bool {
	return w.env.FireGate == nil || w.env.FireGate()
}

// enter 切换状态，并清除新状态不允许的定时任务
func (w *Weapon) enter(kind StateKind, reason StopReason) {
	prev := w.state
	w.state = kind
	w.tasks.Keep(validRoles[kind]...)
	if prev == kind {
		return
	}
	w.emit(Event{Kind: EventStateChanged, State: &StateChange{From: prev, To: kind, Mode: w.current, Reason: reason}})
}

// goIdle 回到空闲并清除开火标记
func (w *Weapon) goIdle(reason StopReason) {
	for i := range w.slots {
		w.slots[i].Active = false
	}
	w.firing = NoMode
	if w.charge != nil {
		w.charge.reset()
	}
	if w.beam != nil {
		w.beam.reset()
	}
	w.enter(StateIdle, reason)
}

func (w *Weapon) emit(e Event) {
	e.Weapon = w.ID
	e.Owner = w.env.Owner.ID
	w.env.Listener.HandleWeaponEvent(e)
}

// Equip 装备完成，切枪期间按下的开火在此生效
func (w *Weapon) Equip() {
	if w.equipped {
		return
	}
	w.equipped = true
	w.switching = false
	w.firing = NoMode
	w.enter(StateIdle, ReasonNone)
	w.log.Debug().Msg("武器已装备")
	for m := Mode(0); m < NumModes; m++ {
		if w.pending[m] {
			w.StartFire(m)
			break
		}
	}
}

// Step 推进定时任务并执行看门狗，每个模拟帧调用一次
func (w *Weapon) Step(dt float64) {
	w.tasks.Advance()
	if !w.equipped {
		return
	}

	// 空闲状态不应残留开火标记
	if w.state == StateIdle && w.firing != NoMode {
		w.firing = NoMode
		for i := range w.slots {
			w.slots[i].Active = false
		}
	}

	w.watchdog()

	if w.state == StateContinuousBeam && w.beam != nil {
		w.beam.step(dt)
	}
}

// watchdog 权威端逐发开火超过时限没有新事件时强制停火
func (w *Weapon) watchdog() {
	if !w.env.Side.Authority() || w.state != StateTransactional || w.firing == NoMode {
		return
	}
	m := w.firing
	s := w.slots[m]
	if !s.Active || !s.Fired() {
		return
	}
	limit := math.Max(w.env.Tuning.WatchdogMin, w.env.Tuning.WatchdogFactor*w.mode(m).Refire)
	idle := w.now() - s.LastFireTime
	if idle <= limit {
		return
	}
	w.log.Warn().
		Uint8("mode", uint8(m)).
		Float64("idle", idle).
		Float64("limit", limit).
		Msg("长时间未收到开火事件，强制停火")
	w.pending[m] = false
	w.stopTransactional(m, ReasonWatchdog)
}
