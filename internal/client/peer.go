package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"arenanet/internal/config"
	"arenanet/pkg/core"
	"arenanet/pkg/latency"
	"arenanet/pkg/protocol"
	"arenanet/pkg/rewind"
	"arenanet/pkg/schedule"
	"arenanet/pkg/weapon"
)

var ErrNoWeapons = errors.New("服务器没有下发武器")

// Link 对端连接，NetworkClient 是唯一的生产实现
type Link interface {
	Send(msg protocol.Message) error
	SendInput(in core.Input, slot int) int32
	RoundTripMs() float64

	ReceiveSnapshot() *protocol.Snapshot
	ReceiveFireAck() *protocol.FireAck
	ReceiveShot() *protocol.ShotEvent
	ReceivePlayerLeave() int32
	Errors() <-chan error
}

var _ Link = (*NetworkClient)(nil)

// outbox 客户端武器发出的请求直接写入连接
type outbox struct {
	link Link
	log  zerolog.Logger
}

var _ weapon.Outbox = outbox{}

func (o outbox) send(msg protocol.Message) {
	if err := o.link.Send(msg); err != nil {
		o.log.Debug().Err(err).Stringer("type", msg.MessageType()).Msg("发送失败")
	}
}

func (o outbox) SendFireRequest(r weapon.FireRequest) { o.send(protocol.FireRequestToProto(r)) }
func (o outbox) SendStopRequest(r weapon.StopRequest) { o.send(protocol.StopRequestToProto(r)) }
func (o outbox) SendFireAck(a weapon.FireAck)         { o.send(protocol.FireAckToProto(a)) }
func (o outbox) SendBeamHit(r weapon.BeamHitReport)   { o.send(protocol.BeamHitToProto(r)) }
func (o outbox) SendStopBeam(s weapon.StopBeam)       { o.send(protocol.StopBeamToProto(s)) }

// PeerStats 本地统计
type PeerStats struct {
	Shots    int // 本地预测发出的开火请求
	Acks     int
	Desyncs  int // 确认序号与本地序号不一致的次数
	Hits     int // 服务器判定命中他人
	Damage   int
	TakenHit int
}

// Peer 本地操控的角色。武器以客户端身份运行，世界状态来自服务器快照。
// 只在单个 goroutine 中使用。
type Peer struct {
	link Link
	log  zerolog.Logger

	clock   *schedule.ManualClock
	world   *core.World
	tester  *rewind.Tester
	lead    *latency.Estimator
	self    *core.Entity
	loadout *weapon.Loadout
	names   []string

	input core.Input

	smoothers map[core.EntityID]*RemoteSmoother

	frame int32
	phase int32
	stats PeerStats
}

// NewPeer 按加入响应里的武器表建立本地武器
func NewPeer(link Link, welcome *protocol.JoinResponse, cfg *config.Config, log zerolog.Logger) (*Peer, error) {
	if welcome == nil || len(welcome.Weapons) == 0 {
		return nil, ErrNoWeapons
	}

	clock := schedule.NewManualClock(welcome.ServerTime)
	world := core.NewWorld(clock, core.NewGameMap(1), cfg.Netcode.HistoryOptions()...)
	self := core.NewEntity(core.EntityID(welcome.PlayerID), 0, core.TileCenter(1, 1), nil)
	if err := world.AddEntity(self); err != nil {
		return nil, err
	}

	p := &Peer{
		link:   link,
		log:    log.With().Int32("player", welcome.PlayerID).Logger(),
		clock:  clock,
		world:  world,
		tester: rewind.New(world, cfg.Netcode.Rewind(), rewind.WithLogger(log)),
		lead:   latency.New(cfg.Netcode.Latency()),
		self:   self,
		names:  welcome.Weapons,

		smoothers: make(map[core.EntityID]*RemoteSmoother),
	}

	weapons := make([]*weapon.Weapon, 0, len(welcome.Weapons))
	for i, name := range welcome.Weapons {
		wc, err := cfg.Weapon(name)
		if err != nil {
			return nil, fmt.Errorf("武器 %s: %w", name, err)
		}
		w, err := weapon.New(uint8(i), wc, weapon.Env{
			Clock:    clock,
			Side:     weapon.SideClient,
			Owner:    self,
			World:    world,
			Tester:   p.tester,
			Latency:  p.lead,
			RTT:      link,
			Outbox:   outbox{link: link, log: p.log},
			Listener: weapon.ListenerFunc(p.onWeaponEvent),
			Tuning:   cfg.Netcode.Tuning(),
			Logger:   p.log,
		})
		if err != nil {
			return nil, fmt.Errorf("武器 %s: %w", name, err)
		}
		weapons = append(weapons, w)
	}
	p.loadout = weapon.NewLoadout(weapons...)
	return p, nil
}

func (p *Peer) ID() core.EntityID        { return p.self.ID }
func (p *Peer) Self() *core.Entity       { return p.self }
func (p *Peer) World() *core.World       { return p.world }
func (p *Peer) Loadout() *weapon.Loadout { return p.loadout }
func (p *Peer) Now() float64             { return p.clock.Now() }
func (p *Peer) Stats() PeerStats         { return p.stats }
func (p *Peer) Frame() int32             { return p.frame }

// Running 比赛是否进行中
func (p *Peer) Running() bool {
	return p.phase == protocol.PhaseRunning
}

// Slot 武器名对应的编号
func (p *Peer) Slot(name string) int {
	for i, n := range p.names {
		if n == name {
			return i
		}
	}
	return -1
}

// SetInput 设置本帧移动与视角，下次 Update 时发送
func (p *Peer) SetInput(in core.Input) {
	p.input = in
	p.self.Rotation.Yaw = in.Yaw
	p.self.Rotation.Pitch = in.Pitch
}

// Input 当前输入
func (p *Peer) Input() core.Input {
	return p.input
}

func (p *Peer) StartFire(m weapon.Mode) weapon.StartResult {
	return p.loadout.StartFire(m)
}

func (p *Peer) StopFire(m weapon.Mode) {
	p.loadout.StopFire(m)
}

// Switch 立即把切枪随一帧输入发给服务器，再在本地切枪。
// 收枪可以当场完成，按住的扳机会马上让新武器发出开火请求，切枪必须先到。
func (p *Peer) Switch(slot int) bool {
	if !p.loadout.CanSwitch(slot) {
		return false
	}
	p.link.SendInput(p.input, slot)
	return p.loadout.Switch(slot)
}

// Update 同步服务器消息，发送输入，推进本地武器
func (p *Peer) Update(dt float64) {
	for snap := p.link.ReceiveSnapshot(); snap != nil; snap = p.link.ReceiveSnapshot() {
		p.ApplySnapshot(snap)
	}
	for ack := p.link.ReceiveFireAck(); ack != nil; ack = p.link.ReceiveFireAck() {
		p.ApplyFireAck(ack)
	}
	for shot := p.link.ReceiveShot(); shot != nil; shot = p.link.ReceiveShot() {
		p.ApplyShot(shot)
	}
	for id := p.link.ReceivePlayerLeave(); id >= 0; id = p.link.ReceivePlayerLeave() {
		p.removeEntity(core.EntityID(id))
	}

	p.clock.Advance(dt)
	p.interpolate()

	p.link.SendInput(p.input, -1)

	p.loadout.Step(dt)
}

// ApplySnapshot 本地时钟只前进不后退
func (p *Peer) ApplySnapshot(snap *protocol.Snapshot) {
	if snap.Frame < p.frame {
		return
	}
	p.frame = snap.Frame
	p.phase = snap.Phase
	if snap.ServerTime > p.clock.Now() {
		p.clock.Set(snap.ServerTime)
	}

	seen := make(map[core.EntityID]struct{}, len(snap.Entities))
	for _, es := range snap.Entities {
		id := core.EntityID(es.ID)
		seen[id] = struct{}{}

		e := p.world.Entity(id)
		if e == nil {
			e = core.NewEntity(id, int(es.Team), es.Position.Core(), nil)
			if err := p.world.AddEntity(e); err != nil {
				continue
			}
			p.log.Debug().Int32("entity", es.ID).Msg("实体出现")
		}
		e.PrevVelocity = e.Velocity
		e.Velocity = es.Velocity.Core()
		if e == p.self {
			e.Position = es.Position.Core()
		} else {
			sm := p.smoother(id)
			// 死亡与复活之间不插值
			if e.Dead != es.Dead {
				sm.Reset()
			}
			sm.Add(snap.ServerTime, es.Position.Core())
			p.place(e, sm, p.clock.Now())
			e.Rotation.Yaw = float64(es.Yaw)
			e.Rotation.Pitch = float64(es.Pitch)
		}
		e.Team = int(es.Team)
		e.Health = int(es.Health)
		e.Dead = es.Dead
		e.Sliding = es.Sliding
	}

	for _, e := range append([]*core.Entity(nil), p.world.Entities...) {
		if _, ok := seen[e.ID]; !ok && e != p.self {
			p.removeEntity(e.ID)
		}
	}
}

// ApplyFireAck 以服务器序号为准
func (p *Peer) ApplyFireAck(ack *protocol.FireAck) {
	a := ack.Core()
	w := p.loadout.Weapon(a.Weapon)
	if w == nil {
		p.log.Debug().Uint8("weapon", a.Weapon).Msg("确认的武器不存在")
		return
	}
	p.stats.Acks++
	w.HandleFireAck(a)
}

func (p *Peer) ApplyShot(shot *protocol.ShotEvent) {
	id := int32(p.self.ID)
	switch {
	case shot.Shooter == id && shot.Hit != 0 && shot.Hit != id:
		p.stats.Hits++
		p.stats.Damage += int(shot.Damage)
	case shot.Hit == id:
		p.stats.TakenHit++
	}
}

func (p *Peer) smoother(id core.EntityID) *RemoteSmoother {
	sm, ok := p.smoothers[id]
	if !ok {
		sm = NewRemoteSmoother()
		p.smoothers[id] = sm
	}
	return sm
}

// interpolate 远端实体显示在插值延迟之前的位置
func (p *Peer) interpolate() {
	now := p.clock.Now()
	for id, sm := range p.smoothers {
		e := p.world.Entity(id)
		if e == nil {
			continue
		}
		p.place(e, sm, now)
	}
}

// place 按插值位置摆放远端实体，手持投射物武器时再前推视觉预测时间
func (p *Peer) place(e *core.Entity, sm *RemoteSmoother, now float64) {
	win := p.lead.Window(p.link, p.aimKind(), e.PrevVelocity, e.Velocity, true, false)
	if pos, ok := sm.PositionAhead(now, win.VisualSeconds); ok {
		e.Position = pos
	}
}

// aimKind 当前武器正在使用的模式决定是否需要视觉前推
func (p *Peer) aimKind() latency.WeaponKind {
	w := p.loadout.Current()
	if w == nil {
		return latency.HitScan
	}
	m := w.Firing()
	if !m.Valid() {
		m = w.CurrentMode()
	}
	if !m.Valid() {
		return latency.HitScan
	}
	return w.Config().Modes[m].Kind
}

func (p *Peer) removeEntity(id core.EntityID) {
	if id == p.self.ID {
		return
	}
	delete(p.smoothers, id)
	if err := p.world.RemoveEntity(id); err == nil {
		p.log.Debug().Int32("entity", int32(id)).Msg("实体离开")
	}
}

func (p *Peer) onWeaponEvent(e weapon.Event) {
	switch e.Kind {
	case weapon.EventShotFired:
		p.stats.Shots++
	case weapon.EventDesync:
		p.stats.Desyncs++
	}
}

// Brain 每帧在 Update 之前决定输入与扳机
type Brain interface {
	Think(p *Peer)
}

// Run 以固定帧率驱动，直到 ctx 取消或连接出错
func (p *Peer) Run(ctx context.Context, tps int, brain Brain) error {
	if tps <= 0 {
		tps = 60
	}
	interval := time.Second / time.Duration(tps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-p.link.Errors():
			return fmt.Errorf("连接中断: %w", err)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if brain != nil {
				brain.Think(p)
			}
			p.Update(dt)
		}
	}
}
