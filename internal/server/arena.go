package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"arenanet/internal/config"
	"arenanet/internal/stats"
	"arenanet/internal/telemetry"
	"arenanet/pkg/core"
	"arenanet/pkg/latency"
	"arenanet/pkg/protocol"
	"arenanet/pkg/rewind"
	"arenanet/pkg/schedule"
	"arenanet/pkg/weapon"
)

const (
	// 最多携带的武器数
	MaxLoadout = 8

	// 断线后保留角色等待重连的时间
	reconnectGrace = 10 * time.Second
)

var (
	ErrArenaClosed  = errors.New("竞技场已关闭")
	ErrArenaFull    = errors.New("竞技场已满")
	ErrBadLoadout   = errors.New("武器配置无效")
	ErrPlayerAbsent = errors.New("玩家不在竞技场中")
)

// Phase 比赛阶段
type Phase int32

const (
	PhaseWaiting Phase = iota // 没有玩家
	PhaseRunning
	PhaseEnded // 达到击杀上限，等待重新开始
)

var phaseNames = [...]string{"waiting", "running", "ended"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// ArenaDeps 竞技场共享的外部依赖
type ArenaDeps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *telemetry.Metrics // 可以为空
	Sink    stats.Sink         // 可以为空
	Tokens  *TokenIssuer       // 为空时不签发重连令牌
}

type joinRequest struct {
	session Session
	join    *JoinEvent
	respCh  chan joinResult
}

type joinResult struct {
	id  core.EntityID
	err error
}

type reconnectRequest struct {
	session  Session
	playerID core.EntityID
	respCh   chan error
}

type leaveRequest struct {
	session  Session
	playerID core.EntityID
}

type command struct {
	playerID core.EntityID
	event    *ServerEvent
}

// Arena 一个竞技场。所有模拟状态只在 Run 的协程中访问。
type Arena struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	deps   ArenaDeps
	log    zerolog.Logger

	dt        float64
	clock     *schedule.ManualClock
	world     *core.World
	tester    *rewind.Tester
	estimator *latency.Estimator
	tuning    weapon.Tuning

	frame      int32
	phase      Phase
	phaseUntil float64

	players map[core.EntityID]*player
	nextID  core.EntityID

	joinCh      chan joinRequest
	reconnectCh chan reconnectRequest
	leaveCh     chan leaveRequest
	cmdCh       chan command

	// 供管理器读取
	playerCount atomic.Int32
	phaseState  atomic.Int32
	frameState  atomic.Int32
}

// NewArena 创建竞技场，调用 Run 后开始模拟
func NewArena(parent context.Context, id string, deps ArenaDeps) *Arena {
	ctx, cancel := context.WithCancel(parent)
	cfg := deps.Config

	clock := schedule.NewManualClock(0)
	world := core.NewWorld(clock, core.NewGameMap(1), cfg.Netcode.HistoryOptions()...)
	log := deps.Logger.With().Str("arena", id).Logger()

	return &Arena{
		id:          id,
		ctx:         ctx,
		cancel:      cancel,
		deps:        deps,
		log:         log,
		dt:          1.0 / float64(cfg.Server.TPS),
		clock:       clock,
		world:       world,
		tester:      rewind.New(world, cfg.Netcode.Rewind(), rewind.WithLogger(log)),
		estimator:   latency.New(cfg.Netcode.Latency()),
		tuning:      cfg.Netcode.Tuning(),
		phase:       PhaseWaiting,
		players:     make(map[core.EntityID]*player),
		nextID:      1,
		joinCh:      make(chan joinRequest),
		reconnectCh: make(chan reconnectRequest),
		leaveCh:     make(chan leaveRequest, 256),
		cmdCh:       make(chan command, 1024),
	}
}

func (a *Arena) ID() string {
	return a.id
}

func (a *Arena) Run(wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(a.deps.Config.Server.TPS))
	defer ticker.Stop()

	a.log.Info().Int("tps", a.deps.Config.Server.TPS).Msg("竞技场循环启动")

	for {
		select {
		case <-a.ctx.Done():
			a.closeAllSessions()
			a.log.Info().Msg("竞技场循环停止")
			return

		case req := <-a.joinCh:
			id, err := a.handleJoin(req.session, req.join)
			req.respCh <- joinResult{id: id, err: err}

		case req := <-a.reconnectCh:
			req.respCh <- a.handleReconnect(req.session, req.playerID)

		case req := <-a.leaveCh:
			a.handleLeave(req.session, req.playerID)

		case cmd := <-a.cmdCh:
			a.handleCommand(cmd)

		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Arena) Shutdown() {
	a.cancel()
}

// Join 玩家加入，返回分配的编号
func (a *Arena) Join(session Session, join *JoinEvent) (core.EntityID, error) {
	respCh := make(chan joinResult, 1)

	select {
	case <-a.ctx.Done():
		return core.NoEntity, ErrArenaClosed
	case a.joinCh <- joinRequest{session: session, join: join, respCh: respCh}:
	}

	select {
	case <-a.ctx.Done():
		return core.NoEntity, ErrArenaClosed
	case res := <-respCh:
		return res.id, res.err
	}
}

// Reconnect 用新连接接管断线的玩家
func (a *Arena) Reconnect(session Session, playerID core.EntityID) error {
	respCh := make(chan error, 1)

	select {
	case <-a.ctx.Done():
		return ErrArenaClosed
	case a.reconnectCh <- reconnectRequest{session: session, playerID: playerID, respCh: respCh}:
	}

	select {
	case <-a.ctx.Done():
		return ErrArenaClosed
	case err := <-respCh:
		return err
	}
}

// Leave 连接断开。只有当前连接的离开才会生效。
func (a *Arena) Leave(session Session, playerID core.EntityID) {
	select {
	case <-a.ctx.Done():
	case a.leaveCh <- leaveRequest{session: session, playerID: playerID}:
	}
}

// Dispatch 把玩家消息交给竞技场循环
func (a *Arena) Dispatch(playerID core.EntityID, event *ServerEvent) {
	select {
	case <-a.ctx.Done():
	case a.cmdCh <- command{playerID: playerID, event: event}:
	}
}

// ArenaStats 竞技场统计信息
type ArenaStats struct {
	Players int
	Phase   Phase
	Frame   int32
}

func (a *Arena) Stats() ArenaStats {
	return ArenaStats{
		Players: int(a.playerCount.Load()),
		Phase:   Phase(a.phaseState.Load()),
		Frame:   a.frameState.Load(),
	}
}

// ========== 以下只在竞技场循环中调用 ==========

func (a *Arena) handleJoin(session Session, join *JoinEvent) (core.EntityID, error) {
	cfg := a.deps.Config
	if cfg.Server.MaxPlayers > 0 && len(a.players) >= cfg.Server.MaxPlayers {
		return core.NoEntity, fmt.Errorf("%w (%d/%d)", ErrArenaFull, len(a.players), cfg.Server.MaxPlayers)
	}

	names := cfg.Server.Loadout
	if join != nil && len(join.Weapons) > 0 {
		names = join.Weapons
	}
	if len(names) == 0 || len(names) > MaxLoadout {
		return core.NoEntity, fmt.Errorf("%w: 需要 1 到 %d 把武器", ErrBadLoadout, MaxLoadout)
	}

	team := 0
	name := ""
	if join != nil {
		team = join.Team
		name = join.PlayerName
	}

	id := a.nextID
	entity, err := a.world.Spawn(id, team)
	if err != nil {
		return core.NoEntity, err
	}

	p := &player{
		id:      id,
		name:    name,
		entity:  entity,
		weapons: append([]string(nil), names...),
		link:    &peerLink{session: session, log: a.log.With().Int32("player", int32(id)).Logger()},
	}
	if err := a.arm(p); err != nil {
		_ = a.world.RemoveEntity(id)
		return core.NoEntity, err
	}

	if err := a.sendWelcome(p); err != nil {
		_ = a.world.RemoveEntity(id)
		return core.NoEntity, fmt.Errorf("发送加入响应失败: %w", err)
	}

	a.nextID++
	session.SetPlayerID(int32(id))
	a.players[id] = p
	a.playerCount.Store(int32(len(a.players)))

	a.log.Info().
		Int32("player", int32(id)).
		Str("name", name).
		Int("team", team).
		Strs("weapons", p.weapons).
		Msg("玩家加入")

	if a.phase == PhaseWaiting {
		a.setPhase(PhaseRunning)
	}
	return id, nil
}

// arm 按名字为玩家创建武器，编号即下标
func (a *Arena) arm(p *player) error {
	weapons := make([]*weapon.Weapon, 0, len(p.weapons))
	for i, name := range p.weapons {
		wc, err := a.deps.Config.Weapon(name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadLoadout, err)
		}
		w, err := weapon.New(uint8(i), wc, weapon.Env{
			Clock:    a.clock,
			Side:     weapon.SideDedicated,
			Owner:    p.entity,
			World:    a.world,
			Tester:   a.tester,
			Latency:  a.estimator,
			RTT:      p.link,
			Outbox:   p.link,
			Listener: weapon.ListenerFunc(func(e weapon.Event) { a.onWeaponEvent(p, e) }),
			FireGate: a.fireOpen,
			Tuning:   a.tuning,
			Logger:   a.log,
		})
		if err != nil {
			return fmt.Errorf("创建武器 %s 失败: %w", name, err)
		}
		weapons = append(weapons, w)
	}
	p.loadout = weapon.NewLoadout(weapons...)
	return nil
}

func (a *Arena) sendWelcome(p *player) error {
	resp := &protocol.JoinResponse{
		Success:    true,
		PlayerID:   int32(p.id),
		ArenaID:    a.id,
		ServerTime: a.clock.Now(),
		Weapons:    p.weapons,
	}
	if a.deps.Tokens != nil {
		token, err := a.deps.Tokens.Generate(int32(p.id), a.id)
		if err != nil {
			return fmt.Errorf("生成会话令牌失败: %w", err)
		}
		resp.SessionToken = token
	}
	return sendMessage(p.link.session, resp)
}

func (a *Arena) handleReconnect(session Session, playerID core.EntityID) error {
	p, ok := a.players[playerID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPlayerAbsent, playerID)
	}

	old := p.link.session
	p.link.session = session
	p.detachedAt = 0
	if err := a.sendWelcome(p); err != nil {
		p.link.session = old
		return fmt.Errorf("发送加入响应失败: %w", err)
	}
	session.SetPlayerID(int32(playerID))
	if old != nil {
		old.CloseWithoutNotify()
	}

	a.log.Info().Int32("player", int32(playerID)).Msg("玩家重连")
	return nil
}

// handleLeave 断线后角色保留一段时间，超时由 tick 移除
func (a *Arena) handleLeave(session Session, playerID core.EntityID) {
	p, ok := a.players[playerID]
	if !ok || p.link.session != session {
		return
	}
	p.link.session = nil
	p.detachedAt = a.clock.Now()
	p.input = core.Input{Yaw: p.input.Yaw, Pitch: p.input.Pitch}
	for m := weapon.Mode(0); m < weapon.NumModes; m++ {
		p.loadout.StopFire(m)
	}
	a.log.Info().Int32("player", int32(playerID)).Msg("玩家断线，等待重连")
}

func (a *Arena) removePlayer(p *player) {
	delete(a.players, p.id)
	_ = a.world.RemoveEntity(p.id)
	a.playerCount.Store(int32(len(a.players)))

	a.log.Info().Int32("player", int32(p.id)).Int("remaining", len(a.players)).Msg("玩家离开")
	a.broadcast(&protocol.PlayerLeave{PlayerID: int32(p.id)})

	if len(a.players) == 0 {
		a.setPhase(PhaseWaiting)
	}
}

func (a *Arena) handleCommand(cmd command) {
	p, ok := a.players[cmd.playerID]
	if !ok || !p.online() || cmd.event == nil {
		return
	}
	ev := cmd.event

	switch ev.Kind {
	case EventInput:
		in := ev.Input
		if in.Seq != 0 && in.Seq <= p.lastSeq {
			return
		}
		p.lastSeq = in.Seq
		p.input = in.Input
		// 切枪当场生效，紧随其后的开火请求要落在新武器上
		if in.Switch >= 0 {
			p.loadout.Switch(in.Switch)
		}

	case EventFire:
		w := p.loadout.Weapon(ev.Fire.Weapon)
		if w == nil {
			a.log.Debug().Int32("player", int32(p.id)).Uint8("weapon", ev.Fire.Weapon).Msg("未知武器")
			return
		}
		// 校验失败已经通过事件记录
		_ = w.HandleFireRequest(*ev.Fire)

	case EventStopFire:
		if w := p.loadout.Weapon(ev.Stop.Weapon); w != nil {
			w.HandleStopRequest(*ev.Stop)
		}

	case EventBeamHit:
		w := p.loadout.Weapon(ev.Beam.Weapon)
		if w == nil {
			return
		}
		if err := w.HandleBeamHit(*ev.Beam); err != nil {
			a.deps.Metrics.BeamRejected(a.ctx, err)
			a.log.Debug().Err(err).Int32("player", int32(p.id)).Int32("target", int32(ev.Beam.Target)).Msg("拒绝光束伤害")
		}

	case EventStopBeam:
		if w := p.loadout.Weapon(ev.StopBeam.Weapon); w != nil {
			w.HandleStopBeam()
		}
	}
}

func (a *Arena) fireOpen() bool {
	return a.phase == PhaseRunning
}

func (a *Arena) setPhase(phase Phase) {
	if a.phase == phase {
		return
	}
	a.log.Info().Stringer("from", a.phase).Stringer("to", phase).Msg("比赛阶段变化")
	a.phase = phase
	a.phaseState.Store(int32(phase))
}

func (a *Arena) tick() {
	a.clock.Advance(a.dt)
	a.frame++
	a.frameState.Store(a.frame)
	now := a.clock.Now()

	if a.phase == PhaseEnded && now >= a.phaseUntil {
		a.resetMatch()
	}

	grace := reconnectGrace.Seconds()
	for _, e := range a.entities() {
		p := a.players[e.ID]
		if !p.online() && now-p.detachedAt >= grace {
			a.removePlayer(p)
		}
	}

	for _, e := range a.entities() {
		p := a.players[e.ID]
		core.ApplyInput(a.world, p.id, p.input)
	}

	a.world.Update(a.dt)

	for _, e := range a.entities() {
		p := a.players[e.ID]
		p.loadout.Step(a.dt)
		if e.Dead && now >= p.respawnAt {
			e.Respawn(a.world.Map.SpawnPoint(int(p.id) + int(a.frame)))
		}
	}

	a.broadcastSnapshot()
}

// entities 按加入顺序遍历，循环中可以安全移除
func (a *Arena) entities() []*core.Entity {
	out := make([]*core.Entity, 0, len(a.world.Entities))
	for _, e := range a.world.Entities {
		if _, ok := a.players[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (a *Arena) onWeaponEvent(p *player, e weapon.Event) {
	switch e.Kind {
	case weapon.EventShotResolved:
		a.resolveShot(p, e)
		return
	case weapon.EventRequest:
		if e.Request.Err != nil && a.deps.Sink != nil {
			a.deps.Sink.RecordReject(stats.RejectFromEvent(a.id, p.weaponName(e.Weapon), e))
		}
	case weapon.EventStateChanged:
		if e.State.Reason == weapon.ReasonWatchdog {
			a.log.Info().
				Int32("player", int32(p.id)).
				Str("weapon", p.weaponName(e.Weapon)).
				Msg("长时间没有开火请求，强制停火")
		}
	}
	a.deps.Metrics.Observe(a.ctx, e)
}

// resolveShot 施加伤害、广播并记录
func (a *Arena) resolveShot(p *player, e weapon.Event) {
	shot := *e.Shot
	if shot.Projectile {
		shot = a.resolveProjectile(p, e.Weapon, shot)
	}
	e.Shot = &shot

	if shot.Hit != core.NoEntity && shot.Damage > 0 {
		a.applyDamage(p, shot.Hit, shot.Damage)
	}

	a.deps.Metrics.Observe(a.ctx, e)
	a.broadcast(protocol.ShotToProto(p.id, e.Weapon, &shot))
	if a.deps.Sink != nil {
		a.deps.Sink.RecordShot(stats.ShotFromEvent(a.id, p.weaponName(e.Weapon), a.clock.Now(), e))
	}
}

// resolveProjectile 抛射物不做飞行模拟，按发射瞬间的直线不回溯结算
func (a *Arena) resolveProjectile(p *player, weaponID uint8, shot weapon.ShotResolved) weapon.ShotResolved {
	w := p.loadout.Weapon(weaponID)
	if w == nil || !shot.Mode.Valid() {
		shot.Damage = 0
		return shot
	}
	mc := w.Config().Modes[shot.Mode]
	res := a.tester.Trace(rewind.Request{
		Shooter: p.entity,
		Start:   p.entity.EyeLocation(),
		End:     shot.Location,
		Radius:  mc.TraceRadius,
	})
	shot.Location = res.Location
	shot.Hit = res.HitEntity()
	if shot.Hit == core.NoEntity {
		shot.Damage = 0
	}
	return shot
}

func (a *Arena) applyDamage(shooter *player, targetID core.EntityID, damage int) {
	target, ok := a.players[targetID]
	if !ok || !target.entity.ApplyDamage(damage) {
		return
	}

	target.deaths++
	target.respawnAt = a.clock.Now() + a.deps.Config.Server.RespawnDelay.Seconds()
	if shooter.id != target.id {
		shooter.frags++
	}
	a.log.Info().
		Int32("killer", int32(shooter.id)).
		Int32("victim", int32(target.id)).
		Int("frags", shooter.frags).
		Msg("击杀")

	if limit := a.deps.Config.Server.FragLimit; limit > 0 && shooter.frags >= limit && a.phase == PhaseRunning {
		a.phaseUntil = a.clock.Now() + a.deps.Config.Server.ResetDelay.Seconds()
		a.log.Info().Int32("winner", int32(shooter.id)).Msg("达到击杀上限，比赛结束")
		a.setPhase(PhaseEnded)
	}
}

// resetMatch 清空比分，所有人回到出生点
func (a *Arena) resetMatch() {
	for i, e := range a.entities() {
		p := a.players[e.ID]
		p.frags = 0
		p.deaths = 0
		e.Respawn(a.world.Map.SpawnPoint(i))
	}
	if len(a.players) > 0 {
		a.setPhase(PhaseRunning)
	} else {
		a.setPhase(PhaseWaiting)
	}
}

func (a *Arena) broadcastSnapshot() {
	a.broadcast(&protocol.Snapshot{
		Frame:      a.frame,
		ServerTime: a.clock.Now(),
		Phase:      int32(a.phase), // 与 protocol.Phase* 编码一致
		Entities:   protocol.CoreEntitiesToProto(a.world.Entities),
	})
}

func (a *Arena) broadcast(msg protocol.Message) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		a.log.Error().Err(err).Stringer("type", msg.MessageType()).Msg("序列化失败")
		return
	}
	for _, p := range a.players {
		if !p.online() {
			continue
		}
		if err := p.link.session.Send(data); err != nil {
			a.log.Debug().Err(err).Int32("player", int32(p.id)).Msg("发送失败")
		}
	}
}

func (a *Arena) closeAllSessions() {
	for _, p := range a.players {
		if p.online() {
			p.link.session.CloseWithoutNotify()
		}
	}
}
