package core

import (
	"arenanet/pkg/geom"
	"arenanet/pkg/history"
)

// EntityID 实体编号，网络上以 int32 传输
type EntityID int32

// NoEntity 空引用
const NoEntity EntityID = 0

// Capsule 竖直胶囊：中心线段长度 2*(HalfHeight-Radius)，外扩 Radius
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

// Entity 可被射击的角色（纯逻辑，不包含渲染）
type Entity struct {
	ID       EntityID
	Team     int
	Position geom.Vec3 // 胶囊中心
	Velocity geom.Vec3
	Rotation geom.Rotator
	Capsule  Capsule

	PrevVelocity geom.Vec3 // 上一帧速度，视觉外推用

	EyeHeight   float64
	HeadRadius  float64
	HeadOffset  float64
	HeadScale   float64
	Sliding     bool
	SlideHeight float64

	Damageable bool
	Dead       bool
	Health     int

	History *history.Track
}

// NewEntity 创建实体，track 为空时不记录历史
func NewEntity(id EntityID, team int, pos geom.Vec3, track *history.Track) *Entity {
	e := &Entity{
		ID:          id,
		Team:        team,
		Position:    pos,
		Capsule:     Capsule{Radius: DefaultCapsuleRadius, HalfHeight: DefaultCapsuleHalfHeight},
		EyeHeight:   DefaultEyeHeight,
		HeadRadius:  DefaultHeadRadius,
		HeadOffset:  DefaultHeadOffset,
		HeadScale:   1.0,
		SlideHeight: DefaultSlideHeight,
		Damageable:  true,
		Health:      DefaultHealth,
		History:     track,
	}
	if track != nil {
		track.SetLive(pos, geom.Rotator{})
	}
	return e
}

// EyeLocation 开火起点
func (e *Entity) EyeLocation() geom.Vec3 {
	return e.Position.Add(geom.V(0, 0, e.EyeHeight))
}

// AimDirection 当前朝向
func (e *Entity) AimDirection() geom.Vec3 {
	return e.Rotation.Vector()
}

// RewindLocation predictionTime 秒前的胶囊中心，没有历史时返回当前位置
func (e *Entity) RewindLocation(predictionTime float64) geom.Vec3 {
	if predictionTime <= 0 || e.History == nil || e.History.Len() == 0 {
		return e.Position
	}
	return e.History.RewindLocation(predictionTime)
}

// HeadLocation predictionTime 秒前的头部中心
func (e *Entity) HeadLocation(predictionTime float64) geom.Vec3 {
	return e.RewindLocation(predictionTime).Add(geom.V(0, 0, e.HeadOffset))
}

// IsMoving 速度是否显著
func (e *Entity) IsMoving() bool {
	return !e.Velocity.IsNearlyZero(1)
}

// Alive 是否存活
func (e *Entity) Alive() bool {
	return !e.Dead
}

// Move 按速度移动 dt 秒，撞墙时逐轴退回。返回是否发生位移。
func (e *Entity) Move(dt float64, m *GameMap) bool {
	if e.Dead {
		return false
	}
	e.PrevVelocity = e.Velocity
	if e.Velocity.IsNearlyZero(1e-6) {
		e.record(false)
		return false
	}

	moved := false
	next := e.Position
	// 单轴移动，贴墙时保留另一轴的滑动
	if tryX := geom.V(next.X+e.Velocity.X*dt, next.Y, next.Z); e.Velocity.X != 0 && (m == nil || !m.Blocked(tryX, e.Capsule.Radius)) {
		next = tryX
		moved = true
	}
	if tryY := geom.V(next.X, next.Y+e.Velocity.Y*dt, next.Z); e.Velocity.Y != 0 && (m == nil || !m.Blocked(tryY, e.Capsule.Radius)) {
		next = tryY
		moved = true
	}
	if !moved {
		e.Velocity = geom.Vec3{}
	}
	e.Position = next
	e.record(false)
	return moved
}

// Teleport 瞬移，历史中标记，回溯时不跨越此点插值
func (e *Entity) Teleport(pos geom.Vec3) {
	e.Position = pos
	e.Velocity = geom.Vec3{}
	e.PrevVelocity = geom.Vec3{}
	e.record(true)
}

// SavePose 强制写一次历史，开火时调用
func (e *Entity) SavePose() {
	if e.History != nil {
		e.History.Record(e.Position, e.Rotation, false, true)
	}
}

func (e *Entity) record(teleported bool) {
	if e.History == nil {
		return
	}
	e.History.Record(e.Position, e.Rotation, teleported, false)
}

// ApplyDamage 扣血，返回是否致死
func (e *Entity) ApplyDamage(amount int) bool {
	if e.Dead || !e.Damageable || amount <= 0 {
		return false
	}
	e.Health -= amount
	if e.Health <= 0 {
		e.Health = 0
		e.Dead = true
		return true
	}
	return false
}

// Respawn 在指定位置复活并清空历史
func (e *Entity) Respawn(pos geom.Vec3) {
	e.Dead = false
	e.Health = DefaultHealth
	e.Sliding = false
	if e.History != nil {
		e.History.Clear()
	}
	e.Teleport(pos)
}
