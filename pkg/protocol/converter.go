package protocol

import (
	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/weapon"
)

// ========== Core -> Proto ==========

func ToVec3(v geom.Vec3) Vec3 {
	return Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func ToRotator(r geom.Rotator) Rotator {
	return Rotator{Pitch: float32(r.Pitch), Yaw: float32(r.Yaw), Roll: float32(r.Roll)}
}

// CoreEntityToProto 快照中的一个实体
func CoreEntityToProto(e *core.Entity) EntityState {
	if e == nil {
		return EntityState{}
	}
	return EntityState{
		ID:       int32(e.ID),
		Team:     int32(e.Team),
		Position: ToVec3(e.Position),
		Velocity: ToVec3(e.Velocity),
		Yaw:      float32(e.Rotation.Yaw),
		Pitch:    float32(e.Rotation.Pitch),
		Health:   int32(e.Health),
		Dead:     e.Dead,
		Sliding:  e.Sliding,
	}
}

// CoreEntitiesToProto 转换实体列表
func CoreEntitiesToProto(entities []*core.Entity) []EntityState {
	out := make([]EntityState, 0, len(entities))
	for _, e := range entities {
		out = append(out, CoreEntityToProto(e))
	}
	return out
}

func FireRequestToProto(r weapon.FireRequest) *FireRequest {
	return &FireRequest{
		Weapon:     uint32(r.Weapon),
		Mode:       uint32(r.Mode),
		EventIndex: r.EventIndex,
		ClientTime: float32(r.ClientTime),
		Predicted:  r.Predicted,
		Aim:        ToRotator(r.Aim),
		Claimed:    int32(r.Claimed),
		ZOffset:    uint32(r.ZOffset),
	}
}

func FireAckToProto(a weapon.FireAck) *FireAck {
	return &FireAck{
		Weapon:             uint32(a.Weapon),
		Mode:               uint32(a.Mode),
		AuthoritativeIndex: a.AuthoritativeIndex,
	}
}

func StopRequestToProto(r weapon.StopRequest) *StopRequest {
	return &StopRequest{
		Weapon:     uint32(r.Weapon),
		Mode:       uint32(r.Mode),
		EventIndex: r.EventIndex,
		ClientTime: float32(r.ClientTime),
		Pattern:    uint32(r.Pattern),
	}
}

func BeamHitToProto(r weapon.BeamHitReport) *BeamHit {
	return &BeamHit{
		Weapon: uint32(r.Weapon),
		Target: int32(r.Target),
		Impact: ToVec3(r.Impact),
		Damage: r.Damage,
	}
}

func StopBeamToProto(s weapon.StopBeam) *StopBeam {
	return &StopBeam{Weapon: uint32(s.Weapon)}
}

// ShotToProto 广播用的结算结果
func ShotToProto(shooter core.EntityID, weaponID uint8, s *weapon.ShotResolved) *ShotEvent {
	return &ShotEvent{
		Shooter:    int32(shooter),
		Weapon:     uint32(weaponID),
		Mode:       uint32(s.Mode),
		EventIndex: s.EventIndex,
		Hit:        int32(s.Hit),
		Location:   ToVec3(s.Location),
		Damage:     int32(s.Damage),
		Headshot:   s.Headshot,
		Projectile: s.Projectile,
		Beam:       s.Beam,
	}
}

// ========== Proto -> Core ==========

func (v Vec3) Core() geom.Vec3 {
	return geom.V(float64(v.X), float64(v.Y), float64(v.Z))
}

func (r Rotator) Core() geom.Rotator {
	return geom.Rotator{Pitch: float64(r.Pitch), Yaw: float64(r.Yaw), Roll: float64(r.Roll)}
}

// 超出 uint8 的模式与编号映射为无效值，由武器校验拒绝
func toMode(v uint32) weapon.Mode {
	if v > 0xff {
		return weapon.NoMode
	}
	return weapon.Mode(v)
}

func toByte(v uint32) uint8 {
	if v > 0xff {
		return 0xff
	}
	return uint8(v)
}

func (m *FireRequest) Core() weapon.FireRequest {
	return weapon.FireRequest{
		Weapon:     toByte(m.Weapon),
		Mode:       toMode(m.Mode),
		EventIndex: m.EventIndex,
		ClientTime: float64(m.ClientTime),
		Predicted:  m.Predicted,
		Aim:        m.Aim.Core(),
		Claimed:    core.EntityID(m.Claimed),
		ZOffset:    toByte(m.ZOffset),
	}
}

func (m *FireAck) Core() weapon.FireAck {
	return weapon.FireAck{
		Weapon:             toByte(m.Weapon),
		Mode:               toMode(m.Mode),
		AuthoritativeIndex: m.AuthoritativeIndex,
	}
}

func (m *StopRequest) Core() weapon.StopRequest {
	return weapon.StopRequest{
		Weapon:     toByte(m.Weapon),
		Mode:       toMode(m.Mode),
		EventIndex: m.EventIndex,
		ClientTime: float64(m.ClientTime),
		Pattern:    toByte(m.Pattern),
	}
}

func (m *BeamHit) Core() weapon.BeamHitReport {
	return weapon.BeamHitReport{
		Weapon: toByte(m.Weapon),
		Target: core.EntityID(m.Target),
		Impact: m.Impact.Core(),
		Damage: m.Damage,
	}
}

func (m *PlayerInput) Core() core.Input {
	return core.Input{
		Forward: m.Forward,
		Back:    m.Back,
		Left:    m.Left,
		Right:   m.Right,
		Slide:   m.Slide,
		Yaw:     float64(m.Yaw),
		Pitch:   float64(m.Pitch),
	}
}
