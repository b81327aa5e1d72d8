package protocol

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// 手写的 protobuf 线格式，字段编号固定，零值不编码

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendUint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendUint(b, num, 1)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

type wireAppender interface {
	appendWire(b []byte) []byte
}

func appendNested(b []byte, num protowire.Number, m wireAppender) []byte {
	inner := m.appendWire(nil)
	if len(inner) == 0 {
		return b
	}
	return appendBytes(b, num, inner)
}

type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	buf []byte
}

func (f field) int32() int32    { return int32(f.u) }
func (f field) uint32() uint32  { return uint32(f.u) }
func (f field) bool() bool      { return f.u != 0 }
func (f field) float() float32  { return math.Float32frombits(uint32(f.u)) }
func (f field) double() float64 { return math.Float64frombits(f.u) }
func (f field) str() string     { return string(f.buf) }

// eachField 逐个读取字段，未知字段由回调忽略即可
func eachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.buf, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (v Vec3) appendWire(b []byte) []byte {
	b = appendFloat(b, 1, v.X)
	b = appendFloat(b, 2, v.Y)
	return appendFloat(b, 3, v.Z)
}

func (v *Vec3) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			v.X = f.float()
		case 2:
			v.Y = f.float()
		case 3:
			v.Z = f.float()
		}
		return nil
	})
}

func (r Rotator) appendWire(b []byte) []byte {
	b = appendFloat(b, 1, r.Pitch)
	b = appendFloat(b, 2, r.Yaw)
	return appendFloat(b, 3, r.Roll)
}

func (r *Rotator) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			r.Pitch = f.float()
		case 2:
			r.Yaw = f.float()
		case 3:
			r.Roll = f.float()
		}
		return nil
	})
}

func (m *JoinRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.PlayerName)
	b = appendInt32(b, 2, m.Team)
	b = appendString(b, 3, m.ArenaID)
	for _, w := range m.Weapons {
		b = appendBytes(b, 4, []byte(w))
	}
	return b
}

func (m *JoinRequest) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.PlayerName = f.str()
		case 2:
			m.Team = f.int32()
		case 3:
			m.ArenaID = f.str()
		case 4:
			m.Weapons = append(m.Weapons, f.str())
		}
		return nil
	})
}

func (m *JoinResponse) appendWire(b []byte) []byte {
	b = appendBool(b, 1, m.Success)
	b = appendInt32(b, 2, m.PlayerID)
	b = appendString(b, 3, m.ArenaID)
	b = appendString(b, 4, m.SessionToken)
	b = appendString(b, 5, m.Error)
	b = appendDouble(b, 6, m.ServerTime)
	for _, w := range m.Weapons {
		b = appendBytes(b, 7, []byte(w))
	}
	return b
}

func (m *JoinResponse) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Success = f.bool()
		case 2:
			m.PlayerID = f.int32()
		case 3:
			m.ArenaID = f.str()
		case 4:
			m.SessionToken = f.str()
		case 5:
			m.Error = f.str()
		case 6:
			m.ServerTime = f.double()
		case 7:
			m.Weapons = append(m.Weapons, f.str())
		}
		return nil
	})
}

func (m *ReconnectRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.SessionToken)
}

func (m *ReconnectRequest) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			m.SessionToken = f.str()
		}
		return nil
	})
}

func (m *Ping) appendWire(b []byte) []byte {
	return appendUint(b, 1, uint64(m.ClientTime))
}

func (m *Ping) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			m.ClientTime = int64(f.u)
		}
		return nil
	})
}

func (m *Pong) appendWire(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.ClientTime))
	return appendUint(b, 2, uint64(m.ServerTime))
}

func (m *Pong) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.ClientTime = int64(f.u)
		case 2:
			m.ServerTime = int64(f.u)
		}
		return nil
	})
}

func (m *PlayerInput) appendWire(b []byte) []byte {
	b = appendInt32(b, 1, m.Seq)
	b = appendBool(b, 2, m.Forward)
	b = appendBool(b, 3, m.Back)
	b = appendBool(b, 4, m.Left)
	b = appendBool(b, 5, m.Right)
	b = appendBool(b, 6, m.Slide)
	b = appendFloat(b, 7, m.Yaw)
	b = appendFloat(b, 8, m.Pitch)
	b = appendBool(b, 9, m.Switch)
	return appendInt32(b, 10, m.Slot)
}

func (m *PlayerInput) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Seq = f.int32()
		case 2:
			m.Forward = f.bool()
		case 3:
			m.Back = f.bool()
		case 4:
			m.Left = f.bool()
		case 5:
			m.Right = f.bool()
		case 6:
			m.Slide = f.bool()
		case 7:
			m.Yaw = f.float()
		case 8:
			m.Pitch = f.float()
		case 9:
			m.Switch = f.bool()
		case 10:
			m.Slot = f.int32()
		}
		return nil
	})
}

func (m *FireRequest) appendWire(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Weapon))
	b = appendUint(b, 2, uint64(m.Mode))
	b = appendInt32(b, 3, m.EventIndex)
	b = appendFloat(b, 4, m.ClientTime)
	b = appendBool(b, 5, m.Predicted)
	b = appendNested(b, 6, m.Aim)
	b = appendInt32(b, 7, m.Claimed)
	return appendUint(b, 8, uint64(m.ZOffset))
}

func (m *FireRequest) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Weapon = f.uint32()
		case 2:
			m.Mode = f.uint32()
		case 3:
			m.EventIndex = f.int32()
		case 4:
			m.ClientTime = f.float()
		case 5:
			m.Predicted = f.bool()
		case 6:
			return m.Aim.readWire(f.buf)
		case 7:
			m.Claimed = f.int32()
		case 8:
			m.ZOffset = f.uint32()
		}
		return nil
	})
}

func (m *FireAck) appendWire(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Weapon))
	b = appendUint(b, 2, uint64(m.Mode))
	return appendInt32(b, 3, m.AuthoritativeIndex)
}

func (m *FireAck) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Weapon = f.uint32()
		case 2:
			m.Mode = f.uint32()
		case 3:
			m.AuthoritativeIndex = f.int32()
		}
		return nil
	})
}

func (m *StopRequest) appendWire(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Weapon))
	b = appendUint(b, 2, uint64(m.Mode))
	b = appendInt32(b, 3, m.EventIndex)
	b = appendFloat(b, 4, m.ClientTime)
	return appendUint(b, 5, uint64(m.Pattern))
}

func (m *StopRequest) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Weapon = f.uint32()
		case 2:
			m.Mode = f.uint32()
		case 3:
			m.EventIndex = f.int32()
		case 4:
			m.ClientTime = f.float()
		case 5:
			m.Pattern = f.uint32()
		}
		return nil
	})
}

func (m *BeamHit) appendWire(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Weapon))
	b = appendInt32(b, 2, m.Target)
	b = appendNested(b, 3, m.Impact)
	return appendInt32(b, 4, m.Damage)
}

func (m *BeamHit) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Weapon = f.uint32()
		case 2:
			m.Target = f.int32()
		case 3:
			return m.Impact.readWire(f.buf)
		case 4:
			m.Damage = f.int32()
		}
		return nil
	})
}

func (m *StopBeam) appendWire(b []byte) []byte {
	return appendUint(b, 1, uint64(m.Weapon))
}

func (m *StopBeam) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			m.Weapon = f.uint32()
		}
		return nil
	})
}

func (m *ShotEvent) appendWire(b []byte) []byte {
	b = appendInt32(b, 1, m.Shooter)
	b = appendUint(b, 2, uint64(m.Weapon))
	b = appendUint(b, 3, uint64(m.Mode))
	b = appendInt32(b, 4, m.EventIndex)
	b = appendInt32(b, 5, m.Hit)
	b = appendNested(b, 6, m.Location)
	b = appendInt32(b, 7, m.Damage)
	b = appendBool(b, 8, m.Headshot)
	b = appendBool(b, 9, m.Projectile)
	return appendBool(b, 10, m.Beam)
}

func (m *ShotEvent) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Shooter = f.int32()
		case 2:
			m.Weapon = f.uint32()
		case 3:
			m.Mode = f.uint32()
		case 4:
			m.EventIndex = f.int32()
		case 5:
			m.Hit = f.int32()
		case 6:
			return m.Location.readWire(f.buf)
		case 7:
			m.Damage = f.int32()
		case 8:
			m.Headshot = f.bool()
		case 9:
			m.Projectile = f.bool()
		case 10:
			m.Beam = f.bool()
		}
		return nil
	})
}

func (e EntityState) appendWire(b []byte) []byte {
	b = appendInt32(b, 1, e.ID)
	b = appendInt32(b, 2, e.Team)
	b = appendNested(b, 3, e.Position)
	b = appendNested(b, 4, e.Velocity)
	b = appendFloat(b, 5, e.Yaw)
	b = appendFloat(b, 6, e.Pitch)
	b = appendInt32(b, 7, e.Health)
	b = appendBool(b, 8, e.Dead)
	return appendBool(b, 9, e.Sliding)
}

func (e *EntityState) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			e.ID = f.int32()
		case 2:
			e.Team = f.int32()
		case 3:
			return e.Position.readWire(f.buf)
		case 4:
			return e.Velocity.readWire(f.buf)
		case 5:
			e.Yaw = f.float()
		case 6:
			e.Pitch = f.float()
		case 7:
			e.Health = f.int32()
		case 8:
			e.Dead = f.bool()
		case 9:
			e.Sliding = f.bool()
		}
		return nil
	})
}

func (m *Snapshot) appendWire(b []byte) []byte {
	b = appendInt32(b, 1, m.Frame)
	b = appendDouble(b, 2, m.ServerTime)
	b = appendInt32(b, 3, m.Phase)
	for _, e := range m.Entities {
		// 实体即使全为零值也要占一个位置
		b = appendBytes(b, 4, e.appendWire(nil))
	}
	return b
}

func (m *Snapshot) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			m.Frame = f.int32()
		case 2:
			m.ServerTime = f.double()
		case 3:
			m.Phase = f.int32()
		case 4:
			var e EntityState
			if err := e.readWire(f.buf); err != nil {
				return err
			}
			m.Entities = append(m.Entities, e)
		}
		return nil
	})
}

func (m *PlayerLeave) appendWire(b []byte) []byte {
	return appendInt32(b, 1, m.PlayerID)
}

func (m *PlayerLeave) readWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			m.PlayerID = f.int32()
		}
		return nil
	})
}
