package stats

import (
	"errors"
	"time"

	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/weapon"
)

// ShotRecord 一次结算的射击（或一批光束伤害）
type ShotRecord struct {
	Arena        string
	Time         time.Time
	ServerTime   float64
	Shooter      int32
	Weapon       string
	Mode         uint8
	EventIndex   int32
	Hit          int32
	Damage       int
	Headshot     bool
	Beam         bool
	Projectile   bool
	Location     geom.Vec3
	RewindMs     float64
	Padding      float64
	SearchMs     float64
	InvalidClaim bool
}

// RejectRecord 一次被拒绝的开火请求
type RejectRecord struct {
	Arena      string
	Time       time.Time
	Shooter    int32
	Weapon     string
	Mode       uint8
	EventIndex int32
	Reason     string
	ClientTime float64
	ServerTime float64
}

// Sink 统计的落地方式。实现不能阻塞模拟循环。
type Sink interface {
	RecordShot(ShotRecord)
	RecordReject(RejectRecord)
	Close() error
}

// Fanout 同时写多个 Sink，nil 被忽略
type Fanout []Sink

func NewFanout(sinks ...Sink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f Fanout) RecordShot(r ShotRecord) {
	for _, s := range f {
		s.RecordShot(r)
	}
}

func (f Fanout) RecordReject(r RejectRecord) {
	for _, s := range f {
		s.RecordReject(r)
	}
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// ShotFromEvent 把结算事件转换为记录，e.Shot 不能为空
func ShotFromEvent(arena, weaponName string, serverTime float64, e weapon.Event) ShotRecord {
	s := e.Shot
	return ShotRecord{
		Arena:        arena,
		Time:         time.Now(),
		ServerTime:   serverTime,
		Shooter:      int32(e.Owner),
		Weapon:       weaponName,
		Mode:         uint8(s.Mode),
		EventIndex:   s.EventIndex,
		Hit:          int32(s.Hit),
		Damage:       s.Damage,
		Headshot:     s.Headshot,
		Beam:         s.Beam,
		Projectile:   s.Projectile,
		Location:     s.Location,
		RewindMs:     s.RewindSeconds * 1000,
		Padding:      s.Padding,
		SearchMs:     s.SearchOffset * 1000,
		InvalidClaim: s.InvalidClaim,
	}
}

// RejectFromEvent e.Request.Err 不能为空
func RejectFromEvent(arena, weaponName string, e weapon.Event) RejectRecord {
	r := e.Request
	return RejectRecord{
		Arena:      arena,
		Time:       time.Now(),
		Shooter:    int32(e.Owner),
		Weapon:     weaponName,
		Mode:       uint8(r.Mode),
		EventIndex: r.EventIndex,
		Reason:     r.Err.Error(),
		ClientTime: r.ClientTime,
		ServerTime: r.ServerTime,
	}
}

// Missed 是否未命中任何实体
func (r ShotRecord) Missed() bool {
	return core.EntityID(r.Hit) == core.NoEntity
}
