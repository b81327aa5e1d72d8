package weapon

import (
	"arenanet/pkg/core"
	"arenanet/pkg/geom"
)

// FireRequest 客户端 -> 权威端：一次开火事件
type FireRequest struct {
	Weapon     uint8
	Mode       Mode
	EventIndex int32
	ClientTime float64
	Predicted  bool
	Aim        geom.Rotator
	Claimed    core.EntityID
	ZOffset    uint8 // 0 表示默认眼高
}

// FireAck 权威端 -> 客户端：当前权威序号
type FireAck struct {
	Weapon             uint8
	Mode               Mode
	AuthoritativeIndex int32
}

// StopRequest 客户端 -> 权威端：松开开火
type StopRequest struct {
	Weapon     uint8
	Mode       Mode
	EventIndex int32
	ClientTime float64
	Pattern    uint8 // 蓄力武器松开时选定的弹型
}

// BeamHitReport 客户端 -> 权威端：累计的光束伤害
type BeamHitReport struct {
	Weapon uint8
	Target core.EntityID
	Impact geom.Vec3
	Damage int32
}

// StopBeam 客户端 -> 权威端：光束结束
type StopBeam struct {
	Weapon uint8
}

// Outbox 武器发出的网络消息，由连接层实现
type Outbox interface {
	SendFireRequest(FireRequest)
	SendStopRequest(StopRequest)
	SendFireAck(FireAck)
	SendBeamHit(BeamHitReport)
	SendStopBeam(StopBeam)
}

type nopOutbox struct{}

func (nopOutbox) SendFireRequest(FireRequest) {}
func (nopOutbox) SendStopRequest(StopRequest) {}
func (nopOutbox) SendFireAck(FireAck)         {}
func (nopOutbox) SendBeamHit(BeamHitReport)   {}
func (nopOutbox) SendStopBeam(StopBeam)       {}

type EventKind int

const (
	EventUnknown EventKind = iota
	EventShotFired
	EventShotResolved
	EventStateChanged
	EventRequest
	EventDesync
	EventPutDown
	EventPatternCycled
)

// ShotFired 本地预测的一发，不带伤害
type ShotFired struct {
	Mode       Mode
	EventIndex int32
	Start      geom.Vec3
	Direction  geom.Vec3
	Claimed    core.EntityID
}

// ShotResolved 权威端结算的一发（或一批光束伤害）
type ShotResolved struct {
	Mode          Mode
	EventIndex    int32
	Hit           core.EntityID
	Location      geom.Vec3
	Damage        int
	Headshot      bool
	Projectile    bool
	Beam          bool
	Pattern       int
	Predicted     bool
	RewindSeconds float64
	Padding       float64
	SearchOffset  float64
	InvalidClaim  bool
}

// StateChange 开火状态切换
type StateChange struct {
	From   StateKind
	To     StateKind
	Mode   Mode
	Reason StopReason
}

// RequestOutcome 一次远端开火请求的处理结果，Err 为空表示接受
type RequestOutcome struct {
	Mode       Mode
	EventIndex int32
	ClientTime float64
	ServerTime float64
	Err        error
}

// Desync 客户端序号被权威确认纠正
type Desync struct {
	Mode   Mode
	Local  int32
	Server int32
}

type Event struct {
	Kind    EventKind
	Weapon  uint8
	Owner   core.EntityID
	Fired   *ShotFired
	Shot    *ShotResolved
	State   *StateChange
	Request *RequestOutcome
	Desync  *Desync
	Pattern int
}

// Listener 接收武器事件。伤害由监听者施加，武器本身不修改生命值。
type Listener interface {
	HandleWeaponEvent(Event)
}

// ListenerFunc 函数适配
type ListenerFunc func(Event)

func (f ListenerFunc) HandleWeaponEvent(e Event) {
	f(e)
}
