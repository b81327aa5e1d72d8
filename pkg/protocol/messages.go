package protocol

// MessageType 数据包类型
type MessageType uint32

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeJoinRequest
	MessageTypeJoinResponse
	MessageTypeReconnectRequest
	MessageTypePing
	MessageTypePong
	MessageTypePlayerInput
	MessageTypeFireRequest
	MessageTypeFireAck
	MessageTypeStopRequest
	MessageTypeBeamHit
	MessageTypeStopBeam
	MessageTypeShotEvent
	MessageTypeSnapshot
	MessageTypePlayerLeave
)

var messageTypeNames = map[MessageType]string{
	MessageTypeJoinRequest:      "join_request",
	MessageTypeJoinResponse:     "join_response",
	MessageTypeReconnectRequest: "reconnect_request",
	MessageTypePing:             "ping",
	MessageTypePong:             "pong",
	MessageTypePlayerInput:      "player_input",
	MessageTypeFireRequest:      "fire_request",
	MessageTypeFireAck:          "fire_ack",
	MessageTypeStopRequest:      "stop_request",
	MessageTypeBeamHit:          "beam_hit",
	MessageTypeStopBeam:         "stop_beam",
	MessageTypeShotEvent:        "shot_event",
	MessageTypeSnapshot:         "snapshot",
	MessageTypePlayerLeave:      "player_leave",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Packet 外层信封：类型 + 负载
type Packet struct {
	Type    MessageType
	Payload []byte
}

// Message 可以放进信封的消息
type Message interface {
	MessageType() MessageType
	appendWire(b []byte) []byte
	readWire(b []byte) error
}

type Vec3 struct {
	X, Y, Z float32
}

// Rotator 角度制
type Rotator struct {
	Pitch, Yaw, Roll float32
}

type JoinRequest struct {
	PlayerName string
	Team       int32
	ArenaID    string // 空字符串表示默认竞技场
	Weapons    []string
}

type JoinResponse struct {
	Success      bool
	PlayerID     int32
	ArenaID      string
	SessionToken string
	Error        string
	ServerTime   float64
	Weapons      []string // 下标即武器编号
}

type ReconnectRequest struct {
	SessionToken string
}

type Ping struct {
	ClientTime int64
}

type Pong struct {
	ClientTime int64
	ServerTime int64
}

// PlayerInput 移动、朝向与切枪。开火走单独的 FireRequest。
type PlayerInput struct {
	Seq     int32
	Forward bool
	Back    bool
	Left    bool
	Right   bool
	Slide   bool
	Yaw     float32
	Pitch   float32
	Switch  bool // 为 true 时切到 Slot
	Slot    int32
}

type FireRequest struct {
	Weapon     uint32
	Mode       uint32
	EventIndex int32
	ClientTime float32
	Predicted  bool
	Aim        Rotator
	Claimed    int32
	ZOffset    uint32
}

type FireAck struct {
	Weapon             uint32
	Mode               uint32
	AuthoritativeIndex int32
}

type StopRequest struct {
	Weapon     uint32
	Mode       uint32
	EventIndex int32
	ClientTime float32
	Pattern    uint32
}

type BeamHit struct {
	Weapon uint32
	Target int32
	Impact Vec3
	Damage int32
}

type StopBeam struct {
	Weapon uint32
}

// ShotEvent 权威端广播的结算结果
type ShotEvent struct {
	Shooter    int32
	Weapon     uint32
	Mode       uint32
	EventIndex int32
	Hit        int32
	Location   Vec3
	Damage     int32
	Headshot   bool
	Projectile bool
	Beam       bool
}

type EntityState struct {
	ID       int32
	Team     int32
	Position Vec3
	Velocity Vec3
	Yaw      float32
	Pitch    float32
	Health   int32
	Dead     bool
	Sliding  bool
}

// 比赛阶段在 Snapshot.Phase 中的编码
const (
	PhaseWaiting int32 = iota
	PhaseRunning
	PhaseEnded
)

type Snapshot struct {
	Frame      int32
	ServerTime float64
	Phase      int32
	Entities   []EntityState
}

type PlayerLeave struct {
	PlayerID int32
}

func (*JoinRequest) MessageType() MessageType      { return MessageTypeJoinRequest }
func (*JoinResponse) MessageType() MessageType     { return MessageTypeJoinResponse }
func (*ReconnectRequest) MessageType() MessageType { return MessageTypeReconnectRequest }
func (*Ping) MessageType() MessageType             { return MessageTypePing }
func (*Pong) MessageType() MessageType             { return MessageTypePong }
func (*PlayerInput) MessageType() MessageType      { return MessageTypePlayerInput }
func (*FireRequest) MessageType() MessageType      { return MessageTypeFireRequest }
func (*FireAck) MessageType() MessageType          { return MessageTypeFireAck }
func (*StopRequest) MessageType() MessageType      { return MessageTypeStopRequest }
func (*BeamHit) MessageType() MessageType          { return MessageTypeBeamHit }
func (*StopBeam) MessageType() MessageType         { return MessageTypeStopBeam }
func (*ShotEvent) MessageType() MessageType        { return MessageTypeShotEvent }
func (*Snapshot) MessageType() MessageType         { return MessageTypeSnapshot }
func (*PlayerLeave) MessageType() MessageType      { return MessageTypePlayerLeave }
