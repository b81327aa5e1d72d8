package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrEmptyPacket = errors.New("空数据包")
	ErrWrongType   = errors.New("消息类型不匹配")
)

// ========== 信封 ==========

// NewPacket 把消息装进信封
func NewPacket(msg Message) *Packet {
	return &Packet{
		Type:    msg.MessageType(),
		Payload: msg.appendWire(nil),
	}
}

// MarshalPacket 序列化信封
func MarshalPacket(pkt *Packet) ([]byte, error) {
	if pkt == nil {
		return nil, ErrEmptyPacket
	}
	b := make([]byte, 0, len(pkt.Payload)+8)
	b = appendUint(b, 1, uint64(pkt.Type))
	if len(pkt.Payload) > 0 {
		b = appendBytes(b, 2, pkt.Payload)
	}
	return b, nil
}

// UnmarshalPacket 反序列化信封
func UnmarshalPacket(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}
	pkt := &Packet{}
	err := eachField(data, func(f field) error {
		switch f.num {
		case 1:
			if f.typ != protowire.VarintType {
				return fmt.Errorf("信封类型字段编码错误: %d", f.typ)
			}
			pkt.Type = MessageType(f.u)
		case 2:
			pkt.Payload = f.buf
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pkt, nil
}

// Marshal 消息直接序列化为一帧数据
func Marshal(msg Message) ([]byte, error) {
	return MarshalPacket(NewPacket(msg))
}

// ========== 解析 ==========

func parse[T any, PT interface {
	*T
	Message
}](pkt *Packet) (*T, error) {
	msg := PT(new(T))
	if pkt == nil {
		return nil, ErrEmptyPacket
	}
	if pkt.Type != msg.MessageType() {
		return nil, fmt.Errorf("不是 %s 消息: %w", msg.MessageType(), ErrWrongType)
	}
	if err := msg.readWire(pkt.Payload); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", msg.MessageType(), err)
	}
	return (*T)(msg), nil
}

func ParseJoinRequest(pkt *Packet) (*JoinRequest, error) {
	return parse[JoinRequest](pkt)
}

func ParseJoinResponse(pkt *Packet) (*JoinResponse, error) {
	return parse[JoinResponse](pkt)
}

func ParseReconnectRequest(pkt *Packet) (*ReconnectRequest, error) {
	return parse[ReconnectRequest](pkt)
}

func ParsePing(pkt *Packet) (*Ping, error) {
	return parse[Ping](pkt)
}

func ParsePong(pkt *Packet) (*Pong, error) {
	return parse[Pong](pkt)
}

func ParsePlayerInput(pkt *Packet) (*PlayerInput, error) {
	return parse[PlayerInput](pkt)
}

func ParseFireRequest(pkt *Packet) (*FireRequest, error) {
	return parse[FireRequest](pkt)
}

func ParseFireAck(pkt *Packet) (*FireAck, error) {
	return parse[FireAck](pkt)
}

func ParseStopRequest(pkt *Packet) (*StopRequest, error) {
	return parse[StopRequest](pkt)
}

func ParseBeamHit(pkt *Packet) (*BeamHit, error) {
	return parse[BeamHit](pkt)
}

func ParseStopBeam(pkt *Packet) (*StopBeam, error) {
	return parse[StopBeam](pkt)
}

func ParseShotEvent(pkt *Packet) (*ShotEvent, error) {
	return parse[ShotEvent](pkt)
}

func ParseSnapshot(pkt *Packet) (*Snapshot, error) {
	return parse[Snapshot](pkt)
}

func ParsePlayerLeave(pkt *Packet) (*PlayerLeave, error) {
	return parse[PlayerLeave](pkt)
}

// ========== 辅助构造方法 ==========

// NewPingPacket 心跳
func NewPingPacket(clientTime int64) *Packet {
	return NewPacket(&Ping{ClientTime: clientTime})
}

// NewPongPacket 回应心跳，原样带回对方时间
func NewPongPacket(clientTime, serverTime int64) *Packet {
	return NewPacket(&Pong{ClientTime: clientTime, ServerTime: serverTime})
}

// NewJoinRequestPacket 加入竞技场
func NewJoinRequestPacket(name string, team int32, arenaID string, weapons []string) *Packet {
	return NewPacket(&JoinRequest{PlayerName: name, Team: team, ArenaID: arenaID, Weapons: weapons})
}

// NewJoinRejectedPacket 加入失败
func NewJoinRejectedPacket(reason string) *Packet {
	return NewPacket(&JoinResponse{Success: false, Error: reason})
}

// NewPlayerLeavePacket 玩家离开
func NewPlayerLeavePacket(playerID int32) *Packet {
	return NewPacket(&PlayerLeave{PlayerID: playerID})
}
