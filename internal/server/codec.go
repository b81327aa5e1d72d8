package server

import (
	"fmt"

	"arenanet/pkg/protocol"
	"arenanet/pkg/weapon"
)

// DecodePacket 解析服务器收到的数据包
func DecodePacket(data []byte) (*ServerEvent, error) {
	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		return nil, fmt.Errorf("解析包失败: %w", err)
	}

	switch pkt.Type {
	case protocol.MessageTypeJoinRequest:
		req, err := protocol.ParseJoinRequest(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind: EventJoin,
			Join: &JoinEvent{
				PlayerName: req.PlayerName,
				Team:       int(req.Team),
				ArenaID:    req.ArenaID,
				Weapons:    req.Weapons,
			},
		}, nil

	case protocol.MessageTypePlayerInput:
		in, err := protocol.ParsePlayerInput(pkt)
		if err != nil {
			return nil, err
		}
		ev := &InputEvent{Seq: in.Seq, Input: in.Core(), Switch: -1}
		if in.Switch {
			ev.Switch = int(in.Slot)
		}
		return &ServerEvent{Kind: EventInput, Input: ev}, nil

	case protocol.MessageTypePing:
		ping, err := protocol.ParsePing(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind: EventPing,
			Ping: &PingEvent{ClientTime: ping.ClientTime},
		}, nil

	case protocol.MessageTypePong:
		pong, err := protocol.ParsePong(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind: EventPong,
			Pong: &PongEvent{ClientTime: pong.ClientTime, ServerTime: pong.ServerTime},
		}, nil

	case protocol.MessageTypeReconnectRequest:
		req, err := protocol.ParseReconnectRequest(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind:      EventReconnect,
			Reconnect: &ReconnectEvent{SessionToken: req.SessionToken},
		}, nil

	case protocol.MessageTypeFireRequest:
		req, err := protocol.ParseFireRequest(pkt)
		if err != nil {
			return nil, err
		}
		fire := req.Core()
		return &ServerEvent{Kind: EventFire, Fire: &fire}, nil

	case protocol.MessageTypeStopRequest:
		req, err := protocol.ParseStopRequest(pkt)
		if err != nil {
			return nil, err
		}
		stop := req.Core()
		return &ServerEvent{Kind: EventStopFire, Stop: &stop}, nil

	case protocol.MessageTypeBeamHit:
		req, err := protocol.ParseBeamHit(pkt)
		if err != nil {
			return nil, err
		}
		hit := req.Core()
		return &ServerEvent{Kind: EventBeamHit, Beam: &hit}, nil

	case protocol.MessageTypeStopBeam:
		req, err := protocol.ParseStopBeam(pkt)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{
			Kind:     EventStopBeam,
			StopBeam: &weapon.StopBeam{Weapon: uint8(min(req.Weapon, 0xff))},
		}, nil

	default:
		return &ServerEvent{Kind: EventUnknown}, nil
	}
}
