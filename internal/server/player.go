package server

import (
	"github.com/rs/zerolog"

	"arenanet/pkg/core"
	"arenanet/pkg/protocol"
	"arenanet/pkg/weapon"
)

// peerLink 武器到远端持有者的出口。重连时只替换 session，武器不用重建。
type peerLink struct {
	session Session
	log     zerolog.Logger
}

var _ weapon.Outbox = (*peerLink)(nil)

func (l *peerLink) send(msg protocol.Message) {
	if l.session == nil {
		return
	}
	if err := sendMessage(l.session, msg); err != nil {
		l.log.Debug().Err(err).Stringer("type", msg.MessageType()).Msg("发送失败")
	}
}

func (l *peerLink) SendFireRequest(r weapon.FireRequest) { l.send(protocol.FireRequestToProto(r)) }
func (l *peerLink) SendStopRequest(r weapon.StopRequest) { l.send(protocol.StopRequestToProto(r)) }
func (l *peerLink) SendFireAck(a weapon.FireAck)         { l.send(protocol.FireAckToProto(a)) }
func (l *peerLink) SendBeamHit(r weapon.BeamHitReport)   { l.send(protocol.BeamHitToProto(r)) }
func (l *peerLink) SendStopBeam(s weapon.StopBeam)       { l.send(protocol.StopBeamToProto(s)) }

// RoundTripMs 断线期间为 0
func (l *peerLink) RoundTripMs() float64 {
	if l.session == nil {
		return 0
	}
	return l.session.RoundTripMs()
}

// player 竞技场内的一个玩家，只在竞技场循环中访问
type player struct {
	id      core.EntityID
	name    string
	entity  *core.Entity
	loadout *weapon.Loadout
	weapons []string // 按武器编号排列的名字
	link    *peerLink

	input   core.Input
	lastSeq int32

	frags     int
	deaths    int
	respawnAt float64 // 死亡后有效

	detachedAt float64 // 断线时刻，在线时无意义
}

func (p *player) weaponName(id uint8) string {
	if int(id) < len(p.weapons) {
		return p.weapons[id]
	}
	return "unknown"
}

func (p *player) online() bool {
	return p.link.session != nil
}
