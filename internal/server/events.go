package server

import (
	"arenanet/pkg/core"
	"arenanet/pkg/weapon"
)

type EventKind int

const (
	EventUnknown EventKind = iota
	EventJoin
	EventInput
	EventPing
	EventPong
	EventReconnect
	EventFire
	EventStopFire
	EventBeamHit
	EventStopBeam
)

type JoinEvent struct {
	PlayerName string
	Team       int
	ArenaID    string // 竞技场 ID，空字符串表示默认竞技场
	Weapons    []string
}

type InputEvent struct {
	PlayerID core.EntityID
	Seq      int32
	Input    core.Input
	Switch   int // -1 表示不切枪
}

type PingEvent struct {
	ClientTime int64
}

type PongEvent struct {
	ClientTime int64
	ServerTime int64
}

type ReconnectEvent struct {
	SessionToken string
}

type ServerEvent struct {
	Kind      EventKind
	Join      *JoinEvent
	Input     *InputEvent
	Ping      *PingEvent
	Pong      *PongEvent
	Reconnect *ReconnectEvent
	Fire      *weapon.FireRequest
	Stop      *weapon.StopRequest
	Beam      *weapon.BeamHitReport
	StopBeam  *weapon.StopBeam
}
