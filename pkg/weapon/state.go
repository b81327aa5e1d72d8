package weapon

import "arenanet/pkg/schedule"

// Mode 开火模式编号，0 为主模式，1 为副模式
type Mode uint8

const (
	NumModes      = 2
	NoMode   Mode = 255
)

// Valid 是否为有效模式
func (m Mode) Valid() bool {
	return m < NumModes
}

// StateKind 武器状态，封闭枚举
type StateKind uint8

const (
	StateInactive       StateKind = iota // 未装备
	StateIdle                            // 已装备，未开火
	StateZooming                         // 开镜，不开火也不受冷却限制
	StateCharging                        // 蓄力装填、宽限、连发、恢复
	StateContinuousBeam                  // 持续光束
	StateTransactional                   // 逐发同步开火
)

var stateNames = [...]string{"inactive", "idle", "zooming", "charging", "beam", "transactional"}

func (k StateKind) String() string {
	if int(k) < len(stateNames) {
		return stateNames[k]
	}
	return "unknown"
}

// Firing 是否属于开火状态
func (k StateKind) Firing() bool {
	return k == StateCharging || k == StateContinuousBeam || k == StateTransactional
}

// 每个状态允许保留的定时任务，进入状态时其余角色一次性清除
var validRoles = map[StateKind][]schedule.Role{
	StateInactive:       nil,
	StateIdle:           {schedule.RoleRetry, schedule.RolePutDown},
	StateZooming:        nil,
	StateCharging:       {schedule.RoleLoad, schedule.RoleGrace, schedule.RoleBurst, schedule.RoleRefire, schedule.RolePutDown},
	StateContinuousBeam: nil,
	StateTransactional:  {schedule.RoleRefire},
}

// Side 本端在这把武器上的角色
type Side uint8

const (
	SideDedicated  Side = iota // 权威端，持有者在远端
	SideListenHost             // 权威端，持有者在本地
	SideClient                 // 本地操控的非权威端
	SideProxy                  // 既不权威也不本地
)

// Authority 是否为权威端
func (s Side) Authority() bool {
	return s == SideDedicated || s == SideListenHost
}

// Local 是否由本地输入驱动
func (s Side) Local() bool {
	return s == SideListenHost || s == SideClient
}

func (s Side) String() string {
	switch s {
	case SideDedicated:
		return "dedicated"
	case SideListenHost:
		return "listen"
	case SideClient:
		return "client"
	}
	return "proxy"
}

// StartResult 本地按下开火的结果
type StartResult uint8

const (
	Started        StartResult = iota // 进入开火流程
	Busy                              // 另一个模式正在开火，或本模式已在开火
	CoolingDown                       // 冷却中，静默拒绝
	RetryScheduled                    // 冷却中，已安排一次重试
	Ignored                           // 未装备、切枪中或被比赛阶段禁止
	Buffered                          // 连发中按下另一模式，等恢复后处理
	Cycled                            // 蓄力中按下另一模式，切换弹型
)

var startNames = [...]string{"started", "busy", "cooldown", "retry", "ignored", "buffered", "cycled"}

func (r StartResult) String() string {
	if int(r) < len(startNames) {
		return startNames[r]
	}
	return "unknown"
}

// StopReason 开火状态结束的原因
type StopReason uint8

const (
	ReasonNone         StopReason = iota
	ReasonRelease                 // 松开或收到停火消息
	ReasonWatchdog                // 看门狗强制停火
	ReasonBeamTimeout             // 光束超时
	ReasonPutDown                 // 切枪
	ReasonGated                   // 比赛阶段禁止
	ReasonEarlyRelease            // 蓄力未完成就松开
	ReasonComplete                // 蓄力弹药打完
)

var reasonNames = [...]string{"", "release", "watchdog", "beam_timeout", "putdown", "gated", "early_release", "complete"}

func (r StopReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}
