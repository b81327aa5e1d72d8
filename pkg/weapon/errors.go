package weapon

import "errors"

// 远端请求校验失败的原因。全部是非致命错误：事件被丢弃，确认照常发送。
var (
	ErrInvalidMode         = errors.New("开火模式无效")
	ErrRejectedStale       = errors.New("事件序号过旧或重复")
	ErrRejectedOutOfWindow = errors.New("事件序号超出前瞻窗口")
	ErrRejectedClockSkew   = errors.New("客户端时间偏差过大")
	ErrRejectedCooldown    = errors.New("射击间隔未到")
	ErrFireGated           = errors.New("当前比赛阶段禁止开火")
	ErrNotEquipped         = errors.New("武器未装备")

	ErrInvalidClaimedTarget = errors.New("声称命中的目标不存在")
	ErrBeamInactive         = errors.New("光束未在发射")
	ErrBeamOutOfRange       = errors.New("光束命中点超出射程")
	ErrBeamTargetMissing    = errors.New("光束目标不存在")
	ErrBeamDamage           = errors.New("光束伤害无效")

	ErrInvalidConfig = errors.New("武器配置无效")
)
