package weapon

import (
	"fmt"

	"arenanet/pkg/latency"
)

// ModeConfig 单个开火模式的参数
type ModeConfig struct {
	Name        string
	State       StateKind // 模式对应的开火状态：Transactional、Charging、ContinuousBeam 或 Zooming
	Kind        latency.WeaponKind
	Refire      float64 // 射击间隔（秒）
	Damage      int
	TraceRange  float64
	TraceRadius float64
}

// ChargeConfig 蓄力装填参数
type ChargeConfig struct {
	MaxLoaded     int
	FirstLoadTime float64
	LoadTime      float64
	GracePeriod   float64 // 装满后强制发射前的等待
	BurstInterval float64 // 连发间隔，0 表示一次性全部发射
	Patterns      int     // 蓄力中按副模式可循环的弹型数量
}

// BeamConfig 持续光束参数
type BeamConfig struct {
	DamagePerSecond    float64 // 0 时使用 Damage/Refire
	BatchSize          int     // 累计到这个整数伤害才上报
	DamageCap          float64 // 单次上报伤害上限，乘以射速倍率后向上取整
	FireRateMultiplier float64
	RangeTolerance     float64 // 射程校验的额外容差
	Timeout            float64 // 远端持有者无活动多久后强制停止
}

// HeadshotConfig 爆头判定参数
type HeadshotConfig struct {
	Damage       int
	Scale        float64 // 头部半径放大倍率
	SlidingScale float64 // 目标滑铲时使用的倍率
	Modes        [NumModes]bool
}

// Config 一把武器的完整配置
type Config struct {
	Name                 string
	Modes                [NumModes]ModeConfig
	PutDownTime          float64
	RefirePutDownPercent float64

	Charge   *ChargeConfig
	Beam     *BeamConfig
	Headshot *HeadshotConfig
}

// Validate 检查配置是否自洽
func (c Config) Validate() error {
	for i, m := range c.Modes {
		switch m.State {
		case StateTransactional:
		case StateCharging:
			if c.Charge == nil {
				return fmt.Errorf("%w: %s 模式 %d 缺少蓄力参数", ErrInvalidConfig, c.Name, i)
			}
			if c.Charge.MaxLoaded <= 0 || c.Charge.FirstLoadTime <= 0 || c.Charge.LoadTime <= 0 {
				return fmt.Errorf("%w: %s 蓄力参数非法", ErrInvalidConfig, c.Name)
			}
		case StateContinuousBeam:
			if c.Beam == nil {
				return fmt.Errorf("%w: %s 模式 %d 缺少光束参数", ErrInvalidConfig, c.Name, i)
			}
			if c.Beam.BatchSize <= 0 {
				return fmt.Errorf("%w: %s 光束上报批量必须为正", ErrInvalidConfig, c.Name)
			}
		case StateZooming:
			continue
		default:
			return fmt.Errorf("%w: %s 模式 %d 状态 %s 不能开火", ErrInvalidConfig, c.Name, i, m.State)
		}
		if m.Refire <= 0 {
			return fmt.Errorf("%w: %s 模式 %d 射击间隔必须为正", ErrInvalidConfig, c.Name, i)
		}
	}
	if c.PutDownTime < 0 || c.RefirePutDownPercent < 0 {
		return fmt.Errorf("%w: %s 切枪参数非法", ErrInvalidConfig, c.Name)
	}
	return nil
}

// Tuning 同步层的全局常数
type Tuning struct {
	LookaheadWindow         int32   // 事件序号最多领先权威序号多少
	ClockSkewLimit          float64 // 客户端时间与服务器时间允许的偏差（秒）
	ServerCooldownTolerance float64
	ClientCooldownTolerance float64
	RhythmWindow            float64 // 晚到多少秒以内按理论节奏补偿
	RetryEpsilon            float64
	WatchdogMin             float64
	WatchdogFactor          float64
	GhostJitter             float64
	GhostMaxTolerance       float64
	BurstSafetyCap          int
	ValidationEpsilon       float64
}

// DefaultTuning 默认常数
func DefaultTuning() Tuning {
	return Tuning{
		LookaheadWindow:         10,
		ClockSkewLimit:          1.0,
		ServerCooldownTolerance: 0.06,
		ClientCooldownTolerance: 0.05,
		RhythmWindow:            0.20,
		RetryEpsilon:            0.01,
		WatchdogMin:             0.25,
		WatchdogFactor:          2.5,
		GhostJitter:             0.02,
		GhostMaxTolerance:       0.20,
		BurstSafetyCap:          50,
		ValidationEpsilon:       1e-9,
	}
}
