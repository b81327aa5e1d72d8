package server

import (
	"golang.org/x/time/rate"

	"arenanet/internal/config"
)

// limiter 单个连接的令牌桶，开火类消息与移动输入分开计数
type limiter struct {
	fire  *rate.Limiter
	input *rate.Limiter
}

func newLimiter(cfg config.LimitsConfig) *limiter {
	return &limiter{
		fire:  newBucket(cfg.FireRate, cfg.FireBurst),
		input: newBucket(cfg.InputRate, cfg.InputBurst),
	}
}

// 速率不为正时不限速
func newBucket(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (l *limiter) allow(kind EventKind) bool {
	switch kind {
	case EventFire, EventStopFire, EventBeamHit, EventStopBeam:
		return l.fire.Allow()
	case EventInput:
		return l.input.Allow()
	default:
		return true
	}
}
