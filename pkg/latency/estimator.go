package latency

import "arenanet/pkg/geom"

// WeaponKind 决定是否需要视觉外推
type WeaponKind uint8

const (
	HitScan    WeaponKind = iota // 即时命中，服务器位置就是视觉位置
	Projectile                   // 投射物
)

// RTTSource 连接层提供的往返延迟（毫秒）
type RTTSource interface {
	RoundTripMs() float64
}

// Config 补偿窗口参数
type Config struct {
	VisualFudgeMs        float64 // 视觉外推扣除的处理抖动（毫秒）
	VisualScale          float64 // 视觉外推比例
	MaxVisualSeconds     float64 // 视觉外推上限
	ValidationSmoothing  float64 // 命中验证附加平滑量（秒）
	MaxValidationSeconds float64 // 命中验证回溯上限
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		VisualFudgeMs:        20,
		VisualScale:          1.0,
		MaxVisualSeconds:     0.12,
		ValidationSmoothing:  0.1,
		MaxValidationSeconds: 0.25,
	}
}

// PredictionWindow 由 RTT 推导出的两个补偿窗口，按需计算，不保存
type PredictionWindow struct {
	VisualSeconds     float64
	ValidationSeconds float64
}

// Estimator 从 RTT 推导视觉预测时间与命中验证时间
type Estimator struct {
	cfg Config
}

// New 创建估算器
func New(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Config 返回当前参数
func (e *Estimator) Config() Config {
	return e.cfg
}

// VisualPredictionTime 客户端对其他实体的前向外推时间。
// 即时命中武器恒为 0；投射物武器仅在客户端且新旧速度同向时外推。
func (e *Estimator) VisualPredictionTime(src RTTSource, kind WeaponKind, oldVel, newVel geom.Vec3, client bool) float64 {
	if kind == HitScan || !client || src == nil {
		return 0
	}
	if oldVel.Dot(newVel) <= 0 {
		return 0
	}
	oneWayMs := src.RoundTripMs()/2 - e.cfg.VisualFudgeMs
	if oneWayMs < 0 {
		oneWayMs = 0
	}
	return geom.Clamp(oneWayMs*e.cfg.VisualScale/1000, 0, e.cfg.MaxVisualSeconds)
}

// HitValidationTime 服务器回溯目标的时间。非权威端或没有会话时返回 0。
func (e *Estimator) HitValidationTime(authority bool, src RTTSource) float64 {
	if !authority || src == nil {
		return 0
	}
	ideal := src.RoundTripMs()/2000 + e.cfg.ValidationSmoothing
	return geom.Clamp(ideal, 0, e.cfg.MaxValidationSeconds)
}

// Window 同时计算两个窗口
func (e *Estimator) Window(src RTTSource, kind WeaponKind, oldVel, newVel geom.Vec3, client, authority bool) PredictionWindow {
	return PredictionWindow{
		VisualSeconds:     e.VisualPredictionTime(src, kind, oldVel, newVel, client),
		ValidationSeconds: e.HitValidationTime(authority, src),
	}
}

// OneWaySeconds 单程延迟（秒），RTT 为 0 或没有会话时为 0
func OneWaySeconds(src RTTSource) float64 {
	if src == nil {
		return 0
	}
	rtt := src.RoundTripMs()
	if rtt <= 0 {
		return 0
	}
	return rtt * 0.0005
}

// FixedRTT 固定延迟，用于本地主机和测试
type FixedRTT float64

func (f FixedRTT) RoundTripMs() float64 {
	return float64(f)
}
