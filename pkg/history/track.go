package history

import (
	"arenanet/pkg/geom"
	"arenanet/pkg/schedule"
)

// DefaultMaxAge 默认保留的最大回溯时长（秒），覆盖 0.25 秒验证窗口并留出余量
const DefaultMaxAge = 0.35

// Sample 单个位姿快照，写入后不再修改
type Sample struct {
	Time       float64
	Position   geom.Vec3
	Rotation   geom.Rotator
	Teleported bool // 这一帧发生了瞬移，回溯时不向后插值
}

// Track 单个实体的位姿历史，按时间升序保存
type Track struct {
	clock        schedule.Clock
	samples      []Sample
	head         int
	maxAge       float64
	saveInterval float64
	lastSave     float64
	saved        bool

	live    geom.Vec3
	liveRot geom.Rotator
}

// Option 配置 Track
type Option func(*Track)

// WithMaxAge 设置保留时长
func WithMaxAge(seconds float64) Option {
	return func(t *Track) {
		if seconds > 0 {
			t.maxAge = seconds
		}
	}
}

// WithSaveInterval 限制 Record 的保存频率，例如 1.0/120
func WithSaveInterval(seconds float64) Option {
	return func(t *Track) {
		if seconds > 0 {
			t.saveInterval = seconds
		}
	}
}

// NewTrack 创建位姿历史
func NewTrack(clock schedule.Clock, opts ...Option) *Track {
	t := &Track{
		clock:   clock,
		maxAge:  DefaultMaxAge,
		samples: make([]Sample, 0, 64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Live 当前位置
func (t *Track) Live() geom.Vec3 {
	return t.live
}

// SetLive 只更新当前位姿，不写历史
func (t *Track) SetLive(pos geom.Vec3, rot geom.Rotator) {
	t.live = pos
	t.liveRot = rot
}

// Append 追加快照并裁剪过期数据。时间不晚于最新快照的样本被丢弃。
func (t *Track) Append(s Sample) bool {
	t.live = s.Position
	t.liveRot = s.Rotation
	if n := t.Len(); n > 0 && s.Time <= t.samples[len(t.samples)-1].Time {
		return false
	}
	t.samples = append(t.samples, s)
	t.lastSave = s.Time
	t.saved = true
	t.prune(s.Time)
	return true
}

// Record 移动系统每步调用。开启节流时两次保存间隔不足 saveInterval 的位姿只更新当前位置；
// force 用于开火时强制保存。
func (t *Track) Record(pos geom.Vec3, rot geom.Rotator, teleported, force bool) bool {
	now := t.clock.Now()
	if !force && !teleported && t.saveInterval > 0 && t.saved && now-t.lastSave < t.saveInterval {
		t.SetLive(pos, rot)
		return false
	}
	return t.Append(Sample{Time: now, Position: pos, Rotation: rot, Teleported: teleported})
}

// 保留最新时刻前 maxAge 之外的最后一个样本，供插值使用
func (t *Track) prune(newest float64) {
	limit := newest - t.maxAge
	for len(t.samples)-t.head > 1 && t.samples[t.head+1].Time < limit {
		t.samples[t.head] = Sample{}
		t.head++
	}
	// 头部空洞超过一半时整体搬移，保持追加均摊 O(1)
	if t.head > 0 && t.head*2 >= len(t.samples) {
		n := copy(t.samples, t.samples[t.head:])
		t.samples = t.samples[:n]
		t.head = 0
	}
}

// Len 当前保留的样本数
func (t *Track) Len() int {
	return len(t.samples) - t.head
}

// Oldest 最早的样本
func (t *Track) Oldest() (Sample, bool) {
	if t.Len() == 0 {
		return Sample{}, false
	}
	return t.samples[t.head], true
}

// Newest 最新的样本
func (t *Track) Newest() (Sample, bool) {
	if t.Len() == 0 {
		return Sample{}, false
	}
	return t.samples[len(t.samples)-1], true
}

// Samples 返回样本副本，按时间升序
func (t *Track) Samples() []Sample {
	out := make([]Sample, t.Len())
	copy(out, t.samples[t.head:])
	return out
}

// Clear 清空历史，例如重生时
func (t *Track) Clear() {
	t.samples = t.samples[:0]
	t.head = 0
	t.saved = false
}

// RewindLocation 返回 predictionTime 秒之前的位置。
// predictionTime <= 0 返回当前位置；早于最老样本时返回最老样本，不做外推。
func (t *Track) RewindLocation(predictionTime float64) geom.Vec3 {
	if predictionTime <= 0 || t.Len() == 0 {
		return t.live
	}
	target := t.clock.Now() - predictionTime
	samples := t.samples[t.head:]
	last := len(samples) - 1

	for i := last; i >= 0; i-- {
		s := samples[i]
		if s.Time >= target {
			continue
		}
		if s.Teleported || i == last {
			return s.Position
		}
		next := samples[i+1]
		span := next.Time - s.Time
		if span <= 0 {
			return next.Position
		}
		return geom.Lerp(s.Position, next.Position, (target-s.Time)/span)
	}
	return samples[0].Position
}
