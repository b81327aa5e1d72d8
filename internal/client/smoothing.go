package client

import "arenanet/pkg/geom"

// remoteSample 远端实体在某个服务器时刻的位置
type remoteSample struct {
	time float64
	pos  geom.Vec3
}

// RemoteSmoother 远端实体插值与航位推测
type RemoteSmoother struct {
	buffer   []remoteSample
	velocity geom.Vec3
	delay    float64 // 当前插值延迟（可动态调整）
}

// NewRemoteSmoother 创建插值缓冲器
func NewRemoteSmoother() *RemoteSmoother {
	return &RemoteSmoother{
		buffer: make([]remoteSample, 0, InterpolationBufferSize),
		delay:  InterpolationDelay,
	}
}

// SetInterpolationDelay 设置插值延迟（秒）
func (s *RemoteSmoother) SetInterpolationDelay(delay float64) {
	s.delay = geom.Clamp(delay, MinInterpolationDelay, MaxInterpolationDelay)
}

// InterpolationDelay 当前插值延迟（秒）
func (s *RemoteSmoother) InterpolationDelay() float64 {
	return s.delay
}

// Add 加入一帧位置，时间不晚于最新样本的忽略
func (s *RemoteSmoother) Add(t float64, pos geom.Vec3) {
	if n := len(s.buffer); n > 0 {
		last := s.buffer[n-1]
		dt := t - last.time
		if dt <= 0 {
			return
		}
		// 航位推测用的速度
		s.velocity = pos.Sub(last.pos).Scale(1 / dt)
	}
	s.buffer = append(s.buffer, remoteSample{time: t, pos: pos})
	if len(s.buffer) > InterpolationBufferSize {
		s.buffer = s.buffer[1:]
	}
}

// Reset 瞬移或复活后丢弃旧样本
func (s *RemoteSmoother) Reset() {
	s.buffer = s.buffer[:0]
	s.velocity = geom.Vec3{}
}

// Position 服务器时间 now 对应的显示位置
func (s *RemoteSmoother) Position(now float64) (geom.Vec3, bool) {
	return s.PositionAhead(now, 0)
}

// PositionAhead 在插值位置的基础上再前推 lead 秒，投射物武器用它抵消单程延迟
func (s *RemoteSmoother) PositionAhead(now, lead float64) (geom.Vec3, bool) {
	if len(s.buffer) == 0 {
		return geom.Vec3{}, false
	}

	base := now - s.delay
	renderTime := base + lead
	first, last := s.buffer[0], s.buffer[len(s.buffer)-1]

	var pos geom.Vec3
	switch {
	case renderTime <= first.time:
		pos = first.pos
	case renderTime >= last.time:
		// 缓冲区不足，按最后速度外推，超时则停在最后位置
		if ahead := renderTime - last.time; ahead <= DeadReckoningMax {
			pos = last.pos.Add(s.velocity.Scale(ahead))
		} else {
			pos = last.pos
		}
	default:
		for i := 0; i < len(s.buffer)-1; i++ {
			prev, next := s.buffer[i], s.buffer[i+1]
			if prev.time <= renderTime && next.time >= renderTime {
				alpha := (renderTime - prev.time) / (next.time - prev.time)
				pos = geom.Lerp(prev.pos, next.pos, alpha)
				break
			}
		}
	}

	// 按未前推的时间清理，lead 回落到 0 时仍有插值起点
	s.cleanup(base)
	return pos, true
}

// cleanup 保留 renderTime 之前的最后一个样本作为插值起点
func (s *RemoteSmoother) cleanup(renderTime float64) {
	cutoff := -1
	for i, sample := range s.buffer {
		if sample.time > renderTime {
			break
		}
		cutoff = i
	}
	if cutoff > 0 {
		s.buffer = s.buffer[cutoff:]
	}
}
