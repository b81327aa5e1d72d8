package schedule

// Clock 世界时钟，返回当前模拟时间（秒）
type Clock interface {
	Now() float64
}

// ManualClock 由模拟循环推进的时钟。服务器房间每个 tick 推进一次，
// 测试中直接 Set 到任意时刻。
type ManualClock struct {
	now float64
}

// NewManualClock 创建时钟
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() float64 {
	return c.now
}

// Advance 推进 dt 秒
func (c *ManualClock) Advance(dt float64) {
	c.now += dt
}

// Set 直接设置当前时间
func (c *ManualClock) Set(now float64) {
	c.now = now
}
