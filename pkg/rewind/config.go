package rewind

// PaddingTier 射手 RTT 高于 AboveRTTMs 时，对其声称命中的移动目标使用的额外半径
type PaddingTier struct {
	AboveRTTMs float64
	Padding    float64
}

// Config 回溯命中检测参数
type Config struct {
	TeammatesBlock    bool          // 队友是否参与命中检测
	PaddingTiers      []PaddingTier // 按 AboveRTTMs 降序
	BasePadding       float64       // 低延迟下移动目标的额外半径
	StationaryPadding float64       // 静止目标的额外半径
	MovingTolerance   float64       // 速度低于此值视为静止

	TimeSearch      bool    // 声称命中未被确认时是否前后搜索回溯时间
	SearchStep      float64 // 秒
	SearchMaxOffset float64
	SearchPadding   float64
	MaxRewind       float64 // 搜索时回溯时间的上限（开区间）
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		PaddingTiers: []PaddingTier{
			{AboveRTTMs: 120, Padding: 60},
			{AboveRTTMs: 90, Padding: 50},
			{AboveRTTMs: 60, Padding: 45},
		},
		BasePadding:       40,
		StationaryPadding: 10,
		MovingTolerance:   1,

		TimeSearch:      true,
		SearchStep:      0.015,
		SearchMaxOffset: 0.050,
		SearchPadding:   50,
		MaxRewind:       0.25,
	}
}

// ClaimedPadding 声称命中目标的额外半径
func (c Config) ClaimedPadding(moving bool, ownerRTTMs float64) float64 {
	if !moving {
		return c.StationaryPadding
	}
	for _, tier := range c.PaddingTiers {
		if ownerRTTMs > tier.AboveRTTMs {
			return tier.Padding
		}
	}
	return c.BasePadding
}

// SearchOffsets 时间搜索的偏移序列：+step, -step, +2step, -2step ...
func (c Config) SearchOffsets() []float64 {
	if c.SearchStep <= 0 {
		return nil
	}
	var out []float64
	for off := c.SearchStep; off <= c.SearchMaxOffset+1e-9; off += c.SearchStep {
		out = append(out, off, -off)
	}
	return out
}
