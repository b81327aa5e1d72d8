package client

// ===== 远端实体插值配置（客户端专用）=====
const (
	// 插值延迟（秒）：远端实体显示时间滞后于服务器时间
	// 值越大越平滑，但服务器需要回溯得更远
	InterpolationDelay    = 0.1
	MinInterpolationDelay = 0.05
	MaxInterpolationDelay = 0.25

	// 插值缓冲区大小：存储最近 N 个快照位置
	InterpolationBufferSize = 30

	// 航位推测最大时长（秒）：超过此时间未收到新快照则停在最后位置
	DeadReckoningMax = 0.25
)
