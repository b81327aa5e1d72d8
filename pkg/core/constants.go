package core

// 地图配置（世界单位）
const (
	TileSize   = 256.0
	MapWidth   = 20
	MapHeight  = 15
	WallHeight = 512.0
)

// 模拟帧率
const (
	TPS            = 60
	FixedDeltaTime = 1.0 / TPS
)

// 角色碰撞体与移动
const (
	DefaultCapsuleRadius     = 42.0
	DefaultCapsuleHalfHeight = 92.0
	DefaultEyeHeight         = 64.0  // 眼睛相对胶囊中心的高度
	DefaultHeadRadius        = 18.0  // 爆头判定球半径
	DefaultHeadOffset        = 62.0  // 头部中心相对胶囊中心的高度
	DefaultSlideHeight       = 55.0  // 滑铲时的半高
	DefaultMoveSpeed         = 940.0 // 单位/秒
	SlideSpeedFactor         = 1.35
	DefaultHealth            = 100
)
