package weapon

import (
	"math"

	"arenanet/pkg/core"
	"arenanet/pkg/geom"
)

// AimContext 处理远端开火请求期间生效的瞄准信息，处理结束即清除
type AimContext struct {
	Rotation   geom.Rotator
	ZOffset    float64
	HasZOffset bool
	Claimed    core.EntityID
	EventIndex int32
	Predicted  bool
}

// EncodeZOffset 把开火点相对胶囊中心的高度压缩成一个字节。
// 与默认眼高相差不超过 1 时编码为 0。
func EncodeZOffset(raw, eyeHeight float64) uint8 {
	if math.Abs(raw-eyeHeight) <= 1 {
		return 0
	}
	v := geom.Clamp(raw+127.5, 1, 255)
	return uint8(v)
}

// DecodeZOffset 还原高度，0 表示使用默认眼高
func DecodeZOffset(b uint8) (float64, bool) {
	if b == 0 {
		return 0, false
	}
	return float64(b) - 127, true
}

// viewHeight 持有者当前的开火点高度，滑铲时按胶囊压低的量下移
func viewHeight(e *core.Entity) float64 {
	if e.Sliding && e.SlideHeight > 0 && e.SlideHeight < e.Capsule.HalfHeight {
		return e.EyeHeight - (e.Capsule.HalfHeight - e.SlideHeight)
	}
	return e.EyeHeight
}

func (w *Weapon) aimRotation() geom.Rotator {
	// 请求里的朝向无效时按持有者当前朝向
	if w.aim != nil && !w.aim.Rotation.IsZero() && w.aim.Rotation.Finite() {
		return w.aim.Rotation
	}
	return w.env.Owner.Rotation
}

func (w *Weapon) fireStart() geom.Vec3 {
	owner := w.env.Owner
	if w.aim != nil {
		if w.aim.HasZOffset {
			return owner.Position.Add(geom.V(0, 0, w.aim.ZOffset))
		}
		return owner.EyeLocation()
	}
	return owner.Position.Add(geom.V(0, 0, viewHeight(owner)))
}
