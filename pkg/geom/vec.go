package geom

import "math"

// Vec3 三维向量（世界单位）
type Vec3 struct {
	X, Y, Z float64
}

// V 构造向量
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}

func (a Vec3) Neg() Vec3 {
	return Vec3{-a.X, -a.Y, -a.Z}
}

func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) LenSq() float64 {
	return a.Dot(a)
}

func (a Vec3) Len() float64 {
	return math.Sqrt(a.LenSq())
}

// DistSq 两点距离的平方
func (a Vec3) DistSq(b Vec3) float64 {
	return a.Sub(b).LenSq()
}

// Dist 两点距离
func (a Vec3) Dist(b Vec3) float64 {
	return a.Sub(b).Len()
}

// Normalize 返回单位向量，长度过小时返回零向量
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l < 1e-8 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// IsNearlyZero 每个分量的绝对值都不超过 tolerance
func (a Vec3) IsNearlyZero(tolerance float64) bool {
	return math.Abs(a.X) <= tolerance && math.Abs(a.Y) <= tolerance && math.Abs(a.Z) <= tolerance
}

// Lerp 线性插值，t=0 返回 a，t=1 返回 b
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// Rotator 视角欧拉角（角度制）
type Rotator struct {
	Pitch, Yaw, Roll float64
}

// IsZero 三个分量都为 0 视为无效朝向
func (r Rotator) IsZero() bool {
	return r.Pitch == 0 && r.Yaw == 0 && r.Roll == 0
}

// Finite 三个分量都不是 NaN 或无穷
func (r Rotator) Finite() bool {
	return finite(r.Pitch) && finite(r.Yaw) && finite(r.Roll)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Vector 朝向对应的单位方向向量（Z 轴向上）
func (r Rotator) Vector() Vec3 {
	p := r.Pitch * math.Pi / 180
	y := r.Yaw * math.Pi / 180
	cp := math.Cos(p)
	return Vec3{
		X: cp * math.Cos(y),
		Y: cp * math.Sin(y),
		Z: math.Sin(p),
	}
}

// LookAt 从 from 看向 to 的朝向，两点重合时返回零值
func LookAt(from, to Vec3) Rotator {
	d := to.Sub(from)
	if d.IsNearlyZero(1e-9) {
		return Rotator{}
	}
	flat := math.Hypot(d.X, d.Y)
	return Rotator{
		Pitch: math.Atan2(d.Z, flat) * 180 / math.Pi,
		Yaw:   math.Atan2(d.Y, d.X) * 180 / math.Pi,
	}
}

// Clamp 把 v 限制在 [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
