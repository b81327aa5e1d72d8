package geom

const segmentEpsilon = 1e-9

// ClosestPointOnSegment 线段 ab 上距离 p 最近的点
func ClosestPointOnSegment(p, a, b Vec3) Vec3 {
	ab := b.Sub(a)
	denom := ab.LenSq()
	if denom < segmentEpsilon {
		return a
	}
	t := Clamp(p.Sub(a).Dot(ab)/denom, 0, 1)
	return a.Add(ab.Scale(t))
}

// SegmentClosestPoints 计算线段 p1q1 与 p2q2 之间的最近点对。
// 返回 c1 在第一条线段上，c2 在第二条线段上。退化线段按点处理。
func SegmentClosestPoints(p1, q1, p2, q2 Vec3) (c1, c2 Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.LenSq()
	e := d2.LenSq()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= segmentEpsilon && e <= segmentEpsilon:
		return p1, p2
	case a <= segmentEpsilon:
		s = 0
		t = Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= segmentEpsilon {
			t = 0
			s = Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > segmentEpsilon {
				s = Clamp((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = Clamp((b-c)/a, 0, 1)
			}
		}
	}

	return p1.Add(d1.Scale(s)), p2.Add(d2.Scale(t))
}

// SegmentDistance 两条线段之间的最短距离
func SegmentDistance(p1, q1, p2, q2 Vec3) float64 {
	c1, c2 := SegmentClosestPoints(p1, q1, p2, q2)
	return c1.Dist(c2)
}

// PointDistToLine 点到直线（过 origin，方向 dir）的距离
func PointDistToLine(point, dir, origin Vec3) float64 {
	n := dir.Normalize()
	if n.LenSq() == 0 {
		return point.Dist(origin)
	}
	v := point.Sub(origin)
	return v.Sub(n.Scale(v.Dot(n))).Len()
}
