package core

import (
	"math"
	"math/rand"

	"arenanet/pkg/geom"
)

// TileType 地图格子类型
type TileType uint8

const (
	TileEmpty TileType = iota
	TileWall           // 通顶墙
	TileCrate          // 半高掩体
)

// Box 轴对齐包围盒
type Box struct {
	Min, Max geom.Vec3
}

// Expand 各方向外扩 r
func (b Box) Expand(r float64) Box {
	d := geom.V(r, r, r)
	return Box{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Contains 点是否在盒内
func (b Box) Contains(p geom.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// WorldHit 静态场景命中
type WorldHit struct {
	Location geom.Vec3
	Normal   geom.Vec3
	Fraction float64
}

// GameMap 竞技场地图（核心逻辑，不包含渲染）
type GameMap struct {
	Tiles  [][]TileType
	Width  int
	Height int

	boxes  []Box
	spawns []geom.Vec3
}

// 地图模板：W=墙壁, C=掩体, .=空地
var arenaTemplate = []string{
	"WWWWWWWWWWWWWWWWWWWW",
	"W........WW........W",
	"W..C..........C....W",
	"W....WWW....WWW....W",
	"W..................W",
	"W.C...C......C...C.W",
	"W.....W......W.....W",
	"WW.......CC.......WW",
	"W.....W......W.....W",
	"W.C...C......C...C.W",
	"W..................W",
	"W....WWW....WWW....W",
	"W..C..........C....W",
	"W........WW........W",
	"WWWWWWWWWWWWWWWWWWWW",
}

// NewGameMap 使用指定种子创建地图，种子决定出生点顺序
func NewGameMap(seed int64) *GameMap {
	m, _ := ParseGameMap(arenaTemplate, seed)
	return m
}

// ParseGameMap 从模板创建地图
func ParseGameMap(template []string, seed int64) (*GameMap, error) {
	height := len(template)
	if height == 0 {
		return nil, ErrEmptyMap
	}
	width := len(template[0])
	m := &GameMap{
		Tiles:  make([][]TileType, height),
		Width:  width,
		Height: height,
	}

	for y := 0; y < height; y++ {
		if len(template[y]) != width {
			return nil, ErrRaggedMap
		}
		m.Tiles[y] = make([]TileType, width)
		for x := 0; x < width; x++ {
			switch template[y][x] {
			case 'W':
				m.Tiles[y][x] = TileWall
			case 'C':
				m.Tiles[y][x] = TileCrate
			default:
				m.Tiles[y][x] = TileEmpty
			}
		}
	}
	m.rebuild(seed)
	return m, nil
}

func (m *GameMap) rebuild(seed int64) {
	m.boxes = m.boxes[:0]
	m.spawns = m.spawns[:0]

	// 地板
	m.boxes = append(m.boxes, Box{
		Min: geom.V(0, 0, -TileSize),
		Max: geom.V(float64(m.Width)*TileSize, float64(m.Height)*TileSize, 0),
	})

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			min := geom.V(float64(x)*TileSize, float64(y)*TileSize, 0)
			switch m.Tiles[y][x] {
			case TileWall:
				m.boxes = append(m.boxes, Box{Min: min, Max: min.Add(geom.V(TileSize, TileSize, WallHeight))})
			case TileCrate:
				m.boxes = append(m.boxes, Box{Min: min, Max: min.Add(geom.V(TileSize, TileSize, TileSize/2))})
			case TileEmpty:
				m.spawns = append(m.spawns, TileCenter(x, y))
			}
		}
	}

	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(m.spawns), func(i, j int) {
		m.spawns[i], m.spawns[j] = m.spawns[j], m.spawns[i]
	})
}

// TileCenter 格子中心处站立的胶囊中心
func TileCenter(gridX, gridY int) geom.Vec3 {
	return geom.V(
		(float64(gridX)+0.5)*TileSize,
		(float64(gridY)+0.5)*TileSize,
		DefaultCapsuleHalfHeight,
	)
}

// GetTile 获取指定位置的地图块，越界视为墙
func (m *GameMap) GetTile(x, y int) TileType {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return TileWall
	}
	return m.Tiles[y][x]
}

// SpawnPoint 第 n 个出生点，循环使用
func (m *GameMap) SpawnPoint(n int) geom.Vec3 {
	if len(m.spawns) == 0 {
		return TileCenter(0, 0)
	}
	if n < 0 {
		n = -n
	}
	return m.spawns[n%len(m.spawns)]
}

// Blocked 半径为 radius 的立足点是否与墙或掩体重叠
func (m *GameMap) Blocked(pos geom.Vec3, radius float64) bool {
	startX := int(math.Floor((pos.X - radius) / TileSize))
	endX := int(math.Floor((pos.X + radius) / TileSize))
	startY := int(math.Floor((pos.Y - radius) / TileSize))
	endY := int(math.Floor((pos.Y + radius) / TileSize))

	for gy := startY; gy <= endY; gy++ {
		for gx := startX; gx <= endX; gx++ {
			if m.GetTile(gx, gy) != TileEmpty {
				return true
			}
		}
	}
	return false
}

// Trace 射线（radius=0）或球体扫掠（radius>0）检测静态场景，返回最近命中。
// 扫掠以外扩包围盒近似。
func (m *GameMap) Trace(start, end geom.Vec3, radius float64) (WorldHit, bool) {
	best := WorldHit{Fraction: 2}
	found := false
	for _, b := range m.boxes {
		if radius > 0 {
			b = b.Expand(radius)
		}
		t, normal, ok := segmentBox(start, end, b)
		if !ok || t >= best.Fraction {
			continue
		}
		best = WorldHit{Fraction: t, Normal: normal}
		found = true
	}
	if !found {
		return WorldHit{Location: end, Fraction: 1}, false
	}
	best.Location = geom.Lerp(start, end, best.Fraction)
	return best, true
}

// segmentBox 线段与包围盒的 slab 相交，返回进入参数和进入面法线
func segmentBox(start, end geom.Vec3, b Box) (float64, geom.Vec3, bool) {
	dir := end.Sub(start)
	s := [3]float64{start.X, start.Y, start.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	tmin, tmax := 0.0, 1.0
	axis, sign := -1, 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if s[i] < lo[i] || s[i] > hi[i] {
				return 0, geom.Vec3{}, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (lo[i] - s[i]) * inv
		t2 := (hi[i] - s[i]) * inv
		n := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			n = 1.0
		}
		if t1 > tmin {
			tmin = t1
			axis, sign = i, n
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, geom.Vec3{}, false
		}
	}

	var normal geom.Vec3
	switch axis {
	case 0:
		normal = geom.V(sign, 0, 0)
	case 1:
		normal = geom.V(0, sign, 0)
	case 2:
		normal = geom.V(0, 0, sign)
	default:
		// 起点在盒内
		normal = dir.Normalize().Neg()
	}
	return tmin, normal, true
}
