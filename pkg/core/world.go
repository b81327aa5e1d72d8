package core

import (
	"errors"

	"arenanet/pkg/geom"
	"arenanet/pkg/history"
	"arenanet/pkg/schedule"
)

var (
	ErrEmptyMap      = errors.New("地图模板为空")
	ErrRaggedMap     = errors.New("地图模板行宽不一致")
	ErrDuplicateID   = errors.New("实体编号重复")
	ErrEntityMissing = errors.New("实体不存在")
)

// World 竞技场状态（纯逻辑，不包含渲染）。只在模拟循环中访问。
type World struct {
	Map      *GameMap
	Entities []*Entity
	History  *history.Store
	Clock    schedule.Clock
}

// NewWorld 创建世界，历史选项作用于每个实体
func NewWorld(clock schedule.Clock, m *GameMap, opts ...history.Option) *World {
	if m == nil {
		m = NewGameMap(1)
	}
	return &World{
		Map:      m,
		Entities: make([]*Entity, 0),
		History:  history.NewStore(clock, opts...),
		Clock:    clock,
	}
}

// Spawn 在出生点创建实体并加入世界
func (w *World) Spawn(id EntityID, team int) (*Entity, error) {
	if w.Entity(id) != nil {
		return nil, ErrDuplicateID
	}
	pos := w.Map.SpawnPoint(len(w.Entities))
	e := NewEntity(id, team, pos, w.History.Track(int32(id)))
	w.Entities = append(w.Entities, e)
	e.Teleport(pos)
	return e, nil
}

// AddEntity 加入已创建的实体
func (w *World) AddEntity(e *Entity) error {
	if w.Entity(e.ID) != nil {
		return ErrDuplicateID
	}
	if e.History == nil {
		e.History = w.History.Track(int32(e.ID))
		e.History.SetLive(e.Position, e.Rotation)
	}
	w.Entities = append(w.Entities, e)
	return nil
}

// RemoveEntity 移除实体及其历史
func (w *World) RemoveEntity(id EntityID) error {
	for i, e := range w.Entities {
		if e.ID == id {
			w.Entities = append(w.Entities[:i], w.Entities[i+1:]...)
			w.History.Remove(int32(id))
			return nil
		}
	}
	return ErrEntityMissing
}

// Entity 根据编号查找实体
func (w *World) Entity(id EntityID) *Entity {
	for _, e := range w.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Update 推进所有实体 dt 秒并记录位姿
func (w *World) Update(dt float64) {
	for _, e := range w.Entities {
		e.Move(dt, w.Map)
	}
}

// TraceWorld 只检测静态场景
func (w *World) TraceWorld(start, end geom.Vec3, radius float64) (WorldHit, bool) {
	return w.Map.Trace(start, end, radius)
}

// AliveCount 存活实体数
func (w *World) AliveCount() int {
	n := 0
	for _, e := range w.Entities {
		if e.Alive() {
			n++
		}
	}
	return n
}
