package history

import (
	"arenanet/pkg/geom"
	"arenanet/pkg/schedule"
)

// Store 按实体编号管理位姿历史。只在模拟循环内访问，不加锁。
type Store struct {
	clock  schedule.Clock
	opts   []Option
	tracks map[int32]*Track
}

// NewStore 创建历史存储，opts 应用到每个新建的 Track
func NewStore(clock schedule.Clock, opts ...Option) *Store {
	return &Store{
		clock:  clock,
		opts:   opts,
		tracks: make(map[int32]*Track),
	}
}

// Track 返回实体的历史，不存在时创建
func (s *Store) Track(id int32) *Track {
	t, ok := s.tracks[id]
	if !ok {
		t = NewTrack(s.clock, s.opts...)
		s.tracks[id] = t
	}
	return t
}

// Append 追加样本
func (s *Store) Append(id int32, sample Sample) bool {
	return s.Track(id).Append(sample)
}

// RewindLocation 实体在 predictionTime 秒前的位置；没有记录的实体返回 ok=false
func (s *Store) RewindLocation(id int32, predictionTime float64) (geom.Vec3, bool) {
	t, ok := s.tracks[id]
	if !ok {
		return geom.Vec3{}, false
	}
	return t.RewindLocation(predictionTime), true
}

// Remove 实体离开时删除历史
func (s *Store) Remove(id int32) {
	delete(s.tracks, id)
}

// Len 有历史的实体数
func (s *Store) Len() int {
	return len(s.tracks)
}
