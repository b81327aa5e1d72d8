package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arenanet/pkg/core"
)

const (
	DefaultArenaID  = "default" // 默认竞技场 ID
	MaxArenas       = 100       // 最大竞技场数
	cleanupInterval = 30 * time.Second
)

var ErrTooManyArenas = errors.New("竞技场数量已达上限")

type ArenaManager struct {
	ctx      context.Context
	deps     ArenaDeps
	log      zerolog.Logger
	arenas   map[string]*Arena // 竞技场 ID -> 竞技场
	mu       sync.RWMutex      // 保护 arenas
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

// NewArenaManager 创建竞技场管理器
func NewArenaManager(ctx context.Context, deps ArenaDeps) *ArenaManager {
	return &ArenaManager{
		ctx:      ctx,
		deps:     deps,
		log:      deps.Logger,
		arenas:   make(map[string]*Arena),
		shutdown: make(chan struct{}),
	}
}

// Run 启动清理协程并创建默认竞技场
func (m *ArenaManager) Run() {
	m.wg.Add(1)
	go m.cleanupLoop()

	_, _ = m.getOrCreate(DefaultArenaID)
}

func (m *ArenaManager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.cleanupEmpty()
		}
	}
}

// cleanupEmpty 关闭没有玩家的竞技场，默认竞技场保留
func (m *ArenaManager) cleanupEmpty() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, arena := range m.arenas {
		if id == DefaultArenaID {
			continue
		}
		if arena.Stats().Players == 0 {
			m.log.Info().Str("arena", id).Msg("清理空竞技场")
			arena.Shutdown()
			delete(m.arenas, id)
		}
	}
}

func (m *ArenaManager) getOrCreate(id string) (*Arena, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if arena, ok := m.arenas[id]; ok {
		return arena, nil
	}
	if len(m.arenas) >= MaxArenas {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyArenas, MaxArenas)
	}

	m.log.Info().Str("arena", id).Msg("创建竞技场")
	arena := NewArena(m.ctx, id, m.deps)
	m.arenas[id] = arena

	m.wg.Add(1)
	go arena.Run(&m.wg)

	return arena, nil
}

func (m *ArenaManager) lookup(id string) (*Arena, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	arena, ok := m.arenas[id]
	return arena, ok
}

// Join 玩家加入竞技场，空 ID 表示默认竞技场
func (m *ArenaManager) Join(session Session, req *JoinEvent) (*Arena, core.EntityID, error) {
	id := DefaultArenaID
	if req != nil && req.ArenaID != "" {
		id = req.ArenaID
	}

	arena, err := m.getOrCreate(id)
	if err != nil {
		return nil, core.NoEntity, err
	}
	playerID, err := arena.Join(session, req)
	if err != nil {
		return nil, core.NoEntity, err
	}
	return arena, playerID, nil
}

// Reconnect 校验令牌后接管原来的角色
func (m *ArenaManager) Reconnect(session Session, token string) (*Arena, core.EntityID, error) {
	if m.deps.Tokens == nil {
		return nil, core.NoEntity, ErrInvalidToken
	}
	playerID, arenaID, err := m.deps.Tokens.Verify(token)
	if err != nil {
		return nil, core.NoEntity, err
	}
	arena, ok := m.lookup(arenaID)
	if !ok {
		return nil, core.NoEntity, fmt.Errorf("竞技场 %s 不存在", arenaID)
	}
	id := core.EntityID(playerID)
	if err := arena.Reconnect(session, id); err != nil {
		return nil, core.NoEntity, err
	}
	return arena, id, nil
}

// Stats 各竞技场统计信息
func (m *ArenaManager) Stats() map[string]ArenaStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]ArenaStats, len(m.arenas))
	for id, arena := range m.arenas {
		out[id] = arena.Stats()
	}
	return out
}

// Shutdown 关闭所有竞技场并等待循环退出
func (m *ArenaManager) Shutdown() {
	m.once.Do(func() {
		close(m.shutdown)

		m.mu.Lock()
		m.log.Info().Int("arenas", len(m.arenas)).Msg("关闭竞技场")
		for _, arena := range m.arenas {
			arena.Shutdown()
		}
		m.mu.Unlock()

		m.wg.Wait()
		m.log.Info().Msg("所有竞技场已关闭")
	})
}
