package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"arenanet/internal/config"
	"arenanet/internal/stats"
	"arenanet/internal/telemetry"
	"arenanet/pkg/core"
)

var ErrNotListening = errors.New("服务器尚未监听")

// GameServer 游戏服务器
type GameServer struct {
	cfg    *config.Config
	log    zerolog.Logger
	arenas *ArenaManager

	// 网络
	listener ServerListener

	// 控制
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

type Option func(*ArenaDeps)

// WithMetrics 记录开火与结算计数
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *ArenaDeps) { d.Metrics = m }
}

// WithSink 记录每一发的结算结果，调用方负责关闭
func WithSink(s stats.Sink) Option {
	return func(d *ArenaDeps) { d.Sink = s }
}

// NewGameServer 创建新的游戏服务器
func NewGameServer(cfg *config.Config, log zerolog.Logger, opts ...Option) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())

	deps := ArenaDeps{
		Config: cfg,
		Logger: log,
		Tokens: NewTokenIssuer(cfg.Server.JWTSecret, cfg.Server.SessionTTL),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &GameServer{
		cfg:      cfg,
		log:      log,
		arenas:   NewArenaManager(ctx, deps),
		ctx:      ctx,
		cancel:   cancel,
		shutdown: make(chan struct{}),
	}
}

// Listen 打开监听端口并启动竞技场
func (s *GameServer) Listen() error {
	listener, err := newListener(s.cfg.Server.Proto, s.cfg.Server.Addr, s.log)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	s.listener = listener
	s.arenas.Run()

	s.log.Info().
		Str("addr", listener.Addr().String()).
		Str("proto", s.cfg.Server.Proto).
		Int("tps", s.cfg.Server.TPS).
		Msg("服务器监听中")
	return nil
}

// Start 启动服务器，阻塞到 Shutdown
func (s *GameServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve 在 Listen 之后接受连接，阻塞到 Shutdown
func (s *GameServer) Serve() error {
	if s.listener == nil {
		return ErrNotListening
	}

	s.wg.Add(1)
	go s.acceptLoop()

	<-s.shutdown
	return nil
}

// Addr 实际监听地址，Listen 之后有效
func (s *GameServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown 优雅关闭服务器
func (s *GameServer) Shutdown() {
	s.once.Do(func() {
		s.log.Info().Msg("正在关闭服务器...")

		s.cancel()
		s.arenas.Shutdown()

		if s.listener != nil {
			s.listener.Close()
		}

		close(s.shutdown)
		s.wg.Wait()

		s.log.Info().Msg("服务器已关闭")
	})
}

// Stats 各竞技场统计信息
func (s *GameServer) Stats() map[string]ArenaStats {
	return s.arenas.Stats()
}

func (s *GameServer) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn().Err(err).Msg("接受连接失败")
				continue
			}
		}

		s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("新连接")

		connection := NewConnection(conn, s)
		s.wg.Add(1)
		go connection.Handle(s.ctx, &s.wg)
	}
}

func (s *GameServer) handleJoin(conn *Connection, req *JoinEvent) error {
	arena, id, err := s.arenas.Join(conn, req)
	if err != nil {
		return err
	}
	s.attach(conn, arena, id)
	return nil
}

func (s *GameServer) handleReconnect(conn *Connection, req *ReconnectEvent) error {
	if req == nil {
		return ErrInvalidToken
	}
	arena, id, err := s.arenas.Reconnect(conn, req.SessionToken)
	if err != nil {
		return err
	}
	s.attach(conn, arena, id)
	return nil
}

// attach 加入期间连接已经断开时补发离开
func (s *GameServer) attach(conn *Connection, arena *Arena, id core.EntityID) {
	conn.arena.Store(arena)
	if conn.isClosed() {
		arena.Leave(conn, id)
	}
}

// removePlayer 连接断开时通知所在竞技场
func (s *GameServer) removePlayer(conn *Connection) {
	arena := conn.arena.Load()
	playerID := conn.getPlayerID()
	if arena == nil || playerID < 0 {
		return
	}
	arena.Leave(conn, core.EntityID(playerID))
}
