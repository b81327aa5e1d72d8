package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"arenanet/pkg/core"
	"arenanet/pkg/latency"
	"arenanet/pkg/protocol"
)

const (
	MaxPacketSize = 4096            // 最大消息大小
	readTimeout   = 5 * time.Second // 读取超时
	writeTimeout  = 1 * time.Second // 写入超时

	heartbeatInterval = 1 * time.Second
	heartbeatTimeout  = 15 * time.Second

	// 往返延迟平滑系数
	rttSmoothing = 0.125
)

var (
	ErrSendQueueFull  = errors.New("发送队列满")
	ErrConnClosed     = errors.New("连接已关闭")
	ErrAlreadyJoined  = errors.New("玩家已加入")
	ErrNotJoined      = errors.New("尚未加入竞技场")
	ErrUnknownMessage = errors.New("未知消息类型")
)

// Connection 表示一个客户端连接
type Connection struct {
	conn     net.Conn
	server   *GameServer
	log      zerolog.Logger
	playerID int32
	arena    atomic.Pointer[Arena]
	limiter  *limiter

	// 发送队列
	sendChan chan []byte
	closeCh  chan struct{}
	closed   bool
	closeMu  sync.Mutex

	lastRecvTime atomic.Value
	rttBits      atomic.Uint64 // float64 毫秒，0 表示还没有样本
}

var _ latency.RTTSource = (*Connection)(nil)

// NewConnection 创建新连接，连接到服务器上
func NewConnection(conn net.Conn, server *GameServer) *Connection {
	c := &Connection{
		conn:     conn,
		server:   server,
		playerID: -1,                     // -1 表示未分配
		sendChan: make(chan []byte, 256), // 发送队列缓冲区
		closeCh:  make(chan struct{}),
		limiter:  newLimiter(server.cfg.Limits),
	}
	c.log = server.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	c.lastRecvTime.Store(time.Now())
	return c
}

// Handle 处理连接
func (c *Connection) Handle(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	c.log.Debug().Msg("连接处理开始")

	wg.Add(1)
	go c.startHeartbeat(ctx, wg)

	// 启动发送循环
	wg.Add(1)
	go c.sendLoop(ctx, wg)

	// 启动接收循环
	wg.Add(1)
	go c.receiveLoop(ctx, wg)

	// 等待上下文取消或连接关闭
	select {
	case <-ctx.Done():
	case <-c.closeCh:
	}

	c.Close()
}

// Close 关闭连接
func (c *Connection) Close() {
	c.closeWithNotify(true)
}

// CloseWithoutNotify 关闭连接但不触发移除玩家逻辑
func (c *Connection) CloseWithoutNotify() {
	c.closeWithNotify(false)
}

func (c *Connection) closeWithNotify(notify bool) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}

	c.closed = true
	close(c.closeCh)

	// 关闭网络连接
	if c.conn != nil {
		c.conn.Close()
	}

	// 关闭发送通道
	close(c.sendChan)
	c.closeMu.Unlock()

	// 竞技场循环可能正在 Send，通知放在锁外
	if notify {
		c.server.removePlayer(c)
	}

	c.log.Info().Int32("player", c.getPlayerID()).Msg("连接已关闭")
}

func (c *Connection) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

// Send 发送数据（异步）
func (c *Connection) Send(data []byte) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.sendChan <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// sendLoop 发送循环
func (c *Connection) sendLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-c.sendChan:
			if !ok {
				return
			}

			// 长度前缀与数据体合并成一次写入，ws 上正好是一条消息
			frame := make([]byte, 4+len(data))
			binary.BigEndian.PutUint32(frame, uint32(len(data)))
			copy(frame[4:], data)

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.conn.Write(frame); err != nil {
				c.log.Warn().Err(err).Int32("player", c.getPlayerID()).Msg("发送数据失败")
				c.Close()
				return
			}
		}
	}
}

// receiveLoop 接收循环
func (c *Connection) receiveLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		default:
			// 读取消息长度（4 字节）
			var length uint32
			_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
			if err := binary.Read(c.conn, binary.BigEndian, &length); err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					c.log.Warn().Int32("player", c.getPlayerID()).Msg("读取超时")
				} else if err != io.EOF {
					c.log.Warn().Err(err).Int32("player", c.getPlayerID()).Msg("读取长度失败")
				}
				c.Close()
				return
			}

			if length > MaxPacketSize {
				c.log.Warn().Uint32("bytes", length).Int32("player", c.getPlayerID()).Msg("消息过大")
				c.Close()
				return
			}

			if length == 0 {
				continue
			}

			data := make([]byte, length)
			_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, err := io.ReadFull(c.conn, data); err != nil {
				c.log.Warn().Err(err).Int32("player", c.getPlayerID()).Msg("读取数据失败")
				c.Close()
				return
			}

			c.onMessageReceived()
			if err := c.handleMessage(data); err != nil {
				c.log.Debug().Err(err).Int32("player", c.getPlayerID()).Msg("处理消息失败")
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Connection) handleMessage(data []byte) error {
	event, err := DecodePacket(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}

	switch event.Kind {
	case EventJoin:
		if c.getPlayerID() >= 0 {
			return ErrAlreadyJoined
		}
		if err := c.server.handleJoin(c, event.Join); err != nil {
			_ = c.sendPacket(protocol.NewJoinRejectedPacket(err.Error()))
			return fmt.Errorf("处理加入请求失败: %w", err)
		}

	case EventReconnect:
		if c.getPlayerID() >= 0 {
			return ErrAlreadyJoined
		}
		if err := c.server.handleReconnect(c, event.Reconnect); err != nil {
			_ = c.sendPacket(protocol.NewJoinRejectedPacket(err.Error()))
			return fmt.Errorf("重连失败: %w", err)
		}

	case EventPing:
		return c.sendPacket(protocol.NewPongPacket(event.Ping.ClientTime, time.Now().UnixMilli()))

	case EventPong:
		c.handlePong(event.Pong)

	case EventInput, EventFire, EventStopFire, EventBeamHit, EventStopBeam:
		arena := c.arena.Load()
		playerID := c.getPlayerID()
		if arena == nil || playerID < 0 {
			return ErrNotJoined
		}
		if !c.limiter.allow(event.Kind) {
			c.log.Debug().Int32("player", playerID).Int("kind", int(event.Kind)).Msg("超出速率限制，丢弃消息")
			return nil
		}
		arena.Dispatch(core.EntityID(playerID), event)

	default:
		return ErrUnknownMessage
	}

	return nil
}

func (c *Connection) sendPacket(pkt *protocol.Packet) error {
	data, err := protocol.MarshalPacket(pkt)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// String 返回连接的字符串表示
func (c *Connection) String() string {
	if c.getPlayerID() >= 0 {
		return fmt.Sprintf("Connection{%d, %s}", c.getPlayerID(), c.conn.RemoteAddr())
	}
	return fmt.Sprintf("Connection{%s}", c.conn.RemoteAddr())
}

func (c *Connection) getPlayerID() int32 {
	return atomic.LoadInt32(&c.playerID)
}

func (c *Connection) ID() int32 {
	return c.getPlayerID()
}

func (c *Connection) SetPlayerID(playerID int32) {
	atomic.StoreInt32(&c.playerID, playerID)
}

// RoundTripMs 平滑后的往返延迟
func (c *Connection) RoundTripMs() float64 {
	return math.Float64frombits(c.rttBits.Load())
}

func (c *Connection) startHeartbeat(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			lastRecv, _ := c.lastRecvTime.Load().(time.Time)
			if !lastRecv.IsZero() && time.Since(lastRecv) > heartbeatTimeout {
				c.log.Warn().Int32("player", c.getPlayerID()).Msg("心跳超时")
				c.Close()
				return
			}
			_ = c.sendPacket(protocol.NewPingPacket(time.Now().UnixMilli()))
		}
	}
}

func (c *Connection) handlePong(pong *PongEvent) {
	if pong == nil || pong.ClientTime <= 0 {
		return
	}
	sample := float64(time.Now().UnixMilli() - pong.ClientTime)
	if sample < 0 {
		return
	}
	c.observeRTT(sample)
}

func (c *Connection) observeRTT(sample float64) {
	prev := c.RoundTripMs()
	next := sample
	if prev > 0 {
		next = prev + rttSmoothing*(sample-prev)
	}
	c.rttBits.Store(math.Float64bits(next))
}

func (c *Connection) onMessageReceived() {
	c.lastRecvTime.Store(time.Now())
}
