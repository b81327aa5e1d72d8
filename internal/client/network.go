package client

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
	kcp "github.com/xtaci/kcp-go/v5"

	"arenanet/internal/transport"
	"arenanet/pkg/core"
	"arenanet/pkg/protocol"
)

const (
	MaxPacketSize = 4096

	dialTimeout  = 5 * time.Second
	joinTimeout  = 10 * time.Second
	writeTimeout = 1 * time.Second

	pingInterval = 1 * time.Second
	rttSmoothing = 0.125
)

var (
	ErrSendQueueFull = errors.New("发送队列满")
	ErrNotConnected  = errors.New("未连接服务器")
	ErrJoinRejected  = errors.New("服务器拒绝加入")
	ErrJoinTimeout   = errors.New("等待加入响应超时")
)

// JoinOptions 加入竞技场的参数
type JoinOptions struct {
	Name    string
	Team    int32
	ArenaID string
	Weapons []string // 为空时使用服务器默认配置
}

// NetworkClient 网络客户端
type NetworkClient struct {
	conn       net.Conn
	serverAddr string
	proto      string
	log        zerolog.Logger

	// 玩家信息
	playerID atomic.Int32
	welcome  *protocol.JoinResponse

	// 网络
	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// 消息队列
	joinChan     chan *protocol.JoinResponse
	snapshotChan chan *protocol.Snapshot
	ackChan      chan *protocol.FireAck
	shotChan     chan *protocol.ShotEvent
	leaveChan    chan int32

	// 发送队列
	inputSeq atomic.Int32
	sendChan chan []byte

	rttBits atomic.Uint64

	// 错误
	errChan chan error
}

// NewNetworkClient 创建网络客户端
func NewNetworkClient(serverAddr, proto string, log zerolog.Logger) *NetworkClient {
	ctx, cancel := context.WithCancel(context.Background())

	nc := &NetworkClient{
		serverAddr:   serverAddr,
		proto:        proto,
		log:          log.With().Str("server", serverAddr).Str("proto", proto).Logger(),
		ctx:          ctx,
		cancel:       cancel,
		joinChan:     make(chan *protocol.JoinResponse, 1),
		snapshotChan: make(chan *protocol.Snapshot, 256),
		ackChan:      make(chan *protocol.FireAck, 256),
		shotChan:     make(chan *protocol.ShotEvent, 256),
		leaveChan:    make(chan int32, 16),
		sendChan:     make(chan []byte, 256),
		errChan:      make(chan error, 1),
	}
	nc.playerID.Store(-1)
	return nc
}

// Connect 连接服务器并加入竞技场，收到加入响应后返回
func (nc *NetworkClient) Connect(opts JoinOptions) error {
	nc.log.Info().Msg("连接到服务器")

	conn, err := nc.dial()
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	nc.conn = conn
	nc.connected.Store(true)

	nc.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("已连接到服务器")

	nc.wg.Add(3)
	go nc.receiveLoop()
	go nc.sendLoop()
	go nc.pingLoop()

	if err := nc.Send(&protocol.JoinRequest{
		PlayerName: opts.Name,
		Team:       opts.Team,
		ArenaID:    opts.ArenaID,
		Weapons:    opts.Weapons,
	}); err != nil {
		nc.Close()
		return fmt.Errorf("发送加入请求失败: %w", err)
	}

	select {
	case resp := <-nc.joinChan:
		if !resp.Success {
			nc.Close()
			return fmt.Errorf("%w: %s", ErrJoinRejected, resp.Error)
		}
		nc.welcome = resp
		nc.playerID.Store(resp.PlayerID)
		nc.log.Info().Int32("player", resp.PlayerID).Str("arena", resp.ArenaID).Msg("已加入竞技场")
		return nil

	case err := <-nc.errChan:
		nc.Close()
		return err

	case <-time.After(joinTimeout):
		nc.Close()
		return ErrJoinTimeout
	}
}

func (nc *NetworkClient) dial() (net.Conn, error) {
	switch nc.proto {
	case "", "tcp":
		return net.DialTimeout("tcp", nc.serverAddr, dialTimeout)
	case "kcp":
		conn, err := kcp.DialWithOptions(nc.serverAddr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		conn.SetStreamMode(true)
		return conn, nil
	case "ws":
		conn, err := transport.DialWS(nc.serverAddr, dialTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("不支持的协议: %s", nc.proto)
	}
}

// Close 关闭连接
func (nc *NetworkClient) Close() {
	nc.closeOnce.Do(func() {
		nc.connected.Store(false)
		nc.cancel()
		if nc.conn != nil {
			nc.conn.Close()
		}
		nc.wg.Wait()
		nc.log.Info().Msg("网络客户端已关闭")
	})
}

// PlayerID 服务器分配的玩家编号，未加入时为 -1
func (nc *NetworkClient) PlayerID() int32 {
	return nc.playerID.Load()
}

// Welcome 加入响应，包含会话令牌与武器编号表
func (nc *NetworkClient) Welcome() *protocol.JoinResponse {
	return nc.welcome
}

// IsConnected 检查是否已连接
func (nc *NetworkClient) IsConnected() bool {
	return nc.connected.Load()
}

// RoundTripMs 平滑后的往返延迟
func (nc *NetworkClient) RoundTripMs() float64 {
	return math.Float64frombits(nc.rttBits.Load())
}

// ========== 消息接收 ==========

func (nc *NetworkClient) fail(err error) {
	select {
	case nc.errChan <- err:
	default:
	}
}

// receiveLoop 接收循环
func (nc *NetworkClient) receiveLoop() {
	defer nc.wg.Done()
	defer nc.connected.Store(false)

	for {
		select {
		case <-nc.ctx.Done():
			return

		default:
			var length uint32
			if err := binary.Read(nc.conn, binary.BigEndian, &length); err != nil {
				if nc.ctx.Err() == nil {
					nc.fail(fmt.Errorf("读取长度失败: %w", err))
				}
				return
			}

			if length > MaxPacketSize {
				nc.fail(fmt.Errorf("消息过大 (%d bytes)", length))
				return
			}

			if length == 0 {
				continue
			}

			data := make([]byte, length)
			if _, err := io.ReadFull(nc.conn, data); err != nil {
				nc.fail(fmt.Errorf("读取数据失败: %w", err))
				return
			}

			if err := nc.handleMessage(data); err != nil {
				nc.log.Debug().Err(err).Msg("处理消息失败")
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (nc *NetworkClient) handleMessage(data []byte) error {
	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}

	switch pkt.Type {
	case protocol.MessageTypeJoinResponse:
		resp, err := protocol.ParseJoinResponse(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.joinChan <- resp:
		default:
		}

	case protocol.MessageTypeSnapshot:
		snap, err := protocol.ParseSnapshot(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.snapshotChan <- snap:
		default:
			// 队列满，丢弃新快照
		}

	case protocol.MessageTypeFireAck:
		ack, err := protocol.ParseFireAck(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.ackChan <- ack:
		default:
			nc.log.Warn().Uint32("weapon", ack.Weapon).Msg("确认队列满，丢弃确认")
		}

	case protocol.MessageTypeShotEvent:
		shot, err := protocol.ParseShotEvent(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.shotChan <- shot:
		default:
		}

	case protocol.MessageTypePlayerLeave:
		leave, err := protocol.ParsePlayerLeave(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.leaveChan <- leave.PlayerID:
		default:
		}

	case protocol.MessageTypePing:
		ping, err := protocol.ParsePing(pkt)
		if err != nil {
			return err
		}
		return nc.Send(&protocol.Pong{ClientTime: ping.ClientTime, ServerTime: time.Now().UnixMilli()})

	case protocol.MessageTypePong:
		pong, err := protocol.ParsePong(pkt)
		if err != nil {
			return err
		}
		nc.handlePong(pong.ClientTime)

	default:
		return fmt.Errorf("未知消息类型: %s", pkt.Type)
	}

	return nil
}

func (nc *NetworkClient) handlePong(clientTime int64) {
	if clientTime <= 0 {
		return
	}
	sample := float64(time.Now().UnixMilli() - clientTime)
	if sample < 0 {
		return
	}
	prev := nc.RoundTripMs()
	next := sample
	if prev > 0 {
		next = prev + rttSmoothing*(sample-prev)
	}
	nc.rttBits.Store(math.Float64bits(next))
}

// ========== 消息发送 ==========

// sendLoop 发送循环
func (nc *NetworkClient) sendLoop() {
	defer nc.wg.Done()

	for {
		select {
		case <-nc.ctx.Done():
			return

		case data := <-nc.sendChan:
			frame := make([]byte, 4+len(data))
			binary.BigEndian.PutUint32(frame, uint32(len(data)))
			copy(frame[4:], data)

			_ = nc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := nc.conn.Write(frame); err != nil {
				nc.log.Warn().Err(err).Msg("发送数据失败")
				nc.fail(err)
				return
			}
		}
	}
}

// pingLoop 定期测量往返延迟
func (nc *NetworkClient) pingLoop() {
	defer nc.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-nc.ctx.Done():
			return
		case <-ticker.C:
			_ = nc.Send(&protocol.Ping{ClientTime: time.Now().UnixMilli()})
		}
	}
}

// Send 序列化并放入发送队列
func (nc *NetworkClient) Send(msg protocol.Message) error {
	if !nc.IsConnected() {
		return ErrNotConnected
	}
	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case nc.sendChan <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// ========== 输入 ==========

// SendInput 发送移动输入并返回序号，slot 为负数时不切枪
func (nc *NetworkClient) SendInput(in core.Input, slot int) int32 {
	seq := nc.inputSeq.Add(1)
	msg := &protocol.PlayerInput{
		Seq:     seq,
		Forward: in.Forward,
		Back:    in.Back,
		Left:    in.Left,
		Right:   in.Right,
		Slide:   in.Slide,
		Yaw:     float32(in.Yaw),
		Pitch:   float32(in.Pitch),
	}
	if slot >= 0 {
		msg.Switch = true
		msg.Slot = int32(slot)
	}
	if err := nc.Send(msg); err != nil {
		nc.log.Debug().Err(err).Int32("seq", seq).Msg("发送输入失败")
	}
	return seq
}

// ========== 状态接收 ==========

// ReceiveSnapshot 接收快照（非阻塞）
func (nc *NetworkClient) ReceiveSnapshot() *protocol.Snapshot {
	select {
	case snap := <-nc.snapshotChan:
		return snap
	default:
		return nil
	}
}

// ReceiveFireAck 接收开火确认（非阻塞）
func (nc *NetworkClient) ReceiveFireAck() *protocol.FireAck {
	select {
	case ack := <-nc.ackChan:
		return ack
	default:
		return nil
	}
}

// ReceiveShot 接收结算广播（非阻塞）
func (nc *NetworkClient) ReceiveShot() *protocol.ShotEvent {
	select {
	case shot := <-nc.shotChan:
		return shot
	default:
		return nil
	}
}

// ReceivePlayerLeave 接收玩家离开（非阻塞）
func (nc *NetworkClient) ReceivePlayerLeave() int32 {
	select {
	case playerID := <-nc.leaveChan:
		return playerID
	default:
		return -1
	}
}

// Errors 连接出错时收到一个错误
func (nc *NetworkClient) Errors() <-chan error {
	return nc.errChan
}
