package server

import (
	"fmt"

	"arenanet/pkg/protocol"
)

// Session 竞技场看到的一条玩家连接
type Session interface {
	ID() int32
	Send(data []byte) error
	Close()
	CloseWithoutNotify()
	SetPlayerID(id int32)
	RoundTripMs() float64
}

// sendMessage 序列化后放入发送队列
func sendMessage(s Session, msg protocol.Message) error {
	if s == nil {
		return fmt.Errorf("会话为空")
	}
	data, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", msg.MessageType(), err)
	}
	return s.Send(data)
}
