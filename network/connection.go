// network/connection.go
package network

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WriteWait 单次写帧的最长耗时
	WriteWait = 10 * time.Second
	// PongWait 两次心跳应答之间允许的最大间隔
	PongWait = 60 * time.Second
	// PingPeriod 必须小于 PongWait，否则对端还没来得及答复就会超时
	PingPeriod = (PongWait * 9) / 10
	// MaxMessageSize 客户端帧都很小，超限直接断开
	MaxMessageSize = 512
)

type Connection interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Ping() error
	SendCloseFrame() error
	SetHeartbeat(timeout time.Duration)
	Close() error
	RemoteAddr() net.Addr
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	conn.SetReadLimit(MaxMessageSize)
	return &WSConnection{conn: conn}
}

// ReadMessage 读取一帧完整消息，阻塞直到有数据或连接出错
func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteMessage 以文本帧发送，gorilla 不允许并发写，这里统一加锁
func (c *WSConnection) WriteMessage(data []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConnection) Ping() error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *WSConnection) SendCloseFrame() error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// SetHeartbeat 设置读超时，并在收到 pong 时顺延
func (c *WSConnection) SetHeartbeat(timeout time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(timeout))
	})
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
