// session/session.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/broadcast"
	"github.com/wfunc/zobbo/game"
	"github.com/wfunc/zobbo/logger"
	"github.com/wfunc/zobbo/network"
	"github.com/wfunc/zobbo/room"
)

// Metrics 会话热路径上的计数回调。实现必须并发安全，nil 关闭统计。
// *monitor.Monitor 直接满足该接口。
type Metrics interface {
	IncMessagesReceived()
	IncProtocolErrors()
	ObserveMessageLatency(time.Duration)
}

// Session 把一条 WebSocket 连接绑定到房间里的一个座位。
// 读循环跑在 Run 的调用方 goroutine 上，写循环独占一个
// goroutine，两边只通过广播队列见面。
type Session struct {
	PlayerID  uuid.UUID
	Room      *room.Room
	Conn      network.Connection
	CreatedAt time.Time

	metrics    Metrics
	lastActive time.Time
	writerDone chan struct{}
}

func NewSession(pid uuid.UUID, r *room.Room, conn network.Connection, metrics Metrics) *Session {
	now := time.Now()
	return &Session{
		PlayerID:   pid,
		Room:       r,
		Conn:       conn,
		CreatedAt:  now,
		metrics:    metrics,
		lastActive: now,
		writerDone: make(chan struct{}),
	}
}

// Run 驱动整个会话直到连接断开。返回时连接已关闭、
// 座位已标记离线。
func (s *Session) Run() error {
	queue := broadcast.NewQueue(broadcast.QueueSize, func() {
		// 消费过慢的连接直接踢掉，读循环随即退出。
		logger.Log.Warnf("会话 %s 发送队列积压, 断开连接", s.PlayerID)
		s.Conn.Close()
	})

	if err := s.Room.Attach(s.PlayerID, queue); err != nil {
		s.Conn.Close()
		return err
	}

	go s.writeLoop(queue)

	s.Conn.SetHeartbeat(network.PongWait)
	for {
		data, err := s.Conn.ReadMessage()
		if err != nil {
			break
		}
		s.lastActive = time.Now()
		s.dispatch(queue, data)
	}

	s.Room.Detach(s.PlayerID, queue)
	queue.Close()
	<-s.writerDone
	return nil
}

// writeLoop 独占连接的发送端：排空队列、按节拍发 ping，
// 队列关闭后先冲掉积压消息再发关闭帧。
func (s *Session) writeLoop(queue *broadcast.Queue) {
	ticker := time.NewTicker(network.PingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case data, ok := <-queue.C():
			if !ok {
				s.Conn.SendCloseFrame()
				return
			}
			if err := s.Conn.WriteMessage(data); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.Conn.Ping(); err != nil {
				return
			}
		}
	}
}

func (s *Session) dispatch(queue *broadcast.Queue, data []byte) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.IncMessagesReceived()
	}

	msg, err := network.DecodeClientMessage(data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncProtocolErrors()
		}
		s.Room.ReplyError(s.PlayerID, "Bad message: "+err.Error())
		return
	}

	var actionErr error
	switch msg.Type {
	case network.MsgPing:
		// pong 不经过房间，直接回到本连接的队列里保序。
		if frame, err := json.Marshal(network.NewPong()); err == nil {
			queue.TryEnqueue(frame)
		}
	case network.MsgReady:
		actionErr = s.Room.HandleReady(s.PlayerID)
	case network.MsgDrawDeck:
		actionErr = s.Room.HandleDraw(s.PlayerID, game.SourceDeck)
	case network.MsgDrawDiscard:
		actionErr = s.Room.HandleDraw(s.PlayerID, game.SourceDiscard)
	case network.MsgSwapWithHand:
		actionErr = s.Room.HandleSwapWithHand(s.PlayerID, *msg.Index)
	case network.MsgDiscardDrawn:
		actionErr = s.Room.HandleDiscardDrawn(s.PlayerID)
	case network.MsgMatchTop:
		actionErr = s.Room.HandleMatchTop(s.PlayerID, *msg.Index)
	case network.MsgCallZobbo:
		actionErr = s.Room.HandleCallZobbo(s.PlayerID)
	case network.MsgPowerCheckOwn:
		actionErr = s.Room.HandlePowerCheckOwn(s.PlayerID, *msg.Index)
	case network.MsgPowerCheckOpp:
		actionErr = s.Room.HandlePowerCheckOpp(s.PlayerID, *msg.Index)
	case network.MsgPowerSwapWithDeck:
		actionErr = s.Room.HandlePowerSwapWithDeck(s.PlayerID, *msg.Index)
	case network.MsgPowerSwapWithOpp:
		actionErr = s.Room.HandlePowerSwapWithOpp(s.PlayerID, *msg.MyIndex, *msg.OppIndex)
	case network.MsgPowerOppSwapWithDeck:
		actionErr = s.Room.HandlePowerOppSwapWithDeck(s.PlayerID, *msg.OppIndex)
	case network.MsgEndTurn:
		actionErr = s.Room.HandleEndTurn(s.PlayerID)
	}

	if actionErr != nil {
		if s.metrics != nil {
			s.metrics.IncProtocolErrors()
		}
		s.Room.ReplyError(s.PlayerID, actionErr.Error())
	}
	if s.metrics != nil {
		s.metrics.ObserveMessageLatency(time.Since(start))
	}
}

// LastActive 最近一次收到客户端消息的时间
func (s *Session) LastActive() time.Time {
	return s.lastActive
}

// Manager 按玩家跟踪活跃会话。同一玩家重连时新会话顶掉旧的。
type Manager struct {
	sessions map[uuid.UUID]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *Manager) Add(s *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[s.PlayerID] = s
}

// Remove 只在登记的会话仍是本会话时移除，避免重连后
// 旧连接的收尾误删新会话。
func (m *Manager) Remove(s *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if cur, ok := m.sessions[s.PlayerID]; ok && cur == s {
		delete(m.sessions, s.PlayerID)
	}
}

func (m *Manager) Get(pid uuid.UUID) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.sessions[pid]
	return s, ok
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
