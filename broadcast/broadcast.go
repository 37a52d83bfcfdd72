// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/logger"
)

// QueueSize 每条连接的出站缓冲帧数，写满说明消费端已经跟不上了
const QueueSize = 256

// Queue 单条连接的出站队列。房间在持锁状态下入队，
// 真正的网络写入由连接自己的 writer 协程完成，锁内绝不做 I/O。
type Queue struct {
	ch         chan []byte
	mu         sync.Mutex
	closed     bool
	onOverflow func()
}

// NewQueue 创建出站队列。onOverflow 在缓冲写满时被调用一次，
// 一般用来踢掉过慢的连接。
func NewQueue(size int, onOverflow func()) *Queue {
	if size <= 0 {
		size = QueueSize
	}
	return &Queue{
		ch:         make(chan []byte, size),
		onOverflow: onOverflow,
	}
}

// TryEnqueue 非阻塞投递一帧。队列已关闭时丢弃；
// 队列写满时丢弃并触发 onOverflow。
func (q *Queue) TryEnqueue(data []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	select {
	case q.ch <- data:
		return true
	default:
		// 消费端阻塞，放弃这条连接
		q.closed = true
		close(q.ch)
		if q.onOverflow != nil {
			go q.onOverflow()
		}
		return false
	}
}

// C 供 writer 协程消费的只读通道，关闭即表示该下线
func (q *Queue) C() <-chan []byte {
	return q.ch
}

// Close 幂等关闭
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Fanout 一个房间的消息分发器：玩家ID -> 出站队列。
// 同一玩家重连时新队列顶替旧队列，旧队列随即关闭。
type Fanout struct {
	mu     sync.RWMutex
	queues map[uuid.UUID]*Queue
}

func NewFanout() *Fanout {
	return &Fanout{queues: make(map[uuid.UUID]*Queue)}
}

// Register 挂接一名玩家的出站队列，被顶替的旧队列就地关闭
func (f *Fanout) Register(playerID uuid.UUID, q *Queue) {
	f.mu.Lock()
	old := f.queues[playerID]
	f.queues[playerID] = q
	f.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// Unregister 摘除一名玩家的队列。仅当当前挂接的正是 q 时才摘除，
// 避免断线清理误伤刚完成的重连。
func (f *Fanout) Unregister(playerID uuid.UUID, q *Queue) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queues[playerID] != q {
		return false
	}
	delete(f.queues, playerID)
	return true
}

// Broadcast 序列化一次，投递给房间里的每条连接
func (f *Fanout) Broadcast(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorf("marshal broadcast: %v", err)
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, q := range f.queues {
		q.TryEnqueue(data)
	}
}

// Unicast 只发给一名玩家，掉线时静默丢弃
func (f *Fanout) Unicast(playerID uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorf("marshal unicast: %v", err)
		return
	}

	f.mu.RLock()
	q, ok := f.queues[playerID]
	f.mu.RUnlock()
	if ok {
		q.TryEnqueue(data)
	}
}
