// room/registry.go
package room

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/game"
)

const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
}

// Registry 分片的房间表。按房间ID散列到分片，
// 各分片独立加锁，房间之间互不阻塞。
type Registry struct {
	shards   [shardCount]*shard
	stats    Stats
	recorder Recorder
}

// NewRegistry 创建房间表；stats 与 recorder 会透传给每个新房间
func NewRegistry(stats Stats, recorder Recorder) *Registry {
	reg := &Registry{stats: stats, recorder: recorder}
	for i := range reg.shards {
		reg.shards[i] = &shard{rooms: make(map[uuid.UUID]*Room)}
	}
	return reg
}

func (reg *Registry) shardFor(id uuid.UUID) *shard {
	h := fnv.New32a()
	h.Write(id[:])
	return reg.shards[h.Sum32()%shardCount]
}

// Create 创建并登记一个新房间
func (reg *Registry) Create(mode game.Mode) *Room {
	room := NewRoom(mode, reg.stats, reg.recorder)
	s := reg.shardFor(room.ID)
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
	return room
}

// Get 按ID查房间
func (reg *Registry) Get(id uuid.UUID) (*Room, bool) {
	s := reg.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	return room, ok
}

// Count 当前登记的房间总数
func (reg *Registry) Count() int {
	n := 0
	for _, s := range reg.shards {
		s.mu.RLock()
		n += len(s.rooms)
		s.mu.RUnlock()
	}
	return n
}

// Range 遍历全部房间，fn 返回 false 时停止。
// 遍历前先复制分片内容，fn 里可以安全地做耗时操作。
func (reg *Registry) Range(fn func(*Room) bool) {
	for _, s := range reg.shards {
		s.mu.RLock()
		rooms := make([]*Room, 0, len(s.rooms))
		for _, r := range s.rooms {
			rooms = append(rooms, r)
		}
		s.mu.RUnlock()

		for _, r := range rooms {
			if !fn(r) {
				return
			}
		}
	}
}
