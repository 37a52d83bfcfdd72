// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// 调度精度
const tickResolution = 100 * time.Millisecond

// job 一条已登记的定时任务
type job struct {
	id    int64
	runAt time.Time
	every time.Duration // 0 表示一次性任务
	fn    func()
	index int
}

// jobHeap 按到期时间排序的最小堆
type jobHeap []*job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	j := old[n-1]
	j.index = -1
	*h = old[:n-1]
	return j
}

// Scheduler 以 100ms 的精度驱动延迟与周期任务。
// 回调在各自的 goroutine 里执行，不会阻塞扫描循环。
type Scheduler struct {
	mu     sync.Mutex
	jobs   jobHeap
	nextID int64
	stop   chan struct{}
	once   sync.Once
}

func NewScheduler() *Scheduler {
	s := &Scheduler{nextID: 1, stop: make(chan struct{})}
	heap.Init(&s.jobs)
	go s.loop()
	return s
}

// After 注册一个 delay 后执行一次的任务，返回可用于 Cancel 的编号。
func (s *Scheduler) After(delay time.Duration, fn func()) int64 {
	return s.add(delay, 0, fn)
}

// Every 注册一个周期任务，首次执行在一个周期之后。
func (s *Scheduler) Every(interval time.Duration, fn func()) int64 {
	return s.add(interval, interval, fn)
}

func (s *Scheduler) add(delay, every time.Duration, fn func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &job{
		id:    s.nextID,
		runAt: time.Now().Add(delay),
		every: every,
		fn:    fn,
	}
	s.nextID++
	heap.Push(&s.jobs, j)
	return j.id
}

// Cancel 撤销一个尚未到期的任务，编号不存在时为空操作。
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, j := range s.jobs {
		if j.id == id {
			heap.Remove(&s.jobs, i)
			break
		}
	}
}

// Stop 终止调度循环。已经触发的回调继续执行，未到期的任务丢弃。
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			for _, j := range s.due(now) {
				go j.fn()
			}
		case <-s.stop:
			return
		}
	}
}

// due 弹出全部到期任务，周期任务顺手排回堆里
func (s *Scheduler) due(now time.Time) []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*job
	for s.jobs.Len() > 0 && !s.jobs[0].runAt.After(now) {
		j := heap.Pop(&s.jobs).(*job)
		ready = append(ready, j)
		if j.every > 0 {
			j.runAt = now.Add(j.every)
			heap.Push(&s.jobs, j)
		}
	}
	return ready
}
