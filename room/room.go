// room/room.go
package room

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/broadcast"
	"github.com/wfunc/zobbo/game"
	"github.com/wfunc/zobbo/logger"
	"github.com/wfunc/zobbo/models"
	"github.com/wfunc/zobbo/network"
)

var (
	ErrRoomFull       = errors.New("room is full")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrGameNotStarted = errors.New("game has not started")
)

// MaxPlayers Zobbo 是双人对局
const MaxPlayers = 2

// PlayerRecord 名册里的一名玩家。断线只翻转 Connected，
// 座位和对局状态始终保留，等同一玩家重连。
type PlayerRecord struct {
	Name      string
	Connected bool
	Ready     bool
}

// Room 是游戏房间的核心结构：名册、权威对局状态和出站分发器。
// 一把 mu 串行化房间的全部变更；锁内只做内存操作和非阻塞入队，
// 真正的网络写入发生在各连接的 writer 协程里。
type Room struct {
	ID        uuid.UUID
	Mode      game.Mode
	CreatedAt time.Time

	mu        sync.Mutex
	players   map[uuid.UUID]*PlayerRecord
	order     []uuid.UUID // 入房顺序
	started   bool
	startedAt time.Time
	game      *game.State

	fanout   *broadcast.Fanout
	stats    Stats
	recorder Recorder
	rng      *rand.Rand
}

// NewRoom 创建一个新房间。stats 与 recorder 可以为 nil。
func NewRoom(mode game.Mode, stats Stats, recorder Recorder) *Room {
	return &Room{
		ID:        uuid.New(),
		Mode:      mode.Normalize(),
		CreatedAt: time.Now(),
		players:   make(map[uuid.UUID]*PlayerRecord, MaxPlayers),
		fanout:    broadcast.NewFanout(),
		stats:     stats,
		recorder:  recorder,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Join 登记一名新玩家并分配ID。座位一旦占下就不再回收。
func (r *Room) Join(name string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= MaxPlayers {
		return uuid.Nil, ErrRoomFull
	}
	pid := uuid.New()
	r.players[pid] = &PlayerRecord{Name: name}
	r.order = append(r.order, pid)
	return pid, nil
}

// HasPlayer 判断玩家是否属于本房间
func (r *Room) HasPlayer(pid uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.players[pid]
	return ok
}

// Attach 挂接一条已通过认证的连接：注册出站队列并标记在线，
// 先给本人发 Welcome，再向全房间广播大厅状态。
func (r *Room) Attach(pid uuid.UUID, q *broadcast.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[pid]
	if !ok {
		return ErrUnknownPlayer
	}
	r.fanout.Register(pid, q)
	p.Connected = true

	lobby := r.lobbyLocked()
	r.fanout.Unicast(pid, network.NewWelcome(pid, lobby))
	r.fanout.Broadcast(network.NewLobbyUpdate(lobby))
	return nil
}

// Detach 断线清理。只在当前挂接的还是这条连接的队列时生效，
// 重连已经顶替上来时这里什么都不改。
func (r *Room) Detach(pid uuid.UUID, q *broadcast.Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.fanout.Unregister(pid, q) {
		return
	}
	if p, ok := r.players[pid]; ok {
		p.Connected = false
	}
	r.fanout.Broadcast(network.NewLobbyUpdate(r.lobbyLocked()))
}

// ReplyError 把一条错误消息回给出错的玩家
func (r *Room) ReplyError(pid uuid.UUID, msg string) {
	r.fanout.Unicast(pid, network.NewError(msg))
}

// HandleReady 玩家就绪；双方都在线且就绪时发牌开局。
func (r *Room) HandleReady(pid uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[pid]
	if !ok {
		return ErrUnknownPlayer
	}
	p.Ready = true

	justStarted := false
	if !r.started && len(r.players) == MaxPlayers && r.allSetLocked() {
		r.started = true
		r.startedAt = time.Now()
		starting := r.order[r.rng.Intn(len(r.order))]
		r.game = game.New(r.order[0], r.order[1], starting, r.rng)
		justStarted = true
	}

	r.fanout.Broadcast(network.NewLobbyUpdate(r.lobbyLocked()))
	if justStarted {
		r.fanout.Broadcast(network.NewGameStart(r.game.Active, r.Mode))
		r.broadcastGameLocked()
		for _, id := range r.order {
			for _, peek := range r.game.InitialPeeks(id) {
				r.fanout.Unicast(id, network.NewPeekResult(network.PeekTargetSelf, peek.Index, peek.Card))
			}
		}
		if r.stats != nil {
			r.stats.GameStarted()
		}
		logger.Log.Infof("房间 %s 开局, 先手 %s", r.ID, r.game.Active)
	}
	return nil
}

// HandleDraw 摸牌。牌面只发给摸牌人，其余人只能从快照
// 看到牌库计数的变化。
func (r *Room) HandleDraw(pid uuid.UUID, src game.DrawSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	card, err := g.Draw(pid, src)
	if err != nil {
		return err
	}
	r.fanout.Unicast(pid, network.NewDrawnCard(card.Public()))
	r.broadcastGameLocked()
	return nil
}

// HandleSwapWithHand 用持牌换手
func (r *Room) HandleSwapWithHand(pid uuid.UUID, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	finished, err := g.SwapWithHand(pid, index)
	if err != nil {
		return err
	}
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandleDiscardDrawn 弃掉持牌，可能进入能力阶段
func (r *Room) HandleDiscardDrawn(pid uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	_, finished, err := g.DiscardDrawn(pid)
	if err != nil {
		return err
	}
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandleMatchTop 对子尝试。成功与罚跳都会广播新快照，
// 非法尝试（空堆、空格、越界）原样返回错误。
func (r *Room) HandleMatchTop(pid uuid.UUID, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	if _, err := g.MatchTop(pid, index); err != nil {
		return err
	}
	r.broadcastGameLocked()
	return nil
}

// HandleCallZobbo 非行动方叫停
func (r *Room) HandleCallZobbo(pid uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	if err := g.CallZobbo(pid); err != nil {
		return err
	}
	r.broadcastGameLocked()
	return nil
}

// HandlePowerCheckOwn 5-8能力
func (r *Room) HandlePowerCheckOwn(pid uuid.UUID, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	peek, finished, err := g.PowerCheckOwn(pid, index)
	if err != nil {
		return err
	}
	r.fanout.Unicast(pid, network.NewPeekResult(network.PeekTargetSelf, index, peek))
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandlePowerCheckOpp 9-10能力
func (r *Room) HandlePowerCheckOpp(pid uuid.UUID, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	peek, finished, err := g.PowerCheckOpp(pid, index)
	if err != nil {
		return err
	}
	r.fanout.Unicast(pid, network.NewPeekResult(network.PeekTargetOpponent, index, peek))
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandlePowerSwapWithDeck J能力
func (r *Room) HandlePowerSwapWithDeck(pid uuid.UUID, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	finished, err := g.PowerSwapWithDeck(pid, index)
	if err != nil {
		return err
	}
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandlePowerSwapWithOpp Q能力
func (r *Room) HandlePowerSwapWithOpp(pid uuid.UUID, myIndex, oppIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	finished, err := g.PowerSwapWithOpp(pid, myIndex, oppIndex)
	if err != nil {
		return err
	}
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandlePowerOppSwapWithDeck 红K能力
func (r *Room) HandlePowerOppSwapWithDeck(pid uuid.UUID, oppIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	finished, err := g.PowerOppSwapWithDeck(pid, oppIndex)
	if err != nil {
		return err
	}
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// HandleEndTurn 主动结束回合
func (r *Room) HandleEndTurn(pid uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.gameLocked(pid)
	if err != nil {
		return err
	}
	finished, err := g.EndTurn(pid)
	if err != nil {
		return err
	}
	r.broadcastGameLocked()
	if finished {
		r.finishLocked()
	}
	return nil
}

// Snapshot 运维视角的只读信息
type Snapshot struct {
	ID        uuid.UUID
	Mode      game.Mode
	CreatedAt time.Time
	Started   bool
	Finished  bool
	Players   []network.LobbyPlayer
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		ID:        r.ID,
		Mode:      r.Mode,
		CreatedAt: r.CreatedAt,
		Started:   r.started,
		Players:   r.lobbyLocked().Players,
	}
	if r.game != nil {
		snap.Finished = r.game.Finished
	}
	return snap
}

// --- 内部工具，调用方必须已持有 r.mu ---

func (r *Room) gameLocked(pid uuid.UUID) (*game.State, error) {
	if _, ok := r.players[pid]; !ok {
		return nil, ErrUnknownPlayer
	}
	if !r.started || r.game == nil {
		return nil, ErrGameNotStarted
	}
	return r.game, nil
}

func (r *Room) allSetLocked() bool {
	for _, p := range r.players {
		if !p.Connected || !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) lobbyLocked() network.Lobby {
	players := make([]network.LobbyPlayer, 0, len(r.order))
	for _, pid := range r.order {
		p := r.players[pid]
		players = append(players, network.LobbyPlayer{
			ID:        pid,
			Name:      p.Name,
			Connected: p.Connected,
			Ready:     p.Ready,
		})
	}
	return network.Lobby{RoomID: r.ID, Mode: r.Mode, Players: players}
}

// broadcastGameLocked 给每名玩家各发一份以自己为视角的对局快照
func (r *Room) broadcastGameLocked() {
	for _, pid := range r.order {
		if upd, ok := r.game.UpdateFor(pid); ok {
			r.fanout.Unicast(pid, network.NewGameUpdate(upd))
		}
	}
}

// finishLocked 终局：给双方各发一份 GameOver（分数按视角交换），
// 上报监控并异步归档战绩。
func (r *Room) finishLocked() {
	res := r.game.FinalResult()
	for _, pid := range r.order {
		opp, ok := r.game.Opponent(pid)
		if !ok {
			continue
		}
		r.fanout.Unicast(pid, network.NewGameOver(
			res.Scores[pid], res.Scores[opp],
			res.Cards[pid], res.Cards[opp],
			res.Winner,
		))
	}
	if r.stats != nil {
		r.stats.GameCompleted()
	}
	if r.recorder != nil {
		rec := r.matchRecordLocked(res)
		go r.recorder.RecordMatch(rec)
	}
	logger.Log.Infof("房间 %s 对局结束, winner=%v", r.ID, res.Winner)
}

func (r *Room) matchRecordLocked(res game.Result) *models.MatchRecord {
	rec := &models.MatchRecord{
		RoomID:          r.ID,
		Mode:            r.Mode.Kind,
		WinnerID:        res.Winner,
		FinishedAt:      time.Now(),
		DurationSeconds: int64(time.Since(r.startedAt) / time.Second),
	}
	for _, pid := range r.order {
		outcome := models.OutcomeDraw
		if res.Winner != nil {
			if *res.Winner == pid {
				outcome = models.OutcomeWin
			} else {
				outcome = models.OutcomeLose
			}
		}
		rec.Players = append(rec.Players, models.MatchPlayer{
			PlayerID: pid,
			Name:     r.players[pid].Name,
			Score:    res.Scores[pid],
			Outcome:  outcome,
		})
	}
	return rec
}
