package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// SlotsPerSeat 每个座位的暗牌格数
const SlotsPerSeat = 6

// StageKind 回合子阶段
type StageKind uint8

const (
	StageAwaitDraw StageKind = iota
	StageHolding
	StagePower
)

var stageNames = [...]string{"await_draw", "holding", "power"}

func (k StageKind) String() string {
	if int(k) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[k]
}

// DrawSource 摸牌来源
type DrawSource uint8

const (
	SourceDeck DrawSource = iota
	SourceDiscard
)

// Stage 是回合阶段的封闭标签联合。Card 在 Holding 和 Power 阶段有效，
// Source 仅在 Holding 阶段有效；其余字段组合一律视为非法并拒绝。
type Stage struct {
	Kind   StageKind
	Card   Card
	Source DrawSource
}

// Seat 一名玩家的6格暗牌位。Versions 与 Slots 等长，
// 每次对应格位变化时恰好自增一次，供客户端做差量刷新。
type Seat struct {
	Slots    []*Card
	Versions []uint64
}

func newSeat(cards []Card) *Seat {
	s := &Seat{
		Slots:    make([]*Card, SlotsPerSeat),
		Versions: make([]uint64, SlotsPerSeat),
	}
	for i := range cards {
		c := cards[i]
		s.Slots[i] = &c
	}
	return s
}

// Occupied 当前有牌的格数
func (s *Seat) Occupied() int {
	n := 0
	for _, c := range s.Slots {
		if c != nil {
			n++
		}
	}
	return n
}

// ZobboCall 记录叫停状态；一旦设置只会随终局消失
type ZobboCall struct {
	Caller    uuid.UUID
	Remaining int
}

// State 是一个房间的权威对局状态。调用方负责串行化访问，
// State 自身不加锁。
type State struct {
	Deck     []Card
	Discard  []Card
	Seats    map[uuid.UUID]*Seat
	Active   uuid.UUID
	Stage    Stage
	SkipNext map[uuid.UUID]bool
	Zobbo    *ZobboCall
	Finished bool

	rng *rand.Rand
}

// New 发牌并建立初始状态：双方各6张暗牌，版本归零，弃牌堆为空，
// starting 先手，等待摸牌。rng 为 nil 时使用时间种子。
func New(a, b, starting uuid.UUID, rng *rand.Rand) *State {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	deck := newDeck(rng)
	seats := make(map[uuid.UUID]*Seat, 2)
	for _, pid := range [2]uuid.UUID{a, b} {
		hand := deck[len(deck)-SlotsPerSeat:]
		deck = deck[:len(deck)-SlotsPerSeat]
		seats[pid] = newSeat(hand)
	}
	return &State{
		Deck:     deck,
		Discard:  make([]Card, 0, DeckSize),
		Seats:    seats,
		Active:   starting,
		Stage:    Stage{Kind: StageAwaitDraw},
		SkipNext: make(map[uuid.UUID]bool),
		rng:      rng,
	}
}

// Opponent 返回另一个座位的玩家
func (g *State) Opponent(pid uuid.UUID) (uuid.UUID, bool) {
	for id := range g.Seats {
		if id != pid {
			return id, true
		}
	}
	return uuid.Nil, false
}

// DiscardTop 弃牌堆顶（公开视图），堆空时为 nil
func (g *State) DiscardTop() *PublicCard {
	if len(g.Discard) == 0 {
		return nil
	}
	top := g.Discard[len(g.Discard)-1].Public()
	return &top
}

// ensureDeck 牌库耗尽时回收弃牌堆：保留堆顶，其余洗回牌库。
func (g *State) ensureDeck() {
	if len(g.Deck) > 0 || len(g.Discard) <= 1 {
		return
	}
	top := g.Discard[len(g.Discard)-1]
	rest := g.Discard[:len(g.Discard)-1]
	g.Deck = append(g.Deck, rest...)
	shuffleCards(g.rng, g.Deck)
	g.Discard = g.Discard[:0]
	g.Discard = append(g.Discard, top)
}

// drawFromDeck 从牌库顶摸一张，必要时先回收弃牌堆
func (g *State) drawFromDeck() (Card, bool) {
	g.ensureDeck()
	if len(g.Deck) == 0 {
		return Card{}, false
	}
	card := g.Deck[len(g.Deck)-1]
	g.Deck = g.Deck[:len(g.Deck)-1]
	return card, true
}

// endTurn 公共收尾：轮转 active（被跳过的座位消耗一次 skip 标记，
// 主动权保持不变），阶段复位为等待摸牌，zobbo 计数递减；
// 计数恰好归零时对局终结，返回 true，且之后任何动作都会被拒绝。
func (g *State) endTurn() bool {
	if next, ok := g.Opponent(g.Active); ok {
		if g.SkipNext[next] {
			delete(g.SkipNext, next)
		} else {
			g.Active = next
		}
	}
	g.Stage = Stage{Kind: StageAwaitDraw}
	if g.Zobbo != nil && g.Zobbo.Remaining > 0 {
		g.Zobbo.Remaining--
		if g.Zobbo.Remaining == 0 {
			g.Finished = true
			return true
		}
	}
	return false
}

// Peek 开局自视结果：格位下标和公开牌面
type Peek struct {
	Index int
	Card  PublicCard
}

// InitialPeeks 开局时每名玩家可看自己前三格
func (g *State) InitialPeeks(pid uuid.UUID) []Peek {
	seat, ok := g.Seats[pid]
	if !ok {
		return nil
	}
	peeks := make([]Peek, 0, 3)
	for idx := 0; idx < 3 && idx < len(seat.Slots); idx++ {
		if seat.Slots[idx] != nil {
			peeks = append(peeks, Peek{Index: idx, Card: seat.Slots[idx].Public()})
		}
	}
	return peeks
}
