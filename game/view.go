package game

import "github.com/google/uuid"

// SlotView 格位的公开视图：只暴露有无牌和变更版本号，
// 版本号让客户端能察觉"同一格的牌被换过"。
type SlotView struct {
	Empty   bool   `json:"empty"`
	Version uint64 `json:"version"`
}

// SeatView 一侧座位的全部格位视图。
type SeatView struct {
	Slots []SlotView `json:"slots"`
}

// Update 面向单个玩家的对局快照，不含任何暗牌信息。
// DiscardTop 与 ZobboRemaining 为空时序列化成 null 而非省略。
type Update struct {
	You            SeatView    `json:"you"`
	Opponent       SeatView    `json:"opponent"`
	Active         uuid.UUID   `json:"active"`
	Stage          string      `json:"stage"`
	DiscardTop     *PublicCard `json:"discard_top"`
	DeckCount      int         `json:"deck_count"`
	DiscardCount   int         `json:"discard_count"`
	ZobboRemaining *int        `json:"zobbo_remaining"`
}

func viewSeat(seat *Seat) SeatView {
	slots := make([]SlotView, len(seat.Slots))
	for i, c := range seat.Slots {
		slots[i] = SlotView{Empty: c == nil, Version: seat.Versions[i]}
	}
	return SeatView{Slots: slots}
}

// UpdateFor 生成 viewer 视角的快照。viewer 不在局内时返回 false。
func (g *State) UpdateFor(viewer uuid.UUID) (Update, bool) {
	seat, ok := g.Seats[viewer]
	if !ok {
		return Update{}, false
	}
	oppID, ok := g.Opponent(viewer)
	if !ok {
		return Update{}, false
	}
	upd := Update{
		You:          viewSeat(seat),
		Opponent:     viewSeat(g.Seats[oppID]),
		Active:       g.Active,
		Stage:        g.Stage.Kind.String(),
		DiscardTop:   g.DiscardTop(),
		DeckCount:    len(g.Deck),
		DiscardCount: len(g.Discard),
	}
	if g.Zobbo != nil {
		n := g.Zobbo.Remaining
		upd.ZobboRemaining = &n
	}
	return upd, true
}
