package game

import (
	"errors"

	"github.com/google/uuid"
)

// 规则校验失败的封闭错误集。动作被拒绝时对局状态保证不变。
var (
	ErrGameFinished   = errors.New("game is over")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrWrongStage     = errors.New("action not allowed in the current stage")
	ErrWrongPower     = errors.New("held card does not grant that power")
	ErrEmptyPile      = errors.New("nothing left to draw there")
	ErrEmptyDiscard   = errors.New("discard pile is empty")
	ErrSlotOutOfRange = errors.New("slot index out of range")
	ErrSlotEmpty      = errors.New("slot is empty")
	ErrNoSeat         = errors.New("player has no seat in this game")
	ErrZobboSelf      = errors.New("the active player cannot call zobbo")
	ErrHoldingCard    = errors.New("resolve the held card before ending the turn")
)

func (g *State) checkTurn(pid uuid.UUID) error {
	if g.Finished {
		return ErrGameFinished
	}
	if g.Active != pid {
		return ErrNotYourTurn
	}
	return nil
}

func (g *State) seatOf(pid uuid.UUID) (*Seat, error) {
	seat, ok := g.Seats[pid]
	if !ok {
		return nil, ErrNoSeat
	}
	return seat, nil
}

func (g *State) opponentSeat(pid uuid.UUID) (uuid.UUID, *Seat, error) {
	oppID, ok := g.Opponent(pid)
	if !ok {
		return uuid.Nil, nil, ErrNoSeat
	}
	seat, err := g.seatOf(oppID)
	return oppID, seat, err
}

// powerCard 校验当前处于 Power 阶段并返回持牌
func (g *State) powerCard(pid uuid.UUID) (Card, error) {
	if err := g.checkTurn(pid); err != nil {
		return Card{}, err
	}
	if g.Stage.Kind != StagePower {
		return Card{}, ErrWrongStage
	}
	return g.Stage.Card, nil
}

// Draw 从牌库或弃牌堆顶摸一张进入 Holding 阶段。
// 牌库为空时会先回收弃牌堆（保留堆顶）。
func (g *State) Draw(pid uuid.UUID, src DrawSource) (Card, error) {
	if err := g.checkTurn(pid); err != nil {
		return Card{}, err
	}
	if g.Stage.Kind != StageAwaitDraw {
		return Card{}, ErrWrongStage
	}
	var card Card
	switch src {
	case SourceDeck:
		c, ok := g.drawFromDeck()
		if !ok {
			return Card{}, ErrEmptyPile
		}
		card = c
	case SourceDiscard:
		if len(g.Discard) == 0 {
			return Card{}, ErrEmptyPile
		}
		card = g.Discard[len(g.Discard)-1]
		g.Discard = g.Discard[:len(g.Discard)-1]
	default:
		return Card{}, ErrWrongStage
	}
	g.Stage = Stage{Kind: StageHolding, Card: card, Source: src}
	return card, nil
}

// SwapWithHand 用持牌替换自己的一个有牌格位，被换出的牌进弃牌堆，
// 立即结束回合（不触发任何能力）。
func (g *State) SwapWithHand(pid uuid.UUID, index int) (bool, error) {
	if err := g.checkTurn(pid); err != nil {
		return false, err
	}
	if g.Stage.Kind != StageHolding {
		return false, ErrWrongStage
	}
	seat, err := g.seatOf(pid)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(seat.Slots) {
		return false, ErrSlotOutOfRange
	}
	if seat.Slots[index] == nil {
		return false, ErrSlotEmpty
	}
	replaced := *seat.Slots[index]
	held := g.Stage.Card
	seat.Slots[index] = &held
	seat.Versions[index]++
	g.Discard = append(g.Discard, replaced)
	return g.endTurn(), nil
}

// DiscardDrawn 弃掉持牌。仅当牌来自牌库且点数在能力集
// {5,6,7,8,9,10,J,Q,红K} 内时进入 Power 阶段；黑K或来自
// 弃牌堆的牌一律直接结束回合。
func (g *State) DiscardDrawn(pid uuid.UUID) (powered bool, finished bool, err error) {
	if err := g.checkTurn(pid); err != nil {
		return false, false, err
	}
	if g.Stage.Kind != StageHolding {
		return false, false, ErrWrongStage
	}
	held := g.Stage.Card
	src := g.Stage.Source
	g.Discard = append(g.Discard, held)
	if src == SourceDeck && held.grantsPower() {
		g.Stage = Stage{Kind: StagePower, Card: held}
		return true, false, nil
	}
	return false, g.endTurn(), nil
}

// MatchTop 尝试用自己的一个格位对上弃牌堆顶的点数，任意一方都可发起，
// 但仅限等待摸牌阶段。对上则该格清空（牌入弃牌堆）且不消耗回合；
// 对错则发起者的下一个回合被跳过，除此之外状态不变。
func (g *State) MatchTop(pid uuid.UUID, index int) (bool, error) {
	if g.Finished {
		return false, ErrGameFinished
	}
	if g.Stage.Kind != StageAwaitDraw {
		return false, ErrWrongStage
	}
	if len(g.Discard) == 0 {
		return false, ErrEmptyDiscard
	}
	seat, err := g.seatOf(pid)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(seat.Slots) {
		return false, ErrSlotOutOfRange
	}
	if seat.Slots[index] == nil {
		return false, ErrSlotEmpty
	}
	top := g.Discard[len(g.Discard)-1]
	if seat.Slots[index].Rank != top.Rank {
		g.SkipNext[pid] = true
		return false, nil
	}
	card := *seat.Slots[index]
	seat.Slots[index] = nil
	seat.Versions[index]++
	g.Discard = append(g.Discard, card)
	return true, nil
}

// CallZobbo 非行动方在等待摸牌阶段叫停，启动两回合倒计时。
// 已有叫停时重复调用是无害的空操作。
func (g *State) CallZobbo(pid uuid.UUID) error {
	if g.Finished {
		return ErrGameFinished
	}
	if g.Stage.Kind != StageAwaitDraw {
		return ErrWrongStage
	}
	if g.Active == pid {
		return ErrZobboSelf
	}
	if _, err := g.seatOf(pid); err != nil {
		return err
	}
	if g.Zobbo == nil {
		g.Zobbo = &ZobboCall{Caller: pid, Remaining: 2}
	}
	return nil
}

// PowerCheckOwn 5-8能力：看自己一格。格位无效时能力不消耗。
func (g *State) PowerCheckOwn(pid uuid.UUID, index int) (PublicCard, bool, error) {
	card, err := g.powerCard(pid)
	if err != nil {
		return PublicCard{}, false, err
	}
	if card.Rank < Five || card.Rank > Eight {
		return PublicCard{}, false, ErrWrongPower
	}
	seat, err := g.seatOf(pid)
	if err != nil {
		return PublicCard{}, false, err
	}
	if index < 0 || index >= len(seat.Slots) {
		return PublicCard{}, false, ErrSlotOutOfRange
	}
	if seat.Slots[index] == nil {
		return PublicCard{}, false, ErrSlotEmpty
	}
	peek := seat.Slots[index].Public()
	return peek, g.endTurn(), nil
}

// PowerCheckOpp 9-10能力：看对手一格。格位无效时能力不消耗。
func (g *State) PowerCheckOpp(pid uuid.UUID, index int) (PublicCard, bool, error) {
	card, err := g.powerCard(pid)
	if err != nil {
		return PublicCard{}, false, err
	}
	if card.Rank != Nine && card.Rank != Ten {
		return PublicCard{}, false, ErrWrongPower
	}
	_, seat, err := g.opponentSeat(pid)
	if err != nil {
		return PublicCard{}, false, err
	}
	if index < 0 || index >= len(seat.Slots) {
		return PublicCard{}, false, ErrSlotOutOfRange
	}
	if seat.Slots[index] == nil {
		return PublicCard{}, false, ErrSlotEmpty
	}
	peek := seat.Slots[index].Public()
	return peek, g.endTurn(), nil
}

// PowerSwapWithDeck J能力：自己一格与牌库顶互换，换下的牌压回牌库顶。
// 牌库（含回收后）为空或格位本就无牌时不做改动，能力照样消耗并结束回合。
func (g *State) PowerSwapWithDeck(pid uuid.UUID, index int) (bool, error) {
	card, err := g.powerCard(pid)
	if err != nil {
		return false, err
	}
	if card.Rank != Jack {
		return false, ErrWrongPower
	}
	seat, err := g.seatOf(pid)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(seat.Slots) {
		return false, ErrSlotOutOfRange
	}
	g.swapSlotWithDeck(seat, index)
	return g.endTurn(), nil
}

// PowerSwapWithOpp Q能力：己方一格与对方一格原子互换。
// 任一操作数越界或为空则整个动作失败，两格保持原样，回合不结束。
func (g *State) PowerSwapWithOpp(pid uuid.UUID, myIndex, oppIndex int) (bool, error) {
	card, err := g.powerCard(pid)
	if err != nil {
		return false, err
	}
	if card.Rank != Queen {
		return false, ErrWrongPower
	}
	mySeat, err := g.seatOf(pid)
	if err != nil {
		return false, err
	}
	_, oppSeat, err := g.opponentSeat(pid)
	if err != nil {
		return false, err
	}
	if myIndex < 0 || myIndex >= len(mySeat.Slots) {
		return false, ErrSlotOutOfRange
	}
	if mySeat.Slots[myIndex] == nil {
		return false, ErrSlotEmpty
	}
	if oppIndex < 0 || oppIndex >= len(oppSeat.Slots) {
		return false, ErrSlotOutOfRange
	}
	if oppSeat.Slots[oppIndex] == nil {
		return false, ErrSlotEmpty
	}
	mySeat.Slots[myIndex], oppSeat.Slots[oppIndex] = oppSeat.Slots[oppIndex], mySeat.Slots[myIndex]
	mySeat.Versions[myIndex]++
	oppSeat.Versions[oppIndex]++
	return g.endTurn(), nil
}

// PowerOppSwapWithDeck 红K能力：对手一格与牌库顶互换，机制同J。
func (g *State) PowerOppSwapWithDeck(pid uuid.UUID, oppIndex int) (bool, error) {
	card, err := g.powerCard(pid)
	if err != nil {
		return false, err
	}
	if card.Rank != King || !card.Suit.IsRed() {
		return false, ErrWrongPower
	}
	_, oppSeat, err := g.opponentSeat(pid)
	if err != nil {
		return false, err
	}
	if oppIndex < 0 || oppIndex >= len(oppSeat.Slots) {
		return false, ErrSlotOutOfRange
	}
	g.swapSlotWithDeck(oppSeat, oppIndex)
	return g.endTurn(), nil
}

// swapSlotWithDeck 把一个格位与牌库顶互换；格位为空或摸不到牌则不变。
func (g *State) swapSlotWithDeck(seat *Seat, index int) {
	if seat.Slots[index] == nil {
		return
	}
	newCard, ok := g.drawFromDeck()
	if !ok {
		return
	}
	old := *seat.Slots[index]
	seat.Slots[index] = &newCard
	seat.Versions[index]++
	g.Deck = append(g.Deck, old)
}

// EndTurn 行动方主动结束回合。等待摸牌阶段相当于让过，
// Power 阶段相当于放弃能力；持牌未处理时拒绝。
func (g *State) EndTurn(pid uuid.UUID) (bool, error) {
	if err := g.checkTurn(pid); err != nil {
		return false, err
	}
	if g.Stage.Kind == StageHolding {
		return false, ErrHoldingCard
	}
	return g.endTurn(), nil
}
