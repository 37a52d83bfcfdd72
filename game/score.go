package game

import "github.com/google/uuid"

// Result 终局结算：各自的总点数、亮出的底牌以及胜者。
// 平局时 Winner 为 nil。
type Result struct {
	Scores map[uuid.UUID]int
	Cards  map[uuid.UUID][]RevealedCard
	Winner *uuid.UUID
}

// FinalResult 汇总对局结果。只计入仍有牌的格位，
// 已被对子消掉的空格既不计分也不出现在亮牌列表里。
func (g *State) FinalResult() Result {
	res := Result{
		Scores: make(map[uuid.UUID]int, len(g.Seats)),
		Cards:  make(map[uuid.UUID][]RevealedCard, len(g.Seats)),
	}
	for pid, seat := range g.Seats {
		score := 0
		cards := make([]RevealedCard, 0, len(seat.Slots))
		for _, slot := range seat.Slots {
			if slot == nil {
				continue
			}
			score += slot.Points()
			cards = append(cards, slot.Reveal())
		}
		res.Scores[pid] = score
		res.Cards[pid] = cards
	}
	var winner *uuid.UUID
	best := -1
	tied := false
	for pid, score := range res.Scores {
		switch {
		case best < 0 || score < best:
			best = score
			p := pid
			winner = &p
			tied = false
		case score == best:
			tied = true
		}
	}
	if tied {
		winner = nil
	}
	res.Winner = winner
	return res
}
