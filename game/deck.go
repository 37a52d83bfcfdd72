package game

import (
	"math/rand"
)

// DeckSize 标准52张
const DeckSize = 52

// newDeck 生成并洗乱一副完整的牌
func newDeck(rng *rand.Rand) []Card {
	deck := make([]Card, 0, DeckSize)
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Ace; rank <= King; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	shuffleCards(rng, deck)
	return deck
}

func shuffleCards(rng *rand.Rand, cards []Card) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
