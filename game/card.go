package game

import (
	"encoding/json"
	"fmt"
)

// Rank 牌面大小，Ace=1 .. King=13
type Rank uint8

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var rankNames = [...]string{
	"ace", "two", "three", "four", "five", "six", "seven",
	"eight", "nine", "ten", "jack", "queen", "king",
}

func (r Rank) String() string {
	if r < Ace || r > King {
		return fmt.Sprintf("rank(%d)", uint8(r))
	}
	return rankNames[r-1]
}

func (r Rank) MarshalJSON() ([]byte, error) {
	if r < Ace || r > King {
		return nil, fmt.Errorf("invalid rank %d", uint8(r))
	}
	return json.Marshal(r.String())
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range rankNames {
		if n == name {
			*r = Rank(i + 1)
			return nil
		}
	}
	return fmt.Errorf("unknown rank %q", name)
}

// Suit 花色
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

var suitNames = [...]string{"clubs", "diamonds", "hearts", "spades"}

func (s Suit) String() string {
	if s > Spades {
		return fmt.Sprintf("suit(%d)", uint8(s))
	}
	return suitNames[s]
}

// IsRed reports whether the suit is diamonds or hearts.
func (s Suit) IsRed() bool {
	return s == Diamonds || s == Hearts
}

func (s Suit) MarshalJSON() ([]byte, error) {
	if s > Spades {
		return nil, fmt.Errorf("invalid suit %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range suitNames {
		if n == name {
			*s = Suit(i)
			return nil
		}
	}
	return fmt.Errorf("unknown suit %q", name)
}

// Card 是不可变的牌面值
type Card struct {
	Rank Rank
	Suit Suit
}

// Points 计分：A=1..10, J=11, Q=12，红K=13，黑K=0
func (c Card) Points() int {
	if c.Rank == King {
		if c.Suit.IsRed() {
			return 13
		}
		return 0
	}
	return int(c.Rank)
}

// grantsPower reports whether discarding this deck-drawn card unlocks a power.
// Ranks 5-10, Jack and Queen always do; a King only when red.
func (c Card) grantsPower() bool {
	switch c.Rank {
	case Five, Six, Seven, Eight, Nine, Ten, Jack, Queen:
		return true
	case King:
		return c.Suit.IsRed()
	default:
		return false
	}
}

func (c Card) String() string {
	return c.Rank.String() + " of " + c.Suit.String()
}

// PublicCard 对局中可见的牌信息：只暴露点数和是否红K
type PublicCard struct {
	Rank      Rank `json:"rank"`
	IsRedKing bool `json:"is_red_king"`
}

// Public returns the rank-only view used for drawn cards and peeks.
func (c Card) Public() PublicCard {
	return PublicCard{Rank: c.Rank, IsRedKing: c.Rank == King && c.Suit.IsRed()}
}

// RevealedCard 终局揭示用的完整牌面
type RevealedCard struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// Reveal returns the full rank+suit view used only in the terminal reveal.
func (c Card) Reveal() RevealedCard {
	return RevealedCard{Rank: c.Rank, Suit: c.Suit}
}
