package game

// 对局模式
const (
	ModeSuddenDeath = "sudden-death"
	ModeZobboBattle = "zobbo-battle"
)

// Mode 描述房间的对局模式。Rounds 仅对 zobbo-battle 有意义。
type Mode struct {
	Kind   string `json:"kind"`
	Rounds int    `json:"rounds,omitempty"`
}

// DefaultMode 默认三局 zobbo-battle
func DefaultMode() Mode {
	return Mode{Kind: ModeZobboBattle, Rounds: 3}
}

// Normalize fills in defaults for a client-supplied mode.
func (m Mode) Normalize() Mode {
	switch m.Kind {
	case ModeSuddenDeath:
		return Mode{Kind: ModeSuddenDeath}
	case ModeZobboBattle:
		if m.Rounds <= 0 {
			m.Rounds = 3
		}
		return Mode{Kind: ModeZobboBattle, Rounds: m.Rounds}
	default:
		return DefaultMode()
	}
}
