package network

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/game"
)

// 客户端 -> 服务端 消息类型
const (
	MsgPing                 = "ping"
	MsgReady                = "ready"
	MsgDrawDeck             = "draw_deck"
	MsgDrawDiscard          = "draw_discard"
	MsgSwapWithHand         = "swap_with_hand"
	MsgDiscardDrawn         = "discard_drawn"
	MsgMatchTop             = "match_top"
	MsgCallZobbo            = "call_zobbo"
	MsgPowerCheckOwn        = "power_check_own"
	MsgPowerCheckOpp        = "power_check_opp"
	MsgPowerSwapWithDeck    = "power_swap_with_deck"
	MsgPowerSwapWithOpp     = "power_swap_with_opp"
	MsgPowerOppSwapWithDeck = "power_opp_swap_with_deck"
	MsgEndTurn              = "end_turn"
)

// 服务端 -> 客户端 消息类型
const (
	MsgWelcome     = "welcome"
	MsgLobbyUpdate = "lobby_update"
	MsgGameStart   = "game_start"
	MsgGameUpdate  = "game_update"
	MsgDrawnCard   = "drawn_card"
	MsgPeekResult  = "peek_result"
	MsgGameOver    = "game_over"
	MsgError       = "error"
	MsgPong        = "pong"
)

// peek_result 的 target 取值
const (
	PeekTargetSelf     = "self"
	PeekTargetOpponent = "opponent"
)

// ClientMessage 客户端帧。所有动作共用一个结构，
// 按类型校验必填的下标字段。
type ClientMessage struct {
	Type     string `json:"type"`
	Index    *int   `json:"index,omitempty"`
	MyIndex  *int   `json:"my_index,omitempty"`
	OppIndex *int   `json:"opp_index,omitempty"`
}

// DecodeClientMessage 解析并校验一帧客户端消息
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgPing, MsgReady, MsgDrawDeck, MsgDrawDiscard, MsgDiscardDrawn, MsgCallZobbo, MsgEndTurn:
	case MsgSwapWithHand, MsgMatchTop, MsgPowerCheckOwn, MsgPowerCheckOpp, MsgPowerSwapWithDeck:
		if msg.Index == nil {
			return nil, fmt.Errorf("%s requires field index", msg.Type)
		}
	case MsgPowerSwapWithOpp:
		if msg.MyIndex == nil || msg.OppIndex == nil {
			return nil, fmt.Errorf("%s requires fields my_index and opp_index", msg.Type)
		}
	case MsgPowerOppSwapWithDeck:
		if msg.OppIndex == nil {
			return nil, fmt.Errorf("%s requires field opp_index", msg.Type)
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}

// LobbyPlayer 大厅里一名玩家的公开信息
type LobbyPlayer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Connected bool      `json:"connected"`
	Ready     bool      `json:"ready"`
}

// Lobby 房间大厅快照
type Lobby struct {
	RoomID  uuid.UUID     `json:"room_id"`
	Mode    game.Mode     `json:"mode"`
	Players []LobbyPlayer `json:"players"`
}

// Welcome 连接建立后发给本人的第一帧
type Welcome struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"player_id"`
	Lobby    Lobby     `json:"lobby"`
}

func NewWelcome(playerID uuid.UUID, lobby Lobby) Welcome {
	return Welcome{Type: MsgWelcome, PlayerID: playerID, Lobby: lobby}
}

// LobbyUpdate 大厅状态变化广播
type LobbyUpdate struct {
	Type  string `json:"type"`
	Lobby Lobby  `json:"lobby"`
}

func NewLobbyUpdate(lobby Lobby) LobbyUpdate {
	return LobbyUpdate{Type: MsgLobbyUpdate, Lobby: lobby}
}

// GameStart 双方就绪后的开局广播
type GameStart struct {
	Type           string    `json:"type"`
	StartingPlayer uuid.UUID `json:"starting_player"`
	Mode           game.Mode `json:"mode"`
}

func NewGameStart(starting uuid.UUID, mode game.Mode) GameStart {
	return GameStart{Type: MsgGameStart, StartingPlayer: starting, Mode: mode}
}

// GameUpdate 对局快照，按接收方视角裁剪
type GameUpdate struct {
	Type   string      `json:"type"`
	Update game.Update `json:"update"`
}

func NewGameUpdate(update game.Update) GameUpdate {
	return GameUpdate{Type: MsgGameUpdate, Update: update}
}

// DrawnCard 摸牌结果，只发给摸牌人
type DrawnCard struct {
	Type string          `json:"type"`
	Card game.PublicCard `json:"card"`
}

func NewDrawnCard(card game.PublicCard) DrawnCard {
	return DrawnCard{Type: MsgDrawnCard, Card: card}
}

// PeekResult 看牌结果，只发给看牌人
type PeekResult struct {
	Type   string          `json:"type"`
	Target string          `json:"target"`
	Index  int             `json:"index"`
	Card   game.PublicCard `json:"card"`
}

func NewPeekResult(target string, index int, card game.PublicCard) PeekResult {
	return PeekResult{Type: MsgPeekResult, Target: target, Index: index, Card: card}
}

// GameOver 终局结算，按接收方视角交换双方分数
type GameOver struct {
	Type      string              `json:"type"`
	YourScore int                 `json:"your_score"`
	OppScore  int                 `json:"opp_score"`
	YouCards  []game.RevealedCard `json:"you_cards"`
	OppCards  []game.RevealedCard `json:"opp_cards"`
	Winner    *uuid.UUID          `json:"winner"`
}

func NewGameOver(yourScore, oppScore int, youCards, oppCards []game.RevealedCard, winner *uuid.UUID) GameOver {
	return GameOver{
		Type:      MsgGameOver,
		YourScore: yourScore,
		OppScore:  oppScore,
		YouCards:  youCards,
		OppCards:  oppCards,
		Winner:    winner,
	}
}

// ErrorMessage 规则或协议错误，只发给出错方
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Message: message}
}

// Pong 心跳应答
type Pong struct {
	Type string `json:"type"`
}

func NewPong() Pong {
	return Pong{Type: MsgPong}
}
