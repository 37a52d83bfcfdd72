package room

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/broadcast"
	"github.com/wfunc/zobbo/game"
	"github.com/wfunc/zobbo/models"
)

// mockStats counts metric callbacks. All calls happen on the test
// goroutine, inside the room handlers.
type mockStats struct {
	started   int
	completed int
}

func (m *mockStats) GameStarted()   { m.started++ }
func (m *mockStats) GameCompleted() { m.completed++ }

// mockRecorder hands archived matches back to the test. RecordMatch runs
// on its own goroutine, so delivery goes through a channel.
type mockRecorder struct {
	ch chan *models.MatchRecord
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{ch: make(chan *models.MatchRecord, 1)}
}

func (m *mockRecorder) RecordMatch(rec *models.MatchRecord) { m.ch <- rec }

func nextMessage(t *testing.T, q *broadcast.Queue) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-q.C():
		if !ok {
			t.Fatal("Expected a message, but the queue is closed")
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		return msg
	default:
		t.Fatal("Expected a message, but the queue is empty")
	}
	return nil
}

func expectType(t *testing.T, q *broadcast.Queue, want string) map[string]interface{} {
	t.Helper()
	msg := nextMessage(t, q)
	if msg["type"] != want {
		t.Fatalf("Expected a %s message, got %v", want, msg["type"])
	}
	return msg
}

func expectEmpty(t *testing.T, q *broadcast.Queue) {
	t.Helper()
	select {
	case data := <-q.C():
		t.Fatalf("Expected no more messages, got %s", data)
	default:
	}
}

func drain(q *broadcast.Queue) {
	for {
		select {
		case _, ok := <-q.C():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func TestJoinUntilFull(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)

	a, err := r.Join("alice")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	b, err := r.Join("bob")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if a == b {
		t.Error("Expected distinct player ids")
	}
	if _, err := r.Join("carol"); err != ErrRoomFull {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}

	if !r.HasPlayer(a) || !r.HasPlayer(b) {
		t.Error("Expected both joined players to be known")
	}
	if r.HasPlayer(uuid.New()) {
		t.Error("Expected a random id to be unknown")
	}
}

func TestAttachSendsWelcomeThenLobby(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")

	if err := r.Attach(uuid.New(), broadcast.NewQueue(8, nil)); err != ErrUnknownPlayer {
		t.Fatalf("Expected ErrUnknownPlayer, got %v", err)
	}

	q := broadcast.NewQueue(64, nil)
	if err := r.Attach(a, q); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	welcome := expectType(t, q, "welcome")
	if welcome["player_id"] != a.String() {
		t.Errorf("Expected player_id %s, got %v", a, welcome["player_id"])
	}

	lobby := expectType(t, q, "lobby_update")
	players := lobby["lobby"].(map[string]interface{})["players"].([]interface{})
	if len(players) != 1 {
		t.Fatalf("Expected 1 lobby player, got %d", len(players))
	}
	p := players[0].(map[string]interface{})
	if p["name"] != "alice" || p["connected"] != true || p["ready"] != false {
		t.Errorf("Unexpected lobby player: %v", p)
	}
	expectEmpty(t, q)
}

func TestReadyFlowStartsGame(t *testing.T) {
	stats := &mockStats{}
	r := NewRoom(game.DefaultMode(), stats, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")

	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	if err := r.Attach(a, qa); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := r.Attach(b, qb); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	drain(qa)
	drain(qb)

	// Game actions are rejected until the game starts.
	if err := r.HandleDraw(a, game.SourceDeck); err != ErrGameNotStarted {
		t.Fatalf("Expected ErrGameNotStarted, got %v", err)
	}

	if err := r.HandleReady(a); err != nil {
		t.Fatalf("HandleReady failed: %v", err)
	}
	expectType(t, qa, "lobby_update")
	expectType(t, qb, "lobby_update")
	expectEmpty(t, qa)
	if stats.started != 0 {
		t.Fatal("Expected the game not to start with one ready player")
	}

	if err := r.HandleReady(b); err != nil {
		t.Fatalf("HandleReady failed: %v", err)
	}
	for _, q := range []*broadcast.Queue{qa, qb} {
		expectType(t, q, "lobby_update")
		start := expectType(t, q, "game_start")
		if start["starting_player"] != a.String() && start["starting_player"] != b.String() {
			t.Errorf("Unexpected starting player: %v", start["starting_player"])
		}
		upd := expectType(t, q, "game_update")
		update := upd["update"].(map[string]interface{})
		if update["stage"] != "await_draw" {
			t.Errorf("Expected the await_draw stage, got %v", update["stage"])
		}
		if update["deck_count"].(float64) != 40 {
			t.Errorf("Expected 40 cards in the deck, got %v", update["deck_count"])
		}

		// Each player peeks at their own slots 0..2.
		for i := 0; i < 3; i++ {
			peek := expectType(t, q, "peek_result")
			if peek["target"] != "self" {
				t.Errorf("Expected a self peek, got %v", peek["target"])
			}
			if int(peek["index"].(float64)) != i {
				t.Errorf("Expected peek index %d, got %v", i, peek["index"])
			}
		}
		expectEmpty(t, q)
	}
	if stats.started != 1 {
		t.Errorf("Expected one started game, got %d", stats.started)
	}

	// A repeated ready changes the lobby but never redeals.
	if err := r.HandleReady(a); err != nil {
		t.Fatalf("HandleReady failed: %v", err)
	}
	expectType(t, qa, "lobby_update")
	expectEmpty(t, qa)
	if stats.started != 1 {
		t.Errorf("Expected the game to start only once, got %d", stats.started)
	}
}

func TestDetachMarksDisconnected(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")

	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, qa)
	r.Attach(b, qb)
	drain(qa)
	drain(qb)

	r.Detach(a, qa)
	lobby := expectType(t, qb, "lobby_update")
	players := lobby["lobby"].(map[string]interface{})["players"].([]interface{})
	alice := players[0].(map[string]interface{})
	if alice["connected"] != false {
		t.Error("Expected alice to be marked disconnected")
	}
	bob := players[1].(map[string]interface{})
	if bob["connected"] != true {
		t.Error("Expected bob to stay connected")
	}

	// The seat itself survives the disconnect.
	if !r.HasPlayer(a) {
		t.Error("Expected the seat to survive a disconnect")
	}
}

func TestDetachIgnoresStaleQueue(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")

	q1 := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, q1)
	r.Attach(b, qb)

	// The player reconnects before the dead connection gets cleaned up.
	q2 := broadcast.NewQueue(64, nil)
	r.Attach(a, q2)
	drain(q2)
	drain(qb)

	r.Detach(a, q1)
	expectEmpty(t, qb)
	if r.Snapshot().Players[0].Connected != true {
		t.Error("Expected the reconnected player to stay connected")
	}

	// The real cleanup still works.
	r.Detach(a, q2)
	expectType(t, qb, "lobby_update")
	if r.Snapshot().Players[0].Connected {
		t.Error("Expected the player to be disconnected")
	}
}

// startFixedGame wires a hand-built deal into a room so tests control
// every card. Player a starts.
func startFixedGame(t *testing.T, r *Room, a, b uuid.UUID) *game.State {
	t.Helper()
	g := game.New(a, b, a, rand.New(rand.NewSource(11)))
	r.mu.Lock()
	r.started = true
	r.startedAt = time.Now()
	r.game = g
	r.mu.Unlock()
	return g
}

func TestDrawSendsCardOnlyToDrawer(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")
	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, qa)
	r.Attach(b, qb)

	g := startFixedGame(t, r, a, b)
	g.Deck = append(g.Deck, game.Card{Rank: game.Four, Suit: game.Clubs})
	drain(qa)
	drain(qb)

	if err := r.HandleDraw(b, game.SourceDeck); err != game.ErrNotYourTurn {
		t.Fatalf("Expected ErrNotYourTurn, got %v", err)
	}
	expectEmpty(t, qa)
	expectEmpty(t, qb)

	if err := r.HandleDraw(a, game.SourceDeck); err != nil {
		t.Fatalf("HandleDraw failed: %v", err)
	}
	drawn := expectType(t, qa, "drawn_card")
	card := drawn["card"].(map[string]interface{})
	if card["rank"] != "four" || card["is_red_king"] != false {
		t.Errorf("Unexpected drawn card: %v", card)
	}
	expectType(t, qa, "game_update")
	expectEmpty(t, qa)

	// The opponent sees only the snapshot.
	upd := expectType(t, qb, "game_update")
	update := upd["update"].(map[string]interface{})
	if update["stage"] != "holding" {
		t.Errorf("Expected the holding stage, got %v", update["stage"])
	}
	expectEmpty(t, qb)
}

func TestDiscardDrawnBroadcastsTurnChange(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")
	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, qa)
	r.Attach(b, qb)

	g := startFixedGame(t, r, a, b)
	g.Deck = append(g.Deck, game.Card{Rank: game.Four, Suit: game.Clubs})

	if err := r.HandleDraw(a, game.SourceDeck); err != nil {
		t.Fatalf("HandleDraw failed: %v", err)
	}
	drain(qa)
	drain(qb)

	if err := r.HandleDiscardDrawn(a); err != nil {
		t.Fatalf("HandleDiscardDrawn failed: %v", err)
	}
	upd := expectType(t, qb, "game_update")
	update := upd["update"].(map[string]interface{})
	if update["active"] != b.String() {
		t.Errorf("Expected bob to be active, got %v", update["active"])
	}
	if update["stage"] != "await_draw" {
		t.Errorf("Expected the await_draw stage, got %v", update["stage"])
	}
	top := update["discard_top"].(map[string]interface{})
	if top["rank"] != "four" {
		t.Errorf("Expected the four on the discard pile, got %v", top)
	}
}

func TestPeekResultsTargetOnlyTheActor(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")
	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, qa)
	r.Attach(b, qb)

	g := startFixedGame(t, r, a, b)
	g.Stage = game.Stage{Kind: game.StagePower, Card: game.Card{Rank: game.Nine, Suit: game.Clubs}}
	drain(qa)
	drain(qb)

	if err := r.HandlePowerCheckOpp(a, 2); err != nil {
		t.Fatalf("HandlePowerCheckOpp failed: %v", err)
	}
	peek := expectType(t, qa, "peek_result")
	if peek["target"] != "opponent" || int(peek["index"].(float64)) != 2 {
		t.Errorf("Unexpected peek: %v", peek)
	}
	expectType(t, qa, "game_update")
	expectEmpty(t, qa)

	// The peeked-at player never sees the reveal.
	expectType(t, qb, "game_update")
	expectEmpty(t, qb)
}

func TestIllegalActionSendsNothing(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")
	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, qa)
	r.Attach(b, qb)

	startFixedGame(t, r, a, b)
	drain(qa)
	drain(qb)

	if err := r.HandleMatchTop(a, 0); err != game.ErrEmptyDiscard {
		t.Fatalf("Expected ErrEmptyDiscard, got %v", err)
	}
	if err := r.HandleSwapWithHand(a, 0); err != game.ErrWrongStage {
		t.Fatalf("Expected ErrWrongStage, got %v", err)
	}
	expectEmpty(t, qa)
	expectEmpty(t, qb)

	r.ReplyError(a, "not your turn")
	msg := expectType(t, qa, "error")
	if msg["message"] != "not your turn" {
		t.Errorf("Unexpected error payload: %v", msg)
	}
	expectEmpty(t, qb)
}

func TestZobboFinishSendsGameOverAndArchives(t *testing.T) {
	stats := &mockStats{}
	rec := newMockRecorder()
	r := NewRoom(game.Mode{Kind: game.ModeSuddenDeath}, stats, rec)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")
	qa := broadcast.NewQueue(64, nil)
	qb := broadcast.NewQueue(64, nil)
	r.Attach(a, qa)
	r.Attach(b, qb)

	startFixedGame(t, r, a, b)
	drain(qa)
	drain(qb)

	if err := r.HandleCallZobbo(b); err != nil {
		t.Fatalf("HandleCallZobbo failed: %v", err)
	}
	upd := expectType(t, qa, "game_update")
	if upd["update"].(map[string]interface{})["zobbo_remaining"].(float64) != 2 {
		t.Errorf("Expected a countdown of 2, got %v", upd["update"])
	}
	drain(qa)
	drain(qb)

	if err := r.HandleEndTurn(a); err != nil {
		t.Fatalf("HandleEndTurn failed: %v", err)
	}
	drain(qa)
	drain(qb)
	if err := r.HandleEndTurn(b); err != nil {
		t.Fatalf("HandleEndTurn failed: %v", err)
	}

	// The final snapshot lands before the result.
	expectType(t, qa, "game_update")
	overA := expectType(t, qa, "game_over")
	expectType(t, qb, "game_update")
	overB := expectType(t, qb, "game_over")

	if overA["your_score"] != overB["opp_score"] || overA["opp_score"] != overB["your_score"] {
		t.Errorf("Expected complementary scores, got %v / %v", overA, overB)
	}
	if overA["winner"] != overB["winner"] {
		t.Errorf("Expected both players to agree on the winner, got %v / %v", overA["winner"], overB["winner"])
	}
	if stats.completed != 1 {
		t.Errorf("Expected one completed game, got %d", stats.completed)
	}

	select {
	case archived := <-rec.ch:
		if archived.RoomID != r.ID {
			t.Errorf("Expected room %s in the archive, got %s", r.ID, archived.RoomID)
		}
		if archived.Mode != game.ModeSuddenDeath {
			t.Errorf("Expected the sudden-death mode, got %s", archived.Mode)
		}
		if len(archived.Players) != 2 {
			t.Fatalf("Expected 2 archived players, got %d", len(archived.Players))
		}
		for _, p := range archived.Players {
			switch {
			case archived.WinnerID == nil:
				if p.Outcome != models.OutcomeDraw {
					t.Errorf("Expected a draw outcome, got %s", p.Outcome)
				}
			case *archived.WinnerID == p.PlayerID:
				if p.Outcome != models.OutcomeWin {
					t.Errorf("Expected a win outcome for the winner, got %s", p.Outcome)
				}
			default:
				if p.Outcome != models.OutcomeLose {
					t.Errorf("Expected a lose outcome, got %s", p.Outcome)
				}
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the finished match to be archived")
	}

	// The room rejects everything after the reveal.
	if err := r.HandleDraw(a, game.SourceDeck); err != game.ErrGameFinished {
		t.Errorf("Expected ErrGameFinished, got %v", err)
	}
	if err := r.HandleEndTurn(b); err != game.ErrGameFinished {
		t.Errorf("Expected ErrGameFinished, got %v", err)
	}
	if stats.completed != 1 {
		t.Errorf("Expected the game to complete exactly once, got %d", stats.completed)
	}
}

func TestHandleCallZobboByActivePlayer(t *testing.T) {
	r := NewRoom(game.DefaultMode(), nil, nil)
	a, _ := r.Join("alice")
	b, _ := r.Join("bob")
	startFixedGame(t, r, a, b)

	if err := r.HandleCallZobbo(a); err != game.ErrZobboSelf {
		t.Errorf("Expected ErrZobboSelf, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(nil, nil)

	r1 := reg.Create(game.DefaultMode())
	r2 := reg.Create(game.Mode{Kind: game.ModeSuddenDeath})
	if reg.Count() != 2 {
		t.Fatalf("Expected 2 rooms, got %d", reg.Count())
	}

	got, ok := reg.Get(r1.ID)
	if !ok || got != r1 {
		t.Error("Expected to find the first room by id")
	}
	if _, ok := reg.Get(uuid.New()); ok {
		t.Error("Expected a random id to miss")
	}

	seen := make(map[uuid.UUID]bool)
	reg.Range(func(r *Room) bool {
		seen[r.ID] = true
		return true
	})
	if !seen[r1.ID] || !seen[r2.ID] {
		t.Errorf("Expected Range to visit both rooms, saw %v", seen)
	}

	visits := 0
	reg.Range(func(*Room) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("Expected Range to stop after the first room, got %d visits", visits)
	}
}
