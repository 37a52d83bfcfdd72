package session

import (
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/zobbo/game"
	"github.com/wfunc/zobbo/room"
)

// mockConn scripts the inbound side of a connection and captures the
// outbound side. Closing the frames channel ends the session cleanly.
type mockConn struct {
	frames    chan []byte
	written   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		frames:  make(chan []byte, 16),
		written: make(chan []byte, 128),
		closed:  make(chan struct{}),
	}
}

func (c *mockConn) ReadMessage() ([]byte, error) {
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *mockConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	case c.written <- data:
		return nil
	}
}

func (c *mockConn) Ping() error                  { return nil }
func (c *mockConn) SendCloseFrame() error        { return nil }
func (c *mockConn) SetHeartbeat(_ time.Duration) {}
func (c *mockConn) RemoteAddr() net.Addr         { return &net.TCPAddr{} }

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *mockConn) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.frames <- []byte(frame):
	default:
		t.Fatal("mock frame buffer is full")
	}
}

func (c *mockConn) endScript() {
	close(c.frames)
}

func nextWritten(t *testing.T, c *mockConn) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.written:
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a frame")
	}
	return nil
}

func expectWritten(t *testing.T, c *mockConn, want string) map[string]interface{} {
	t.Helper()
	msg := nextWritten(t, c)
	if msg["type"] != want {
		t.Fatalf("Expected a %s frame, got %v", want, msg["type"])
	}
	return msg
}

// waitForType discards frames until one of the wanted type shows up.
func waitForType(t *testing.T, c *mockConn, want string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.written:
			var msg map[string]interface{}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if msg["type"] == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for a %s frame", want)
		}
	}
}

func TestSessionWelcomeAndPong(t *testing.T) {
	r := room.NewRoom(game.DefaultMode(), nil, nil)
	pid, _ := r.Join("alice")

	conn := newMockConn()
	s := NewSession(pid, r, conn, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	welcome := expectWritten(t, conn, "welcome")
	if welcome["player_id"] != pid.String() {
		t.Errorf("Expected player_id %s, got %v", pid, welcome["player_id"])
	}
	expectWritten(t, conn, "lobby_update")

	conn.push(t, `{"type":"ping"}`)
	expectWritten(t, conn, "pong")

	conn.endScript()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for Run to return")
	}

	select {
	case <-conn.closed:
	default:
		t.Error("Expected the connection to be closed after Run")
	}
}

func TestSessionRejectsBadFrames(t *testing.T) {
	r := room.NewRoom(game.DefaultMode(), nil, nil)
	pid, _ := r.Join("alice")

	conn := newMockConn()
	s := NewSession(pid, r, conn, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	expectWritten(t, conn, "welcome")
	expectWritten(t, conn, "lobby_update")

	for _, frame := range []string{
		`not json at all`,
		`{"type":"swap_with_hand"}`,
		`{"type":"bogus"}`,
	} {
		conn.push(t, frame)
		msg := expectWritten(t, conn, "error")
		if !strings.HasPrefix(msg["message"].(string), "Bad message: ") {
			t.Errorf("Expected a Bad message prefix, got %v", msg["message"])
		}
	}

	// A well-formed but illegal action gets the engine's reason.
	conn.push(t, `{"type":"draw_deck"}`)
	msg := expectWritten(t, conn, "error")
	if msg["message"] != room.ErrGameNotStarted.Error() {
		t.Errorf("Expected %q, got %v", room.ErrGameNotStarted, msg["message"])
	}

	conn.endScript()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestSessionDispatchDrivesGame(t *testing.T) {
	r := room.NewRoom(game.DefaultMode(), nil, nil)
	aID, _ := r.Join("alice")
	bID, _ := r.Join("bob")

	connA := newMockConn()
	connB := newMockConn()
	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() { doneA <- NewSession(aID, r, connA, nil).Run() }()
	go func() { doneB <- NewSession(bID, r, connB, nil).Run() }()

	connA.push(t, `{"type":"ready"}`)
	connB.push(t, `{"type":"ready"}`)

	start := waitForType(t, connA, "game_start")
	actorConn := connA
	if start["starting_player"] == bID.String() {
		actorConn = connB
	}

	// Both seats peek at their first three slots once the game starts.
	for i := 0; i < 3; i++ {
		peek := waitForType(t, actorConn, "peek_result")
		if peek["target"] != "self" {
			t.Errorf("Expected a self peek, got %v", peek["target"])
		}
	}

	actorConn.push(t, `{"type":"draw_deck"}`)
	drawn := waitForType(t, actorConn, "drawn_card")
	if drawn["card"].(map[string]interface{})["rank"] == "" {
		t.Error("Expected a rank on the drawn card")
	}

	// Ending the turn while holding a card is rejected.
	actorConn.push(t, `{"type":"end_turn"}`)
	errMsg := waitForType(t, actorConn, "error")
	if errMsg["message"] != game.ErrHoldingCard.Error() {
		t.Errorf("Expected %q, got %v", game.ErrHoldingCard, errMsg["message"])
	}

	actorConn.push(t, `{"type":"discard_drawn"}`)
	upd := waitForType(t, actorConn, "game_update")
	if upd["update"].(map[string]interface{})["stage"] == "holding" {
		t.Error("Expected the held card to be resolved")
	}

	connA.endScript()
	connB.endScript()
	<-doneA
	<-doneB
}

func TestSessionAttachUnknownPlayer(t *testing.T) {
	r := room.NewRoom(game.DefaultMode(), nil, nil)

	conn := newMockConn()
	s := NewSession(uuid.New(), r, conn, nil)
	if err := s.Run(); err != room.ErrUnknownPlayer {
		t.Fatalf("Expected ErrUnknownPlayer, got %v", err)
	}
	select {
	case <-conn.closed:
	default:
		t.Error("Expected the connection to be closed on a failed attach")
	}
}

func TestManagerTracksLiveSessions(t *testing.T) {
	manager := NewManager()
	r := room.NewRoom(game.DefaultMode(), nil, nil)
	pid, _ := r.Join("alice")

	s1 := NewSession(pid, r, newMockConn(), nil)
	manager.Add(s1)

	got, ok := manager.Get(pid)
	if !ok || got != s1 {
		t.Fatal("Expected Get to return the added session")
	}
	if manager.Count() != 1 {
		t.Fatalf("Expected 1 session, got %d", manager.Count())
	}

	// A reconnect replaces the entry; the old session's cleanup must
	// not evict the new one.
	s2 := NewSession(pid, r, newMockConn(), nil)
	manager.Add(s2)
	manager.Remove(s1)

	got, ok = manager.Get(pid)
	if !ok || got != s2 {
		t.Fatal("Expected the reconnected session to survive a stale remove")
	}

	manager.Remove(s2)
	if manager.Count() != 0 {
		t.Fatalf("Expected 0 sessions, got %d", manager.Count())
	}
}
