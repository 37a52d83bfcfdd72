// Command-line Zobbo client. Creates or joins a room over HTTP, then
// speaks the JSON WebSocket protocol interactively.
//
//	go run ./client -create -name alice
//	go run ./client -room <room_id> -name bob
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	addr   = flag.String("addr", "http://localhost:8080", "server base URL")
	create = flag.Bool("create", false, "create a new room before joining")
	mode   = flag.String("mode", "zobbo-battle", "game mode for -create (zobbo-battle or sudden-death)")
	roomID = flag.String("room", "", "room id to join")
	name   = flag.String("name", "player", "display name")
)

type createRoomResponse struct {
	RoomID   string `json:"room_id"`
	ShareURL string `json:"share_url"`
}

type joinRoomResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"player_id"`
}

func main() {
	flag.Parse()

	base := strings.TrimRight(*addr, "/")
	room := *roomID

	if *create {
		body := fmt.Sprintf(`{"mode":{"kind":%q}}`, *mode)
		var resp createRoomResponse
		if err := postJSON(base+"/room", body, &resp); err != nil {
			log.Fatalf("Create room failed: %v", err)
		}
		room = resp.RoomID
		log.Printf("Created room %s", resp.RoomID)
		log.Printf("Share URL: %s", resp.ShareURL)
	}
	if room == "" {
		log.Fatal("Need -room <id> or -create")
	}

	var join joinRoomResponse
	if err := postJSON(base+"/room/"+room+"/join", fmt.Sprintf(`{"name":%q}`, *name), &join); err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	log.Printf("Joined room %s as %s (player %s)", room, *name, join.PlayerID)

	wsURL := "ws" + strings.TrimPrefix(base, "http") +
		"/room/" + room + "/ws?token=" + url.QueryEscape(join.Token)
	c, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Connection closed:", err)
				return
			}
			render(message)
		}
	}()

	printHelp()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			shutdown(c, done)
			return
		case line, ok := <-lines:
			if !ok {
				shutdown(c, done)
				return
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "quit":
				shutdown(c, done)
				return
			case "help":
				printHelp()
				continue
			}
			frame, err := frameFor(line)
			if err != nil {
				log.Printf("! %v", err)
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}

func shutdown(c *websocket.Conn, done chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func postJSON(url, body string, out interface{}) error {
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(res.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", e.Error, res.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// frameFor maps a console command to a protocol frame.
func frameFor(line string) ([]byte, error) {
	fields := strings.Fields(line)
	cmd := fields[0]

	arg := func(i int) (int, error) {
		if len(fields) <= i {
			return 0, fmt.Errorf("%s needs a slot number (0-5)", cmd)
		}
		return strconv.Atoi(fields[i])
	}

	msg := map[string]interface{}{}
	switch cmd {
	case "ping":
		msg["type"] = "ping"
	case "ready":
		msg["type"] = "ready"
	case "draw":
		msg["type"] = "draw_deck"
	case "takedisc":
		msg["type"] = "draw_discard"
	case "swap":
		n, err := arg(1)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["index"] = "swap_with_hand", n
	case "discard":
		msg["type"] = "discard_drawn"
	case "match":
		n, err := arg(1)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["index"] = "match_top", n
	case "zobbo":
		msg["type"] = "call_zobbo"
	case "peek":
		n, err := arg(1)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["index"] = "power_check_own", n
	case "peekopp":
		n, err := arg(1)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["index"] = "power_check_opp", n
	case "deckswap":
		n, err := arg(1)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["index"] = "power_swap_with_deck", n
	case "oppswap":
		m, err := arg(1)
		if err != nil {
			return nil, err
		}
		n, err := arg(2)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["my_index"], msg["opp_index"] = "power_swap_with_opp", m, n
	case "forceswap":
		n, err := arg(1)
		if err != nil {
			return nil, err
		}
		msg["type"], msg["opp_index"] = "power_opp_swap_with_deck", n
	case "end":
		msg["type"] = "end_turn"
	default:
		return nil, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return json.Marshal(msg)
}

func printHelp() {
	fmt.Println(`Commands:
  ready               mark yourself ready
  draw                draw from the deck
  takedisc            take the discard top
  swap N              swap the held card into slot N
  discard             discard the held card
  match N             play slot N onto a matching discard top
  zobbo               call zobbo (on your opponent's turn)
  peek N / peekopp N  peek at an own / opponent slot
  deckswap N          jack: swap slot N with the deck top
  oppswap M N         queen: swap your slot M with opponent slot N
  forceswap N         red king: force opponent slot N onto the deck top
  end                 pass the turn
  quit                leave`)
}

// render pretty-prints one server frame.
func render(data []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("<- %s", data)
		return
	}

	switch msg["type"] {
	case "welcome":
		log.Printf("Welcome! You are %v", msg["player_id"])
		renderLobby(msg["lobby"])
	case "lobby_update":
		renderLobby(msg["lobby"])
	case "game_start":
		log.Printf("Game on! %v goes first", msg["starting_player"])
	case "game_update":
		renderUpdate(msg["update"])
	case "drawn_card":
		log.Printf("You drew: %s", cardString(msg["card"]))
	case "peek_result":
		log.Printf("Peek (%v) slot %v: %s", msg["target"], msg["index"], cardString(msg["card"]))
	case "game_over":
		outcome := "It's a draw."
		if w, ok := msg["winner"].(string); ok {
			outcome = fmt.Sprintf("Winner: %s", w)
		}
		log.Printf("GAME OVER. You %v, opponent %v. %s", msg["your_score"], msg["opp_score"], outcome)
		log.Printf("Your cards: %s", revealString(msg["you_cards"]))
		log.Printf("Opponent:   %s", revealString(msg["opp_cards"]))
	case "error":
		log.Printf("! %v", msg["message"])
	case "pong":
		log.Println("pong")
	default:
		log.Printf("<- %s", data)
	}
}

func renderLobby(v interface{}) {
	lobby, ok := v.(map[string]interface{})
	if !ok {
		return
	}
	players, _ := lobby["players"].([]interface{})
	parts := make([]string, 0, len(players))
	for _, p := range players {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		status := "waiting"
		if pm["ready"] == true {
			status = "ready"
		}
		if pm["connected"] != true {
			status += ", offline"
		}
		parts = append(parts, fmt.Sprintf("%v (%s)", pm["name"], status))
	}
	log.Printf("Lobby: %s", strings.Join(parts, " | "))
}

func renderUpdate(v interface{}) {
	u, ok := v.(map[string]interface{})
	if !ok {
		return
	}
	top := "-"
	if c, ok := u["discard_top"].(map[string]interface{}); ok {
		top = cardString(c)
	}
	line := fmt.Sprintf("Turn %v | stage %v | deck %v | discard %v (top %s)",
		u["active"], u["stage"], u["deck_count"], u["discard_count"], top)
	if z, ok := u["zobbo_remaining"].(float64); ok {
		line += fmt.Sprintf(" | zobbo in %d", int(z))
	}
	log.Println(line)
	if you, ok := u["you"].(map[string]interface{}); ok {
		log.Printf("Your slots: %s", slotString(you))
	}
	if opp, ok := u["opponent"].(map[string]interface{}); ok {
		log.Printf("Opp slots:  %s", slotString(opp))
	}
}

func slotString(seat map[string]interface{}) string {
	slots, _ := seat["slots"].([]interface{})
	parts := make([]string, 0, len(slots))
	for i, s := range slots {
		sm, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		mark := "[#]"
		if sm["empty"] == true {
			mark = "[ ]"
		}
		parts = append(parts, fmt.Sprintf("%d%s", i, mark))
	}
	return strings.Join(parts, " ")
}

func cardString(v interface{}) string {
	c, ok := v.(map[string]interface{})
	if !ok {
		return "?"
	}
	s := fmt.Sprintf("%v", c["rank"])
	if suit, ok := c["suit"].(string); ok {
		s += " of " + suit
	}
	if c["is_red_king"] == true {
		s += " (red)"
	}
	return s
}

func revealString(v interface{}) string {
	cards, ok := v.([]interface{})
	if !ok {
		return "-"
	}
	parts := make([]string, 0, len(cards))
	for _, c := range cards {
		parts = append(parts, cardString(c))
	}
	return strings.Join(parts, ", ")
}
