package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nrow/internal/game"
	"nrow/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, store storage.Store) *Server {
	t.Helper()
	s := New(Config{IdleWindow: time.Minute, Store: store})
	gin.SetMode(gin.TestMode)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func at(i int) *int { return &i }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndRegimes(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/api/regimes", nil)
	regimes := decode[[]RegimeDTO](t, rec)
	if len(regimes) != 2 {
		t.Fatalf("expected two regimes, got %+v", regimes)
	}
	byName := map[string]RegimeDTO{}
	for _, r := range regimes {
		byName[r.Name] = r
	}
	if c := byName[game.RegimeClassic]; len(c.Lines) != 8 || !c.Exhaustive || c.Shortcuts {
		t.Fatalf("unexpected classic regime: %+v", c)
	}
	if e := byName[game.RegimeExtended]; len(e.Lines) != 28 || e.Exhaustive || !e.Shortcuts || e.LineLength != 4 {
		t.Fatalf("unexpected extended regime: %+v", e)
	}
}

func TestEngineVerdict(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/engine/verdict", VerdictRequest{
		Regime: game.RegimeClassic,
		Board:  []string{"X", "X", "X", "O", "O", "", "", "", ""},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verdict returned %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[game.Verdict](t, rec)
	if v.Outcome != game.Win || v.Winner != game.X || len(v.Line) != 3 || v.Line[0] != 0 || v.Line[2] != 2 {
		t.Fatalf("unexpected verdict %+v", v)
	}

	rec = do(t, s, http.MethodPost, "/api/engine/verdict", VerdictRequest{
		Regime: game.RegimeExtended,
		Board:  make([]string, 9),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong board size should be 400, got %d", rec.Code)
	}
}

func TestEngineMove(t *testing.T) {
	s := newTestServer(t, nil)
	board := make([]string, 25)
	for _, i := range []int{0, 1, 2} {
		board[i] = "O"
	}
	for _, i := range []int{5, 6, 7} {
		board[i] = "X"
	}
	rec := do(t, s, http.MethodPost, "/api/engine/move", EngineMoveRequest{
		Regime: game.RegimeExtended, Board: board, Bot: "O", Opponent: "X",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("engine move returned %d: %s", rec.Code, rec.Body.String())
	}
	d := decode[game.Decision](t, rec)
	if d.Index != 3 || d.Policy != game.PolicyWin || d.Nodes != 0 {
		t.Fatalf("expected immediate win at 3, got %+v", d)
	}
}

func TestEngineMoveErrors(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name string
		req  EngineMoveRequest
		want int
	}{
		{"drawn board", EngineMoveRequest{Regime: "classic", Board: []string{"X", "O", "X", "X", "O", "O", "O", "X", "X"}, Bot: "O", Opponent: "X"}, http.StatusConflict},
		{"won board", EngineMoveRequest{Regime: "classic", Board: []string{"X", "X", "X", "O", "O", "", "", "", ""}, Bot: "O", Opponent: "X"}, http.StatusConflict},
		{"unknown regime", EngineMoveRequest{Regime: "huge", Board: make([]string, 9), Bot: "O", Opponent: "X"}, http.StatusBadRequest},
		{"same marks", EngineMoveRequest{Regime: "classic", Board: make([]string, 9), Bot: "O", Opponent: "O"}, http.StatusBadRequest},
		{"bad cell", EngineMoveRequest{Regime: "classic", Board: []string{"Z", "", "", "", "", "", "", "", ""}, Bot: "O", Opponent: "X"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPost, "/api/engine/move", tt.req); rec.Code != tt.want {
				t.Fatalf("got %d want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGameFlow(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/games", NewGameRequest{Username: "alice", Regime: game.RegimeClassic})
	if rec.Code != http.StatusCreated {
		t.Fatalf("new game returned %d: %s", rec.Code, rec.Body.String())
	}
	st := decode[StateResponse](t, rec)
	if st.Human != game.X || st.Turn != game.X || st.Moves != 0 || st.StatusMsg != "X's turn" {
		t.Fatalf("unexpected initial state %+v", st)
	}

	rec = do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", MoveRequest{Username: "alice", Index: at(4)})
	if rec.Code != http.StatusOK {
		t.Fatalf("move returned %d: %s", rec.Code, rec.Body.String())
	}
	mv := decode[MoveResponse](t, rec)
	if mv.Human == nil || mv.Human.Index != 4 {
		t.Fatalf("missing human move: %+v", mv)
	}
	if mv.Bot == nil || mv.Bot.Index != 0 || mv.Bot.Decision == nil || mv.Bot.Decision.Policy != game.PolicySearch {
		t.Fatalf("expected engine reply at 0, got %+v", mv.Bot)
	}
	if mv.State.Turn != game.X || mv.State.Moves != 2 || mv.State.Board[0] != game.O {
		t.Fatalf("unexpected state after exchange %+v", mv.State)
	}

	if rec := do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", MoveRequest{Username: "alice", Index: at(4)}); rec.Code != http.StatusConflict {
		t.Fatalf("occupied cell should be 409, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", MoveRequest{Username: "mallory", Index: at(1)}); rec.Code != http.StatusConflict {
		t.Fatalf("stranger should be 409, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", MoveRequest{Username: "alice", Index: at(9)}); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range should be 400, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/games/missing/moves", MoveRequest{Username: "alice", Index: at(1)}); rec.Code != http.StatusNotFound {
		t.Fatalf("missing game should be 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", map[string]any{"index": 1}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing username should be 400, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/games/"+st.GameID, nil)
	if got := decode[StateResponse](t, rec); got.Moves != 2 {
		t.Fatalf("get game returned %+v", got)
	}

	rec = do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/restart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restart returned %d", rec.Code)
	}
	if got := decode[StateResponse](t, rec); got.Moves != 0 || got.Games != 2 || got.Turn != game.X {
		t.Fatalf("unexpected state after restart %+v", got)
	}
}

func TestEngineOpensWhenHumanPlaysO(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/games", NewGameRequest{Username: "bob", Regime: game.RegimeClassic, Mark: "O"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("new game returned %d: %s", rec.Code, rec.Body.String())
	}
	st := decode[StateResponse](t, rec)
	if st.Bot != game.X || st.Moves != 1 || st.Board[0] != game.X || st.Turn != game.O {
		t.Fatalf("engine should open at 0, got %+v", st)
	}

	if rec := do(t, s, http.MethodPost, "/api/games", NewGameRequest{Username: "bob", Mark: "Q"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mark should be 400, got %d", rec.Code)
	}
}

func TestLeaderboardAndStats(t *testing.T) {
	store := storage.NewMemoryStore(game.BotName)
	ctx := context.Background()
	_ = store.SaveGame(ctx, storage.CompletedGame{ID: "1", Username: "alice", Regime: "extended", Winner: "alice", Outcome: "win"})
	_ = store.SaveGame(ctx, storage.CompletedGame{ID: "2", Username: "alice", Regime: "extended", Winner: game.BotName, Outcome: "win"})
	_ = store.SaveGame(ctx, storage.CompletedGame{ID: "3", Username: "bob", Regime: "classic", Outcome: "draw"})
	s := newTestServer(t, store)

	rows := decode[[]storage.LeaderboardRow](t, do(t, s, http.MethodGet, "/leaderboard", nil))
	if len(rows) != 1 || rows[0].Username != "alice" || rows[0].Wins != 1 {
		t.Fatalf("unexpected leaderboard %+v", rows)
	}
	stats := decode[[]storage.RegimeStats](t, do(t, s, http.MethodGet, "/stats", nil))
	if len(stats) != 2 || stats[0].Regime != "classic" || stats[0].Draws != 1 || stats[1].BotWins != 1 || stats[1].HumanWins != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

// playLowest has the human take the lowest empty cell until the game ends.
func playLowest(t *testing.T, s *Server, st StateResponse, username string) StateResponse {
	t.Helper()
	for st.Status == game.StatusActive {
		idx := -1
		for i, c := range st.Board {
			if c == game.Empty {
				idx = i
				break
			}
		}
		rec := do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", MoveRequest{Username: username, Index: at(idx)})
		if rec.Code != http.StatusOK {
			t.Fatalf("move %d returned %d: %s", idx, rec.Code, rec.Body.String())
		}
		st = decode[MoveResponse](t, rec).State
	}
	if st.Winner == username {
		t.Fatalf("engine lost: %+v", st)
	}
	return st
}

func waitForGames(t *testing.T, store storage.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats, _ := store.GetRegimeStats(context.Background())
		if len(stats) == 1 && stats[0].Games == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d stored games, got %+v", want, stats)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFinishedGamesAreStored(t *testing.T) {
	store := storage.NewMemoryStore(game.BotName)
	s := newTestServer(t, store)
	st := decode[StateResponse](t, do(t, s, http.MethodPost, "/api/games", NewGameRequest{Username: "carol"}))
	playLowest(t, s, st, "carol")
	waitForGames(t, store, 1)
}

func TestRestartedRoundsAreStored(t *testing.T) {
	store := storage.NewMemoryStore(game.BotName)
	s := newTestServer(t, store)
	st := decode[StateResponse](t, do(t, s, http.MethodPost, "/api/games", NewGameRequest{Username: "erin"}))
	id := st.GameID

	for round := 1; round <= 3; round++ {
		playLowest(t, s, st, "erin")
		waitForGames(t, store, round)
		if round == 3 {
			break
		}
		rec := do(t, s, http.MethodPost, "/api/games/"+id+"/restart", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("restart returned %d", rec.Code)
		}
		st = decode[StateResponse](t, rec)
		if st.GameID != id || st.Games != round+1 {
			t.Fatalf("restart should keep the session and count rounds, got %+v", st)
		}
	}

	stats := decode[[]storage.RegimeStats](t, do(t, s, http.MethodGet, "/stats", nil))
	if len(stats) != 1 || stats[0].Games != 3 || stats[0].HumanWins != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMoveRequiresIndex(t *testing.T) {
	s := newTestServer(t, nil)
	st := decode[StateResponse](t, do(t, s, http.MethodPost, "/api/games", NewGameRequest{Username: "frank"}))

	rec := do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", map[string]any{"username": "frank"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing index should be 400, got %d", rec.Code)
	}
	if got := decode[StateResponse](t, do(t, s, http.MethodGet, "/api/games/"+st.GameID, nil)); got.Moves != 0 {
		t.Fatalf("rejected request must not move: %+v", got)
	}

	rec = do(t, s, http.MethodPost, "/api/games/"+st.GameID+"/moves", MoveRequest{Username: "frank", Index: at(0)})
	if rec.Code != http.StatusOK {
		t.Fatalf("explicit index 0 should be accepted, got %d: %s", rec.Code, rec.Body.String())
	}
	if mv := decode[MoveResponse](t, rec); mv.Human == nil || mv.Human.Index != 0 {
		t.Fatalf("expected human move at 0, got %+v", mv.Human)
	}
}

func TestSweepToleratesNonPositiveInterval(t *testing.T) {
	s := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, d := range []time.Duration{0, -time.Second} {
		if err := s.Sweep(ctx, d); err != nil {
			t.Fatalf("sweep(%v) returned %v", d, err)
		}
	}
}

func TestWebSocketGame(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?username=dave&regime=classic"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type frame struct {
		Type  string           `json:"type"`
		State StateResponse    `json:"state"`
		Last  *game.MoveResult `json:"last"`
	}
	read := func() frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}

	first := read()
	if first.Type != "init" || first.State.GameID == "" || first.State.Human != game.X {
		t.Fatalf("unexpected init frame %+v", first)
	}

	if err := conn.WriteJSON(map[string]any{"type": "move", "index": 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	human := read()
	if human.Type != "state" || human.Last == nil || human.Last.Index != 4 {
		t.Fatalf("expected human state frame, got %+v", human)
	}
	bot := read()
	if bot.Last == nil || bot.Last.Index != 0 || bot.State.Turn != game.X {
		t.Fatalf("expected engine reply at 0, got %+v", bot)
	}

	if err := conn.WriteJSON(map[string]any{"type": "move", "index": 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := read(); f.Type != "error" {
		t.Fatalf("occupied cell should yield error frame, got %+v", f)
	}

	// A second connection without gameId picks up the active game.
	again, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("redial: %v", err)
	}
	defer again.Close()
	_ = again.SetReadDeadline(time.Now().Add(5 * time.Second))
	var rejoined frame
	if err := again.ReadJSON(&rejoined); err != nil {
		t.Fatalf("read rejoin: %v", err)
	}
	if rejoined.Type != "init" || rejoined.State.GameID != first.State.GameID || rejoined.State.Moves != 2 {
		t.Fatalf("expected rejoin of %s, got %+v", first.State.GameID, rejoined)
	}
}
