package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// BotName is the username recorded when the engine wins.
const BotName = "bot"

// GameState is a snapshot of one game. The Manager owns the authoritative
// copy; callers always receive clones.
type GameState struct {
	ID         string      `json:"id"`
	Regime     string      `json:"regime"`
	Username   string      `json:"username"`
	Human      Cell        `json:"human"`
	Bot        Cell        `json:"bot"`
	Board      Board       `json:"board"`
	Turn       Cell        `json:"turn"`
	Status     string      `json:"status"`
	Verdict    Verdict     `json:"verdict"`
	Winner     string      `json:"winner"`
	Moves      []Placement `json:"moves"`
	Games      int         `json:"games"`
	StartedAt  time.Time   `json:"startedAt"`
	EndedAt    time.Time   `json:"endedAt"`
	LastMoveAt time.Time   `json:"lastMoveAt"`
}

// Placement is one applied move.
type Placement struct {
	Index int  `json:"index"`
	Mark  Cell `json:"mark"`
}

func (g *GameState) clone() GameState {
	c := *g
	c.Board = g.Board.Clone()
	c.Moves = append([]Placement(nil), g.Moves...)
	return c
}

// MoveResult describes a single applied move. Decision is set for engine
// moves.
type MoveResult struct {
	Index    int       `json:"index"`
	Mark     Cell      `json:"mark"`
	Board    Board     `json:"board"`
	Verdict  Verdict   `json:"verdict"`
	Decision *Decision `json:"decision,omitempty"`
}

// Move is a human move request.
type Move struct {
	Username string
	GameID   string
	Index    int
}

// Manager is the turn controller: it owns every board, applies human and
// engine moves, checks the verdict after each move and alternates turns.
type Manager struct {
	mu         sync.RWMutex
	engines    map[string]*Engine
	games      map[string]*GameState
	userToGame map[string]string
	idleAfter  time.Duration
	onFinish   func(GameState)
	now        func() time.Time
}

func NewManager(idleWindow time.Duration, onFinish func(GameState)) *Manager {
	engines := make(map[string]*Engine)
	for _, r := range Regimes() {
		engines[r.Name] = MustEngine(r)
	}
	return &Manager{
		engines:    engines,
		games:      make(map[string]*GameState),
		userToGame: make(map[string]string),
		idleAfter:  idleWindow,
		onFinish:   onFinish,
		now:        time.Now,
	}
}

// Engine returns the move selector for a regime.
func (m *Manager) Engine(regime string) (*Engine, error) {
	e, ok := m.engines[regime]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegime, regime)
	}
	return e, nil
}

// StartGame opens a new game for username playing humanMark. X always
// moves first, so when the human plays O the engine is on turn.
func (m *Manager) StartGame(username, regime string, humanMark Cell) (GameState, error) {
	e, err := m.Engine(regime)
	if err != nil {
		return GameState{}, err
	}
	if !humanMark.IsPlayer() {
		return GameState{}, ErrInvalidMark
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	g := &GameState{
		ID:         uuid.NewString(),
		Regime:     regime,
		Username:   username,
		Human:      humanMark,
		Bot:        humanMark.Opponent(),
		Board:      NewBoard(e.Regime().Cells()),
		Turn:       X,
		Status:     StatusActive,
		Games:      1,
		StartedAt:  now,
		LastMoveAt: now,
	}
	m.games[g.ID] = g
	m.userToGame[username] = g.ID
	log.Info().Str("game", g.ID).Str("user", username).Str("regime", regime).
		Stringer("human", humanMark).Msg("game-started")
	return g.clone(), nil
}

// HandleMove applies a human move.
func (m *Manager) HandleMove(move Move) (MoveResult, GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[move.GameID]
	if !ok {
		return MoveResult{}, GameState{}, ErrGameNotFound
	}
	if g.Status == StatusFinished {
		return MoveResult{}, g.clone(), ErrGameFinished
	}
	if g.Username != move.Username || g.Turn != g.Human {
		return MoveResult{}, g.clone(), ErrInvalidTurn
	}
	res, err := m.apply(g, move.Index, g.Human)
	if err != nil {
		return MoveResult{}, g.clone(), err
	}
	return res, g.clone(), nil
}

// PlayBotTurn lets the engine move when it is on turn.
func (m *Manager) PlayBotTurn(gameID string) (MoveResult, GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return MoveResult{}, GameState{}, ErrGameNotFound
	}
	if g.Status == StatusFinished {
		return MoveResult{}, g.clone(), ErrGameFinished
	}
	if g.Turn != g.Bot {
		return MoveResult{}, g.clone(), ErrInvalidTurn
	}
	d, err := m.engines[g.Regime].Decide(g.Board, g.Bot, g.Human)
	if err != nil {
		return MoveResult{}, g.clone(), err
	}
	res, err := m.apply(g, d.Index, g.Bot)
	if err != nil {
		return MoveResult{}, g.clone(), err
	}
	res.Decision = &d
	log.Debug().Str("game", g.ID).Int("index", d.Index).Str("policy", d.Policy).
		Int("score", d.Score).Int64("nodes", d.Nodes).Int("limit", d.Limit).Msg("bot-move")
	return res, g.clone(), nil
}

// apply places mark, re-evaluates the board and passes the turn. Caller
// holds m.mu.
func (m *Manager) apply(g *GameState, index int, mark Cell) (MoveResult, error) {
	if err := g.Board.Place(index, mark); err != nil {
		return MoveResult{}, err
	}
	now := m.now()
	g.LastMoveAt = now
	g.Moves = append(g.Moves, Placement{Index: index, Mark: mark})

	v := Terminal(g.Board, m.engines[g.Regime].Regime().Lines)
	g.Verdict = v
	switch v.Outcome {
	case Win:
		g.Winner = g.Username
		if v.Winner == g.Bot {
			g.Winner = BotName
		}
		m.finish(g, now)
	case Draw:
		m.finish(g, now)
	default:
		g.Turn = mark.Opponent()
	}
	return MoveResult{Index: index, Mark: mark, Board: g.Board.Clone(), Verdict: v}, nil
}

func (m *Manager) finish(g *GameState, at time.Time) {
	g.Status = StatusFinished
	g.EndedAt = at
	log.Info().Str("game", g.ID).Str("winner", g.Winner).Stringer("outcome", g.Verdict.Outcome).
		Int("moves", len(g.Moves)).Msg("game-finished")
	if m.onFinish != nil {
		go m.onFinish(g.clone())
	}
}

// Restart empties the board of an existing game and hands the first move
// back to X.
func (m *Manager) Restart(gameID string) (GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return GameState{}, ErrGameNotFound
	}
	now := m.now()
	g.Board.Reset()
	g.Turn = X
	g.Status = StatusActive
	g.Verdict = Verdict{}
	g.Winner = ""
	g.Moves = nil
	g.Games++
	g.StartedAt = now
	g.EndedAt = time.Time{}
	g.LastMoveAt = now
	return g.clone(), nil
}

func (m *Manager) GetGame(gameID string) (GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return GameState{}, false
	}
	return g.clone(), true
}

// GameForUser returns the game id bound to username or fallback.
func (m *Manager) GameForUser(username, fallback string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userToGame[username]; ok {
		return id
	}
	return fallback
}

// GetGameByUser retrieves a game using username if present.
func (m *Manager) GetGameByUser(username string) (GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists {
			return g.clone(), true
		}
	}
	return GameState{}, false
}

func (m *Manager) Abandon(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userToGame, username)
}

// SweepIdle closes games without a move inside the idle window and drops
// finished ones past it. It returns the number of games removed.
func (m *Manager) SweepIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, g := range m.games {
		if now.Sub(g.LastMoveAt) <= m.idleAfter {
			continue
		}
		if g.Status != StatusFinished {
			m.finish(g, now)
			log.Info().Str("game", id).Msg("game abandoned after idle window")
		}
		delete(m.games, id)
		if m.userToGame[g.Username] == id {
			delete(m.userToGame, g.Username)
		}
		removed++
	}
	return removed
}
