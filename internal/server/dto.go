package server

import "nrow/internal/game"

// NewGameRequest opens a game against the engine. Mark is the human's side;
// X always moves first.
type NewGameRequest struct {
	Username string `json:"username" binding:"required"`
	Regime   string `json:"regime"`
	Mark     string `json:"mark"`
}

// MoveRequest is a human move. Index is a pointer so that a missing index is
// rejected instead of playing cell 0.
type MoveRequest struct {
	Username string `json:"username" binding:"required"`
	Index    *int   `json:"index" binding:"required"`
}

// EngineMoveRequest asks for a move on a caller-owned board.
type EngineMoveRequest struct {
	Regime   string   `json:"regime" binding:"required"`
	Board    []string `json:"board" binding:"required"`
	Bot      string   `json:"bot" binding:"required"`
	Opponent string   `json:"opponent" binding:"required"`
}

type VerdictRequest struct {
	Regime string   `json:"regime" binding:"required"`
	Board  []string `json:"board" binding:"required"`
}

type RegimeDTO struct {
	Name       string         `json:"name"`
	Size       int            `json:"size"`
	LineLength int            `json:"lineLength"`
	Lines      []game.WinLine `json:"lines"`
	Exhaustive bool           `json:"exhaustive"`
	Shortcuts  bool           `json:"shortcuts"`
}

// StateResponse is what UIs render.
type StateResponse struct {
	GameID    string       `json:"gameId"`
	Regime    string       `json:"regime"`
	Board     game.Board   `json:"board"`
	Turn      game.Cell    `json:"turn"`
	Human     game.Cell    `json:"human"`
	Bot       game.Cell    `json:"bot"`
	Status    string       `json:"status"`
	Verdict   game.Verdict `json:"verdict"`
	Winner    string       `json:"winner"`
	Moves     int          `json:"moves"`
	Games     int          `json:"games"`
	StatusMsg string       `json:"statusText"`
}

type MoveResponse struct {
	State StateResponse    `json:"state"`
	Human *game.MoveResult `json:"human,omitempty"`
	Bot   *game.MoveResult `json:"bot,omitempty"`
}

func toRegimeDTO(r game.Regime) RegimeDTO {
	return RegimeDTO{
		Name:       r.Name,
		Size:       r.Size,
		LineLength: r.LineLength,
		Lines:      r.Lines,
		Exhaustive: r.Schedule == nil,
		Shortcuts:  r.Shortcuts,
	}
}

func toState(g game.GameState) StateResponse {
	return StateResponse{
		GameID:    g.ID,
		Regime:    g.Regime,
		Board:     g.Board,
		Turn:      g.Turn,
		Human:     g.Human,
		Bot:       g.Bot,
		Status:    g.Status,
		Verdict:   g.Verdict,
		Winner:    g.Winner,
		Moves:     len(g.Moves),
		Games:     g.Games,
		StatusMsg: statusText(g),
	}
}

// statusText is the line shown under the board.
func statusText(g game.GameState) string {
	switch g.Verdict.Outcome {
	case game.Win:
		return g.Verdict.Winner.String() + " wins!"
	case game.Draw:
		return "Draw!"
	}
	if g.Status == game.StatusFinished {
		return "Abandoned"
	}
	return g.Turn.String() + "'s turn"
}
