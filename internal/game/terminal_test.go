package game

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func mustBoard(t *testing.T, cells ...string) Board {
	t.Helper()
	b, err := ParseBoard(cells)
	if err != nil {
		t.Fatalf("bad board: %v", err)
	}
	return b
}

func TestTerminalClassic(t *testing.T) {
	e := MustEngine(Classic())

	tests := []struct {
		name   string
		board  []string
		want   Outcome
		winner Cell
		line   WinLine
	}{
		{
			name:  "row 0 X wins",
			board: []string{"X", "X", "X", "", "O", "", "", "O", ""},
			want:  Win, winner: X, line: WinLine{0, 1, 2},
		},
		{
			name:  "col 1 O wins",
			board: []string{"X", "O", "", "", "O", "X", "", "O", ""},
			want:  Win, winner: O, line: WinLine{1, 4, 7},
		},
		{
			name:  "anti diagonal X wins",
			board: []string{"O", "O", "X", "", "X", "", "X", "", ""},
			want:  Win, winner: X, line: WinLine{2, 4, 6},
		},
		{
			name:  "draw",
			board: []string{"X", "O", "X", "X", "O", "O", "O", "X", "X"},
			want:  Draw,
		},
		{
			name:  "in progress",
			board: []string{"X", "O", "X", "", "O", "", "O", "X", ""},
			want:  Ongoing,
		},
		{
			name:  "empty",
			board: make([]string, 9),
			want:  Ongoing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.EvaluateTerminal(mustBoard(t, tt.board...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Outcome != tt.want || v.Winner != tt.winner {
				t.Fatalf("expected %v/%v, got %v/%v", tt.want, tt.winner, v.Outcome, v.Winner)
			}
			if tt.line != nil && !reflect.DeepEqual(v.Line, tt.line) {
				t.Fatalf("expected line %v, got %v", tt.line, v.Line)
			}
		})
	}
}

func TestTerminalFullBoardWithWinIsWin(t *testing.T) {
	b := mustBoard(t, "X", "X", "X", "O", "O", "X", "X", "O", "O")
	v := Terminal(b, Classic().Lines)
	if v.Outcome != Win || v.Winner != X {
		t.Fatalf("a completed line on a full board is a win, got %+v", v)
	}
}

func TestTerminalExtendedDrawWithoutUniformLine(t *testing.T) {
	// Rows alternate in pairs so no row, column or diagonal run of four is
	// uniform.
	rows := [][]string{
		{"X", "X", "O", "O", "X"},
		{"O", "O", "X", "X", "O"},
		{"X", "X", "O", "O", "X"},
		{"O", "O", "X", "X", "O"},
		{"X", "X", "O", "O", "X"},
	}
	var cells []string
	for _, r := range rows {
		cells = append(cells, r...)
	}
	v, err := MustEngine(Extended()).EvaluateTerminal(mustBoard(t, cells...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Outcome != Draw {
		t.Fatalf("expected draw, got %+v", v)
	}
}

func TestTerminalRejectsWrongLength(t *testing.T) {
	_, err := MustEngine(Extended()).EvaluateTerminal(NewBoard(9))
	if !errors.Is(err, ErrBoardSize) {
		t.Fatalf("expected ErrBoardSize, got %v", err)
	}
}

func TestTerminalSymmetricUnderMarkSwap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, r := range Regimes() {
		for i := 0; i < 500; i++ {
			b := NewBoard(r.Cells())
			for j := range b {
				b[j] = Cell(rng.Intn(3))
			}
			swapped := b.Clone()
			for j, c := range swapped {
				swapped[j] = c.Opponent()
			}

			v := Terminal(b, r.Lines)
			sv := Terminal(swapped, r.Lines)
			if v.Outcome != sv.Outcome || v.Winner.Opponent() != sv.Winner || !reflect.DeepEqual(v.Line, sv.Line) {
				t.Fatalf("%s: verdict not symmetric for %v: %+v vs %+v", r.Name, b, v, sv)
			}
		}
	}
}
