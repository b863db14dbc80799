package game

import (
	"errors"
	"fmt"
)

// Cell is the content of one board square.
type Cell int8

const (
	Empty Cell = iota
	X
	O
)

var (
	ErrBoardSize     = errors.New("board length does not match regime")
	ErrBoardFull     = errors.New("board has no empty cell")
	ErrInvalidCell   = errors.New("invalid cell index")
	ErrCellTaken     = errors.New("cell is already occupied")
	ErrInvalidMark   = errors.New("invalid player mark")
	ErrInvalidTurn   = errors.New("not your turn")
	ErrGameFinished  = errors.New("game already finished")
	ErrGameNotFound  = errors.New("game not found")
	ErrUnknownRegime = errors.New("unknown regime")
	ErrInvalidRegime = errors.New("invalid regime")
)

// Opponent returns the other player's mark. Empty maps to Empty.
func (c Cell) Opponent() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	}
	return Empty
}

// IsPlayer reports whether c is X or O.
func (c Cell) IsPlayer() bool { return c == X || c == O }

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	}
	return ""
}

func (c Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cell) UnmarshalText(text []byte) error {
	v, err := ParseCell(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCell accepts "", "X" and "O" (lower case too).
func ParseCell(s string) (Cell, error) {
	switch s {
	case "":
		return Empty, nil
	case "X", "x":
		return X, nil
	case "O", "o":
		return O, nil
	}
	return Empty, fmt.Errorf("%w: %q", ErrInvalidMark, s)
}

// ParseMark is ParseCell restricted to the two player marks.
func ParseMark(s string) (Cell, error) {
	c, err := ParseCell(s)
	if err != nil {
		return Empty, err
	}
	if !c.IsPlayer() {
		return Empty, fmt.Errorf("%w: %q", ErrInvalidMark, s)
	}
	return c, nil
}

// Board is a flat row-major sequence of cells.
type Board []Cell

func NewBoard(cells int) Board {
	return make(Board, cells)
}

// ParseBoard builds a board from its text form, e.g. ["X","","O",...].
func ParseBoard(cells []string) (Board, error) {
	b := make(Board, len(cells))
	for i, s := range cells {
		c, err := ParseCell(s)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		b[i] = c
	}
	return b, nil
}

func (b Board) Clone() Board {
	dest := make(Board, len(b))
	copy(dest, b)
	return dest
}

// Reset empties every cell in place; the length is unchanged.
func (b Board) Reset() {
	for i := range b {
		b[i] = Empty
	}
}

func (b Board) EmptyCount() int {
	n := 0
	for _, c := range b {
		if c == Empty {
			n++
		}
	}
	return n
}

// EmptyCells lists empty indices in increasing order.
func (b Board) EmptyCells() []int {
	out := make([]int, 0, len(b))
	for i, c := range b {
		if c == Empty {
			out = append(out, i)
		}
	}
	return out
}

func (b Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

func (b Board) Strings() []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = c.String()
	}
	return out
}

// Place puts mark on an empty index.
func (b Board) Place(index int, mark Cell) error {
	if index < 0 || index >= len(b) {
		return ErrInvalidCell
	}
	if !mark.IsPlayer() {
		return ErrInvalidMark
	}
	if b[index] != Empty {
		return ErrCellTaken
	}
	b[index] = mark
	return nil
}

// WinLine is a set of indices that wins when uniformly occupied.
type WinLine []int

// EnumerateLines lists every straight run of length cells on a size×size
// board: rows, then columns, then down-right diagonals, then down-left
// diagonals, each ordered by the row-major position of its first cell.
func EnumerateLines(size, length int) []WinLine {
	if size <= 0 || length <= 0 || length > size {
		return nil
	}
	dirs := [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	var lines []WinLine
	for _, d := range dirs {
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				endRow := row + d[0]*(length-1)
				endCol := col + d[1]*(length-1)
				if endRow < 0 || endRow >= size || endCol < 0 || endCol >= size {
					continue
				}
				line := make(WinLine, length)
				for k := 0; k < length; k++ {
					line[k] = (row+d[0]*k)*size + col + d[1]*k
				}
				lines = append(lines, line)
			}
		}
	}
	return lines
}
