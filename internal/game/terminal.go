package game

import "fmt"

// Outcome classifies a board position.
type Outcome int

const (
	Ongoing Outcome = iota
	Win
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	}
	return "ongoing"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "win":
		*o = Win
	case "draw":
		*o = Draw
	case "ongoing", "":
		*o = Ongoing
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Verdict is the result of a terminal check. Winner and Line are set only
// for Win.
type Verdict struct {
	Outcome Outcome `json:"outcome"`
	Winner  Cell    `json:"winner"`
	Line    WinLine `json:"line,omitempty"`
}

func (v Verdict) Terminal() bool { return v.Outcome != Ongoing }

// Terminal scans lines in order and reports the first one uniformly held by
// a player. A draw is reported only when no line is won and no cell is empty.
func Terminal(b Board, lines []WinLine) Verdict {
	for _, line := range lines {
		if owner := lineOwner(b, line); owner != Empty {
			return Verdict{Outcome: Win, Winner: owner, Line: line}
		}
	}
	if b.Full() {
		return Verdict{Outcome: Draw}
	}
	return Verdict{Outcome: Ongoing}
}

// lineOwner returns the mark holding every cell of line, or Empty.
func lineOwner(b Board, line WinLine) Cell {
	first := b[line[0]]
	if first == Empty {
		return Empty
	}
	for _, idx := range line[1:] {
		if b[idx] != first {
			return Empty
		}
	}
	return first
}

// lineCounts counts the cells of line held by a and by b.
func lineCounts(board Board, line WinLine, a, b Cell) (na, nb int) {
	for _, idx := range line {
		switch board[idx] {
		case a:
			na++
		case b:
			nb++
		}
	}
	return na, nb
}
