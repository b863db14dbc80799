package game

import (
	"fmt"
	"sort"
)

const (
	RegimeClassic  = "classic"
	RegimeExtended = "extended"
)

// DepthSchedule maps the number of empty cells to a search depth limit.
type DepthSchedule func(empty int) int

// DefaultSchedule searches shallow while the board is open and deeper as it
// fills, so the endgame reaches true terminal positions.
func DefaultSchedule(empty int) int {
	switch {
	case empty > 15:
		return 3
	case empty > 7:
		return 4
	default:
		return 6
	}
}

// Regime fixes the board geometry, win lines and search policy of one game
// variant.
type Regime struct {
	Name       string
	Size       int
	LineLength int
	Lines      []WinLine
	// Evaluator scores non-terminal leaves. Nil means leaves are scored only
	// by terminal outcome.
	Evaluator Evaluator
	// Schedule bounds search depth. Nil means exhaustive search.
	Schedule DepthSchedule
	// Shortcuts enables the win-now and block-now policies ahead of search.
	Shortcuts bool
}

var (
	classicLines   = EnumerateLines(3, 3)
	extendedLines  = EnumerateLines(5, 4)
	extendedScorer = NewLineEvaluator(extendedLines)
)

// Classic is 3×3 with three in a row, searched exhaustively.
func Classic() Regime {
	return Regime{
		Name:       RegimeClassic,
		Size:       3,
		LineLength: 3,
		Lines:      classicLines,
	}
}

// Extended is 5×5 with four in a row, depth-limited with a line heuristic.
func Extended() Regime {
	return Regime{
		Name:       RegimeExtended,
		Size:       5,
		LineLength: 4,
		Lines:      extendedLines,
		Evaluator:  extendedScorer,
		Schedule:   DefaultSchedule,
		Shortcuts:  true,
	}
}

func Regimes() []Regime {
	return []Regime{Classic(), Extended()}
}

func LookupRegime(name string) (Regime, error) {
	for _, r := range Regimes() {
		if r.Name == name {
			return r, nil
		}
	}
	return Regime{}, fmt.Errorf("%w: %q", ErrUnknownRegime, name)
}

func (r Regime) Cells() int { return r.Size * r.Size }

// Validate checks the line table against the board geometry.
func (r Regime) Validate() error {
	if r.Size <= 0 || r.LineLength <= 0 || r.LineLength > r.Size {
		return fmt.Errorf("%w: size %d line length %d", ErrInvalidRegime, r.Size, r.LineLength)
	}
	if len(r.Lines) == 0 {
		return fmt.Errorf("%w: no win lines", ErrInvalidRegime)
	}
	seen := make(map[string]bool, len(r.Lines))
	for i, line := range r.Lines {
		if len(line) != r.LineLength {
			return fmt.Errorf("%w: line %d has %d cells, want %d", ErrInvalidRegime, i, len(line), r.LineLength)
		}
		for _, idx := range line {
			if idx < 0 || idx >= r.Cells() {
				return fmt.Errorf("%w: line %d index %d out of range", ErrInvalidRegime, i, idx)
			}
		}
		sorted := append([]int(nil), line...)
		sort.Ints(sorted)
		key := fmt.Sprint(sorted)
		if seen[key] {
			return fmt.Errorf("%w: duplicate line %v", ErrInvalidRegime, line)
		}
		seen[key] = true
	}
	return nil
}
