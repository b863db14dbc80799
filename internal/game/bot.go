package game

import "fmt"

const (
	PolicyWin    = "win"
	PolicyBlock  = "block"
	PolicySearch = "search"
)

// Decision is the move chosen by the engine and how it was found.
type Decision struct {
	Index  int    `json:"index"`
	Policy string `json:"policy"`
	Score  int    `json:"score"`
	Nodes  int64  `json:"nodes"`
	Limit  int    `json:"limit"`
}

// Policy is one stage of move selection. Choose reports false when the
// stage has no opinion and the next one should run.
type Policy interface {
	Name() string
	Choose(b Board, me, opp Cell) (Decision, bool)
}

// Engine selects moves for the automated player: it tries each policy in
// order and plays the first answer.
type Engine struct {
	regime   Regime
	searcher *Searcher
	policies []Policy
}

func NewEngine(r Regime) (*Engine, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		regime:   r,
		searcher: NewSearcher(r.Lines, r.Evaluator),
	}
	if r.Shortcuts {
		e.policies = append(e.policies,
			completeLine{name: PolicyWin, lines: r.Lines, own: true},
			completeLine{name: PolicyBlock, lines: r.Lines},
		)
	}
	e.policies = append(e.policies, searchPolicy{searcher: e.searcher, schedule: r.Schedule})
	return e, nil
}

// MustEngine is NewEngine for the built-in regimes.
func MustEngine(r Regime) *Engine {
	e, err := NewEngine(r)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) Regime() Regime { return e.regime }

func (e *Engine) Searcher() *Searcher { return e.searcher }

func (e *Engine) Policies() []Policy { return e.policies }

// EvaluateTerminal reports whether b is won, drawn or still open.
func (e *Engine) EvaluateTerminal(b Board) (Verdict, error) {
	if len(b) != e.regime.Cells() {
		return Verdict{}, fmt.Errorf("%w: got %d cells, want %d", ErrBoardSize, len(b), e.regime.Cells())
	}
	return Terminal(b, e.regime.Lines), nil
}

// SelectMove returns the index the automated player me should occupy.
func (e *Engine) SelectMove(b Board, me, opp Cell) (int, error) {
	d, err := e.Decide(b, me, opp)
	if err != nil {
		return -1, err
	}
	return d.Index, nil
}

// Decide is SelectMove with the deciding policy and search statistics.
func (e *Engine) Decide(b Board, me, opp Cell) (Decision, error) {
	if !me.IsPlayer() || !opp.IsPlayer() || me == opp {
		return Decision{}, fmt.Errorf("%w: %q against %q", ErrInvalidMark, me, opp)
	}
	v, err := e.EvaluateTerminal(b)
	if err != nil {
		return Decision{}, err
	}
	switch v.Outcome {
	case Win:
		return Decision{}, fmt.Errorf("%w: %s holds %v", ErrGameFinished, v.Winner, v.Line)
	case Draw:
		return Decision{}, ErrBoardFull
	}

	for _, p := range e.policies {
		if d, ok := p.Choose(b, me, opp); ok {
			return d, nil
		}
	}
	// Search always answers on a board with an empty cell.
	return Decision{}, ErrBoardFull
}

// completeLine plays the empty cell of the first line missing exactly one
// mark of a single player: its own (win now) or the opponent's (block now).
type completeLine struct {
	name  string
	lines []WinLine
	own   bool
}

func (p completeLine) Name() string { return p.name }

func (p completeLine) Choose(b Board, me, opp Cell) (Decision, bool) {
	target, other := opp, me
	if p.own {
		target, other = me, opp
	}
	for _, line := range p.lines {
		nTarget, nOther := lineCounts(b, line, target, other)
		if nOther != 0 || nTarget != len(line)-1 {
			continue
		}
		for _, idx := range line {
			if b[idx] == Empty {
				return Decision{Index: idx, Policy: p.name}, true
			}
		}
	}
	return Decision{}, false
}

type searchPolicy struct {
	searcher *Searcher
	schedule DepthSchedule
}

func (p searchPolicy) Name() string { return PolicySearch }

func (p searchPolicy) Choose(b Board, me, _ Cell) (Decision, bool) {
	limit := 0
	if p.schedule != nil {
		limit = p.schedule(b.EmptyCount())
	}
	res := p.searcher.Search(b, me, SearchConfig{Maximizer: me, Limit: limit})
	if res.Move < 0 {
		return Decision{}, false
	}
	return Decision{
		Index:  res.Move,
		Policy: PolicySearch,
		Score:  res.Score,
		Nodes:  res.Nodes,
		Limit:  limit,
	}, true
}
