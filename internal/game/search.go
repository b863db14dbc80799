package game

import "math"

// SearchConfig controls one search call.
type SearchConfig struct {
	Maximizer Cell // side whose gain is positive
	Limit     int  // depth limit in plies, 0 for exhaustive
	// DisablePruning searches the full tree. Results are identical; only
	// the node count differs.
	DisablePruning bool
}

// SearchResult is the outcome of a search. Move is -1 when the root had no
// move to make.
type SearchResult struct {
	Score int   `json:"score"`
	Move  int   `json:"move"`
	Nodes int64 `json:"nodes"`
	Limit int   `json:"limit"`
}

// Searcher runs minimax with alpha-beta pruning over a fixed line table.
// It holds no per-call state and may be shared.
type Searcher struct {
	lines []WinLine
	eval  Evaluator
}

func NewSearcher(lines []WinLine, eval Evaluator) *Searcher {
	return &Searcher{lines: lines, eval: eval}
}

// Search returns the best score reachable from b with toMove to play, and
// the lowest index achieving it. b is not modified.
func (s *Searcher) Search(b Board, toMove Cell, cfg SearchConfig) SearchResult {
	st := &search{
		Searcher: s,
		board:    b.Clone(),
		max:      cfg.Maximizer,
		min:      cfg.Maximizer.Opponent(),
		limit:    cfg.Limit,
		prune:    !cfg.DisablePruning,
	}
	score, move := st.minimax(toMove, 0, math.MinInt, math.MaxInt)
	return SearchResult{Score: score, Move: move, Nodes: st.nodes, Limit: cfg.Limit}
}

type search struct {
	*Searcher
	board    Board
	max, min Cell
	limit    int
	prune    bool
	nodes    int64
}

// leaf reports the score of a node that must not be expanded.
func (s *search) leaf(depth int) (int, bool) {
	if s.eval != nil {
		score := s.eval.Evaluate(s.board, s.max, s.min)
		if score >= s.eval.Decisive() || score <= -s.eval.Decisive() {
			return score, true
		}
		if s.board.Full() {
			return 0, true
		}
		if s.limit > 0 && depth >= s.limit {
			return score, true
		}
		return 0, false
	}

	v := Terminal(s.board, s.lines)
	switch v.Outcome {
	case Win:
		if v.Winner == s.max {
			return WinScore, true
		}
		return -WinScore, true
	case Draw:
		return 0, true
	}
	if s.limit > 0 && depth >= s.limit {
		return 0, true
	}
	return 0, false
}

func (s *search) minimax(player Cell, depth int, alpha, beta int) (int, int) {
	s.nodes++

	if score, ok := s.leaf(depth); ok {
		return score, -1
	}

	best := -1
	if player == s.max {
		bestScore := math.MinInt
		for idx, c := range s.board {
			if c != Empty {
				continue
			}
			s.board[idx] = player
			score, _ := s.minimax(s.min, depth+1, alpha, beta)
			s.board[idx] = Empty
			if score > bestScore {
				bestScore = score
				best = idx
			}
			alpha = max(alpha, score)
			if s.prune && beta <= alpha {
				break
			}
		}
		return bestScore, best
	}

	bestScore := math.MaxInt
	for idx, c := range s.board {
		if c != Empty {
			continue
		}
		s.board[idx] = player
		score, _ := s.minimax(s.max, depth+1, alpha, beta)
		s.board[idx] = Empty
		if score < bestScore {
			bestScore = score
			best = idx
		}
		beta = min(beta, score)
		if s.prune && beta <= alpha {
			break
		}
	}
	return bestScore, best
}
