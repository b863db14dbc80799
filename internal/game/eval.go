package game

const (
	// WinScore is the leaf score of a won position when no static evaluator
	// is configured.
	WinScore = 10

	// MinDecisive is the floor for a LineEvaluator's decisive sentinel. On
	// 5×5 with four in a row the sentinel grows to 100000, so partial sums of
	// 1000 or more stay non-decisive there.
	MinDecisive = 1000
)

// Evaluator scores a board from the maximizer's point of view.
type Evaluator interface {
	Evaluate(b Board, maximizer, minimizer Cell) int
	// Decisive is the magnitude reserved for a completed line. Any score
	// whose absolute value reaches it is a confirmed win or loss.
	Decisive() int
}

// LineEvaluator sums 10^k for every line holding k cells of a single
// player, positive for the maximizer and negative for the minimizer.
type LineEvaluator struct {
	lines    []WinLine
	decisive int
}

// NewLineEvaluator picks the decisive sentinel as the smallest power of ten,
// not below MinDecisive, that exceeds every achievable partial-line sum.
func NewLineEvaluator(lines []WinLine) *LineEvaluator {
	maxLine := 0
	for _, l := range lines {
		if len(l) > maxLine {
			maxLine = len(l)
		}
	}
	partial := len(lines) * pow10(maxLine-1)
	decisive := MinDecisive
	for decisive <= partial {
		decisive *= 10
	}
	return &LineEvaluator{lines: lines, decisive: decisive}
}

func (e *LineEvaluator) Decisive() int { return e.decisive }

// MaxPartial is the largest sum the non-decisive terms can reach.
func (e *LineEvaluator) MaxPartial() int {
	sum := 0
	for _, l := range e.lines {
		sum += pow10(len(l) - 1)
	}
	return sum
}

func (e *LineEvaluator) Evaluate(b Board, maximizer, minimizer Cell) int {
	for _, line := range e.lines {
		switch lineOwner(b, line) {
		case maximizer:
			return e.decisive
		case minimizer:
			return -e.decisive
		}
	}

	score := 0
	for _, line := range e.lines {
		nMax, nMin := lineCounts(b, line, maximizer, minimizer)
		switch {
		case nMax > 0 && nMin == 0:
			score += pow10(nMax)
		case nMin > 0 && nMax == 0:
			score -= pow10(nMin)
		}
	}
	return score
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
