package livedto

// Analysis is an engine evaluation of a single position. Score is normalized
// to [-1, 1] from White's perspective: positive favors White, 0 is equal.
// BestMove is empty when the position is terminal.
type Analysis struct {
	Score        float64 `json:"score"`
	BestMove     string  `json:"best_move,omitempty"`
	DepthReached int     `json:"depth_reached"`
}
