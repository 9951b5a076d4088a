package analysis

import (
	"context"
	"math"

	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

// MaterialEngine is the built-in deterministic evaluator: score is the
// material balance squashed into [-1, 1] from White's perspective, and the
// best move is the legal move with the largest immediate material gain for
// the side to move, ties broken by UCI order. It needs no external process,
// so deployments without a Stockfish binary still get analysis.
type MaterialEngine struct{}

var pieceValueCP = [7]int{0, 100, 320, 330, 500, 900, 0}

func (MaterialEngine) Analyze(ctx context.Context, fen string, depth int) (livedto.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return livedto.Analysis{}, err
	}
	b, err := engine.ParseFEN(fen)
	if err != nil {
		return livedto.Analysis{}, err
	}
	depth = ClampDepth(depth)

	switch engine.TerminalStatus(b, 1) {
	case engine.StatusCheckmate:
		score := 1.0
		if b.Turn == engine.White { // White to move and mated
			score = -1.0
		}
		return livedto.Analysis{Score: score, DepthReached: depth}, nil
	case engine.StatusStalemate, engine.StatusDrawFiftyMove, engine.StatusDrawMaterial:
		return livedto.Analysis{Score: 0, DepthReached: depth}, nil
	}

	best := ""
	bestCP := math.MinInt
	for _, m := range engine.LegalMoves(b) {
		next, err := engine.Apply(b, m)
		if err != nil {
			continue
		}
		cp := materialCP(next)
		if b.Turn == engine.Black {
			cp = -cp
		}
		uci := m.UCI()
		if cp > bestCP || (cp == bestCP && uci < best) {
			bestCP = cp
			best = uci
		}
	}

	return livedto.Analysis{
		Score:        NormalizeScore(materialCP(b), engine.White),
		BestMove:     best,
		DepthReached: depth,
	}, nil
}

// materialCP sums piece values, White minus Black, in centipawns.
func materialCP(b engine.Board) int {
	total := 0
	for sq := engine.Square(0); sq < 64; sq++ {
		p := b.Pieces[sq]
		if p.Type == engine.NoPiece {
			continue
		}
		v := pieceValueCP[p.Type]
		if p.Color == engine.White {
			total += v
		} else {
			total -= v
		}
	}
	return total
}

// NormalizeScore maps a centipawn evaluation to [-1, 1] from White's
// perspective. pov names the side the raw cp value is relative to; UCI
// engines report relative to the side to move.
func NormalizeScore(cp int, pov engine.Color) float64 {
	v := math.Tanh(float64(cp) / 1000.0)
	if pov == engine.Black {
		v = -v
	}
	return v
}
