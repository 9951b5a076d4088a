package analysis

import (
	"context"

	"github.com/petrel-labs/liveboard/internal/analysis/uci"
	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

// mate scores saturate the normalized scale
const mateCP = 30000

// StockfishEngine evaluates positions with a pooled external UCI engine.
type StockfishEngine struct {
	pool *uci.Pool
}

func NewStockfishEngine(binaryPath string, threads, hashMB, capacity int) (*StockfishEngine, error) {
	pool, err := uci.NewPool(binaryPath, uci.Options{Threads: threads, HashMB: hashMB}, capacity)
	if err != nil {
		return nil, err
	}
	return &StockfishEngine{pool: pool}, nil
}

func (e *StockfishEngine) Analyze(ctx context.Context, fen string, depth int) (livedto.Analysis, error) {
	b, err := engine.ParseFEN(fen)
	if err != nil {
		return livedto.Analysis{}, err
	}
	depth = ClampDepth(depth)

	switch engine.TerminalStatus(b, 1) {
	case engine.StatusCheckmate:
		score := 1.0
		if b.Turn == engine.White {
			score = -1.0
		}
		return livedto.Analysis{Score: score, DepthReached: depth}, nil
	case engine.StatusStalemate, engine.StatusDrawFiftyMove, engine.StatusDrawMaterial:
		return livedto.Analysis{Score: 0, DepthReached: depth}, nil
	}

	s, err := e.pool.Acquire(ctx)
	if err != nil {
		return livedto.Analysis{}, err
	}
	res, err := s.Analyze(ctx, b.FEN(), depth)
	e.pool.Release(s, err)
	if err != nil {
		return livedto.Analysis{}, err
	}

	cp := res.ScoreCP
	if res.Mate != 0 {
		cp = mateCP
		if res.Mate < 0 {
			cp = -mateCP
		}
	}
	return livedto.Analysis{
		Score:        NormalizeScore(cp, b.Turn),
		BestMove:     res.BestMove,
		DepthReached: res.Depth,
	}, nil
}

func (e *StockfishEngine) Close() error { return e.pool.Close() }
