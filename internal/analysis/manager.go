// Package analysis serves position evaluations to viewers. Each viewer has at
// most one outstanding request; a newer request supersedes the older one, and
// a superseded or timed-out request never delivers its result.
package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

var (
	ErrTimeout   = errf("analysis timed out")
	ErrCancelled = errf("analysis cancelled")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

const (
	MinDepth = 1
	MaxDepth = 30

	defaultTimeout = 15 * time.Second
)

// ClampDepth folds any requested depth into the supported range.
func ClampDepth(depth int) int {
	if depth < MinDepth {
		return MinDepth
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}

// Engine evaluates a single position. Implementations must honor ctx
// cancellation promptly, propagating it into any external process.
type Engine interface {
	Analyze(ctx context.Context, fen string, depth int) (livedto.Analysis, error)
}

// Manager enforces the one-outstanding-request-per-viewer policy on top of an
// Engine. Safe for concurrent use.
type Manager struct {
	engine  Engine
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

type pendingRequest struct {
	cancel context.CancelCauseFunc
}

func NewManager(eng Engine, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Manager{
		engine:  eng,
		timeout: timeout,
		pending: make(map[string]*pendingRequest),
	}
}

// Request evaluates fen at the given depth on behalf of viewerID. If the
// viewer already has a request in flight, that one is cancelled down to the
// engine and fails with ErrCancelled; this call becomes the outstanding one.
// A request that outlives the manager timeout fails with ErrTimeout and its
// result, if the engine produced one late, is discarded.
func (m *Manager) Request(ctx context.Context, viewerID, fen string, depth int) (livedto.Analysis, error) {
	if _, err := engine.ParseFEN(fen); err != nil {
		return livedto.Analysis{}, err
	}
	depth = ClampDepth(depth)

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	runCtx, cancelTimeout := context.WithTimeout(reqCtx, m.timeout)
	defer cancelTimeout()

	p := &pendingRequest{cancel: cancel}
	m.mu.Lock()
	if prev := m.pending[viewerID]; prev != nil {
		prev.cancel(ErrCancelled)
	}
	m.pending[viewerID] = p
	m.mu.Unlock()

	res, err := m.engine.Analyze(runCtx, fen, depth)

	m.mu.Lock()
	if m.pending[viewerID] == p {
		delete(m.pending, viewerID)
	}
	m.mu.Unlock()

	// A completed result from a superseded request must never be applied.
	if cause := context.Cause(reqCtx); errors.Is(cause, ErrCancelled) {
		return livedto.Analysis{}, ErrCancelled
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return livedto.Analysis{}, ErrTimeout
		}
		return livedto.Analysis{}, err
	}
	return res, nil
}

// Cancel aborts the viewer's in-flight request, if any.
func (m *Manager) Cancel(viewerID string) {
	m.mu.Lock()
	p := m.pending[viewerID]
	delete(m.pending, viewerID)
	m.mu.Unlock()
	if p != nil {
		p.cancel(ErrCancelled)
	}
}
