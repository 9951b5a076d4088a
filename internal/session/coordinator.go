// Package session coordinates all mutation of live games. Every game has a
// critical section; inside it a submission is validated, applied, persisted
// and broadcast as one unit, which makes the snapshot store the source of
// truth and gives subscribers events in exact commit order.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/internal/live"
	"github.com/petrel-labs/liveboard/internal/match"
	"github.com/petrel-labs/liveboard/internal/obslog"
	"github.com/petrel-labs/liveboard/internal/store"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

var (
	// ErrPersistence wraps a failed snapshot write. The in-memory game has
	// been rolled back; the move did not happen.
	ErrPersistence = errf("persistence failure")

	ErrGameNotFound = errf("game not found")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// SnapshotStore is the persistence boundary the coordinator writes through.
type SnapshotStore interface {
	Save(ctx context.Context, snap match.Snapshot) error
	Load(ctx context.Context, id string) (match.Snapshot, error)
}

// Archiver receives finished games. Archival is best effort and never fails
// the move that ended the game.
type Archiver interface {
	SaveResult(ctx context.Context, snap match.Snapshot, finalFEN string) error
}

const archiveTimeout = 5 * time.Second

// Coordinator owns the registry of live games and their critical sections.
type Coordinator struct {
	store   SnapshotStore
	hub     *live.Hub
	archive Archiver // optional

	mu    sync.Mutex
	games map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	game *match.Game
}

func NewCoordinator(st SnapshotStore, hub *live.Hub, archive Archiver) *Coordinator {
	return &Coordinator{
		store:   st,
		hub:     hub,
		archive: archive,
		games:   make(map[string]*entry),
	}
}

// Create starts a new game with the creator seated on their requested color.
// PlayAs is "white", "black" or "random"; anything else defaults to white.
func (c *Coordinator) Create(ctx context.Context, playerID, playAs string) (livedto.Event, error) {
	white, black := playerID, ""
	switch playAs {
	case "black":
		white, black = "", playerID
	case "random":
		if rand.Intn(2) == 1 {
			white, black = "", playerID
		}
	}
	g := match.New(uuid.NewString(), white, black)
	if err := c.store.Save(ctx, g.Snapshot()); err != nil {
		return livedto.Event{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	c.mu.Lock()
	c.games[g.ID] = &entry{game: g}
	c.mu.Unlock()

	obslog.L().Info("game_created",
		zap.String("game_id", g.ID),
		zap.String("player_id", playerID),
		zap.String("play_as", playAs),
	)
	return g.Event(livedto.EventSnapshot), nil
}

// Join seats playerID into the open seat and broadcasts the new state.
func (c *Coordinator) Join(ctx context.Context, gameID, playerID string) (livedto.Event, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return livedto.Event{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := e.game.Checkpoint()
	if err := e.game.Join(playerID); err != nil {
		return livedto.Event{}, err
	}
	if err := c.store.Save(ctx, e.game.Snapshot()); err != nil {
		e.game.Rollback(cp)
		return livedto.Event{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	ev := e.game.Event(livedto.EventSnapshot)
	c.hub.Publish(gameID, ev)
	return ev, nil
}

// Submit runs one move through the full commit pipeline: validate, apply,
// persist, broadcast. Exactly one of N racing submissions with the same
// expected version wins; the rest fail with a version conflict and no side
// effects.
func (c *Coordinator) Submit(ctx context.Context, gameID, playerID, uci string, expectedVersion uint64) (livedto.Event, error) {
	m, err := engine.ParseMove(uci)
	if err != nil {
		return livedto.Event{}, err
	}
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return livedto.Event{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	side, err := e.game.SideOf(playerID)
	if err != nil {
		return livedto.Event{}, err
	}
	return c.commit(ctx, e, gameID, func() (livedto.Event, error) {
		return e.game.ApplyMove(side, m, expectedVersion)
	})
}

// Resign ends the game in the opponent's favor.
func (c *Coordinator) Resign(ctx context.Context, gameID, playerID string, expectedVersion uint64) (livedto.Event, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return livedto.Event{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	side, err := e.game.SideOf(playerID)
	if err != nil {
		return livedto.Event{}, err
	}
	return c.commit(ctx, e, gameID, func() (livedto.Event, error) {
		return e.game.Resign(side, expectedVersion)
	})
}

// AgreeDraw ends the game as a draw by agreement.
func (c *Coordinator) AgreeDraw(ctx context.Context, gameID, playerID string, expectedVersion uint64) (livedto.Event, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return livedto.Event{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.game.SideOf(playerID); err != nil {
		return livedto.Event{}, err
	}
	return c.commit(ctx, e, gameID, func() (livedto.Event, error) {
		return e.game.AgreeDraw(expectedVersion)
	})
}

// commit applies a mutation under the already-held entry lock, persists the
// result, rolls back on a failed write and broadcasts on success.
func (c *Coordinator) commit(ctx context.Context, e *entry, gameID string, mutate func() (livedto.Event, error)) (livedto.Event, error) {
	cp := e.game.Checkpoint()
	ev, err := mutate()
	if err != nil {
		return livedto.Event{}, err
	}
	snap := e.game.Snapshot()
	if err := c.store.Save(ctx, snap); err != nil {
		e.game.Rollback(cp)
		obslog.L().Error("snapshot_save_failed",
			zap.String("game_id", gameID),
			zap.Uint64("version", e.game.Version),
			zap.Error(err),
		)
		return livedto.Event{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	c.hub.Publish(gameID, ev)
	if ev.Type == livedto.EventFinished && c.archive != nil {
		go c.archiveFinished(snap, ev.FEN)
	}
	return ev, nil
}

func (c *Coordinator) archiveFinished(snap match.Snapshot, finalFEN string) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := c.archive.SaveResult(ctx, snap, finalFEN); err != nil {
		obslog.L().Warn("archive_failed",
			zap.String("game_id", snap.ID),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("game_archived",
		zap.String("game_id", snap.ID),
		zap.String("status", string(snap.Status)),
	)
}

// State returns the current full state of a game as a snapshot event.
func (c *Coordinator) State(ctx context.Context, gameID string) (livedto.Event, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return livedto.Event{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Event(livedto.EventSnapshot), nil
}

// History returns the applied move list in UCI order.
func (c *Coordinator) History(ctx context.Context, gameID string) ([]string, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.game.MovesUCI...), nil
}

// FEN returns the current position of a game, for the analysis surface.
func (c *Coordinator) FEN(ctx context.Context, gameID string) (string, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Board.FEN(), nil
}

// Subscribe attaches a viewer to a game's event stream. The returned snapshot
// event carries the full current state; every event on the subscription is a
// later commit, with nothing lost in between. The subscription is registered
// inside the game's critical section so no commit can slip between snapshot
// and stream.
func (c *Coordinator) Subscribe(ctx context.Context, gameID string) (livedto.Event, *live.Subscription, error) {
	e, err := c.entryFor(ctx, gameID)
	if err != nil {
		return livedto.Event{}, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := c.hub.Subscribe(gameID)
	return e.game.Event(livedto.EventSnapshot), sub, nil
}

// Unsubscribe detaches a viewer without a gap signal.
func (c *Coordinator) Unsubscribe(sub *live.Subscription) { c.hub.Unsubscribe(sub) }

// entryFor resolves the in-memory entry for a game, faulting it in from the
// snapshot store when this process has not seen it yet.
func (c *Coordinator) entryFor(ctx context.Context, gameID string) (*entry, error) {
	c.mu.Lock()
	if e, ok := c.games[gameID]; ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	snap, err := c.store.Load(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	g, err := match.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", gameID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.games[gameID]; ok { // lost the fault-in race
		return e, nil
	}
	e := &entry{game: g}
	c.games[gameID] = e
	obslog.L().Info("game_restored",
		zap.String("game_id", gameID),
		zap.Uint64("version", g.Version),
		zap.Int("moves", len(g.MovesUCI)),
	)
	return e, nil
}
