package match

import (
	"fmt"
	"time"

	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

// New creates a game from the standard starting position. Either seat may be
// empty; the game stays in PhaseWaiting until both are filled.
func New(id, whiteID, blackID string) *Game {
	g, err := NewFromFEN(id, engine.StartFEN, whiteID, blackID)
	if err != nil {
		panic("match: standard start position rejected: " + err.Error())
	}
	return g
}

// NewFromFEN creates a game from a validated external position string.
func NewFromFEN(id, fen, whiteID, blackID string) (*Game, error) {
	board, err := engine.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	g := &Game{
		ID:        id,
		WhiteID:   whiteID,
		BlackID:   blackID,
		StartFEN:  board.FEN(),
		Board:     board,
		Status:    engine.StatusInProgress,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		reps:      map[string]int{board.RepetitionKey(): 1},
	}
	return g, nil
}

// Phase derives the lifecycle phase. A terminal status wins over seating.
func (g *Game) Phase() Phase {
	if g.Status.Terminal() {
		return PhaseFinished
	}
	if g.WhiteID == "" || g.BlackID == "" {
		return PhaseWaiting
	}
	return PhaseActive
}

// SideOf resolves which side a player occupies.
func (g *Game) SideOf(playerID string) (engine.Color, error) {
	switch {
	case playerID != "" && playerID == g.WhiteID:
		return engine.White, nil
	case playerID != "" && playerID == g.BlackID:
		return engine.Black, nil
	}
	return engine.White, ErrNotInGame
}

// Join seats a player into the empty seat. The Waiting->Active transition
// happens implicitly once both seats are filled.
func (g *Game) Join(playerID string) error {
	if g.Status.Terminal() {
		return ErrGameFinished
	}
	if _, err := g.SideOf(playerID); err == nil {
		return nil // already seated, idempotent
	}
	switch {
	case g.WhiteID == "":
		g.WhiteID = playerID
	case g.BlackID == "":
		g.BlackID = playerID
	default:
		return ErrSeatTaken
	}
	g.Version++
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyMove validates and applies one move. On success the game alternates
// side to move, appends to history, bumps the version and recomputes the
// terminal status. Failure leaves the game untouched.
func (g *Game) ApplyMove(side engine.Color, m engine.Move, expectedVersion uint64) (livedto.Event, error) {
	if g.Status.Terminal() {
		return livedto.Event{}, ErrGameFinished
	}
	if g.Phase() == PhaseWaiting {
		return livedto.Event{}, ErrNotStarted
	}
	if expectedVersion != g.Version {
		return livedto.Event{}, fmt.Errorf("%w: expected %d, current %d", ErrVersionConflict, expectedVersion, g.Version)
	}
	if side != g.Board.Turn {
		return livedto.Event{}, ErrNotYourTurn
	}

	next, err := engine.Apply(g.Board, m)
	if err != nil {
		return livedto.Event{}, err
	}

	g.Board = next
	g.MovesUCI = append(g.MovesUCI, m.UCI())
	g.reps[next.RepetitionKey()]++
	g.Status = engine.TerminalStatus(next, g.reps[next.RepetitionKey()])
	if g.Status == engine.StatusCheckmate {
		g.Winner = next.Turn.Other().String()
	}
	g.Version++
	g.UpdatedAt = time.Now().UTC()

	typ := livedto.EventMove
	if g.Status.Terminal() {
		typ = livedto.EventFinished
	}
	return g.Event(typ), nil
}

// Resign ends the game in favor of the opposing side.
func (g *Game) Resign(side engine.Color, expectedVersion uint64) (livedto.Event, error) {
	if g.Status.Terminal() {
		return livedto.Event{}, ErrGameFinished
	}
	if expectedVersion != g.Version {
		return livedto.Event{}, fmt.Errorf("%w: expected %d, current %d", ErrVersionConflict, expectedVersion, g.Version)
	}
	g.Status = engine.StatusResigned
	g.Winner = side.Other().String()
	g.Version++
	g.UpdatedAt = time.Now().UTC()
	return g.Event(livedto.EventFinished), nil
}

// AgreeDraw ends the game as a draw by agreement.
func (g *Game) AgreeDraw(expectedVersion uint64) (livedto.Event, error) {
	if g.Status.Terminal() {
		return livedto.Event{}, ErrGameFinished
	}
	if expectedVersion != g.Version {
		return livedto.Event{}, fmt.Errorf("%w: expected %d, current %d", ErrVersionConflict, expectedVersion, g.Version)
	}
	g.Status = engine.StatusDrawAgreed
	g.Version++
	g.UpdatedAt = time.Now().UTC()
	return g.Event(livedto.EventFinished), nil
}

// Event renders the current state as a broadcast payload, with the legal-move
// map recomputed for client-side highlighting.
func (g *Game) Event(typ string) livedto.Event {
	ev := livedto.Event{
		GameID:  g.ID,
		Type:    typ,
		Version: g.Version,
		FEN:     g.Board.FEN(),
		Status:  string(g.Status),
		Turn:    g.Board.Turn.String(),
		Winner:  g.Winner,
	}
	if len(g.MovesUCI) > 0 {
		ev.LastMove = g.MovesUCI[len(g.MovesUCI)-1]
	}
	if g.Status.Terminal() {
		ev.LegalMoves = map[string][]string{}
	} else {
		ev.LegalMoves = engine.LegalTargets(g.Board)
	}
	return ev
}

// Snapshot returns the persisted form of the game.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:        g.ID,
		WhiteID:   g.WhiteID,
		BlackID:   g.BlackID,
		StartFEN:  g.StartFEN,
		MovesUCI:  append([]string(nil), g.MovesUCI...),
		Status:    g.Status,
		Winner:    g.Winner,
		Version:   g.Version,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// Restore rebuilds a game from its snapshot by replaying the move history
// through the rules engine. The stored status wins over the derived one so
// resignations and agreed draws survive the round trip.
func Restore(snap Snapshot) (*Game, error) {
	g, err := NewFromFEN(snap.ID, snap.StartFEN, snap.WhiteID, snap.BlackID)
	if err != nil {
		return nil, err
	}
	board := g.Board
	for _, uci := range snap.MovesUCI {
		m, err := engine.ParseMove(uci)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", snap.ID, err)
		}
		board, err = engine.Apply(board, m)
		if err != nil {
			return nil, fmt.Errorf("replay %s move %s: %w", snap.ID, uci, err)
		}
		g.reps[board.RepetitionKey()]++
	}
	g.Board = board
	g.MovesUCI = append([]string(nil), snap.MovesUCI...)
	g.Status = snap.Status
	g.Winner = snap.Winner
	g.Version = snap.Version
	g.CreatedAt = snap.CreatedAt
	g.UpdatedAt = snap.UpdatedAt
	return g, nil
}

// Checkpoint snapshots the mutable fields for rollback.
func (g *Game) Checkpoint() Checkpoint {
	reps := make(map[string]int, len(g.reps))
	for k, v := range g.reps {
		reps[k] = v
	}
	return Checkpoint{
		board:     g.Board,
		movesLen:  len(g.MovesUCI),
		status:    g.Status,
		winner:    g.Winner,
		version:   g.Version,
		updatedAt: g.UpdatedAt,
		reps:      reps,
	}
}

// Rollback restores the game to a previously taken checkpoint.
func (g *Game) Rollback(cp Checkpoint) {
	g.Board = cp.board
	g.MovesUCI = g.MovesUCI[:cp.movesLen]
	g.Status = cp.status
	g.Winner = cp.winner
	g.Version = cp.version
	g.UpdatedAt = cp.updatedAt
	g.reps = cp.reps
}
