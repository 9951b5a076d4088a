// Package match owns the lifecycle and mutable state of a single game: seat
// assignment, turn order, the applied-move history, and the optimistic
// concurrency version. All mutation goes through the methods on Game; the
// coordinator layer is responsible for serializing callers.
package match

import (
	"time"

	"github.com/petrel-labs/liveboard/internal/engine"
)

var (
	ErrNotYourTurn     = errf("not your turn")
	ErrGameFinished    = errf("game already finished")
	ErrVersionConflict = errf("version conflict")
	ErrNotStarted      = errf("game waiting for second player")
	ErrSeatTaken       = errf("both seats taken")
	ErrNotInGame       = errf("player not in game")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Phase is the coarse lifecycle of a game.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Game is the exclusive owner of one game's state. It is not safe for
// concurrent use; the session coordinator holds a per-game critical section
// around every call.
type Game struct {
	ID       string
	WhiteID  string
	BlackID  string
	StartFEN string

	Board    engine.Board
	MovesUCI []string
	Status   engine.Status
	Winner   string // "white", "black" or "" for draws and live games
	Version  uint64

	CreatedAt time.Time
	UpdatedAt time.Time

	reps map[string]int // RepetitionKey -> occurrences
}

// Snapshot is the persisted form of a game. The board itself is not stored;
// loading replays MovesUCI from StartFEN through the rules engine, which also
// rebuilds the repetition table.
type Snapshot struct {
	ID        string        `json:"id"`
	WhiteID   string        `json:"white_id,omitempty"`
	BlackID   string        `json:"black_id,omitempty"`
	StartFEN  string        `json:"start_fen"`
	MovesUCI  []string      `json:"moves_uci"`
	Status    engine.Status `json:"status"`
	Winner    string        `json:"winner,omitempty"`
	Version   uint64        `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Checkpoint captures the mutable state of a Game so a failed persistence
// write can roll the in-memory game back to the pre-move version.
type Checkpoint struct {
	board     engine.Board
	movesLen  int
	status    engine.Status
	winner    string
	version   uint64
	updatedAt time.Time
	reps      map[string]int
}
