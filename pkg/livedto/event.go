// Package livedto holds the wire-level payloads exchanged with the rendering
// and push boundaries. It deliberately has no dependencies on the internal
// packages so external collaborators can import it alone.
package livedto

// Event is one committed state change of a game, broadcast to every live
// subscriber in commit order.
type Event struct {
	GameID     string              `json:"game_id"`
	Type       string              `json:"type"` // "snapshot", "move" or "finished"
	Version    uint64              `json:"version"`
	FEN        string              `json:"fen"`
	Status     string              `json:"status"`
	Turn       string              `json:"turn"`
	LastMove   string              `json:"last_move,omitempty"`
	Winner     string              `json:"winner,omitempty"`
	LegalMoves map[string][]string `json:"legal_moves"`
}

const (
	EventSnapshot = "snapshot"
	EventMove     = "move"
	EventFinished = "finished"
	// EventGap tells a dropped subscriber its stream has a hole and it must
	// resync from a full snapshot instead of trusting the partial stream.
	EventGap = "gap"
)
