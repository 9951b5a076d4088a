package livedto

// CreateGameRequest creates a game; PlayAs is "white", "black" or "random".
type CreateGameRequest struct {
	PlayerID string `json:"player_id"`
	PlayAs   string `json:"play_as"`
}

// MoveRequest submits a move. ExpectedVersion is the game version the client
// last observed; a mismatch means another submission won the race and the
// client should refetch before retrying.
type MoveRequest struct {
	PlayerID        string `json:"player_id"`
	Move            string `json:"move"` // UCI, e.g. "e2e4" or "e7e8q"
	ExpectedVersion uint64 `json:"expected_version"`
	Resign          bool   `json:"resign,omitempty"`
	OfferDraw       bool   `json:"offer_draw,omitempty"`
}

// ErrorResponse is the JSON error body of the HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
