package engine

// Status is a game outcome classification. TerminalStatus only ever reports
// the board-derivable values; the agreement/resignation statuses are set by
// the game lifecycle layer.
type Status string

const (
	StatusInProgress     Status = "in_progress"
	StatusCheckmate      Status = "checkmate"
	StatusStalemate      Status = "stalemate"
	StatusDrawFiftyMove  Status = "draw_fifty_move"
	StatusDrawRepetition Status = "draw_repetition"
	StatusDrawMaterial   Status = "draw_material"
	StatusDrawAgreed     Status = "draw_agreed"
	StatusResigned       Status = "resigned"
)

// Terminal reports whether s ends a game.
func (s Status) Terminal() bool { return s != StatusInProgress && s != "" }

// Draw reports whether s is any of the drawn outcomes.
func (s Status) Draw() bool {
	switch s {
	case StatusStalemate, StatusDrawFiftyMove, StatusDrawRepetition, StatusDrawMaterial, StatusDrawAgreed:
		return true
	}
	return false
}

// TerminalStatus classifies the position. occurrences is how many times the
// current position (by RepetitionKey) has appeared over the game's history,
// counting the present one. Checkmate and stalemate take precedence over the
// clock and repetition draws.
func TerminalStatus(b Board, occurrences int) Status {
	if len(LegalMoves(b)) == 0 {
		if InCheck(b, b.Turn) {
			return StatusCheckmate
		}
		return StatusStalemate
	}
	if b.Halfmove >= 100 {
		return StatusDrawFiftyMove
	}
	if occurrences >= 3 {
		return StatusDrawRepetition
	}
	if InsufficientMaterial(b) {
		return StatusDrawMaterial
	}
	return StatusInProgress
}

// InsufficientMaterial reports the dead positions no sequence of legal moves
// can ever mate from: K vs K, K+B vs K, K+N vs K, and K+B vs K+B with both
// bishops on the same square color.
func InsufficientMaterial(b Board) bool {
	var knights, bishops int
	bishopColors := map[int]bool{}
	for sq := Square(0); sq < 64; sq++ {
		switch b.Pieces[sq].Type {
		case NoPiece, King:
		case Knight:
			knights++
		case Bishop:
			bishops++
			bishopColors[(sq.File()+sq.Rank())%2] = true
		default:
			return false
		}
	}
	if knights == 0 && bishops == 0 {
		return true
	}
	if knights == 1 && bishops == 0 {
		return true
	}
	if knights == 0 && len(bishopColors) == 1 {
		return true
	}
	return false
}
