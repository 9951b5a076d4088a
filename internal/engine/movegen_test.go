package engine

import (
	"slices"
	"testing"
)

func mustMove(t *testing.T, uci string) Move {
	t.Helper()
	m, err := ParseMove(uci)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", uci, err)
	}
	return m
}

func apply(t *testing.T, b Board, ucis ...string) Board {
	t.Helper()
	for _, uci := range ucis {
		next, err := Apply(b, mustMove(t, uci))
		if err != nil {
			t.Fatalf("Apply(%s) on %q: %v", uci, b.FEN(), err)
		}
		b = next
	}
	return b
}

func TestOpeningSequenceFEN(t *testing.T) {
	b := apply(t, NewBoard(), "e2e4")
	if got := b.FEN(); got != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1" {
		t.Fatalf("after e2e4: %q", got)
	}
	b = apply(t, b, "e7e5")
	if got := b.FEN(); got != "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2" {
		t.Fatalf("after e7e5: %q", got)
	}
}

func TestLegalTargetsStartPosition(t *testing.T) {
	targets := LegalTargets(NewBoard())
	if len(targets) != 10 { // 8 pawns + 2 knights
		t.Fatalf("start position movable pieces = %d, want 10", len(targets))
	}
	if got := targets["e2"]; !slices.Equal(got, []string{"e3", "e4"}) {
		t.Fatalf("e2 targets = %v", got)
	}
	if got := targets["g1"]; !slices.Equal(got, []string{"f3", "h3"}) {
		t.Fatalf("g1 targets = %v", got)
	}

	b := apply(t, NewBoard(), "e2e4")
	if got := LegalTargets(b)["e7"]; !slices.Equal(got, []string{"e5", "e6"}) {
		t.Fatalf("e7 targets = %v", got)
	}
}

func TestFoolsMate(t *testing.T) {
	b := apply(t, NewBoard(), "f2f3", "e7e5", "g2g4", "d8h4")
	if !InCheck(b, White) {
		t.Fatalf("white should be in check")
	}
	if got := LegalMoves(b); len(got) != 0 {
		t.Fatalf("mated side has %d legal moves: %v", len(got), got)
	}
	if st := TerminalStatus(b, 1); st != StatusCheckmate {
		t.Fatalf("status = %v, want checkmate", st)
	}
	if targets := LegalTargets(b); len(targets) != 0 {
		t.Fatalf("legal targets after mate = %v", targets)
	}
}

func TestPromotionMustBeExplicit(t *testing.T) {
	b := mustParse(t, "8/P7/8/8/8/8/k6K/8 w - - 0 1")

	if _, err := Apply(b, mustMove(t, "a7a8")); err == nil {
		t.Fatalf("promotion push without a piece choice was accepted")
	}

	next, err := Apply(b, mustMove(t, "a7a8q"))
	if err != nil {
		t.Fatalf("a7a8q: %v", err)
	}
	if p := next.Pieces[SquareAt(0, 7)]; p.Type != Queen || p.Color != White {
		t.Fatalf("a8 = %+v, want white queen", p)
	}

	next, err = Apply(b, mustMove(t, "a7a8n"))
	if err != nil {
		t.Fatalf("a7a8n: %v", err)
	}
	if p := next.Pieces[SquareAt(0, 7)]; p.Type != Knight {
		t.Fatalf("a8 = %+v, want knight", p)
	}

	// a promotion letter on a non-promotion move is just as illegal
	if _, err := Apply(NewBoard(), mustMove(t, "e2e4q")); err == nil {
		t.Fatalf("promotion letter on a normal pawn push was accepted")
	}
}

func TestEnPassantCapture(t *testing.T) {
	b := apply(t, NewBoard(), "e2e4", "a7a6", "e4e5", "d7d5")
	if b.EnPassant.String() != "d6" {
		t.Fatalf("en passant target = %v, want d6", b.EnPassant)
	}

	b = apply(t, b, "e5d6")
	if p := b.Pieces[SquareAt(3, 5)]; p.Type != Pawn || p.Color != White {
		t.Fatalf("d6 = %+v, want white pawn", p)
	}
	if p := b.Pieces[SquareAt(3, 4)]; p.Type != NoPiece {
		t.Fatalf("captured pawn still on d5: %+v", p)
	}
}

func TestEnPassantExpiresAfterOnePly(t *testing.T) {
	b := apply(t, NewBoard(), "e2e4", "a7a6", "e4e5", "d7d5", "h2h3", "a6a5")
	if _, err := Apply(b, mustMove(t, "e5d6")); err == nil {
		t.Fatalf("en passant capture accepted a ply late")
	}
}

func TestCastling(t *testing.T) {
	b := mustParse(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")

	moves := make(map[string]bool)
	for _, m := range LegalMoves(b) {
		moves[m.UCI()] = true
	}
	if !moves["e1g1"] || !moves["e1c1"] {
		t.Fatalf("castling moves missing: %v", moves)
	}

	next := apply(t, b, "e1g1")
	if p := next.Pieces[SquareAt(6, 0)]; p.Type != King {
		t.Fatalf("g1 = %+v, want king", p)
	}
	if p := next.Pieces[SquareAt(5, 0)]; p.Type != Rook {
		t.Fatalf("f1 = %+v, want rook", p)
	}
	if next.Castling&(WhiteKingside|WhiteQueenside) != 0 {
		t.Fatalf("white rights kept after castling: %v", next.Castling)
	}

	next = apply(t, next, "e8c8")
	if p := next.Pieces[SquareAt(2, 7)]; p.Type != King {
		t.Fatalf("c8 = %+v, want king", p)
	}
	if p := next.Pieces[SquareAt(3, 7)]; p.Type != Rook {
		t.Fatalf("d8 = %+v, want rook", p)
	}
	if next.Castling != 0 {
		t.Fatalf("rights remain: %v", next.Castling)
	}
}

func TestCastlingBlockedThroughAttackedSquare(t *testing.T) {
	// black rook on f8 covers f1; kingside is out, queenside stays legal
	b := mustParse(t, "r3kr2/8/8/8/8/8/8/R3K2R w KQq - 0 1")
	moves := make(map[string]bool)
	for _, m := range LegalMoves(b) {
		moves[m.UCI()] = true
	}
	if moves["e1g1"] {
		t.Fatalf("castled through an attacked square")
	}
	if !moves["e1c1"] {
		t.Fatalf("queenside castling should be legal")
	}
}

func TestRookMoveDropsCastlingRight(t *testing.T) {
	b := mustParse(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	next := apply(t, b, "h1h2")
	if next.Castling&WhiteKingside != 0 {
		t.Fatalf("kingside right survived rook move")
	}
	if next.Castling&WhiteQueenside == 0 {
		t.Fatalf("queenside right lost without cause")
	}
}

func TestCannotLeaveKingInCheck(t *testing.T) {
	// bishop pins the e-pawn against the king
	b := apply(t, NewBoard(), "e2e4", "e7e5", "d2d3", "f8b4")
	if _, err := Apply(b, mustMove(t, "d3d4")); err == nil {
		t.Fatalf("moving into a discovered check was accepted")
	}
}

func perft(t *testing.T, b Board, depth int) int {
	t.Helper()
	if depth == 0 {
		return 1
	}
	total := 0
	for _, m := range LegalMoves(b) {
		next, err := Apply(b, m)
		if err != nil {
			t.Fatalf("perft apply %s: %v", m.UCI(), err)
		}
		total += perft(t, next, depth-1)
	}
	return total
}

func TestPerft(t *testing.T) {
	want := map[int]int{1: 20, 2: 400, 3: 8902}
	for depth := 1; depth <= 3; depth++ {
		if got := perft(t, NewBoard(), depth); got != want[depth] {
			t.Fatalf("perft(%d) = %d, want %d", depth, got, want[depth])
		}
	}
}
