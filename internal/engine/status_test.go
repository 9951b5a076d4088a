package engine

import "testing"

func TestStatusPredicates(t *testing.T) {
	if StatusInProgress.Terminal() {
		t.Fatalf("in_progress must not be terminal")
	}
	for _, st := range []Status{StatusCheckmate, StatusStalemate, StatusDrawFiftyMove, StatusDrawRepetition, StatusDrawMaterial, StatusDrawAgreed, StatusResigned} {
		if !st.Terminal() {
			t.Fatalf("%v must be terminal", st)
		}
	}
	for _, st := range []Status{StatusStalemate, StatusDrawFiftyMove, StatusDrawRepetition, StatusDrawMaterial, StatusDrawAgreed} {
		if !st.Draw() {
			t.Fatalf("%v must be a draw", st)
		}
	}
	if StatusCheckmate.Draw() || StatusResigned.Draw() {
		t.Fatalf("decisive results reported as draws")
	}
}

func TestCheckmateStatus(t *testing.T) {
	b := mustParse(t, "R5k1/5ppp/8/8/8/8/8/6K1 b - - 0 1")
	if st := TerminalStatus(b, 1); st != StatusCheckmate {
		t.Fatalf("status = %v, want checkmate", st)
	}
}

func TestStalemateStatus(t *testing.T) {
	b := mustParse(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if InCheck(b, Black) {
		t.Fatalf("stalemate position must not be check")
	}
	if st := TerminalStatus(b, 1); st != StatusStalemate {
		t.Fatalf("status = %v, want stalemate", st)
	}
}

func TestFiftyMoveRule(t *testing.T) {
	b := mustParse(t, "8/8/8/8/8/8/k6K/7R w - - 99 80")
	if st := TerminalStatus(b, 1); st != StatusInProgress {
		t.Fatalf("status at 99 halfmoves = %v, want in_progress", st)
	}

	next, err := Apply(b, Move{From: SquareAt(7, 0), To: SquareAt(6, 0)})
	if err != nil {
		t.Fatalf("h1g1: %v", err)
	}
	if next.Halfmove != 100 {
		t.Fatalf("halfmove = %d, want 100", next.Halfmove)
	}
	if st := TerminalStatus(next, 1); st != StatusDrawFiftyMove {
		t.Fatalf("status = %v, want draw_fifty_move", st)
	}
}

func TestPawnMoveResetsHalfmoveClock(t *testing.T) {
	b := mustParse(t, "8/7p/8/8/8/8/k6K/7R b - - 42 80")
	next, err := Apply(b, Move{From: SquareAt(7, 6), To: SquareAt(7, 5)})
	if err != nil {
		t.Fatalf("h7h6: %v", err)
	}
	if next.Halfmove != 0 {
		t.Fatalf("halfmove = %d, want 0 after pawn move", next.Halfmove)
	}
}

func TestInsufficientMaterial(t *testing.T) {
	cases := []struct {
		fen  string
		want bool
	}{
		{"8/8/8/8/8/8/k6K/8 w - - 0 1", true},            // K vs K
		{"8/8/8/8/8/8/k6K/6N1 w - - 0 1", true},          // K+N vs K
		{"8/8/8/8/8/8/k6K/B7 w - - 0 1", true},           // K+B vs K
		{"8/8/8/8/8/8/kb5K/B7 w - - 0 1", true},          // bishops on one color
		{"8/8/8/8/2b5/8/k6K/B7 w - - 0 1", false},        // opposite colored bishops
		{"8/8/8/8/8/8/k6K/7R w - - 0 1", false},          // rook mates
		{"8/8/8/8/8/8/k5PK/8 w - - 0 1", false},          // pawn promotes
		{"8/8/8/8/8/8/k4NNK/8 w - - 0 1", false},         // two knights
		{StartFEN, false},
	}
	for _, tc := range cases {
		b := mustParse(t, tc.fen)
		if got := InsufficientMaterial(b); got != tc.want {
			t.Fatalf("InsufficientMaterial(%q) = %v, want %v", tc.fen, got, tc.want)
		}
	}
	if st := TerminalStatus(mustParse(t, "8/8/8/8/8/8/k6K/8 w - - 0 1"), 1); st != StatusDrawMaterial {
		t.Fatalf("bare kings status = %v, want draw_material", st)
	}
}

func TestRepetitionCountTriggersDraw(t *testing.T) {
	b := NewBoard()
	if st := TerminalStatus(b, 2); st != StatusInProgress {
		t.Fatalf("second occurrence = %v, want in_progress", st)
	}
	if st := TerminalStatus(b, 3); st != StatusDrawRepetition {
		t.Fatalf("third occurrence = %v, want draw_repetition", st)
	}
}
