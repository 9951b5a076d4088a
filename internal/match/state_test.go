package match

import (
	"errors"
	"testing"

	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

func move(t *testing.T, uci string) engine.Move {
	t.Helper()
	m, err := engine.ParseMove(uci)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", uci, err)
	}
	return m
}

func TestJoinLifecycle(t *testing.T) {
	g := New("g1", "alice", "")
	if g.Phase() != PhaseWaiting {
		t.Fatalf("phase = %v, want waiting", g.Phase())
	}
	if _, err := g.ApplyMove(engine.White, move(t, "e2e4"), g.Version); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("move before start: %v, want ErrNotStarted", err)
	}

	if err := g.Join("bob"); err != nil {
		t.Fatalf("Join(bob): %v", err)
	}
	if g.Phase() != PhaseActive || g.BlackID != "bob" || g.Version != 2 {
		t.Fatalf("after join: phase=%v black=%q version=%d", g.Phase(), g.BlackID, g.Version)
	}

	if err := g.Join("bob"); err != nil {
		t.Fatalf("rejoin must be idempotent: %v", err)
	}
	if g.Version != 2 {
		t.Fatalf("idempotent rejoin bumped version to %d", g.Version)
	}
	if err := g.Join("carol"); !errors.Is(err, ErrSeatTaken) {
		t.Fatalf("third player: %v, want ErrSeatTaken", err)
	}
}

func TestApplyMoveAlternatesAndVersions(t *testing.T) {
	g := New("g1", "alice", "bob")

	ev, err := g.ApplyMove(engine.White, move(t, "e2e4"), 1)
	if err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if ev.Type != livedto.EventMove || ev.Version != 2 || ev.LastMove != "e2e4" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Turn != "black" {
		t.Fatalf("turn after e2e4 = %q", ev.Turn)
	}

	if _, err := g.ApplyMove(engine.White, move(t, "d2d4"), 2); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("white moving twice: %v, want ErrNotYourTurn", err)
	}
	if _, err := g.ApplyMove(engine.Black, move(t, "e7e5"), 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale version: %v, want ErrVersionConflict", err)
	}
	if g.Version != 2 || len(g.MovesUCI) != 1 {
		t.Fatalf("failed submissions mutated state: version=%d moves=%v", g.Version, g.MovesUCI)
	}

	if _, err := g.ApplyMove(engine.Black, move(t, "e7e5"), 2); err != nil {
		t.Fatalf("e7e5: %v", err)
	}
	if g.Board.FEN() != "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2" {
		t.Fatalf("position = %q", g.Board.FEN())
	}
}

func TestIllegalMoveLeavesGameUntouched(t *testing.T) {
	g := New("g1", "alice", "bob")
	before := g.Board
	if _, err := g.ApplyMove(engine.White, move(t, "e2e5"), 1); !errors.Is(err, engine.ErrIllegalMove) {
		t.Fatalf("e2e5: %v, want ErrIllegalMove", err)
	}
	if g.Board != before || g.Version != 1 || len(g.MovesUCI) != 0 {
		t.Fatalf("illegal move mutated state")
	}
}

func TestCheckmateEndsGame(t *testing.T) {
	g := New("g1", "alice", "bob")
	seq := []struct {
		side engine.Color
		uci  string
	}{
		{engine.White, "f2f3"},
		{engine.Black, "e7e5"},
		{engine.White, "g2g4"},
		{engine.Black, "d8h4"},
	}
	var last livedto.Event
	for _, s := range seq {
		ev, err := g.ApplyMove(s.side, move(t, s.uci), g.Version)
		if err != nil {
			t.Fatalf("%s: %v", s.uci, err)
		}
		last = ev
	}

	if last.Type != livedto.EventFinished || last.Status != string(engine.StatusCheckmate) {
		t.Fatalf("final event = %+v", last)
	}
	if last.Winner != "black" {
		t.Fatalf("winner = %q, want black", last.Winner)
	}
	if len(last.LegalMoves) != 0 {
		t.Fatalf("finished game advertises moves: %v", last.LegalMoves)
	}
	if _, err := g.ApplyMove(engine.White, move(t, "e2e4"), g.Version); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("move after mate: %v, want ErrGameFinished", err)
	}
}

func TestThreefoldRepetition(t *testing.T) {
	g := New("g1", "alice", "bob")
	shuffle := []struct {
		side engine.Color
		uci  string
	}{
		{engine.White, "g1f3"}, {engine.Black, "g8f6"},
		{engine.White, "f3g1"}, {engine.Black, "f6g8"}, // start position x2
		{engine.White, "g1f3"}, {engine.Black, "g8f6"},
		{engine.White, "f3g1"}, {engine.Black, "f6g8"}, // start position x3
	}
	var last livedto.Event
	for _, s := range shuffle {
		ev, err := g.ApplyMove(s.side, move(t, s.uci), g.Version)
		if err != nil {
			t.Fatalf("%s: %v", s.uci, err)
		}
		last = ev
	}
	if last.Status != string(engine.StatusDrawRepetition) {
		t.Fatalf("status = %q, want draw_repetition", last.Status)
	}
	if last.Winner != "" {
		t.Fatalf("draw has winner %q", last.Winner)
	}
}

func TestResign(t *testing.T) {
	g := New("g1", "alice", "bob")
	if _, err := g.Resign(engine.White, 99); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale resign: %v, want ErrVersionConflict", err)
	}
	ev, err := g.Resign(engine.White, 1)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if ev.Type != livedto.EventFinished || ev.Status != string(engine.StatusResigned) || ev.Winner != "black" {
		t.Fatalf("resign event = %+v", ev)
	}
	if _, err := g.Resign(engine.Black, g.Version); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("double resign: %v, want ErrGameFinished", err)
	}
}

func TestAgreeDraw(t *testing.T) {
	g := New("g1", "alice", "bob")
	ev, err := g.AgreeDraw(1)
	if err != nil {
		t.Fatalf("AgreeDraw: %v", err)
	}
	if ev.Status != string(engine.StatusDrawAgreed) || ev.Winner != "" {
		t.Fatalf("draw event = %+v", ev)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	g := New("g1", "alice", "bob")
	for _, s := range []struct {
		side engine.Color
		uci  string
	}{
		{engine.White, "e2e4"}, {engine.Black, "e7e5"},
		{engine.White, "g1f3"}, {engine.Black, "b8c6"},
	} {
		if _, err := g.ApplyMove(s.side, move(t, s.uci), g.Version); err != nil {
			t.Fatalf("%s: %v", s.uci, err)
		}
	}

	restored, err := Restore(g.Snapshot())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Board != g.Board {
		t.Fatalf("restored board %q, want %q", restored.Board.FEN(), g.Board.FEN())
	}
	if restored.Version != g.Version || restored.Status != g.Status || restored.WhiteID != "alice" {
		t.Fatalf("restored = %+v", restored)
	}

	// the repetition table must be rebuilt by the replay
	ev, err := restored.ApplyMove(engine.White, move(t, "f3g1"), restored.Version)
	if err != nil {
		t.Fatalf("f3g1 after restore: %v", err)
	}
	if ev.Status != string(engine.StatusInProgress) {
		t.Fatalf("status = %q", ev.Status)
	}
}

func TestRestoreKeepsLifecycleStatus(t *testing.T) {
	g := New("g1", "alice", "bob")
	if _, err := g.Resign(engine.Black, 1); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	restored, err := Restore(g.Snapshot())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Status != engine.StatusResigned || restored.Winner != "white" {
		t.Fatalf("restored status=%v winner=%q", restored.Status, restored.Winner)
	}
}

func TestCheckpointRollback(t *testing.T) {
	g := New("g1", "alice", "bob")
	cp := g.Checkpoint()
	if _, err := g.ApplyMove(engine.White, move(t, "e2e4"), 1); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	g.Rollback(cp)
	if g.Version != 1 || len(g.MovesUCI) != 0 || g.Board != engine.NewBoard() {
		t.Fatalf("rollback incomplete: version=%d moves=%v fen=%q", g.Version, g.MovesUCI, g.Board.FEN())
	}
	// the same submission must succeed again after rollback
	if _, err := g.ApplyMove(engine.White, move(t, "e2e4"), 1); err != nil {
		t.Fatalf("replay after rollback: %v", err)
	}
}
