package engine

import (
	"fmt"
	"sort"
)

type offset struct{ df, dr int }

var (
	knightOffsets = []offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = []offset{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	bishopDirs    = []offset{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	rookDirs      = []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

func onBoard(file, rank int) bool {
	return file >= 0 && file < 8 && rank >= 0 && rank < 8
}

func pawnDir(c Color) int {
	if c == White {
		return 1
	}
	return -1
}

// attacked reports whether sq is attacked by any piece of color by.
func attacked(b Board, sq Square, by Color) bool {
	f, r := sq.File(), sq.Rank()

	// pawn attacks come from one rank behind the attacker's push direction
	pr := r - pawnDir(by)
	for _, df := range []int{-1, 1} {
		if onBoard(f+df, pr) {
			p := b.Pieces[SquareAt(f+df, pr)]
			if p.Type == Pawn && p.Color == by {
				return true
			}
		}
	}

	for _, o := range knightOffsets {
		if onBoard(f+o.df, r+o.dr) {
			p := b.Pieces[SquareAt(f+o.df, r+o.dr)]
			if p.Type == Knight && p.Color == by {
				return true
			}
		}
	}

	for _, o := range kingOffsets {
		if onBoard(f+o.df, r+o.dr) {
			p := b.Pieces[SquareAt(f+o.df, r+o.dr)]
			if p.Type == King && p.Color == by {
				return true
			}
		}
	}

	for _, d := range bishopDirs {
		for nf, nr := f+d.df, r+d.dr; onBoard(nf, nr); nf, nr = nf+d.df, nr+d.dr {
			p := b.Pieces[SquareAt(nf, nr)]
			if p.Type == NoPiece {
				continue
			}
			if p.Color == by && (p.Type == Bishop || p.Type == Queen) {
				return true
			}
			break
		}
	}
	for _, d := range rookDirs {
		for nf, nr := f+d.df, r+d.dr; onBoard(nf, nr); nf, nr = nf+d.df, nr+d.dr {
			p := b.Pieces[SquareAt(nf, nr)]
			if p.Type == NoPiece {
				continue
			}
			if p.Color == by && (p.Type == Rook || p.Type == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// InCheck reports whether side's king is attacked.
func InCheck(b Board, side Color) bool {
	return attacked(b, b.kingSquare(side), side.Other())
}

// pseudoMoves generates all pseudo-legal moves for the side to move,
// including castling (which is generated with its full square-safety rules,
// so it needs no extra legality pass).
func pseudoMoves(b Board) []Move {
	moves := make([]Move, 0, 48)
	us := b.Turn

	appendSlides := func(from Square, dirs []offset) {
		f, r := from.File(), from.Rank()
		for _, d := range dirs {
			for nf, nr := f+d.df, r+d.dr; onBoard(nf, nr); nf, nr = nf+d.df, nr+d.dr {
				to := SquareAt(nf, nr)
				victim := b.Pieces[to]
				if victim.Type == NoPiece {
					moves = append(moves, Move{From: from, To: to})
					continue
				}
				if victim.Color != us {
					moves = append(moves, Move{From: from, To: to})
				}
				break
			}
		}
	}

	appendPawn := func(from, to Square) {
		if to.Rank() == 0 || to.Rank() == 7 {
			for _, pt := range []PieceType{Queen, Rook, Bishop, Knight} {
				moves = append(moves, Move{From: from, To: to, Promotion: pt})
			}
			return
		}
		moves = append(moves, Move{From: from, To: to})
	}

	for from := Square(0); from < 64; from++ {
		p := b.Pieces[from]
		if p.Type == NoPiece || p.Color != us {
			continue
		}
		f, r := from.File(), from.Rank()

		switch p.Type {
		case Pawn:
			dir := pawnDir(us)
			startRank := 1
			if us == Black {
				startRank = 6
			}
			if onBoard(f, r+dir) && b.Pieces[SquareAt(f, r+dir)].Type == NoPiece {
				appendPawn(from, SquareAt(f, r+dir))
				if r == startRank && b.Pieces[SquareAt(f, r+2*dir)].Type == NoPiece {
					moves = append(moves, Move{From: from, To: SquareAt(f, r+2*dir)})
				}
			}
			for _, df := range []int{-1, 1} {
				if !onBoard(f+df, r+dir) {
					continue
				}
				to := SquareAt(f+df, r+dir)
				victim := b.Pieces[to]
				if victim.Type != NoPiece && victim.Color != us {
					appendPawn(from, to)
				} else if to == b.EnPassant {
					moves = append(moves, Move{From: from, To: to})
				}
			}

		case Knight:
			for _, o := range knightOffsets {
				if !onBoard(f+o.df, r+o.dr) {
					continue
				}
				to := SquareAt(f+o.df, r+o.dr)
				if v := b.Pieces[to]; v.Type == NoPiece || v.Color != us {
					moves = append(moves, Move{From: from, To: to})
				}
			}

		case Bishop:
			appendSlides(from, bishopDirs)
		case Rook:
			appendSlides(from, rookDirs)
		case Queen:
			appendSlides(from, bishopDirs)
			appendSlides(from, rookDirs)

		case King:
			for _, o := range kingOffsets {
				if !onBoard(f+o.df, r+o.dr) {
					continue
				}
				to := SquareAt(f+o.df, r+o.dr)
				if v := b.Pieces[to]; v.Type == NoPiece || v.Color != us {
					moves = append(moves, Move{From: from, To: to})
				}
			}
			moves = append(moves, castleMoves(b)...)
		}
	}
	return moves
}

// castleMoves emits castling moves for the side to move. The rules are
// enforced in full here: rights flag still set, squares between empty, king
// neither in check nor crossing/landing on an attacked square.
func castleMoves(b Board) []Move {
	us := b.Turn
	them := us.Other()
	rank := 0
	kside, qside := WhiteKingside, WhiteQueenside
	if us == Black {
		rank = 7
		kside, qside = BlackKingside, BlackQueenside
	}
	king := SquareAt(4, rank)
	if b.Pieces[king] != (Piece{King, us}) || attacked(b, king, them) {
		return nil
	}

	var moves []Move
	if b.Castling&kside != 0 &&
		b.Pieces[SquareAt(7, rank)] == (Piece{Rook, us}) &&
		b.Pieces[SquareAt(5, rank)].Type == NoPiece &&
		b.Pieces[SquareAt(6, rank)].Type == NoPiece &&
		!attacked(b, SquareAt(5, rank), them) &&
		!attacked(b, SquareAt(6, rank), them) {
		moves = append(moves, Move{From: king, To: SquareAt(6, rank)})
	}
	if b.Castling&qside != 0 &&
		b.Pieces[SquareAt(0, rank)] == (Piece{Rook, us}) &&
		b.Pieces[SquareAt(1, rank)].Type == NoPiece &&
		b.Pieces[SquareAt(2, rank)].Type == NoPiece &&
		b.Pieces[SquareAt(3, rank)].Type == NoPiece &&
		!attacked(b, SquareAt(3, rank), them) &&
		!attacked(b, SquareAt(2, rank), them) {
		moves = append(moves, Move{From: king, To: SquareAt(2, rank)})
	}
	return moves
}

// LegalMoves returns every legal move for the side to move. Pseudo-legal
// moves that would leave the mover's own king attacked are simulated and
// discarded.
func LegalMoves(b Board) []Move {
	pseudo := pseudoMoves(b)
	legal := make([]Move, 0, len(pseudo))
	for _, m := range pseudo {
		if !InCheck(applyUnchecked(b, m), b.Turn) {
			legal = append(legal, m)
		}
	}
	return legal
}

// LegalTargets maps each origin square name to the sorted destination square
// names reachable from it. This is the shape handed to the rendering boundary
// for client-side highlighting.
func LegalTargets(b Board) map[string][]string {
	targets := make(map[string][]string)
	for _, m := range LegalMoves(b) {
		from := m.From.String()
		to := m.To.String()
		dests := targets[from]
		if len(dests) > 0 && dests[len(dests)-1] == to {
			continue // promotion variants share a destination
		}
		targets[from] = append(dests, to)
	}
	for _, dests := range targets {
		sort.Strings(dests)
	}
	return targets
}

// Apply validates m against the legal move set and returns the resulting
// board. A pawn move to the last rank must carry a promotion kind, and no
// other move may carry one; violations surface as ErrIllegalMove.
func Apply(b Board, m Move) (Board, error) {
	for _, legal := range LegalMoves(b) {
		if legal == m {
			return applyUnchecked(b, m), nil
		}
	}
	return Board{}, fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
}

// applyUnchecked applies a pseudo-legal move without king-safety validation.
// It handles captures, en-passant, castling rook movement, promotion, the
// clocks and castling-rights bookkeeping.
func applyUnchecked(b Board, m Move) Board {
	nb := b
	p := nb.Pieces[m.From]

	nb.Halfmove++
	if p.Type == Pawn || nb.Pieces[m.To].Type != NoPiece {
		nb.Halfmove = 0
	}

	// en-passant capture removes the pawn behind the target square
	if p.Type == Pawn && m.To == b.EnPassant && b.EnPassant != NoSquare {
		nb.Pieces[SquareAt(m.To.File(), m.To.Rank()-pawnDir(p.Color))] = Piece{}
	}

	nb.Pieces[m.To] = p
	nb.Pieces[m.From] = Piece{}
	if m.Promotion != NoPiece {
		nb.Pieces[m.To] = Piece{Type: m.Promotion, Color: p.Color}
	}

	// castling moves the rook as well
	if p.Type == King && abs(m.To.File()-m.From.File()) == 2 {
		rank := m.From.Rank()
		if m.To.File() == 6 {
			nb.Pieces[SquareAt(5, rank)] = nb.Pieces[SquareAt(7, rank)]
			nb.Pieces[SquareAt(7, rank)] = Piece{}
		} else {
			nb.Pieces[SquareAt(3, rank)] = nb.Pieces[SquareAt(0, rank)]
			nb.Pieces[SquareAt(0, rank)] = Piece{}
		}
	}

	nb.Castling &^= rightsLost(m.From) | rightsLost(m.To)

	nb.EnPassant = NoSquare
	if p.Type == Pawn && abs(m.To.Rank()-m.From.Rank()) == 2 {
		nb.EnPassant = SquareAt(m.From.File(), (m.From.Rank()+m.To.Rank())/2)
	}

	if b.Turn == Black {
		nb.Fullmove++
	}
	nb.Turn = b.Turn.Other()
	nb.EnPassant = normalizeEnPassant(nb)
	return nb
}

// rightsLost returns the castling rights forfeited when a piece moves from or
// is captured on the given square.
func rightsLost(sq Square) Castling {
	switch sq {
	case SquareAt(4, 0):
		return WhiteKingside | WhiteQueenside
	case SquareAt(7, 0):
		return WhiteKingside
	case SquareAt(0, 0):
		return WhiteQueenside
	case SquareAt(4, 7):
		return BlackKingside | BlackQueenside
	case SquareAt(7, 7):
		return BlackKingside
	case SquareAt(0, 7):
		return BlackQueenside
	}
	return 0
}

// normalizeEnPassant clears the en-passant target unless a legal en-passant
// capture actually exists, so that boards compare equal exactly when their
// position strings do.
func normalizeEnPassant(b Board) Square {
	ep := b.EnPassant
	if ep == NoSquare {
		return NoSquare
	}
	r := ep.Rank() - pawnDir(b.Turn)
	for _, df := range []int{-1, 1} {
		if !onBoard(ep.File()+df, r) {
			continue
		}
		from := SquareAt(ep.File()+df, r)
		if b.Pieces[from] != (Piece{Pawn, b.Turn}) {
			continue
		}
		// the capture itself clears the en-passant field, so applyUnchecked
		// cannot recurse back here
		m := Move{From: from, To: ep}
		if !InCheck(applyUnchecked(b, m), b.Turn) {
			return ep
		}
	}
	return NoSquare
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
