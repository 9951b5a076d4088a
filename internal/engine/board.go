// Package engine implements the chess rules: board representation, legal move
// generation, move application and game-termination detection. Boards are
// plain values; every operation returns a new Board and never mutates its
// input, so callers may share boards freely across goroutines.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrIllegalMove     = errf("illegal move")
	ErrInvalidPosition = errf("invalid position string")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Color identifies a side.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType is a closed set of chess piece kinds. The zero value marks an
// empty square.
type PieceType uint8

const (
	NoPiece PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// Piece is a piece kind plus its color. The zero Piece is an empty square.
type Piece struct {
	Type  PieceType
	Color Color
}

var pieceLetters = map[byte]Piece{
	'P': {Pawn, White}, 'N': {Knight, White}, 'B': {Bishop, White},
	'R': {Rook, White}, 'Q': {Queen, White}, 'K': {King, White},
	'p': {Pawn, Black}, 'n': {Knight, Black}, 'b': {Bishop, Black},
	'r': {Rook, Black}, 'q': {Queen, Black}, 'k': {King, Black},
}

func (p Piece) letter() byte {
	const white = " PNBRQK"
	const black = " pnbrqk"
	if p.Color == White {
		return white[p.Type]
	}
	return black[p.Type]
}

// Square indexes the board from a1=0 to h8=63, rank-major. -1 marks "no
// square" (e.g. no en-passant target).
type Square int8

const NoSquare Square = -1

func SquareAt(file, rank int) Square { return Square(rank*8 + file) }

func (s Square) File() int { return int(s) & 7 }
func (s Square) Rank() int { return int(s) >> 3 }

func (s Square) String() string {
	if s == NoSquare {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// ParseSquare parses a square name like "e4".
func ParseSquare(v string) (Square, error) {
	if len(v) != 2 || v[0] < 'a' || v[0] > 'h' || v[1] < '1' || v[1] > '8' {
		return NoSquare, fmt.Errorf("%w: bad square %q", ErrIllegalMove, v)
	}
	return SquareAt(int(v[0]-'a'), int(v[1]-'1')), nil
}

// Castling is the set of still-available castling rights.
type Castling uint8

const (
	WhiteKingside Castling = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside
)

func (c Castling) String() string {
	if c == 0 {
		return "-"
	}
	var b strings.Builder
	if c&WhiteKingside != 0 {
		b.WriteByte('K')
	}
	if c&WhiteQueenside != 0 {
		b.WriteByte('Q')
	}
	if c&BlackKingside != 0 {
		b.WriteByte('k')
	}
	if c&BlackQueenside != 0 {
		b.WriteByte('q')
	}
	return b.String()
}

// Move is an origin/destination pair with an optional promotion kind. The
// capture, castle and en-passant nature of a move is derived from the board
// it is applied to, never stored.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType
}

var promoLetters = map[byte]PieceType{'q': Queen, 'r': Rook, 'b': Bishop, 'n': Knight}

// UCI renders the move in 4/5-character coordinate notation, e.g. "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoPiece {
		s += string(" pnbrqk"[m.Promotion])
	}
	return s
}

// ParseMove parses UCI coordinate notation. It validates syntax only; whether
// the move is legal on a given board is decided by Apply.
func ParseMove(v string) (Move, error) {
	if len(v) != 4 && len(v) != 5 {
		return Move{}, fmt.Errorf("%w: bad move notation %q", ErrIllegalMove, v)
	}
	from, err := ParseSquare(v[:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(v[2:4])
	if err != nil {
		return Move{}, err
	}
	m := Move{From: from, To: to}
	if len(v) == 5 {
		pt, ok := promoLetters[v[4]]
		if !ok {
			return Move{}, fmt.Errorf("%w: bad promotion letter %q", ErrIllegalMove, v[4:])
		}
		m.Promotion = pt
	}
	return m, nil
}

// Board is a full chess position: piece placement, side to move, castling
// rights, en-passant target, halfmove clock and fullmove number. Boards are
// comparable with ==, which together with en-passant normalization (see
// apply) gives the FEN round-trip law.
type Board struct {
	Pieces    [64]Piece
	Turn      Color
	Castling  Castling
	EnPassant Square
	Halfmove  int
	Fullmove  int
}

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// NewBoard returns the standard starting position.
func NewBoard() Board {
	b, err := ParseFEN(StartFEN)
	if err != nil {
		panic("engine: bad start position: " + err.Error())
	}
	return b
}

// FEN encodes the position as the 6-field space-separated position string.
// The en-passant field is written only when an en-passant capture is actually
// playable; apply normalizes boards the same way, so FEN/ParseFEN round-trip
// byte for byte.
func (b Board) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := b.Pieces[SquareAt(file, rank)]
			if p.Type == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.letter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	sb.WriteByte(' ')
	if b.Turn == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}
	sb.WriteByte(' ')
	sb.WriteString(b.Castling.String())
	sb.WriteByte(' ')
	sb.WriteString(b.EnPassant.String())
	fmt.Fprintf(&sb, " %d %d", b.Halfmove, b.Fullmove)
	return sb.String()
}

// RepetitionKey is the position identity used for threefold repetition:
// placement, side to move, castling rights and en-passant target.
func (b Board) RepetitionKey() string {
	fen := b.FEN()
	fields := strings.SplitN(fen, " ", 5)
	return strings.Join(fields[:4], " ")
}

// ParseFEN decodes a 6-field position string. Malformed input yields
// ErrInvalidPosition and never produces a partial board. The en-passant field
// is normalized: it is kept only when a legal en-passant capture exists.
func ParseFEN(fen string) (Board, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) != 6 {
		return Board{}, fmt.Errorf("%w: want 6 fields, got %d", ErrInvalidPosition, len(fields))
	}

	var b Board
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return Board{}, fmt.Errorf("%w: want 8 ranks, got %d", ErrInvalidPosition, len(ranks))
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			p, ok := pieceLetters[ch]
			if !ok {
				return Board{}, fmt.Errorf("%w: bad piece letter %q", ErrInvalidPosition, ch)
			}
			if file > 7 {
				return Board{}, fmt.Errorf("%w: rank %d overflows", ErrInvalidPosition, rank+1)
			}
			if p.Type == Pawn && (rank == 0 || rank == 7) {
				return Board{}, fmt.Errorf("%w: pawn on rank %d", ErrInvalidPosition, rank+1)
			}
			b.Pieces[SquareAt(file, rank)] = p
			file++
		}
		if file != 8 {
			return Board{}, fmt.Errorf("%w: rank %d has %d files", ErrInvalidPosition, rank+1, file)
		}
	}

	switch fields[1] {
	case "w":
		b.Turn = White
	case "b":
		b.Turn = Black
	default:
		return Board{}, fmt.Errorf("%w: bad side to move %q", ErrInvalidPosition, fields[1])
	}

	if fields[2] != "-" {
		for i := 0; i < len(fields[2]); i++ {
			switch fields[2][i] {
			case 'K':
				b.Castling |= WhiteKingside
			case 'Q':
				b.Castling |= WhiteQueenside
			case 'k':
				b.Castling |= BlackKingside
			case 'q':
				b.Castling |= BlackQueenside
			default:
				return Board{}, fmt.Errorf("%w: bad castling field %q", ErrInvalidPosition, fields[2])
			}
		}
	}

	b.EnPassant = NoSquare
	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return Board{}, fmt.Errorf("%w: bad en-passant field %q", ErrInvalidPosition, fields[3])
		}
		if r := sq.Rank(); r != 2 && r != 5 {
			return Board{}, fmt.Errorf("%w: bad en-passant rank in %q", ErrInvalidPosition, fields[3])
		}
		b.EnPassant = sq
	}

	hm, err := strconv.Atoi(fields[4])
	if err != nil || hm < 0 {
		return Board{}, fmt.Errorf("%w: bad halfmove clock %q", ErrInvalidPosition, fields[4])
	}
	fm, err := strconv.Atoi(fields[5])
	if err != nil || fm < 1 {
		return Board{}, fmt.Errorf("%w: bad fullmove number %q", ErrInvalidPosition, fields[5])
	}
	b.Halfmove, b.Fullmove = hm, fm

	for _, c := range []Color{White, Black} {
		if n := b.countKings(c); n != 1 {
			return Board{}, fmt.Errorf("%w: %s has %d kings", ErrInvalidPosition, c, n)
		}
	}
	// side not to move must not be in check (otherwise the previous move was
	// never legal)
	if InCheck(b, b.Turn.Other()) {
		return Board{}, fmt.Errorf("%w: side not to move is in check", ErrInvalidPosition)
	}

	b.EnPassant = normalizeEnPassant(b)
	return b, nil
}

func (b Board) countKings(c Color) int {
	n := 0
	for _, p := range b.Pieces {
		if p.Type == King && p.Color == c {
			n++
		}
	}
	return n
}

func (b Board) kingSquare(c Color) Square {
	for sq := Square(0); sq < 64; sq++ {
		p := b.Pieces[sq]
		if p.Type == King && p.Color == c {
			return sq
		}
	}
	// one king per side is a structural invariant; a board without one is a
	// defect, not a recoverable condition
	panic("engine: no " + c.String() + " king on board")
}
