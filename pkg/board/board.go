// Package board contains the chess position layer used by the game driver. It wraps
// the move generation, legality and notation machinery of corentings/chess and adds
// the per-position metadata a match runner needs: the halfmove clock, the repetition
// key, the move that produced the position and the fullmove number.
package board

import (
	"fmt"
	"strconv"
	"strings"

	chess "github.com/corentings/chess/v2"
)

const (
	// Initial is the standard starting position.
	Initial = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// Color represents the side to move. White is zero so that colors index arrays.
type Color int

const (
	White Color = iota
	Black
	NumColors
)

func (c Color) Opponent() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Move is a single chess move. The zero value is not a valid move.
type Move = chess.Move

// Status is the rules-level verdict on a position.
type Status int

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
)

// Position is an immutable position in a game, including the metadata FEN carries
// beyond piece placement. Positions form a sequence: each one except the first
// records the move that produced it.
type Position struct {
	inner *chess.Position

	fen      string
	key      string
	turn     Color
	rule50   int
	fullMove int

	lastMove Move
	hasLast  bool
}

// Parse returns a new position from a FEN description.
func Parse(fen string) (*Position, error) {
	inner := &chess.Position{}
	if err := inner.UnmarshalText([]byte(strings.TrimSpace(fen))); err != nil {
		return nil, fmt.Errorf("invalid FEN '%v': %w", fen, err)
	}
	return fromInner(inner)
}

func fromInner(inner *chess.Position) (*Position, error) {
	fen := inner.String()

	parts := strings.Fields(fen)
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid number of sections in FEN: '%v'", fen)
	}

	turn := White
	if parts[1] == "b" {
		turn = Black
	}
	rule50, err := strconv.Atoi(parts[4])
	if err != nil || rule50 < 0 {
		return nil, fmt.Errorf("invalid halfmove clock in FEN: '%v'", fen)
	}
	fullMove, err := strconv.Atoi(parts[5])
	if err != nil || fullMove < 1 {
		return nil, fmt.Errorf("invalid fullmove number in FEN: '%v'", fen)
	}

	return &Position{
		inner:    inner,
		fen:      fen,
		key:      strings.Join(parts[:4], " "),
		turn:     turn,
		rule50:   rule50,
		fullMove: fullMove,
	}, nil
}

// FEN returns the position in FEN notation.
func (p *Position) FEN() string {
	return p.fen
}

// Key returns the repetition key: placement, side to move, castling rights and
// en passant target. Positions that are interchangeable under the threefold
// repetition rule share a key.
func (p *Position) Key() string {
	return p.key
}

// Turn returns the side to move.
func (p *Position) Turn() Color {
	return p.turn
}

// Rule50 returns the halfmove clock: plies since the last capture or pawn move.
func (p *Position) Rule50() int {
	return p.rule50
}

// FullMove returns the fullmove number, starting at 1.
func (p *Position) FullMove() int {
	return p.fullMove
}

// LastMove returns the move that produced this position, if any.
func (p *Position) LastMove() (Move, bool) {
	return p.lastMove, p.hasLast
}

// LegalMoves returns all legal moves for the side to move.
func (p *Position) LegalMoves() []Move {
	return p.inner.ValidMoves()
}

// Status adjudicates the position by chess rules alone. Draw conditions that
// depend on game history (repetition, the fifty-move rule) are the caller's
// concern.
func (p *Position) Status() Status {
	switch p.inner.Status() {
	case chess.Checkmate:
		return Checkmate
	case chess.Stalemate:
		return Stalemate
	default:
		return Ongoing
	}
}

// Apply returns the position after the given move. The move must be legal.
func (p *Position) Apply(m Move) (*Position, error) {
	inner := p.inner.Update(&m)
	if inner == nil {
		return nil, fmt.Errorf("cannot apply %v to '%v'", m, p.fen)
	}

	next, err := fromInner(inner)
	if err != nil {
		return nil, err
	}
	next.lastMove = m
	next.hasLast = true
	return next, nil
}

// Contains returns true iff the move is in the list. Moves compare equal iff
// their coordinate notation matches: origin, destination and promotion piece.
func Contains(moves []Move, m Move) bool {
	for i := range moves {
		if m.String() == moves[i].String() {
			return true
		}
	}
	return false
}

func (p *Position) String() string {
	return p.fen
}
