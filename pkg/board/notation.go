package board

import (
	"fmt"

	chess "github.com/corentings/chess/v2"
)

// Castling LAN differs between standard chess and Chess960: engines in
// UCI_Chess960 mode express castling as king-takes-rook. The conventional
// corner squares cover both directions of the translation.
var (
	toChess960   = map[string]string{"e1g1": "e1h1", "e1c1": "e1a1", "e8g8": "e8h8", "e8c8": "e8a8"}
	fromChess960 = map[string]string{"e1h1": "e1g1", "e1a1": "e1c1", "e8h8": "e8g8", "e8a8": "e8c8"}
)

// MoveToLAN serializes a move in long algebraic notation for the given
// position, as used on "position ... moves" lines.
func MoveToLAN(p *Position, m Move, chess960 bool) string {
	lan := chess.UCINotation{}.Encode(p.inner, &m)

	if s, ok := toChess960[lan]; ok && chess960 {
		// Moves decoded from LAN carry no castling tags; the generated legal
		// move with the same coordinates does.
		for _, legal := range p.inner.ValidMoves() {
			if legal.String() == m.String() && (legal.HasTag(chess.KingSideCastle) || legal.HasTag(chess.QueenSideCastle)) {
				return s
			}
		}
	}
	return lan
}

// LANToMove parses a move in long algebraic notation against the given
// position. The move is not necessarily legal; legality is decided by
// membership in the position's legal move list.
func LANToMove(p *Position, lan string, chess960 bool) (Move, error) {
	if chess960 {
		if s, ok := fromChess960[lan]; ok {
			lan = s
		}
	}

	m, err := chess.UCINotation{}.Decode(p.inner, lan)
	if err != nil {
		return Move{}, fmt.Errorf("invalid move '%v': %w", lan, err)
	}
	return *m, nil
}

// MoveToSAN serializes a move in standard algebraic notation for the given
// position, including any trailing check or mate marker.
func MoveToSAN(p *Position, m Move) string {
	return chess.AlgebraicNotation{}.Encode(p.inner, &m)
}
