package board_test

import (
	"testing"

	"github.com/herohde/gauntlet/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLANRoundtrip(t *testing.T) {
	p, err := board.Parse(board.Initial)
	require.NoError(t, err)

	for _, m := range p.LegalMoves() {
		lan := board.MoveToLAN(p, m, false)

		parsed, err := board.LANToMove(p, lan, false)
		require.NoError(t, err)
		assert.True(t, board.Contains([]board.Move{m}, parsed), lan)
	}
}

func TestLANCastling(t *testing.T) {
	// White to move with both castling options open.
	p, err := board.Parse("r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	short, err := board.LANToMove(p, "e1g1", false)
	require.NoError(t, err)
	require.True(t, board.Contains(p.LegalMoves(), short))

	assert.Equal(t, "e1g1", board.MoveToLAN(p, short, false))
	assert.Equal(t, "e1h1", board.MoveToLAN(p, short, true))

	// Chess960 engines express castling as king-takes-rook.
	short960, err := board.LANToMove(p, "e1h1", true)
	require.NoError(t, err)
	assert.True(t, board.Contains([]board.Move{short}, short960))

	long960, err := board.LANToMove(p, "e1a1", true)
	require.NoError(t, err)
	assert.Equal(t, "e1c1", board.MoveToLAN(p, long960, false))
}

func TestSAN(t *testing.T) {
	p, err := board.Parse(board.Initial)
	require.NoError(t, err)

	m, err := board.LANToMove(p, "g1f3", false)
	require.NoError(t, err)
	assert.Equal(t, "Nf3", board.MoveToSAN(p, m))

	// Mating move carries the mate marker.
	p, err = board.Parse("rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq - 0 2")
	require.NoError(t, err)

	m, err = board.LANToMove(p, "d8h4", false)
	require.NoError(t, err)
	assert.Equal(t, "Qh4#", board.MoveToSAN(p, m))
}

func TestLANInvalid(t *testing.T) {
	p, err := board.Parse(board.Initial)
	require.NoError(t, err)

	for _, lan := range []string{"", "xx", "e9e4", "zz99"} {
		if _, err := board.LANToMove(p, lan, false); err == nil {
			m, _ := board.LANToMove(p, lan, false)
			assert.False(t, board.Contains(p.LegalMoves(), m), lan)
		}
	}
}
