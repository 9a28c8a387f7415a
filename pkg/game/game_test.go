package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/herohde/gauntlet/pkg/board"
	"github.com/herohde/gauntlet/pkg/uci"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script is a deterministic in-process engine: it replies to successive
// best-move requests from fixed move and score lists.
type script struct {
	name   string
	moves  []string
	scores []int

	timeoutAt int  // request index that times out; -1 for never
	drain     bool // report the budget as fully spent on every move

	i     int
	lines []string // every line written to the engine
}

func newScript(name string, moves []string, scores []int) *script {
	return &script{name: name, moves: moves, scores: scores, timeoutAt: -1}
}

func (s *script) Name() string {
	return s.name
}

func (s *script) WriteLine(line string) error {
	s.lines = append(s.lines, line)
	return nil
}

func (s *script) Sync(ctx context.Context) error {
	return nil
}

func (s *script) BestMove(ctx context.Context, budget time.Duration) (uci.SearchResult, error) {
	if s.i == s.timeoutAt {
		return uci.SearchResult{Timeout: true}, nil
	}

	res := uci.SearchResult{Move: s.moves[s.i], TimeLeft: budget}
	if s.drain {
		res.TimeLeft = 0
	}
	if s.i < len(s.scores) {
		res.Score = s.scores[s.i]
	}
	s.i++
	return res, nil
}

func play(t *testing.T, fen string, opts Options, first, second Engine) *Game {
	t.Helper()

	g, err := New(fen, opts)
	require.NoError(t, err)
	require.NoError(t, g.Play(context.Background(), first, second))
	require.NotEqual(t, ResultNone, g.Result())
	return g
}

func TestPlayCheckmate(t *testing.T) {
	first := newScript("patzer", []string{"f2f3", "g2g4"}, nil)
	second := newScript("shark", []string{"e7e5", "d8h4"}, nil)

	g := play(t, board.Initial, Options{}, first, second)

	assert.Equal(t, ResultCheckmate, g.Result())
	assert.Equal(t, 4, g.Ply())

	result, reason := g.DecodeResult()
	assert.Equal(t, "0-1", result)
	assert.Equal(t, "checkmate", reason)

	assert.Equal(t, [board.NumColors]string{"patzer", "shark"}, g.Names())
}

func TestPlayStalemate(t *testing.T) {
	first := newScript("white", []string{"g5g6"}, nil)
	second := newScript("black", nil, nil)

	g := play(t, "7k/8/5K2/6Q1/8/8/8/8 w - - 0 1", Options{}, first, second)

	assert.Equal(t, ResultStalemate, g.Result())

	result, reason := g.DecodeResult()
	assert.Equal(t, "1/2-1/2", result)
	assert.Equal(t, "stalemate", reason)
}

func TestPlayFiftyMoves(t *testing.T) {
	first := newScript("white", []string{"h1h2"}, nil)
	second := newScript("black", nil, nil)

	g := play(t, "k7/8/8/8/8/8/8/K6R w - - 99 80", Options{}, first, second)

	assert.Equal(t, ResultFiftyMoves, g.Result())
	assert.Equal(t, 1, g.Ply())

	result, reason := g.DecodeResult()
	assert.Equal(t, "1/2-1/2", result)
	assert.Equal(t, "50 move rule", reason)
}

func TestPlayThreefold(t *testing.T) {
	first := newScript("white", []string{"b1c3", "c3b1", "b1c3", "c3b1"}, nil)
	second := newScript("black", []string{"g8f6", "f6g8", "g8f6", "f6g8"}, nil)

	g := play(t, board.Initial, Options{}, first, second)

	assert.Equal(t, ResultThreefold, g.Result())
	assert.Equal(t, 8, g.Ply())

	result, reason := g.DecodeResult()
	assert.Equal(t, "1/2-1/2", result)
	assert.Equal(t, "3 repetitions", reason)
}

func TestPlayInsufficientMaterial(t *testing.T) {
	// The opening position is already dead: the engines are never consulted.
	first := newScript("white", nil, nil)
	second := newScript("black", nil, nil)

	g := play(t, "8/8/8/8/8/2k5/8/K6B w - - 0 1", Options{}, first, second)

	assert.Equal(t, ResultInsufficientMaterial, g.Result())
	assert.Equal(t, 0, g.Ply())
	assert.Equal(t, []string{"ucinewgame"}, first.lines) // setup only, no search
}

func TestPlayDrawAdjudication(t *testing.T) {
	opts := Options{DrawScore: 10, DrawCount: 3}

	first := newScript("white", []string{"b1c3", "c3b1", "b1c3"}, []int{0, 5, -3})
	second := newScript("black", []string{"g8f6", "f6g8", "g8f6"}, []int{0, 0, 10})

	g := play(t, board.Initial, opts, first, second)

	assert.Equal(t, ResultDrawAdjudication, g.Result())
	assert.Equal(t, 5, g.Ply()) // terminated on the 6th report, move unplayed

	result, reason := g.DecodeResult()
	assert.Equal(t, "1/2-1/2", result)
	assert.Equal(t, "draw by adjudication", reason)
}

func TestPlayDrawAdjudicationReset(t *testing.T) {
	opts := Options{DrawScore: 10, DrawCount: 1}

	// The out-of-window score on the second ply resets the streak.
	first := newScript("white", []string{"b1c3", "c3b1"}, []int{0, 0})
	second := newScript("black", []string{"g8f6", "f6g8"}, []int{50, 0})

	g := play(t, board.Initial, opts, first, second)

	assert.Equal(t, ResultDrawAdjudication, g.Result())
	assert.Equal(t, 3, g.Ply())
}

func TestPlayResign(t *testing.T) {
	opts := Options{ResignScore: 500, ResignCount: 3}

	first := newScript("white", []string{"b1c3", "c3b1", "b1c3"}, []int{-600, -700, -600})
	second := newScript("black", []string{"g8f6", "f6g8"}, []int{0, 0})

	g := play(t, board.Initial, opts, first, second)

	assert.Equal(t, ResultResign, g.Result())

	result, reason := g.DecodeResult()
	assert.Equal(t, "0-1", result)
	assert.Equal(t, "white resigns", reason)
}

func TestPlayResignMateSentinel(t *testing.T) {
	opts := Options{ResignScore: 500, ResignCount: 1}

	// A forced mate for the side to move never triggers resignation.
	first := newScript("white", []string{"f2f3", "g2g4"}, []int{uci.ScoreMatePos, uci.ScoreMatePos})
	second := newScript("black", []string{"e7e5", "d8h4"}, []int{uci.ScoreMatePos, uci.ScoreMatePos})

	g := play(t, board.Initial, opts, first, second)

	assert.Equal(t, ResultCheckmate, g.Result())
}

func TestPlayIllegalMove(t *testing.T) {
	first := newScript("white", []string{"e2e5"}, nil)
	second := newScript("black", nil, nil)

	g := play(t, board.Initial, Options{}, first, second)

	assert.Equal(t, ResultIllegalMove, g.Result())
	assert.Equal(t, 0, g.Ply())

	result, reason := g.DecodeResult()
	assert.Equal(t, "0-1", result)
	assert.Equal(t, "illegal move", reason)
}

func TestPlayUnparseableMove(t *testing.T) {
	first := newScript("white", []string{"banana"}, nil)
	second := newScript("black", nil, nil)

	g := play(t, board.Initial, Options{}, first, second)

	assert.Equal(t, ResultIllegalMove, g.Result())
}

func TestPlayTimeLoss(t *testing.T) {
	first := newScript("white", []string{"e2e4"}, nil)
	second := newScript("black", []string{"e7e5"}, nil)
	second.timeoutAt = 0

	opts := Options{}
	opts.Limits[0].Time = lang.Some(time.Minute)
	opts.Limits[1].Time = lang.Some(time.Minute)

	g := play(t, board.Initial, opts, first, second)

	assert.Equal(t, ResultTimeLoss, g.Result())

	result, reason := g.DecodeResult()
	assert.Equal(t, "1-0", result) // black to move at termination
	assert.Equal(t, "time loss", reason)
}

func TestPlayFlagFall(t *testing.T) {
	// The first engine moves in time but spends its whole budget: its flag
	// falls before its next search.
	first := newScript("white", []string{"e2e4"}, nil)
	first.drain = true
	second := newScript("black", []string{"e7e5"}, nil)

	opts := Options{}
	opts.Limits[0].Time = lang.Some(time.Minute)
	opts.Limits[1].Time = lang.Some(time.Minute)

	g := play(t, board.Initial, opts, first, second)

	assert.Equal(t, ResultTimeLoss, g.Result())
	assert.Equal(t, 2, g.Ply())

	result, _ := g.DecodeResult()
	assert.Equal(t, "0-1", result) // white to move at termination
}

func TestPlayNamesReversed(t *testing.T) {
	// Black to move in the opening: first plays black.
	first := newScript("first", []string{"e7e5"}, nil)
	second := newScript("second", []string{"e2e5"}, nil) // illegal

	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	g := play(t, fen, Options{}, first, second)

	assert.Equal(t, ResultIllegalMove, g.Result())
	assert.Equal(t, [board.NumColors]string{"second", "first"}, g.Names())

	result, _ := g.DecodeResult()
	assert.Equal(t, "0-1", result) // white(second) to move at termination
}

func TestGoCommand(t *testing.T) {
	var l Limits
	assert.Equal(t, "go", goCommand(l))

	l.Nodes = lang.Some(uint64(4096))
	l.Depth = lang.Some(uint(12))
	l.MoveTime = lang.Some(250 * time.Millisecond)
	assert.Equal(t, "go nodes 4096 depth 12 movetime 250", goCommand(l))
}

func TestGoCommandSent(t *testing.T) {
	opts := Options{}
	opts.Limits[0].Depth = lang.Some(uint(1))

	first := newScript("white", []string{"e2e5"}, nil) // ends the game quickly
	second := newScript("black", nil, nil)

	play(t, board.Initial, opts, first, second)

	require.Equal(t, []string{
		"ucinewgame",
		"position fen " + board.Initial,
		"go depth 1",
	}, first.lines)
}

func TestPositionCommandPruning(t *testing.T) {
	first := newScript("white", []string{"f2f3", "g2g4"}, nil)
	second := newScript("black", []string{"e7e5", "d8h4"}, nil)

	g := play(t, board.Initial, Options{}, first, second)
	require.Equal(t, ResultCheckmate, g.Result())

	// The queen move is the only ply since the clock last reset.
	cmd := g.positionCommand()
	prefix := "position fen rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq"
	assert.True(t, strings.HasPrefix(cmd, prefix), cmd)
	assert.True(t, strings.HasSuffix(cmd, " moves d8h4"), cmd)

	// Rebuilding from the command yields the final position.
	fields := strings.Fields(strings.TrimPrefix(cmd, "position fen "))
	p, err := board.Parse(strings.Join(fields[:6], " "))
	require.NoError(t, err)
	for _, lan := range fields[7:] {
		m, err := board.LANToMove(p, lan, false)
		require.NoError(t, err)
		p, err = p.Apply(m)
		require.NoError(t, err)
	}
	assert.Equal(t, g.pos[g.Ply()].FEN(), p.FEN())
}

func TestAdjudicatePriority(t *testing.T) {
	// Stalemate outranks the exhausted halfmove clock.
	g, err := New("7k/8/5KQ1/8/8/8/8/8 b - - 100 80", Options{})
	require.NoError(t, err)
	assert.Equal(t, ResultStalemate, g.adjudicate(g.pos[0], g.pos[0].LegalMoves()))

	// The fifty-move rule outranks insufficient material.
	g, err = New("k7/8/8/8/8/8/8/K6N w - - 100 80", Options{})
	require.NoError(t, err)
	assert.Equal(t, ResultFiftyMoves, g.adjudicate(g.pos[0], g.pos[0].LegalMoves()))
}

func TestPositionHistory(t *testing.T) {
	first := newScript("white", []string{"f2f3", "g2g4"}, nil)
	second := newScript("black", []string{"e7e5", "d8h4"}, nil)

	g := play(t, board.Initial, Options{}, first, second)

	require.Equal(t, g.Ply()+1, len(g.pos))
	for i := 1; i <= g.Ply(); i++ {
		m, ok := g.pos[i].LastMove()
		require.True(t, ok)

		rebuilt, err := g.pos[i-1].Apply(m)
		require.NoError(t, err)
		assert.Equal(t, g.pos[i].FEN(), rebuilt.FEN())
	}
}

func TestPGN(t *testing.T) {
	first := newScript("patzer", []string{"f2f3", "g2g4"}, nil)
	second := newScript("shark", []string{"e7e5", "d8h4"}, nil)

	g := play(t, board.Initial, Options{}, first, second)

	pgn := g.PGN()
	assert.Contains(t, pgn, "[White \"patzer\"]\n")
	assert.Contains(t, pgn, "[Black \"shark\"]\n")
	assert.Contains(t, pgn, "[Result \"0-1\"]\n")
	assert.Contains(t, pgn, "[Termination \"checkmate\"]\n")
	assert.Contains(t, pgn, "[FEN \""+board.Initial+"\"]\n")
	assert.Contains(t, pgn, "[PlyCount \"4\"]\n")
	assert.Contains(t, pgn, "1. f3 e5 2. g4 Qh4#")
	assert.True(t, strings.HasSuffix(pgn, "Qh4# 0-1\n\n"), pgn)

	// The SAN token count matches the ply count.
	movetext := pgn[strings.Index(pgn, "\n\n")+2:]
	var sans int
	for _, tok := range strings.Fields(movetext) {
		if !strings.HasSuffix(tok, ".") && !strings.HasSuffix(tok, "..") && tok != "0-1" {
			sans++
		}
	}
	assert.Equal(t, g.Ply(), sans)
}

func TestPGNBlackOpening(t *testing.T) {
	first := newScript("first", []string{"e7e5"}, nil)
	second := newScript("second", []string{"e2e5"}, nil) // illegal

	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	g := play(t, fen, Options{}, first, second)

	pgn := g.PGN()
	assert.Contains(t, pgn, "\n\n1.. e5 ")
}

func TestPGNChess960Tag(t *testing.T) {
	first := newScript("white", []string{"e2e5"}, nil) // illegal, ends at once
	second := newScript("black", nil, nil)

	g := play(t, board.Initial, Options{Chess960: true}, first, second)

	assert.Contains(t, g.PGN(), "[Variant \"Chess960\"]\n")
}
