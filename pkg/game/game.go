// Package game contains the driver that plays a single game between two UCI
// engines and adjudicates the outcome: chess rules first, then the fifty-move
// rule, insufficient material, repetition, and the configured draw and resign
// thresholds.
package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/herohde/gauntlet/pkg/board"
	"github.com/herohde/gauntlet/pkg/uci"
	"github.com/seekerror/stdlib/pkg/lang"
)

// Engine is the game driver's view of an engine. Engines are borrowed, not
// owned: the driver never closes them and reuses them across games via
// ucinewgame.
type Engine interface {
	// Name returns the engine display name.
	Name() string
	// WriteLine sends a single UCI line.
	WriteLine(line string) error
	// Sync blocks until the engine has processed all input.
	Sync(ctx context.Context) error
	// BestMove reads output until a best move arrives or the budget runs out.
	BestMove(ctx context.Context, budget time.Duration) (uci.SearchResult, error)
}

var _ Engine = (*uci.Engine)(nil)

// Limits are the search limits for one engine. Absent values are not emitted.
type Limits struct {
	// Nodes, Depth and MoveTime become arguments of the go command.
	Nodes    lang.Optional[uint64]
	Depth    lang.Optional[uint]
	MoveTime lang.Optional[time.Duration]

	// Time and Increment form the driver-side clock. Without Time, the
	// engine is never timed out.
	Time      lang.Optional[time.Duration]
	Increment lang.Optional[time.Duration]
}

// Options configure a single game.
type Options struct {
	// Chess960 negotiates UCI_Chess960 and castling notation.
	Chess960 bool

	// Limits are indexed by engine order: 0 is the engine that moves first.
	Limits [2]Limits

	// DrawScore and DrawCount declare a draw when both engines report
	// |score| <= DrawScore for 2*DrawCount consecutive plies. Zero DrawCount
	// disables the rule.
	DrawScore int
	DrawCount int

	// ResignScore and ResignCount resign for an engine that reports
	// score <= -ResignScore on ResignCount consecutive own moves. Zero
	// ResignCount disables the rule.
	ResignScore int
	ResignCount int
}

// Game holds the positions of a single game, one per ply, and its result.
// Games are single-use and not thread-safe.
type Game struct {
	opts Options

	pos    []*board.Position
	names  [board.NumColors]string
	result Result
}

// New returns a new game from the given opening position.
func New(fen string, opts Options) (*Game, error) {
	p, err := board.Parse(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid opening: %w", err)
	}

	g := &Game{opts: opts}
	g.pos = append(make([]*board.Position, 0, 64), p)
	return g, nil
}

// Ply returns the current ply. The opening position is ply zero.
func (g *Game) Ply() int {
	return len(g.pos) - 1
}

// Result returns the result tag, ResultNone until the game is over.
func (g *Game) Result() Result {
	return g.result
}

// Position returns the position at the given ply, between 0 and Ply().
func (g *Game) Position(ply int) *board.Position {
	return g.pos[ply]
}

// Names returns the player names by color, set by Play.
func (g *Game) Names() [board.NumColors]string {
	return g.names
}

// Play runs the game to completion. The first engine plays the side to move
// in the opening position. Engine misbehavior (timeout, unparseable or
// illegal move) terminates the game as an outcome; protocol and I/O failures
// return an error with the game unfinished.
func (g *Game) Play(ctx context.Context, first, second Engine) error {
	if g.result != ResultNone || len(g.pos) > 1 {
		return fmt.Errorf("game already played")
	}
	engines := [2]Engine{first, second}

	// Record names by color, regardless of which side the opening has to move.
	for c := board.White; c < board.NumColors; c++ {
		g.names[c] = engines[int(c)^int(g.pos[0].Turn())].Name()
	}

	for i := range engines {
		if g.opts.Chess960 {
			if err := engines[i].WriteLine("setoption name UCI_Chess960 value true"); err != nil {
				return err
			}
		}
		if err := engines[i].WriteLine("ucinewgame"); err != nil {
			return err
		}
	}

	goCmd := [2]string{goCommand(g.opts.Limits[0]), goCommand(g.opts.Limits[1])}

	var clocked [2]bool
	var timeLeft [2]time.Duration
	for i := range g.opts.Limits {
		if t, ok := g.opts.Limits[i].Time.V(); ok {
			clocked[i] = true
			timeLeft[i] = t
		}
	}

	drawPlies := 0
	var resignPlies [2]int

	for {
		ply := len(g.pos) - 1
		p := g.pos[ply]

		legal := p.LegalMoves()
		if r := g.adjudicate(p, legal); r != ResultNone {
			g.result = r
			return nil
		}

		turn := ply % 2
		e := engines[turn]

		// A clocked side whose flag already fell loses before searching again.
		if clocked[turn] && timeLeft[turn] <= 0 {
			g.result = ResultTimeLoss
			return nil
		}

		if err := e.WriteLine(g.positionCommand()); err != nil {
			return err
		}
		if err := e.Sync(ctx); err != nil {
			return err
		}
		if err := e.WriteLine(goCmd[turn]); err != nil {
			return err
		}

		res, err := e.BestMove(ctx, timeLeft[turn])
		if err != nil {
			return err
		}

		if res.Timeout {
			g.result = ResultTimeLoss
			return nil
		}
		if clocked[turn] {
			timeLeft[turn] = res.TimeLeft
			if inc, ok := g.opts.Limits[turn].Increment.V(); ok {
				timeLeft[turn] += inc
			}
		}

		m, err := board.LANToMove(p, res.Move, g.opts.Chess960)
		if err != nil || !board.Contains(legal, m) {
			g.result = ResultIllegalMove
			return nil
		}

		// Draw adjudication: both engines must stay within the window.
		if g.opts.DrawCount > 0 && abs(res.Score) <= g.opts.DrawScore {
			drawPlies++
			if drawPlies >= 2*g.opts.DrawCount {
				g.result = ResultDrawAdjudication
				return nil
			}
		} else {
			drawPlies = 0
		}

		// Resign adjudication: each engine on its own reported scores.
		if g.opts.ResignCount > 0 && res.Score <= -g.opts.ResignScore {
			resignPlies[turn]++
			if resignPlies[turn] >= g.opts.ResignCount {
				g.result = ResultResign
				return nil
			}
		} else {
			resignPlies[turn] = 0
		}

		next, err := p.Apply(m)
		if err != nil {
			return err
		}
		g.pos = append(g.pos, next)
	}
}

// adjudicate decides whether the current position ends the game by rules
// alone, in priority order.
func (g *Game) adjudicate(p *board.Position, legal []board.Move) Result {
	if len(legal) == 0 {
		if p.Status() == board.Checkmate {
			return ResultCheckmate
		}
		return ResultStalemate
	}

	if p.Rule50() >= 100 {
		return ResultFiftyMoves
	}
	if p.HasInsufficientMaterial() {
		return ResultInsufficientMaterial
	}

	// Scan for 3 repetitions: same side to move, bounded by the halfmove
	// clock and by available history.
	ply := len(g.pos) - 1
	repetitions := 1
	for i := 4; i <= p.Rule50() && i <= ply; i += 2 {
		if g.pos[ply-i].Key() == p.Key() {
			if repetitions++; repetitions >= 3 {
				return ResultThreefold
			}
		}
	}

	return ResultNone
}

// positionCommand builds "position fen ... [moves ...]" for the current ply.
// It starts from the last position that reset the halfmove clock, keeping the
// move list minimal without losing information.
func (g *Game) positionCommand() string {
	ply := len(g.pos) - 1

	p0 := ply - g.pos[ply].Rule50()
	if p0 < 0 {
		p0 = 0
	}

	var sb strings.Builder
	sb.WriteString("position fen ")
	sb.WriteString(g.pos[p0].FEN())

	if p0 < ply {
		sb.WriteString(" moves")
		for i := p0 + 1; i <= ply; i++ {
			m, _ := g.pos[i].LastMove()
			sb.WriteString(" ")
			sb.WriteString(board.MoveToLAN(g.pos[i-1], m, g.opts.Chess960))
		}
	}
	return sb.String()
}

// goCommand precomputes the go line for one engine.
func goCommand(l Limits) string {
	parts := []string{"go"}
	if n, ok := l.Nodes.V(); ok {
		parts = append(parts, fmt.Sprintf("nodes %v", n))
	}
	if d, ok := l.Depth.V(); ok {
		parts = append(parts, fmt.Sprintf("depth %v", d))
	}
	if t, ok := l.MoveTime.V(); ok {
		parts = append(parts, fmt.Sprintf("movetime %v", t.Milliseconds()))
	}
	return strings.Join(parts, " ")
}

// DecodeResult returns the wire result from white's point of view and the
// termination reason.
func (g *Game) DecodeResult() (string, string) {
	loser := "1-0"
	if g.pos[len(g.pos)-1].Turn() == board.White {
		loser = "0-1"
	}

	switch g.result {
	case ResultNone:
		return "*", "unterminated"
	case ResultCheckmate:
		return loser, "checkmate"
	case ResultStalemate:
		return "1/2-1/2", "stalemate"
	case ResultThreefold:
		return "1/2-1/2", "3 repetitions"
	case ResultFiftyMoves:
		return "1/2-1/2", "50 move rule"
	case ResultInsufficientMaterial:
		return "1/2-1/2", "insufficient material"
	case ResultIllegalMove:
		return loser, "illegal move"
	case ResultTimeLoss:
		return loser, "time loss"
	case ResultDrawAdjudication:
		return "1/2-1/2", "draw by adjudication"
	case ResultResign:
		return loser, fmt.Sprintf("%v resigns", g.pos[len(g.pos)-1].Turn())
	default:
		return "*", "invalid"
	}
}

// PGN serializes the finished game as a single PGN record.
func (g *Game) PGN() string {
	result, reason := g.DecodeResult()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[White %q]\n", g.names[board.White])
	fmt.Fprintf(&sb, "[Black %q]\n", g.names[board.Black])
	fmt.Fprintf(&sb, "[Result %q]\n", result)
	fmt.Fprintf(&sb, "[Termination %q]\n", reason)
	fmt.Fprintf(&sb, "[FEN %q]\n", g.pos[0].FEN())
	if g.opts.Chess960 {
		sb.WriteString("[Variant \"Chess960\"]\n")
	}
	fmt.Fprintf(&sb, "[PlyCount \"%v\"]\n\n", len(g.pos)-1)

	for ply := 1; ply < len(g.pos); ply++ {
		prev := g.pos[ply-1]

		if prev.Turn() == board.White {
			fmt.Fprintf(&sb, "%v. ", prev.FullMove())
		} else if ply == 1 {
			fmt.Fprintf(&sb, "%v.. ", prev.FullMove())
		}

		m, _ := g.pos[ply].LastMove()
		sb.WriteString(board.MoveToSAN(prev, m))

		if ply%10 == 0 {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
	}

	sb.WriteString(result)
	sb.WriteString("\n\n")
	return sb.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
