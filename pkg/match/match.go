// Package match schedules games between two UCI engines: alternating colors
// round by round, cycling through a list of openings, running games in
// parallel across workers with an engine pair per worker, and tallying the
// result.
package match

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/herohde/gauntlet/pkg/board"
	"github.com/herohde/gauntlet/pkg/game"
	"github.com/herohde/gauntlet/pkg/uci"
	"github.com/seekerror/logw"
	"golang.org/x/sync/errgroup"
)

// Score is the match tally, indexed by engine.
type Score struct {
	Wins  [2]int
	Draws int
}

func (s Score) String() string {
	return fmt.Sprintf("%v - %v - %v", s.Wins[0], s.Wins[1], s.Draws)
}

// handle is an engine owned by a worker for the duration of the match.
type handle interface {
	game.Engine
	Close() error
}

// Match runs a configured match. Safe for a single Run.
type Match struct {
	cfg      Config
	openings []string

	pgn io.Writer // shared, may be nil
	log io.Writer // shared, may be nil

	spawn func(ctx context.Context, cfg EngineConfig, log io.Writer) (handle, error)

	mu    sync.Mutex
	score Score
}

// New returns a match for the given configuration. The pgn and log sinks may
// be nil; they are shared across workers and serialized here.
func New(cfg Config, pgn, log io.Writer) (*Match, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	openings := []string{board.Initial}
	if cfg.Openings != "" {
		data, err := os.ReadFile(cfg.Openings)
		if err != nil {
			return nil, fmt.Errorf("could not read openings '%v': %w", cfg.Openings, err)
		}

		openings = nil
		for _, line := range strings.Split(string(data), "\n") {
			if fen := strings.TrimSpace(line); fen != "" {
				openings = append(openings, fen)
			}
		}
		if len(openings) == 0 {
			return nil, fmt.Errorf("no openings in '%v'", cfg.Openings)
		}
	}

	if log != nil {
		log = &syncWriter{w: log}
	}

	return &Match{
		cfg:      cfg,
		openings: openings,
		pgn:      pgn,
		log:      log,
		spawn: func(ctx context.Context, cfg EngineConfig, log io.Writer) (handle, error) {
			return uci.NewEngine(ctx, cfg.Cmd, cfg.Name, log, cfg.Options)
		},
	}, nil
}

// Run plays all games and returns the final score. A failing engine aborts
// the match.
func (m *Match) Run(ctx context.Context) (Score, error) {
	logw.Infof(ctx, "Match: %v vs %v, %v game(s), %v worker(s)",
		m.cfg.Engines[0].DisplayName(), m.cfg.Engines[1].DisplayName(), m.cfg.Games, m.cfg.Concurrency)

	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for round := 0; round < m.cfg.Games; round++ {
			select {
			case jobs <- round:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < m.cfg.Concurrency; w++ {
		g.Go(func() error {
			return m.worker(gctx, jobs)
		})
	}

	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score, err
}

// worker drives its own engine pair, reusing it across games.
func (m *Match) worker(ctx context.Context, jobs <-chan int) error {
	var engines [2]handle
	for i := range m.cfg.Engines {
		e, err := m.spawn(ctx, m.cfg.Engines[i], m.log)
		if err != nil {
			if i > 0 {
				_ = engines[0].Close()
			}
			return err
		}
		engines[i] = e
		defer e.Close()
	}

	for round := range jobs {
		if err := m.play(ctx, round, engines); err != nil {
			return err
		}
	}
	return nil
}

func (m *Match) play(ctx context.Context, round int, engines [2]handle) error {
	// Engines swap colors every round; openings cycle.
	fi, si := round%2, (round+1)%2
	opening := m.openings[round%len(m.openings)]

	g, err := game.New(opening, m.cfg.options(m.cfg.Engines[fi], m.cfg.Engines[si]))
	if err != nil {
		return err
	}
	if err := g.Play(ctx, engines[fi], engines[si]); err != nil {
		return fmt.Errorf("game %v failed: %w", round+1, err)
	}

	result, reason := g.DecodeResult()

	whiteIdx := fi
	if g.Position(0).Turn() == board.Black {
		whiteIdx = si
	}

	m.record(result, whiteIdx, g.PGN())

	names := g.Names()
	logw.Infof(ctx, "Game %v: %v vs %v: %v (%v)", round+1, names[board.White], names[board.Black], result, reason)
	return nil
}

func (m *Match) record(result string, whiteIdx int, pgn string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch result {
	case "1-0":
		m.score.Wins[whiteIdx]++
	case "0-1":
		m.score.Wins[1-whiteIdx]++
	default:
		m.score.Draws++
	}

	if m.pgn != nil {
		_, _ = io.WriteString(m.pgn, pgn)
	}
}

// syncWriter serializes writes to the shared engine log.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
