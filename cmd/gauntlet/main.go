package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/herohde/gauntlet/pkg/match"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
)

var version = build.NewVersion(0, 1, 0)

var (
	config = flag.String("config", "", "Match configuration file (TOML). Overrides the engine and match flags.")

	engine1  = flag.String("engine1", "", "Command of the first engine")
	engine2  = flag.String("engine2", "", "Command of the second engine")
	name1    = flag.String("name1", "", "Display name of the first engine (default: from the engine)")
	name2    = flag.String("name2", "", "Display name of the second engine (default: from the engine)")
	options1 = flag.String("options1", "", "UCI options for the first engine, eg. \"Hash=16,Threads=2\"")
	options2 = flag.String("options2", "", "UCI options for the second engine, eg. \"Hash=16,Threads=2\"")

	games       = flag.Int("games", 1, "Number of games to play")
	concurrency = flag.Int("concurrency", 1, "Number of games to play in parallel")
	openings    = flag.String("openings", "", "File with one opening FEN per line (default: the standard starting position)")
	pgn         = flag.String("pgn", "", "Output file for game records in PGN format, appended")
	log         = flag.String("log", "", "Output file for all UCI traffic, appended")

	chess960 = flag.Bool("chess960", false, "Play the Chess960 variant")
	nodes    = flag.Uint64("nodes", 0, "Node limit per move (zero if unlimited)")
	depth    = flag.Uint("depth", 0, "Depth limit per move (zero if unlimited)")
	movetime = flag.Int("movetime", 0, "Time per move in msec (zero if unlimited)")
	gametime = flag.Int("time", 0, "Time per game in msec (zero if no clock)")
	inc      = flag.Int("increment", 0, "Time increment per move in msec")

	drawScore   = flag.Int("drawscore", 0, "Draw adjudication score threshold in centipawns")
	drawCount   = flag.Int("drawcount", 0, "Draw adjudication move count (zero if disabled)")
	resignScore = flag.Int("resignscore", 0, "Resign adjudication score threshold in centipawns")
	resignCount = flag.Int("resigncount", 0, "Resign adjudication move count (zero if disabled)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: gauntlet [options]

GAUNTLET plays matches between two UCI chess engines.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	logw.Infof(ctx, "gauntlet %v", version)

	cfg, err := makeConfig()
	if err != nil {
		flag.Usage()
		logw.Exitf(ctx, "Invalid invocation: %v", err)
	}

	pgnSink, err := openSink(cfg.PGN)
	if err != nil {
		logw.Exitf(ctx, "Failed to open PGN output: %v", err)
	}
	logSink, err := openSink(cfg.Log)
	if err != nil {
		logw.Exitf(ctx, "Failed to open log output: %v", err)
	}

	m, err := match.New(cfg, pgnSink, logSink)
	if err != nil {
		flag.Usage()
		logw.Exitf(ctx, "Invalid match: %v", err)
	}

	score, err := m.Run(ctx)
	if err != nil {
		logw.Exitf(ctx, "Match failed: %v", err)
	}

	fmt.Printf("Score of %v vs %v: %v\n", cfg.Engines[0].DisplayName(), cfg.Engines[1].DisplayName(), score)
}

func makeConfig() (match.Config, error) {
	if *config != "" {
		return match.LoadConfig(*config)
	}

	if *engine1 == "" || *engine2 == "" {
		return match.Config{}, fmt.Errorf("need -engine1 and -engine2, or -config")
	}

	return match.Config{
		Engines: []match.EngineConfig{
			{Cmd: *engine1, Name: *name1, Options: *options1, Nodes: *nodes, Depth: *depth, MoveTime: *movetime, Time: *gametime, Increment: *inc},
			{Cmd: *engine2, Name: *name2, Options: *options2, Nodes: *nodes, Depth: *depth, MoveTime: *movetime, Time: *gametime, Increment: *inc},
		},
		Games:       *games,
		Concurrency: *concurrency,
		Openings:    *openings,
		PGN:         *pgn,
		Log:         *log,
		Chess960:    *chess960,
		DrawScore:   *drawScore,
		DrawCount:   *drawCount,
		ResignScore: *resignScore,
		ResignCount: *resignCount,
	}, nil
}

func openSink(path string) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
