package match

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/herohde/gauntlet/pkg/game"
	"github.com/seekerror/stdlib/pkg/lang"
)

// EngineConfig describes one engine: how to start it and how to limit its
// search. Zero limits are not emitted.
type EngineConfig struct {
	Cmd     string `toml:"cmd"`
	Name    string `toml:"name"`
	Options string `toml:"options"` // UCI options, "Name=Value" pairs separated by commas

	Nodes     uint64 `toml:"nodes"`
	Depth     uint   `toml:"depth"`
	MoveTime  int    `toml:"movetime"`  // milliseconds per move
	Time      int    `toml:"time"`      // milliseconds per game
	Increment int    `toml:"increment"` // milliseconds per move played
}

func (c EngineConfig) limits() game.Limits {
	var l game.Limits
	if c.Nodes > 0 {
		l.Nodes = lang.Some(c.Nodes)
	}
	if c.Depth > 0 {
		l.Depth = lang.Some(c.Depth)
	}
	if c.MoveTime > 0 {
		l.MoveTime = lang.Some(time.Duration(c.MoveTime) * time.Millisecond)
	}
	if c.Time > 0 {
		l.Time = lang.Some(time.Duration(c.Time) * time.Millisecond)
	}
	if c.Increment > 0 {
		l.Increment = lang.Some(time.Duration(c.Increment) * time.Millisecond)
	}
	return l
}

// DisplayName returns the configured name, defaulting to the command.
func (c EngineConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Cmd
}

// Config configures a match between two engines.
type Config struct {
	Engines []EngineConfig `toml:"engine"`

	Games       int    `toml:"games"`
	Concurrency int    `toml:"concurrency"`
	Openings    string `toml:"openings"` // file with one opening FEN per line
	PGN         string `toml:"pgn"`      // output file for game records
	Log         string `toml:"log"`      // output file for UCI traffic

	Chess960    bool `toml:"chess960"`
	DrawScore   int  `toml:"draw_score"`
	DrawCount   int  `toml:"draw_count"`
	ResignScore int  `toml:"resign_score"`
	ResignCount int  `toml:"resign_count"`
}

// LoadConfig reads a match configuration in TOML format.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config '%v': %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Engines) != 2 {
		return fmt.Errorf("want exactly 2 engines, got %v", len(c.Engines))
	}
	for i := range c.Engines {
		if c.Engines[i].Cmd == "" {
			return fmt.Errorf("engine %v has no command", i+1)
		}
	}

	if c.Games <= 0 {
		c.Games = 1
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Concurrency > c.Games {
		c.Concurrency = c.Games
	}
	return nil
}

func (c *Config) options(first, second EngineConfig) game.Options {
	return game.Options{
		Chess960:    c.Chess960,
		Limits:      [2]game.Limits{first.limits(), second.limits()},
		DrawScore:   c.DrawScore,
		DrawCount:   c.DrawCount,
		ResignScore: c.ResignScore,
		ResignCount: c.ResignCount,
	}
}
