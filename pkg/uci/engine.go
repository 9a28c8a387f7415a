// Package uci contains a driver for running an external chess engine under the
// UCI protocol. The driver owns the engine process and its pipes and exchanges
// line-oriented commands over them, one request/response pair at a time.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
// See: https://en.wikipedia.org/wiki/Universal_Chess_Interface
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

// Mate scores are collapsed to sentinels outside any plausible adjudication
// threshold, so that resign logic never fires against the side delivering a
// forced mate. The sentinels deliberately do not depend on integer limits.
const (
	ScoreMatePos = 1 << 24
	ScoreMateNeg = -ScoreMatePos
)

// closeTimeout bounds how long Close waits for the engine to exit after
// SIGTERM before escalating to SIGKILL.
const closeTimeout = 3 * time.Second

// SearchResult is the outcome of a single best-move request.
type SearchResult struct {
	// Move is the best move in long algebraic notation. Empty on timeout.
	Move string
	// Score is the last score reported on an info line, in centipawns from
	// the engine's point of view, or a mate sentinel.
	Score int
	// TimeLeft is the remaining time budget. Zero on timeout.
	TimeLeft time.Duration
	// Timeout is true iff the budget expired before a best move arrived.
	Timeout bool
}

// Engine drives a single external UCI engine process. It exclusively owns the
// child process and its two pipes; the log sink, if any, is shared. An engine
// is either live or closed. Not thread-safe.
type Engine struct {
	iox.AsyncCloser

	name string
	cmd  *exec.Cmd

	in  io.ReadCloser  // child stdout
	out io.WriteCloser // child stdin
	log io.Writer

	lines   chan string
	readErr error // set before lines is closed

	closeOnce sync.Once
	closeErr  error
}

// NewEngine spawns the given engine executable, performs the UCI handshake and
// transmits the given options ("Name=Value" pairs separated by commas). If
// name is empty, the name is taken from the engine's "id name" line. The
// engine is closed on any failure.
func NewEngine(ctx context.Context, command, name string, log io.Writer, options string) (*Engine, error) {
	cmd := exec.Command(command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe to engine '%v' failed: %w", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("pipe from engine '%v' failed: %w", command, err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("could not execute engine '%v': %w", command, err)
	}

	e := newEngine(command, stdout, stdin, log)
	e.cmd = cmd
	if name != "" {
		e.name = name
	}

	logw.Infof(ctx, "Spawned engine '%v' (pid %v)", command, cmd.Process.Pid)

	if err := e.handshake(ctx, name == ""); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := e.configure(options); err != nil {
		_ = e.Close()
		return nil, err
	}

	logw.Infof(ctx, "Engine '%v' ready", e.name)
	return e, nil
}

// newEngine wires a driver over the given streams. The reader runs async so
// that best-move deadlines do not depend on the engine writing anything.
func newEngine(name string, in io.ReadCloser, out io.WriteCloser, log io.Writer) *Engine {
	e := &Engine{
		AsyncCloser: iox.NewAsyncCloser(),
		name:        name,
		in:          in,
		out:         out,
		log:         log,
		lines:       make(chan string, 100),
	}

	go func() {
		defer close(e.lines)

		scanner := bufio.NewScanner(e.in)
		for scanner.Scan() {
			e.lines <- scanner.Text()
		}
		e.readErr = scanner.Err()
	}()

	return e
}

// handshake activates the UCI protocol:
//
//   - uci: tell engine to use the uci (universal chess interface). After
//     receiving the uci command the engine must identify itself with the "id"
//     command and send the "option" commands, then "uciok" to acknowledge.
func (e *Engine) handshake(ctx context.Context, derive bool) error {
	if err := e.WriteLine("uci"); err != nil {
		return err
	}

	for {
		line, err := e.ReadLine(ctx)
		if err != nil {
			return err
		}

		if derive {
			if rest, ok := strings.CutPrefix(line, "id name "); ok {
				e.name = strings.TrimSpace(rest)
				derive = false
			}
		}
		if line == "uciok" {
			return nil
		}
	}
}

// configure transmits each "Name=Value" option:
//
//   - setoption name <id> [value <x>]: this is sent to the engine when the
//     user wants to change the internal parameters of the engine. One string
//     will be sent for each parameter.
func (e *Engine) configure(options string) error {
	if options == "" {
		return nil
	}

	for _, kv := range strings.Split(options, ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid UCI option '%v': want Name=Value", kv)
		}

		if err := e.WriteLine(fmt.Sprintf("setoption name %v value %v", name, value)); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the engine display name.
func (e *Engine) Name() string {
	return e.name
}

// WriteLine sends a single line to the engine. Any failure is fatal for the
// engine.
func (e *Engine) WriteLine(line string) error {
	if _, err := fmt.Fprintf(e.out, "%v\n", line); err != nil {
		return fmt.Errorf("write to engine '%v' failed: %w", e.name, err)
	}
	return e.logLine("<-", line)
}

// ReadLine receives a single line from the engine.
func (e *Engine) ReadLine(ctx context.Context) (string, error) {
	line, _, err := e.recv(ctx, nil)
	return line, err
}

func (e *Engine) recv(ctx context.Context, deadline <-chan time.Time) (string, bool, error) {
	select {
	case line, ok := <-e.lines:
		if !ok {
			err := e.readErr
			if err == nil {
				err = io.EOF
			}
			return "", false, fmt.Errorf("read from engine '%v' failed: %w", e.name, err)
		}
		return line, false, e.logLine("->", line)

	case <-deadline:
		return "", true, nil

	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (e *Engine) logLine(dir, line string) error {
	if e.log == nil {
		return nil
	}
	if _, err := fmt.Fprintf(e.log, "%v %v %v\n", e.name, dir, line); err != nil {
		return fmt.Errorf("write to log failed for '%v': %w", e.name, err)
	}
	return nil
}

// Sync blocks until the engine has processed all input:
//
//   - isready: this is used to synchronize the engine with the GUI. This
//     command must always be answered with "readyok".
func (e *Engine) Sync(ctx context.Context) error {
	if err := e.WriteLine("isready"); err != nil {
		return err
	}

	for {
		line, err := e.ReadLine(ctx)
		if err != nil {
			return err
		}
		if line == "readyok" {
			return nil
		}
	}
}

// BestMove reads engine output until a best move arrives or the budget runs
// out. A non-positive budget means no time limit. Scores are taken from the
// last "info ... score" seen. On timeout, the engine is stopped and its output
// drained through the terminating "bestmove" line, so a subsequent search
// cannot observe state from this one.
func (e *Engine) BestMove(ctx context.Context, budget time.Duration) (SearchResult, error) {
	res := SearchResult{TimeLeft: budget}

	var deadline <-chan time.Time
	var until time.Time
	if budget > 0 {
		timer := time.NewTimer(budget)
		defer timer.Stop()
		deadline = timer.C
		until = time.Now().Add(budget)
	}

	for {
		line, timedout, err := e.recv(ctx, deadline)
		if err != nil {
			return res, err
		}

		if timedout {
			// Time out. We can't leave the engine searching for the next
			// ucinewgame. Stop it and drain until it acknowledges.
			res.Timeout = true
			res.TimeLeft = 0

			if err := e.WriteLine("stop"); err != nil {
				return res, err
			}
			for {
				line, err := e.ReadLine(ctx)
				if err != nil {
					return res, err
				}
				if strings.HasPrefix(line, "bestmove ") {
					return res, nil
				}
			}
		}

		if budget > 0 {
			res.TimeLeft = time.Until(until)
		}

		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		switch tokens[0] {
		case "info":
			score, ok, err := parseScore(tokens)
			if err != nil {
				return res, fmt.Errorf("engine '%v': %w", e.name, err)
			}
			if ok {
				res.Score = score
			}

		case "bestmove":
			if len(tokens) >= 2 {
				res.Move = tokens[1]
				return res, nil
			}

		default:
			// silently ignore anything not handled
		}
	}
}

// parseScore extracts the "score" sub-record of an info line, if present:
//
//   - score cp <x>: the score from the engine's point of view in centipawns.
//   - score mate <y>: mate in y moves; negative if the engine is getting mated.
func parseScore(tokens []string) (int, bool, error) {
	for i := 1; i < len(tokens); i++ {
		if tokens[i] != "score" {
			continue
		}
		if i+1 >= len(tokens) {
			return 0, false, nil
		}

		switch tokens[i+1] {
		case "cp":
			if i+2 >= len(tokens) {
				return 0, false, nil
			}
			n, err := strconv.Atoi(tokens[i+2])
			if err != nil {
				return 0, false, fmt.Errorf("illegal cp score in '%v'", strings.Join(tokens, " "))
			}
			return n, true, nil

		case "mate":
			if i+2 >= len(tokens) {
				return 0, false, nil
			}
			n, err := strconv.Atoi(tokens[i+2])
			if err != nil {
				return 0, false, fmt.Errorf("illegal mate score in '%v'", strings.Join(tokens, " "))
			}
			if n < 0 {
				return ScoreMateNeg, true, nil
			}
			return ScoreMatePos, true, nil

		default:
			return 0, false, fmt.Errorf("illegal syntax after 'score' in '%v'", strings.Join(tokens, " "))
		}
	}
	return 0, false, nil
}

// Close releases the engine: it closes the read and write streams, asks the
// process to terminate and reaps it, escalating to a kill if it does not exit
// within a bounded grace period. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error

		if e.in != nil {
			if err := e.in.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close read stream of '%v': %w", e.name, err))
			}
		}
		if e.out != nil {
			if err := e.out.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close write stream of '%v': %w", e.name, err))
			}
		}

		// Unblock the reader so it can observe EOF.
		go func() {
			for range e.lines {
			}
		}()

		if e.cmd != nil && e.cmd.Process != nil {
			if err := e.cmd.Process.Signal(syscall.SIGTERM); err != nil {
				errs = append(errs, fmt.Errorf("failed to terminate '%v': %w", e.name, err))
			}

			done := make(chan error, 1)
			go func() { done <- e.cmd.Wait() }()

			select {
			case <-done:
			case <-time.After(closeTimeout):
				_ = e.cmd.Process.Kill()
				<-done
			}
		}

		e.closeErr = errors.Join(errs...)
		e.AsyncCloser.Close()
	})
	return e.closeErr
}
