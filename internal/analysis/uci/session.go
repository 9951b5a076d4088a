// Package uci speaks the UCI protocol to an external engine process such as
// Stockfish. A Session wraps one process; cancellation of an in-flight search
// is forwarded to the engine as a "stop" command so the process never keeps
// burning CPU on an abandoned request.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	readyTimeout    = 4 * time.Second
	stopGracePeriod = 2 * time.Second
)

// Options are the engine process settings, fixed for the session's lifetime.
type Options struct {
	Threads int
	HashMB  int
}

// Result is the outcome of one search.
type Result struct {
	BestMove string
	ScoreCP  int // relative to the side to move
	Mate     int // moves to mate, signed; 0 when not a mate score
	Depth    int // deepest completed iteration
}

// Session owns one engine process. Searches are serialized; the write mutex
// additionally allows "stop" to be sent while a search is reading.
type Session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan lineResult

	mu     sync.Mutex // guards stdin writes and Close
	search sync.Mutex // serializes Analyze
}

type lineResult struct {
	line string
	err  error
}

func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan lineResult, 64),
	}
	// single reader owns stdout; a cancelled search never loses a line
	go func() {
		r := bufio.NewReader(stdoutPipe)
		for {
			line, err := r.ReadString('\n')
			s.lines <- lineResult{line: strings.TrimSpace(line), err: err}
			if err != nil {
				close(s.lines)
				return
			}
		}
	}()
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	hash := opt.HashMB
	if hash <= 0 {
		hash = 64
	}
	for _, cmd := range []string{
		fmt.Sprintf("setoption name Threads value %d\n", threads),
		fmt.Sprintf("setoption name Hash value %d\n", hash),
	} {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// EnsureReady verifies the engine process still answers.
func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	return s.awaitToken(readyCtx, "readyok")
}

// Analyze searches fen to the given depth. When ctx is cancelled mid-search
// the engine is told to stop, the bestmove line is drained within a grace
// period, and the ctx error is returned.
func (s *Session) Analyze(ctx context.Context, fen string, depth int) (Result, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send("position fen " + fen + "\n"); err != nil {
		return Result{}, fmt.Errorf("send position: %w", err)
	}
	if err := s.send("go depth " + strconv.Itoa(depth) + "\n"); err != nil {
		return Result{}, fmt.Errorf("send go: %w", err)
	}

	var res Result
	readCtx := ctx
	stopped := false
	for {
		line, err := s.readLine(readCtx)
		if err != nil {
			if !stopped && ctx.Err() != nil {
				// forward the cancellation, then drain until bestmove
				if serr := s.send("stop\n"); serr != nil {
					return Result{}, fmt.Errorf("send stop: %w", serr)
				}
				stopped = true
				var cancel context.CancelFunc
				readCtx, cancel = context.WithTimeout(context.Background(), stopGracePeriod)
				defer cancel()
				continue
			}
			return Result{}, fmt.Errorf("read line: %w", err)
		}
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "info "):
			parseInfo(line, &res)
		case strings.HasPrefix(line, "bestmove"):
			if parts := strings.Fields(line); len(parts) >= 2 && parts[1] != "(none)" {
				res.BestMove = parts[1]
			}
			if stopped {
				return res, ctx.Err()
			}
			return res, nil
		}
	}
}

// parseInfo folds one "info" line into res, keeping the deepest score seen.
func parseInfo(line string, res *Result) {
	parts := strings.Fields(line)
	depth := 0
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				if v, err := strconv.Atoi(parts[i+2]); err == nil {
					switch parts[i+1] {
					case "cp":
						res.ScoreCP = v
						res.Mate = 0
					case "mate":
						res.Mate = v
					}
				}
				i += 2
			}
		}
	}
	if depth > res.Depth {
		res.Depth = depth
	}
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case r, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}
