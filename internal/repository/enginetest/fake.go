// Package enginetest provides an in-process UCI engine for tests.
package enginetest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/repository"
)

// Reply scripts the answer to one "go" command.
type Reply struct {
	Lines    []analysis.Line
	BestMove string
	// Stall holds the answer back until "stop" arrives.
	Stall bool
	// Hang never answers, not even on "stop".
	Hang bool
	// Raw lines are written before the info lines.
	Raw []string
}

// Responder decides the reply for a search of position to depth.
type Responder func(position string, depth int) Reply

type Engine struct {
	respond Responder

	mu       sync.Mutex
	commands []string
	searches []string
	spawned  int
	held     *Reply
}

func New(respond Responder) *Engine {
	return &Engine{respond: respond}
}

// FixedScore answers every search with one line of the given score whose PV
// starts with move.
func FixedScore(score analysis.EvaluationScore, move string) Responder {
	return func(string, int) Reply {
		return Reply{
			Lines:    []analysis.Line{{Depth: 10, MultiPV: 1, Score: score, MovesUCI: []string{move}}},
			BestMove: move,
		}
	}
}

func (e *Engine) Spawner() repository.Spawner {
	return func() (*repository.Process, error) {
		stdinR, stdinW := io.Pipe()
		stdoutR, stdoutW := io.Pipe()
		exited := make(chan struct{})

		e.mu.Lock()
		e.spawned++
		e.mu.Unlock()

		go func() {
			defer close(exited)
			defer stdoutW.Close()
			e.serve(stdinR, stdoutW)
		}()

		return &repository.Process{
			Stdin:  stdinW,
			Stdout: stdoutR,
			Wait: func() error {
				<-exited
				return nil
			},
			Kill: func() error {
				_ = stdinR.Close()
				return stdoutW.Close()
			},
		}, nil
	}
}

// Commands returns every command received so far.
func (e *Engine) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Searches returns the position of every "go" received so far.
func (e *Engine) Searches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.searches...)
}

func (e *Engine) Spawned() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spawned
}

func (e *Engine) serve(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	position := analysis.StartPosition

	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		e.mu.Lock()
		e.commands = append(e.commands, cmd)
		e.mu.Unlock()

		switch {
		case cmd == "uci":
			writeLines(out, "id name enginetest", "option name MultiPV type spin default 1 min 1 max 500", "uciok")
		case cmd == "isready":
			writeLines(out, "readyok")
		case cmd == "position startpos":
			position = analysis.StartPosition
		case strings.HasPrefix(cmd, "position fen "):
			position = strings.TrimPrefix(cmd, "position fen ")
		case strings.HasPrefix(cmd, "go"):
			depth := 1
			if f := strings.Fields(cmd); len(f) >= 3 && f[1] == "depth" {
				depth, _ = strconv.Atoi(f[2])
			}
			e.mu.Lock()
			e.searches = append(e.searches, position)
			e.mu.Unlock()

			reply := e.respond(position, depth)
			switch {
			case reply.Hang:
			case reply.Stall:
				e.mu.Lock()
				e.held = &reply
				e.mu.Unlock()
			default:
				writeReply(out, reply)
			}
		case cmd == "stop":
			e.mu.Lock()
			held := e.held
			e.held = nil
			e.mu.Unlock()
			if held != nil {
				writeReply(out, *held)
			}
		case cmd == "quit":
			return
		}
	}
}

func writeReply(out io.Writer, reply Reply) {
	writeLines(out, reply.Raw...)
	for _, l := range reply.Lines {
		writeLines(out, FormatInfo(l))
	}
	best := reply.BestMove
	if best == "" {
		best = "(none)"
	}
	writeLines(out, "bestmove "+best)
}

// FormatInfo renders l the way a UCI engine prints it.
func FormatInfo(l analysis.Line) string {
	multipv := l.MultiPV
	if multipv == 0 {
		multipv = 1
	}
	line := fmt.Sprintf("info depth %d seldepth %d multipv %d score %s %d nodes 4096 nps 100000 time 40",
		l.Depth, l.Depth+4, multipv, l.Score.Kind, l.Score.Value)
	if len(l.MovesUCI) > 0 {
		line += " pv " + strings.Join(l.MovesUCI, " ")
	}
	return line
}

func writeLines(out io.Writer, lines ...string) {
	for _, line := range lines {
		_, _ = io.WriteString(out, line+"\n")
	}
}
