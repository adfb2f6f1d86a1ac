package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"chess_review/internal/domain/analysis"
	ownErrors "chess_review/internal/errors"
)

type EventKind int

const (
	EventIgnored EventKind = iota
	EventInfo
	EventBestMove
	EventReadyOK
	EventUCIOK
)

// Event is the structured form of one engine output line.
type Event struct {
	Kind     EventKind
	Line     analysis.Line
	BestMove string
	Ponder   string
}

// ParseLine decodes one line of UCI output. Malformed lines come back as
// EventIgnored together with an error wrapping ErrEngineProtocol.
func ParseLine(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Event{Kind: EventIgnored}, nil
	}

	switch fields[0] {
	case "info":
		return parseInfo(fields)
	case "bestmove":
		return parseBestMove(fields)
	case "readyok":
		return Event{Kind: EventReadyOK}, nil
	case "uciok":
		return Event{Kind: EventUCIOK}, nil
	default:
		return Event{Kind: EventIgnored}, nil
	}
}

func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ownErrors.ErrEngineProtocol, fmt.Sprintf(format, args...))
}

func parseBestMove(fields []string) (Event, error) {
	if len(fields) < 2 {
		return Event{Kind: EventIgnored}, protocolError("bestmove without a move")
	}
	ev := Event{Kind: EventBestMove, BestMove: fields[1]}
	if ev.BestMove == "(none)" {
		ev.BestMove = ""
	}
	for i := 2; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ev.Ponder = fields[i+1]
			break
		}
	}
	return ev, nil
}

func parseInfo(fields []string) (Event, error) {
	var (
		l        = analysis.Line{MultiPV: 1}
		hasScore bool
		hasDepth bool
	)

	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			return Event{Kind: EventIgnored}, nil
		case "depth", "multipv":
			if i+1 >= len(fields) {
				return Event{Kind: EventIgnored}, protocolError("%s without a value", fields[i])
			}
			n, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return Event{Kind: EventIgnored}, protocolError("%s %q", fields[i], fields[i+1])
			}
			if fields[i] == "depth" {
				l.Depth = n
				hasDepth = true
			} else {
				l.MultiPV = n
			}
			i++
		case "score":
			if i+2 >= len(fields) {
				return Event{Kind: EventIgnored}, protocolError("truncated score")
			}
			value, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return Event{Kind: EventIgnored}, protocolError("score value %q", fields[i+2])
			}
			switch fields[i+1] {
			case "cp":
				l.Score = analysis.Centipawns(value)
			case "mate":
				l.Score = analysis.MateIn(value)
			default:
				return Event{Kind: EventIgnored}, protocolError("score kind %q", fields[i+1])
			}
			hasScore = true
			i += 2
			// lowerbound / upperbound markers follow the value and carry no data
		case "pv":
			l.MovesUCI = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}

	if !hasScore {
		return Event{Kind: EventIgnored}, nil
	}
	// depth 0 only comes with a finished game (mate 0 or a stalemate cp 0)
	if !hasDepth || l.Depth < 0 || (l.Depth == 0 && l.Score.Value != 0) {
		return Event{Kind: EventIgnored}, protocolError("scored line without a search depth")
	}
	return Event{Kind: EventInfo, Line: l}, nil
}

// SearchAccumulator collects info lines of one search and keeps the newest
// line for every multipv rank.
type SearchAccumulator struct {
	lines map[int]analysis.Line
}

func NewSearchAccumulator() *SearchAccumulator {
	return &SearchAccumulator{lines: make(map[int]analysis.Line)}
}

func (a *SearchAccumulator) Observe(l analysis.Line) {
	prev, ok := a.lines[l.MultiPV]
	if ok && l.Depth < prev.Depth {
		return
	}
	a.lines[l.MultiPV] = l
}

// Result builds the terminal BestMoveResult with lines in rank order.
func (a *SearchAccumulator) Result(position string, ev Event) analysis.BestMoveResult {
	ranks := make([]int, 0, len(a.lines))
	for rank := range a.lines {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)

	lines := make([]analysis.Line, 0, len(ranks))
	for _, rank := range ranks {
		lines = append(lines, a.lines[rank])
	}

	return analysis.BestMoveResult{
		Position:    position,
		BestMoveUCI: ev.BestMove,
		Ponder:      ev.Ponder,
		Lines:       lines,
	}
}
