package analysis

import (
	"strings"
	"time"
)

const StartPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// @name ScoreKind
type ScoreKind string

const (
	ScoreCentipawn ScoreKind = "cp"
	ScoreMate      ScoreKind = "mate"
)

// EvaluationScore is always from the perspective of the side to move.
// @name EvaluationScore
type EvaluationScore struct {
	Kind  ScoreKind `json:"type" yaml:"type"`
	Value int       `json:"value" yaml:"value"`
}

func Centipawns(v int) EvaluationScore { return EvaluationScore{Kind: ScoreCentipawn, Value: v} }

func MateIn(n int) EvaluationScore { return EvaluationScore{Kind: ScoreMate, Value: n} }

// Negate flips the score to the other side's perspective.
func (s EvaluationScore) Negate() EvaluationScore {
	return EvaluationScore{Kind: s.Kind, Value: -s.Value}
}

// @name Color
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// SideToMove reads the active color field of a FEN. Anything unreadable is
// treated as white to move.
func SideToMove(fen string) Color {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == string(Black) {
		return Black
	}
	return White
}

// Line is one principal variation reported by the engine.
// @name Line
type Line struct {
	Depth    int             `json:"depth" yaml:"depth"`
	MultiPV  int             `json:"multipv" yaml:"multipv"`
	Score    EvaluationScore `json:"score" yaml:"score"`
	MovesUCI []string        `json:"pv" yaml:"pv"`
}

// FirstMove returns the first move of the variation or "" when it is empty.
func (l Line) FirstMove() string {
	if len(l.MovesUCI) == 0 {
		return ""
	}
	return l.MovesUCI[0]
}

// @name BestMoveResult
type BestMoveResult struct {
	Position    string `json:"position" yaml:"position"`
	BestMoveUCI string `json:"bestmove" yaml:"bestmove"`
	Ponder      string `json:"ponder,omitempty" yaml:"ponder,omitempty"`
	Lines       []Line `json:"lines" yaml:"lines"`
}

// BestLine returns the line that starts with the chosen move, falling back to
// the top ranked line.
func (r BestMoveResult) BestLine() (Line, bool) {
	if len(r.Lines) == 0 {
		return Line{}, false
	}
	for _, l := range r.Lines {
		if r.BestMoveUCI != "" && l.FirstMove() == r.BestMoveUCI {
			return l, true
		}
	}
	return r.Lines[0], true
}

// SplitUCI splits "e2e4" / "e7e8q" into from / to squares.
func SplitUCI(move string) (from, to string, ok bool) {
	if len(move) < 4 {
		return "", "", false
	}
	return move[0:2], move[2:4], true
}

// @name RequestKind
type RequestKind string

const (
	KindBestMove   RequestKind = "bestmove"
	KindReviewStep RequestKind = "reviewStep"
)

// PendingRequest describes a search accepted by the coordinator.
type PendingRequest struct {
	ID          uint64
	Kind        RequestKind
	Position    string
	Depth       int
	SubmittedAt time.Time
}
