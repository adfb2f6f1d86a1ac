package review

import (
	"chess_review/internal/domain/analysis"
)

// @name MoveRecord
type MoveRecord struct {
	SAN               string         `json:"san" yaml:"san"`
	UCI               string         `json:"uci,omitempty" yaml:"uci,omitempty"`
	Color             analysis.Color `json:"color" yaml:"color"`
	ResultingPosition string         `json:"after" yaml:"after"`
	MoveIndex         int            `json:"move_index" yaml:"move_index"`
}

// @name MoveClassification
type MoveClassification string

const (
	Best       MoveClassification = "best"
	Good       MoveClassification = "good"
	Inaccuracy MoveClassification = "inaccuracy"
	Mistake    MoveClassification = "mistake"
	Miss       MoveClassification = "miss"
	Blunder    MoveClassification = "blunder"
)

func (c MoveClassification) Valid() bool {
	switch c {
	case Best, Good, Inaccuracy, Mistake, Miss, Blunder:
		return true
	}
	return false
}

// @name ReviewedMove
type ReviewedMove struct {
	MoveRecord     `yaml:",inline"`
	BestMoveUCI    string                   `json:"bestmove" yaml:"bestmove"`
	BestLine       analysis.Line            `json:"best_line" yaml:"best_line"`
	PlayedScore    analysis.EvaluationScore `json:"played_score" yaml:"played_score"`
	WinChance      float64                  `json:"win_chance" yaml:"win_chance"`
	Classification MoveClassification       `json:"classification" yaml:"classification"`
}

// @name GameReview
type GameReview struct {
	ID              string         `json:"id" yaml:"id"`
	InitialPosition string         `json:"initial_position" yaml:"initial_position"`
	Moves           []ReviewedMove `json:"moves" yaml:"moves"`
}

// @name ReviewProgress
type ReviewProgress struct {
	ReviewID  string `json:"review_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}

// @name State
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
)
