package gamereview

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
)

// ChartPoint is one sample of the win chance graph.
type ChartPoint struct {
	Index          int                       `json:"index" yaml:"index"`
	Move           string                    `json:"move" yaml:"move"`
	Text           string                    `json:"text" yaml:"text"`
	WinChance      float64                   `json:"win_chance" yaml:"win_chance"`
	WhiteWinChance float64                   `json:"white_win_chance" yaml:"white_win_chance"`
	Classification review.MoveClassification `json:"classification" yaml:"classification"`
	ShowDot        bool                      `json:"show_dot" yaml:"show_dot"`
}

// ChartPoints flattens a review into graph samples labelled "12. Nf3" /
// "12... Nc6" with the played score in signed pawns.
func ChartPoints(r review.GameReview) []ChartPoint {
	points := make([]ChartPoint, 0, len(r.Moves))
	fullMove := 1
	if fields := strings.Fields(r.InitialPosition); len(fields) > 5 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			fullMove = n
		}
	}

	for i, m := range r.Moves {
		label := fmt.Sprintf("%d. %s", fullMove, m.SAN)
		if m.Color == analysis.Black {
			label = fmt.Sprintf("%d... %s", fullMove, m.SAN)
			fullMove++
		}

		white := m.WinChance
		if m.Color == analysis.Black {
			white = 100 - m.WinChance
		}

		points = append(points, ChartPoint{
			Index:          i + 1,
			Move:           label,
			Text:           pawnText(m.PlayedScore),
			WinChance:      m.WinChance,
			WhiteWinChance: white,
			Classification: m.Classification,
			ShowDot:        showDot(m.Classification),
		})
	}
	return points
}

func showDot(c review.MoveClassification) bool {
	switch c {
	case review.Inaccuracy, review.Mistake, review.Miss, review.Blunder:
		return true
	}
	return false
}

func pawnText(score analysis.EvaluationScore) string {
	if score.Kind == analysis.ScoreMate {
		return "M" + strconv.Itoa(score.Value)
	}
	pawns := math.Round(float64(score.Value)/10) / 10
	if pawns == 0 {
		// drop the sign of -0 so it prints as "0.0"
		pawns = 0
	}
	text := strconv.FormatFloat(pawns, 'f', 1, 64)
	if pawns > 0 {
		text = "+" + text
	}
	return text
}
