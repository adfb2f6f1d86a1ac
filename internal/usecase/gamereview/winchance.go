package gamereview

import (
	"fmt"
	"math"

	"chess_review/internal/domain/analysis"
)

const (
	pawnsToSaturation = 8.0
	halfRange         = 50.0
	mateSwing         = 49.0
)

// MoverWinChance maps a score to the side to move's win chance in [1, 99]
// for mates and [0, 100] otherwise.
func MoverWinChance(score analysis.EvaluationScore) float64 {
	return 50 + advantage(score)
}

// WinChance returns pov's win chance for a score reported with sideToMove to
// play.
func WinChance(score analysis.EvaluationScore, sideToMove, pov analysis.Color) float64 {
	p := advantage(score)
	if pov != sideToMove {
		p = -p
	}
	return 50 + p
}

func advantage(score analysis.EvaluationScore) float64 {
	if score.Kind == analysis.ScoreMate {
		// mate 0: the side to move is already mated
		if score.Value > 0 {
			return mateSwing
		}
		return -mateSwing
	}
	pawns := float64(score.Value) / 100
	return math.Max(-halfRange, math.Min(halfRange, pawns/pawnsToSaturation*halfRange))
}

// ScoreText is the evaluation bar label: "M3" for mates, "1.4" otherwise.
func ScoreText(score analysis.EvaluationScore) string {
	if score.Kind == analysis.ScoreMate {
		return fmt.Sprintf("M%d", score.Value)
	}
	return fmt.Sprintf("%.1f", math.Abs(float64(score.Value)/100))
}
