package gamereview

import (
	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
)

// Loss thresholds in win chance points.
const (
	bestLoss       = 1.0
	goodLoss       = 5.0
	inaccuracyLoss = 10.0
	mistakeLoss    = 20.0
	missLoss       = 30.0

	winningAbove = 55.0
	losingBelow  = 45.0
)

// Classify labels a played move by how much win chance it gave up against
// the engine's best line. Both scores are from sideToMove's perspective, the
// side that made the move.
func Classify(played, best analysis.EvaluationScore, sideToMove analysis.Color) review.MoveClassification {
	bestChance := WinChance(best, sideToMove, sideToMove)
	playedChance := WinChance(played, sideToMove, sideToMove)
	return classifyLoss(bestChance, playedChance)
}

func classifyLoss(bestChance, playedChance float64) review.MoveClassification {
	loss := bestChance - playedChance
	if loss < 0 {
		loss = 0
	}

	switch {
	case loss <= bestLoss:
		return review.Best
	case loss <= goodLoss:
		return review.Good
	case loss <= inaccuracyLoss:
		return review.Inaccuracy
	case loss <= mistakeLoss:
		return review.Mistake
	case loss <= missLoss:
		if bestChance > winningAbove && playedChance < losingBelow {
			return review.Miss
		}
		return review.Mistake
	default:
		return review.Blunder
	}
}
