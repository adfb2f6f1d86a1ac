package gamereview

import (
	"testing"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
)

func TestChartPoints(t *testing.T) {
	r := review.GameReview{
		InitialPosition: "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
		Moves: []review.ReviewedMove{
			{
				MoveRecord:     review.MoveRecord{SAN: "Bb5", Color: analysis.White},
				PlayedScore:    analysis.Centipawns(34),
				WinChance:      52.125,
				Classification: review.Best,
			},
			{
				MoveRecord:     review.MoveRecord{SAN: "f6", Color: analysis.Black},
				PlayedScore:    analysis.Centipawns(-140),
				WinChance:      41.25,
				Classification: review.Inaccuracy,
			},
			{
				MoveRecord:     review.MoveRecord{SAN: "Nxe5", Color: analysis.White},
				PlayedScore:    analysis.Centipawns(-4),
				WinChance:      49.75,
				Classification: review.Mistake,
			},
			{
				MoveRecord:     review.MoveRecord{SAN: "Qe7", Color: analysis.Black},
				PlayedScore:    analysis.MateIn(-2),
				WinChance:      1,
				Classification: review.Blunder,
			},
		},
	}

	want := []ChartPoint{
		{Index: 1, Move: "3. Bb5", Text: "+0.3", WinChance: 52.125, WhiteWinChance: 52.125, Classification: review.Best},
		{Index: 2, Move: "3... f6", Text: "-1.4", WinChance: 41.25, WhiteWinChance: 58.75, Classification: review.Inaccuracy, ShowDot: true},
		{Index: 3, Move: "4. Nxe5", Text: "0.0", WinChance: 49.75, WhiteWinChance: 49.75, Classification: review.Mistake, ShowDot: true},
		{Index: 4, Move: "4... Qe7", Text: "M-2", WinChance: 1, WhiteWinChance: 99, Classification: review.Blunder, ShowDot: true},
	}

	got := ChartPoints(r)
	if len(got) != len(want) {
		t.Fatalf("ChartPoints returned %d points, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestChartPointsBlackToMoveFirst(t *testing.T) {
	r := review.GameReview{
		InitialPosition: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		Moves: []review.ReviewedMove{
			{MoveRecord: review.MoveRecord{SAN: "c5", Color: analysis.Black}, Classification: review.Good},
			{MoveRecord: review.MoveRecord{SAN: "Nf3", Color: analysis.White}, Classification: review.Best},
		},
	}
	got := ChartPoints(r)
	if got[0].Move != "1... c5" || got[1].Move != "2. Nf3" {
		t.Errorf("labels = %q, %q", got[0].Move, got[1].Move)
	}
}
