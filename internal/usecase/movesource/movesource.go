// Package movesource replays finished games into the move records a review
// consumes. Legality is checked here, by the chess library, never by the
// review core.
package movesource

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
	ownErrors "chess_review/internal/errors"
)

// FromSAN replays sans from initial (the standard start when empty) and
// returns the starting FEN with one record per move.
func FromSAN(initial string, sans []string) (string, []review.MoveRecord, error) {
	var opts []func(*chess.Game)
	if initial != "" && initial != analysis.StartPosition {
		fen, err := chess.FEN(initial)
		if err != nil {
			return "", nil, fmt.Errorf("%w: initial position: %v", ownErrors.ErrInvalidMoves, err)
		}
		opts = append(opts, fen)
	}

	game := chess.NewGame(opts...)
	for i, san := range sans {
		if err := game.MoveStr(strings.TrimSpace(san)); err != nil {
			return "", nil, fmt.Errorf("%w: move %d %q: %v", ownErrors.ErrInvalidMoves, i+1, san, err)
		}
	}
	return records(game)
}

// FromPGN reads the first game of a PGN text, honouring a FEN tag.
func FromPGN(pgn string) (string, []review.MoveRecord, error) {
	opt, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ownErrors.ErrInvalidMoves, err)
	}
	return records(chess.NewGame(opt))
}

func records(game *chess.Game) (string, []review.MoveRecord, error) {
	positions := game.Positions()
	moves := game.Moves()
	if len(positions) != len(moves)+1 {
		return "", nil, fmt.Errorf("%w: %d positions for %d moves", ownErrors.ErrInvalidMoves, len(positions), len(moves))
	}

	out := make([]review.MoveRecord, 0, len(moves))
	for i, m := range moves {
		before := positions[i]
		color := analysis.White
		if before.Turn() == chess.Black {
			color = analysis.Black
		}
		out = append(out, review.MoveRecord{
			SAN:               chess.AlgebraicNotation{}.Encode(before, m),
			UCI:               chess.UCINotation{}.Encode(before, m),
			Color:             color,
			ResultingPosition: positions[i+1].String(),
			MoveIndex:         i,
		})
	}
	return positions[0].String(), out, nil
}
