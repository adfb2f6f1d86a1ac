package viewer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
	ownErrors "chess_review/internal/errors"
	"chess_review/internal/usecase/gamereview"
	"chess_review/internal/usecase/movesource"
)

type BestMoveFinder interface {
	FindBestMove(ctx context.Context, position string, depth int) (analysis.BestMoveResult, error)
	Close() error
}

type ReviewInput struct {
	PGN             string   `json:"pgn,omitempty"`
	InitialPosition string   `json:"initial_position,omitempty"`
	Moves           []string `json:"moves,omitempty"`
	Depth           int      `json:"depth,omitempty"`
}

// Viewer is what a game viewer talks to: single best-move queries, one game
// review at a time, and engine teardown.
type Viewer struct {
	finder        BestMoveFinder
	pipeline      *gamereview.Pipeline
	log           *zap.SugaredLogger
	bestMoveDepth int

	// review runs must outlive the request that started them
	baseCtx context.Context

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(baseCtx context.Context, finder BestMoveFinder, pipeline *gamereview.Pipeline, bestMoveDepth int, log *zap.SugaredLogger) *Viewer {
	return &Viewer{
		finder:        finder,
		pipeline:      pipeline,
		log:           log,
		bestMoveDepth: bestMoveDepth,
		baseCtx:       baseCtx,
	}
}

func (v *Viewer) RequestBestMove(ctx context.Context, position string, depth int) (analysis.BestMoveResult, error) {
	if depth <= 0 {
		depth = v.bestMoveDepth
	}
	if position == "" {
		position = analysis.StartPosition
	}
	return v.finder.FindBestMove(ctx, position, depth)
}

// RequestGameReview replays the input into move records and starts a review.
func (v *Viewer) RequestGameReview(in ReviewInput) (*gamereview.Run, error) {
	var (
		initial string
		moves   []review.MoveRecord
		err     error
	)
	switch {
	case in.PGN != "":
		initial, moves, err = movesource.FromPGN(in.PGN)
	case len(in.Moves) > 0:
		initial, moves, err = movesource.FromSAN(in.InitialPosition, in.Moves)
	default:
		err = fmt.Errorf("%w: neither pgn nor moves given", ownErrors.ErrInvalidMoves)
	}
	if err != nil {
		return nil, err
	}

	return v.pipeline.Start(v.baseCtx, gamereview.Request{
		InitialPosition: initial,
		Moves:           moves,
		Depth:           in.Depth,
	})
}

func (v *Viewer) CancelReview() {
	v.pipeline.Cancel()
}

func (v *Viewer) Review() (review.GameReview, error) {
	return v.pipeline.Result()
}

func (v *Viewer) ReviewProgress() (review.ReviewProgress, bool) {
	return v.pipeline.LastProgress()
}

func (v *Viewer) ReviewState() review.State {
	return v.pipeline.State()
}

// ShutdownEngine cancels any review and quits the engine. Idempotent.
func (v *Viewer) ShutdownEngine() error {
	v.shutdownOnce.Do(func() {
		v.log.Info("shutting down engine")
		v.pipeline.Cancel()
		v.shutdownErr = v.finder.Close()
	})
	return v.shutdownErr
}

const (
	EventBestMove       = "bestmove"
	EventReviewStatus   = "review-status"
	EventReview         = "review"
	EventReviewCanceled = "review-canceled"
	EventError          = "error"
)

// Event is a typed message pushed to a connected viewer.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ReviewPayload struct {
	Review review.GameReview       `json:"review"`
	Chart  []gamereview.ChartPoint `json:"chart"`
}

// ReviewEvents relays a run to emit as review-status events, then the finished
// review or a cancellation notice. It returns once the run has ended.
func (v *Viewer) ReviewEvents(run *gamereview.Run, emit func(Event)) {
	var last review.ReviewProgress
	for p := range run.Progress() {
		last = p
		emit(Event{Type: EventReviewStatus, Data: p})
	}

	switch {
	case last.Done && last.Error != "":
		emit(Event{Type: EventError, Data: last.Error})
	case last.Done:
		res, err := v.pipeline.Result()
		if err != nil || res.ID != run.ID {
			// a newer run already replaced this one
			emit(Event{Type: EventReviewCanceled, Data: run.ID})
			return
		}
		emit(Event{Type: EventReview, Data: ReviewPayload{Review: res, Chart: gamereview.ChartPoints(res)}})
	default:
		emit(Event{Type: EventReviewCanceled, Data: run.ID})
	}
}
