package gamereview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
	ownErrors "chess_review/internal/errors"
)

type Searcher interface {
	Search(ctx context.Context, kind analysis.RequestKind, position string, depth int) (analysis.BestMoveResult, error)
}

type Request struct {
	InitialPosition string
	Moves           []review.MoveRecord
	Depth           int
}

// Run is one review execution. Progress is closed after the terminal event,
// or without one when the run is canceled.
//
// Completed grows by one per event, except for a failure: its terminal event
// repeats the count of moves finished before the failing step.
type Run struct {
	ID       string
	Total    int
	progress chan review.ReviewProgress
	cancel   context.CancelFunc
	done     chan struct{}
}

func (r *Run) Progress() <-chan review.ReviewProgress { return r.progress }

// Wait blocks until the run goroutine has exited.
func (r *Run) Wait() { <-r.done }

type Pipeline struct {
	searcher    Searcher
	log         *zap.SugaredLogger
	depth       int
	retryBudget int

	mu     sync.Mutex
	state  review.State
	run    *Run
	result *review.GameReview
	last   review.ReviewProgress
}

func NewPipeline(searcher Searcher, depth, retryBudget int, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		searcher:    searcher,
		log:         log,
		depth:       depth,
		retryBudget: retryBudget,
		state:       review.StateIdle,
	}
}

// Start launches a review of req.Moves. It fails with
// ErrReviewAlreadyInProgress while another run is going.
func (p *Pipeline) Start(ctx context.Context, req Request) (*Run, error) {
	for i, m := range req.Moves {
		if m.MoveIndex != i {
			return nil, fmt.Errorf("%w: move %d has index %d", ownErrors.ErrInvalidMoves, i, m.MoveIndex)
		}
	}
	if req.InitialPosition == "" {
		req.InitialPosition = analysis.StartPosition
	}
	if req.Depth <= 0 {
		req.Depth = p.depth
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == review.StateRunning {
		return nil, ownErrors.ErrReviewAlreadyInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:    uuid.New().String(),
		Total: len(req.Moves),
		// initial event, one per move, optional failure event
		progress: make(chan review.ReviewProgress, len(req.Moves)+2),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	p.state = review.StateRunning
	p.run = run
	p.result = nil

	if run.Total == 0 {
		p.result = &review.GameReview{ID: run.ID, InitialPosition: req.InitialPosition, Moves: []review.ReviewedMove{}}
		p.emitLocked(run, review.ReviewProgress{ReviewID: run.ID, Done: true})
		cancel()
		close(run.done)
		return run, nil
	}
	p.emitLocked(run, review.ReviewProgress{ReviewID: run.ID, Total: run.Total})

	p.log.Infow("review started", "review_id", run.ID, "moves", run.Total, "depth", req.Depth)
	go p.execute(runCtx, run, req)

	return run, nil
}

// Cancel aborts the running review, discarding whatever it built.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	run := p.run
	if run != nil && p.state == review.StateRunning {
		p.abortLocked(run)
	}
	p.mu.Unlock()

	if run != nil {
		run.Wait()
	}
}

func (p *Pipeline) State() review.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the finished review, available only in the Done state.
func (p *Pipeline) Result() (review.GameReview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != review.StateDone || p.result == nil {
		return review.GameReview{}, ownErrors.ErrReviewNotFound
	}
	return *p.result, nil
}

// LastProgress is the newest progress event of the current or last run.
func (p *Pipeline) LastProgress() (review.ReviewProgress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.last.ReviewID != ""
}

func (p *Pipeline) abortLocked(run *Run) {
	run.cancel()
	p.state = review.StateIdle
	p.run = nil
	p.result = nil
	p.last = review.ReviewProgress{}
	close(run.progress)
	p.log.Infow("review canceled", "review_id", run.ID)
}

// emitLocked never blocks: progress is sized for every event of a run.
func (p *Pipeline) emitLocked(run *Run, ev review.ReviewProgress) {
	p.last = ev
	run.progress <- ev
	if ev.Done {
		close(run.progress)
		if ev.Error == "" {
			p.state = review.StateDone
		} else {
			p.state = review.StateIdle
			p.run = nil
		}
	}
}

func (p *Pipeline) execute(ctx context.Context, run *Run, req Request) {
	defer close(run.done)
	defer run.cancel()

	gameReview := review.GameReview{
		ID:              run.ID,
		InitialPosition: req.InitialPosition,
		Moves:           make([]review.ReviewedMove, 0, len(req.Moves)),
	}
	before, err := p.searchStep(ctx, req.InitialPosition, req.Depth)
	for i := 0; err == nil && i < len(req.Moves); i++ {
		var after analysis.BestMoveResult
		after, err = p.searchStep(ctx, req.Moves[i].ResultingPosition, req.Depth)
		if err != nil {
			break
		}

		var reviewed review.ReviewedMove
		reviewed, err = reviewMove(req.Moves[i], before, after)
		if err != nil {
			break
		}
		gameReview.Moves = append(gameReview.Moves, reviewed)

		if !p.progress(run, &gameReview) {
			return
		}
		before = after
	}

	if err != nil {
		p.fail(ctx, run, len(gameReview.Moves), err)
	}
}

// searchStep retries engine timeouts within the retry budget.
func (p *Pipeline) searchStep(ctx context.Context, position string, depth int) (analysis.BestMoveResult, error) {
	var err error
	for attempt := 0; attempt <= p.retryBudget; attempt++ {
		var res analysis.BestMoveResult
		res, err = p.searcher.Search(ctx, analysis.KindReviewStep, position, depth)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ownErrors.ErrEngineTimeout) || ctx.Err() != nil {
			return analysis.BestMoveResult{}, err
		}
		p.log.Warnw("review step timed out", "position", position, "attempt", attempt+1, "error", err)
	}
	return analysis.BestMoveResult{}, err
}

func reviewMove(move review.MoveRecord, before, after analysis.BestMoveResult) (review.ReviewedMove, error) {
	bestLine, ok := before.BestLine()
	if !ok {
		return review.ReviewedMove{}, fmt.Errorf("%w: no line for position before move %d", ownErrors.ErrEngineProtocol, move.MoveIndex)
	}
	realized, ok := after.BestLine()
	if !ok {
		if after.BestMoveUCI != "" {
			return review.ReviewedMove{}, fmt.Errorf("%w: no line for position after move %d", ownErrors.ErrEngineProtocol, move.MoveIndex)
		}
		realized = terminalLine(move)
	}

	mover := move.Color
	if mover == "" {
		mover = analysis.SideToMove(before.Position)
	}

	return review.ReviewedMove{
		MoveRecord:     move,
		BestMoveUCI:    before.BestMoveUCI,
		BestLine:       bestLine,
		PlayedScore:    moverScore(realized.Score),
		WinChance:      WinChance(realized.Score, mover.Opponent(), mover),
		Classification: Classify(moverScore(realized.Score), bestLine.Score, mover),
	}, nil
}

// terminalLine stands in for engines that answer "bestmove (none)" without
// any info line on a finished game.
func terminalLine(move review.MoveRecord) analysis.Line {
	if strings.Contains(move.SAN, "#") {
		return analysis.Line{Score: analysis.MateIn(0)}
	}
	return analysis.Line{Score: analysis.Centipawns(0)}
}

// moverScore turns a score reported for the opponent (to move after the
// played move) into the mover's perspective.
func moverScore(realized analysis.EvaluationScore) analysis.EvaluationScore {
	if realized.Kind == analysis.ScoreMate && realized.Value == 0 {
		// opponent is mated on the board
		return analysis.MateIn(1)
	}
	return realized.Negate()
}

// progress records a reviewed move; false means the run was canceled.
func (p *Pipeline) progress(run *Run, gameReview *review.GameReview) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != run {
		return false
	}

	completed := len(gameReview.Moves)
	if completed == run.Total {
		p.result = gameReview
	}
	p.emitLocked(run, review.ReviewProgress{
		ReviewID:  run.ID,
		Completed: completed,
		Total:     run.Total,
		Done:      completed == run.Total,
	})
	if completed == run.Total {
		p.log.Infow("review finished", "review_id", run.ID, "moves", completed)
	}
	return true
}

// fail ends the run. Cancellation and superseded steps abort silently; any
// other error, a dead engine included, becomes a terminal failure event.
func (p *Pipeline) fail(ctx context.Context, run *Run, completed int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != run {
		return
	}

	if ctx.Err() != nil || errors.Is(err, ownErrors.ErrRequestSuperseded) {
		p.abortLocked(run)
		return
	}

	p.log.Errorw("review failed", "review_id", run.ID, "completed", completed, "error", err)
	p.emitLocked(run, review.ReviewProgress{
		ReviewID:  run.ID,
		Completed: completed,
		Total:     run.Total,
		Done:      true,
		Error:     err.Error(),
	})
}
