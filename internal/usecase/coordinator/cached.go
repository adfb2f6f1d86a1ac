package coordinator

import (
	"context"

	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
)

type EvaluationStore interface {
	Load(ctx context.Context, position string, depth int) (analysis.BestMoveResult, bool, error)
	Store(ctx context.Context, depth int, res analysis.BestMoveResult) error
}

type searcher interface {
	Search(ctx context.Context, kind analysis.RequestKind, position string, depth int) (analysis.BestMoveResult, error)
}

// CachedSearcher answers review steps from the evaluation store when it can.
// Best-move queries always reach the coordinator so a newer query still
// supersedes the one in flight.
type CachedSearcher struct {
	next  searcher
	store EvaluationStore
	log   *zap.SugaredLogger
}

func NewCachedSearcher(next searcher, store EvaluationStore, log *zap.SugaredLogger) *CachedSearcher {
	return &CachedSearcher{next: next, store: store, log: log}
}

func (c *CachedSearcher) Search(ctx context.Context, kind analysis.RequestKind, position string, depth int) (analysis.BestMoveResult, error) {
	if kind != analysis.KindReviewStep {
		return c.next.Search(ctx, kind, position, depth)
	}

	cached, ok, err := c.store.Load(ctx, position, depth)
	if err != nil {
		c.log.Warnw("evaluation cache read failed", "position", position, "error", err)
	}
	if ok {
		c.log.Debugw("evaluation cache hit", "position", position, "depth", depth)
		return cached, nil
	}

	res, err := c.next.Search(ctx, kind, position, depth)
	if err != nil {
		return res, err
	}
	if err := c.store.Store(ctx, depth, res); err != nil {
		c.log.Warnw("evaluation cache write failed", "position", position, "error", err)
	}
	return res, nil
}
