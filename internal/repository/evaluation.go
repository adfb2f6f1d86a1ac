package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
)

// EvaluationRepository caches finished searches in redis, keyed by position
// and depth.
type EvaluationRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewEvaluationRepository(client *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *EvaluationRepository {
	return &EvaluationRepository{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func EvaluationKey(position string, depth int) string {
	return fmt.Sprintf("eval:d%d:%s", depth, position)
}

func (e *EvaluationRepository) Load(ctx context.Context, position string, depth int) (analysis.BestMoveResult, bool, error) {
	val, err := e.client.Get(ctx, EvaluationKey(position, depth)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return analysis.BestMoveResult{}, false, nil
		}
		return analysis.BestMoveResult{}, false, err
	}

	var res analysis.BestMoveResult
	if err := json.Unmarshal(val, &res); err != nil {
		e.log.Warnw("dropping corrupt cached evaluation", "position", position, "depth", depth, "error", err)
		return analysis.BestMoveResult{}, false, nil
	}
	return res, true, nil
}

func (e *EvaluationRepository) Store(ctx context.Context, depth int, res analysis.BestMoveResult) error {
	bytes, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return e.client.Set(ctx, EvaluationKey(res.Position, depth), bytes, e.ttl).Err()
}
