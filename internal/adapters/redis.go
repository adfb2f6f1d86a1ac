package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chess_review/internal/bootstrap"
)

type AdapterRedis struct {
	client *redis.Client
	cfg    *bootstrap.Config
	log    *zap.SugaredLogger
}

func NewAdapterRedis(cfg *bootstrap.Config, log *zap.SugaredLogger) *AdapterRedis {
	return &AdapterRedis{
		cfg: cfg,
		log: log,
	}
}

// Init accepts either a redis:// URL or a bare host:port.
func (a *AdapterRedis) Init(ctx context.Context) error {
	opts, err := redisOptions(a.cfg.RedisUrl)
	if err != nil {
		return err
	}
	a.client = redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.client.Ping(ctxPing).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	a.log.Infow("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return nil
}

func redisOptions(url string) (*redis.Options, error) {
	if strings.Contains(url, "://") {
		return redis.ParseURL(url)
	}
	return &redis.Options{Addr: url}, nil
}

func (a *AdapterRedis) GetClient() *redis.Client {
	return a.client
}

func (a *AdapterRedis) Close(ctx context.Context) error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
