package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chess_review/internal/adapters"
	"chess_review/internal/bootstrap"
	analysisDelivery "chess_review/internal/delivery/analysis"
	reviewDelivery "chess_review/internal/delivery/review"
	ownMiddleware "chess_review/internal/middleware"
	"chess_review/internal/repository"
	"chess_review/internal/usecase/coordinator"
	"chess_review/internal/usecase/gamereview"
	"chess_review/internal/usecase/viewer"
)

type mainDeliveryHandler struct {
	analysis *analysisDelivery.AnalysisHandler
	review   *reviewDelivery.ReviewHandler
}

func main() {
	logger := NewLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		logger.Errorw("Failed to setup configuration", "error", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := repository.NewEngineFromConfig(cfg, logger)
	if err := engine.Start(ctx); err != nil {
		logger.Errorw("Failed to start engine", "path", cfg.EnginePath, "error", err)
		return
	}
	coord := coordinator.New(engine, cfg.EngineRequestTimeout, logger)

	var searcher gamereview.Searcher = coord
	if cfg.RedisUrl != "" {
		redisAdapter := adapters.NewAdapterRedis(cfg, logger)
		if err := redisAdapter.Init(ctx); err != nil {
			logger.Warnw("evaluation cache disabled", "error", err)
		} else {
			defer redisAdapter.Close(context.Background())
			store := repository.NewEvaluationRepository(redisAdapter.GetClient(), cfg.EvalCacheTTL, logger)
			searcher = coordinator.NewCachedSearcher(coord, store, logger)
		}
	}

	pipeline := gamereview.NewPipeline(searcher, cfg.ReviewDepth, cfg.ReviewRetryBudget, logger)
	v := viewer.New(ctx, coord, pipeline, cfg.BestMoveDepth, logger)

	r := chi.NewRouter()
	handlers := initializeDeliveryHandlers(logger, v)
	handlers.Router(r, cfg.IsLocalCors)

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Server is running on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("http shutdown", "error", err)
		}
		return v.ShutdownEngine()
	})

	if err := g.Wait(); err != nil {
		logger.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func (h *mainDeliveryHandler) Router(r *chi.Mux, isLocalCors bool) {
	if isLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/bestmove", h.analysis.HandleBestMove)
	r.Post("/engine/shutdown", h.analysis.HandleShutdown)

	r.Route("/review", func(r chi.Router) {
		r.Post("/", h.review.HandleStart)
		r.Get("/", h.review.HandleGet)
		r.Delete("/", h.review.HandleCancel)
		r.Get("/status", h.review.HandleStatus)
	})
	r.Get("/ws", h.review.HandleStream)
}

func initializeDeliveryHandlers(log *zap.SugaredLogger, v *viewer.Viewer) *mainDeliveryHandler {
	return &mainDeliveryHandler{
		analysis: analysisDelivery.NewAnalysisHandler(log, v),
		review:   reviewDelivery.NewReviewHandler(log, v),
	}
}
