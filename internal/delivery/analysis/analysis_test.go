package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	domain "chess_review/internal/domain/analysis"
	"chess_review/internal/httpresponse"
	"chess_review/internal/repository"
	"chess_review/internal/repository/enginetest"
	"chess_review/internal/usecase/coordinator"
	"chess_review/internal/usecase/gamereview"
	"chess_review/internal/usecase/viewer"
)

func newTestHandler(t *testing.T) (*AnalysisHandler, *enginetest.Engine) {
	t.Helper()
	log := zap.NewNop().Sugar()

	fake := enginetest.New(enginetest.FixedScore(domain.Centipawns(25), "g1f3"))
	engine := repository.NewEngineClient(fake.Spawner(), repository.EngineOptions{}, log)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("engine Start: %v", err)
	}
	coord := coordinator.New(engine, time.Second, log)
	v := viewer.New(context.Background(), coord, gamereview.NewPipeline(coord, 8, 0, log), 11, log)
	t.Cleanup(func() { _ = v.ShutdownEngine() })

	return NewAnalysisHandler(log, v), fake
}

func TestHandleBestMove(t *testing.T) {
	h, fake := newTestHandler(t)

	body := `{"position": "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"}`
	rec := httptest.NewRecorder()
	h.HandleBestMove(rec, httptest.NewRequest(http.MethodPost, "/bestmove", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body %s", rec.Code, rec.Body.String())
	}
	var resp httpresponse.Response[domain.BestMoveResult]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Body.BestMoveUCI != "g1f3" || len(resp.Body.Lines) != 1 {
		t.Errorf("result = %+v", resp.Body)
	}

	// depth falls back to the configured default
	cmds := fake.Commands()
	if cmds[len(cmds)-1] != "go depth 11" {
		t.Errorf("last command = %q, want go depth 11", cmds[len(cmds)-1])
	}
}

func TestHandleBestMoveBadJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleBestMove(rec, httptest.NewRequest(http.MethodPost, "/bestmove", strings.NewReader(`{"position":`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", rec.Code)
	}
}

func TestHandleShutdown(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleShutdown(rec, httptest.NewRequest(http.MethodPost, "/engine/shutdown", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("shutdown code = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleBestMove(rec, httptest.NewRequest(http.MethodPost, "/bestmove", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("bestmove after shutdown = %d, want 503", rec.Code)
	}
}
