package gamereview

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
	"chess_review/internal/domain/review"
	ownErrors "chess_review/internal/errors"
	"chess_review/internal/repository"
	"chess_review/internal/repository/enginetest"
	"chess_review/internal/usecase/coordinator"
)

func TestPipelineEngineExitFailsReview(t *testing.T) {
	moves := gameMoves(t, "e4", "e5")
	stallAt := moves[0].ResultingPosition

	fake := enginetest.New(func(position string, depth int) enginetest.Reply {
		return enginetest.Reply{
			Lines:    []analysis.Line{{Depth: depth, MultiPV: 1, Score: analysis.Centipawns(0), MovesUCI: []string{"a2a3"}}},
			BestMove: "a2a3",
			Stall:    position == stallAt,
		}
	})
	log := zap.NewNop().Sugar()
	engine := repository.NewEngineClient(fake.Spawner(), repository.EngineOptions{QuitTimeout: time.Second}, log)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("engine Start: %v", err)
	}
	coord := coordinator.New(engine, 0, log)
	t.Cleanup(func() { _ = coord.Close() })

	p := NewPipeline(coord, 6, 0, log)
	run, err := p.Start(context.Background(), Request{Moves: moves})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(fake.Searches()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("engine saw %d searches, want 2", len(fake.Searches()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	// the process dies underneath the running review
	_ = engine.Quit()

	events := collect(t, run)
	run.Wait()

	if len(events) != 2 {
		t.Fatalf("events = %+v, want initial and failure", events)
	}
	last := events[1]
	if !last.Done || last.Completed != 0 || last.Total != 2 {
		t.Errorf("terminal event = %+v, want done after 0 of 2", last)
	}
	if !strings.Contains(last.Error, ownErrors.ErrEngineUnavailable.Error()) {
		t.Errorf("terminal error = %q, want %q", last.Error, ownErrors.ErrEngineUnavailable)
	}
	if p.State() != review.StateIdle {
		t.Errorf("State = %s, want idle", p.State())
	}
	if _, err := p.Result(); err == nil {
		t.Error("Result available after a failed review")
	}
}
