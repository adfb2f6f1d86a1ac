package repository_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
	ownErrors "chess_review/internal/errors"
	"chess_review/internal/repository"
	"chess_review/internal/repository/enginetest"
)

func startFake(t *testing.T, opts repository.EngineOptions) (*repository.EngineClient, *enginetest.Engine) {
	t.Helper()
	fake := enginetest.New(enginetest.FixedScore(analysis.Centipawns(30), "e2e4"))
	client := repository.NewEngineClient(fake.Spawner(), opts, zap.NewNop().Sugar())
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = client.Quit() })
	return client, fake
}

func TestEngineClientHandshake(t *testing.T) {
	_, fake := startFake(t, repository.EngineOptions{Threads: 2, HashMB: 128, MultiPV: 3})

	want := []string{
		"uci",
		"setoption name Threads value 2",
		"setoption name Hash value 128",
		"setoption name MultiPV value 3",
		"isready",
	}
	got := fake.Commands()
	if len(got) < len(want) {
		t.Fatalf("commands = %q, want prefix %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEngineClientStartTwice(t *testing.T) {
	client, _ := startFake(t, repository.EngineOptions{})
	if err := client.Start(context.Background()); !errors.Is(err, ownErrors.ErrEngineAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrEngineAlreadyStarted", err)
	}
}

func TestEngineClientLines(t *testing.T) {
	client, _ := startFake(t, repository.EngineOptions{})

	var (
		mu    sync.Mutex
		lines []string
		best  = make(chan struct{})
	)
	client.OnLine(func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
		if strings.HasPrefix(line, "bestmove") {
			close(best)
		}
	})

	if err := client.Send("position startpos"); err != nil {
		t.Fatalf("Send position: %v", err)
	}
	if err := client.Send("go depth 10"); err != nil {
		t.Fatalf("Send go: %v", err)
	}

	select {
	case <-best:
	case <-time.After(2 * time.Second):
		t.Fatal("no bestmove line")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "info depth 10") || lines[1] != "bestmove e2e4" {
		t.Errorf("lines = %q", lines)
	}
}

func TestEngineClientQuit(t *testing.T) {
	client, fake := startFake(t, repository.EngineOptions{})
	done := client.Done()

	if err := client.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("Done not closed after Quit")
	}
	if client.Alive() {
		t.Error("Alive after Quit")
	}
	if err := client.Send("isready"); !errors.Is(err, ownErrors.ErrEngineUnavailable) {
		t.Errorf("Send after Quit = %v, want ErrEngineUnavailable", err)
	}
	if err := client.Quit(); err != nil {
		t.Errorf("second Quit = %v, want nil", err)
	}

	cmds := fake.Commands()
	if cmds[len(cmds)-1] != "quit" {
		t.Errorf("last command = %q, want quit", cmds[len(cmds)-1])
	}
}

func TestEngineClientHandshakeTimeout(t *testing.T) {
	// a process that reads commands but never answers
	spawn := func() (*repository.Process, error) {
		stdinR, stdinW := io.Pipe()
		stdoutR, stdoutW := io.Pipe()
		go func() { _, _ = io.Copy(io.Discard, stdinR) }()
		return &repository.Process{
			Stdin:  stdinW,
			Stdout: stdoutR,
			Wait:   func() error { return nil },
			Kill: func() error {
				_ = stdinR.Close()
				return stdoutW.Close()
			},
		}, nil
	}

	client := repository.NewEngineClient(spawn, repository.EngineOptions{
		StartTimeout: 50 * time.Millisecond,
		QuitTimeout:  50 * time.Millisecond,
	}, zap.NewNop().Sugar())

	err := client.Start(context.Background())
	if !errors.Is(err, ownErrors.ErrEngineTimeout) {
		t.Fatalf("Start = %v, want ErrEngineTimeout", err)
	}
	if client.Alive() {
		t.Error("Alive after failed handshake")
	}
}

func TestEngineClientSpawnError(t *testing.T) {
	spawnErr := errors.New("no such binary")
	client := repository.NewEngineClient(func() (*repository.Process, error) {
		return nil, spawnErr
	}, repository.EngineOptions{}, zap.NewNop().Sugar())

	if err := client.Start(context.Background()); !errors.Is(err, spawnErr) {
		t.Errorf("Start = %v, want %v", err, spawnErr)
	}
	// a failed start leaves the client startable
	if err := client.Start(context.Background()); errors.Is(err, ownErrors.ErrEngineAlreadyStarted) {
		t.Errorf("Start after failure = %v", err)
	}
}
