package repository

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/bootstrap"
	ownErrors "chess_review/internal/errors"
)

// Process is a running engine with its pipes.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Wait   func() error
	Kill   func() error
}

// Spawner starts exactly one engine process.
type Spawner func() (*Process, error)

func ExecSpawner(path string, args ...string) Spawner {
	return func() (*Process, error) {
		cmd := exec.Command(path, args...)

		stdinPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}

		if err := cmd.Start(); err != nil {
			return nil, err
		}

		return &Process{
			Stdin:  stdinPipe,
			Stdout: stdoutPipe,
			Wait:   cmd.Wait,
			Kill: func() error {
				return cmd.Process.Kill()
			},
		}, nil
	}
}

type EngineOptions struct {
	Threads      int
	HashMB       int
	MultiPV      int
	StartTimeout time.Duration
	QuitTimeout  time.Duration
}

type engineInstance struct {
	proc     *Process
	done     chan struct{}
	quitOnce sync.Once

	// writeMu guards stdin; it is never held together with EngineClient.mu
	writeMu sync.Mutex
	stdin   *bufio.Writer
}

func (i *engineInstance) writeLine(line string) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	if _, err := i.stdin.WriteString(line + "\n"); err != nil {
		return err
	}
	return i.stdin.Flush()
}

// EngineClient owns one UCI engine process: it writes commands to its stdin
// and hands every stdout line to a single registered consumer.
type EngineClient struct {
	spawn Spawner
	opts  EngineOptions
	log   *zap.SugaredLogger

	mu        sync.Mutex
	inst      *engineInstance
	handler   func(string)
	handshake *handshake
	starting  bool
}

// handshake receives output lines while Start waits for uciok / readyok.
type handshake struct {
	lines chan string
	stop  chan struct{}
}

func NewEngineClient(spawn Spawner, opts EngineOptions, log *zap.SugaredLogger) *EngineClient {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 10 * time.Second
	}
	if opts.QuitTimeout <= 0 {
		opts.QuitTimeout = 2 * time.Second
	}
	return &EngineClient{
		spawn: spawn,
		opts:  opts,
		log:   log,
	}
}

// Start spawns the engine and returns after it answered readyok.
func (c *EngineClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.inst != nil || c.starting {
		c.mu.Unlock()
		return ownErrors.ErrEngineAlreadyStarted
	}
	c.starting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	proc, err := c.spawn()
	if err != nil {
		return fmt.Errorf("spawn engine: %w", err)
	}

	inst := &engineInstance{
		proc:  proc,
		stdin: bufio.NewWriter(proc.Stdin),
		done:  make(chan struct{}),
	}
	hs := &handshake{lines: make(chan string), stop: make(chan struct{})}

	c.mu.Lock()
	c.inst = inst
	c.handshake = hs
	c.mu.Unlock()

	go c.listenForLines(inst, bufio.NewScanner(proc.Stdout))

	ctx, cancel := context.WithTimeout(ctx, c.opts.StartTimeout)
	defer cancel()

	err = c.runHandshake(ctx, inst, hs.lines)

	c.mu.Lock()
	c.handshake = nil
	c.mu.Unlock()
	close(hs.stop)

	if err != nil {
		c.log.Errorw("engine handshake failed", "error", err)
		_ = c.Quit()
		return err
	}

	c.log.Infow("engine ready", "threads", c.opts.Threads, "hash_mb", c.opts.HashMB, "multipv", c.opts.MultiPV)
	return nil
}

func (c *EngineClient) runHandshake(ctx context.Context, inst *engineInstance, handshake <-chan string) error {
	if err := c.Send("uci"); err != nil {
		return err
	}
	if err := waitFor(ctx, inst, handshake, "uciok"); err != nil {
		return err
	}

	options := []struct {
		name  string
		value int
	}{
		{"Threads", c.opts.Threads},
		{"Hash", c.opts.HashMB},
		{"MultiPV", c.opts.MultiPV},
	}
	for _, o := range options {
		if o.value <= 0 {
			continue
		}
		if err := c.Send(fmt.Sprintf("setoption name %s value %d", o.name, o.value)); err != nil {
			return err
		}
	}

	if err := c.Send("isready"); err != nil {
		return err
	}
	return waitFor(ctx, inst, handshake, "readyok")
}

func waitFor(ctx context.Context, inst *engineInstance, lines <-chan string, expected string) error {
	for {
		select {
		case line := <-lines:
			if strings.TrimSpace(line) == expected {
				return nil
			}
		case <-inst.done:
			return ownErrors.ErrEngineUnavailable
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %s", ownErrors.ErrEngineTimeout, expected)
		}
	}
}

func (c *EngineClient) listenForLines(inst *engineInstance, scanner *bufio.Scanner) {
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		c.log.Debugw("engine output", "line", line)
		c.dispatch(inst, line)
	}
	if err := scanner.Err(); err != nil {
		c.log.Warnw("engine output closed with error", "error", err)
	}

	if inst.proc.Wait != nil {
		if err := inst.proc.Wait(); err != nil {
			c.log.Infow("engine process exited", "error", err)
		}
	}

	c.mu.Lock()
	if c.inst == inst {
		c.inst = nil
	}
	c.mu.Unlock()
	close(inst.done)
}

func (c *EngineClient) dispatch(inst *engineInstance, line string) {
	c.mu.Lock()
	hs := c.handshake
	handler := c.handler
	c.mu.Unlock()

	if hs != nil {
		select {
		case hs.lines <- line:
			return
		case <-hs.stop:
		}
	}
	if handler != nil {
		handler(line)
	}
}

// OnLine registers the sole consumer of engine output, replacing any
// previous one.
func (c *EngineClient) OnLine(handler func(line string)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Send writes one command line. It fails with ErrEngineUnavailable when no
// instance is alive.
func (c *EngineClient) Send(command string) error {
	c.mu.Lock()
	inst := c.inst
	alive := c.aliveLocked()
	c.mu.Unlock()

	if !alive {
		return ownErrors.ErrEngineUnavailable
	}
	c.log.Debugw("engine command", "command", command)

	if err := inst.writeLine(command); err != nil {
		return fmt.Errorf("%w: %v", ownErrors.ErrEngineUnavailable, err)
	}
	return nil
}

func (c *EngineClient) aliveLocked() bool {
	if c.inst == nil {
		return false
	}
	select {
	case <-c.inst.done:
		return false
	default:
		return true
	}
}

func (c *EngineClient) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aliveLocked()
}

// Stop asks the engine to abandon the current search. The process keeps
// running and answers with a bestmove line.
func (c *EngineClient) Stop() error {
	return c.Send("stop")
}

// Done is closed when the current instance's output ends. Without a live
// instance the returned channel is already closed.
func (c *EngineClient) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.inst.done
}

// Quit terminates the instance and releases its pipes. Calling it again, or
// before Start, is a no-op.
func (c *EngineClient) Quit() error {
	c.mu.Lock()
	inst := c.inst
	c.inst = nil
	c.mu.Unlock()

	if inst == nil {
		return nil
	}

	var err error
	inst.quitOnce.Do(func() {
		_ = inst.writeLine("quit")
		_ = inst.proc.Stdin.Close()

		select {
		case <-inst.done:
		case <-time.After(c.opts.QuitTimeout):
			c.log.Warnw("engine ignored quit, killing it")
			if inst.proc.Kill != nil {
				err = inst.proc.Kill()
			}
			_ = inst.proc.Stdout.Close()
			<-inst.done
		}
		c.log.Infow("engine terminated")
	})
	return err
}

// NewEngineFromConfig builds an engine client for the configured binary.
func NewEngineFromConfig(cfg *bootstrap.Config, log *zap.SugaredLogger) *EngineClient {
	return NewEngineClient(ExecSpawner(cfg.EnginePath, cfg.EngineArgs...), EngineOptions{
		Threads:      cfg.EngineThreads,
		HashMB:       cfg.EngineHashMB,
		MultiPV:      cfg.EngineMultiPV,
		StartTimeout: cfg.EngineStartTimeout,
		QuitTimeout:  cfg.EngineQuitTimeout,
	}, log)
}
