package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chess_review/internal/domain/analysis"
	ownErrors "chess_review/internal/errors"
	"chess_review/internal/repository"
)

// Engine is the command/response surface the coordinator drives. It must be
// started before it is handed to New.
type Engine interface {
	Send(command string) error
	Stop() error
	OnLine(handler func(line string))
	Done() <-chan struct{}
	Quit() error
}

type outcome struct {
	res analysis.BestMoveResult
	err error
}

type pendingRequest struct {
	analysis.PendingRequest
	result   chan outcome
	acc      *repository.SearchAccumulator
	finished bool
}

func (p *pendingRequest) finish(o outcome) {
	if p.finished {
		return
	}
	p.finished = true
	p.result <- o
}

// Coordinator serializes every search against a single engine. A newer
// request of the same kind supersedes the older one; the older caller is
// released with ErrRequestSuperseded and its late bestmove is dropped.
type Coordinator struct {
	engine  Engine
	log     *zap.SugaredLogger
	timeout time.Duration

	submitCh  chan *pendingRequest
	abandonCh chan *pendingRequest
	cancelCh  chan chan struct{}
	lineCh    chan string
	closed    chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	protocolErrors atomic.Int64

	// owned by loop
	nextID     uint64
	current    map[analysis.RequestKind]*pendingRequest
	queue      []*pendingRequest
	searching  *pendingRequest
	stopSent   bool
	engineGone bool
}

// New takes ownership of engine. requestTimeout bounds every search on top of
// the caller's context; zero disables it.
func New(engine Engine, requestTimeout time.Duration, log *zap.SugaredLogger) *Coordinator {
	c := &Coordinator{
		engine:    engine,
		log:       log,
		timeout:   requestTimeout,
		submitCh:  make(chan *pendingRequest),
		abandonCh: make(chan *pendingRequest),
		cancelCh:  make(chan chan struct{}),
		lineCh:    make(chan string, 1024),
		closed:    make(chan struct{}),
		loopDone:  make(chan struct{}),
		current:   make(map[analysis.RequestKind]*pendingRequest),
	}
	engine.OnLine(c.onLine)
	go c.loop(engine.Done())
	return c
}

func (c *Coordinator) onLine(line string) {
	select {
	case c.lineCh <- line:
	case <-c.loopDone:
	}
}

// FindBestMove searches position to depth for the interactive viewer.
func (c *Coordinator) FindBestMove(ctx context.Context, position string, depth int) (analysis.BestMoveResult, error) {
	return c.Search(ctx, analysis.KindBestMove, position, depth)
}

// Search blocks until the engine answers, the request is superseded, or ctx
// (bounded by the request timeout) expires. A timed out request is stopped on
// the engine and reported as ErrEngineTimeout.
func (c *Coordinator) Search(ctx context.Context, kind analysis.RequestKind, position string, depth int) (analysis.BestMoveResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &pendingRequest{
		PendingRequest: analysis.PendingRequest{
			Kind:        kind,
			Position:    position,
			Depth:       depth,
			SubmittedAt: time.Now(),
		},
		result: make(chan outcome, 1),
		acc:    repository.NewSearchAccumulator(),
	}

	select {
	case c.submitCh <- req:
	case <-c.closed:
		return analysis.BestMoveResult{}, ownErrors.ErrEngineUnavailable
	case <-ctx.Done():
		return analysis.BestMoveResult{}, contextError(ctx)
	}

	return c.await(ctx, req)
}

func (c *Coordinator) await(ctx context.Context, req *pendingRequest) (analysis.BestMoveResult, error) {
	select {
	case out := <-req.result:
		return out.res, out.err
	case <-ctx.Done():
		// an answer that raced the deadline still wins
		select {
		case out := <-req.result:
			return out.res, out.err
		default:
		}
		select {
		case c.abandonCh <- req:
		case <-c.loopDone:
		}
		return analysis.BestMoveResult{}, contextError(ctx)
	case <-c.loopDone:
		return analysis.BestMoveResult{}, ownErrors.ErrEngineUnavailable
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ownErrors.ErrEngineTimeout, ctx.Err())
	}
	return ctx.Err()
}

// CancelAll stops the engine and releases every pending request with
// ErrRequestSuperseded.
func (c *Coordinator) CancelAll() {
	ack := make(chan struct{})
	select {
	case c.cancelCh <- ack:
		<-ack
	case <-c.loopDone:
	}
}

// Close cancels everything and quits the engine. Later searches fail with
// ErrEngineUnavailable. Safe to call more than once.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		<-c.loopDone
		err = c.engine.Quit()
	})
	return err
}

func (c *Coordinator) ProtocolErrors() int64 {
	return c.protocolErrors.Load()
}

func (c *Coordinator) loop(engineDone <-chan struct{}) {
	defer close(c.loopDone)

	for {
		select {
		case req := <-c.submitCh:
			c.accept(req)
		case req := <-c.abandonCh:
			if !req.finished {
				c.log.Infow("abandoning engine request", "id", req.ID, "kind", req.Kind)
			}
			c.supersede(req, ownErrors.ErrRequestSuperseded)
		case line := <-c.lineCh:
			c.handleLine(line)
		case ack := <-c.cancelCh:
			c.cancelAll()
			close(ack)
		case <-engineDone:
			engineDone = nil
			c.engineGone = true
			c.log.Warnw("engine went away, failing pending requests")
			c.failAll(ownErrors.ErrEngineUnavailable)
		case <-c.closed:
			c.cancelAll()
			return
		}
		c.dispatch()
	}
}

func (c *Coordinator) accept(req *pendingRequest) {
	c.nextID++
	req.ID = c.nextID

	if c.engineGone {
		req.finish(outcome{err: ownErrors.ErrEngineUnavailable})
		return
	}

	if prev := c.current[req.Kind]; prev != nil {
		c.log.Debugw("superseding engine request", "old_id", prev.ID, "new_id", req.ID, "kind", req.Kind)
		c.supersede(prev, ownErrors.ErrRequestSuperseded)
	}
	c.current[req.Kind] = req
	c.queue = append(c.queue, req)
}

// supersede releases req and, when it is the running search, stops it. The
// running search stays recorded until its bestmove arrives so the stale
// answer can be recognised.
func (c *Coordinator) supersede(req *pendingRequest, err error) {
	req.finish(outcome{err: err})

	if c.current[req.Kind] == req {
		delete(c.current, req.Kind)
	}
	for i, queued := range c.queue {
		if queued == req {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}

	if c.searching == req && !c.stopSent {
		if stopErr := c.engine.Stop(); stopErr != nil {
			c.log.Warnw("failed to stop engine search", "id", req.ID, "error", stopErr)
		}
		c.stopSent = true
	}
}

func (c *Coordinator) cancelAll() {
	for _, req := range c.current {
		c.supersede(req, ownErrors.ErrRequestSuperseded)
	}
	c.queue = nil
}

func (c *Coordinator) failAll(err error) {
	for _, req := range c.current {
		req.finish(outcome{err: err})
	}
	c.current = make(map[analysis.RequestKind]*pendingRequest)
	c.queue = nil
	c.searching = nil
	c.stopSent = false
}

func (c *Coordinator) outstanding(req *pendingRequest) bool {
	cur := c.current[req.Kind]
	return cur != nil && cur.ID == req.ID
}

func (c *Coordinator) handleLine(line string) {
	ev, err := repository.ParseLine(line)
	if err != nil {
		c.protocolErrors.Add(1)
		c.log.Warnw("dropping engine line", "line", line, "error", err)
		return
	}

	switch ev.Kind {
	case repository.EventInfo:
		if s := c.searching; s != nil && c.outstanding(s) {
			s.acc.Observe(ev.Line)
		}
	case repository.EventBestMove:
		s := c.searching
		c.searching = nil
		c.stopSent = false
		if s == nil {
			c.log.Debugw("bestmove without a running search", "line", line)
			return
		}
		if !c.outstanding(s) {
			c.log.Debugw("dropping stale engine response", "id", s.ID, "kind", s.Kind)
			return
		}
		delete(c.current, s.Kind)
		s.finish(outcome{res: s.acc.Result(s.Position, ev)})
	}
}

func (c *Coordinator) dispatch() {
	for c.searching == nil && len(c.queue) > 0 {
		req := c.queue[0]
		c.queue = c.queue[1:]

		if err := c.startSearch(req); err != nil {
			c.log.Errorw("failed to start engine search", "id", req.ID, "error", err)
			if c.current[req.Kind] == req {
				delete(c.current, req.Kind)
			}
			req.finish(outcome{err: err})
			continue
		}
		c.searching = req
	}
}

func (c *Coordinator) startSearch(req *pendingRequest) error {
	position := "position startpos"
	if req.Position != "" && req.Position != analysis.StartPosition {
		position = "position fen " + req.Position
	}
	if err := c.engine.Send(position); err != nil {
		return err
	}
	depth := req.Depth
	if depth < 1 {
		depth = 1
	}
	return c.engine.Send(fmt.Sprintf("go depth %d", depth))
}
