// Package pipeline schedules judge requests onto a fixed pool of workers.
// Requests are admitted in arrival order; each worker owns one sandbox box
// and evaluates one submission at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/runner"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned when the admission queue has no room. The
	// caller may retry later.
	ErrQueueFull      = errors.New("judge queue is full")
	ErrClosed         = errors.New("judge pipeline is closed")
	ErrAlreadyJudging = errors.New("submission is already being judged")
)

type Config struct {
	Workers    int
	QueueSize  int
	Runner     runner.Config
	SystemInfo string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.Runner == (runner.Config{}) {
		c.Runner = runner.DefaultConfig()
	}
	return c
}

type Request struct {
	// ID identifies the submission. Requests sharing a non-empty ID are
	// never judged concurrently.
	ID       string
	Spec     lang.Spec
	Code     string
	Tests    []verdict.TestCase
	Limits   runner.Limits
	Gatherer evaluator.Gatherer
}

type Stats struct {
	Workers int
	Queued  int
	Running int
}

type Pipeline struct {
	cfg Config
	sb  sandbox.Sandbox
	log *slog.Logger

	jobs     *xsync.MapOf[uint64, *job]
	inFlight mapset.Set[string]
	seq      atomic.Uint64
	// ready holds a wake-up for idle workers whenever pending is non-empty
	ready chan struct{}

	// pending is the admission queue. Only jobs still waiting for a worker
	// count against QueueSize; cancelled ones leave it at once.
	mu      sync.Mutex
	pending []*job
	closed  bool
}

func New(sb sandbox.Sandbox, cfg Config, log *slog.Logger) *Pipeline {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		sb:       sb,
		log:      log,
		jobs:     xsync.NewMapOf[uint64, *job](),
		inFlight: mapset.NewSet[string](),
		ready:    make(chan struct{}, 1),
	}
}

// Judge queues req and blocks until it has been evaluated. If ctx is done
// while the request is still queued it is dropped; once a worker has picked
// it up, cancellation takes effect at the next test case boundary.
func (p *Pipeline) Judge(ctx context.Context, req Request) (*evaluator.Evaluation, error) {
	j := newJob(ctx, p.seq.Add(1), req)
	if err := p.enqueue(j); err != nil {
		return nil, err
	}

	select {
	case res := <-j.done:
		return res.eval, res.err
	case <-ctx.Done():
		if p.unqueue(j) {
			p.log.Debug("dropped queued request", slog.String("subm", req.ID))
			return nil, ctx.Err()
		}
		res := <-j.done
		return res.eval, res.err
	}
}

func (p *Pipeline) enqueue(j *job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if len(p.pending) >= p.cfg.QueueSize {
		return ErrQueueFull
	}
	if j.req.ID != "" && !p.inFlight.Add(j.req.ID) {
		return fmt.Errorf("%w: %s", ErrAlreadyJudging, j.req.ID)
	}
	p.jobs.Store(j.seq, j)
	p.pending = append(p.pending, j)
	p.wake()
	return nil
}

// unqueue withdraws a job no worker has taken yet.
func (p *Pipeline) unqueue(j *job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !j.state.CompareAndSwap(stateQueued, stateCanceled) {
		return false
	}
	for i, q := range p.pending {
		if q == j {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			break
		}
	}
	p.release(j)
	return true
}

// next hands the oldest queued job to a worker, or nil when none waits.
func (p *Pipeline) next() *job {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	j := p.pending[0]
	p.pending[0] = nil
	p.pending = p.pending[1:]
	j.state.Store(stateRunning)
	if len(p.pending) > 0 {
		p.wake()
	}
	return j
}

func (p *Pipeline) wake() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

func (p *Pipeline) release(j *job) {
	p.jobs.Delete(j.seq)
	if j.req.ID != "" {
		p.inFlight.Remove(j.req.ID)
	}
}

// Run starts the workers and blocks until ctx is done or a worker cannot
// get a sandbox box. Requests still queued at that point fail with ErrClosed.
func (p *Pipeline) Run(ctx context.Context) error {
	boxes := make([]sandbox.Box, 0, p.cfg.Workers)
	defer func() {
		for _, b := range boxes {
			if err := b.Close(); err != nil {
				p.log.Warn("failed to close box", slog.Int("box", b.ID()), slog.Any("error", err))
			}
		}
	}()
	for i := 0; i < p.cfg.Workers; i++ {
		b, err := p.sb.NewBox()
		if err != nil {
			p.Close()
			p.drain()
			return fmt.Errorf("create box for worker %d: %w", i, err)
		}
		boxes = append(boxes, b)
	}

	p.log.Info("judge pipeline started", slog.Int("workers", p.cfg.Workers), slog.Int("queue", p.cfg.QueueSize))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range boxes {
		w := p.newWorker(i, b)
		g.Go(func() error {
			return w.loop(gctx)
		})
	}
	err := g.Wait()
	p.Close()
	p.drain()
	p.log.Info("judge pipeline stopped")
	return err
}

// Close stops admission. Workers keep going until Run's context is done.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *Pipeline) drain() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, j := range pending {
		if j.state.CompareAndSwap(stateQueued, stateCanceled) {
			p.release(j)
			j.finish(nil, ErrClosed)
		}
	}
}

func (p *Pipeline) Stats() Stats {
	s := Stats{Workers: p.cfg.Workers}
	p.jobs.Range(func(_ uint64, j *job) bool {
		switch j.state.Load() {
		case stateQueued:
			s.Queued++
		case stateRunning:
			s.Running++
		}
		return true
	})
	return s
}
