package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPanic wraps a panic recovered from a worker
	ErrPanic = errors.New("pipeline: worker panic")
	// ErrClosed is returned by Submit after Wait
	ErrClosed = errors.New("pipeline: pool closed")
)

// WorkFunc processes one job.
type WorkFunc[In, Out any] func(ctx context.Context, seq uint64, in In) (Out, error)

type job[In any] struct {
	seq uint64
	in  In
}

type result[Out any] struct {
	seq uint64
	out Out
}

// Pool runs a WorkFunc over submitted jobs on a fixed set of workers and hands the
// results to an Aggregator. At most twice the worker count of jobs are in flight,
// counting from Submit until the result is emitted, so a slow early job bounds
// memory rather than letting later results pile up.
//
// The first error from a worker or from the emit callback cancels the pool; Submit
// and Wait then return it.
type Pool[In, Out any] struct {
	ctx     context.Context
	g       *errgroup.Group
	jobs    chan job[In]
	results chan result[Out]
	tokens  chan struct{}
	seq     uint64
	closed  bool

	agg *Aggregator[Out]
}

// NewPool starts workers goroutines running work, plus the consumer that emits
// results in order. workers below one selects GOMAXPROCS.
func NewPool[In, Out any](ctx context.Context, workers int, work WorkFunc[In, Out], emit EmitFunc[Out]) *Pool[In, Out] {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	inFlight := 2 * workers

	g, gctx := errgroup.WithContext(ctx)
	p := &Pool[In, Out]{
		ctx:     gctx,
		g:       g,
		jobs:    make(chan job[In], inFlight),
		results: make(chan result[Out], inFlight),
		tokens:  make(chan struct{}, inFlight),
		agg:     NewAggregator(emit),
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return p.worker(work)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(p.results)
		return nil
	})

	g.Go(p.consume)

	return p
}

func (p *Pool[In, Out]) worker(work WorkFunc[In, Out]) error {
	for j := range p.jobs {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		out, err := p.run(work, j)
		if err != nil {
			return err
		}
		select {
		case p.results <- result[Out]{seq: j.seq, out: out}:
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
	return nil
}

// run calls work, converting a panic into an error wrapping ErrPanic.
func (p *Pool[In, Out]) run(work WorkFunc[In, Out], j job[In]) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("%w in job %d: %w", ErrPanic, j.seq, rerr)
			} else {
				err = fmt.Errorf("%w in job %d: %v", ErrPanic, j.seq, r)
			}
		}
	}()
	return work(p.ctx, j.seq, j.in)
}

func (p *Pool[In, Out]) consume() error {
	for r := range p.results {
		n, err := p.agg.Add(r.seq, r.out)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			<-p.tokens
		}
	}
	if p.ctx.Err() != nil {
		return p.ctx.Err()
	}
	return p.agg.Close()
}

// Submit queues in as the next job. It blocks while the in-flight limit is reached
// and fails once the pool has been cancelled.
func (p *Pool[In, Out]) Submit(in In) error {
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tokens <- struct{}{}:
	case <-p.ctx.Done():
		return p.Wait()
	}

	p.jobs <- job[In]{seq: p.seq, in: in}
	p.seq++
	return nil
}

// Submitted returns the number of jobs accepted so far.
func (p *Pool[In, Out]) Submitted() uint64 {
	return p.seq
}

// PeakPending returns the largest number of results the pool held back for ordering.
// It is only meaningful after Wait.
func (p *Pool[In, Out]) PeakPending() int {
	return p.agg.Peak()
}

// Wait stops accepting jobs, waits for every result to be emitted and returns the
// first error. It may be called more than once.
func (p *Pool[In, Out]) Wait() error {
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	return p.g.Wait()
}
