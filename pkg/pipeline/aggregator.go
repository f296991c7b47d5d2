// Package pipeline runs independent jobs on a pool of workers and delivers their
// results in submission order.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate is returned when a sequence number arrives twice
	ErrDuplicate = errors.New("pipeline: duplicate sequence number")
	// ErrStale is returned for a sequence number that was already delivered
	ErrStale = errors.New("pipeline: sequence number already delivered")
	// ErrGap is returned by Close when results are still waiting for a predecessor
	ErrGap = errors.New("pipeline: missing sequence numbers")
)

// EmitFunc receives results in sequence order.
type EmitFunc[T any] func(seq uint64, v T) error

// Aggregator reorders results that complete out of order. Results arriving ahead of
// their turn are held until every predecessor has been emitted.
//
// An Aggregator is not safe for concurrent use; a single consumer owns it.
type Aggregator[T any] struct {
	pending map[uint64]T
	next    uint64
	emit    EmitFunc[T]
	peak    int
}

// NewAggregator creates an Aggregator expecting sequence number 0 first.
func NewAggregator[T any](emit EmitFunc[T]) *Aggregator[T] {
	return &Aggregator[T]{
		pending: make(map[uint64]T),
		emit:    emit,
	}
}

// Add accepts the result for seq and emits every result that is now due. It returns
// the number of results emitted.
func (a *Aggregator[T]) Add(seq uint64, v T) (int, error) {
	if seq < a.next {
		return 0, fmt.Errorf("%w: %d", ErrStale, seq)
	}
	if _, ok := a.pending[seq]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicate, seq)
	}

	if seq != a.next {
		a.pending[seq] = v
		a.peak = max(a.peak, len(a.pending))
		return 0, nil
	}

	if err := a.emit(seq, v); err != nil {
		return 0, err
	}
	a.next++
	emitted := 1

	// Drain successors that arrived early
	for {
		v, ok := a.pending[a.next]
		if !ok {
			return emitted, nil
		}
		delete(a.pending, a.next)
		if err := a.emit(a.next, v); err != nil {
			return emitted, err
		}
		a.next++
		emitted++
	}
}

// Next returns the sequence number the Aggregator is waiting for.
func (a *Aggregator[T]) Next() uint64 {
	return a.next
}

// Pending returns the number of results held back.
func (a *Aggregator[T]) Pending() int {
	return len(a.pending)
}

// Peak returns the largest number of results held back at once.
func (a *Aggregator[T]) Peak() int {
	return a.peak
}

// Close reports ErrGap if results are still held back.
func (a *Aggregator[T]) Close() error {
	if len(a.pending) > 0 {
		return fmt.Errorf("%w: waiting for %d with %d held", ErrGap, a.next, len(a.pending))
	}
	return nil
}
