// Package queue provides a bounded FIFO used to hand values between a
// background worker and the UI loop.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrFull = errors.New("queue full")

// Queue is safe for any number of producers and consumers. Ordering is
// first-in first-out.
type Queue[T any] struct {
	ch chan T
}

func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Put blocks until there is room or ctx is done.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut never blocks.
func (q *Queue[T]) TryPut(v T) error {
	select {
	case q.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

func (q *Queue[T]) TryGet() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// GetTimeout waits up to d for an item.
func (q *Queue[T]) GetTimeout(d time.Duration) (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case v := <-q.ch:
		return v, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}

// Drain removes the items present at the time of the call, in order.
// Items pushed while draining are left for the next call.
func (q *Queue[T]) Drain() []T {
	n := len(q.ch)
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for range n {
		v, ok := q.TryGet()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// Clear discards everything currently queued and returns how many items
// were dropped.
func (q *Queue[T]) Clear() int {
	dropped := 0
	for {
		if _, ok := q.TryGet(); !ok {
			return dropped
		}
		dropped++
	}
}

func (q *Queue[T]) Len() int { return len(q.ch) }

func (q *Queue[T]) Cap() int { return cap(q.ch) }
