package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// Stream is a live sequence of result batches. Each batch is the full,
// mapped result set at that moment. The channel returned by Events is closed
// when the stream terminates, after which Err reports why: nil for a
// consumer-driven Cancel, the terminal error otherwise.
type Stream[T any] struct {
	events  chan []*T
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool

	mu  sync.Mutex
	err error
}

func newStream[T any](parent context.Context) (*Stream[T], context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Stream[T]{
		events: make(chan []*T),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

func (s *Stream[T]) Events() <-chan []*T { return s.events }

// Done is closed once the stream has terminated.
func (s *Stream[T]) Done() <-chan struct{} { return s.done }

func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the stream and waits for it to terminate. Batches in flight
// are discarded, so no batch is received after Cancel returns.
func (s *Stream[T]) Cancel() {
	s.stopped.Store(true)
	s.cancel()
	for range s.events {
	}
	<-s.done
}

// Cancelled reports whether the consumer has called Cancel.
func (s *Stream[T]) Cancelled() bool { return s.stopped.Load() }

// emit hands batch to the consumer. It returns false once ctx is done.
func (s *Stream[T]) emit(ctx context.Context, batch []*T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish terminates the stream. It must be called exactly once, by the
// producer.
func (s *Stream[T]) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.cancel()
	close(s.events)
	close(s.done)
}
