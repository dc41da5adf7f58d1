package core

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Scheduler runs backend work off the caller's goroutine and delivers
// completions on a separate foreground context.
type Scheduler interface {
	// Background runs task on the background queue. Backend calls and cache
	// mutations happen here.
	Background(task func())
	// Foreground runs task on the foreground queue. Every completion callback
	// is delivered here.
	Foreground(task func())
}

// Dispatcher is a Scheduler backed by two serial queues, each drained by a
// single goroutine. Tasks on one queue run one at a time in submission order.
type Dispatcher struct {
	background *queue
	foreground *queue
}

var _ Scheduler = (*Dispatcher)(nil)

// NewDispatcher starts both queues. Call Close to stop them.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("dispatcher")
	return &Dispatcher{
		background: newQueue("background", logger),
		foreground: newQueue("foreground", logger),
	}
}

func (d *Dispatcher) Background(task func()) { d.background.push(task) }

func (d *Dispatcher) Foreground(task func()) { d.foreground.push(task) }

// Close drains the background queue, then the foreground queue, so
// completions scheduled by in-flight background work are still delivered.
func (d *Dispatcher) Close() {
	d.background.close()
	d.foreground.close()
}

type queue struct {
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

func newQueue(name string, logger *zap.Logger) *queue {
	q := &queue{
		name:   name,
		logger: logger.With(zap.String("queue", name)),
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *queue) push(task func()) {
	if task == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("Task dropped: queue closed")
		return
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
}

func (q *queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.exec(task)
	}
}

// exec runs one task. A panicking task must not kill the queue.
func (q *queue) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Task panicked",
				zap.String("panic", fmt.Sprint(r)),
				zap.String("stacktrace", string(debug.Stack())),
			)
		}
	}()
	task()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
