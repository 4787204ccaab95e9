// Package uithread provides the single-threaded execution context that
// owns the inspector model. Every model mutation is submitted here so
// that no two mutations interleave.
package uithread

import (
	"sync"

	"github.com/rs/zerolog"
)

// Queue runs submitted functions one at a time, in submission order, on
// a dedicated goroutine. Submission never blocks.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
	done    chan struct{}
	log     *zerolog.Logger
}

// New starts a queue.
func New(log *zerolog.Logger) *Queue {
	q := &Queue{
		done: make(chan struct{}),
		log:  log,
	}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// RunLater schedules fn. It returns false if the queue was stopped.
func (q *Queue) RunLater(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	return true
}

// RunAndWait schedules fn and waits until it has run. It returns false
// without running fn if the queue was stopped.
func (q *Queue) RunAndWait(fn func()) bool {
	finished := make(chan struct{})
	if !q.RunLater(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-q.done:
		// Stop drains pending tasks before closing done.
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Flush waits until every task submitted before the call has run.
func (q *Queue) Flush() {
	q.RunAndWait(func() {})
}

// Stop runs the tasks already queued, then ends the loop.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.stopped = true
	q.cond.Signal()
	q.mu.Unlock()

	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 && q.stopped {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.run(task)
	}
}

func (q *Queue) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("UI task panicked")
		}
	}()
	task()
}
