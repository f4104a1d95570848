package mongosh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type loopTask struct {
	epoch uint64
	fn    func() error
}

// EventLoop serializes asynchronous completions onto the goroutine that
// evaluates shell input. Work runs on its own goroutine; the continuation it
// returns runs later inside Drain, never concurrently with evaluation.
//
// A Drain that gives up on its context starts a new epoch. Continuations of
// work scheduled before that are discarded instead of running inside a later,
// unrelated Drain.
type EventLoop struct {
	mu       sync.Mutex
	queue    []loopTask
	ready    chan struct{}
	epoch    atomic.Uint64
	inflight atomic.Int64
}

func NewEventLoop() *EventLoop {
	return &EventLoop{ready: make(chan struct{}, 1)}
}

// Go runs work in the background and queues the continuation it returns.
// A nil continuation is allowed. Go must be called from the evaluating
// goroutine or from a continuation.
func (l *EventLoop) Go(work func() func() error) {
	epoch := l.epoch.Load()
	l.inflight.Add(1)
	go func() {
		fn := work()
		if l.epoch.Load() != epoch {
			return
		}
		l.mu.Lock()
		l.queue = append(l.queue, loopTask{epoch: epoch, fn: fn})
		l.mu.Unlock()
		select {
		case l.ready <- struct{}{}:
		default:
		}
	}()
}

// Pending reports how many continuations of the current epoch have not run
// yet.
func (l *EventLoop) Pending() int64 {
	return l.inflight.Load()
}

func (l *EventLoop) take() []loopTask {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.queue
	l.queue = nil
	return tasks
}

// Drain runs queued continuations on the caller's goroutine until nothing is
// in flight. Continuations may schedule more work; Drain waits for that too.
// Continuation errors are joined.
func (l *EventLoop) Drain(ctx context.Context) error {
	var errs []error
	for l.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			l.epoch.Add(1)
			l.inflight.Store(0)
			l.take()
			return errors.Join(append(errs, ctx.Err())...)
		case <-l.ready:
		}
		current := l.epoch.Load()
		for _, task := range l.take() {
			if task.epoch != current {
				continue
			}
			if task.fn != nil {
				if err := task.fn(); err != nil {
					errs = append(errs, err)
				}
			}
			l.inflight.Add(-1)
		}
	}
	return errors.Join(errs...)
}
