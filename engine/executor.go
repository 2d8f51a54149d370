package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrExecutorClosed is returned by Do after Close.
var ErrExecutorClosed = errors.New("executor closed")

type job struct {
	fn   func(*Engine) error
	done chan error
}

// Executor runs engine calls one at a time on a dedicated goroutine so that
// an Engine can serve many connections. Transfer callbacks already run on
// that goroutine and must call the Engine directly, not through Do.
type Executor struct {
	eng  *Engine
	jobs chan job

	closeOnce sync.Once
	closing   chan struct{}
	stopped   chan struct{}
}

func NewExecutor(eng *Engine) *Executor {
	x := &Executor{
		eng:     eng,
		jobs:    make(chan job),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go x.loop()
	return x
}

func (x *Executor) loop() {
	defer close(x.stopped)
	for {
		select {
		case j := <-x.jobs:
			j.done <- x.call(j.fn)
		case <-x.closing:
			return
		}
	}
}

func (x *Executor) call(fn func(*Engine) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in engine call: %v", r)
			err = fmt.Errorf("engine call panicked: %v", r)
		}
	}()
	return fn(x.eng)
}

// Do runs fn with exclusive access to the engine and returns its error. It
// gives up waiting for a turn when ctx is done; once fn has started it runs to
// completion.
func (x *Executor) Do(ctx context.Context, fn func(*Engine) error) error {
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case x.jobs <- j:
	case <-x.closing:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-j.done
}

// Close stops the executor after the call in flight, if any, returns.
func (x *Executor) Close() {
	x.closeOnce.Do(func() { close(x.closing) })
	<-x.stopped
}
