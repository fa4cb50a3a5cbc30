package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by [Loop.Do] once the loop has been closed.
var ErrClosed = errors.New("event loop closed")

// Loop runs posted functions one at a time, in posting order, on a single
// goroutine. Functions run on the loop never race with each other.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	onPanic func(any)

	closeOnce sync.Once
}

// Option configures a [Loop].
type Option func(*Loop)

// WithPanicHandler installs a handler invoked on the loop goroutine when a
// posted function panics. Without it the panic is swallowed and the loop keeps
// running.
func WithPanicHandler(fn func(any)) Option {
	return func(l *Loop) {
		l.onPanic = fn
	}
}

// New starts a loop goroutine.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.wake:
			l.drain()
		case <-l.done:
			// Work posted before Close still runs.
			l.drain()
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.invoke(fn)
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.onPanic != nil {
			l.onPanic(r)
		}
	}()
	fn()
}

// Post enqueues fn without blocking. It reports false when the loop is closed
// and fn was dropped.
func (l *Loop) Post(fn func()) bool {
	if l == nil || fn == nil {
		return false
	}

	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits until it has run on the loop goroutine. Do must not be
// called from a function already running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}

	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// loop goroutine to exit. Close is idempotent.
func (l *Loop) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed.Store(true)
		l.mu.Unlock()
		close(l.done)
		l.wg.Wait()
	})
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	return l == nil || l.closed.Load()
}
