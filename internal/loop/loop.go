// Package loop provides the single logical thread the controller runs on.
// Every state mutation happens inside a closure executed by a Scheduler;
// timers and blocking work report back by posting closures.
package loop

import (
	"sync"
	"time"
)

// #region interfaces

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. Returns false if it already ran
	// or was already stopped.
	Stop() bool
}

// Scheduler runs closures one at a time on a single logical thread.
type Scheduler interface {
	Now() time.Time
	// Post queues fn to run on the loop thread.
	Post(fn func())
	// AfterFunc runs fn on the loop thread after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Go runs blocking work off the loop thread. fn must use Post to touch state.
	Go(fn func())
}

// #endregion interfaces

// #region loop

// Loop is the production Scheduler: one goroutine draining an unbounded task queue.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake   chan struct{}
	quit   chan struct{}
	exited chan struct{}
	bg     sync.WaitGroup
}

// New starts a loop goroutine.
func New() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if l.closed || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
		}
	}
}

// Now returns wall-clock time.
func (l *Loop) Now() time.Time { return time.Now() }

// Post queues fn. Posting to a closed loop is a no-op.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc arms a wall-clock timer that posts fn when it fires.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Go runs fn on its own goroutine; Close waits for it.
func (l *Loop) Go(fn func()) {
	l.bg.Add(1)
	go func() {
		defer l.bg.Done()
		fn()
	}()
}

// Do runs fn on the loop and waits for it to finish. Must not be called
// from the loop goroutine itself.
func (l *Loop) Do(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-l.exited:
	}
}

// Close stops the loop, drops queued tasks and waits for background work
// started with Go. Blocking work must be cancelled by its owner first.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	close(l.quit)
	<-l.exited
	l.bg.Wait()
}

// #endregion loop
