package loop

import (
	"sort"
	"sync"
	"time"
)

// #region manual

// Manual is a deterministic Scheduler driven by the caller. Time only moves
// in Advance, and work handed to Go only runs in RunBackground.
type Manual struct {
	mu         sync.Mutex
	now        time.Time
	seq        uint64
	timers     []*manualTimer
	background []func()
}

type manualTimer struct {
	m       *Manual
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManual returns a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// #endregion manual

// #region scheduler

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Post(fn func()) {
	m.AfterFunc(0, fn)
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) Go(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.background = append(m.background, fn)
}

// #endregion scheduler

// #region driving

// Advance moves the clock forward by d, running every callback that falls due
// in time order (ties in scheduling order), including callbacks scheduled by
// earlier callbacks inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// RunPending runs everything already due without moving the clock.
func (m *Manual) RunPending() { m.Advance(0) }

func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	next := live[0]
	if next.at.After(target) {
		return nil
	}
	next.fired = true
	if next.at.After(m.now) {
		m.now = next.at
	}
	return next
}

// RunBackground runs all work queued by Go, including work queued while
// draining. Callbacks it posts still wait for Advance/RunPending.
func (m *Manual) RunBackground() {
	for {
		m.mu.Lock()
		if len(m.background) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.background[0]
		m.background = m.background[1:]
		m.mu.Unlock()
		fn()
	}
}

// Pending returns the number of armed timers and posted callbacks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// BackgroundPending returns the number of queued Go calls.
func (m *Manual) BackgroundPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.background)
}

// #endregion driving
