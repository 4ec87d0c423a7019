// Package pacing turns logical inputs into a timeline of key presses and
// releases, holding at most one key at a time.
package pacing

// #region imports
import (
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/loop"
)

// #endregion imports

// #region types

// Sink receives key state changes.
type Sink interface {
	Press(b directive.Button)
	Release(b directive.Button)
}

// Config holds the timing knobs.
type Config struct {
	HoldPerStep time.Duration // per step of a collapsed directional hold
	TapInterval time.Duration // how long a single tap is held
	TapGap      time.Duration // released time before the same key is pressed again
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		HoldPerStep: 250 * time.Millisecond,
		TapInterval: 120 * time.Millisecond,
		TapGap:      50 * time.Millisecond,
	}
}

// PendingInput is a queued key with its remaining taps.
type PendingInput struct {
	Key           directive.Button
	RemainingTaps int
	Directional   bool
	OriginalCount int
}

type phase int

const (
	phaseIdle phase = iota
	phaseHolding
	phaseGap
)

// state is idle, holding one key until releaseAt, or in the released gap
// after key that ends at releaseAt.
type state struct {
	phase     phase
	key       directive.Button
	releaseAt time.Time
	timer     loop.Timer
}

// #endregion types

// #region queue

// Queue serialises input delivery. All methods must run on the scheduler's
// loop; release timers post back onto it.
type Queue struct {
	sched loop.Scheduler
	sink  Sink
	cfg   Config
	log   *zap.Logger

	pending []PendingInput
	state   state
	epoch   uint64
}

// New returns an idle queue.
func New(sched loop.Scheduler, sink Sink, cfg Config, log *zap.Logger) *Queue {
	return &Queue{sched: sched, sink: sink, cfg: cfg, log: log.Named("pacing")}
}

// Expand converts logical inputs to pending entries. A directional input with
// count > 1 becomes one long hold; everything else is tapped count times.
func Expand(inputs []directive.LogicalInput) []PendingInput {
	out := make([]PendingInput, 0, len(inputs))
	for _, in := range inputs {
		count := directive.ClampRepeat(in.RepeatCount)
		p := PendingInput{
			Key:           in.Button,
			RemainingTaps: count,
			Directional:   in.Button.Directional(),
			OriginalCount: count,
		}
		if p.Directional && count > 1 {
			p.RemainingTaps = 1
		}
		out = append(out, p)
	}
	return out
}

// Enqueue replaces whatever is still pending with inputs. A key already held
// is left to finish its scheduled release first.
func (q *Queue) Enqueue(inputs []directive.LogicalInput) {
	if dropped := len(q.pending); dropped > 0 {
		q.log.Debug("superseded pending inputs", zap.Int("dropped", dropped))
	}
	q.pending = Expand(inputs)
	q.drain()
}

// Clear releases any held key immediately and drops everything pending.
// Release and gap timers already armed become no-ops.
func (q *Queue) Clear() {
	q.epoch++
	if q.state.timer != nil {
		q.state.timer.Stop()
	}
	if q.state.phase == phaseHolding {
		q.sink.Release(q.state.key)
	}
	q.state = state{}
	q.pending = nil
}

// Idle reports whether nothing is held and nothing is pending.
func (q *Queue) Idle() bool {
	return q.state.phase == phaseIdle && len(q.pending) == 0
}

// Holding returns the held key and its scheduled release time.
func (q *Queue) Holding() (directive.Button, time.Time, bool) {
	if q.state.phase != phaseHolding {
		return "", time.Time{}, false
	}
	return q.state.key, q.state.releaseAt, true
}

// Pending returns a copy of the queued entries.
func (q *Queue) Pending() []PendingInput {
	return append([]PendingInput(nil), q.pending...)
}

// #endregion queue

// #region drain

func (q *Queue) drain() {
	if q.state.phase != phaseIdle || len(q.pending) == 0 {
		return
	}

	front := &q.pending[0]
	key := front.Key
	hold := q.cfg.TapInterval
	if front.Directional && front.OriginalCount > 1 {
		hold = q.cfg.HoldPerStep * time.Duration(front.OriginalCount)
	}

	front.RemainingTaps--
	if front.RemainingTaps <= 0 {
		q.pending = q.pending[1:]
	}

	q.sink.Press(key)
	epoch := q.epoch
	q.state = state{
		phase:     phaseHolding,
		key:       key,
		releaseAt: q.sched.Now().Add(hold),
	}
	q.state.timer = q.sched.AfterFunc(hold, func() {
		if q.epoch != epoch {
			return
		}
		q.release()
	})
	q.log.Debug("press", zap.String("key", string(key)), zap.Duration("hold", hold))
}

func (q *Queue) release() {
	if q.state.phase != phaseHolding {
		return
	}
	key := q.state.key
	q.sink.Release(key)
	q.state = state{}

	// a consumer polling once per frame would merge a release and press of
	// the same key at one instant into a single hold
	if q.cfg.TapGap > 0 && len(q.pending) > 0 && q.pending[0].Key == key {
		epoch := q.epoch
		q.state = state{
			phase:     phaseGap,
			key:       key,
			releaseAt: q.sched.Now().Add(q.cfg.TapGap),
		}
		q.state.timer = q.sched.AfterFunc(q.cfg.TapGap, func() {
			if q.epoch != epoch || q.state.phase != phaseGap {
				return
			}
			q.state = state{}
			q.drain()
		})
		return
	}
	q.drain()
}

// #endregion drain
