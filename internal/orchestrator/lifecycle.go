package orchestrator

// #region imports
import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
	"github.com/danielpatrickdp/turnpilot/internal/loop"
)

// #endregion

// #region lifecycle-struct

// Lifecycle runs at most one request at a time and guarantees each Send ends
// in exactly one Outcome. Must be used from the scheduler's loop.
type Lifecycle struct {
	sched     loop.Scheduler
	transport codec.Transport
	retry     *RetryEngine
	timeout   time.Duration
	log       *zap.Logger

	inFlight   bool
	generation uint64
	cancel     context.CancelFunc
	timer      loop.Timer
}

// NewLifecycle wires a lifecycle to its transport and retry policy.
func NewLifecycle(sched loop.Scheduler, transport codec.Transport, retry *RetryEngine, timeout time.Duration, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		sched:     sched,
		transport: transport,
		retry:     retry,
		timeout:   timeout,
		log:       log.Named("lifecycle"),
	}
}

// InFlight reports whether a request is outstanding.
func (l *Lifecycle) InFlight() bool { return l.inFlight }

// #endregion

// #region send

// Send dispatches payload off the loop. done runs on the loop with the
// classified outcome, or not at all if Cancel is called first. Returns
// ErrRequestInFlight without dispatching anything while another request is
// outstanding.
func (l *Lifecycle) Send(payload []byte, done func(Outcome)) error {
	if l.inFlight {
		return ErrRequestInFlight
	}
	l.inFlight = true
	l.generation++
	gen := l.generation
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	l.timer = l.sched.AfterFunc(l.timeout, func() {
		if !l.current(gen) {
			return
		}
		l.log.Warn("request timed out", zap.String("exchange", id), zap.Duration("after", l.timeout))
		l.finish(id, timeoutOutcome(l.timeout), done)
	})

	transport := l.transport
	l.sched.Go(func() {
		ex := transport.Send(ctx, payload)
		l.sched.Post(func() {
			if !l.current(gen) {
				return
			}
			l.finish(id, Classify(ex), done)
		})
	})
	l.log.Debug("request dispatched", zap.String("exchange", id), zap.Int("bytes", len(payload)))
	return nil
}

func (l *Lifecycle) current(gen uint64) bool {
	return l.inFlight && gen == l.generation
}

func (l *Lifecycle) finish(id string, o Outcome, done func(Outcome)) {
	l.release()
	o.ExchangeID = id
	o = l.retry.Observe(o)
	if o.Kind != OutcomeSuccess {
		l.log.Info("request failed",
			zap.String("exchange", id),
			zap.String("kind", string(o.Kind)),
			zap.String("code", string(o.Code)),
			zap.Int("consecutive", l.retry.Consecutive()),
		)
	}
	done(o)
}

// #endregion

// #region cancel

// Cancel abandons the outstanding request; its outcome is never delivered.
func (l *Lifecycle) Cancel() {
	if !l.inFlight {
		return
	}
	l.release()
}

func (l *Lifecycle) release() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.inFlight = false
	l.generation++
}

// #endregion
