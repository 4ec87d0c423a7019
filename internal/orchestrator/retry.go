package orchestrator

import (
	"fmt"
	"time"
)

// #region config

// RetryConfig bounds backoff after recoverable failures.
type RetryConfig struct {
	BaseBackoff    time.Duration
	Ceiling        time.Duration
	MaxMultiplier  int
	MaxConsecutive int // this many recoverable failures in a row become fatal
}

// DefaultRetryConfig returns the standard backoff policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseBackoff:    2 * time.Second,
		Ceiling:        30 * time.Second,
		MaxMultiplier:  16,
		MaxConsecutive: 3,
	}
}

// #endregion

// #region engine

// RetryEngine tracks consecutive failures and the backoff multiplier.
type RetryEngine struct {
	cfg         RetryConfig
	consecutive int
	multiplier  int
}

// NewRetryEngine creates a retry engine with a clean slate.
func NewRetryEngine(cfg RetryConfig) *RetryEngine {
	return &RetryEngine{cfg: cfg, multiplier: 1}
}

// Reset forgets past failures.
func (r *RetryEngine) Reset() {
	r.consecutive = 0
	r.multiplier = 1
}

// Consecutive returns the current run of recoverable failures.
func (r *RetryEngine) Consecutive() int { return r.consecutive }

// #endregion

// #region observe

// Observe updates counters for o and returns it, escalated to fatal when the
// run of recoverable failures reaches the limit.
func (r *RetryEngine) Observe(o Outcome) Outcome {
	switch o.Kind {
	case OutcomeSuccess:
		r.Reset()
	case OutcomeRecoverable:
		r.consecutive++
		r.multiplier *= 2
		if r.multiplier > r.cfg.MaxMultiplier {
			r.multiplier = r.cfg.MaxMultiplier
		}
		if r.cfg.MaxConsecutive > 0 && r.consecutive >= r.cfg.MaxConsecutive {
			o.Kind = OutcomeFatal
			o.Detail = fmt.Sprintf("%d consecutive failures, last %s: %s", r.consecutive, o.Code, o.Detail)
			o.Code = CodeMaxConsecutive
		}
	}
	return o
}

// NextDelay returns how long to wait before the next tick.
func (r *RetryEngine) NextDelay(cadence time.Duration) time.Duration {
	if r.consecutive == 0 {
		return cadence
	}
	backoff := r.cfg.BaseBackoff * time.Duration(r.multiplier)
	if backoff > r.cfg.Ceiling {
		backoff = r.cfg.Ceiling
	}
	return cadence + backoff
}

// #endregion
