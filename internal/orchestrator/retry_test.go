package orchestrator

import (
	"testing"
	"time"
)

func recoverable() Outcome { return Outcome{Kind: OutcomeRecoverable, Code: CodeNetwork, Detail: "reset"} }

func TestRetryEngine_ThirdFailureIsFatal(t *testing.T) {
	engine := NewRetryEngine(DefaultRetryConfig())

	for i := 1; i <= 2; i++ {
		if o := engine.Observe(recoverable()); o.Kind != OutcomeRecoverable {
			t.Fatalf("failure %d escalated early: %s", i, o.Kind)
		}
	}
	o := engine.Observe(recoverable())
	if o.Kind != OutcomeFatal || o.Code != CodeMaxConsecutive {
		t.Fatalf("third failure = %s/%s, want fatal/%s", o.Kind, o.Code, CodeMaxConsecutive)
	}
}

func TestRetryEngine_SuccessResets(t *testing.T) {
	engine := NewRetryEngine(DefaultRetryConfig())
	engine.Observe(recoverable())
	engine.Observe(recoverable())
	engine.Observe(Outcome{Kind: OutcomeSuccess})

	if engine.Consecutive() != 0 {
		t.Fatalf("consecutive = %d after success", engine.Consecutive())
	}
	if o := engine.Observe(recoverable()); o.Kind != OutcomeRecoverable {
		t.Fatal("counter should restart after success")
	}
}

func TestRetryEngine_FatalDoesNotCount(t *testing.T) {
	engine := NewRetryEngine(DefaultRetryConfig())
	engine.Observe(Outcome{Kind: OutcomeFatal, Code: CodeAuthentication})
	if engine.Consecutive() != 0 {
		t.Fatal("fatal outcomes are not retried")
	}
}

func TestRetryEngine_NextDelay(t *testing.T) {
	cfg := RetryConfig{BaseBackoff: 2 * time.Second, Ceiling: 30 * time.Second, MaxMultiplier: 16}
	engine := NewRetryEngine(cfg)
	cadence := 2 * time.Second

	if d := engine.NextDelay(cadence); d != cadence {
		t.Fatalf("clean delay = %v", d)
	}

	want := []time.Duration{
		cadence + 4*time.Second,  // x2
		cadence + 8*time.Second,  // x4
		cadence + 16*time.Second, // x8
		cadence + 30*time.Second, // x16 capped by ceiling
		cadence + 30*time.Second, // multiplier capped
	}
	for i, w := range want {
		engine.Observe(recoverable())
		if d := engine.NextDelay(cadence); d != w {
			t.Fatalf("after %d failures delay = %v, want %v", i+1, d, w)
		}
	}
}
