package pacing

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/loop"
)

var epoch0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// recordingSink logs every key change with its virtual timestamp and fails
// the test if two keys are ever down together.
type recordingSink struct {
	t      *testing.T
	clock  *loop.Manual
	events []string
	held   map[directive.Button]bool
}

func newSink(t *testing.T, clock *loop.Manual) *recordingSink {
	return &recordingSink{t: t, clock: clock, held: map[directive.Button]bool{}}
}

func (s *recordingSink) at() time.Duration { return s.clock.Now().Sub(epoch0) }

func (s *recordingSink) Press(b directive.Button) {
	if len(s.held) > 0 {
		s.t.Fatalf("press %s while %v held", b, s.held)
	}
	s.held[b] = true
	s.events = append(s.events, fmt.Sprintf("%v +%s", s.at(), b))
}

func (s *recordingSink) Release(b directive.Button) {
	if !s.held[b] {
		s.t.Fatalf("release %s not held", b)
	}
	delete(s.held, b)
	s.events = append(s.events, fmt.Sprintf("%v -%s", s.at(), b))
}

func newQueue(t *testing.T) (*Queue, *recordingSink, *loop.Manual) {
	clock := loop.NewManual(epoch0)
	sink := newSink(t, clock)
	return New(clock, sink, DefaultConfig(), zap.NewNop()), sink, clock
}

func TestDirectionalHoldScalesWithCount(t *testing.T) {
	q, sink, clock := newQueue(t)

	q.Enqueue([]directive.LogicalInput{{Button: directive.ButtonUp, RepeatCount: 3}})
	_, releaseAt, ok := q.Holding()
	require.True(t, ok)
	require.Equal(t, epoch0.Add(750*time.Millisecond), releaseAt)

	clock.Advance(time.Second)
	require.Equal(t, []string{"0s +UP", "750ms -UP"}, sink.events)
	require.True(t, q.Idle())
}

func TestTapsAreSequential(t *testing.T) {
	q, sink, clock := newQueue(t)

	q.Enqueue([]directive.LogicalInput{
		{Button: directive.ButtonA, RepeatCount: 2},
		{Button: directive.ButtonRight, RepeatCount: 1},
	})
	clock.Advance(time.Second)

	want := []string{
		"0s +A", "120ms -A",
		"170ms +A", "290ms -A",
		"290ms +RIGHT", "410ms -RIGHT",
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Fatalf("timeline mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatedTapsAreSeparatedByGap(t *testing.T) {
	q, sink, clock := newQueue(t)

	q.Enqueue([]directive.LogicalInput{{Button: directive.ButtonA, RepeatCount: 3}})
	clock.Advance(130 * time.Millisecond)
	require.False(t, q.Idle(), "gap before the next tap")
	_, _, holding := q.Holding()
	require.False(t, holding)

	clock.Advance(time.Second)
	want := []string{
		"0s +A", "120ms -A",
		"170ms +A", "290ms -A",
		"340ms +A", "460ms -A",
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Fatalf("timeline mismatch (-want +got):\n%s", diff)
	}
	require.True(t, q.Idle())
}

func TestClearDuringGap(t *testing.T) {
	q, sink, clock := newQueue(t)

	q.Enqueue([]directive.LogicalInput{{Button: directive.ButtonB, RepeatCount: 2}})
	clock.Advance(140 * time.Millisecond)
	q.Clear()

	require.True(t, q.Idle())
	clock.Advance(time.Second)
	require.Equal(t, []string{"0s +B", "120ms -B"}, sink.events, "no press after clear")
}

func TestEnqueueSupersedesPendingButFinishesHold(t *testing.T) {
	q, sink, clock := newQueue(t)

	q.Enqueue([]directive.LogicalInput{
		{Button: directive.ButtonLeft, RepeatCount: 2},
		{Button: directive.ButtonB, RepeatCount: 3},
	})
	clock.Advance(100 * time.Millisecond)

	q.Enqueue([]directive.LogicalInput{{Button: directive.ButtonStart, RepeatCount: 1}})
	key, _, ok := q.Holding()
	require.True(t, ok)
	require.Equal(t, directive.ButtonLeft, key, "hold in progress keeps running")

	clock.Advance(time.Second)
	require.Equal(t, []string{"0s +LEFT", "500ms -LEFT", "500ms +START", "620ms -START"}, sink.events)
}

func TestClearReleasesImmediately(t *testing.T) {
	q, sink, clock := newQueue(t)

	q.Enqueue([]directive.LogicalInput{{Button: directive.ButtonDown, RepeatCount: 4}})
	clock.Advance(200 * time.Millisecond)
	q.Clear()

	require.Equal(t, []string{"0s +DOWN", "200ms -DOWN"}, sink.events)
	require.True(t, q.Idle())
	require.Zero(t, clock.Pending())

	clock.Advance(2 * time.Second)
	require.Len(t, sink.events, 2, "stale release timer must not fire")
}

func TestExpand(t *testing.T) {
	got := Expand([]directive.LogicalInput{
		{Button: directive.ButtonUp, RepeatCount: 3},
		{Button: directive.ButtonA, RepeatCount: 2},
		{Button: directive.ButtonLeft, RepeatCount: 1},
		{Button: directive.ButtonB, RepeatCount: 50},
	})
	want := []PendingInput{
		{Key: directive.ButtonUp, RemainingTaps: 1, Directional: true, OriginalCount: 3},
		{Key: directive.ButtonA, RemainingTaps: 2, OriginalCount: 2},
		{Key: directive.ButtonLeft, RemainingTaps: 1, Directional: true, OriginalCount: 1},
		{Key: directive.ButtonB, RemainingTaps: directive.MaxRepeat, OriginalCount: directive.MaxRepeat},
	}
	require.Equal(t, want, got)
}

func TestEmptyEnqueueIsNoop(t *testing.T) {
	q, sink, clock := newQueue(t)
	q.Enqueue(nil)
	clock.Advance(time.Second)
	require.Empty(t, sink.events)
	require.True(t, q.Idle())
}
