package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ledger"
	"github.com/danielpatrickdp/turnpilot/internal/loop"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
	"github.com/danielpatrickdp/turnpilot/internal/pacing"
	"github.com/danielpatrickdp/turnpilot/internal/projection"
	"github.com/danielpatrickdp/turnpilot/internal/session"
)

// #endregion

// #region config

// DefaultInstruction closes every turn prompt.
const DefaultInstruction = "Look at the screen and the state above, then decide your next inputs. " +
	"End your reply with a line of the form BUTTONS: <buttons>."

// Config holds the tunables of a run.
type Config struct {
	APIKey         string
	Model          string
	MaxTokens      int
	Temperature    float64
	Thinking       bool
	ThinkingBudget int
	Screenshot     bool
	SystemPrompt   string
	Instruction    string
	Fallback       directive.Button
	Cadence        time.Duration
	RequestTimeout time.Duration
	CaptureTimeout time.Duration
	Retry          RetryConfig
	Pacing         pacing.Config
}

// DefaultConfig returns the standard run settings. APIKey is left empty.
func DefaultConfig() Config {
	return Config{
		Model:          "claude-sonnet-4-5-20250929",
		MaxTokens:      1024,
		Temperature:    1.0,
		ThinkingBudget: 1024,
		Screenshot:     true,
		Instruction:    DefaultInstruction,
		Fallback:       directive.ButtonB,
		Cadence:        2 * time.Second,
		RequestTimeout: 60 * time.Second,
		CaptureTimeout: 5 * time.Second,
		Retry:          DefaultRetryConfig(),
		Pacing:         pacing.DefaultConfig(),
	}
}

// Deps are the orchestrator's collaborators. Sched, Transport, Oracle, Sink
// and Sessions are required; the rest may be nil.
type Deps struct {
	Sched       loop.Scheduler
	Transport   codec.Transport
	Oracle      groundtruth.Oracle
	Sink        pacing.Sink
	Sessions    SessionStore
	Evidence    EvidenceSource
	Snapshotter Snapshotter
	Journal     TurnJournal
	Provenance  ExchangeLog
	Hints       HintSource
	Reporter    Reporter
	Log         *zap.Logger
}

// #endregion

// #region orchestrator-struct

// Orchestrator drives verified turns: tick, request, parse, verify, deliver.
// Every method must be called on the scheduler's loop.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	rep  Reporter

	lifecycle *Lifecycle
	retry     *RetryEngine
	queue     *pacing.Queue
	ledger    *ledger.Ledger
	notes     *notes.Store
	session   session.State

	state     RunState
	epoch     uint64
	tickTimer loop.Timer

	// inputs delivered for the open ledger turn
	issued []directive.LogicalInput
	// prompt text of the request in flight
	pendingText string

	contradicted []int
	guarded      []int
	fellBack     bool

	lastResponse string
	lastCode     FailureCode
	lastError    string
}

// #endregion

// #region constructor

// New wires an orchestrator and restores the saved session. The run's config
// wins over the model, sampling and feature settings stored in the session;
// history, notes and the turn count are kept.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Sched == nil:
		return nil, errors.New("new orchestrator: scheduler required")
	case deps.Transport == nil:
		return nil, errors.New("new orchestrator: transport required")
	case deps.Oracle == nil:
		return nil, errors.New("new orchestrator: position oracle required")
	case deps.Sink == nil:
		return nil, errors.New("new orchestrator: input sink required")
	case deps.Sessions == nil:
		return nil, errors.New("new orchestrator: session store required")
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultConfig().CaptureTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	rep := deps.Reporter
	if rep == nil {
		rep = nopReporter{}
	}

	retry := NewRetryEngine(cfg.Retry)
	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		log:       deps.Log.Named("orch"),
		rep:       rep,
		retry:     retry,
		lifecycle: NewLifecycle(deps.Sched, deps.Transport, retry, cfg.RequestTimeout, deps.Log),
		queue:     pacing.New(deps.Sched, deps.Sink, cfg.Pacing, deps.Log),
		ledger:    ledger.New(deps.Oracle, deps.Sched.Now),
		notes:     notes.New(deps.Sched.Now),
		state:     StateStopped,
	}

	st := deps.Sessions.Load()
	st.Model = cfg.Model
	st.MaxTokens = cfg.MaxTokens
	st.Temperature = cfg.Temperature
	st.Features = session.Features{Screenshot: cfg.Screenshot, Thinking: cfg.Thinking}
	o.session = session.Bound(st)
	o.notes.Restore(o.session.Notes, o.session.NextNoteID)
	o.ledger.SetTurn(o.session.TurnCount)

	o.log.Info("session restored",
		zap.String("session", o.session.SessionID),
		zap.Int("turns", o.session.TurnCount),
		zap.Int("notes", o.notes.Len()),
		zap.Int("history", len(o.session.History)),
	)
	return o, nil
}

// #endregion

// #region controls

// Start begins ticking. Fails with ErrMissingAPIKey when no key is configured.
func (o *Orchestrator) Start() error {
	if o.state == StateRunning {
		return nil
	}
	if o.cfg.APIKey == "" {
		o.lastCode, o.lastError = CodeAuthentication, ErrMissingAPIKey.Error()
		o.rep.Error(o.lastCode, o.lastError)
		return ErrMissingAPIKey
	}
	o.epoch++
	o.retry.Reset()
	o.lastCode, o.lastError = CodeNone, ""
	o.setState(StateRunning)
	o.rep.Log(fmt.Sprintf("started session %s", o.session.SessionID))
	o.scheduleTick(0)
	return nil
}

// Stop halts everything: the pending tick, the request in flight and any held key.
func (o *Orchestrator) Stop() {
	if o.state == StateStopped {
		return
	}
	o.halt()
	o.deps.Sessions.Save(o.snapshotSession())
	o.rep.Log("stopped")
}

// Pause suspends ticking. The queue keeps draining and a response already in
// flight is still processed.
func (o *Orchestrator) Pause() error {
	if o.state != StateRunning {
		return ErrNotRunning
	}
	if o.tickTimer != nil {
		o.tickTimer.Stop()
		o.tickTimer = nil
	}
	o.setState(StatePaused)
	return nil
}

// Resume continues a paused run.
func (o *Orchestrator) Resume() error {
	if o.state != StatePaused {
		return ErrNotRunning
	}
	o.setState(StateRunning)
	o.scheduleTick(0)
	return nil
}

func (o *Orchestrator) halt() {
	o.epoch++
	if o.tickTimer != nil {
		o.tickTimer.Stop()
		o.tickTimer = nil
	}
	o.lifecycle.Cancel()
	o.queue.Clear()
	o.ledger.Abandon()
	o.issued = nil
	o.pendingText = ""
	o.setState(StateStopped)
}

func (o *Orchestrator) setState(s RunState) {
	if o.state == s {
		return
	}
	o.log.Info("state", zap.String("from", string(o.state)), zap.String("to", string(s)))
	o.state = s
	o.rep.StateChanged(s)
}

// #endregion

// #region accessors

// State returns the current run state.
func (o *Orchestrator) State() RunState { return o.state }

// LastResponse returns the text of the most recent successful reply.
func (o *Orchestrator) LastResponse() string { return o.lastResponse }

// LastError returns the most recent failure, CodeNone if the last exchange succeeded.
func (o *Orchestrator) LastError() (FailureCode, string) { return o.lastCode, o.lastError }

// Notes returns the live notes, oldest first.
func (o *Orchestrator) Notes() []notes.Note { return o.notes.List() }

// Records returns the kept turn records, oldest first.
func (o *Orchestrator) Records() []ledger.TurnRecord { return o.ledger.Records() }

// Session returns the session as it would be saved now.
func (o *Orchestrator) Session() session.State { return o.snapshotSession() }

// #endregion

// #region tick

func (o *Orchestrator) scheduleTick(d time.Duration) {
	if o.tickTimer != nil {
		o.tickTimer.Stop()
	}
	epoch := o.epoch
	o.tickTimer = o.deps.Sched.AfterFunc(d, func() {
		if epoch != o.epoch || o.state != StateRunning {
			return
		}
		o.tickTimer = nil
		o.tick()
	})
}

func (o *Orchestrator) tick() {
	if o.lifecycle.InFlight() {
		return
	}

	pos := o.deps.Oracle.Position()
	o.notes.BeginTurn(o.ledger.Turn()+1, pos)
	o.contradicted = o.notes.ValidateAgainstGroundTruth(pos)
	if len(o.contradicted) > 0 {
		o.log.Info("notes contradicted by ground truth", zap.Ints("ids", o.contradicted))
		o.rep.NotesChanged(o.notes.List())
		o.deps.Sessions.Save(o.snapshotSession())
	}

	var img *codec.Image
	if o.cfg.Screenshot && o.deps.Evidence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CaptureTimeout)
		var err error
		img, err = o.deps.Evidence.Capture(ctx)
		cancel()
		if err != nil {
			o.log.Warn("evidence capture failed, skipping tick", zap.Error(err))
			o.rep.Log(fmt.Sprintf("screenshot failed: %v", err))
			o.scheduleTick(o.cfg.Cadence)
			return
		}
	}

	text := projection.WrapPrompt(projection.ProjectToPrompt(o.projectionInput(pos)), o.cfg.Instruction)
	thinking := 0
	if o.session.Features.Thinking {
		thinking = o.cfg.ThinkingBudget
	}
	payload, err := codec.BuildPayload(codec.Request{
		Model:          o.session.Model,
		MaxTokens:      o.session.MaxTokens,
		Temperature:    o.session.Temperature,
		ThinkingBudget: thinking,
		System:         o.cfg.SystemPrompt,
		History:        o.session.History,
		Text:           text,
		Image:          img,
	})
	if err != nil {
		o.log.Error("build payload", zap.Error(err))
		o.scheduleTick(o.cfg.Cadence)
		return
	}

	epoch := o.epoch
	if err := o.lifecycle.Send(payload, func(out Outcome) { o.onOutcome(epoch, out) }); err != nil {
		o.log.Debug("tick skipped", zap.Error(err))
		return
	}
	o.pendingText = text
	o.log.Debug("turn requested", zap.Int("turn", o.ledger.Turn()+1), zap.Bool("image", img != nil))
}

func (o *Orchestrator) projectionInput(pos *groundtruth.Position) projection.Input {
	in := projection.Input{
		Turn:         o.ledger.Turn() + 1,
		Position:     pos,
		Recent:       o.ledger.Records(),
		Summary:      o.ledger.Summary(),
		Notes:        o.notes.List(),
		Contradicted: o.contradicted,
		Guarded:      o.guarded,
		FellBack:     o.fellBack,
	}
	if o.deps.Hints != nil && pos != nil {
		hints, err := o.deps.Hints.Hints(pos.MapGroup, pos.MapNum)
		if err != nil {
			o.log.Warn("hints unavailable", zap.Error(err))
		}
		in.Hints = hints
	}
	return in
}

// #endregion

// #region outcome

func (o *Orchestrator) onOutcome(epoch uint64, out Outcome) {
	if o.deps.Provenance != nil {
		if err := o.deps.Provenance.LogExchange(o.session.SessionID, o.ledger.Turn()+1, out); err != nil {
			o.log.Warn("provenance write failed", zap.Error(err))
		}
	}
	if epoch != o.epoch || o.state == StateStopped {
		return
	}

	switch out.Kind {
	case OutcomeSuccess:
		o.lastCode, o.lastError = CodeNone, ""
		o.handleReply(out)
	case OutcomeRecoverable:
		o.lastCode, o.lastError = out.Code, out.Detail
		o.pendingText = ""
		delay := o.retry.NextDelay(o.cfg.Cadence)
		o.rep.Log(fmt.Sprintf("request failed (%s): %s; retrying in %s", out.Code, out.Detail, delay))
		if o.state == StateRunning {
			o.scheduleTick(delay)
		}
		return
	case OutcomeFatal:
		o.fail(out)
		return
	}

	if o.state == StateRunning {
		o.scheduleTick(o.retry.NextDelay(o.cfg.Cadence))
	}
}

func (o *Orchestrator) handleReply(out Outcome) {
	text := out.Reply.Text
	o.lastResponse = text

	inputs, fellBack := directive.ParseInputs(text, o.cfg.Fallback)
	applied := o.notes.Apply(directive.ParseNotes(text), inputs)
	o.fellBack = fellBack
	o.guarded = applied.Guarded

	if rec, ok := o.ledger.CompleteTurn(o.issued, o.deps.Oracle.Position()); ok {
		o.recordTurn(rec)
	}
	o.ledger.BeginTurn()
	o.issued = inputs

	o.session.History = append(o.session.History,
		codec.Message{Role: codec.RoleUser, Text: o.pendingText},
		codec.Message{Role: codec.RoleAssistant, Text: text},
	)
	o.pendingText = ""
	o.session = session.Bound(o.session)
	o.deps.Sessions.Save(o.snapshotSession())

	if len(applied.Added)+len(applied.Cleared) > 0 {
		o.rep.NotesChanged(o.notes.List())
	}
	o.log.Info("turn",
		zap.Int("turn", o.ledger.Turn()),
		zap.Strings("inputs", directive.Strings(inputs)),
		zap.Bool("fallback", fellBack),
		zap.Ints("notes_added", applied.Added),
		zap.Ints("notes_cleared", applied.Cleared),
		zap.Ints("guarded", applied.Guarded),
		zap.Duration("latency", out.Latency),
	)
	o.queue.Enqueue(inputs)
}

func (o *Orchestrator) recordTurn(rec ledger.TurnRecord) {
	o.log.Info("verdict",
		zap.Int("turn", rec.TurnNumber),
		zap.String("result", string(rec.Result)),
		zap.String("reason", rec.Reason),
	)
	if rec.Result != ledger.ResultUnknown {
		seen := map[directive.Button]bool{}
		for _, in := range rec.Inputs {
			if !in.Button.Directional() || seen[in.Button] {
				continue
			}
			seen[in.Button] = true
			if ids := o.notes.ResolvePredictions(rec.TurnNumber, in.Button, rec.Result == ledger.ResultSuccess); len(ids) > 0 {
				o.log.Info("predictions resolved", zap.Ints("ids", ids), zap.String("result", string(rec.Result)))
			}
		}
	}
	if o.deps.Journal != nil {
		if err := o.deps.Journal.RecordTurn(o.session.SessionID, rec); err != nil {
			o.log.Warn("journal write failed", zap.Error(err))
		}
	}
}

// fail stops the run, asks the emulator for a snapshot and autosaves.
func (o *Orchestrator) fail(out Outcome) {
	o.lastCode, o.lastError = out.Code, out.Detail
	o.log.Error("fatal failure", zap.String("code", string(out.Code)), zap.String("detail", out.Detail))
	o.halt()

	if snap := o.deps.Snapshotter; snap != nil {
		timeout := o.cfg.CaptureTimeout
		o.deps.Sched.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := snap.SaveSnapshot(ctx); err != nil {
				o.deps.Sched.Post(func() { o.log.Warn("emulator snapshot failed", zap.Error(err)) })
			}
		})
	}
	o.deps.Sessions.Save(o.snapshotSession())
	o.rep.Error(out.Code, out.Detail)
}

func (o *Orchestrator) snapshotSession() session.State {
	st := o.session
	st.History = append([]codec.Message(nil), o.session.History...)
	st.Notes = o.notes.List()
	st.NextNoteID = o.notes.NextID()
	st.TurnCount = o.ledger.Turn()
	return st
}

// #endregion
