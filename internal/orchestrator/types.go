package orchestrator

// #region imports
import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
	"github.com/danielpatrickdp/turnpilot/internal/ledger"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
	"github.com/danielpatrickdp/turnpilot/internal/session"
)

// #endregion

// #region errors

var (
	ErrRequestInFlight = errors.New("request already in flight")
	ErrNotRunning      = errors.New("orchestrator not running")
	ErrMissingAPIKey   = errors.New("no API key configured")
)

// #endregion

// #region run-state

// RunState is the orchestrator's lifecycle state.
type RunState string

const (
	StateStopped RunState = "STOPPED"
	StateRunning RunState = "RUNNING"
	StatePaused  RunState = "PAUSED"
)

// #endregion

// #region outcome

// OutcomeKind is the classified result of one exchange.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeRecoverable OutcomeKind = "recoverable"
	OutcomeFatal       OutcomeKind = "fatal"
)

// FailureCode names why an exchange failed.
type FailureCode string

const (
	CodeNone           FailureCode = ""
	CodeNetwork        FailureCode = "network"
	CodeTimeout        FailureCode = "timeout"
	CodeAPIError       FailureCode = "api_error"
	CodeHTTPStatus     FailureCode = "http_status"
	CodeParseError     FailureCode = "parse_error"
	CodeAuthentication FailureCode = "authentication_error"
	CodePermission     FailureCode = "permission_error"
	CodeRateLimit      FailureCode = "rate_limit_error"
	CodeOverloaded     FailureCode = "overloaded_error"
	CodeBilling        FailureCode = "billing_error"
	CodeMaxConsecutive FailureCode = "max_consecutive_failures"
)

// Outcome is delivered exactly once per Send.
type Outcome struct {
	Kind       OutcomeKind
	Code       FailureCode
	Detail     string
	Status     int
	Reply      codec.Reply // OutcomeSuccess only
	Latency    time.Duration
	ExchangeID string
}

// #endregion

// #region collaborators

// Reporter is the presentation layer. Calls happen on the loop.
type Reporter interface {
	Log(msg string)
	Error(code FailureCode, detail string)
	StateChanged(s RunState)
	NotesChanged(list []notes.Note)
}

// EvidenceSource captures the current screen.
type EvidenceSource interface {
	Capture(ctx context.Context) (*codec.Image, error)
}

// Snapshotter asks the emulator to save its state.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context) error
}

// SessionStore persists session state. Load never fails; Save is best-effort.
type SessionStore interface {
	Load() session.State
	Save(st session.State)
}

// TurnJournal archives completed turn records.
type TurnJournal interface {
	RecordTurn(sessionID string, rec ledger.TurnRecord) error
}

// ExchangeLog records one provenance row per exchange.
type ExchangeLog interface {
	LogExchange(sessionID string, turn int, o Outcome) error
}

// HintSource supplies per-direction history for the current map.
type HintSource interface {
	Hints(mapGroup, mapNum int) ([]string, error)
}

type nopReporter struct{}

func (nopReporter) Log(string)                {}
func (nopReporter) Error(FailureCode, string) {}
func (nopReporter) StateChanged(RunState)     {}
func (nopReporter) NotesChanged([]notes.Note) {}

// #endregion
