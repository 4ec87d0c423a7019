package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
	"github.com/danielpatrickdp/turnpilot/internal/emulator"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/journal"
	"github.com/danielpatrickdp/turnpilot/internal/logging"
	"github.com/danielpatrickdp/turnpilot/internal/loop"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
	"github.com/danielpatrickdp/turnpilot/internal/orchestrator"
	"github.com/danielpatrickdp/turnpilot/internal/session"
)

// #region command

var runFor time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play until interrupted or a fatal error",
	Long: `Starts the turn loop against the emulator files named in the config:
the position snapshot, the screenshot and the command stream. The session is
restored from and saved to the session file; every verified turn goes to the
journal database.`,
	Args: cobra.NoArgs,
	RunE: runPilot,
}

func init() {
	runCmd.Flags().DurationVar(&runFor, "for", 0, "stop after this long (0 runs until interrupted)")
}

// #endregion command

// #region run

func runPilot(cmd *cobra.Command, _ []string) error {
	systemPrompt, err := cfg.SystemPrompt()
	if err != nil {
		return err
	}

	store, err := journal.NewStore(cfg.Paths.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	watcher, err := groundtruth.NewWatcher(cfg.Paths.Position, logger)
	if err != nil {
		return fmt.Errorf("watch position: %w", err)
	}
	defer watcher.Close()

	commands, err := emulator.OpenCommandLog(cfg.Paths.Commands, logger)
	if err != nil {
		return err
	}
	defer commands.Close()

	lp := loop.New()
	defer lp.Close()

	rep := newConsoleReporter(logger)
	deps := orchestrator.Deps{
		Sched:       lp,
		Transport:   codec.NewCodecClient(cfg.APIKey, cfg.BaseURL),
		Oracle:      watcher,
		Sink:        commands,
		Sessions:    session.NewStore(cfg.Paths.Session, logger),
		Snapshotter: commands,
		Journal:     store,
		Provenance:  provenanceLog{store: store},
		Hints:       store,
		Reporter:    rep,
		Log:         logger,
	}
	if cfg.Screenshot {
		deps.Evidence = emulator.NewScreenshotFile(cfg.Paths.Screenshot, 10*time.Second)
	}

	var orch *orchestrator.Orchestrator
	var startErr error
	lp.Do(func() {
		orch, startErr = orchestrator.New(cfg.Orchestrator(systemPrompt), deps)
		if startErr == nil {
			startErr = orch.Start()
		}
	})
	if startErr != nil {
		return startErr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		lp.Do(orch.Stop)
		logger.Info("run ended", zap.Error(context.Cause(ctx)))
		return nil
	case <-rep.stopped:
		var code orchestrator.FailureCode
		var detail string
		lp.Do(func() { code, detail = orch.LastError() })
		if code == orchestrator.CodeNone {
			return nil
		}
		return fmt.Errorf("run stopped: %s: %s", code, detail)
	}
}

// #endregion run

// #region adapters

// consoleReporter surfaces orchestrator events through the logger and
// signals when the run stops on its own.
type consoleReporter struct {
	log     *zap.Logger
	stopped chan struct{}
	started bool
}

func newConsoleReporter(log *zap.Logger) *consoleReporter {
	return &consoleReporter{log: log.Named("pilot"), stopped: make(chan struct{}, 1)}
}

func (r *consoleReporter) Log(msg string) { r.log.Info(msg) }

func (r *consoleReporter) Error(code orchestrator.FailureCode, detail string) {
	r.log.Error("run error", zap.String("code", string(code)), zap.String("detail", detail))
}

func (r *consoleReporter) StateChanged(s orchestrator.RunState) {
	switch s {
	case orchestrator.StateRunning:
		r.started = true
	case orchestrator.StateStopped:
		if r.started {
			select {
			case r.stopped <- struct{}{}:
			default:
			}
		}
	}
}

func (r *consoleReporter) NotesChanged(list []notes.Note) {
	for _, n := range list {
		r.log.Debug("note", zap.Int("id", n.ID), zap.String("status", string(n.Status)), zap.String("content", n.Content))
	}
}

// provenanceLog writes one provenance row per exchange into the journal database.
type provenanceLog struct {
	store *journal.Store
}

func (p provenanceLog) LogExchange(sessionID string, turn int, o orchestrator.Outcome) error {
	if p.store == nil {
		return errors.New("provenance: no journal")
	}
	return logging.LogDecision(p.store.DB(), logging.ProvenanceEntry{
		SessionID:  sessionID,
		ExchangeID: o.ExchangeID,
		Turn:       turn,
		Outcome:    string(o.Kind),
		Code:       string(o.Code),
		Detail:     o.Detail,
		Status:     o.Status,
		Latency:    o.Latency,
	})
}

// #endregion adapters
