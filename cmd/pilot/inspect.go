package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/journal"
	"github.com/danielpatrickdp/turnpilot/internal/logging"
)

// #region command

var (
	inspectDB       string
	inspectSession  string
	inspectLast     int
	inspectSessions bool
	inspectJSON     bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show journaled turns and exchanges",
	Long: `Reads the journal database. By default prints the most recent turns of
every session; --session narrows to one session and adds its exchange log;
--sessions prints one line per session instead.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "journal database (defaults to paths.journal)")
	inspectCmd.Flags().StringVar(&inspectSession, "session", "", "only this session id")
	inspectCmd.Flags().IntVarP(&inspectLast, "last", "n", 20, "number of turns to show")
	inspectCmd.Flags().BoolVar(&inspectSessions, "sessions", false, "list sessions")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")
}

// #endregion command

// #region inspect

func runInspect(cmd *cobra.Command, _ []string) error {
	path := inspectDB
	if path == "" {
		path = cfg.Paths.Journal
	}
	store, err := journal.NewStore(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if inspectSessions {
		list, err := store.Sessions()
		if err != nil {
			return err
		}
		if inspectJSON {
			return writeJSON(out, list)
		}
		printSessions(out, list)
		return nil
	}

	entries, err := store.RecentTurns(inspectSession, inspectLast)
	if err != nil {
		return err
	}
	var exchanges []logging.ProvenanceEntry
	if inspectSession != "" {
		exchanges, err = logging.RecentDecisions(store.DB(), inspectSession, inspectLast)
		if err != nil {
			return err
		}
	}

	if inspectJSON {
		return writeJSON(out, struct {
			Turns     []journal.Entry           `json:"turns"`
			Exchanges []logging.ProvenanceEntry `json:"exchanges,omitempty"`
		}{entries, exchanges})
	}
	printTurns(out, entries)
	if len(exchanges) > 0 {
		fmt.Fprintln(out)
		printExchanges(out, exchanges)
	}
	return nil
}

// #endregion inspect

// #region output

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSessions(w io.Writer, list []journal.SessionSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no sessions journaled")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tTURNS\tSUCCESS\tFAILED\tUNKNOWN\tLAST")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.SessionID, s.Turns, s.Success, s.Failed, s.Unknown, humanize.Time(s.LastAt))
	}
	tw.Flush()
}

func printTurns(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no turns journaled")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tTURN\tINPUTS\tRESULT\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			shortID(e.SessionID), e.TurnNumber, strings.Join(directive.Strings(e.Inputs), ", "), e.Result, e.Reason)
	}
	tw.Flush()
}

func printExchanges(w io.Writer, list []logging.ProvenanceEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TURN\tOUTCOME\tCODE\tSTATUS\tLATENCY\tWHEN")
	for _, e := range list {
		code := e.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			e.Turn, e.Outcome, code, e.Status, e.Latency, humanize.Time(e.CreatedAt))
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
