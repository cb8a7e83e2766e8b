package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/sqlite"
	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent calls from the call log",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of calls to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return fmt.Errorf("call history is not persisted with the memory driver")
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	entries, err := sqlite.NewCallLogStore(db).List(ctx, historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tID\tACTION\tSTATUS\tOUTCOME\tATTEMPTS\tDURATION")
	for _, e := range entries {
		outcome := string(e.Outcome)
		if e.ErrorCode != "" {
			outcome += " (" + e.ErrorCode + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%dms\n",
			e.Timestamp.Format(time.RFC3339), e.ID, e.Action, e.StatusCode, outcome, e.Attempts, e.DurationMs)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printSummary(cmd, calllog.Summarize(entries))
	return nil
}

func printSummary(cmd *cobra.Command, s calllog.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%d calls, %d retries, avg %dms, %d bytes out, %d bytes in\n",
		s.Calls, s.Retries, s.AvgLatencyMs, s.BytesOut, s.BytesIn)
	for _, o := range []calllog.Outcome{
		calllog.OutcomeOK, calllog.OutcomeVendorError, calllog.OutcomeTransportError, calllog.OutcomeParseError,
	} {
		if n := s.ByOutcome[o]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", o, n)
		}
	}
}
