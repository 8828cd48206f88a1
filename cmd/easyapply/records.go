package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"easyapply-engine/internal/domain"
	"easyapply-engine/internal/ledger"
	"easyapply-engine/internal/store"
)

var (
	historyLimit  int
	historyRun    string
	historyStatus string
	historyWindow string
	historyPrune  time.Duration
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the applied-jobs ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every job recorded as applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		recs := ledger.Open(cfg.Ledger.Path, logger).Records()
		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "JOB\tAPPLIED\tTITLE\tCOMPANY")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.JobID, r.AppliedAt.Format(time.RFC3339), r.Title, r.Company)
		}
		fmt.Fprintf(w, "%d job(s)\n", len(recs))
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent job outcomes from the history database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := store.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		if historyPrune > 0 {
			n, err := store.CleanupOldOutcomes(cmd.Context(), db.Pool, historyPrune)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d outcome(s)\n", n)
		}

		rows, err := store.ListOutcomes(cmd.Context(), db.Pool, store.ListOutcomesOpts{
			RunID:  historyRun,
			Status: domain.Status(historyStatus),
			Window: historyWindow,
			Limit:  historyLimit,
		})
		if err != nil {
			return err
		}
		w := table(cmd.OutOrStdout())
		fmt.Fprintln(w, "WHEN\tRUN\tJOB\tSTATUS\tTITLE\tCOMPANY\tDETAIL")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%.8s\t%s\t%s\t%s\t%s\t%s\n",
				r.CreatedAt.Local().Format("2006-01-02 15:04"), r.RunID, r.JobID, r.Status, r.Title, r.Company, r.Detail)
		}
		return w.Flush()
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerListCmd)

	f := historyCmd.Flags()
	f.IntVarP(&historyLimit, "limit", "n", 50, "rows to show")
	f.StringVar(&historyRun, "run", "", "only this run ID")
	f.StringVar(&historyStatus, "status", "", "only this status (applied, skipped_blocked, ...)")
	f.StringVar(&historyWindow, "window", "all", "24h, 7d or all")
	f.DurationVar(&historyPrune, "prune", 0, "delete outcomes older than this first")
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}
