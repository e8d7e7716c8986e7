package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobharvest/internal/config"
	"github.com/nao1215/jobharvest/internal/report"
	"github.com/nao1215/jobharvest/internal/store"
)

// defaultHistoryLimit is the number of sessions listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded harvest sessions",
		Long: `History reads the local database written by harvest.

Without arguments it prints a Markdown table of the most recent sessions.
With --records it prints the records of one session as JSON lines, and
with --summary it prints the stored summary of one session.

Examples:
  # Last 20 sessions
  jobharvest history

  # Every session
  jobharvest history --limit 0

  # Records of one session
  jobharvest history --records 6f1c2b0e-8d8c-4a1e-9f55-3c8f0d3a2b10 > jobs.jsonl`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of sessions to list (0 lists all)")
	cmd.Flags().String("records", "", "Print the records of this run as JSON lines")
	cmd.Flags().String("summary", "", "Print the summary of this run")
	cmd.Flags().StringP("format", "f", config.DefaultReportFormat, "Summary format: text, json or markdown")
	cmd.Flags().String("db-dir", "", "Local database directory (default: XDG data directory)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	recordsRun, err := cmd.Flags().GetString("records")
	if err != nil {
		return err
	}
	summaryRun, err := cmd.Flags().GetString("summary")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := store.Open(dbDir, store.Options{})
	if err != nil {
		return fmt.Errorf("no harvest history in %s: %w", dbDir, err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case recordsRun != "":
		records, err := db.Records(ctx, recordsRun)
		if err != nil {
			return err
		}
		sink := store.NewJSONLines(out)
		for _, rec := range records {
			if err := sink.Append(ctx, rec); err != nil {
				return err
			}
		}
		return nil

	case summaryRun != "":
		summary, err := db.Summary(ctx, summaryRun)
		if err != nil {
			return err
		}
		if summary == nil {
			return fmt.Errorf("run %s has not finished", summaryRun)
		}
		writer, err := report.New(report.Format(format), out, getVersion())
		if err != nil {
			return err
		}
		_, err = writer.Write(summary)
		return err
	}

	return listSessions(cmd, db, limit, out)
}

func listSessions(cmd *cobra.Command, db *store.RecordStore, limit int, out io.Writer) error {
	sessions, err := db.ListSessions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	rows := make([]report.SessionRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, report.SessionRow{
			RunID:      s.RunID,
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
			Outcome:    s.Outcome,
			Saved:      s.RecordsSaved,
			Desired:    s.Criteria.DesiredCount,
			Keyword:    s.Criteria.Keyword,
		})
	}
	if err := report.WriteSessions(out, rows); err != nil {
		return fmt.Errorf("failed to write session history: %w", err)
	}
	return nil
}
