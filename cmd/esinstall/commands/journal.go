package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/stores"
	"github.com/openfroyo/esinstall/pkg/telemetry"
)

// journalRecorder persists finished phase runs to the SQLite journal.
type journalRecorder struct {
	journal stores.Journal
	version string
}

var _ engine.Recorder = (*journalRecorder)(nil)

func (r *journalRecorder) RecordPhase(ctx context.Context, run *engine.PhaseRun) error {
	rec := phaseRunRecord(run, r.version)
	rec.TraceID = telemetry.TraceID(ctx)
	return r.journal.SavePhaseRun(ctx, rec)
}

// phaseRunRecord converts an orchestrator run into its journal row.
func phaseRunRecord(run *engine.PhaseRun, version string) *stores.PhaseRunRecord {
	rec := &stores.PhaseRunRecord{
		ID:         run.ID,
		Phase:      string(run.Phase),
		Status:     string(run.Status),
		Version:    version,
		StartedAt:  run.StartedAt,
		DurationMS: run.Duration.Milliseconds(),
	}
	if !run.CompletedAt.IsZero() {
		completed := run.CompletedAt
		rec.CompletedAt = &completed
	}
	if run.Err != nil {
		msg := run.Err.Error()
		rec.Error = &msg
	}

	for i, task := range run.Tasks {
		tr := &stores.TaskRunRecord{
			ID:         uuid.New().String(),
			PhaseRunID: run.ID,
			Name:       task.Name,
			Position:   i,
			Status:     string(task.Status),
			DurationMS: task.Duration.Milliseconds(),
		}
		if !task.StartedAt.IsZero() {
			started := task.StartedAt
			tr.StartedAt = &started
		}
		if task.Error != "" {
			msg := task.Error
			tr.Error = &msg
		}
		rec.Tasks = append(rec.Tasks, tr)
	}
	return rec
}

func openJournal(ctx context.Context, path string) (*stores.SQLiteJournal, error) {
	journal, err := stores.NewSQLiteJournal(stores.JournalConfig{Path: path})
	if err != nil {
		return nil, err
	}
	if err := journal.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open phase journal: %w", err)
	}
	if err := journal.Migrate(ctx); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to migrate phase journal: %w", err)
	}
	return journal, nil
}

func newJournalCommand() *cobra.Command {
	var (
		db    string
		phase string
		id    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded phase runs",
		Long: `Journal lists the phase runs recorded with --journal-db, newest first.

With --id it shows a single run together with the outcome of every task.`,
		Example: `  # Last 20 runs
  esinstall journal --db /var/lib/esinstall/journal.db

  # Failed install details
  esinstall journal --db journal.db --phase install
  esinstall journal --db journal.db --id 3f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				db = journalDB
			}
			if db == "" {
				return fmt.Errorf("--db is required")
			}

			journal, err := openJournal(cmd.Context(), db)
			if err != nil {
				return err
			}
			defer journal.Close()

			out := cmd.OutOrStdout()
			if id != "" {
				run, err := journal.GetPhaseRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, run)
				}
				printPhaseRun(out, run)
				return nil
			}

			var filter *string
			if phase != "" {
				if err := engine.PhaseKind(phase).Validate(); err != nil {
					return err
				}
				filter = &phase
			}
			runs, err := journal.ListPhaseRuns(cmd.Context(), filter, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, runs)
			}
			printPhaseRuns(out, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "journal database path (default: --journal-db)")
	cmd.Flags().StringVar(&phase, "phase", "", "only list runs of this phase")
	cmd.Flags().StringVar(&id, "id", "", "show a single run with its tasks")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func printPhaseRuns(w io.Writer, runs []*stores.PhaseRunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No phase runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHASE\tSTATUS\tVERSION\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Phase, r.Status, r.Version,
			r.StartedAt.Local().Format(time.DateTime),
			time.Duration(r.DurationMS)*time.Millisecond)
	}
	_ = tw.Flush()
}

func printPhaseRun(w io.Writer, r *stores.PhaseRunRecord) {
	fmt.Fprintf(w, "Run:      %s\n", r.ID)
	fmt.Fprintf(w, "Phase:    %s\n", r.Phase)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	fmt.Fprintf(w, "Version:  %s\n", r.Version)
	if r.TraceID != "" {
		fmt.Fprintf(w, "Trace:    %s\n", r.TraceID)
	}
	fmt.Fprintf(w, "Started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(r.DurationMS)*time.Millisecond)
	if r.Error != nil {
		fmt.Fprintf(w, "Error:    %s\n", *r.Error)
	}
	if len(r.Tasks) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTASK\tSTATUS\tDURATION\tERROR")
	for _, t := range r.Tasks {
		errText := ""
		if t.Error != nil {
			errText = *t.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.Position, t.Name, t.Status,
			time.Duration(t.DurationMS)*time.Millisecond, errText)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
