package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ccs-cadence/internal/store"
)

var (
	inspectDB    string
	inspectLast  int
	inspectRun   string
	inspectSteps bool
	inspectJSON  bool
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored runs or show one run's transitions",
		Args:  cobra.NoArgs,
		RunE:  runInspectCmd,
	}
	cmd.Flags().StringVar(&inspectDB, "db", "", "path to the run database (required)")
	cmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent runs")
	cmd.Flags().StringVar(&inspectRun, "run", "", "show detail for one run id (prefix allowed)")
	cmd.Flags().BoolVar(&inspectSteps, "steps", false, "with --run, print every step instead of transitions only")
	cmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
	return cmd
}

func runInspectCmd(_ *cobra.Command, _ []string) error {
	if inspectDB == "" {
		return errors.New("--db is required")
	}
	if _, err := os.Stat(inspectDB); err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	st, err := store.NewStore(inspectDB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	if inspectRun != "" {
		return runDetail(st, inspectRun)
	}
	return runList(st, inspectLast)
}

// #region list

type runRow struct {
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	Profile   string          `json:"profile"`
	StartedAt string          `json:"started_at"`
	Summary   json.RawMessage `json:"summary,omitempty"`
}

// runSummary mirrors the stored summary JSON.
type runSummary struct {
	TotalSteps  int     `json:"total_steps"`
	Transitions int     `json:"transitions"`
	Fallbacks   int     `json:"fallbacks"`
	FinalMode   string  `json:"final_mode"`
	FinalErr    string  `json:"final_err"`
	MeanCCS     float64 `json:"mean_ccs"`
}

func runList(st *store.Store, last int) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	if inspectJSON {
		rows := make([]runRow, len(runs))
		for i, r := range runs {
			rows[i] = runRow{
				RunID:     r.RunID,
				Source:    r.Source,
				Profile:   r.Profile,
				StartedAt: r.StartedAt.Format("2006-01-02T15:04:05Z"),
			}
			if r.SummaryJSON != "" {
				rows[i].Summary = json.RawMessage(r.SummaryJSON)
			}
		}
		return printJSON(rows)
	}

	fmt.Println(styleHeader.Render(fmt.Sprintf("%-10s| %-24s| %-9s| %6s| %5s| %4s| %-10s| %s",
		"Run", "Source", "Profile", "Steps", "Trans", "Fb", "Final", "Started")))
	fmt.Printf("%-10s+%-25s+%-10s+%7s+%6s+%5s+%-11s+%s\n",
		"----------", "-------------------------", "----------", "-------", "------", "-----", "-----------", "--------------------")
	for _, r := range runs {
		var s runSummary
		final := styleDim.Width(10).Render("running")
		if r.SummaryJSON != "" {
			if err := json.Unmarshal([]byte(r.SummaryJSON), &s); err != nil {
				return fmt.Errorf("parse summary of %s: %w", shortID(r.RunID), err)
			}
			final = renderModeName(s.FinalMode, 10)
		}
		fmt.Printf("%-10s| %-24s| %-9s| %6d| %5d| %4d| %s| %s\n",
			shortID(r.RunID), r.Source, r.Profile, s.TotalSteps, s.Transitions, s.Fallbacks,
			final, r.StartedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list

// #region detail

type transitionRow struct {
	TMs        int64   `json:"t_ms"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	IntervalMs int64   `json:"interval_ms"`
	CCS        float64 `json:"ccs"`
	Reason     string  `json:"reason,omitempty"`
	Err        string  `json:"err,omitempty"`
}

type detailOutput struct {
	Run         runRow          `json:"run"`
	Transitions []transitionRow `json:"transitions"`
	Steps       []store.StepRow `json:"steps,omitempty"`
}

func runDetail(st *store.Store, id string) error {
	run, err := findRun(st, id)
	if err != nil {
		return err
	}
	transitions, err := st.GetTransitions(run.RunID)
	if err != nil {
		return err
	}
	var steps []store.StepRow
	if inspectSteps {
		if steps, err = st.GetSteps(run.RunID); err != nil {
			return err
		}
	}

	if inspectJSON {
		out := detailOutput{
			Run: runRow{
				RunID:     run.RunID,
				Source:    run.Source,
				Profile:   run.Profile,
				StartedAt: run.StartedAt.Format("2006-01-02T15:04:05Z"),
			},
			Transitions: make([]transitionRow, len(transitions)),
			Steps:       steps,
		}
		if run.SummaryJSON != "" {
			out.Run.Summary = json.RawMessage(run.SummaryJSON)
		}
		for i, t := range transitions {
			out.Transitions[i] = transitionRow{
				TMs: t.TMs, From: t.FromMode, To: t.ToMode, IntervalMs: t.IntervalMs,
				CCS: t.CCS, Reason: t.Reason, Err: t.Err,
			}
		}
		return printJSON(out)
	}

	fmt.Printf("Run:     %s\n", run.RunID)
	fmt.Printf("Source:  %s\n", run.Source)
	fmt.Printf("Profile: %s\n", run.Profile)
	fmt.Printf("Started: %s\n\n", run.StartedAt.Format("2006-01-02T15:04:05Z"))

	if inspectSteps {
		printStepRows(steps)
		fmt.Println()
	}

	if len(transitions) == 0 {
		fmt.Println(styleDim.Render("no transitions"))
		return nil
	}
	fmt.Println(styleHeader.Render(fmt.Sprintf("%8s| %-10s| %-10s| %6s| %6s| %s",
		"T(ms)", "From", "To", "Adv", "CCS", "Reason")))
	fmt.Printf("%8s+%11s+%11s+%7s+%7s+%s\n",
		"--------", "-----------", "-----------", "-------", "-------", "--------")
	for _, t := range transitions {
		reason := t.Reason
		if t.Err != "" {
			reason = fmt.Sprintf("%s [%s]", reason, t.Err)
		}
		fmt.Printf("%8d| %s| %s| %6d| %6.3f| %s\n",
			t.TMs, renderModeName(t.FromMode, 10), renderModeName(t.ToMode, 10), t.IntervalMs, t.CCS, reason)
	}
	return nil
}

func printStepRows(steps []store.StepRow) {
	fmt.Println(styleHeader.Render(fmt.Sprintf("%5s| %8s| %5s| %6s| %6s| %6s| %-10s| %6s",
		"Step", "T(ms)", "Class", "U", "S", "CCS", "Mode", "Adv")))
	for _, s := range steps {
		fmt.Printf("%5d| %8d| %5d| %6.3f| %6.3f| %6.3f| %s| %6d\n",
			s.Index, s.TMs, s.ClassID, s.U, s.S, s.CCS, renderModeName(s.Mode, 10), s.IntervalMs)
	}
}

// findRun resolves a full id or an unambiguous prefix among recent runs.
func findRun(st *store.Store, id string) (store.RunRecord, error) {
	runs, err := st.ListRuns(1000)
	if err != nil {
		return store.RunRecord{}, err
	}
	var match []store.RunRecord
	for _, r := range runs {
		if r.RunID == id {
			return r, nil
		}
		if len(id) <= len(r.RunID) && r.RunID[:len(id)] == id {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return store.RunRecord{}, fmt.Errorf("run %s not found", id)
	case 1:
		return match[0], nil
	default:
		return store.RunRecord{}, fmt.Errorf("run prefix %s is ambiguous (%d matches)", id, len(match))
	}
}

// #endregion detail
