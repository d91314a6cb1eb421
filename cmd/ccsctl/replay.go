package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/harness"
	"github.com/danielpatrickdp/ccs-cadence/internal/labels"
	"github.com/danielpatrickdp/ccs-cadence/internal/store"
)

var (
	replayFixture string
	replaySession string
	replayEvents  int
	replayCadence int64
	replayU       float64
	replayDB      string
	replayJSON    bool
)

// errDiverged signals a run that broke a property or missed an expectation.
var errDiverged = errors.New("replay diverged")

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a fixture or a label session through the pipeline",
		Long: "Replays either a JSON fixture (--fixture) or a label session (--session)\n" +
			"and prints one row per event. Fixtures carry their own profile and\n" +
			"overrides; --profile and --config apply to sessions only.",
		Args: cobra.NoArgs,
		RunE: runReplayCmd,
	}
	cmd.Flags().StringVar(&replayFixture, "fixture", "", "path to fixture JSON")
	cmd.Flags().StringVar(&replaySession, "session", "", "label session id (01..10)")
	cmd.Flags().IntVar(&replayEvents, "events", 0, "events to draw from the session (default: one full cycle)")
	cmd.Flags().Int64Var(&replayCadence, "cadence", 1000, "milliseconds between session events")
	cmd.Flags().Float64Var(&replayU, "u", 0.1, "uncertainty u = 1 - max(p) assigned to session events")
	cmd.Flags().StringVar(&replayDB, "db", "", "store the run in this sqlite database")
	cmd.Flags().BoolVar(&replayJSON, "json", false, "output as JSON instead of table")
	return cmd
}

func runReplayCmd(_ *cobra.Command, _ []string) error {
	if (replayFixture == "") == (replaySession == "") {
		return errors.New("exactly one of --fixture or --session is required")
	}

	var (
		cfg     config.Config
		steps   []harness.Step
		source  string
		fixture *harness.Fixture
		loadErr error
	)
	if replayFixture != "" {
		fixture, loadErr = harness.LoadFixture(replayFixture)
		if loadErr != nil {
			return loadErr
		}
		if cfg, loadErr = fixture.Config(); loadErr != nil {
			return loadErr
		}
		steps = fixture.Steps
		source = "fixture:" + strings.TrimSuffix(filepath.Base(replayFixture), ".json")
	} else {
		if cfg, loadErr = loadConfig(); loadErr != nil {
			return loadErr
		}
		cur, err := labels.Open(replaySession)
		if err != nil {
			return err
		}
		n := replayEvents
		if n <= 0 {
			n = cur.Session().Len()
		}
		steps = harness.FromSession(&cur, n, 0, replayCadence, replayU)
		source = "session:" + replaySession
	}

	records, err := harness.RunConfig(cfg, steps)
	if err != nil {
		return err
	}
	report := harness.Check(records, cfg)
	summary := harness.Summarize(records)
	var mismatches []string
	if fixture != nil {
		mismatches = fixture.Verify(records)
	}

	if replayDB != "" {
		runID, err := storeRun(replayDB, source, cfg, records, summary)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "stored run %s in %s\n", runID, replayDB)
	}

	if replayJSON {
		if err := printJSON(replayOutput{
			Source:     source,
			Profile:    string(cfg.Profile),
			Records:    toReplayRows(records),
			Metrics:    toMetricRows(report),
			Mismatches: mismatches,
		}); err != nil {
			return err
		}
	} else {
		printReplayTable(records)
		printReport(report, summary, mismatches)
	}

	if !report.Passed || len(mismatches) > 0 {
		return errDiverged
	}
	return nil
}

func storeRun(path, source string, cfg config.Config, records []harness.Record, summary harness.Summary) (string, error) {
	st, err := store.NewStore(path)
	if err != nil {
		return "", fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	run, err := st.BeginRun(source, cfg)
	if err != nil {
		return "", err
	}
	if err := st.AppendSteps(run.RunID, records); err != nil {
		return "", err
	}
	if err := st.FinishRun(run.RunID, summary); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// #region output

type replayRow struct {
	Index      int     `json:"index"`
	T          int64   `json:"t"`
	Class      string  `json:"class"`
	U          float64 `json:"u"`
	S          float64 `json:"s"`
	CCS        float64 `json:"ccs"`
	Mode       string  `json:"mode"`
	IntervalMs int64   `json:"interval_ms"`
	Changed    bool    `json:"changed"`
	Reason     string  `json:"reason"`
	Err        string  `json:"err,omitempty"`
}

type metricRow struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Pass   bool    `json:"pass"`
	Reason string  `json:"reason,omitempty"`
}

type replayOutput struct {
	Source     string      `json:"source"`
	Profile    string      `json:"profile"`
	Records    []replayRow `json:"records"`
	Metrics    []metricRow `json:"metrics"`
	Mismatches []string    `json:"mismatches,omitempty"`
}

func toReplayRows(records []harness.Record) []replayRow {
	rows := make([]replayRow, len(records))
	for i, r := range records {
		rows[i] = replayRow{
			Index:      r.Index,
			T:          r.T,
			Class:      r.Class.String(),
			U:          r.U,
			S:          r.S,
			CCS:        r.CCS,
			Mode:       r.Mode.String(),
			IntervalMs: r.IntervalMs,
			Changed:    r.Changed,
			Reason:     r.Reason,
			Err:        string(r.Err),
		}
	}
	return rows
}

func toMetricRows(report harness.Report) []metricRow {
	rows := make([]metricRow, len(report.Metrics))
	for i, m := range report.Metrics {
		rows[i] = metricRow{Name: m.Name, Value: m.Value, Pass: m.Pass, Reason: m.Reason}
	}
	return rows
}

func printReplayTable(records []harness.Record) {
	fmt.Println(styleHeader.Render(fmt.Sprintf("%5s| %8s| %-20s| %6s| %6s| %6s| %-10s| %6s| %s",
		"Step", "T(ms)", "Class", "U", "S", "CCS", "Mode", "Adv", "Reason")))
	fmt.Printf("%5s+%9s+%21s+%7s+%7s+%7s+%11s+%7s+%s\n",
		"-----", "---------", "---------------------", "-------", "-------", "-------", "-----------", "-------", "--------")

	for _, r := range records {
		reason := r.Reason
		if r.Err != "" {
			reason = fmt.Sprintf("%s [%s]", reason, r.Err)
		}
		if !r.Changed {
			reason = styleDim.Render(reason)
		}
		fmt.Printf("%5d| %8d| %-20s| %6.3f| %6.3f| %6.3f| %s| %6d| %s\n",
			r.Index, r.T, r.Class, r.U, r.S, r.CCS, renderMode(r.Mode, 10), r.IntervalMs, reason)
	}
}

func printReport(report harness.Report, summary harness.Summary, mismatches []string) {
	fmt.Println()
	for _, m := range report.Metrics {
		line := fmt.Sprintf("%-26s %s", m.Name, renderVerdict(m.Pass))
		if !m.Pass {
			line += fmt.Sprintf("  (%g violations: %s)", m.Value, m.Reason)
		}
		fmt.Println(line)
	}
	for _, msg := range mismatches {
		fmt.Println(styleFail.Render("MISMATCH ") + msg)
	}

	fmt.Println()
	fmt.Printf("Steps: %d  Transitions: %d  Fallbacks: %d  Final: %s",
		summary.TotalSteps, summary.Transitions, summary.Fallbacks, renderMode(summary.FinalMode, 0))
	if summary.FinalErr != "" {
		fmt.Printf(" [%s]", summary.FinalErr)
	}
	fmt.Printf("\nCCS mean %.3f  max %.3f\n", summary.MeanCCS, summary.MaxCCS)
}

// #endregion output
