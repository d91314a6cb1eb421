package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/labels"
	"github.com/danielpatrickdp/ccs-cadence/internal/taxonomy"
)

var labelsOut string

// #region sessions

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List label sessions with their group histograms",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
}

func runSessionsCmd(_ *cobra.Command, _ []string) error {
	groups := []taxonomy.Group{taxonomy.Stationary, taxonomy.Locomotion, taxonomy.Transition}

	header := fmt.Sprintf("%-8s| %4s", "Session", "Len")
	for _, g := range groups {
		header += fmt.Sprintf("| %11s", g)
	}
	fmt.Println(styleHeader.Render(header + "| Sequence"))

	for _, s := range labels.Sessions() {
		var counts [3]int
		seq := make([]string, s.Len())
		for i, l := range s.Labels() {
			if int(l) < len(counts) {
				counts[l]++
			}
			seq[i] = fmt.Sprintf("%d", l)
		}
		line := fmt.Sprintf("%-8s| %4d", s.ID(), s.Len())
		for _, g := range groups {
			line += fmt.Sprintf("| %11d", counts[g])
		}
		fmt.Printf("%s| %s\n", line, styleDim.Render(strings.Join(seq, "")))
	}
	return nil
}

// #endregion sessions

// #region profile

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Parameter profile utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as TOML",
		Args:  cobra.NoArgs,
		RunE:  runProfileShowCmd,
	})
	return cmd
}

func runProfileShowCmd(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "# watchdog_ms = %d (2 x interval_quiet)\n", cfg.BLE.WatchdogMs())
	return config.WriteTOML(os.Stdout, cfg)
}

// #endregion profile

// #region labels

func newLabelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Label session utilities",
	}
	export := &cobra.Command{
		Use:   "export",
		Short: "Render the session registry as a C header",
		Args:  cobra.NoArgs,
		RunE:  runLabelsExportCmd,
	}
	export.Flags().StringVar(&labelsOut, "out", "", "write to this file instead of stdout")
	cmd.AddCommand(export)
	return cmd
}

func runLabelsExportCmd(_ *cobra.Command, _ []string) error {
	if labelsOut == "" {
		return labels.WriteHeader(os.Stdout)
	}
	f, err := os.Create(labelsOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", labelsOut, err)
	}
	if err := labels.WriteHeader(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", labelsOut, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %d sessions to %s\n", labels.Count(), labelsOut)
	return nil
}

// #endregion labels
