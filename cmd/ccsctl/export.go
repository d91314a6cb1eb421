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
	exportDB  string
	exportRun string
	exportOut string
)

func newFixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Fixture utilities",
	}
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a stored run as a replayable JSON fixture",
		Args:  cobra.NoArgs,
		RunE:  runFixtureExportCmd,
	}
	export.Flags().StringVar(&exportDB, "db", "", "path to the run database (required)")
	export.Flags().StringVar(&exportRun, "run", "", "run id or unambiguous prefix (required)")
	export.Flags().StringVar(&exportOut, "out", "", "output fixture JSON path (required)")
	cmd.AddCommand(export)
	return cmd
}

func runFixtureExportCmd(_ *cobra.Command, _ []string) error {
	if exportDB == "" || exportRun == "" || exportOut == "" {
		return errors.New("--db, --run and --out are required")
	}
	st, err := store.NewStore(exportDB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	run, err := findRun(st, exportRun)
	if err != nil {
		return err
	}
	f, err := st.ExportFixture(run.RunID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(exportOut, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("Wrote %d steps from run %s to %s\n", len(f.Steps), shortID(run.RunID), exportOut)
	return nil
}
