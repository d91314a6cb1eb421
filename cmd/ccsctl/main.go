// Package main provides ccsctl, the offline tool for replaying event streams
// through the cadence pipeline and inspecting stored runs.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
)

var (
	rootProfile string
	rootConfig  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ccsctl",
		Short:        "Replay and inspect CCS cadence runs",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rootProfile, "profile", string(config.Phase1), "parameter profile (baseline|phase1)")
	rootCmd.PersistentFlags().StringVar(&rootConfig, "config", "", "optional TOML overlay applied on top of the profile")

	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newFixtureCmd())

	return rootCmd
}

// loadConfig resolves the active profile plus overlay.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(rootConfig, config.Profile(rootProfile))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
