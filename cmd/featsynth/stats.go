package main

import (
	"fmt"
	"io"

	"github.com/chazu/featsynth/pkg/manifest"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statsList int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the sample manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Dataset.Manifest == "" {
			return fmt.Errorf("no manifest configured")
		}
		store, err := manifest.Open(cfg.Dataset.Manifest)
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if err := writeYAML(cmd.OutOrStdout(), st); err != nil {
			return err
		}
		if statsList <= 0 {
			return nil
		}
		entries, err := store.List(cmd.Context(), statsList)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%v\t%s\n", e.ID, e.Seed, e.Combo, e.Outcome)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeYAML(cmd.OutOrStdout(), cfg)
	},
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	statsCmd.Flags().IntVar(&statsList, "list", 0, "Also list the oldest N samples")
}
