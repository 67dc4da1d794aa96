package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var prefsAll bool

func getPrefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show stored preferences",
		Long: `Print the stored preferences as JSON. By default only the settings
that apply to the current desktop are shown.`,
		Args: cobra.NoArgs,
		RunE: runPrefs,
	}

	cmd.Flags().BoolVar(&prefsAll, "all", false, "show settings for every desktop")

	return cmd
}

func runPrefs(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}

	set, err := a.engine.Preferences(cmd.Context())
	if err != nil {
		return err
	}
	if prefsAll {
		set, _ = a.store.Snapshot()
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
