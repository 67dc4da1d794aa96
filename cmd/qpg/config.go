package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/qpg-app/qpg/internal/storage"
)

var configForce bool

func getConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to config.yaml",
		Long: `Write the effective configuration (defaults, the existing file and
QPG_* environment overrides) to config.yaml in the config directory.

The API key is never written; keep it in QPG_AI_API_KEY or add it by hand.`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}
	initCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := storage.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	out := *cfg
	out.AI.APIKey = ""
	if offline {
		// --offline applies to this run only
		out.Server.Offline = false
	}

	if err := storage.SaveConfig(configDir, &out); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	logger.Debug("config written")
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
