package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qpg-app/qpg/internal/storage"
)

var (
	configDir string
	verbose   bool
	offline   bool

	cfg    *storage.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "qpg",
	Short: "Accessibility assistant for your desktop",
	Long: `qpg turns plain requests like "make the text bigger" into accessibility
settings for your desktop.

A language model proposes one command per reply. The command runs only if
it is one of the setting commands known for your desktop, and the new value
is synced to the preference service over an end-to-end encrypted channel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configDir == "" {
			dir, err := storage.GetConfigDir()
			if err != nil {
				return err
			}
			configDir = dir
		}

		loaded, err := storage.LoadConfig(configDir)
		if err != nil {
			return err
		}
		if offline {
			loaded.Server.Offline = true
		}
		cfg = loaded

		logger, err = newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// newLogger builds the process logger. Logs go to stderr so they never mix
// with replies on stdout.
func newLogger(logCfg storage.LogConfig, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if logCfg.Development {
		config = zap.NewDevelopmentConfig()
	}

	if logCfg.Level != "" {
		level, err := zapcore.ParseLevel(logCfg.Level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	config.OutputPaths = []string{"stderr"}
	return config.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.qpg)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "skip the preference service")

	rootCmd.AddCommand(
		getAskCommand(),
		getChatCommand(),
		getStartupCommand(),
		getLaunchCommand(),
		getPrefsCommand(),
		getTasksCommand(),
		getRunCommand(),
		getConfigCommand(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
