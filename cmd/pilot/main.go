package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/config"
	"github.com/danielpatrickdp/turnpilot/internal/logging"
)

// #region globals

var (
	// Global flags
	configPath string
	verbose    bool

	// Set in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// #endregion globals

// #region root

var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Drive a GBA game one verified turn at a time",
	Long: `pilot asks a remote reasoning service what to press, delivers the
inputs to the emulator one key at a time, and checks the game's own position
data to decide whether each turn actually did anything.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogDev)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, inspectCmd, replayCmd)
}

// #endregion root

// #region main
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main
