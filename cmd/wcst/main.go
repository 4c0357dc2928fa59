package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ptapal/experimental-psychology/internal/config"
	"github.com/ptapal/experimental-psychology/internal/logging"
)

// #region root

var (
	configPath string
	cfg        config.Config
	logger     = zap.NewNop()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wcst",
		Short:         "Administer and review adaptive card-sorting sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				loaded.DBPath, _ = cmd.Flags().GetString("db")
			}
			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			cfg = loaded

			l, err := logging.NewLogger(cfg.LogLevel, cfg.LogJSON)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WCST_CONFIG"), "path to YAML config")
	root.PersistentFlags().String("db", "", "path to the session database (overrides config)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(newRunCmd(), newDisplayCmd(), newInspectCmd(), newReplayCmd(), newExportCmd())
	return root
}

// #endregion root

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main
