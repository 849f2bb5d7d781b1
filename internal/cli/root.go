// Package cli wires the trustgate command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vorion/trustgate/internal/config"
	"github.com/vorion/trustgate/internal/logging"
	"github.com/vorion/trustgate/internal/store"
)

var (
	cfgPath string
	dbPath  string
	verbose bool

	cfg        *config.Config
	policyHash string
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trustgate",
	Short: "Trust governance and audit core for autonomous agents",
	Long: "Decides whether an agent's proposed action may proceed, tracks a scored\n" +
		"trust lifecycle per agent, enforces an inviolable human-override channel,\n" +
		"and records every governed decision in a tamper-evident hash chain.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}

		cfg, policyHash, err = config.LoadConfigWithHash(cfgPath)
		if err != nil {
			return err
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
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.trustgate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database file (default ~/.trustgate/trustgate.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// openStore builds the configured persistence backend. The caller closes it.
func openStore() (store.Store, error) {
	if cfg.Store.Driver == "memory" {
		return store.NewMemory(), nil
	}
	path := dbPath
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		path = store.DefaultPath()
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
