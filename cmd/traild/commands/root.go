// Package commands defines the traild root command.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/concave-dev/trail/cmd/traild/config"
	"github.com/concave-dev/trail/cmd/traild/daemon"
	"github.com/concave-dev/trail/cmd/traild/utils"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/version"
)

// Log file opened by PreRunE, closed when the daemon exits.
var logFileHandle *os.File

// CleanupLogFile closes the log file if one was opened.
func CleanupLogFile() {
	if logFileHandle != nil {
		if err := logFileHandle.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
		logFileHandle = nil
	}
}

// RootCmd runs the trail daemon.
var RootCmd = &cobra.Command{
	Use:   "traild",
	Short: "Asset and payment registry daemon for business networks on a shared ledger",
	Long: `Trail daemon (traild) records members, asset and payment definitions and their
instances for a business network. Instance records are collected into batches,
pinned to IPFS and anchored on chain through the ledger API gateway.

Settings come from flags, TRAIL_ environment variables, an optional .env file
and an optional --config file, in that order of precedence.`,
	Version:      version.TraildVersion,
	SilenceUsage: true,
	Example: `  # Single node with embedded storage, local IPFS and gateway
  traild

  # PostgreSQL storage, DSN from the environment
  TRAIL_DATABASE_DSN=postgres://trail@db/trail traild --db-backend=postgres

  # Second node joining the first for peer discovery
  traild --name=second-node --api=0.0.0.0:8011 --gossip=0.0.0.0:4211 --join=127.0.0.1:4210

  # Everything from a config file
  traild --config=/etc/trail/traild.yaml`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.DisplayLogo(version.TraildVersion)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cmd.Flags()); err != nil {
			return err
		}

		if config.Global.IsExplicitlySet(config.LogFileField) && config.Global.LogFile != "" {
			logDir := filepath.Dir(config.Global.LogFile)
			if err := os.MkdirAll(logDir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory %s: %w", logDir, err)
			}

			var err error
			logFileHandle, err = os.OpenFile(config.Global.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", config.Global.LogFile, err)
			}
			logging.SetOutput(logFileHandle)
		}

		config.InitializeConfig()
		logging.SetLevel(config.Global.LogLevel)
		if err := config.ValidateConfig(); err != nil {
			CleanupLogFile()
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer CleanupLogFile()
		return daemon.Run()
	},
}

// SetupCommands registers flags on the root command.
func SetupCommands() {
	SetupFlags(RootCmd)
}
