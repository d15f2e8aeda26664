// Package commands defines all Cobra CLI commands for the docchat binary.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/docchat/internal/audit"
	"github.com/54b3r/docchat/internal/config"
	"github.com/54b3r/docchat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// startedAt is when the current command began, for the audit end record.
var startedAt time.Time

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docchat",
		Short: "docchat: answer questions from your organisation's documents",
		Long: `docchat indexes a directory of plain-text documents into a vector store and
answers questions about them in multi-turn conversations.

Each turn rewrites the question against the session history, retrieves and
reranks the most relevant passages, and asks the chat model for a short
answer grounded in them.

Configuration comes from environment variables, an optional .env file in the
working directory, and an optional YAML file (~/.docchat/config.yaml).
Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			startedAt = time.Now()

			// .env never overrides variables that are already set.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("config: failed to load .env: %w", err)
			}

			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docchat/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewContactsCmd(),
		NewVersionCmd(),
	)

	return root
}

// finish writes the audit end record and passes err through.
func finish(cmd *cobra.Command, err error) error {
	audit.LogCommandEnd(cmd.Context(), logging.New(), cmd.Name(), startedAt, err)
	return err
}
