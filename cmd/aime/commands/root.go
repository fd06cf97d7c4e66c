// Package commands defines all Cobra CLI commands for the aime binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/byoung/ai-me/internal/audit"
	"github.com/byoung/ai-me/internal/config"
	"github.com/byoung/ai-me/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aime",
		Short: "ai-me — a conversational agent that answers as a specific person",
		Long: `ai-me answers questions in the first person as a configured persona,
grounded in that person's personal knowledge base: local markdown notes and
their public GitHub repositories, indexed into a vector store at startup.

The agent can also consult live capabilities per conversation: GitHub code
search, the current time, and a session-scoped memory graph.

Persona and model are configured via environment variables or a YAML config
file (~/.aime/config.yaml). See 'aime --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.aime/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewIndexCmd(),
		NewVersionCmd(),
	)

	return root
}
