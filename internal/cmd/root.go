// Package cmd wires the cobra command tree for the envctl binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcadelabs/envctl/internal/config"
)

// globalFlags holds flags shared across subcommands.
type globalFlags struct {
	runtimeDir string
	verbosity  int
}

var flags globalFlags

// NewRootCmd builds the top-level "envctl" command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "envctl",
		Short:         "Manage development environment activation lifecycles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.runtimeDir, "runtime-dir", "",
		"base directory for activation runtime state (defaults to $FLOX_RUNTIME_DIR)")
	root.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", "increase log verbosity")

	root.AddCommand(newActivateCmd())
	root.AddCommand(newExecutiveCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newGCCmd())

	return root
}

func loadConfig() (*config.EnvConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if flags.runtimeDir != "" {
		cfg.RuntimeDir = flags.runtimeDir
	}
	if cfg.RuntimeDir == "" {
		return nil, fmt.Errorf("runtime directory not set: pass --runtime-dir or set FLOX_RUNTIME_DIR")
	}
	return cfg, nil
}

var stderr = os.Stderr
