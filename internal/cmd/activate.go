package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/arcadelabs/envctl/internal/driver"
	"github.com/arcadelabs/envctl/internal/logging"
	"github.com/arcadelabs/envctl/internal/state"
)

type activateFlags struct {
	dotFlox string
	mode    string
	shell   string
	command string
	execCmd bool
	inPlace bool
}

func newActivateCmd() *cobra.Command {
	var af activateFlags

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate a development environment in the current shell",
		Args:  cobra.ArbitraryArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.NewConsoleLogger(stderr, flags.verbosity)

			mode := state.ModeDev
			if af.mode == "run" {
				mode = state.ModeRun
			}

			// When stdout isn't a terminal (e.g. `eval "$(envctl activate ...)"`),
			// default to in-place rendering even without an explicit flag: an
			// interactive exec would otherwise take over a non-interactive
			// pipeline.
			invocation := driver.Interactive
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				invocation = driver.InPlace
			}
			switch {
			case af.inPlace:
				invocation = driver.InPlace
			case af.command != "":
				invocation = driver.ShellCommand
			case af.execCmd && len(args) > 0:
				invocation = driver.ExecCommand
			}

			shell := af.shell
			if shell == "" {
				shell = cfg.SelectedShell()
			}

			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locating own executable: %w", err)
			}

			d := &driver.Driver{
				RuntimeDir: cfg.RuntimeDir,
				Builder:    newExternalBuilder(),
				Executive: &driver.ProcessSpawner{
					SelfPath:   self,
					ContextDir: cfg.RuntimeDir + "/executive-contexts",
					Verbosity:  cfg.ExecutiveVerbosity,
				},
				Hook:   driver.ShellHookRunner{},
				Config: cfg,
				Log:    log,
			}

			script, err := d.Activate(c.Context(), driver.Request{
				DotFloxPath: af.dotFlox,
				Mode:        mode,
				Invocation:  invocation,
				Command:     af.command,
				ExecArgs:    args,
				Shell:       shell,
			})
			if err != nil {
				return err
			}
			if script != "" {
				fmt.Fprint(c.OutOrStdout(), script)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&af.dotFlox, "dir", "", "path to the environment's .flox directory")
	cmd.Flags().StringVar(&af.mode, "mode", "dev", "activation mode: dev or run")
	cmd.Flags().StringVar(&af.shell, "shell", "", "shell dialect to render for (defaults to $FLOX_SHELL/$SHELL)")
	cmd.Flags().StringVarP(&af.command, "command", "c", "", "run command in an activated shell, then exit")
	cmd.Flags().BoolVar(&af.execCmd, "exec", false, "exec the given command directly instead of through a shell")
	cmd.Flags().BoolVar(&af.inPlace, "in-place", false, "print an eval-able script instead of spawning a shell")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
