package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcadelabs/envctl/internal/executive"
	"github.com/arcadelabs/envctl/internal/logging"
	"github.com/arcadelabs/envctl/internal/state"
)

func newExecutiveCmd() *cobra.Command {
	var contextPath string
	var readyFD int

	cmd := &cobra.Command{
		Use:    "executive",
		Short:  "Run the activation supervisor (internal, not meant to be invoked directly)",
		Hidden: true,
		RunE: func(c *cobra.Command, args []string) error {
			ctxFile, err := executive.ReadAndDeleteContextFile(contextPath)
			if err != nil {
				return err
			}

			log, logFile, err := logging.NewExecutiveFileLogger(
				filepath.Join(ctxFile.ActivationDir, "logs"), os.Getpid(), ctxFile.Verbosity)
			if err != nil {
				return err
			}
			defer logFile.Close() //nolint:errcheck

			store := state.NewStore(ctxFile.ActivationDir)
			engine := state.NewEngine()

			var svc executive.ServiceStarter
			if ctxFile.ServicesSocketPath != "" {
				svc = servicesStarter{socketPath: ctxFile.ServicesSocketPath}
			}

			ex := executive.New(store, engine, log, svc)
			ex.OnReady(func() { signalReady(readyFD) })

			return ex.Run(c.Context())
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "path to the executive context file")
	cmd.Flags().IntVar(&readyFD, "ready-fd", -1, "inherited file descriptor to signal readiness on")
	_ = cmd.MarkFlagRequired("context")

	return cmd
}

func signalReady(fd int) {
	if fd < 0 {
		return
	}
	f := os.NewFile(uintptr(fd), "ready-pipe")
	if f == nil {
		return
	}
	defer f.Close() //nolint:errcheck
	_, _ = f.Write([]byte{1})
}

// servicesStarter is a placeholder for environments that declare
// services: launching the supervisor itself happens in the on-activate
// hook, so by the time SIGUSR1 arrives here there is nothing left to do
// but confirm the control socket exists.
type servicesStarter struct {
	socketPath string
}

func (s servicesStarter) StartServices(ctx context.Context) error {
	_, err := os.Stat(s.socketPath)
	return err
}
