package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcadelabs/envctl/internal/procutil"
	"github.com/arcadelabs/envctl/internal/services"
	"github.com/arcadelabs/envctl/internal/status"
)

func newGCCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove activation directories with no attached processes and no live executive",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			summaries, err := status.List(cfg.RuntimeDir)
			if err != nil {
				return err
			}

			for _, sum := range summaries {
				if !status.IsReclaimable(sum, procutil.IsAlive) {
					continue
				}
				if dryRun {
					fmt.Fprintf(c.OutOrStdout(), "would remove %s\n", sum.Dir)
					continue
				}
				svcClient := services.NewClient(services.SocketPath(sum.Dir))
				if err := svcClient.Down(c.Context()); err != nil {
					fmt.Fprintf(c.ErrOrStderr(), "failed to stop services for %s: %v\n", sum.Dir, err)
				}
				if err := os.RemoveAll(sum.Dir); err != nil {
					fmt.Fprintf(c.ErrOrStderr(), "failed to remove %s: %v\n", sum.Dir, err)
					continue
				}
				fmt.Fprintf(c.OutOrStdout(), "removed %s\n", sum.Dir)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list reclaimable directories without removing them")

	return cmd
}
