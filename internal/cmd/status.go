package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcadelabs/envctl/internal/pathhash"
	"github.com/arcadelabs/envctl/internal/state"
)

func newStatusCmd() *cobra.Command {
	var dotFlox string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the activation state for an environment",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			activationDir := pathhash.ActivationDir(cfg.RuntimeDir, dotFlox)
			store := state.NewStore(activationDir)

			unlock, err := store.Lock(c.Context())
			if err != nil {
				return err
			}
			defer unlock() //nolint:errcheck

			s, err := store.ReadOrNew(state.ModeDev)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}

			fmt.Fprintf(c.OutOrStdout(), "mode:          %s\n", s.Mode)
			fmt.Fprintf(c.OutOrStdout(), "ready:         %s\n", s.Ready.Kind)
			fmt.Fprintf(c.OutOrStdout(), "executive pid: %d\n", s.ExecutivePID)
			fmt.Fprintf(c.OutOrStdout(), "attached pids: %d\n", len(s.AttachedPids))
			for pid, att := range s.AttachedPids {
				fmt.Fprintf(c.OutOrStdout(), "  %d  start=%s@%d\n", pid, att.StartID.StorePath, att.StartID.Timestamp)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dotFlox, "dir", "", "path to the environment's .flox directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
