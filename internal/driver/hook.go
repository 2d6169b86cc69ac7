package driver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/arcadelabs/envctl/internal/util"
)

// ShellHookRunner runs {buildDir}/hooks/on-activate if present, once per
// start, under the environment's own (already-built) shell.
type ShellHookRunner struct{}

func (ShellHookRunner) RunOnActivate(ctx context.Context, buildDir string) error {
	hookPath := filepath.Join(buildDir, "hooks", "on-activate")
	if _, err := os.Stat(hookPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return util.ExecRun(buildDir, hookPath)
}
