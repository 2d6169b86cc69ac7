package driver

import (
	"context"

	"github.com/arcadelabs/envctl/internal/state"
)

// Builder resolves an environment's current store path and materializes
// it on disk. It is the one collaborator this package treats as entirely
// external: what "building an environment" means is out of scope here.
type Builder interface {
	// Resolve returns the content-addressed store path the environment
	// at dotFloxPath currently evaluates to, without building anything.
	Resolve(ctx context.Context, dotFloxPath string, mode state.Mode) (storePath string, err error)

	// Build realizes storePath on disk and returns the directory
	// containing its env_diff.* files and activate.d fragments.
	Build(ctx context.Context, storePath string, mode state.Mode) (buildDir string, err error)
}
