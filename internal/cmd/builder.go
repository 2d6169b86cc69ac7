package cmd

import (
	"context"
	"strings"

	"github.com/arcadelabs/envctl/internal/state"
	"github.com/arcadelabs/envctl/internal/util"
)

// externalBuilder shells out to the "envctl-build" helper for resolve and
// build, keeping the actual evaluation/realization machinery (out of
// scope here) swappable without touching the activation lifecycle code.
type externalBuilder struct{}

func newExternalBuilder() *externalBuilder { return &externalBuilder{} }

func (b *externalBuilder) Resolve(ctx context.Context, dotFloxPath string, mode state.Mode) (string, error) {
	out, err := util.Retry(ctx, resolveRetryConfig(), func() (string, error) {
		return util.ExecWithOutput(dotFloxPath, "envctl-build", "resolve", "--mode", string(mode))
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *externalBuilder) Build(ctx context.Context, storePath string, mode state.Mode) (string, error) {
	// Building is not retried: a failed build is almost always a real
	// evaluation error that retrying won't fix, and retrying would mean
	// running a potentially expensive, side-effecting realization twice.
	out, err := util.ExecWithOutput("", "envctl-build", "realize", storePath, "--mode", string(mode))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// resolveRetryConfig retries transient failures (the resolver shelling
// out to a store daemon that may be briefly unavailable) but leaves
// MaxAttempts low since resolve is on the critical path of every
// activation, including ones with a warm cache that should be fast.
func resolveRetryConfig() util.RetryConfig {
	cfg := util.DefaultRetryConfig()
	cfg.MaxAttempts = 2
	return cfg
}
