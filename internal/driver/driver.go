// Package driver implements the activation orchestration that ties the
// state store, the Executive, the builder, and the startup script emitter
// together into the four user-facing invocation modes.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/arcadelabs/envctl/internal/apperr"
	"github.com/arcadelabs/envctl/internal/config"
	"github.com/arcadelabs/envctl/internal/pathhash"
	"github.com/arcadelabs/envctl/internal/state"
)

// Invocation selects what the Driver does once the environment is ready.
type Invocation int

const (
	// Interactive execs the user's shell in place, replacing this process.
	Interactive Invocation = iota
	// ShellCommand execs the user's shell with -c <Command>.
	ShellCommand
	// ExecCommand execs ExecArgs[0] directly, bypassing a shell.
	ExecCommand
	// InPlace prints an eval-able script to stdout and returns, for
	// `eval "$(envctl activate ...)"` style callers.
	InPlace
)

// Request describes one activation request.
type Request struct {
	DotFloxPath string
	Mode        state.Mode
	Invocation  Invocation
	Command     string
	ExecArgs    []string
	Shell       string

	// InPlaceTTL bounds how long an InPlace attachment is honored without
	// a liveness check succeeding, since the process that requested it
	// (a short-lived shell eval) may have already exited by the time the
	// watcher looks at it.
	InPlaceTTL time.Duration
}

// StartTimeout bounds how long Activate waits for a concurrent builder in
// another process before giving up with apperr.KindStartInProgress.
const StartTimeout = 2 * time.Minute

// ExecutiveSpawner starts the Executive for activationDir and blocks until
// it signals readiness or the context expires, returning its pid.
type ExecutiveSpawner interface {
	Spawn(ctx context.Context, activationDir string, mode state.Mode) (pid int, err error)
}

// HookRunner runs the environment's on-activate hook.
type HookRunner interface {
	RunOnActivate(ctx context.Context, buildDir string) error
}

// Driver orchestrates one activation end to end.
type Driver struct {
	RuntimeDir string
	Builder    Builder
	Executive  ExecutiveSpawner
	Hook       HookRunner
	Config     *config.EnvConfig
	Log        *slog.Logger

	// Engine overrides the state transition engine, normally only set in
	// tests that need a fake clock or liveness check. Defaults to
	// state.NewEngine() when nil.
	Engine *state.Engine
}

func (d *Driver) engine() *state.Engine {
	if d.Engine != nil {
		return d.Engine
	}
	return state.NewEngine()
}

// Activate runs resolve -> start_or_attach -> (build | wait) -> hook ->
// invocation for req, returning the rendered startup script text for
// InPlace invocations, or "" for the modes that exec and never return on
// success (Interactive, ShellCommand, ExecCommand).
func (d *Driver) Activate(ctx context.Context, req Request) (string, error) {
	activationDir := pathhash.ActivationDir(d.RuntimeDir, req.DotFloxPath)
	if err := os.MkdirAll(activationDir, 0755); err != nil {
		return "", apperr.Wrap(apperr.KindIOFatal, "creating activation directory", err)
	}

	store := state.NewStore(activationDir)
	engine := d.engine()

	// Re-activation detection: if this environment is already in the
	// caller's FLOX_ACTIVE_ENVIRONMENTS list, this call re-enters an
	// activation the calling shell already has. Interactive mode refuses to
	// nest; in-place and command modes are allowed but become profile-only
	// (no second on-activate run, no second push onto the active list).
	alreadyActive, err := d.Config.IsActive(req.DotFloxPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFatal, "parsing FLOX_ACTIVE_ENVIRONMENTS", err)
	}
	if alreadyActive && req.Invocation == Interactive {
		return "", apperr.New(apperr.KindAlreadyActive, "environment is already active in this shell")
	}
	profileOnly := alreadyActive

	var activeEnvironments string
	if !profileOnly {
		activeEnvironments, err = d.Config.WithActiveEnvironment(req.DotFloxPath)
		if err != nil {
			return "", apperr.Wrap(apperr.KindIOFatal, "updating FLOX_ACTIVE_ENVIRONMENTS", err)
		}
	}

	storePath, err := d.Builder.Resolve(ctx, req.DotFloxPath, req.Mode)
	if err != nil {
		return "", apperr.Wrap(apperr.KindBuildFailed, "resolving environment", err)
	}

	result, buildDir, err := d.startOrAttachWithRetry(ctx, store, engine, storePath, req.Mode)
	if err != nil {
		return "", err
	}

	if result.NeedsNewExecutive {
		pid, err := d.Executive.Spawn(ctx, activationDir, req.Mode)
		if err != nil {
			return "", apperr.Wrap(apperr.KindExecutiveSpawnFailed, "spawning executive", err)
		}
		if err := d.recordExecutivePID(ctx, store, engine, pid); err != nil {
			return "", err
		}
	}

	if result.Kind == state.ResultStart {
		if !profileOnly {
			if err := d.Hook.RunOnActivate(ctx, buildDir); err != nil {
				return "", apperr.Wrap(apperr.KindHookFailed, "running on-activate hook", err)
			}
		}
		if err := d.markReady(ctx, store, engine, result.StartID); err != nil {
			return "", err
		}
	}

	if req.Invocation == InPlace {
		if err := d.setInPlaceExpiration(ctx, store, engine, result.StartID, ttlOrDefault(req.InPlaceTTL)); err != nil {
			return "", err
		}
	}

	return d.invoke(req, buildDir, activeEnvironments)
}

// startOrAttachWithRetry handles the AlreadyStarting case: a concurrent
// process is already building the same store path, so this caller polls
// until Ready flips to True (attach succeeds) or StartTimeout elapses.
func (d *Driver) startOrAttachWithRetry(ctx context.Context, store *state.Store, engine *state.Engine, storePath string, mode state.Mode) (state.StartOrAttachResult, string, error) {
	ctx, cancel := context.WithTimeout(ctx, StartTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = StartTimeout

	var result state.StartOrAttachResult
	var buildDir string
	op := func() error {
		unlock, err := store.Lock(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer unlock() //nolint:errcheck

		s, err := store.ReadOrNew(mode)
		if err != nil {
			return backoff.Permanent(apperr.Wrap(apperr.KindStateCorrupt, "reading state.json", err))
		}
		if err := store.CheckVersion(s); err != nil {
			return backoff.Permanent(err)
		}

		result = engine.StartOrAttach(s, os.Getpid(), storePath)
		if err := store.Write(s); err != nil {
			return backoff.Permanent(err)
		}

		if result.Kind == state.ResultAlreadyStarting {
			return fmt.Errorf("build in progress under pid %d", result.PID)
		}

		// Build runs for both Start and Attach: the builder is expected to
		// be idempotent over a content-addressed store path, so attaching
		// to an already-realized build is a fast no-op rather than a
		// second real build. This is what lets a concurrent Attach learn
		// the build directory without the state document needing to carry
		// it itself.
		dir, err := d.Builder.Build(ctx, storePath, mode)
		if err != nil {
			return backoff.Permanent(apperr.Wrap(apperr.KindBuildFailed, "building environment", err))
		}
		buildDir = dir
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if apperr.Is(err, apperr.KindBuildFailed) || apperr.Is(err, apperr.KindStateCorrupt) || apperr.Is(err, apperr.KindVersionIncompatible) || apperr.Is(err, apperr.KindIOFatal) {
			return state.StartOrAttachResult{}, "", err
		}
		return state.StartOrAttachResult{}, "", apperr.Wrap(apperr.KindStartInProgress, "timed out waiting for a concurrent build", err)
	}
	return result, buildDir, nil
}

// markReady flips Ready from Starting to True once the build and hook
// have both succeeded.
func (d *Driver) markReady(ctx context.Context, store *state.Store, engine *state.Engine, startID state.StartIdentifier) error {
	unlock, err := store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock() //nolint:errcheck

	s, err := store.Read()
	if err != nil {
		return err
	}
	engine.SetReady(s, startID)
	return store.Write(s)
}

// recordExecutivePID persists the pid of a freshly spawned Executive so
// later callers in this process tree see needsNewExecutive = false.
func (d *Driver) recordExecutivePID(ctx context.Context, store *state.Store, engine *state.Engine, pid int) error {
	unlock, err := store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock() //nolint:errcheck

	s, err := store.Read()
	if err != nil {
		return err
	}
	engine.SetExecutivePID(s, pid)
	return store.Write(s)
}

// setInPlaceExpiration records an expiration deadline on this process's own
// attachment: an InPlace caller is typically a short-lived shell fork
// running `eval "$(...)"`, which may have already exited by the time the
// watcher next looks, so its attachment gets a grace window instead of
// being reaped immediately.
func (d *Driver) setInPlaceExpiration(ctx context.Context, store *state.Store, engine *state.Engine, startID state.StartIdentifier, ttl time.Duration) error {
	unlock, err := store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock() //nolint:errcheck

	s, err := store.Read()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(ttl).Unix()
	engine.ReplaceAttachment(s, os.Getpid(), startID, &expiresAt)
	return store.Write(s)
}
