// Package executive implements the detached supervisor process spawned
// when an activation finds no live Executive for its environment: it owns
// the attached-PID watch loop, reaps orphaned
// children, and tears down the activation directory once the last
// attached shell exits.
package executive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/arcadelabs/envctl/internal/services"
	"github.com/arcadelabs/envctl/internal/state"
	"github.com/arcadelabs/envctl/internal/watcher"
)

// ServiceStarter starts the environment's declared services. It is called
// on receipt of SIGUSR1; once a call has succeeded, later SIGUSR1s do not
// call it again, while a failed call leaves the next SIGUSR1 free to retry.
type ServiceStarter interface {
	StartServices(ctx context.Context) error
}

// noopServiceStarter is used when the environment declares no services.
type noopServiceStarter struct{}

func (noopServiceStarter) StartServices(context.Context) error { return nil }

// Executive supervises one activation's attached processes until the last
// one detaches, then deletes the activation directory.
type Executive struct {
	Store    *state.Store
	Engine   *state.Engine
	Watcher  *watcher.Watcher
	Services ServiceStarter
	Log      *slog.Logger

	Interval time.Duration

	servicesStarted atomic.Bool
	readyHandshake  func()
}

// New constructs an Executive for the given activation directory. If
// services is nil, SIGUSR1 is a no-op.
func New(store *state.Store, engine *state.Engine, log *slog.Logger, services ServiceStarter) *Executive {
	if services == nil {
		services = noopServiceStarter{}
	}
	return &Executive{
		Store:    store,
		Engine:   engine,
		Watcher:  watcher.New(store, engine, log),
		Services: services,
		Log:      log,
		Interval: watcher.DefaultInterval,
	}
}

// OnReady registers a callback invoked once the Executive has detached
// from its controlling terminal and is ready to receive signals — the
// Driver waits on this (via the byte the callback writes to the inherited
// readiness pipe) before considering the spawn successful.
func (ex *Executive) OnReady(fn func()) { ex.readyHandshake = fn }

// Run becomes a session leader and subreaper, installs signal handlers,
// and blocks running the monitoring loop until the activation directory
// is torn down or a termination signal arrives. It never returns an error
// on a clean shutdown; the caller should os.Exit(0) after Run returns.
func (ex *Executive) Run(ctx context.Context) error {
	if err := ensureProcessGroupLeader(); err != nil {
		ex.Log.Warn("could not become process group leader", "error", err)
	}
	if err := becomeSubreaper(); err != nil {
		ex.Log.Warn("could not become child subreaper", "error", err)
	}

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh,
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
		syscall.SIGUSR1, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	if ex.readyHandshake != nil {
		ex.readyHandshake()
	}

	ticker := time.NewTicker(ex.Interval)
	defer ticker.Stop()

	var terminate bool
	var pendingReap bool

	for {
		select {
		case <-ctx.Done():
			return nil

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				// Terminate without cleanup: a forcibly killed Executive
				// must not delete the activation directory out from
				// under attached processes that are still running.
				ex.Log.Info("received termination signal, exiting without cleanup", "signal", sig.String())
				terminate = true
			case syscall.SIGUSR1:
				ex.handleStartServices(ctx)
			case syscall.SIGCHLD:
				pendingReap = true
			}
			if terminate {
				return nil
			}

		case <-ticker.C:
			remaining, unlock, err := ex.Watcher.CleanupPIDs(ctx)
			if err != nil {
				ex.Log.Error("cleanup pass failed", "error", err)
				if unlock != nil {
					unlock() //nolint:errcheck
				}
				continue
			}
			if pendingReap {
				if reaped := reapChildren(); len(reaped) > 0 {
					ex.Log.Debug("reaped children", "pids", reaped)
				}
				pendingReap = false
			}
			if remaining != 0 {
				unlock() //nolint:errcheck
				continue
			}

			ex.Log.Info("last attachment detached, cleaning up activation directory")
			// cleanupAll runs with the lock CleanupPIDs took still held: it
			// must finish renaming the directory aside before anyone else
			// can acquire the lock and recreate state.json underneath it.
			cleanupErr := ex.cleanupAll(ctx)
			if err := unlock(); err != nil && cleanupErr == nil {
				cleanupErr = err
			}
			if cleanupErr != nil {
				ex.Log.Error("cleanup failed", "error", cleanupErr)
				return cleanupErr
			}
			return nil
		}
	}
}

func (ex *Executive) handleStartServices(ctx context.Context) {
	if !ex.servicesStarted.CompareAndSwap(false, true) {
		return
	}
	if err := ex.Services.StartServices(ctx); err != nil {
		ex.Log.Error("failed to start services", "error", err)
		ex.servicesStarted.Store(false)
		return
	}
	if err := ex.recordProcessComposeStartID(); err != nil {
		ex.Log.Error("failed to record process-compose start id", "error", err)
	}
}

// recordProcessComposeStartID persists the start id the services
// supervisor was brought up for, so a later reattach can tell whether a
// still-running process-compose instance belongs to the current start.
func (ex *Executive) recordProcessComposeStartID() error {
	unlock, err := ex.Store.Lock(context.Background())
	if err != nil {
		return err
	}
	defer unlock() //nolint:errcheck

	s, err := ex.Store.Read()
	if err != nil {
		return err
	}
	startID, ok := s.Ready.IsTrue()
	if !ok {
		return nil
	}
	ex.Engine.SetCurrentProcessComposeStartID(s, startID)
	return ex.Store.Write(s)
}

// cleanupAll asks the services supervisor (if any) to shut down, then
// renames the activation directory aside (so a concurrent reader never
// observes a half-deleted tree) and removes it recursively. The caller
// holds the document lock across this entire call.
func (ex *Executive) cleanupAll(ctx context.Context) error {
	dir := ex.Store.Dir()

	svcClient := services.NewClient(services.SocketPath(dir))
	if err := svcClient.Down(ctx); err != nil {
		ex.Log.Warn("failed to send down to services supervisor", "error", err)
	}

	trashDir := filepath.Clean(dir) + fmt.Sprintf(".cleanup.%d", os.Getpid())
	if err := os.Rename(dir, trashDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.RemoveAll(trashDir)
}

// ensureProcessGroupLeader calls setsid so the Executive survives the
// exit of the shell that spawned it and signals sent to that shell's
// process group don't reach us.
func ensureProcessGroupLeader() error {
	_, err := unix.Setsid()
	if err != nil && err != unix.EPERM {
		return err
	}
	return nil
}
