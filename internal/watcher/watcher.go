// Package watcher periodically reconciles the attached-PID set against the
// OS process table, so a crashed shell doesn't leave a phantom attachment
// that keeps the Executive (and its services) alive forever.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arcadelabs/envctl/internal/procutil"
	"github.com/arcadelabs/envctl/internal/state"
)

// DefaultInterval is how often the Executive's monitoring loop invokes
// CleanupPIDs between its other duties.
const DefaultInterval = 100 * time.Millisecond

// Watcher cross-checks attached PIDs against process liveness.
type Watcher struct {
	Store   *state.Store
	Engine  *state.Engine
	Clock   clockwork.Clock
	IsAlive func(pid int) bool
	Log     *slog.Logger
}

// New returns a Watcher over store, sharing engine's clock and liveness
// check so tests can fake both consistently.
func New(store *state.Store, engine *state.Engine, log *slog.Logger) *Watcher {
	return &Watcher{
		Store:   store,
		Engine:  engine,
		Clock:   engine.Clock,
		IsAlive: engine.IsAlive,
		Log:     log,
	}
}

// CleanupPIDs acquires the document lock, drops every attachment whose
// process has exited and whose grace period (if any) has elapsed, and
// persists the result. It returns the document's resulting attachment
// count, so callers (the Executive's monitoring loop) can decide whether
// to begin shutting down.
//
// The document lock is returned still held: when remaining is 0 the caller
// is expected to tear down the activation directory before releasing it, so
// no other process can acquire the lock and recreate state.json in the
// window between this read and that teardown. The caller must always call
// unlock exactly once, whatever remaining turns out to be.
func (w *Watcher) CleanupPIDs(ctx context.Context) (remaining int, unlock func() error, err error) {
	unlock, err = w.Store.Lock(ctx)
	if err != nil {
		return 0, nil, err
	}

	s, err := w.Store.Read()
	if err != nil {
		return 0, unlock, err
	}

	now := w.Clock.Now()
	var dead []int
	for pid, att := range s.AttachedPids {
		if att.Expiration != nil && now.Before(*att.Expiration) {
			// In-place activation still within its grace window: a dead
			// pid here is expected (the shell fork that ran the eval
			// script has already exited) and is not itself a reason to
			// detach.
			continue
		}
		if !w.isAlive(pid) {
			dead = append(dead, pid)
		}
	}

	if len(dead) == 0 {
		return len(s.AttachedPids), unlock, nil
	}

	for _, pid := range dead {
		w.Engine.Detach(s, pid)
		if w.Log != nil {
			w.Log.Debug("reaped dead attachment", "pid", pid)
		}
	}

	if err := w.Store.Write(s); err != nil {
		return 0, unlock, err
	}
	return len(s.AttachedPids), unlock, nil
}

func (w *Watcher) isAlive(pid int) bool {
	if w.IsAlive != nil {
		return w.IsAlive(pid)
	}
	return procutil.IsAlive(pid)
}
