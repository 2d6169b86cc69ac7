// Package status provides read-only introspection across every
// activation directory under a runtime directory, used by the status and
// gc commands.
package status

import (
	"os"
	"path/filepath"

	"github.com/arcadelabs/envctl/internal/state"
)

// Summary describes one activation directory's current document.
type Summary struct {
	Dir   string
	State *state.State
	Err   error
}

// List reads every activation directory under runtimeDir/activations and
// returns a Summary for each, in the same order os.ReadDir returns them.
// A directory whose state.json fails to parse is still included, with Err
// set, so callers (gc) can decide whether to treat it as reclaimable.
func List(runtimeDir string) ([]Summary, error) {
	activationsDir := filepath.Join(runtimeDir, "activations")
	entries, err := os.ReadDir(activationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(activationsDir, e.Name())
		store := state.NewStore(dir)
		s, err := store.Read()
		out = append(out, Summary{Dir: dir, State: s, Err: err})
	}
	return out, nil
}

// IsReclaimable reports whether an activation directory has no attached
// processes and no running Executive, meaning nothing will ever clean it
// up on its own (its Executive already exited without finding zero
// attachments, e.g. it was killed). A directory whose state.json could not
// be read (missing or unparseable, i.e. sum.Err is set) is also reported
// reclaimable.
func IsReclaimable(sum Summary, isAlive func(int) bool) bool {
	if sum.Err != nil {
		return true
	}
	if len(sum.State.AttachedPids) > 0 {
		return false
	}
	if sum.State.ExecutivePID != state.ExecutiveNotStarted && isAlive(sum.State.ExecutivePID) {
		return false
	}
	return true
}
