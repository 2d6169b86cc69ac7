package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/arcadelabs/envctl/internal/apperr"
	"github.com/arcadelabs/envctl/internal/util"
)

// Store owns state.json and its companion lock file for one activation
// directory. Every read-modify-write cycle holds the lock for its full
// duration. There is only the one exclusive lock; readers that only need a
// snapshot take it too.
type Store struct {
	dir      string
	lockPath string
	dataPath string
}

// NewStore returns a Store rooted at activationDir. The directory must
// already exist; callers create it as part of resolving the environment's
// runtime directory (see pathhash.ActivationDirName).
func NewStore(activationDir string) *Store {
	return &Store{
		dir:      activationDir,
		lockPath: filepath.Join(activationDir, "state.lock"),
		dataPath: filepath.Join(activationDir, "state.json"),
	}
}

// DataPath returns the path to state.json, for callers that need to show
// it to the user (status, debugging).
func (st *Store) DataPath() string { return st.dataPath }

// Dir returns the activation directory.
func (st *Store) Dir() string { return st.dir }

// Lock acquires the exclusive file lock, blocking until acquired or ctx is
// done. Callers must call the returned unlock function exactly once.
func (st *Store) Lock(ctx context.Context) (unlock func() error, err error) {
	fl := flock.New(st.lockPath)
	locked, err := fl.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquiring state lock: not acquired")
	}
	return fl.Unlock, nil
}

// Read loads state.json. A missing file is reported via os.IsNotExist on
// the returned error so callers can distinguish "never activated" from a
// real I/O failure. Callers must hold the lock first.
func (st *Store) Read() (*State, error) {
	data, err := os.ReadFile(st.dataPath)
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperr.Wrap(apperr.KindStateCorrupt, "state.json is not valid JSON", err)
	}
	return &s, nil
}

// Write persists s atomically. Callers must hold the lock first.
func (st *Store) Write(s *State) error {
	if err := os.MkdirAll(st.dir, 0755); err != nil {
		return apperr.Wrap(apperr.KindIOFatal, "creating activation directory", err)
	}
	if err := util.AtomicWriteJSON(st.dataPath, s); err != nil {
		return apperr.Wrap(apperr.KindIOFatal, "writing state.json", err)
	}
	return nil
}

// ReadOrNew loads state.json, or returns a fresh document for mode if the
// file does not yet exist.
func (st *Store) ReadOrNew(mode Mode) (*State, error) {
	s, err := st.Read()
	if err == nil {
		return s, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return New(mode), nil
	}
	return nil, err
}

// CheckVersion returns a KindVersionIncompatible apperr.Error (carrying the
// still-attached PIDs) if s's schema version doesn't match this binary's.
// Version mismatches are only fatal while PIDs remain attached: once the
// last attached process from the old version exits, it is safe to
// overwrite the document with a fresh one.
func (st *Store) CheckVersion(s *State) error {
	if s.Version == LatestVersion {
		return nil
	}
	var pids []int
	for pid := range s.AttachedPids {
		pids = append(pids, pid)
	}
	if len(pids) == 0 {
		return nil
	}
	return apperr.New(apperr.KindVersionIncompatible,
		fmt.Sprintf("activation state schema v%d is incompatible with this binary's v%d", s.Version, LatestVersion)).
		WithPids(pids)
}
