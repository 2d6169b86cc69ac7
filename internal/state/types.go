// Package state implements the persisted activation document: a
// file-locked JSON document shared across unrelated processes, with
// start/attach/detach semantics. See design doc §4.1 and §3.
package state

import "time"

// LatestVersion is the schema version written by this binary. A document on
// disk with a different version is a fatal, user-visible incompatibility
// until every attached PID has exited.
const LatestVersion = 2

// ExecutiveNotStarted is the sentinel ExecutivePID value meaning no
// Executive has ever been spawned for this document.
const ExecutiveNotStarted = 0

// Mode selects which subset of the build output gets linked into the
// environment.
type Mode string

const (
	ModeDev Mode = "dev"
	ModeRun Mode = "run"
)

// StartIdentifier identifies a start: the first activation for a given
// (environment, store path) tuple. Ordering is total via (StorePath,
// Timestamp) — in practice two starts for different store paths are
// incomparable except by wall-clock order, which is all callers need.
type StartIdentifier struct {
	StorePath string `json:"store_path"`
	Timestamp int64  `json:"timestamp"`
}

// Attachment records why a PID is attached: the start it belongs to, and
// (for in-place activations only) the wall-clock deadline until which the
// attachment counts as live even if the PID itself has exited. Once the
// deadline has passed, the PID's own liveness decides.
type Attachment struct {
	StartID    StartIdentifier `json:"start_id"`
	Expiration *time.Time      `json:"expiration,omitempty"`
}

// ReadyKind discriminates the Ready union.
type ReadyKind string

const (
	ReadyFalse     ReadyKind = "false"
	ReadyStarting  ReadyKind = "starting"
	ReadyTrue      ReadyKind = "true"
)

// Ready mirrors the Rust `Ready` enum: False | Starting(pid, start_id) |
// True(start_id). Only the fields relevant to Kind are populated.
type Ready struct {
	Kind    ReadyKind        `json:"kind"`
	PID     int              `json:"pid,omitempty"`
	StartID *StartIdentifier `json:"start_id,omitempty"`
}

// IsStarting reports whether Ready is in the Starting state, returning the
// pid and start id for convenience.
func (r Ready) IsStarting() (pid int, startID StartIdentifier, ok bool) {
	if r.Kind != ReadyStarting || r.StartID == nil {
		return 0, StartIdentifier{}, false
	}
	return r.PID, *r.StartID, true
}

// IsTrue reports whether Ready is in the True state, returning the start id.
func (r Ready) IsTrue() (startID StartIdentifier, ok bool) {
	if r.Kind != ReadyTrue || r.StartID == nil {
		return StartIdentifier{}, false
	}
	return *r.StartID, true
}

// State is the activation document persisted at
// {activation_dir}/state.json. See design doc §3 for the invariants that
// must hold whenever the file lock is released.
type State struct {
	Version                      int                  `json:"version"`
	Mode                         Mode                 `json:"mode"`
	Ready                        Ready                `json:"ready"`
	ExecutivePID                 int                  `json:"executive_pid"`
	CurrentProcessComposeStartID *StartIdentifier     `json:"current_process_compose_start_id,omitempty"`
	AttachedPids                 map[int]Attachment   `json:"attached_pids"`
}

// New constructs a fresh document for a first activation.
func New(mode Mode) *State {
	return &State{
		Version:       LatestVersion,
		Mode:          mode,
		Ready:         Ready{Kind: ReadyFalse},
		ExecutivePID:  ExecutiveNotStarted,
		AttachedPids:  map[int]Attachment{},
	}
}

// AttachedPIDsByStartID groups attached PIDs by the start they belong to.
func (s *State) AttachedPIDsByStartID() map[StartIdentifier][]int {
	out := map[StartIdentifier][]int{}
	for pid, att := range s.AttachedPids {
		out[att.StartID] = append(out[att.StartID], pid)
	}
	return out
}

// AttachedPIDsRunning returns the subset of attached PIDs that isAlive
// reports as still running.
func (s *State) AttachedPIDsRunning(isAlive func(int) bool) []int {
	var out []int
	for pid := range s.AttachedPids {
		if isAlive(pid) {
			out = append(out, pid)
		}
	}
	return out
}
