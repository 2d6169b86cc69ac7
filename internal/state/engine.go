package state

import (
	"github.com/jonboulle/clockwork"
)

// ResultKind discriminates StartOrAttachResult, mirroring the Rust
// StartOrAttachResult enum (Start | Attach | AlreadyStarting).
type ResultKind string

const (
	ResultStart           ResultKind = "start"
	ResultAttach          ResultKind = "attach"
	ResultAlreadyStarting ResultKind = "already_starting"
)

// StartOrAttachResult is the outcome of Engine.StartOrAttach.
type StartOrAttachResult struct {
	Kind ResultKind

	// StartID is populated for Start and Attach.
	StartID StartIdentifier

	// NeedsNewExecutive is populated for Start and Attach: the caller must
	// spawn a fresh Executive because none is running for this document.
	NeedsNewExecutive bool

	// PID is populated for AlreadyStarting: the pid of the process
	// currently performing the build for this store path.
	PID int
}

// Engine applies state transitions. Its Clock and IsAlive fields are the
// only effectful dependencies of an otherwise pure state machine, and are
// swappable in tests for determinism.
type Engine struct {
	Clock   clockwork.Clock
	IsAlive func(pid int) bool
}

// NewEngine returns an Engine wired to the real clock and OS process table.
func NewEngine() *Engine {
	return &Engine{
		Clock:   clockwork.NewRealClock(),
		IsAlive: realIsAlive,
	}
}

// StartOrAttach decides whether pid is starting a fresh build, attaching to
// one already underway or complete, or must wait because a build for the
// same store path is already in progress. It mutates s in place; callers
// hold the document's file lock for the duration.
func (e *Engine) StartOrAttach(s *State, pid int, storePath string) StartOrAttachResult {
	switch s.Ready.Kind {
	case ReadyTrue:
		startID, _ := s.Ready.IsTrue()
		if startID.StorePath == storePath {
			s.attach(pid, startID, nil)
			return StartOrAttachResult{
				Kind:              ResultAttach,
				StartID:           startID,
				NeedsNewExecutive: e.needsNewExecutive(s),
			}
		}
	case ReadyStarting:
		startingPID, startID, _ := s.Ready.IsStarting()
		if startID.StorePath == storePath {
			if e.isAlive(startingPID) {
				return StartOrAttachResult{Kind: ResultAlreadyStarting, PID: startingPID}
			}
			// The process performing the build died without ever marking
			// ready. Fall through and start a fresh build under a new
			// start id so no result claims to build the same store path
			// concurrently with the dead one.
		}
	}

	startID := StartIdentifier{StorePath: storePath, Timestamp: e.Clock.Now().Unix()}
	s.Ready = Ready{Kind: ReadyStarting, PID: pid, StartID: &startID}
	s.attach(pid, startID, nil)
	return StartOrAttachResult{
		Kind:              ResultStart,
		StartID:           startID,
		NeedsNewExecutive: e.needsNewExecutive(s),
	}
}

// SetReady transitions Starting(startID) to True(startID), the call a
// successful builder makes once the environment is fully materialized. It
// is a no-op if the document has moved on to a different start since.
func (e *Engine) SetReady(s *State, startID StartIdentifier) {
	if pid, sid, ok := s.Ready.IsStarting(); ok && sid == startID {
		_ = pid
		s.Ready = Ready{Kind: ReadyTrue, StartID: &startID}
	}
}

// SetExecutivePID records the pid of the Executive spawned for the current
// start.
func (e *Engine) SetExecutivePID(s *State, pid int) {
	s.ExecutivePID = pid
}

// SetCurrentProcessComposeStartID records which start last asked the
// services supervisor to come up, so a later reattach can tell whether a
// still-running process-compose instance belongs to the current start or a
// stale prior one.
func (e *Engine) SetCurrentProcessComposeStartID(s *State, startID StartIdentifier) {
	s.CurrentProcessComposeStartID = &startID
}

// Detach removes pid's attachment and calls updateReadyAfterDetach.
func (e *Engine) Detach(s *State, pid int) {
	delete(s.AttachedPids, pid)
	e.updateReadyAfterDetach(s)
}

// ReplaceAttachment sets pid's attachment to startID with the given
// expiration (nil for none), replacing any attachment pid already held.
// The Driver uses it to give an in-place activation's own attachment its
// expiration.
func (e *Engine) ReplaceAttachment(s *State, pid int, startID StartIdentifier, expiration *int64) {
	s.attach(pid, startID, expiration)
}

// updateReadyAfterDetach sets Ready to False if the current True(start_id)
// no longer has any attached PID. A dead Starting pid is deliberately left
// alone here: the next start_or_attach call (by the starter itself, or by
// a caller that finds the starting pid dead) is what reclaims it.
func (e *Engine) updateReadyAfterDetach(s *State) {
	startID, ok := s.Ready.IsTrue()
	if !ok {
		return
	}
	if _, stillAttached := s.AttachedPIDsByStartID()[startID]; !stillAttached {
		s.Ready = Ready{Kind: ReadyFalse}
	}
}

func (e *Engine) needsNewExecutive(s *State) bool {
	if s.ExecutivePID == ExecutiveNotStarted {
		return true
	}
	return !e.isAlive(s.ExecutivePID)
}

func (e *Engine) isAlive(pid int) bool {
	if e.IsAlive != nil {
		return e.IsAlive(pid)
	}
	return realIsAlive(pid)
}

func (s *State) attach(pid int, startID StartIdentifier, expirationUnix *int64) {
	att := Attachment{StartID: startID}
	if expirationUnix != nil {
		t := unixToTime(*expirationUnix)
		att.Expiration = &t
	}
	if s.AttachedPids == nil {
		s.AttachedPids = map[int]Attachment{}
	}
	s.AttachedPids[pid] = att
}
