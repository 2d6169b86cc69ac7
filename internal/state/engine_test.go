package state

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testEngine(alive map[int]bool) (*Engine, clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	e := &Engine{
		Clock: clock,
		IsAlive: func(pid int) bool {
			return alive[pid]
		},
	}
	return e, clock
}

func TestStartOrAttach_FirstCallStarts(t *testing.T) {
	e, clock := testEngine(map[int]bool{100: true})
	s := New(ModeDev)

	res := e.StartOrAttach(s, 100, "/nix/store/abc")

	require.Equal(t, ResultStart, res.Kind)
	require.True(t, res.NeedsNewExecutive)
	require.Equal(t, "/nix/store/abc", res.StartID.StorePath)
	require.Equal(t, clock.Now().Unix(), res.StartID.Timestamp)

	pid, startID, ok := s.Ready.IsStarting()
	require.True(t, ok)
	require.Equal(t, 100, pid)
	require.Equal(t, res.StartID, startID)
	require.Contains(t, s.AttachedPids, 100)
}

func TestStartOrAttach_SecondCallerAttachesToReady(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true, 200: true, 999: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	e.SetReady(s, first.StartID)
	e.SetExecutivePID(s, 999)

	second := e.StartOrAttach(s, 200, "/nix/store/abc")

	require.Equal(t, ResultAttach, second.Kind)
	require.False(t, second.NeedsNewExecutive)
	require.Equal(t, first.StartID, second.StartID)
	require.Contains(t, s.AttachedPids, 200)
}

func TestStartOrAttach_ConcurrentStarterBlocksOthers(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true, 200: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	require.Equal(t, ResultStart, first.Kind)

	second := e.StartOrAttach(s, 200, "/nix/store/abc")

	require.Equal(t, ResultAlreadyStarting, second.Kind)
	require.Equal(t, 100, second.PID)
	require.NotContains(t, s.AttachedPids, 200)
}

func TestStartOrAttach_DeadStarterIsReclaimed(t *testing.T) {
	e, clock := testEngine(map[int]bool{100: false, 200: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	require.Equal(t, ResultStart, first.Kind)

	clock.Advance(time.Second)
	second := e.StartOrAttach(s, 200, "/nix/store/abc")

	require.Equal(t, ResultStart, second.Kind)
	require.NotEqual(t, first.StartID, second.StartID)
	pid, startID, ok := s.Ready.IsStarting()
	require.True(t, ok)
	require.Equal(t, 200, pid)
	require.Equal(t, second.StartID, startID)
}

func TestStartOrAttach_DifferentStorePathStartsFresh(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true, 200: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	e.SetReady(s, first.StartID)

	second := e.StartOrAttach(s, 200, "/nix/store/def")

	require.Equal(t, ResultStart, second.Kind)
	require.NotEqual(t, first.StartID, second.StartID)
}

func TestDetach_DyingStarterLeavesReadyForNextCallerToReclaim(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: false})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	require.Equal(t, ResultStart, first.Kind)

	e.Detach(s, 100)

	// Detach never resets a dead Starting pid itself: cleanup is left to the
	// next start_or_attach call, which detects the starting pid is dead and
	// reclaims it there (see TestStartOrAttach_DeadStarterIsReclaimed).
	require.Equal(t, ReadyStarting, s.Ready.Kind)
	require.NotContains(t, s.AttachedPids, 100)
}

func TestDetach_LastAttachmentUnderTrueResetsReadyToFalse(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	e.SetReady(s, first.StartID)

	e.Detach(s, 100)

	require.Equal(t, ReadyFalse, s.Ready.Kind)
	require.NotContains(t, s.AttachedPids, 100)
}

func TestDetach_TrueWithOtherStartIDAttachedLeavesReadyAlone(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true, 200: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	e.SetReady(s, first.StartID)
	second := e.StartOrAttach(s, 200, "/nix/store/def")
	require.Equal(t, ResultStart, second.Kind)

	// 100 is attached to the first start (abc), which was True; 200's Start
	// for def moved Ready to Starting(200, def). Detaching 100 must leave
	// Ready alone: it names def, which 200 still holds.
	e.Detach(s, 100)

	require.Equal(t, ReadyStarting, s.Ready.Kind)
	require.Contains(t, s.AttachedPids, 200)
}

func TestDetach_UnrelatedDetachLeavesReadyAlone(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true, 200: true})
	s := New(ModeDev)

	first := e.StartOrAttach(s, 100, "/nix/store/abc")
	e.SetReady(s, first.StartID)
	_ = e.StartOrAttach(s, 200, "/nix/store/abc")

	e.Detach(s, 200)

	startID, ok := s.Ready.IsTrue()
	require.True(t, ok)
	require.Equal(t, first.StartID, startID)
	require.NotContains(t, s.AttachedPids, 200)
}

func TestNeedsNewExecutive_DeadExecutiveTriggersRespawn(t *testing.T) {
	e, _ := testEngine(map[int]bool{100: true, 500: false})
	s := New(ModeDev)
	s.ExecutivePID = 500

	res := e.StartOrAttach(s, 100, "/nix/store/abc")
	require.True(t, res.NeedsNewExecutive)
}
