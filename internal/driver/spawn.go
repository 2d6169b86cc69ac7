package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arcadelabs/envctl/internal/executive"
	"github.com/arcadelabs/envctl/internal/services"
	"github.com/arcadelabs/envctl/internal/state"
)

// ReadinessTimeout bounds how long Spawn waits for the freshly forked
// Executive to signal it has detached and is ready to receive signals.
const ReadinessTimeout = 5 * time.Second

// ProcessSpawner spawns the Executive as a detached child of the current
// process by re-invoking this same binary's hidden "executive" subcommand.
type ProcessSpawner struct {
	// SelfPath is the path to the currently running binary (os.Executable()).
	SelfPath string
	// ContextDir is where per-spawn context files are written.
	ContextDir string
	Verbosity  int
}

// Spawn writes a context file, forks the Executive detached from the
// current session, and blocks until it signals readiness over an
// inherited pipe or ReadinessTimeout elapses.
func (s *ProcessSpawner) Spawn(ctx context.Context, activationDir string, mode state.Mode) (int, error) {
	if err := os.MkdirAll(s.ContextDir, 0755); err != nil {
		return 0, fmt.Errorf("creating executive context directory: %w", err)
	}
	ctxPath := filepath.Join(s.ContextDir, fmt.Sprintf("executive-%s.json", uuid.NewString()))
	if err := executive.WriteContextFile(ctxPath, &executive.ContextFile{
		ActivationDir:      activationDir,
		Mode:               mode,
		ServicesSocketPath: services.SocketPath(activationDir),
		Verbosity:          s.Verbosity,
	}); err != nil {
		return 0, err
	}

	readR, readW, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("creating readiness pipe: %w", err)
	}
	defer readR.Close() //nolint:errcheck

	cmd := exec.Command(s.SelfPath, "executive", "--context", ctxPath, "--ready-fd", "3")
	cmd.ExtraFiles = []*os.File{readW}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		readW.Close() //nolint:errcheck
		return 0, fmt.Errorf("starting executive: %w", err)
	}
	readW.Close() //nolint:errcheck
	pid := cmd.Process.Pid

	// The child owns the Executive's lifetime from here; we neither wait
	// on it nor keep it as our own child, matching the Executive's role
	// as an independent supervisor that must outlive this process.
	go func() { _ = cmd.Process.Release() }()

	done := make(chan struct{})
	var readyErr error
	go func() {
		buf := make([]byte, 1)
		if _, err := readR.Read(buf); err != nil {
			readyErr = err
		}
		close(done)
	}()

	select {
	case <-done:
		return pid, readyErr
	case <-time.After(ReadinessTimeout):
		return 0, fmt.Errorf("executive did not signal readiness within %s", ReadinessTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
