package executive

import (
	"golang.org/x/sys/unix"
)

// reapChildren drains exited children with a non-blocking wait4 loop,
// preventing zombies from accumulating under a subreaper that may inherit
// many grandchildren over an environment's lifetime. It returns the pids
// reaped, purely for logging.
func reapChildren() []int {
	var reaped []int
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return reaped
		}
		reaped = append(reaped, pid)
	}
}
