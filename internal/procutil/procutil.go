// Package procutil answers "is this PID still alive" across platforms,
// shared by the state engine, the watcher, and the executive.
package procutil

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// IsAlive reports whether pid refers to a live process. Errors from the
// underlying lookup (most commonly permission denied, e.g. checking a PID
// owned by another user) are treated as "alive": a false negative here
// would let the watcher evict a live attachment, which is the worse
// mistake of the two.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return true
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return true
	}
	return exists
}
