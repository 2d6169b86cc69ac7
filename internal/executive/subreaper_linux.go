//go:build linux

package executive

import "golang.org/x/sys/unix"

// becomeSubreaper marks this process as a child subreaper so orphaned
// grandchildren (e.g. a service that double-forks) get reparented to us
// instead of PID 1, where our reap loop can still wait4 them.
func becomeSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}
