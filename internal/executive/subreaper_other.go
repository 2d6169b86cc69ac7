//go:build !linux

package executive

// becomeSubreaper is a no-op outside Linux: PR_SET_CHILD_SUBREAPER has no
// equivalent on other platforms we support, and orphan reparenting to PID
// 1 is merely untidy there, not a resource leak (our own wait4 loop still
// reaps direct children).
func becomeSubreaper() error { return nil }
