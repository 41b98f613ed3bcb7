//go:build linux

package core

import "golang.org/x/sys/unix"

// setThreadPriority applies a nice value to the calling OS thread. The
// caller must have locked its goroutine to the thread.
func setThreadPriority(priority int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), niceValue(priority))
}
