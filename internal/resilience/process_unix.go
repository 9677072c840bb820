//go:build !windows

package resilience

import "syscall"

// isProcessAlive checks if a watcher process is still running.
// Signal 0 probes for existence. EPERM means the process exists under
// another user.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
