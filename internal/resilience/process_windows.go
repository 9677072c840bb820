//go:build windows

package resilience

import "golang.org/x/sys/windows"

// isProcessAlive checks if a watcher process is still running by opening it
// with the minimum access right.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	_ = windows.CloseHandle(handle)
	return true
}
