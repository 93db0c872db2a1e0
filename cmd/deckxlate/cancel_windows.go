//go:build windows

package main

import (
	"os"
)

// signalCancel asks the submit process running pid to cancel its job.
// Windows has no SIGTERM equivalent that a foreign process can raise
// gracefully; os.Interrupt is only deliverable within the same console
// group, so a cross-process cancel here falls back to terminating the
// process outright rather than giving it a chance to flush a partial
// result.
func signalCancel(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
