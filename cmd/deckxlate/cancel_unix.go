//go:build !windows

package main

import (
	"os"
	"syscall"
)

// signalCancel asks the submit process running pid to cancel its job by
// sending SIGTERM; submit's signal.NotifyContext turns that into a
// Manager.Cancel call instead of an immediate exit.
func signalCancel(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
