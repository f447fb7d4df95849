//go:build windows

package utils

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// SetNewPG detaches the child so it keeps running after the keeper exits
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// IsProcessRunning reports whether pid refers to a live process
func IsProcessRunning(pid int) (bool, error) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	proc.Release()
	return true, nil
}

// TerminateProcess has no graceful variant on Windows, the process is killed.
func TerminateProcess(pid int, grace time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process (PID: %d): %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to kill process (PID: %d): %w", pid, err)
	}
	return nil
}
