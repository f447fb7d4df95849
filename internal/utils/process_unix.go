//go:build !windows

package utils

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// SetNewPG puts the child in its own process group so it outlives the keeper
// and does not receive the terminal's SIGINT.
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// IsProcessRunning reports whether pid refers to a live process (signal 0).
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid pid %d", pid)
	}
	err := unix.Kill(pid, 0)
	if err == nil || errors.Is(err, unix.EPERM) {
		return true, nil
	}
	if errors.Is(err, unix.ESRCH) {
		return false, nil
	}
	return false, err
}

/**
 * Terminate a process gracefully, SIGTERM first then SIGKILL
 * @param {int} pid - Process ID to stop
 * @param {time.Duration} grace - How long to wait for the process to exit after SIGTERM
 * @returns {error} Returns error if no signal could be delivered
 * @description
 * - An already exited process is not an error
 * - Polls every 100ms with signal 0 until the process is gone or grace elapses
 * - Falls back to SIGKILL after grace
 */
func TerminateProcess(pid int, grace time.Duration) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to send SIGTERM to process (PID: %d): %w", pid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if running, _ := IsProcessRunning(pid); !running {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to kill process (PID: %d): %w", pid, err)
	}
	return nil
}
