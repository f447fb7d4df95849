//go:build darwin

package utils

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FindPortOwner asks lsof for the pid listening on a local TCP port.
func FindPortOwner(port int) (int, error) {
	cmd := exec.Command("lsof", "-nP", "-t", fmt.Sprintf("-iTCP:%d", port), "-sTCP:LISTEN")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		// lsof exits 1 when nothing matches
		if stdout.Len() == 0 {
			return 0, fmt.Errorf("port %d: %w", port, ErrNoPortOwner)
		}
	}
	for _, field := range strings.Fields(stdout.String()) {
		if pid, err := strconv.Atoi(field); err == nil && pid > 0 {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("port %d: %w", port, ErrNoPortOwner)
}
