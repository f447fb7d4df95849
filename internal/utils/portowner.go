package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var ErrNoPortOwner = errors.New("no process owns the port")

// ReadPidFile parses a file holding a single process id.
func ReadPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file '%s': %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d in '%s'", pid, path)
	}
	return pid, nil
}
