//go:build !linux && !darwin

package utils

import (
	"fmt"
	"runtime"
)

// FindPortOwner is not implemented on this platform.
func FindPortOwner(port int) (int, error) {
	return 0, fmt.Errorf("port %d: owner lookup unsupported on %s: %w", port, runtime.GOOS, ErrNoPortOwner)
}
