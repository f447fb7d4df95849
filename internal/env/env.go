package env

import (
	"os"
	"path/filepath"
)

// Version of the keeper binary, set from the build flags
var Version string = "dev"

// Server is set when the keeper runs as a long-lived HTTP server.
var Server bool = false

// (default: %USERPROFILE%/.grid-keeper on Windows, $HOME/.grid-keeper on Linux)
var KeeperDir string = GetKeeperDir()

/**
 * Get keeper directory path
 * @returns {string} Returns keeper directory path
 */
func GetKeeperDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".grid-keeper")
}

// DefaultDataDir is the root of the artifact cache and service logs.
func DefaultDataDir() string {
	return filepath.Join(KeeperDir, "data")
}
