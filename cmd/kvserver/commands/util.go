package commands

import (
	"os"
	"path/filepath"
)

// GetDefaultStateDir returns the default directory for runtime state such as
// the PID file.
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "kvserver")
}

// GetDefaultPidFile returns the default PID file path stop uses to find a
// running start.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "kvserver.pid")
}
