package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/layerbench/internal/constants"
)

// GlobalPath returns the path to the per-user .layerbench directory.
// On Unix: ~/.layerbench
// On Windows: %USERPROFILE%\.layerbench
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName), nil
}

// LocalPath returns the path to the .layerbench directory for the given
// project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, constants.DirName)
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
