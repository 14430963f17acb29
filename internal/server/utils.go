package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// defaultIndexPath is the index file for root under the XDG state
// directory. Each workspace root gets a directory of its own.
func defaultIndexPath(root string) (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		stateHome = filepath.Join(homeDir, ".local", "state")
	}

	hash := sha256.Sum256([]byte(root))
	dir := filepath.Join(stateHome, Name, hex.EncodeToString(hash[:])[:stateRootHashLen])
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return filepath.Join(dir, indexFileName), nil
}
