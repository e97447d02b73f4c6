package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/n0rdy/guardian/common"
)

const (
	guardianDir    = "guardian"
	guardianDbFile = "guardian.db"
)

// ResolveDBPath returns the explicitly configured path if there is one,
// otherwise it falls back to the per-OS data directory.
func ResolveDBPath(configured string) (string, error) {
	if configured == "" {
		return GetOrCreateDefaultDBPath()
	}
	if err := ensureParentDir(configured); err != nil {
		return "", err
	}
	return configured, nil
}

func GetOrCreateDefaultDBPath() (string, error) {
	candidates := candidateDBPaths(runtime.GOOS)
	if len(candidates) == 0 {
		return "", fmt.Errorf("could not determine a data directory for %s: pass --db-path explicitly", runtime.GOOS)
	}

	// an existing file wins over the preferred location, as the env vars might have changed since it was created
	var existing []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	switch len(existing) {
	case 0:
		if err := ensureParentDir(candidates[0]); err != nil {
			return "", err
		}
		return candidates[0], nil
	case 1:
		return existing[0], nil
	default:
		return "", fmt.Errorf("multiple database files found at: %v. Please remove duplicates manually", existing)
	}
}

// candidateDBPaths lists the possible DB file locations, the preferred one first.
func candidateDBPaths(goos string) []string {
	var dataDirs []string
	homeDir, _ := os.UserHomeDir()

	switch goos {
	case common.WindowsOS:
		dataDirs = append(dataDirs, os.Getenv("APPDATA"), os.Getenv("LOCALAPPDATA"), homeDir)
	case common.MacOS:
		if homeDir != "" {
			dataDirs = append(dataDirs, filepath.Join(homeDir, "Library", "Application Support"), homeDir)
		}
	default:
		dataDirs = append(dataDirs, os.Getenv("XDG_DATA_HOME"))
		if homeDir != "" {
			dataDirs = append(dataDirs, filepath.Join(homeDir, ".local", "share"), homeDir)
		}
	}

	paths := make([]string, 0, len(dataDirs))
	for _, dir := range dataDirs {
		if dir != "" {
			paths = append(paths, filepath.Join(dir, guardianDir, guardianDbFile))
		}
	}
	return paths
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
