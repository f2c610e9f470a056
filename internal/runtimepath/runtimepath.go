package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Dir returns the runtime directory used for the bus socket. Priority:
// 1) XDG runtime dir
// 2) /tmp/plasmazones-runtime-<uid> (created)
func Dir() (string, error) {
	if xdg.RuntimeDir != "" {
		if info, err := os.Stat(xdg.RuntimeDir); err == nil && info.IsDir() {
			return xdg.RuntimeDir, nil
		}
	}

	tmpDir := fmt.Sprintf("/tmp/plasmazones-runtime-%d", os.Getuid())
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the session bus socket path.
func SocketPath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "plasmazones.sock"), nil
}

// LayoutsDir returns the directory holding user layout files, one JSON
// file per layout named by UUID.
func LayoutsDir() string {
	return filepath.Join(xdg.DataHome, "plasmazones", "layouts")
}

// AssignmentsPath returns the layout-assignment store path.
func AssignmentsPath() string {
	return filepath.Join(xdg.ConfigHome, "plasmazones", "assignments.yaml")
}

// WindowStatePath returns the persistent window-record store path.
func WindowStatePath() string {
	return filepath.Join(xdg.StateHome, "plasmazones", "windows.yaml")
}

// ModeStatePath returns the mode-tracker state path.
func ModeStatePath() string {
	return filepath.Join(xdg.StateHome, "plasmazones", "mode.yaml")
}
