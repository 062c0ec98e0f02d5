package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the per-user directory holding the daemon socket, creating a
// private one under /tmp when the session has none.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}
	uid := os.Getuid()
	if dir := fmt.Sprintf("/run/user/%d", uid); isDir(dir) {
		return dir, nil
	}
	dir := fmt.Sprintf("/tmp/xgrab-runtime-%d", uid)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return dir, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "xgrab.sock"), nil
}

// ResolveSocket returns override when set, otherwise SocketPath.
func ResolveSocket(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return SocketPath()
}
