package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDirs holds all runtime directory paths for the daemon.
//
//	{base}/        - runtime root
//	{base}/db/     - journal directory
//	{base}/.lock   - fabric writer lock file
//	{base}-sock/   - gRPC socket directory
//
// RuntimeDirs is immutable after construction. Use NewRuntimeDirs to create.
// Fields are unexported to prevent construction of invalid instances.
type RuntimeDirs struct {
	base string
	db   string
	sock string
	lock string
}

// DefaultRuntimeDirs returns RuntimeDirs with production defaults.
// Panics if the default path is somehow invalid (should never happen).
func DefaultRuntimeDirs() RuntimeDirs {
	dirs, err := NewRuntimeDirs("/run/dsa")
	if err != nil {
		panic(fmt.Sprintf("DefaultRuntimeDirs: %v", err))
	}
	return dirs
}

// NewRuntimeDirs creates RuntimeDirs rooted at the given base path.
// All subdirectories are derived from the base.
//
// The socket directory is {base}-sock (e.g., /run/dsa-sock) so it can be
// mounted separately.
//
// Returns an error if base is empty or not an absolute path.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	if base == "" {
		return RuntimeDirs{}, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}
	base = filepath.Clean(base)

	return RuntimeDirs{
		base: base,
		db:   filepath.Join(base, "db"),
		sock: base + "-sock",
		lock: filepath.Join(base, ".lock"),
	}, nil
}

// Base returns the runtime root path (e.g., /run/dsa).
func (d RuntimeDirs) Base() string { return d.base }

// DB returns the journal directory path.
func (d RuntimeDirs) DB() string { return d.db }

// Sock returns the gRPC socket directory path.
func (d RuntimeDirs) Sock() string { return d.sock }

// Lock returns the fabric writer lock file path.
func (d RuntimeDirs) Lock() string { return d.lock }

// SocketPath returns the full path to the gRPC socket.
func (d RuntimeDirs) SocketPath() string {
	return filepath.Join(d.sock, "dsa.sock")
}

// DBPath returns the full path to the SQLite journal.
func (d RuntimeDirs) DBPath() string {
	return filepath.Join(d.db, "journal.db")
}

// EnsureDirectories creates the runtime directories. Call this at
// startup to fail fast on permission or configuration issues.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.db, d.sock} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
