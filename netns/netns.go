// Package netns runs host network operations inside a chosen network
// namespace.
package netns

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// ID returns the inode number identifying the network namespace at
// path, or the current namespace if path is empty.
func ID(path string) (uint64, error) {
	if path == "" {
		path = "/proc/self/ns/net"
	}
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return stat.Ino, nil
}

// Swapped by tests.
var (
	setns          = unix.Setns
	unlockOSThread = runtime.UnlockOSThread
)

// Run executes fn in the network namespace specified by path.
// If path is empty, fn is executed in the current namespace (no switch).
// The original namespace is restored after fn returns, even if fn
// panics. If restoring fails the thread stays locked, so the runtime
// discards it when the calling goroutine exits rather than reusing a
// thread in the wrong namespace.
//
// Usage:
//
//	err := netns.Run("/var/run/netns/fabric", func() error {
//	    // operations in target namespace
//	    return nil
//	})
func Run(path string, fn func() error) (err error) {
	if path == "" {
		return fn()
	}

	runtime.LockOSThread()
	restored := true
	defer func() {
		if restored {
			unlockOSThread()
		}
	}()

	originalNS, err := os.Open("/proc/thread-self/ns/net")
	if err != nil {
		return fmt.Errorf("open current netns: %w", err)
	}
	defer originalNS.Close()

	targetNS, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open target netns %s: %w", path, err)
	}
	defer targetNS.Close()

	if err := setns(int(targetNS.Fd()), unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("setns to target netns: %w", err)
	}

	defer func() {
		if rerr := setns(int(originalNS.Fd()), unix.CLONE_NEWNET); rerr != nil {
			restored = false
			err = errors.Join(err, fmt.Errorf("restore netns: %w", rerr))
		}
	}()

	return fn()
}
