package netns

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeNamespace swaps setns and the thread unlock for the duration of
// the test. failRestore makes the second setns call (the restore) fail.
func fakeNamespace(t *testing.T, failRestore bool) (path string, unlocks *int) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "ns")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	calls, n := 0, 0
	setns, unlockOSThread = func(fd int, nstype int) error {
		calls++
		if calls == 2 && failRestore {
			return unix.EINVAL
		}
		return nil
	}, func() { n++ }
	t.Cleanup(func() {
		setns, unlockOSThread = unix.Setns, runtime.UnlockOSThread
	})
	return path, &n
}

// inGoroutine runs fn on its own goroutine so a thread left locked is
// retired with it instead of pinning the test goroutine.
func inGoroutine(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
}

func TestRun_UnlocksAfterRestore(t *testing.T) {
	path, unlocks := fakeNamespace(t, false)

	var err error
	inGoroutine(func() {
		err = Run(path, func() error { return nil })
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *unlocks)
}

func TestRun_KeepsThreadLockedWhenRestoreFails(t *testing.T) {
	path, unlocks := fakeNamespace(t, true)

	boom := errors.New("boom")
	var err error
	inGoroutine(func() {
		err = Run(path, func() error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, unix.EINVAL)
	assert.Zero(t, *unlocks, "thread must stay locked")
}
