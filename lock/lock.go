// Package lock provides the fabric writer lock that serialises every
// registration, unregistration and state query.
//
// Design principle: "Illegal states unrepresentable" - code that mutates
// fabric state takes a non-forgeable WriterScope that proves the lock
// is held. The only way to obtain one is to run under Writer.Run.
//
// The lock has two layers. In-process callers (concurrent probe
// contexts) queue on a weighted semaphore, so acquisition honours
// context cancellation. Optionally the lock also holds flock(2) on a
// file so that two daemons cannot drive the same host at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"
)

// ErrScopeReleased is returned by WriterScope.Check once the Run that
// produced the scope has returned.
var ErrScopeReleased = errors.New("writer scope used after release")

// WriterScope represents the dynamic execution region in which the
// writer lock is held. It is a capability, not a mutex: callers cannot
// construct, lock or unlock it. The unexported marker method prevents
// implementations outside this package.
type WriterScope interface {
	// Acquired reports when the lock was taken.
	Acquired() time.Time

	// Check returns ErrScopeReleased if the scope has escaped its Run.
	Check() error

	writerScopeMarker()
}

type writerScope struct {
	acquired time.Time
	released atomic.Bool
}

func (*writerScope) writerScopeMarker() {}

func (s *writerScope) Acquired() time.Time { return s.acquired }

func (s *writerScope) Check() error {
	if s.released.Load() {
		return ErrScopeReleased
	}
	return nil
}

// Writer is the fabric writer lock.
type Writer struct {
	sem  *semaphore.Weighted
	path string
}

// New returns a writer lock. If path is not empty the lock also holds
// an exclusive flock on that file while held.
func New(path string) *Writer {
	return &Writer{sem: semaphore.NewWeighted(1), path: path}
}

// Run acquires the lock, executes fn, then releases. The WriterScope
// proves to callees that the lock is held; it must not be retained
// after fn returns.
func (w *Writer) Run(ctx context.Context, fn func(context.Context, WriterScope) error) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	defer w.sem.Release(1)

	if w.path != "" {
		f, err := acquireFile(ctx, w.path)
		if err != nil {
			return err
		}
		defer f.Close()
	}

	scope := &writerScope{acquired: time.Now()}
	defer scope.released.Store(true)
	return fn(ctx, scope)
}

// acquireFile opens path and takes an exclusive flock, polling with
// exponential backoff while another process holds it.
func acquireFile(ctx context.Context, path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}
