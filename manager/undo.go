package manager

import (
	"errors"
	"log/slog"
)

// undoStack accumulates rollback closures that are executed in reverse
// order when activation fails partway through. Each closure undoes one
// completed step.
type undoStack []func() error

func (u *undoStack) push(fn func() error) {
	*u = append(*u, fn)
}

// rollback runs every closure, newest first, even if some fail. It
// returns the joined failures.
func (u undoStack) rollback(logger *slog.Logger) error {
	var errs []error
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](); err != nil {
			logger.Error("rollback step failed", "step", i, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
