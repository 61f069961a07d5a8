package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/action"
	"github.com/frobware/go-dsa/compute"
)

// activate executes the apply plan of a resolved tree. On failure the
// undo stack unwinds every completed step, including the partial work
// on the failing member, before the error is returned.
func (m *Manager) activate(ctx context.Context, t *dsa.Tree) error {
	start := time.Now()
	t.State = dsa.TreeApplying

	var undo undoStack
	for _, a := range compute.ApplyPlan(t) {
		if err := m.executor.Execute(ctx, a); err != nil {
			if cu, ok := a.(action.CreateUserPort); ok {
				m.logger.WarnContext(ctx, "user port left without interface",
					"switch", cu.Switch, "port", cu.Port, "name", cu.Name, "error", err)
				continue
			}

			m.logger.ErrorContext(ctx, "activation failed, rolling back", "tree", t.ID, "step", a.Describe(), "error", err)
			actErr := &dsa.ActivationError{Tree: t.ID, Step: a.Describe(), Err: err}
			if sw := action.SwitchOf(a); sw != nil {
				actErr.Member = sw.Index()
			}
			if rbErr := undo.rollback(m.logger); rbErr != nil {
				actErr.Err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			t.State = dsa.TreeUnapplied
			m.observer.RolledBack(t.ID)
			return actErr
		}

		if inv, ok := action.Inverse(a); ok {
			// Rollback must finish even if the caller gives up.
			rbCtx := context.WithoutCancel(ctx)
			undo.push(func() error {
				if err := m.executor.Execute(rbCtx, inv); err != nil {
					return fmt.Errorf("%s: %w", inv.Describe(), err)
				}
				return nil
			})
		}
	}

	m.observer.TreeActivated(t.ID, time.Since(start))
	m.logger.InfoContext(ctx, "tree applied",
		"tree", t.ID,
		"members", t.Members(),
		"master", t.Master,
		"protocol", t.Tagger.Protocol,
		"duration", time.Since(start))
	return nil
}

// deactivate executes the unapply plan of an active tree. Every step
// runs even if an earlier one fails; the failures are joined. An
// inactive tree is left alone.
func (m *Manager) deactivate(ctx context.Context, t *dsa.Tree) error {
	actions := compute.UnapplyPlan(t)
	if len(actions) == 0 {
		return nil
	}

	var errs []error
	for _, a := range actions {
		if err := m.executor.Execute(ctx, a); err != nil {
			m.logger.ErrorContext(ctx, "teardown step failed", "tree", t.ID, "step", a.Describe(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Describe(), err))
		}
	}

	m.observer.TreeDeactivated(t.ID)
	m.logger.InfoContext(ctx, "tree unapplied", "tree", t.ID)
	return errors.Join(errs...)
}
