package manager

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestUndoStack_ReverseOrder(t *testing.T) {
	var order []int
	var undo undoStack
	for i := range 3 {
		undo.push(func() error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, undo.rollback(discard()))
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestUndoStack_RunsEveryStepAndJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	ran := 0
	var undo undoStack
	undo.push(func() error { ran++; return errA })
	undo.push(func() error { ran++; return nil })
	undo.push(func() error { ran++; return errB })

	err := undo.rollback(discard())
	assert.Equal(t, 3, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestUndoStack_EmptyIsNoop(t *testing.T) {
	var undo undoStack
	assert.NoError(t, undo.rollback(discard()))
}
