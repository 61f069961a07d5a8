package manager

import (
	"time"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/interpreter"
)

// Observer is told about lifecycle outcomes. Calls happen under the
// writer lock and must not block.
type Observer interface {
	// Registration reports how a Register call ended.
	Registration(outcome interpreter.EventKind)
	TreeActivated(id dsa.TreeID, took time.Duration)
	TreeDeactivated(id dsa.TreeID)
	RolledBack(id dsa.TreeID)
}

type nopObserver struct{}

func (nopObserver) Registration(interpreter.EventKind)      {}
func (nopObserver) TreeActivated(dsa.TreeID, time.Duration) {}
func (nopObserver) TreeDeactivated(dsa.TreeID)              {}
func (nopObserver) RolledBack(dsa.TreeID)                   {}
