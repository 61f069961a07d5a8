package dsa

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// TreeID identifies a tree. Legacy single-switch setups use tree 0.
type TreeID uint32

// TreeState is the activation state of a tree.
type TreeState int

const (
	TreeUnapplied TreeState = iota
	TreeApplying
	TreeApplied
)

func (s TreeState) String() string {
	switch s {
	case TreeUnapplied:
		return "unapplied"
	case TreeApplying:
		return "applying"
	case TreeApplied:
		return "applied"
	default:
		return fmt.Sprintf("TreeState(%d)", int(s))
	}
}

// Tree is a set of switches cooperating as one fabric.
//
// All fields are guarded by the fabric writer lock, except the hook
// published on Master, see NetDevice.Hook.
type Tree struct {
	ID TreeID

	State TreeState

	// Resolved topology. Valid once the tree has been resolved and
	// reset whenever membership changes.
	Master       *NetDevice
	UplinkSwitch *Switch
	UplinkPort   int
	Tagger       *TagOps
	Rcv          RcvFunc

	switches  [MaxSwitches]*Switch
	refs      int
	listeners [MaxSwitches]bool
}

// Applied reports whether the tree is active.
func (t *Tree) Applied() bool { return t.State == TreeApplied }

// Refs returns the tree's reference count.
func (t *Tree) Refs() int { return t.refs }

// Switch returns the member at index, or nil.
func (t *Tree) Switch(index uint32) *Switch {
	if index >= MaxSwitches {
		return nil
	}
	return t.switches[index]
}

// Switches yields the present members in index order.
func (t *Tree) Switches() iter.Seq2[uint32, *Switch] {
	return func(yield func(uint32, *Switch) bool) {
		for i, sw := range t.switches {
			if sw == nil {
				continue
			}
			if !yield(uint32(i), sw) {
				return
			}
		}
	}
}

// Members returns the number of present switches.
func (t *Tree) Members() int {
	n := 0
	for _, sw := range t.switches {
		if sw != nil {
			n++
		}
	}
	return n
}

// ResetTopology forgets the resolved uplink and tagger.
func (t *Tree) ResetTopology() {
	t.Master = nil
	t.UplinkSwitch = nil
	t.UplinkPort = 0
	t.Tagger = nil
	t.Rcv = nil
}

// RegisterNotifier subscribes sw to fabric-wide notifications.
func (t *Tree) RegisterNotifier(sw *Switch) error {
	if sw.tree != t {
		return fmt.Errorf("switch %s is not a member of tree %d", sw, t.ID)
	}
	t.listeners[sw.index] = true
	return nil
}

// UnregisterNotifier unsubscribes sw.
func (t *Tree) UnregisterNotifier(sw *Switch) {
	if sw.tree == t {
		t.listeners[sw.index] = false
	}
}

// Notifying reports whether sw is subscribed.
func (t *Tree) Notifying(sw *Switch) bool {
	return sw.tree == t && t.listeners[sw.index]
}

// Notify delivers n to every subscribed switch whose driver handles
// notifications, in index order. Every switch is notified even if an
// earlier one fails.
func (t *Tree) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for i, sw := range t.Switches() {
		if !t.listeners[i] {
			continue
		}
		h, ok := sw.Ops.(NotificationHandler)
		if !ok {
			continue
		}
		if err := h.HandleNotification(ctx, sw, n); err != nil {
			errs = append(errs, fmt.Errorf("switch %s: %w", sw, err))
		}
	}
	return errors.Join(errs...)
}
