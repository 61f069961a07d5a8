package dsa

import (
	"net"
	"sync/atomic"
)

// NetDevice is a host network interface that can act as a tree's
// uplink. Resolvers must hand out one *NetDevice per host interface so
// that publication is visible to every reader.
type NetDevice struct {
	Name         string
	Index        int
	HardwareAddr net.HardwareAddr

	hook atomic.Pointer[Hook]
}

// Hook is what an active tree publishes on its uplink device for the
// data plane.
type Hook struct {
	Tree     TreeID
	Protocol TagProtocol
	Rcv      RcvFunc
}

// Hook returns the published receive hook, or nil. It is the only tree
// state that may be read without the writer lock; the load pairs with
// the store in Publish so a non-nil result is always fully built.
func (d *NetDevice) Hook() *Hook {
	return d.hook.Load()
}

// Publish exposes h to the data plane. h must not be modified
// afterwards.
func (d *NetDevice) Publish(h *Hook) {
	d.hook.Store(h)
}

// Unpublish withdraws the hook. Readers that load after Unpublish
// returns observe nil.
func (d *NetDevice) Unpublish() {
	d.hook.Store(nil)
}

func (d *NetDevice) String() string {
	if d == nil {
		return "<nil>"
	}
	return d.Name
}
