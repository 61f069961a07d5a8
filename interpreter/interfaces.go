// Package interpreter contains interfaces and executors for effects.
// This is the only package that performs actual I/O against the host
// and the switch drivers.
package interpreter

import (
	"context"
	"io"
	"time"

	"github.com/frobware/go-dsa"
)

// NetDeviceResolver finds the host devices trees uplink to.
//
// Both methods return an error wrapping dsa.ErrNotYetAvailable when the
// device does not exist yet. Implementations must return the same
// *dsa.NetDevice for the same host device so that a published hook is
// visible to every reader of that device.
type NetDeviceResolver interface {
	// NetDeviceByNode resolves the device an "ethernet" reference
	// points at.
	NetDeviceByNode(ctx context.Context, node dsa.ConfigNode) (*dsa.NetDevice, error)

	// NetDeviceByName resolves a device by interface name, as used by
	// legacy descriptions.
	NetDeviceByName(ctx context.Context, name string) (*dsa.NetDevice, error)
}

// PortProvisioner programs ports outside the switch driver.
type PortProvisioner interface {
	// SetupCascadePort prepares a link or uplink port. The same call
	// serves both roles.
	SetupCascadePort(ctx context.Context, sw *dsa.Switch, port int) error
	TeardownCascadePort(ctx context.Context, sw *dsa.Switch, port int) error

	// CreateUserPort creates the user-facing interface of a port. An
	// empty name lets the provisioner choose one.
	CreateUserPort(ctx context.Context, sw *dsa.Switch, port int, name string) (dsa.Interface, error)
	DestroyUserPort(ctx context.Context, sw *dsa.Switch, port int, iface dsa.Interface) error
}

// MDIOBusManager creates management buses for switches that expose PHY
// registers.
type MDIOBusManager interface {
	NewMDIOBus(ctx context.Context, sw *dsa.Switch) (dsa.MDIOBus, error)
	UnregisterMDIOBus(ctx context.Context, sw *dsa.Switch, bus dsa.MDIOBus) error
}

// UplinkStats wires the uplink device's counters to the switch that
// owns the uplink port.
type UplinkStats interface {
	SetupUplinkStats(ctx context.Context, sw *dsa.Switch, port int) error
	RestoreUplinkStats(ctx context.Context, sw *dsa.Switch) error
}

// HostOperations combines all host-side collaborators.
type HostOperations interface {
	NetDeviceResolver
	PortProvisioner
	MDIOBusManager
	UplinkStats
}

// TaggerResolver maps a tag protocol to its data-plane operations. It
// returns an error wrapping dsa.ErrNoTagger for unknown protocols.
type TaggerResolver interface {
	Resolve(proto dsa.TagProtocol) (*dsa.TagOps, error)
}

// EventKind classifies journal entries.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventPending      EventKind = "pending"
	EventActivated    EventKind = "activated"
	EventDeactivated  EventKind = "deactivated"
	EventRolledBack   EventKind = "rolled_back"
	EventDeferred     EventKind = "deferred"
	EventRejected     EventKind = "rejected"
	EventUnregistered EventKind = "unregistered"
)

// JournalEntry is one lifecycle event.
type JournalEntry struct {
	ID     int64
	Time   time.Time
	Kind   EventKind
	Tree   dsa.TreeID
	Member uint32
	Switch string
	// Attempt identifies the registration attempt that produced the
	// entry; OpID the request that drove it. Either may be empty.
	Attempt string
	OpID    uint64
	Detail  string
}

// JournalFilter selects entries. Zero values match everything.
type JournalFilter struct {
	Tree   *dsa.TreeID
	Switch string
	Kind   EventKind
	// Limit caps the number of entries returned, newest first.
	Limit int
}

// Journal records lifecycle events for diagnostics. It is never read to
// rebuild fabric state.
type Journal interface {
	io.Closer
	Record(ctx context.Context, e JournalEntry) error
	Entries(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
}
