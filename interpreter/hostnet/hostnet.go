// Package hostnet implements the host collaborators on a Linux host
// using netlink.
//
// Uplink devices are looked up by interface name. A device that does
// not exist yet is reported as dsa.ErrNotYetAvailable so the
// registration can be retried once it appears. User ports become dummy
// interfaces named after the port label; link ports have no host-side
// presence. Management buses are kept in an in-process table.
package hostnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/logging"
	"github.com/frobware/go-dsa/netns"
)

// Netlink is the subset of netlink the host needs.
type Netlink interface {
	LinkByName(name string) (netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
}

// System is the netlink of the calling process.
type System struct{}

func (System) LinkByName(name string) (netlink.Link, error) { return netlink.LinkByName(name) }
func (System) LinkSetUp(link netlink.Link) error            { return netlink.LinkSetUp(link) }
func (System) LinkSetDown(link netlink.Link) error          { return netlink.LinkSetDown(link) }
func (System) LinkAdd(link netlink.Link) error              { return netlink.LinkAdd(link) }
func (System) LinkDel(link netlink.Link) error              { return netlink.LinkDel(link) }

// Host drives host network devices. It is safe for concurrent use,
// though the fabric calls it under its writer lock.
type Host struct {
	nl        Netlink
	namespace string
	logger    *slog.Logger

	mu      sync.Mutex
	devices map[string]*dsa.NetDevice
	// raised counts the uplink ports that needed a device brought up;
	// the device goes back down when the last of them is torn down.
	raised map[string]int
	buses  map[string]*Bus
	stats  map[string]statsBaseline
}

type statsBaseline struct {
	device string
	base   netlink.LinkStatistics
}

var _ interpreter.HostOperations = (*Host)(nil)

// Option configures a Host.
type Option func(*Host)

// WithNetlink replaces the netlink implementation.
func WithNetlink(nl Netlink) Option {
	return func(h *Host) { h.nl = nl }
}

// WithNamespace runs every netlink operation in the network namespace
// at path.
func WithNamespace(path string) Option {
	return func(h *Host) { h.namespace = path }
}

// New returns a Host.
func New(logger *slog.Logger, opts ...Option) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		nl:      System{},
		devices: make(map[string]*dsa.NetDevice),
		raised:  make(map[string]int),
		buses:   make(map[string]*Bus),
		stats:   make(map[string]statsBaseline),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logger.With("component", "hostnet")
	if h.namespace != "" {
		if id, err := netns.ID(h.namespace); err == nil {
			h.logger = h.logger.With("netns", id)
		}
	}
	return h
}

// Namespace returns the network namespace path netlink calls run in,
// or "" for the caller's own.
func (h *Host) Namespace() string { return h.namespace }

func (h *Host) run(fn func() error) error {
	return netns.Run(h.namespace, fn)
}

func (h *Host) linkByName(name string) (netlink.Link, error) {
	var link netlink.Link
	err := h.run(func() error {
		var err error
		link, err = h.nl.LinkByName(name)
		return err
	})
	return link, err
}

// notFound reports whether err means the interface does not exist.
func notFound(err error) bool {
	var lnf netlink.LinkNotFoundError
	return errors.As(err, &lnf) || errors.Is(err, unix.ENODEV)
}

func (h *Host) NetDeviceByNode(ctx context.Context, node dsa.ConfigNode) (*dsa.NetDevice, error) {
	name, ok := node.ReadString(devtree.PropIfname)
	if !ok || name == "" {
		return nil, dsa.Invalid(dsa.PropEthernet, "%s names no host interface", node.Path())
	}
	return h.NetDeviceByName(ctx, name)
}

// NetDeviceByName returns the interned device for name. The first
// lookup that finds the interface interns it; later lookups still
// check the interface exists.
func (h *Host) NetDeviceByName(ctx context.Context, name string) (*dsa.NetDevice, error) {
	link, err := h.linkByName(name)
	if err != nil {
		if notFound(err) {
			h.logger.DebugContext(ctx, "host device not present", "device", name)
			return nil, fmt.Errorf("host device %q: %w", name, dsa.ErrNotYetAvailable)
		}
		return nil, fmt.Errorf("host device %q: %w", name, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.devices[name]
	if !ok {
		dev = &dsa.NetDevice{Name: name}
		h.devices[name] = dev
	}
	// A published hook pins the device; its identity must not shift
	// underneath the data plane.
	if dev.Hook() == nil {
		attrs := link.Attrs()
		dev.Index = attrs.Index
		dev.HardwareAddr = append(net.HardwareAddr(nil), attrs.HardwareAddr...)
	}
	return dev, nil
}

// SetupCascadePort brings the host device behind an uplink port up.
// Link ports connect two chips and need nothing on the host.
func (h *Host) SetupCascadePort(ctx context.Context, sw *dsa.Switch, port int) error {
	dev, ok := uplinkDevice(sw, port)
	if !ok {
		h.logger.Log(ctx, logging.LevelTrace.ToSlog(), "link port has no host side", "switch", sw, "port", port)
		return nil
	}

	link, err := h.linkByName(dev)
	if err != nil {
		return fmt.Errorf("uplink %s: %w", dev, err)
	}
	if link.Attrs().Flags&net.FlagUp != 0 {
		return nil
	}
	if err := h.run(func() error { return h.nl.LinkSetUp(link) }); err != nil {
		return fmt.Errorf("set %s up: %w", dev, err)
	}

	h.mu.Lock()
	h.raised[portKey(sw, port)]++
	h.mu.Unlock()
	h.logger.InfoContext(ctx, "uplink device brought up", "device", dev, "switch", sw, "port", port)
	return nil
}

// TeardownCascadePort takes the uplink device back down if this port
// brought it up.
func (h *Host) TeardownCascadePort(ctx context.Context, sw *dsa.Switch, port int) error {
	dev, ok := uplinkDevice(sw, port)
	if !ok {
		return nil
	}

	key := portKey(sw, port)
	h.mu.Lock()
	n := h.raised[key]
	if n > 0 {
		if n == 1 {
			delete(h.raised, key)
		} else {
			h.raised[key] = n - 1
		}
	}
	h.mu.Unlock()
	if n == 0 {
		return nil
	}

	link, err := h.linkByName(dev)
	if err != nil {
		if notFound(err) {
			return nil
		}
		return fmt.Errorf("uplink %s: %w", dev, err)
	}
	if err := h.run(func() error { return h.nl.LinkSetDown(link) }); err != nil {
		return fmt.Errorf("set %s down: %w", dev, err)
	}
	h.logger.InfoContext(ctx, "uplink device restored down", "device", dev)
	return nil
}

// uplinkDevice names the host device behind port, if it is an uplink.
func uplinkDevice(sw *dsa.Switch, port int) (string, bool) {
	if port < 0 || port >= sw.NumPorts() || sw.Ports[port].Role() != dsa.RoleUplink {
		return "", false
	}
	if sw.Master != nil {
		return sw.Master.Name, true
	}
	if t := sw.Tree(); t != nil && t.Master != nil {
		return t.Master.Name, true
	}
	return "", false
}

func portKey(sw *dsa.Switch, port int) string {
	return fmt.Sprintf("%s/%d", sw.Name, port)
}

// userPort is a dummy interface standing for a user port.
type userPort struct {
	name  string
	index int
}

func (p userPort) Name() string { return p.name }

// CreateUserPort adds a dummy interface for a user port. An existing
// interface of the same name is an error.
func (h *Host) CreateUserPort(ctx context.Context, sw *dsa.Switch, port int, name string) (dsa.Interface, error) {
	if name == "" {
		name = defaultPortName(sw, port)
	}
	if len(name) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("interface name %q longer than %d bytes", name, unix.IFNAMSIZ-1)
	}

	dummy := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name}}
	if err := h.run(func() error { return h.nl.LinkAdd(dummy) }); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("user port %s: interface already exists: %w", name, err)
		}
		return nil, fmt.Errorf("user port %s: %w", name, err)
	}

	link, err := h.linkByName(name)
	if err != nil {
		return nil, fmt.Errorf("user port %s: %w", name, err)
	}
	if err := h.run(func() error { return h.nl.LinkSetUp(link) }); err != nil {
		_ = h.run(func() error { return h.nl.LinkDel(link) })
		return nil, fmt.Errorf("set %s up: %w", name, err)
	}

	h.logger.DebugContext(ctx, "user port created", "switch", sw, "port", port, "name", name, "ifindex", link.Attrs().Index)
	return userPort{name: name, index: link.Attrs().Index}, nil
}

// defaultPortName is used when a port carries no label.
func defaultPortName(sw *dsa.Switch, port int) string {
	if t := sw.Tree(); t != nil {
		return fmt.Sprintf("dsa%d.%dp%d", t.ID, sw.Index(), port)
	}
	return fmt.Sprintf("%sp%d", sw.Name, port)
}

func (h *Host) DestroyUserPort(ctx context.Context, sw *dsa.Switch, port int, iface dsa.Interface) error {
	link, err := h.linkByName(iface.Name())
	if err != nil {
		if notFound(err) {
			h.logger.WarnContext(ctx, "user port already gone", "switch", sw, "port", port, "name", iface.Name())
			return nil
		}
		return fmt.Errorf("user port %s: %w", iface.Name(), err)
	}
	if err := h.run(func() error { return h.nl.LinkDel(link) }); err != nil {
		return fmt.Errorf("delete %s: %w", iface.Name(), err)
	}
	return nil
}

// Bus is a software management bus. PHY accesses go through the
// switch's driver.
type Bus struct {
	id string
	sw *dsa.Switch
}

func (b *Bus) ID() string { return b.id }

// Read reads a PHY register of port.
func (b *Bus) Read(port, reg int) (uint16, error) {
	phy, ok := b.sw.Ops.(dsa.PHYAccessor)
	if !ok {
		return 0, fmt.Errorf("bus %s: driver has no PHY access", b.id)
	}
	if !b.sw.PhyMask.Has(port) {
		return 0xffff, nil
	}
	return phy.PHYRead(b.sw, port, reg)
}

// Write writes a PHY register of port.
func (b *Bus) Write(port, reg int, val uint16) error {
	phy, ok := b.sw.Ops.(dsa.PHYAccessor)
	if !ok {
		return fmt.Errorf("bus %s: driver has no PHY access", b.id)
	}
	if !b.sw.PhyMask.Has(port) {
		return nil
	}
	return phy.PHYWrite(b.sw, port, reg, val)
}

// NewMDIOBus registers a bus named after the switch's place in its
// tree.
func (h *Host) NewMDIOBus(ctx context.Context, sw *dsa.Switch) (dsa.MDIOBus, error) {
	t := sw.Tree()
	if t == nil {
		return nil, fmt.Errorf("switch %s is not in a tree", sw)
	}
	id := fmt.Sprintf("dsa-%d.%d", t.ID, sw.Index())

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.buses[id]; exists {
		return nil, fmt.Errorf("mdio bus %s already registered", id)
	}
	b := &Bus{id: id, sw: sw}
	h.buses[id] = b
	h.logger.DebugContext(ctx, "mdio bus registered", "bus", id, "phys", sw.PhyMask)
	return b, nil
}

func (h *Host) UnregisterMDIOBus(_ context.Context, _ *dsa.Switch, bus dsa.MDIOBus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.buses[bus.ID()]; !ok {
		return fmt.Errorf("mdio bus %s not registered", bus.ID())
	}
	delete(h.buses, bus.ID())
	return nil
}

// Bus returns a registered bus.
func (h *Host) Bus(id string) (*Bus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buses[id]
	return b, ok
}

// SetupUplinkStats snapshots the uplink device's counters so that the
// traffic seen through the fabric can be reported from then on.
func (h *Host) SetupUplinkStats(ctx context.Context, sw *dsa.Switch, port int) error {
	dev, ok := uplinkDevice(sw, port)
	if !ok {
		return fmt.Errorf("switch %s port %d is not an uplink", sw, port)
	}
	link, err := h.linkByName(dev)
	if err != nil {
		return fmt.Errorf("uplink %s: %w", dev, err)
	}
	var base netlink.LinkStatistics
	if s := link.Attrs().Statistics; s != nil {
		base = netlink.LinkStatistics(*s)
	}

	h.mu.Lock()
	h.stats[sw.Name] = statsBaseline{device: dev, base: base}
	h.mu.Unlock()
	h.logger.DebugContext(ctx, "uplink stats baseline taken", "device", dev, "rx_packets", base.RxPackets, "tx_packets", base.TxPackets)
	return nil
}

func (h *Host) RestoreUplinkStats(_ context.Context, sw *dsa.Switch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.stats, sw.Name)
	return nil
}

// UplinkStats returns the uplink counters accumulated since the tree
// whose uplink switch is sw was activated.
func (h *Host) UplinkStats(sw *dsa.Switch) (netlink.LinkStatistics, error) {
	h.mu.Lock()
	baseline, ok := h.stats[sw.Name]
	h.mu.Unlock()
	if !ok {
		return netlink.LinkStatistics{}, fmt.Errorf("no uplink stats for %s", sw)
	}

	link, err := h.linkByName(baseline.device)
	if err != nil {
		return netlink.LinkStatistics{}, fmt.Errorf("uplink %s: %w", baseline.device, err)
	}
	var cur netlink.LinkStatistics
	if s := link.Attrs().Statistics; s != nil {
		cur = netlink.LinkStatistics(*s)
	}
	return netlink.LinkStatistics{
		RxPackets: cur.RxPackets - baseline.base.RxPackets,
		TxPackets: cur.TxPackets - baseline.base.TxPackets,
		RxBytes:   cur.RxBytes - baseline.base.RxBytes,
		TxBytes:   cur.TxBytes - baseline.base.TxBytes,
		RxErrors:  cur.RxErrors - baseline.base.RxErrors,
		TxErrors:  cur.TxErrors - baseline.base.TxErrors,
		RxDropped: cur.RxDropped - baseline.base.RxDropped,
		TxDropped: cur.TxDropped - baseline.base.TxDropped,
	}, nil
}
