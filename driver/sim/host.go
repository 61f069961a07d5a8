package sim

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"sync"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/interpreter"
)

// Host operations, as accepted by FailOn.
const (
	OpCreateUserPort = "create_user_port"
	OpSetupCascade   = "setup_cascade"
	OpNewMDIOBus     = "new_mdio_bus"
	OpUplinkStats    = "uplink_stats"
)

// Host is an in-memory interpreter.HostOperations. Host devices exist
// only once added with AddDevice; until then resolving them reports
// dsa.ErrNotYetAvailable.
type Host struct {
	logger *slog.Logger

	mu        sync.Mutex
	devices   map[string]*dsa.NetDevice
	cascade   map[string]int
	userPorts map[string]string
	buses     map[string]bool
	stats     map[string]int
	fail      map[string]error
	failNames map[string]error
}

var _ interpreter.HostOperations = (*Host)(nil)

// NewHost returns an empty host.
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		logger:    logger.With("component", "sim"),
		devices:   make(map[string]*dsa.NetDevice),
		cascade:   make(map[string]int),
		userPorts: make(map[string]string),
		buses:     make(map[string]bool),
		stats:     make(map[string]int),
		fail:      make(map[string]error),
		failNames: make(map[string]error),
	}
}

// AddDevice makes a host device available and returns it. Adding an
// existing name returns the existing device.
func (h *Host) AddDevice(name string) *dsa.NetDevice {
	h.mu.Lock()
	defer h.mu.Unlock()
	if dev, ok := h.devices[name]; ok {
		return dev
	}
	dev := &dsa.NetDevice{
		Name:         name,
		Index:        len(h.devices) + 1,
		HardwareAddr: net.HardwareAddr{0x02, 0, 0, 0, 0, byte(len(h.devices) + 1)},
	}
	h.devices[name] = dev
	return dev
}

// FailOn makes op fail with err. A nil err clears the failure.
func (h *Host) FailOn(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.fail, op)
		return
	}
	h.fail[op] = err
}

// FailUserPort makes creating the user port called name fail.
func (h *Host) FailUserPort(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failNames[name] = err
}

// CascadePorts returns the number of link and uplink ports currently
// set up.
func (h *Host) CascadePorts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.cascade {
		n += c
	}
	return n
}

// UserPorts returns the names of the user port interfaces that exist.
func (h *Host) UserPorts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Sorted(maps.Values(h.userPorts))
}

// Buses returns the number of registered management buses.
func (h *Host) Buses() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buses)
}

// StatsHooks returns the number of uplink stats hooks installed.
func (h *Host) StatsHooks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stats)
}

func (h *Host) injected(op string) error {
	if err, ok := h.fail[op]; ok {
		return fmt.Errorf("sim host %s: %w", op, err)
	}
	return nil
}

func (h *Host) NetDeviceByNode(ctx context.Context, node dsa.ConfigNode) (*dsa.NetDevice, error) {
	name, ok := node.ReadString(devtree.PropIfname)
	if !ok {
		return nil, dsa.Invalid("ethernet", "%s names no host interface", node.Path())
	}
	return h.NetDeviceByName(ctx, name)
}

func (h *Host) NetDeviceByName(_ context.Context, name string) (*dsa.NetDevice, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.devices[name]
	if !ok {
		return nil, fmt.Errorf("host device %q: %w", name, dsa.ErrNotYetAvailable)
	}
	return dev, nil
}

func portKey(sw *dsa.Switch, port int) string {
	return fmt.Sprintf("%s/%d", sw.Name, port)
}

func (h *Host) SetupCascadePort(_ context.Context, sw *dsa.Switch, port int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.injected(OpSetupCascade); err != nil {
		return err
	}
	h.cascade[portKey(sw, port)]++
	return nil
}

func (h *Host) TeardownCascadePort(_ context.Context, sw *dsa.Switch, port int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := portKey(sw, port)
	if h.cascade[key] == 0 {
		return fmt.Errorf("port %s is not set up", key)
	}
	if h.cascade[key]--; h.cascade[key] == 0 {
		delete(h.cascade, key)
	}
	return nil
}

type userPort string

func (p userPort) Name() string { return string(p) }

func (h *Host) CreateUserPort(ctx context.Context, sw *dsa.Switch, port int, name string) (dsa.Interface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.injected(OpCreateUserPort); err != nil {
		return nil, err
	}
	if name == "" {
		name = fmt.Sprintf("%sp%d", sw.Name, port)
	}
	if err, ok := h.failNames[name]; ok {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	key := portKey(sw, port)
	if _, exists := h.userPorts[key]; exists {
		return nil, fmt.Errorf("user port %s already exists", key)
	}
	h.userPorts[key] = name
	h.logger.DebugContext(ctx, "user port created", "switch", sw, "port", port, "name", name)
	return userPort(name), nil
}

func (h *Host) DestroyUserPort(_ context.Context, sw *dsa.Switch, port int, _ dsa.Interface) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := portKey(sw, port)
	if _, ok := h.userPorts[key]; !ok {
		return fmt.Errorf("user port %s does not exist", key)
	}
	delete(h.userPorts, key)
	return nil
}

type bus string

func (b bus) ID() string { return string(b) }

func (h *Host) NewMDIOBus(_ context.Context, sw *dsa.Switch) (dsa.MDIOBus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.injected(OpNewMDIOBus); err != nil {
		return nil, err
	}
	id := "dsa-" + sw.Name
	if h.buses[id] {
		return nil, fmt.Errorf("mdio bus %s already registered", id)
	}
	h.buses[id] = true
	return bus(id), nil
}

func (h *Host) UnregisterMDIOBus(_ context.Context, _ *dsa.Switch, b dsa.MDIOBus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.buses[b.ID()] {
		return fmt.Errorf("mdio bus %s not registered", b.ID())
	}
	delete(h.buses, b.ID())
	return nil
}

func (h *Host) SetupUplinkStats(_ context.Context, sw *dsa.Switch, port int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.injected(OpUplinkStats); err != nil {
		return err
	}
	h.stats[sw.Name] = port
	return nil
}

func (h *Host) RestoreUplinkStats(_ context.Context, sw *dsa.Switch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.stats, sw.Name)
	return nil
}
