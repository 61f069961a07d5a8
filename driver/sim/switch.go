// Package sim provides an in-process switch driver and host. The
// daemon uses them for switches described with driver "sim" and tests
// use them to observe and fail individual lifecycle steps.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/frobware/go-dsa"
)

// Driver operation names, as recorded by Calls and accepted by FailOn.
const (
	OpSetup      = "setup"
	OpTeardown   = "teardown"
	OpSetAddress = "set_address"
	OpNotify     = "notify"
	OpPHYRead    = "phy_read"
	OpPHYWrite   = "phy_write"
)

// Switch is a simulated switch chip. It implements dsa.SwitchOps and
// every optional driver capability. It is safe for concurrent use.
type Switch struct {
	proto  dsa.TagProtocol
	logger *slog.Logger

	mu     sync.Mutex
	calls  []string
	fail   map[string]error
	addr   net.HardwareAddr
	phy    map[[2]int]uint16
	ageing time.Duration
	fdb    map[fdbKey]uint32
	up     bool
}

type fdbKey struct {
	addr [6]byte
	vid  uint16
}

var (
	_ dsa.SwitchOps           = (*Switch)(nil)
	_ dsa.AddressSetter       = (*Switch)(nil)
	_ dsa.PHYAccessor         = (*Switch)(nil)
	_ dsa.Teardowner          = (*Switch)(nil)
	_ dsa.NotificationHandler = (*Switch)(nil)
)

// NewSwitch returns a simulated chip that asks for proto on its uplink.
func NewSwitch(proto dsa.TagProtocol, logger *slog.Logger) *Switch {
	if logger == nil {
		logger = slog.Default()
	}
	if proto == "" {
		proto = dsa.TagProtoNone
	}
	return &Switch{
		proto:  proto,
		logger: logger.With("component", "sim"),
		fail:   make(map[string]error),
		phy:    make(map[[2]int]uint16),
		fdb:    make(map[fdbKey]uint32),
	}
}

// FailOn makes every later call of op return err. A nil err clears the
// failure.
func (s *Switch) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Calls returns the operations performed so far, oldest first.
func (s *Switch) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Count returns how many times op succeeded.
func (s *Switch) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Up reports whether the chip is set up.
func (s *Switch) Up() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

// Address returns the last programmed fabric address.
func (s *Switch) Address() net.HardwareAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.addr)
}

// AgeingTime returns the last ageing time notified.
func (s *Switch) AgeingTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ageing
}

// FDBEntries returns the number of forwarding entries installed.
func (s *Switch) FDBEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fdb)
}

// do records op unless a failure was injected for it. Callers hold mu.
func (s *Switch) do(op string) error {
	if err, ok := s.fail[op]; ok {
		return fmt.Errorf("sim %s: %w", op, err)
	}
	s.calls = append(s.calls, op)
	return nil
}

func (s *Switch) Setup(ctx context.Context, sw *dsa.Switch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(OpSetup); err != nil {
		return err
	}
	s.up = true
	s.logger.DebugContext(ctx, "chip setup", "switch", sw, "enabled", sw.EnabledPorts, "link", sw.LinkPorts)
	return nil
}

func (s *Switch) Teardown(ctx context.Context, sw *dsa.Switch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(OpTeardown); err != nil {
		return err
	}
	s.up = false
	clear(s.fdb)
	s.logger.DebugContext(ctx, "chip teardown", "switch", sw)
	return nil
}

func (s *Switch) TagProtocol(*dsa.Switch) dsa.TagProtocol { return s.proto }

func (s *Switch) SetAddress(_ context.Context, _ *dsa.Switch, addr net.HardwareAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(OpSetAddress); err != nil {
		return err
	}
	s.addr = slices.Clone(addr)
	return nil
}

func (s *Switch) PHYRead(_ *dsa.Switch, port, reg int) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(OpPHYRead); err != nil {
		return 0, err
	}
	return s.phy[[2]int{port, reg}], nil
}

func (s *Switch) PHYWrite(_ *dsa.Switch, port, reg int, val uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(OpPHYWrite); err != nil {
		return err
	}
	s.phy[[2]int{port, reg}] = val
	return nil
}

func (s *Switch) HandleNotification(ctx context.Context, sw *dsa.Switch, n dsa.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(OpNotify); err != nil {
		return err
	}
	switch n := n.(type) {
	case dsa.AgeingTimeNotification:
		s.ageing = n.AgeingTime
	case dsa.FDBNotification:
		key := fdbKey{addr: n.Addr, vid: n.VID}
		if n.Delete {
			delete(s.fdb, key)
		} else {
			s.fdb[key] = n.Member<<8 | uint32(n.Port)
		}
	}
	s.logger.DebugContext(ctx, "notification", "switch", sw, "kind", fmt.Sprintf("%T", n))
	return nil
}
