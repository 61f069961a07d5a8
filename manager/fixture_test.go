package manager_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/driver/sim"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/manager"
	"github.com/frobware/go-dsa/tagger"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set DSA_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("DSA_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chain is three switches cascaded sw0 - sw1 - sw2 with the host on
// sw0 port 5. sw3 claims a fourth slot without any links.
const chain = `
[[switch]]
name   = "sw0"
ports  = 7
member = [1, 0]
  [[switch.port]]
  reg   = 0
  label = "lan1"
  [[switch.port]]
  reg      = 5
  ethernet = "eth0"
  [[switch.port]]
  reg  = 6
  link = ["sw1/6"]

[[switch]]
name   = "sw1"
ports  = 7
member = [1, 1]
  [[switch.port]]
  reg   = 0
  label = "lan2"
  [[switch.port]]
  reg  = 5
  link = ["sw2/5"]
  [[switch.port]]
  reg  = 6
  link = ["sw0/6"]

[[switch]]
name   = "sw2"
ports  = 7
member = [1, 2]
  [[switch.port]]
  reg   = 1
  label = "lan3"
  [[switch.port]]
  reg  = 5
  link = ["sw1/5"]

[[switch]]
name   = "sw3"
ports  = 4
member = [1, 3]
  [[switch.port]]
  reg   = 0
  label = "lan4"
`

// pair is two switches linked port 6 to port 6, uplinked on sw0.
const pair = `
[[switch]]
name   = "a"
ports  = 7
member = [2, 0]
  [[switch.port]]
  reg      = 4
  ethernet = "eth1"
  [[switch.port]]
  reg  = 6
  link = ["b/6"]

[[switch]]
name   = "b"
ports  = 7
member = [2, 1]
  [[switch.port]]
  reg   = 0
  label = "wan"
  [[switch.port]]
  reg  = 6
  link = ["a/6"]
`

// testFabric wires a Manager to simulated switches and host.
type testFabric struct {
	t        *testing.T
	mgr      *manager.Manager
	host     *sim.Host
	taggers  *tagger.Registry
	desc     *devtree.Fabric
	ops      map[string]*sim.Switch
	switches map[string]*dsa.Switch
}

func newTestFabric(t *testing.T, desc string, opts ...manager.Option) *testFabric {
	t.Helper()
	fabric, err := devtree.Parse([]byte(desc), devtree.FormatTOML)
	require.NoError(t, err)

	f := &testFabric{
		t:        t,
		host:     sim.NewHost(testLogger()),
		taggers:  tagger.New(),
		desc:     fabric,
		ops:      make(map[string]*sim.Switch),
		switches: make(map[string]*dsa.Switch),
	}
	for _, entry := range fabric.Switches() {
		ops := sim.NewSwitch(entry.Tag, testLogger())
		sw, err := dsa.NewSwitch(entry.Name, ops, entry.NumPorts)
		require.NoError(t, err)
		f.ops[entry.Name] = ops
		f.switches[entry.Name] = sw
	}
	f.mgr = manager.New(f.host, f.taggers, testLogger(), opts...)
	return f
}

func (f *testFabric) register(name string) error {
	f.t.Helper()
	entry, ok := f.desc.Switch(name)
	require.True(f.t, ok, "switch %s not described", name)
	return f.mgr.Register(context.Background(), f.switches[name], entry.Config)
}

func (f *testFabric) registerAll(names ...string) {
	f.t.Helper()
	for _, name := range names {
		require.NoError(f.t, f.register(name), "register %s", name)
	}
}

func (f *testFabric) unregister(name string) error {
	return f.mgr.Unregister(context.Background(), f.switches[name])
}

func (f *testFabric) tree(id dsa.TreeID) manager.TreeStatus {
	f.t.Helper()
	ts, err := f.mgr.Tree(context.Background(), id)
	require.NoError(f.t, err)
	return ts
}

// recordingObserver remembers every callback.
type recordingObserver struct {
	mu          sync.Mutex
	outcomes    []interpreter.EventKind
	activated   []dsa.TreeID
	deactivated []dsa.TreeID
	rolledBack  []dsa.TreeID
}

func (o *recordingObserver) Registration(outcome interpreter.EventKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) TreeActivated(id dsa.TreeID, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activated = append(o.activated, id)
}

func (o *recordingObserver) TreeDeactivated(id dsa.TreeID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deactivated = append(o.deactivated, id)
}

func (o *recordingObserver) RolledBack(id dsa.TreeID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rolledBack = append(o.rolledBack, id)
}
