package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frobware/go-dsa/config"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/driver/sim"
	"github.com/frobware/go-dsa/interpreter/hostnet"
	"github.com/frobware/go-dsa/server/api"
)

func TestProbe_PendingThenActivated(t *testing.T) {
	h := newHarness(t, pair)
	h.host.AddDevice("eth1")

	res := h.probe("a")
	assert.Equal(t, "pending", res.Outcome)
	assert.Equal(t, uint32(2), res.Tree)
	assert.Equal(t, uint32(0), res.Member)
	assert.NotEmpty(t, res.Attempt)

	res = h.probe("b")
	assert.Equal(t, "activated", res.Outcome)
	assert.Equal(t, uint32(1), res.Member)

	tree := h.tree(2)
	assert.Equal(t, "applied", tree.State)
	assert.Equal(t, "eth1", tree.Master)
	assert.Equal(t, "a", tree.UplinkSwitch)
	assert.Equal(t, 4, tree.UplinkPort)
	assert.Equal(t, "none", tree.Protocol)
	require.Len(t, tree.Members, 2)
	assert.Equal(t, []api.Route{{Member: 1, Port: 6}}, tree.Members[0].Routes)
	assert.Equal(t, []api.Route{{Member: 0, Port: 6}}, tree.Members[1].Routes)
	assert.Equal(t, []int{4}, tree.Members[0].Uplink)
	assert.Equal(t, []int{6}, tree.Members[1].Link)
	assert.Equal(t, []string{"wan"}, h.host.UserPorts())
}

func TestProbe_DeferredUntilUplinkAppears(t *testing.T) {
	h := newHarness(t, pair)

	h.probe("a")
	res := h.probe("b")
	assert.Equal(t, "deferred", res.Outcome)
	assert.Contains(t, res.Detail, "not yet available")
	assert.Equal(t, []string{"b"}, h.srv.Deferred())

	// Still missing: the retry keeps the switch queued.
	h.srv.RetryDeferred(context.Background())
	assert.Equal(t, []string{"b"}, h.srv.Deferred())

	h.host.AddDevice("eth1")
	h.srv.RetryDeferred(context.Background())
	assert.Empty(t, h.srv.Deferred())
	assert.Equal(t, "applied", h.tree(2).State)

	// Every entry of the logical probe carries the same attempt.
	events := h.events(api.EventFilter{Switch: "b"})
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, res.Attempt, e.Attempt, "event %s", e.Kind)
	}
	assert.Equal(t, "activated", events[0].Kind)
}

func TestProbe_Errors(t *testing.T) {
	h := newHarness(t, pair)
	ctx := context.Background()

	_, err := h.client.Probe(ctx, wrapperspb.String(""))
	requireCode(t, codes.InvalidArgument, err)

	_, err = h.client.Probe(ctx, wrapperspb.String("nope"))
	requireCode(t, codes.NotFound, err)

	h.probe("a")
	_, err = h.client.Probe(ctx, wrapperspb.String("a"))
	requireCode(t, codes.AlreadyExists, err)
}

func TestProbe_UnknownDriver(t *testing.T) {
	h := newHarness(t, `
[[switch]]
name   = "x"
driver = "mv88e6xxx"
ports  = 4
member = [0, 0]
  [[switch.port]]
  reg      = 0
  ethernet = "eth0"
`)
	_, err := h.client.Probe(context.Background(), wrapperspb.String("x"))
	requireCode(t, codes.InvalidArgument, err)
}

func TestRemove(t *testing.T) {
	h := newHarness(t, pair)
	ctx := context.Background()
	h.host.AddDevice("eth1")
	h.probe("a")
	h.probe("b")

	_, err := h.client.Remove(ctx, wrapperspb.String("b"))
	require.NoError(t, err)
	tree := h.tree(2)
	assert.Equal(t, "unapplied", tree.State)
	require.Len(t, tree.Members, 1)
	assert.Empty(t, h.host.UserPorts())

	_, err = h.client.Remove(ctx, wrapperspb.String("b"))
	requireCode(t, codes.FailedPrecondition, err)

	_, err = h.client.Remove(ctx, wrapperspb.String("nope"))
	requireCode(t, codes.NotFound, err)

	// The same switch can be probed again.
	assert.Equal(t, "activated", h.probe("b").Outcome)
}

func TestRemove_CancelsDeferredProbe(t *testing.T) {
	h := newHarness(t, pair)
	h.probe("a")
	require.Equal(t, "deferred", h.probe("b").Outcome)

	_, err := h.client.Remove(context.Background(), wrapperspb.String("b"))
	require.NoError(t, err)
	assert.Empty(t, h.srv.Deferred())

	h.host.AddDevice("eth1")
	h.srv.RetryDeferred(context.Background())
	assert.Equal(t, "unapplied", h.tree(2).State)
}

// removeDuringRetry holds a retry of the deferred switch b inside
// Register, removes b, runs during before releasing the retry and
// returns once both have finished.
func removeDuringRetry(t *testing.T, g *gatedHost, h *harness, during func()) {
	t.Helper()
	ctx := context.Background()

	g.arm()
	retried := make(chan struct{})
	go func() {
		defer close(retried)
		h.srv.RetryDeferred(ctx)
	}()
	<-g.entered

	removed := make(chan error, 1)
	go func() { removed <- h.srv.remove(ctx, "b") }()
	require.Eventually(t, func() bool { return len(h.srv.Deferred()) == 0 }, 5*time.Second, time.Millisecond)

	during()
	close(g.release)
	<-retried
	require.NoError(t, <-removed)
}

func TestRemove_DuringRetryIsNotRequeued(t *testing.T) {
	g := newGatedHost()
	h := newHarnessWithHost(t, pair, g.Host, g)
	h.probe("a")
	require.Equal(t, "deferred", h.probe("b").Outcome)

	removeDuringRetry(t, g, h, func() {})
	assert.Empty(t, h.srv.Deferred())

	// The uplink appearing later must not bring b back.
	g.AddDevice("eth1")
	h.srv.RetryDeferred(context.Background())
	tree := h.tree(2)
	assert.Equal(t, "unapplied", tree.State)
	require.Len(t, tree.Members, 1)
	assert.Equal(t, "a", tree.Members[0].Name)
}

func TestRemove_DuringSuccessfulRetryUnregisters(t *testing.T) {
	g := newGatedHost()
	h := newHarnessWithHost(t, pair, g.Host, g)
	h.probe("a")
	require.Equal(t, "deferred", h.probe("b").Outcome)

	removeDuringRetry(t, g, h, func() { g.AddDevice("eth1") })
	assert.Empty(t, h.srv.Deferred())

	tree := h.tree(2)
	assert.Equal(t, "unapplied", tree.State)
	require.Len(t, tree.Members, 1)
	assert.Equal(t, "a", tree.Members[0].Name)
	assert.Empty(t, g.UserPorts())
}

func TestListTrees(t *testing.T) {
	h := newHarness(t, pair)
	resp, err := h.client.ListTrees(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	var list api.TreeList
	require.NoError(t, api.Decode(resp, &list))
	assert.Empty(t, list.Trees)

	h.probe("a")
	resp, err = h.client.ListTrees(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	require.NoError(t, api.Decode(resp, &list))
	require.Len(t, list.Trees, 1)
	assert.Equal(t, uint32(2), list.Trees[0].ID)
	assert.Equal(t, 1, list.Trees[0].Refs)
}

func TestGetTree_NotFound(t *testing.T) {
	h := newHarness(t, pair)
	_, err := h.client.GetTree(context.Background(), wrapperspb.UInt32(9))
	requireCode(t, codes.NotFound, err)
}

func TestEvents_Filter(t *testing.T) {
	h := newHarness(t, pair)
	h.host.AddDevice("eth1")
	h.probe("a")
	h.probe("b")

	events := h.events(api.EventFilter{Kind: "pending"})
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Switch)
	assert.NotZero(t, events[0].OpID)

	assert.Len(t, h.events(api.EventFilter{Limit: 2}), 2)

	other := uint32(7)
	assert.Empty(t, h.events(api.EventFilter{Tree: &other}))

	_, err := h.client.Events(context.Background(), mustStruct(t, map[string]any{"colour": "red"}))
	requireCode(t, codes.InvalidArgument, err)

	_, err = h.client.Events(context.Background(), mustStruct(t, map[string]any{"limit": -1}))
	requireCode(t, codes.InvalidArgument, err)
}

func TestNotify(t *testing.T) {
	h := newHarness(t, pair)

	err := h.notify(api.NotifyRequest{Tree: 2, AgeingTime: "30s"})
	requireCode(t, codes.NotFound, err)

	h.probe("a")
	err = h.notify(api.NotifyRequest{Tree: 2, AgeingTime: "30s"})
	requireCode(t, codes.FailedPrecondition, err)

	h.host.AddDevice("eth1")
	h.probe("b")
	require.NoError(t, h.notify(api.NotifyRequest{Tree: 2, AgeingTime: "30s"}))
	assert.Equal(t, 30*time.Second, h.simSwitch("a").AgeingTime())
	assert.Equal(t, 30*time.Second, h.simSwitch("b").AgeingTime())

	require.NoError(t, h.notify(api.NotifyRequest{Tree: 2, FDB: &api.FDBNotifyBody{
		Member: 1, Port: 0, Addr: "02:00:00:00:00:aa", VID: 1,
	}}))
	assert.Equal(t, 1, h.simSwitch("b").FDBEntries())

	for name, req := range map[string]api.NotifyRequest{
		"empty":         {Tree: 2},
		"both":          {Tree: 2, AgeingTime: "1s", FDB: &api.FDBNotifyBody{Addr: "02:00:00:00:00:01"}},
		"bad duration":  {Tree: 2, AgeingTime: "soon"},
		"zero duration": {Tree: 2, AgeingTime: "0s"},
		"bad mac":       {Tree: 2, FDB: &api.FDBNotifyBody{Addr: "zz"}},
	} {
		t.Run(name, func(t *testing.T) {
			requireCode(t, codes.InvalidArgument, h.notify(req))
		})
	}
}

func TestProbeAll(t *testing.T) {
	h := newHarness(t, pair)
	h.host.AddDevice("eth1")

	h.srv.ProbeAll(context.Background())
	assert.Equal(t, "applied", h.tree(2).State)
	assert.Empty(t, h.srv.Deferred())
}

func TestRetryDeferred_StopsOnCancel(t *testing.T) {
	h := newHarness(t, pair)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.srv.retryDeferred(ctx, time.Millisecond)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not stop")
	}
}

func TestRun(t *testing.T) {
	dirs, err := config.NewRuntimeDirs(filepath.Join(t.TempDir(), "run"))
	require.NoError(t, err)

	fabric, err := devtree.Parse([]byte(pair), devtree.FormatTOML)
	require.NoError(t, err)

	host := sim.NewHost(testLogger())
	host.AddDevice("eth1")

	appCfg := config.DefaultConfig()
	appCfg.Server.MetricsAddress = ""

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- Run(ctx, RunConfig{
			Dirs:   dirs,
			Config: appCfg,
			Logger: testLogger(),
			Fabric: fabric,
			Host:   host,
		})
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(dirs.SocketPath())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	conn, err := grpc.NewClient("unix://"+dirs.SocketPath(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	resp, err := api.NewFabricClient(conn).GetTree(ctx, wrapperspb.UInt32(2))
	require.NoError(t, err)
	var tree api.Tree
	require.NoError(t, api.Decode(resp, &tree))
	assert.Equal(t, "applied", tree.State)
	require.NoError(t, conn.Close())

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.FileExists(t, dirs.DBPath())
}

func TestLoadFabric(t *testing.T) {
	f, err := loadFabric(RunConfig{Config: config.DefaultConfig()}, testLogger())
	require.NoError(t, err)
	assert.Empty(t, f.Switches())

	path := filepath.Join(t.TempDir(), "fabric.toml")
	require.NoError(t, os.WriteFile(path, []byte(pair), 0o644))
	cfg := config.DefaultConfig()
	cfg.Fabric.Description = path
	f, err = loadFabric(RunConfig{Config: cfg}, testLogger())
	require.NoError(t, err)
	assert.Len(t, f.Switches(), 2)
}

func TestNewHost_FollowsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dsa.toml")
	require.NoError(t, os.WriteFile(path, []byte("[fabric]\nnetns = \"/run/netns/fabric\"\n"), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	f, err := devtree.Parse([]byte(pair), devtree.FormatTOML)
	require.NoError(t, err)

	host, ok := newHost(cfg.Fabric, f, testLogger()).(*hostnet.Host)
	require.True(t, ok)
	assert.Equal(t, "/run/netns/fabric", host.Namespace())

	host, ok = newHost(config.DefaultConfig().Fabric, f, testLogger()).(*hostnet.Host)
	require.True(t, ok)
	assert.Empty(t, host.Namespace())

	cfg.Fabric.Host = config.HostSim
	cfg.Fabric.Netns = ""
	_, ok = newHost(cfg.Fabric, f, testLogger()).(*sim.Host)
	assert.True(t, ok)
}
