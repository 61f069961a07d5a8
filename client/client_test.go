package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/frobware/go-dsa/client"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/server/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const chain = `
[[switch]]
name   = "sw0"
driver = "mv88e6085"
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
  reg  = 6
  link = ["sw0/6"]
`

func openChain(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	fabric, err := devtree.Parse([]byte(chain), devtree.FormatTOML)
	require.NoError(t, err)
	c, err := client.Open(context.Background(), fabric, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestOpen_ProbeActivatesTree(t *testing.T) {
	c := openChain(t)
	ctx := context.Background()

	res, err := c.Probe(ctx, "sw1")
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Outcome)

	res, err = c.Probe(ctx, "sw0")
	require.NoError(t, err)
	assert.Equal(t, "activated", res.Outcome)

	trees, err := c.Trees(ctx)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, "applied", trees[0].State)
	assert.Equal(t, "eth0", trees[0].Master)

	events, err := c.Events(ctx, api.EventFilter{Kind: "activated"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sw0", events[0].Switch)

	require.NoError(t, c.SetAgeingTime(ctx, 1, time.Minute))
}

func TestOpen_WithoutDescribedDevicesDefers(t *testing.T) {
	c := openChain(t, client.WithoutDescribedDevices())
	ctx := context.Background()

	_, err := c.Probe(ctx, "sw0")
	require.NoError(t, err)
	res, err := c.Probe(ctx, "sw1")
	require.NoError(t, err)
	assert.Equal(t, "deferred", res.Outcome)
}

func TestOpen_WithHostDevices(t *testing.T) {
	c := openChain(t, client.WithoutDescribedDevices(), client.WithHostDevices("eth0"))
	ctx := context.Background()

	_, err := c.Probe(ctx, "sw0")
	require.NoError(t, err)
	res, err := c.Probe(ctx, "sw1")
	require.NoError(t, err)
	assert.Equal(t, "activated", res.Outcome)
}

func TestErrorsAreTranslated(t *testing.T) {
	c := openChain(t)
	ctx := context.Background()

	_, err := c.Probe(ctx, "nope")
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = c.Tree(ctx, 5)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = c.Probe(ctx, "sw0")
	require.NoError(t, err)
	_, err = c.Probe(ctx, "sw0")
	assert.ErrorIs(t, err, client.ErrConflict)

	err = c.SetAgeingTime(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, client.ErrFailedPrecondition)

	err = c.Notify(ctx, api.NotifyRequest{Tree: 1})
	assert.ErrorIs(t, err, client.ErrInvalidArgument)

	require.NoError(t, c.Remove(ctx, "sw0"))
	assert.ErrorIs(t, c.Remove(ctx, "sw0"), client.ErrFailedPrecondition)
}
