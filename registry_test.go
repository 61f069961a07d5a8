package dsa_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa"
)

type nopOps struct{}

func (nopOps) Setup(context.Context, *dsa.Switch) error { return nil }
func (nopOps) TagProtocol(*dsa.Switch) dsa.TagProtocol  { return dsa.TagProtoNone }

func newSwitch(t *testing.T, name string) *dsa.Switch {
	t.Helper()
	sw, err := dsa.NewSwitch(name, nopOps{}, 4)
	require.NoError(t, err)
	return sw
}

func TestRegistry_GetPutCreatesAndFrees(t *testing.T) {
	r := dsa.NewRegistry()

	tree := r.Get(3)
	assert.Equal(t, dsa.TreeID(3), tree.ID)
	assert.Equal(t, 1, tree.Refs())
	assert.Same(t, tree, r.Get(3), "same id, same tree")
	assert.Equal(t, 2, tree.Refs())

	r.Put(tree)
	r.Put(tree)
	_, ok := r.Lookup(3)
	assert.False(t, ok, "last reference frees the tree")
	assert.Zero(t, r.Len())
}

func TestRegistry_MembersHoldReferences(t *testing.T) {
	r := dsa.NewRegistry()
	sw := newSwitch(t, "sw0")

	tree := r.Get(1)
	require.NoError(t, r.AddMember(tree, sw, 2))
	r.Put(tree)

	got, ok := r.Lookup(1)
	require.True(t, ok, "member keeps the tree alive")
	assert.Same(t, tree, got)
	assert.Same(t, tree, sw.Tree())
	assert.Equal(t, uint32(2), sw.Index())
	assert.Same(t, sw, tree.Switch(2))
	assert.Equal(t, 1, tree.Members())

	r.RemoveMember(tree, 2)
	assert.Nil(t, sw.Tree())
	assert.Nil(t, tree.Switch(2))
	assert.Zero(t, r.Len())
}

func TestRegistry_AddMemberRejects(t *testing.T) {
	r := dsa.NewRegistry()
	tree := r.Get(0)
	defer r.Put(tree)

	a, b := newSwitch(t, "a"), newSwitch(t, "b")
	require.NoError(t, r.AddMember(tree, a, 0))

	assert.ErrorIs(t, r.AddMember(tree, b, 0), dsa.ErrBusy)
	assert.ErrorIs(t, r.AddMember(tree, a, 1), dsa.ErrAlreadyRegistered)

	var verr *dsa.ValidationError
	assert.ErrorAs(t, r.AddMember(tree, b, dsa.MaxSwitches), &verr)
	assert.Equal(t, 2, tree.Refs(), "failed adds take no reference")
}

func TestRegistry_TreesOrderedByID(t *testing.T) {
	r := dsa.NewRegistry()
	for _, id := range []dsa.TreeID{7, 1, 4} {
		r.Get(id)
	}
	var ids []dsa.TreeID
	for _, tree := range r.Trees() {
		ids = append(ids, tree.ID)
	}
	assert.Equal(t, []dsa.TreeID{1, 4, 7}, ids)
}

func TestTree_SwitchesInIndexOrder(t *testing.T) {
	r := dsa.NewRegistry()
	tree := r.Get(0)
	defer r.Put(tree)

	require.NoError(t, r.AddMember(tree, newSwitch(t, "c"), 3))
	require.NoError(t, r.AddMember(tree, newSwitch(t, "a"), 0))

	var names []string
	for i, sw := range tree.Switches() {
		assert.Equal(t, i, sw.Index())
		names = append(names, sw.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestTree_Notifier(t *testing.T) {
	r := dsa.NewRegistry()
	tree := r.Get(0)
	defer r.Put(tree)
	sw := newSwitch(t, "sw")

	assert.Error(t, tree.RegisterNotifier(sw), "non-member cannot subscribe")

	require.NoError(t, r.AddMember(tree, sw, 1))
	require.NoError(t, tree.RegisterNotifier(sw))
	assert.True(t, tree.Notifying(sw))
	tree.UnregisterNotifier(sw)
	assert.False(t, tree.Notifying(sw))

	require.NoError(t, tree.RegisterNotifier(sw))
	r.RemoveMember(tree, 1)
	assert.False(t, tree.Notifying(sw), "removal drops the subscription")
}

func TestNewSwitch(t *testing.T) {
	_, err := dsa.NewSwitch("x", nil, 4)
	assert.Error(t, err)

	var verr *dsa.ValidationError
	_, err = dsa.NewSwitch("x", nopOps{}, dsa.MaxPorts+1)
	assert.ErrorAs(t, err, &verr)

	sw, err := dsa.NewSwitch("x", nopOps{}, 3)
	require.NoError(t, err)
	for i := range dsa.MaxSwitches {
		_, ok := sw.Route(uint32(i))
		assert.False(t, ok)
	}
	assert.Equal(t, "x", sw.String())
}
