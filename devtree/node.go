package devtree

import (
	"fmt"

	"github.com/frobware/go-dsa"
)

// Node is one node of a parsed fabric description. It implements
// dsa.ConfigNode; handles compare by pointer.
type Node struct {
	name     string
	path     string
	u32      map[string][]uint32
	str      map[string]string
	refs     map[string][]reference
	children []*Node
}

// reference is a resolved or dangling pointer to another node. Raw is
// kept for diagnostics.
type reference struct {
	raw    string
	target *Node
}

var _ dsa.ConfigNode = (*Node)(nil)

func newNode(parent *Node, name string) *Node {
	n := &Node{
		name: name,
		u32:  make(map[string][]uint32),
		str:  make(map[string]string),
		refs: make(map[string][]reference),
	}
	if parent == nil {
		n.path = "/" + name
	} else {
		n.path = parent.path + "/" + name
		parent.children = append(parent.children, n)
	}
	return n
}

// Name returns the node's own name.
func (n *Node) Name() string { return n.name }

func (n *Node) Path() string { return n.path }

func (n *Node) ReadU32(prop string, index int) (uint32, error) {
	vals, ok := n.u32[prop]
	if !ok {
		return 0, fmt.Errorf("%s: %s: %w", n.path, prop, dsa.ErrPropertyAbsent)
	}
	if index < 0 || index >= len(vals) {
		return 0, fmt.Errorf("%s: %s has %d values, want index %d", n.path, prop, len(vals), index)
	}
	return vals[index], nil
}

func (n *Node) ReadString(prop string) (string, bool) {
	s, ok := n.str[prop]
	return s, ok
}

func (n *Node) Child(name string) (dsa.ConfigNode, bool) {
	for _, c := range n.children {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

func (n *Node) Children() []dsa.ConfigNode {
	out := make([]dsa.ConfigNode, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *Node) References(prop string) int {
	return len(n.refs[prop])
}

func (n *Node) Reference(prop string, index int) (dsa.ConfigNode, error) {
	refs := n.refs[prop]
	if index < 0 || index >= len(refs) {
		return nil, fmt.Errorf("%s: %s has %d references, want index %d", n.path, prop, len(refs), index)
	}
	ref := refs[index]
	if ref.target == nil {
		return nil, fmt.Errorf("%s: %s[%d]: %q does not name a node", n.path, prop, index, ref.raw)
	}
	return ref.target, nil
}

func (n *Node) String() string { return n.path }
