package dsa

import (
	"cmp"
	"slices"
)

// Registry is the process-wide table of trees.
//
// A tree holds one reference per member switch plus one per handle
// returned by Get. It is removed from the registry when the last
// reference goes. Registry does no locking of its own: every caller
// must hold the fabric writer lock.
type Registry struct {
	trees map[TreeID]*Tree
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{trees: make(map[TreeID]*Tree)}
}

// Get returns the tree with the given id, creating it if needed. The
// returned handle holds a reference that must be dropped with Put.
func (r *Registry) Get(id TreeID) *Tree {
	if t, ok := r.trees[id]; ok {
		t.refs++
		return t
	}
	t := &Tree{ID: id, refs: 1}
	r.trees[id] = t
	return t
}

// Put drops a reference taken by Get.
func (r *Registry) Put(t *Tree) {
	r.release(t)
}

// AddMember installs sw at index. The slot must be empty.
func (r *Registry) AddMember(t *Tree, sw *Switch, index uint32) error {
	if index >= MaxSwitches {
		return Invalid("member index", "%d not below %d", index, MaxSwitches)
	}
	if t.switches[index] != nil {
		return ErrBusy
	}
	if sw.tree != nil {
		return ErrAlreadyRegistered
	}
	t.refs++
	t.switches[index] = sw
	sw.tree = t
	sw.index = index
	return nil
}

// RemoveMember clears the slot at index and drops the member's
// reference.
func (r *Registry) RemoveMember(t *Tree, index uint32) {
	sw := t.Switch(index)
	if sw == nil {
		return
	}
	t.listeners[index] = false
	t.switches[index] = nil
	sw.tree = nil
	sw.index = 0
	r.release(t)
}

func (r *Registry) release(t *Tree) {
	t.refs--
	if t.refs > 0 {
		return
	}
	if cur, ok := r.trees[t.ID]; ok && cur == t {
		delete(r.trees, t.ID)
	}
}

// Lookup returns the tree with the given id without taking a
// reference.
func (r *Registry) Lookup(id TreeID) (*Tree, bool) {
	t, ok := r.trees[id]
	return t, ok
}

// Trees returns every registered tree ordered by id.
func (r *Registry) Trees() []*Tree {
	trees := make([]*Tree, 0, len(r.trees))
	for _, t := range r.trees {
		trees = append(trees, t)
	}
	slices.SortFunc(trees, func(a, b *Tree) int { return cmp.Compare(a.ID, b.ID) })
	return trees
}

// Len returns the number of registered trees.
func (r *Registry) Len() int { return len(r.trees) }
