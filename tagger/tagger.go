// Package tagger maps tag protocols to their data-plane operations.
//
// Frame encoding and decoding live with the taggers themselves; this
// package only keeps the table the fabric consults when a tree's uplink
// switch names the protocol it wants.
package tagger

import (
	"fmt"
	"sync"

	"github.com/frobware/go-dsa"
)

// Registry holds the known taggers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	taggers map[dsa.TagProtocol]*dsa.TagOps
}

// New returns a registry that knows the "none" protocol.
func New() *Registry {
	r := &Registry{taggers: make(map[dsa.TagProtocol]*dsa.TagOps)}
	r.taggers[dsa.TagProtoNone] = &dsa.TagOps{
		Protocol: dsa.TagProtoNone,
		Rcv:      rcvNone,
	}
	return r
}

// Register adds or replaces the operations for ops.Protocol.
func (r *Registry) Register(ops *dsa.TagOps) error {
	if ops == nil || ops.Rcv == nil {
		return fmt.Errorf("tagger %v: missing receive function", ops)
	}
	if _, err := dsa.ParseTagProtocol(string(ops.Protocol)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taggers[ops.Protocol] = ops
	return nil
}

// Resolve returns the operations for proto, or an error wrapping
// dsa.ErrNoTagger.
func (r *Registry) Resolve(proto dsa.TagProtocol) (*dsa.TagOps, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops, ok := r.taggers[proto]
	if !ok {
		return nil, fmt.Errorf("%w %q", dsa.ErrNoTagger, proto)
	}
	return ops, nil
}

// Protocols lists the registered protocols.
func (r *Registry) Protocols() []dsa.TagProtocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dsa.TagProtocol, 0, len(r.taggers))
	for p := range r.taggers {
		out = append(out, p)
	}
	return out
}

// rcvNone passes frames through untouched. Without a tag there is no
// way to tell which port a frame came in on, so it is attributed to
// member 0 port 0.
func rcvNone(frame []byte, _ *dsa.NetDevice) ([]byte, uint32, int, error) {
	return frame, 0, 0, nil
}
