// Package compute contains pure functions for fabric logic.
// Functions in this package perform no I/O - they turn tree state into
// results and actions.
package compute

import (
	"fmt"

	"github.com/frobware/go-dsa"
)

// Routes is one switch's routing table, indexed by peer member.
type Routes [dsa.MaxSwitches]int

// NoRoutes returns a table with every entry set to dsa.RouteNone.
func NoRoutes() Routes {
	var r Routes
	for i := range r {
		r[i] = dsa.RouteNone
	}
	return r
}

// CompletionResult is the outcome of a completion check.
type CompletionResult struct {
	// Complete is set when every link target of every present member
	// is owned by a present member.
	Complete bool

	// Routes and LinkPorts are keyed by member index and cover every
	// present member. They are only meaningful when Complete is set.
	Routes    map[uint32]Routes
	LinkPorts map[uint32]dsa.PortMask

	// Missing names the link targets no present member owns.
	Missing []string
}

// Completion checks whether t is complete and computes the routing
// table each member would get. It reads t but does not modify it.
//
// A link reference that does not name a node is a malformed
// description and is reported as a *dsa.ValidationError. A reference
// to a port no present member owns only makes the tree incomplete.
// The result depends only on membership and configuration, so calling
// it again on an unchanged tree yields the same tables.
func Completion(t *dsa.Tree) (CompletionResult, error) {
	res := CompletionResult{
		Complete:  true,
		Routes:    make(map[uint32]Routes),
		LinkPorts: make(map[uint32]dsa.PortMask),
	}

	for src, sw := range t.Switches() {
		routes := NoRoutes()
		var links dsa.PortMask

		for i := range sw.Ports {
			port := &sw.Ports[i]
			if !port.Valid() || !port.IsLink() {
				continue
			}
			complete, err := completePort(t, sw, port, &routes, &res)
			if err != nil {
				return CompletionResult{}, err
			}
			if !complete {
				res.Complete = false
				continue
			}
			links.Set(port.Index)
		}

		res.Routes[src] = routes
		res.LinkPorts[src] = links
	}

	return res, nil
}

// completePort resolves every link target of port. Legacy link ports
// carry no targets and are trivially complete.
func completePort(t *dsa.Tree, sw *dsa.Switch, port *dsa.Port, routes *Routes, res *CompletionResult) (bool, error) {
	if port.Node == nil {
		return true, nil
	}
	complete := true
	for i := range port.Node.References(dsa.PropLink) {
		target, err := port.Node.Reference(dsa.PropLink, i)
		if err != nil {
			return false, &dsa.ValidationError{
				Field:  "link",
				Reason: fmt.Sprintf("switch %s port %d", sw, port.Index),
				Err:    err,
			}
		}
		owner := FindPortOwner(t, target)
		if owner == nil {
			res.Missing = append(res.Missing, target.Path())
			complete = false
			continue
		}
		routes[owner.Index()] = port.Index
	}
	return complete, nil
}

// FindPortOwner returns the present member owning the port described
// by node, or nil.
func FindPortOwner(t *dsa.Tree, node dsa.ConfigNode) *dsa.Switch {
	for _, sw := range t.Switches() {
		for i := range sw.Ports {
			if n := sw.Ports[i].Node; n != nil && n == node {
				return sw
			}
		}
	}
	return nil
}
