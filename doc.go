// Package dsa holds the domain types of a multi-switch fabric: trees of
// switch chips, their ports, the host devices they uplink to, and the
// errors the fabric lifecycle reports.
//
// A tree becomes usable only once every switch its link ports refer to
// has registered. Registration, completion, topology resolution and
// activation are driven by package manager; this package only models
// the state they operate on.
package dsa
