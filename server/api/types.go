package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProbeResult reports what a Probe did.
type ProbeResult struct {
	Switch string `json:"switch"`
	// Outcome is the journal kind of the registration: "pending",
	// "activated" or "deferred". A deferred switch is retried by the
	// daemon.
	Outcome string `json:"outcome"`
	Tree    uint32 `json:"tree"`
	Member  uint32 `json:"member"`
	Attempt string `json:"attempt"`
	Detail  string `json:"detail,omitempty"`
}

// TreeList is the ListTrees result.
type TreeList struct {
	Trees []Tree `json:"trees"`
}

// Tree is a snapshot of one tree.
type Tree struct {
	ID           uint32   `json:"id"`
	State        string   `json:"state"`
	Refs         int      `json:"refs"`
	Master       string   `json:"master,omitempty"`
	UplinkSwitch string   `json:"uplink_switch,omitempty"`
	UplinkPort   int      `json:"uplink_port"`
	Protocol     string   `json:"protocol,omitempty"`
	Members      []Member `json:"members"`
}

// Member is one switch of a tree. Port sets are listed in ascending
// order.
type Member struct {
	Index     uint32  `json:"index"`
	Name      string  `json:"name"`
	Master    string  `json:"master,omitempty"`
	Enabled   []int   `json:"enabled"`
	Link      []int   `json:"link"`
	Uplink    []int   `json:"uplink"`
	Phy       []int   `json:"phy"`
	Routes    []Route `json:"routes"`
	Notifying bool    `json:"notifying"`
	MDIOBus   string  `json:"mdio_bus,omitempty"`
	Ports     []Port  `json:"ports"`
}

// Route says which local port reaches a member.
type Route struct {
	Member uint32 `json:"member"`
	Port   int    `json:"port"`
}

// Port is one described port.
type Port struct {
	Index     int    `json:"index"`
	Role      string `json:"role"`
	Label     string `json:"label,omitempty"`
	Enabled   bool   `json:"enabled"`
	Interface string `json:"interface,omitempty"`
}

// EventFilter selects journal entries. Zero values match everything.
type EventFilter struct {
	Tree   *uint32 `json:"tree,omitempty"`
	Switch string  `json:"switch,omitempty"`
	Kind   string  `json:"kind,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// EventList is the Events result, newest first.
type EventList struct {
	Events []Event `json:"events"`
}

// Event is one journal entry.
type Event struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Tree    uint32    `json:"tree"`
	Member  uint32    `json:"member"`
	Switch  string    `json:"switch"`
	Attempt string    `json:"attempt,omitempty"`
	OpID    uint64    `json:"op_id,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// NotifyRequest carries one fabric notification to a tree. Exactly one
// of AgeingTime and FDB is set.
type NotifyRequest struct {
	Tree       uint32         `json:"tree"`
	AgeingTime string         `json:"ageing_time,omitempty"`
	FDB        *FDBNotifyBody `json:"fdb,omitempty"`
}

// FDBNotifyBody adds or removes a forwarding entry.
type FDBNotifyBody struct {
	Member uint32 `json:"member"`
	Port   int    `json:"port"`
	Addr   string `json:"addr"`
	VID    uint16 `json:"vid"`
	Delete bool   `json:"delete,omitempty"`
}

// Encode converts v to a Struct through its JSON encoding.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// Decode fills v from s. Unknown fields are an error.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = new(structpb.Struct)
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
