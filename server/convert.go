package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/manager"
	"github.com/frobware/go-dsa/server/api"
)

// treeToAPI converts a tree snapshot to its wire form.
func treeToAPI(ts manager.TreeStatus) api.Tree {
	out := api.Tree{
		ID:           uint32(ts.ID),
		State:        ts.State.String(),
		Refs:         ts.Refs,
		Master:       ts.Master,
		UplinkSwitch: ts.UplinkSwitch,
		UplinkPort:   ts.UplinkPort,
		Protocol:     string(ts.Protocol),
		Members:      make([]api.Member, 0, len(ts.Members)),
	}
	for _, ms := range ts.Members {
		m := api.Member{
			Index:     ms.Index,
			Name:      ms.Name,
			Master:    ms.Master,
			Enabled:   ports(ms.Enabled),
			Link:      ports(ms.Link),
			Uplink:    ports(ms.Uplink),
			Phy:       ports(ms.Phy),
			Routes:    []api.Route{},
			Notifying: ms.Notifying,
			MDIOBus:   ms.MDIOBus,
			Ports:     make([]api.Port, 0, len(ms.Ports)),
		}
		for member, port := range ms.Routes {
			if port == dsa.RouteNone {
				continue
			}
			m.Routes = append(m.Routes, api.Route{Member: uint32(member), Port: port})
		}
		for _, ps := range ms.Ports {
			m.Ports = append(m.Ports, api.Port{
				Index:     ps.Index,
				Role:      ps.Role.String(),
				Label:     ps.Label,
				Enabled:   ps.Enabled,
				Interface: ps.Interface,
			})
		}
		out.Members = append(out.Members, m)
	}
	return out
}

func ports(m dsa.PortMask) []int {
	if p := m.Ports(); p != nil {
		return p
	}
	return []int{}
}

// eventToAPI converts a journal entry to its wire form.
func eventToAPI(e interpreter.JournalEntry) api.Event {
	return api.Event{
		ID:      e.ID,
		Time:    e.Time,
		Kind:    string(e.Kind),
		Tree:    uint32(e.Tree),
		Member:  e.Member,
		Switch:  e.Switch,
		Attempt: e.Attempt,
		OpID:    e.OpID,
		Detail:  e.Detail,
	}
}

// filterFromAPI converts a wire filter to a journal filter.
func filterFromAPI(f api.EventFilter) (interpreter.JournalFilter, error) {
	out := interpreter.JournalFilter{
		Switch: f.Switch,
		Kind:   interpreter.EventKind(f.Kind),
		Limit:  f.Limit,
	}
	if f.Limit < 0 {
		return out, fmt.Errorf("negative limit %d", f.Limit)
	}
	if f.Tree != nil {
		id := dsa.TreeID(*f.Tree)
		out.Tree = &id
	}
	return out, nil
}

// notificationFromAPI converts a wire notification.
func notificationFromAPI(req api.NotifyRequest) (dsa.Notification, error) {
	switch {
	case req.AgeingTime != "" && req.FDB != nil:
		return nil, errors.New("ageing_time and fdb are mutually exclusive")
	case req.AgeingTime != "":
		d, err := time.ParseDuration(req.AgeingTime)
		if err != nil {
			return nil, fmt.Errorf("ageing_time: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("ageing_time: %s is not positive", d)
		}
		return dsa.AgeingTimeNotification{AgeingTime: d}, nil
	case req.FDB != nil:
		mac, err := net.ParseMAC(req.FDB.Addr)
		if err != nil {
			return nil, fmt.Errorf("fdb addr: %w", err)
		}
		if len(mac) != 6 {
			return nil, fmt.Errorf("fdb addr: %s is not an EUI-48 address", mac)
		}
		n := dsa.FDBNotification{
			Member: req.FDB.Member,
			Port:   req.FDB.Port,
			VID:    req.FDB.VID,
			Delete: req.FDB.Delete,
		}
		copy(n.Addr[:], mac)
		return n, nil
	default:
		return nil, errors.New("empty notification")
	}
}

// grpcError maps a domain error to a gRPC status.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		validation *dsa.ValidationError
		activation *dsa.ActivationError
	)
	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.As(err, &activation):
		code = codes.Aborted
	case errors.As(err, &validation):
		code = codes.InvalidArgument
	case errors.Is(err, ErrUnknownSwitch), errors.Is(err, manager.ErrTreeNotFound):
		code = codes.NotFound
	case errors.Is(err, dsa.ErrAlreadyRegistered), errors.Is(err, dsa.ErrBusy):
		code = codes.AlreadyExists
	case errors.Is(err, dsa.ErrNotYetAvailable):
		code = codes.Unavailable
	case errors.Is(err, dsa.ErrNotRegistered),
		errors.Is(err, dsa.ErrDisjointTree),
		errors.Is(err, dsa.ErrMissingUplink),
		errors.Is(err, dsa.ErrNoTagger),
		errors.Is(err, manager.ErrTreeNotActive):
		code = codes.FailedPrecondition
	}
	return status.Error(code, err.Error())
}
