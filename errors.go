package dsa

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a switch claims a (tree, member) slot
	// that another switch already occupies.
	ErrBusy = errors.New("member slot already occupied")

	// ErrNotYetAvailable is returned when a collaborator the tree
	// depends on (typically the host uplink device) has not appeared
	// yet. The switch has been removed from its tree; the caller should
	// retry the whole registration later.
	ErrNotYetAvailable = errors.New("resource not yet available, retry registration")

	// ErrMissingUplink is returned when a complete tree has no port
	// connected to a host device.
	ErrMissingUplink = errors.New("tree has no uplink device")

	// ErrNoTagger is returned when the uplink switch asks for a tagging
	// protocol nobody provides.
	ErrNoTagger = errors.New("no tagger for protocol")

	// ErrDisjointTree is returned when a switch completes a tree that is
	// already active under a different topology.
	ErrDisjointTree = errors.New("tree already active, disjoint trees?")

	// ErrNotRegistered is returned when unregistering a switch that is
	// not a member of any tree.
	ErrNotRegistered = errors.New("switch is not registered")

	// ErrAlreadyRegistered is returned when registering a switch that is
	// already a member of a tree.
	ErrAlreadyRegistered = errors.New("switch is already registered")

	// ErrPropertyAbsent is returned by ConfigNode implementations when a
	// property is not present at all.
	ErrPropertyAbsent = errors.New("property absent")
)

// ValidationError reports a malformed switch description. It is
// permanent and is raised before any hardware side effect.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid is shorthand for constructing a *ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ActivationError is returned when a hardware-facing step failed while
// activating a tree. By the time the caller sees it the tree has been
// rolled back.
type ActivationError struct {
	Tree   TreeID
	Member uint32
	Step   string
	Err    error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("tree %d switch %d: %s: %v", e.Tree, e.Member, e.Step, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err tells the caller to retry the
// registration later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotYetAvailable)
}
