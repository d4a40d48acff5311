package models

import (
	"errors"
	"fmt"
)

var errUnknownStatus = errors.New("unknown node status")

// NodeStatus is the tri-state health of a node after a rollout.
type NodeStatus int

const (
	// StatusDown means none of the tracked fields advanced.
	StatusDown NodeStatus = iota
	// StatusDegraded means some, but not all, tracked fields advanced.
	StatusDegraded
	// StatusHealthy means every tracked field advanced.
	StatusHealthy
)

// Classify maps the three advancement flags to a NodeStatus.
func Classify(okFSUE, okUFA, okUFH bool) NodeStatus {
	switch {
	case okFSUE && okUFA && okUFH:
		return StatusHealthy
	case !okFSUE && !okUFA && !okUFH:
		return StatusDown
	default:
		return StatusDegraded
	}
}

func (s NodeStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusDown:
		return "down"
	default:
		return fmt.Sprintf("NodeStatus(%d)", int(s))
	}
}

func (s NodeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *NodeStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = StatusHealthy
	case "degraded":
		*s = StatusDegraded
	case "down":
		*s = StatusDown
	default:
		return fmt.Errorf("%w: %q", errUnknownStatus, text)
	}

	return nil
}
