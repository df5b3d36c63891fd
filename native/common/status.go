package common

import "errors"

// Status is the coarse lifecycle gate applied to every state-changing
// operation. Only Public accepts mutations; Archived keeps the ledgers
// readable but frozen.
type Status uint8

const (
	StatusPublic Status = iota
	StatusArchived
)

// ErrNotPublic is returned when a mutating operation runs outside Public.
var ErrNotPublic = errors.New("system not public")

// StatusView exposes the current system status to the native modules.
type StatusView interface {
	Status() Status
}

// String renders the status for logs and query responses.
func (s Status) String() string {
	switch s {
	case StatusPublic:
		return "public"
	case StatusArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Guard rejects mutations unless the system is Public. A nil view is treated
// as Public so engines remain usable in isolation (tests, tooling).
func Guard(v StatusView) error {
	if v == nil {
		return nil
	}
	if v.Status() != StatusPublic {
		return ErrNotPublic
	}
	return nil
}
