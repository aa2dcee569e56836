package dimmer

import "errors"

var (
	// ErrCapacityExceeded is returned by Create when Capacity lights exist.
	ErrCapacityExceeded = errors.New("dimmer: capacity exceeded")

	// ErrInvalidHandle is returned for handles that were never issued or
	// whose light has been destroyed.
	ErrInvalidHandle = errors.New("dimmer: invalid light handle")

	// ErrInconsistentSchedule means the schedule adopted by the interrupt
	// side no longer matches the registry it was published from. It signals a
	// broken invariant, not a transient condition.
	ErrInconsistentSchedule = errors.New("dimmer: inconsistent schedule")

	ErrAlreadyStarted = errors.New("dimmer: already started")
)
