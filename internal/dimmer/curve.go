package dimmer

const (
	// Capacity is the maximum number of lights driven concurrently.
	Capacity = 16

	// DelayPerStep is the firing delay, in microseconds, added for each step
	// of brightness below full.
	DelayPerStep = 39

	// MaxDelay is the delay of a light at brightness 0. Lights at MaxDelay are
	// off and are never fired.
	MaxDelay = 255 * DelayPerStep

	// MinActionableDelay is the shortest gap worth arming the timer for.
	// Lights closer than this to the previous firing are fired together.
	MinActionableDelay = 150
)

// DelayFor maps a brightness (0 off, 255 full) to a firing delay after the
// zero-cross in microseconds.
func DelayFor(brightness uint8) uint16 {
	return uint16(DelayPerStep * (255 - uint32(brightness)))
}
