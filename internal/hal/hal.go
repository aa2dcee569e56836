// Package hal defines the hardware services the dimmer core consumes and the
// host implementations of them.
package hal

// Pin identifies a GPIO line by its BCM number.
type Pin uint16

// GPIO drives digital outputs. Write must be safe to call from interrupt
// context: no blocking, no allocation.
type GPIO interface {
	Write(pin Pin, high bool)
}

// OutputConfigurer is implemented by GPIO backends that need a pin claimed as
// an output before the first Write.
type OutputConfigurer interface {
	ConfigureOutput(pin Pin) error
}

// EdgeAttacher installs a handler for the rising edge of an input pin.
type EdgeAttacher interface {
	AttachRisingEdge(pin Pin, handler func()) error
}

// Timer is a one-shot relative timer. Arm may be called from inside the
// expiry handler; arming again replaces any pending expiry.
type Timer interface {
	Arm(micros uint32)
	Cancel()
	OnExpire(handler func())
}
