package hal

// EventKind classifies a recorded Sim event.
type EventKind string

const (
	EventWrite  EventKind = "write"
	EventArm    EventKind = "arm"
	EventCancel EventKind = "cancel"
)

// Event is one hardware interaction observed by Sim, stamped with the
// virtual time in microseconds since the simulation started.
type Event struct {
	At    uint32
	Kind  EventKind
	Pin   Pin
	High  bool
	Delay uint32
}

// Sim is virtual dimmer hardware on a microsecond clock. It records every
// pin write and timer arm and delivers expiries in order when a half-cycle
// is played, which makes the firing schedule fully deterministic.
type Sim struct {
	HalfCycle uint32

	now      uint32
	armed    bool
	deadline uint32

	zeroCrossPin Pin
	zeroCross    func()
	expire       func()

	levels map[Pin]bool
	Events []Event
}

// NewSim returns a simulator for the given half-cycle length (10000 µs at
// 50 Hz mains).
func NewSim(halfCycle uint32) *Sim {
	return &Sim{HalfCycle: halfCycle, levels: map[Pin]bool{}}
}

func (s *Sim) Now() uint32 { return s.now }

func (s *Sim) Write(pin Pin, high bool) {
	s.levels[pin] = high
	s.Events = append(s.Events, Event{At: s.now, Kind: EventWrite, Pin: pin, High: high})
}

func (s *Sim) ConfigureOutput(pin Pin) error {
	s.levels[pin] = false
	return nil
}

func (s *Sim) AttachRisingEdge(pin Pin, handler func()) error {
	s.zeroCrossPin = pin
	s.zeroCross = handler
	return nil
}

func (s *Sim) Arm(micros uint32) {
	s.armed = true
	s.deadline = s.now + micros
	s.Events = append(s.Events, Event{At: s.now, Kind: EventArm, Delay: micros})
}

func (s *Sim) Cancel() {
	if s.armed {
		s.Events = append(s.Events, Event{At: s.now, Kind: EventCancel})
	}
	s.armed = false
}

func (s *Sim) OnExpire(handler func()) { s.expire = handler }

// Level reports the last level written to pin.
func (s *Sim) Level(pin Pin) bool { return s.levels[pin] }

// Armed reports whether a timer expiry is pending and its remaining delay.
func (s *Sim) Armed() (bool, uint32) {
	if !s.armed {
		return false, 0
	}
	return true, s.deadline - s.now
}

// ZeroCross raises the zero-cross edge without advancing time.
func (s *Sim) ZeroCross() {
	if s.zeroCross != nil {
		s.zeroCross()
	}
}

// Expire fires the pending timer immediately, moving the clock to its
// deadline. It reports false when no timer is armed.
func (s *Sim) Expire() bool {
	if !s.armed {
		return false
	}
	s.now = s.deadline
	s.armed = false
	if s.expire != nil {
		s.expire()
	}
	return true
}

// RunHalfCycle raises the zero-cross edge, then plays every timer expiry that
// falls inside the half-cycle, and leaves the clock at the next zero-cross.
func (s *Sim) RunHalfCycle() {
	start := s.now
	s.ZeroCross()
	for s.armed && s.deadline < start+s.HalfCycle {
		s.Expire()
	}
	s.now = start + s.HalfCycle
}

// Reset clears the recorded events, keeping pin levels and the clock.
func (s *Sim) Reset() { s.Events = nil }

// Fired returns the writes that drove a pin high, in order.
func (s *Sim) Fired() []Event {
	var out []Event
	for _, e := range s.Events {
		if e.Kind == EventWrite && e.High {
			out = append(out, e)
		}
	}
	return out
}

// Arms returns the recorded timer arms, in order.
func (s *Sim) Arms() []Event {
	var out []Event
	for _, e := range s.Events {
		if e.Kind == EventArm {
			out = append(out, e)
		}
	}
	return out
}
