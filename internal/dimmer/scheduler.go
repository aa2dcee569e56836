package dimmer

import (
	"sync/atomic"

	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
)

type entry struct {
	pin   hal.Pin
	delay uint16
}

// schedule is an immutable copy of the registry's (pin, delay) pairs, sorted
// by ascending delay. A new one is built for every registry change; the
// interrupt side only ever reads them.
type schedule struct {
	gen     uint64
	n       int
	entries [Capacity]entry
}

// scheduler holds the interrupt-side state. Everything except the atomics is
// touched only by onZeroCross and onTimerExpire, which the platform never runs
// concurrently.
type scheduler struct {
	gpio  hal.GPIO
	timer hal.Timer

	pending atomic.Pointer[schedule]

	active *schedule
	cursor int
	// base is the nominal delay the next timer gap is measured from.
	base uint16

	adoptedGen atomic.Uint64
	adoptedLen atomic.Int32

	halfCycles atomic.Uint64
	arms       atomic.Uint64
	fired      atomic.Uint64
	coalesced  atomic.Uint64
}

func newScheduler(gpio hal.GPIO, timer hal.Timer) *scheduler {
	return &scheduler{gpio: gpio, timer: timer, active: &schedule{}}
}

// publish hands a complete schedule to the interrupt side. It replaces any
// schedule that has not been adopted yet.
func (s *scheduler) publish(sc *schedule) {
	s.pending.Store(sc)
}

func (s *scheduler) onZeroCross() {
	s.halfCycles.Add(1)
	s.timer.Cancel()

	act := s.active
	for i := 0; i < act.n; i++ {
		s.gpio.Write(act.entries[i].pin, false)
	}

	if next := s.pending.Swap(nil); next != nil {
		act = next
		s.active = next
		s.adoptedLen.Store(int32(next.n))
		s.adoptedGen.Store(next.gen)
	}

	s.cursor = 0
	s.base = 0
	for s.cursor < act.n && act.entries[s.cursor].delay < MinActionableDelay {
		s.fire(act.entries[s.cursor].pin)
		s.cursor++
	}
	if s.cursor > 0 {
		s.coalesce(act)
	}
	s.armNext(act)
}

func (s *scheduler) onTimerExpire() {
	act := s.active
	if s.cursor >= act.n || act.entries[s.cursor].delay >= MaxDelay {
		return
	}
	e := act.entries[s.cursor]
	s.fire(e.pin)
	s.base = e.delay
	s.cursor++
	s.coalesce(act)
	s.armNext(act)
}

// coalesce fires every light that follows the last fired one by less than
// MinActionableDelay.
func (s *scheduler) coalesce(act *schedule) {
	prev := act.entries[s.cursor-1].delay
	for s.cursor < act.n {
		e := act.entries[s.cursor]
		if e.delay >= MaxDelay || e.delay-prev >= MinActionableDelay {
			return
		}
		s.fire(e.pin)
		s.coalesced.Add(1)
		s.base = e.delay
		prev = e.delay
		s.cursor++
	}
}

func (s *scheduler) armNext(act *schedule) {
	if s.cursor >= act.n {
		return
	}
	next := act.entries[s.cursor].delay
	if next >= MaxDelay {
		return
	}
	s.timer.Arm(uint32(next - s.base))
	s.arms.Add(1)
}

func (s *scheduler) fire(pin hal.Pin) {
	s.gpio.Write(pin, true)
	s.fired.Add(1)
}
