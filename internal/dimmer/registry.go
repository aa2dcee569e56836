package dimmer

import (
	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
)

// Handle identifies a registered light. The zero Handle is never issued.
type Handle uint32

func makeHandle(idx int, gen uint32) Handle { return Handle(gen<<8 | uint32(idx)) }

func (h Handle) index() int { return int(h & 0xff) }

func (h Handle) gen() uint32 { return uint32(h >> 8) }

// nextGen advances a slot generation within the 24 bits a Handle carries,
// skipping zero.
func nextGen(g uint32) uint32 {
	g = (g + 1) & 0xffffff
	if g == 0 {
		g = 1
	}
	return g
}

type slot struct {
	used       bool
	gen        uint32
	pin        hal.Pin
	brightness uint8
	delay      uint16
	pos        int
}

// LightInfo is a read-only view of one registered light.
type LightInfo struct {
	Handle     Handle
	Pin        hal.Pin
	Brightness uint8
	Delay      uint16
	Position   int
}

// registry is the foreground-owned set of lights. order[:n] holds slot
// indices sorted by ascending delay and slots[order[i]].pos == i for every i.
// Callers serialise access.
type registry struct {
	slots [Capacity]slot
	order [Capacity]int
	n     int
	free  []int
	gen   uint64
}

func newRegistry() *registry {
	r := &registry{free: make([]int, 0, Capacity)}
	for i := Capacity - 1; i >= 0; i-- {
		r.free = append(r.free, i)
	}
	return r
}

func (r *registry) lookup(h Handle) (*slot, bool) {
	idx := h.index()
	if h == 0 || idx >= Capacity {
		return nil, false
	}
	s := &r.slots[idx]
	if !s.used || s.gen != h.gen() {
		return nil, false
	}
	return s, true
}

// add appends a light in the off position. Appending at MaxDelay keeps the
// order sorted.
func (r *registry) add(pin hal.Pin) (Handle, error) {
	if r.n == Capacity || len(r.free) == 0 {
		return 0, ErrCapacityExceeded
	}
	idx := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]

	s := &r.slots[idx]
	s.gen = nextGen(s.gen)
	s.used = true
	s.pin = pin
	s.brightness = 0
	s.delay = MaxDelay
	s.pos = r.n
	r.order[r.n] = idx
	r.n++
	return makeHandle(idx, s.gen), nil
}

// remove drops a light and shifts every following light down one position.
func (r *registry) remove(h Handle) error {
	s, ok := r.lookup(h)
	if !ok {
		return ErrInvalidHandle
	}
	for i := s.pos; i < r.n-1; i++ {
		r.order[i] = r.order[i+1]
		r.slots[r.order[i]].pos = i
	}
	r.n--
	r.order[r.n] = 0

	s.used = false
	s.gen = nextGen(s.gen)
	r.free = append(r.free, h.index())
	return nil
}

// setBrightness updates a light's brightness and moves it to its sorted position.
// It reports whether the delay changed.
func (r *registry) setBrightness(h Handle, brightness uint8) (bool, error) {
	s, ok := r.lookup(h)
	if !ok {
		return false, ErrInvalidHandle
	}
	delay := DelayFor(brightness)
	if delay == s.delay {
		return false, nil
	}
	increased := delay > s.delay
	s.brightness = brightness
	s.delay = delay
	r.reposition(s.pos, increased)
	return true, nil
}

// reposition walks the light at p towards the end (delay increased) or the
// front (delay decreased) until its neighbour no longer crosses it. Cost is
// proportional to the distance moved.
func (r *registry) reposition(p int, increased bool) {
	d := r.slots[r.order[p]].delay
	if increased {
		for p+1 < r.n && r.slots[r.order[p+1]].delay < d {
			r.swap(p, p+1)
			p++
		}
		return
	}
	for p > 0 && r.slots[r.order[p-1]].delay > d {
		r.swap(p, p-1)
		p--
	}
}

func (r *registry) swap(i, j int) {
	r.order[i], r.order[j] = r.order[j], r.order[i]
	r.slots[r.order[i]].pos = i
	r.slots[r.order[j]].pos = j
}

// snapshot builds the next schedule to hand to the interrupt side.
func (r *registry) snapshot() *schedule {
	r.gen++
	sc := &schedule{gen: r.gen, n: r.n}
	for i := 0; i < r.n; i++ {
		s := &r.slots[r.order[i]]
		sc.entries[i] = entry{pin: s.pin, delay: s.delay}
	}
	return sc
}

func (r *registry) info(idx int) LightInfo {
	s := &r.slots[idx]
	return LightInfo{
		Handle:     makeHandle(idx, s.gen),
		Pin:        s.pin,
		Brightness: s.brightness,
		Delay:      s.delay,
		Position:   s.pos,
	}
}

// check scans the whole registry for order and position violations.
func (r *registry) check() error {
	for i := 0; i < r.n; i++ {
		s := &r.slots[r.order[i]]
		if !s.used || s.pos != i {
			return ErrInconsistentSchedule
		}
		if i > 0 && r.slots[r.order[i-1]].delay > s.delay {
			return ErrInconsistentSchedule
		}
	}
	return nil
}
