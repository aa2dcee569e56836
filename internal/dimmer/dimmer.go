// Package dimmer drives leading-edge phase-control dimming of AC loads.
//
// Lights live in a registry kept sorted by firing delay. Every change to the
// registry is published to the interrupt side as a complete, immutable
// schedule through an atomic pointer; the zero-cross handler adopts the latest
// one at the start of a half-cycle. The interrupt handlers never block,
// allocate or read the registry.
package dimmer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
)

type Dimmer struct {
	gpio  hal.GPIO
	irq   hal.EdgeAttacher
	timer hal.Timer

	mu    sync.Mutex
	reg   *registry
	sched *scheduler

	mutating     atomic.Bool
	publishedGen atomic.Uint64
	started      atomic.Bool
}

// Stats are counters maintained by the interrupt handlers plus the state of
// the registry hand-off.
type Stats struct {
	Lights       int
	HalfCycles   uint64
	TimerArms    uint64
	Fired        uint64
	Coalesced    uint64
	PublishedGen uint64
	AdoptedGen   uint64
	Pending      bool
	Mutating     bool
}

func New(gpio hal.GPIO, irq hal.EdgeAttacher, timer hal.Timer) *Dimmer {
	return &Dimmer{
		gpio:  gpio,
		irq:   irq,
		timer: timer,
		reg:   newRegistry(),
		sched: newScheduler(gpio, timer),
	}
}

// Begin attaches the zero-cross handler and the timer expiry handler. It may
// only be called once.
func (d *Dimmer) Begin(zeroCrossPin hal.Pin) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	d.timer.OnExpire(d.sched.onTimerExpire)
	if err := d.irq.AttachRisingEdge(zeroCrossPin, d.sched.onZeroCross); err != nil {
		d.started.Store(false)
		return fmt.Errorf("failed to attach zero-cross on pin %d: %w", zeroCrossPin, err)
	}
	log.Info().Uint16("zero_cross_pin", uint16(zeroCrossPin)).Msg("Dimmer started")
	return nil
}

// Create registers a light on pin. New lights start off.
func (d *Dimmer) Create(pin hal.Pin) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// a full registry must not claim the output line
	if d.reg.n >= Capacity {
		return 0, ErrCapacityExceeded
	}
	if oc, ok := d.gpio.(hal.OutputConfigurer); ok {
		if err := oc.ConfigureOutput(pin); err != nil {
			return 0, fmt.Errorf("failed to configure pin %d: %w", pin, err)
		}
	}

	d.mutating.Store(true)
	h, err := d.reg.add(pin)
	if err != nil {
		d.mutating.Store(false)
		return 0, err
	}
	d.commit()

	log.Debug().Uint16("pin", uint16(pin)).Uint32("handle", uint32(h)).Msg("Light created")
	return h, nil
}

// Destroy removes a light. Its triac line is driven low at the next
// zero-cross and never fired again.
func (d *Dimmer) Destroy(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mutating.Store(true)
	if err := d.reg.remove(h); err != nil {
		d.mutating.Store(false)
		return err
	}
	d.commit()

	log.Debug().Uint32("handle", uint32(h)).Msg("Light destroyed")
	return nil
}

// SetBrightness sets a light to brightness (0 off, 255 full on). Setting the
// current value again does nothing.
func (d *Dimmer) SetBrightness(h Handle, brightness uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mutating.Store(true)
	changed, err := d.reg.setBrightness(h, brightness)
	if err != nil || !changed {
		d.mutating.Store(false)
		return err
	}
	d.commit()

	log.Debug().
		Uint32("handle", uint32(h)).
		Uint8("brightness", brightness).
		Uint16("delay_us", DelayFor(brightness)).
		Msg("Brightness updated")
	return nil
}

// commit publishes the registry to the interrupt side. The registry is fully
// written before the snapshot is taken, and publishedGen is stored before the
// snapshot becomes visible so it never trails an adopted generation.
func (d *Dimmer) commit() {
	sc := d.reg.snapshot()
	d.mutating.Store(false)
	d.publishedGen.Store(sc.gen)
	d.sched.publish(sc)
}

func (d *Dimmer) Brightness(h Handle) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.reg.lookup(h)
	if !ok {
		return 0, ErrInvalidHandle
	}
	return s.brightness, nil
}

// Delay returns the firing delay of a light in microseconds.
func (d *Dimmer) Delay(h Handle) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.reg.lookup(h)
	if !ok {
		return 0, ErrInvalidHandle
	}
	return s.delay, nil
}

func (d *Dimmer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.n
}

// Lights returns every light in firing order.
func (d *Dimmer) Lights() []LightInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LightInfo, 0, d.reg.n)
	for i := 0; i < d.reg.n; i++ {
		out = append(out, d.reg.info(d.reg.order[i]))
	}
	return out
}

// Verify checks the registry invariants and, once the interrupt side has
// adopted the latest schedule, that both agree on the number of lights.
func (d *Dimmer) Verify() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.reg.check(); err != nil {
		return fmt.Errorf("registry out of order: %w", err)
	}
	if d.sched.pending.Load() != nil {
		return nil
	}
	if d.sched.adoptedGen.Load() != d.publishedGen.Load() {
		return nil
	}
	if n := int(d.sched.adoptedLen.Load()); n != d.reg.n {
		return fmt.Errorf("%w: schedule has %d lights, registry has %d", ErrInconsistentSchedule, n, d.reg.n)
	}
	return nil
}

func (d *Dimmer) Stats() Stats {
	d.mu.Lock()
	n := d.reg.n
	d.mu.Unlock()
	// adopted before published, so AdoptedGen <= PublishedGen
	adopted := d.sched.adoptedGen.Load()
	return Stats{
		Lights:       n,
		HalfCycles:   d.sched.halfCycles.Load(),
		TimerArms:    d.sched.arms.Load(),
		Fired:        d.sched.fired.Load(),
		Coalesced:    d.sched.coalesced.Load(),
		PublishedGen: d.publishedGen.Load(),
		AdoptedGen:   adopted,
		Pending:      d.sched.pending.Load() != nil,
		Mutating:     d.mutating.Load(),
	}
}
