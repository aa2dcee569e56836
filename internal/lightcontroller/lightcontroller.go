// Package lightcontroller maps configured light names onto dimmer handles and
// fans every change out to the audit log, metrics and state listeners.
package lightcontroller

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/datadog"
	"github.com/thatsimonsguy/dimmer-controller/internal/dimmer"
	"github.com/thatsimonsguy/dimmer-controller/internal/hal"
	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

var (
	ErrUnknownLight   = errors.New("unknown light")
	ErrDuplicateLight = errors.New("light already exists")
)

type Auditor interface {
	Record(ev model.LightEvent) error
}

type light struct {
	handle dimmer.Handle
	pin    int
}

type Controller struct {
	dim   *dimmer.Dimmer
	audit Auditor

	mu        sync.Mutex
	lights    map[string]light
	listeners []func(model.LightState)
}

// New returns a controller over dim. audit may be nil.
func New(dim *dimmer.Dimmer, audit Auditor) *Controller {
	return &Controller{
		dim:    dim,
		audit:  audit,
		lights: map[string]light{},
	}
}

// OnChange registers fn to be called after every successful brightness
// change. fn runs on the caller's goroutine.
func (c *Controller) OnChange(fn func(model.LightState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Add(name string, pin int, source string) error {
	c.mu.Lock()
	if _, exists := c.lights[name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateLight, name)
	}
	h, err := c.dim.Create(hal.Pin(pin))
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to create light %s: %w", name, err)
	}
	c.lights[name] = light{handle: h, pin: pin}
	c.mu.Unlock()

	log.Info().Str("light", name).Int("pin", pin).Msg("Light added")
	c.record(name, model.ActionCreate, 0, source)
	return nil
}

func (c *Controller) Remove(name, source string) error {
	c.mu.Lock()
	l, ok := c.lights[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLight, name)
	}
	if err := c.dim.Destroy(l.handle); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to destroy light %s: %w", name, err)
	}
	delete(c.lights, name)
	c.mu.Unlock()

	log.Info().Str("light", name).Msg("Light removed")
	c.record(name, model.ActionDestroy, 0, source)
	return nil
}

// Set changes the brightness of a named light and returns its new state.
func (c *Controller) Set(name string, brightness uint8, source string) (model.LightState, error) {
	c.mu.Lock()
	l, ok := c.lights[name]
	if !ok {
		c.mu.Unlock()
		return model.LightState{}, fmt.Errorf("%w: %s", ErrUnknownLight, name)
	}
	if err := c.dim.SetBrightness(l.handle, brightness); err != nil {
		c.mu.Unlock()
		return model.LightState{}, fmt.Errorf("failed to set light %s: %w", name, err)
	}
	state := c.stateLocked(name, l)
	listeners := append([]func(model.LightState){}, c.listeners...)
	c.mu.Unlock()

	log.Info().
		Str("light", name).
		Uint8("brightness", brightness).
		Str("source", source).
		Msg("Light brightness set")
	c.record(name, model.ActionBrightness, brightness, source)
	datadog.LightBrightness(name, brightness)

	for _, fn := range listeners {
		fn(state)
	}
	return state, nil
}

func (c *Controller) Get(name string) (model.LightState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lights[name]
	if !ok {
		return model.LightState{}, fmt.Errorf("%w: %s", ErrUnknownLight, name)
	}
	return c.stateLocked(name, l), nil
}

// List returns every light ordered by name.
func (c *Controller) List() []model.LightState {
	c.mu.Lock()
	defer c.mu.Unlock()

	byHandle := map[dimmer.Handle]dimmer.LightInfo{}
	for _, info := range c.dim.Lights() {
		byHandle[info.Handle] = info
	}

	out := make([]model.LightState, 0, len(c.lights))
	for name, l := range c.lights {
		out = append(out, toState(name, l, byHandle[l.handle]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Controller) Stats() model.SchedulerStats {
	st := c.dim.Stats()
	return model.SchedulerStats{
		Lights:       st.Lights,
		HalfCycles:   st.HalfCycles,
		TimerArms:    st.TimerArms,
		Fired:        st.Fired,
		Coalesced:    st.Coalesced,
		PublishedGen: st.PublishedGen,
		AdoptedGen:   st.AdoptedGen,
		Pending:      st.Pending,
	}
}

func (c *Controller) Verify() error {
	return c.dim.Verify()
}

func (c *Controller) stateLocked(name string, l light) model.LightState {
	for _, info := range c.dim.Lights() {
		if info.Handle == l.handle {
			return toState(name, l, info)
		}
	}
	return model.LightState{Name: name, Pin: l.pin, DelayUS: dimmer.MaxDelay, Position: -1}
}

func toState(name string, l light, info dimmer.LightInfo) model.LightState {
	return model.LightState{
		Name:       name,
		Pin:        l.pin,
		Brightness: info.Brightness,
		DelayUS:    info.Delay,
		Position:   info.Position,
	}
}

func (c *Controller) record(name string, action model.LightAction, brightness uint8, source string) {
	if c.audit == nil {
		return
	}
	err := c.audit.Record(model.LightEvent{
		Light:      name,
		Action:     action,
		Brightness: brightness,
		Source:     source,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("light", name).Msg("Failed to record light event")
	}
}
