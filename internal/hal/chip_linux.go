//go:build linux

package hal

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/gpiod"
)

const maxLines = 64

// Chip drives triac outputs and listens for the zero-cross edge through the
// Linux GPIO character device.
type Chip struct {
	chip  *gpiod.Chip
	d     *Dispatcher
	lines [maxLines]atomic.Pointer[gpiod.Line]

	mu    sync.Mutex
	owned []*gpiod.Line
}

// OpenChip opens a gpiochip (e.g. "gpiochip0"). Edge events are delivered
// through d.
func OpenChip(name string, d *Dispatcher) (*Chip, error) {
	c, err := gpiod.NewChip(name, gpiod.WithConsumer("dimmer-controller"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return &Chip{chip: c, d: d}, nil
}

func (c *Chip) ConfigureOutput(pin Pin) error {
	if int(pin) >= maxLines {
		return fmt.Errorf("pin %d out of range", pin)
	}
	if c.lines[pin].Load() != nil {
		return nil
	}
	l, err := c.chip.RequestLine(int(pin), gpiod.AsOutput(0))
	if err != nil {
		return fmt.Errorf("failed to request output line %d: %w", pin, err)
	}
	c.track(l)
	c.lines[pin].Store(l)
	return nil
}

// Write is a no-op for pins that were never configured as outputs.
func (c *Chip) Write(pin Pin, high bool) {
	if int(pin) >= maxLines {
		return
	}
	l := c.lines[pin].Load()
	if l == nil {
		return
	}
	v := 0
	if high {
		v = 1
	}
	_ = l.SetValue(v)
}

func (c *Chip) AttachRisingEdge(pin Pin, handler func()) error {
	l, err := c.chip.RequestLine(int(pin),
		gpiod.WithEventHandler(func(gpiod.LineEvent) {
			if !c.d.Post(handler) {
				log.Warn().Uint16("pin", uint16(pin)).Msg("Interrupt queue full, zero-cross dropped")
			}
		}),
		gpiod.WithRisingEdge)
	if err != nil {
		return fmt.Errorf("failed to request edge events on line %d: %w", pin, err)
	}
	c.track(l)
	return nil
}

func (c *Chip) track(l *gpiod.Line) {
	c.mu.Lock()
	c.owned = append(c.owned, l)
	c.mu.Unlock()
}

// Close drives every output low and releases all lines.
func (c *Chip) Close() error {
	for i := range c.lines {
		if l := c.lines[i].Swap(nil); l != nil {
			_ = l.SetValue(0)
		}
	}
	c.mu.Lock()
	for _, l := range c.owned {
		l.Close()
	}
	c.owned = nil
	c.mu.Unlock()
	return c.chip.Close()
}
