//go:build !linux

package hal

import "errors"

var ErrUnsupported = errors.New("gpio character device requires linux")

type Chip struct{}

func OpenChip(name string, d *Dispatcher) (*Chip, error) { return nil, ErrUnsupported }

func (c *Chip) ConfigureOutput(pin Pin) error                  { return ErrUnsupported }
func (c *Chip) Write(pin Pin, high bool)                       {}
func (c *Chip) AttachRisingEdge(pin Pin, handler func()) error { return ErrUnsupported }
func (c *Chip) Close() error                                   { return nil }
