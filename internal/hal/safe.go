package hal

// SafeGPIO drops every write when safe mode is enabled, leaving the triac
// lines in whatever state the boot script put them.
type SafeGPIO struct {
	GPIO
	enabled bool
}

func NewSafeGPIO(g GPIO, enabled bool) *SafeGPIO {
	return &SafeGPIO{GPIO: g, enabled: enabled}
}

func (s *SafeGPIO) Write(pin Pin, high bool) {
	if s.enabled {
		return
	}
	s.GPIO.Write(pin, high)
}

func (s *SafeGPIO) ConfigureOutput(pin Pin) error {
	if s.enabled {
		return nil
	}
	if oc, ok := s.GPIO.(OutputConfigurer); ok {
		return oc.ConfigureOutput(pin)
	}
	return nil
}
