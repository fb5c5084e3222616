//go:build !linux

package hardware

// GPIO is unavailable off Linux; Start always fails.
type GPIO struct {
	pinName string
}

// NewGPIO creates a GPIO source that cannot be started on this platform.
func NewGPIO(pinName string, tuning Tuning) *GPIO {
	return &GPIO{pinName: pinName}
}

func (g *GPIO) Name() string { return "gpio" }

func (g *GPIO) Start(onPulse func()) error {
	return ErrHardware("gpio: not supported on this platform")
}

func (g *GPIO) Stop() error { return nil }

var _ Source = (*GPIO)(nil)
