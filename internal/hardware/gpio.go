//go:build linux

package hardware

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePoll bounds how long the watch loop blocks in WaitForEdge, and so how
// long Stop may wait for it.
const edgePoll = 100 * time.Millisecond

// GPIO is a motion source backed by a vibration switch (SW-420 style) wired
// to a GPIO pin. Each rising edge that passes the debouncer is a pulse.
type GPIO struct {
	mu       sync.Mutex
	pinName  string // BCM name, e.g. "GPIO17"
	debounce time.Duration
	pin      gpio.PinIO
	stop     chan struct{}
	done     chan struct{}
}

// NewGPIO creates a stopped GPIO motion source on pinName.
func NewGPIO(pinName string, tuning Tuning) *GPIO {
	return &GPIO{pinName: pinName, debounce: tuning.Debounce}
}

func (g *GPIO) Name() string { return "gpio" }

func (g *GPIO) Start(onPulse func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		return nil
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("gpio: host init failed: %w", err)
	}
	pin := gpioreg.ByName(g.pinName)
	if pin == nil {
		return fmt.Errorf("gpio: failed to open %s", g.pinName)
	}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return fmt.Errorf("gpio: configure %s for edge detection: %w", g.pinName, err)
	}

	g.pin = pin
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.watch(pin, NewDebouncer(g.debounce), onPulse, g.stop, g.done)

	slog.Debug("gpio: motion source started", "pin", g.pinName, "debounce", g.debounce)
	return nil
}

func (g *GPIO) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop == nil {
		return nil
	}
	close(g.stop)
	<-g.done
	g.stop, g.done = nil, nil

	err := g.pin.In(gpio.PullDown, gpio.NoEdge)
	g.pin = nil
	if err != nil {
		return fmt.Errorf("gpio: disable edge detection on %s: %w", g.pinName, err)
	}
	slog.Debug("gpio: motion source stopped", "pin", g.pinName)
	return nil
}

func (g *GPIO) watch(pin gpio.PinIO, deb *Debouncer, onPulse func(), stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !pin.WaitForEdge(edgePoll) {
			continue
		}
		if deb.Allow() {
			onPulse()
		}
	}
}

var _ Source = (*GPIO)(nil)
