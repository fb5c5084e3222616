// Package hardware provides the motion-sensor abstraction used by the trigger
// detector. A Source turns recognized physical gestures (shakes) into pulses;
// debouncing and sensitivity belong to the source, not to its consumers.
package hardware

import "time"

// Source is a hardware motion source.
// All operations are safe for concurrent use.
type Source interface {
	// Start subscribes onPulse to gesture notifications. onPulse is called on
	// the source's own goroutine and must not block. Starting a source that
	// is already started is a no-op.
	Start(onPulse func()) error

	// Stop cancels the subscription and returns once onPulse will no longer
	// be called. Stopping a stopped source is a no-op.
	// An error means the subscription may still be live.
	Stop() error

	// Name identifies the source in logs and events ("mock", "gpio", "serial").
	Name() string
}

// Tuning controls gesture recognition for sources that support it.
type Tuning struct {
	// Debounce is the minimum interval between two pulses.
	Debounce time.Duration
	// ThresholdG is the acceleration magnitude, in g, that counts as a shake.
	ThresholdG float64
}

// DefaultTuning matches common platform shake detectors.
func DefaultTuning() Tuning {
	return Tuning{
		Debounce:   500 * time.Millisecond,
		ThresholdG: 2.7,
	}
}

// HardwareError is returned when a hardware operation fails.
type HardwareError struct {
	msg string
}

func (e HardwareError) Error() string { return e.msg }

// ErrHardware creates a new hardware error.
func ErrHardware(msg string) error { return HardwareError{msg: msg} }
