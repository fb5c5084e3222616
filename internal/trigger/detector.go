// Package trigger implements the shake-trigger state machine.
//
// The detector owns the hardware subscription and ties it to two inputs: the
// feature switch (Enable/Disable) and the lifecycle scope
// (OnForeground/OnBackground). The foreground flag lives here too, under the
// same lock as the state, so a scope transition can never slip in between
// reading the flag and subscribing. The subscription is active exactly while
// the state is EnabledListening.
package trigger

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/micro-nova/devlog-go/internal/hardware"
	"github.com/micro-nova/devlog-go/internal/metrics"
	"github.com/micro-nova/devlog-go/internal/models"
)

// State is the trigger feature state.
type State int

const (
	Disabled State = iota
	EnabledIdle
	EnabledListening
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case EnabledIdle:
		return "enabled-idle"
	case EnabledListening:
		return "enabled-listening"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Publisher receives one event per recognized gesture. Publish must not block.
type Publisher interface {
	Publish(ev models.TriggerEvent)
}

// Detector serializes state transitions with a mutex. The pulse path never
// takes that mutex; it only reads an atomic flag, so a source's Stop may wait
// for its delivery goroutine without deadlocking.
type Detector struct {
	mu    sync.Mutex
	state State
	// foreground is the last transition reported by the lifecycle scope.
	foreground bool
	src        hardware.Source
	pub   Publisher

	listening atomic.Bool
}

// New creates a Disabled, backgrounded detector for src publishing to pub.
func New(src hardware.Source, pub Publisher) *Detector {
	return &Detector{src: src, pub: pub}
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SourceName returns the name of the underlying hardware source.
func (d *Detector) SourceName() string { return d.src.Name() }

// Foreground reports the last lifecycle transition seen.
func (d *Detector) Foreground() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground
}

// Enable turns the feature on. In the foreground the hardware subscription
// is established; otherwise the detector waits in EnabledIdle for
// OnForeground. Enabling an enabled detector never subscribes twice.
func (d *Detector) Enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == EnabledListening {
		return nil
	}
	d.state = EnabledIdle
	if !d.foreground {
		slog.Debug("trigger: enabled, waiting for foreground")
		return nil
	}
	return d.listenLocked()
}

// Disable turns the feature off, cancelling the subscription if active. If
// the source fails to unsubscribe the detector stays EnabledListening so a
// later Disable can retry.
func (d *Detector) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == EnabledListening {
		if err := d.unlistenLocked(); err != nil {
			return err
		}
	}
	if d.state != Disabled {
		slog.Debug("trigger: disabled")
	}
	d.state = Disabled
	return nil
}

// OnForeground records the foreground and subscribes if the feature is
// enabled and idle.
func (d *Detector) OnForeground() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = true
	if d.state != EnabledIdle {
		return nil
	}
	return d.listenLocked()
}

// OnBackground records the background and unsubscribes if listening.
// Nothing else happens in other states, including when the feature was
// never enabled. A failed unsubscribe leaves the detector EnabledListening.
func (d *Detector) OnBackground() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = false
	if d.state != EnabledListening {
		return nil
	}
	if err := d.unlistenLocked(); err != nil {
		return err
	}
	d.state = EnabledIdle
	return nil
}

func (d *Detector) listenLocked() error {
	d.listening.Store(true)
	if err := d.src.Start(d.onPulse); err != nil {
		d.listening.Store(false)
		return fmt.Errorf("trigger: subscribe %s: %w", d.src.Name(), err)
	}
	d.state = EnabledListening
	metrics.TriggerSubscriptions.Set(1)
	slog.Info("trigger: listening", "source", d.src.Name())
	return nil
}

// unlistenLocked leaves the state to the caller. On a failed Stop the
// subscription is still live, so pulses keep flowing until a retry succeeds.
func (d *Detector) unlistenLocked() error {
	d.listening.Store(false)
	if err := d.src.Stop(); err != nil {
		d.listening.Store(true)
		slog.Warn("trigger: unsubscribe failed", "source", d.src.Name(), "err", err)
		return fmt.Errorf("trigger: unsubscribe %s: %w", d.src.Name(), err)
	}
	metrics.TriggerSubscriptions.Set(0)
	slog.Info("trigger: stopped listening", "source", d.src.Name())
	return nil
}

// onPulse runs on the hardware source's goroutine.
func (d *Detector) onPulse() {
	if !d.listening.Load() {
		metrics.TriggerPulsesTotal.WithLabelValues("ignored").Inc()
		return
	}
	metrics.TriggerPulsesTotal.WithLabelValues("published").Inc()
	d.pub.Publish(models.TriggerEvent{
		ID:     uuid.NewString(),
		Source: d.src.Name(),
		At:     time.Now(),
	})
}
