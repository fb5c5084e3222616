// Package lifecycle models the foreground/background window that the trigger
// feature's active listening is bound to.
package lifecycle

import (
	"log/slog"
	"sync"
)

// Observer receives scope transitions.
type Observer interface {
	OnForeground() error
	OnBackground() error
}

// Scope is a lifecycle scope.
//
// Observe registers obs, reports the current state to it before returning,
// and then delivers every transition in order, one at a time. The returned
// stop cancels the registration and waits for an in-flight notification. If
// the initial report fails the registration is kept and the error returned
// alongside stop.
type Scope interface {
	Name() string
	Active() bool
	Observe(obs Observer) (stop func(), err error)
}

// Manual is a Scope driven explicitly, by the HTTP bridge or by tests.
type Manual struct {
	notify sync.Mutex // held while an observer runs; orders notifications
	mu     sync.Mutex
	active bool
	obs    Observer
}

// NewManual creates a manual scope in the given initial state.
func NewManual(active bool) *Manual {
	return &Manual{active: active}
}

func (m *Manual) Name() string { return "manual" }

func (m *Manual) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manual) Observe(obs Observer) (func(), error) {
	m.notify.Lock()
	defer m.notify.Unlock()
	m.mu.Lock()
	m.obs = obs
	active := m.active
	m.mu.Unlock()

	stop := func() {
		m.notify.Lock()
		defer m.notify.Unlock()
		m.mu.Lock()
		if m.obs == obs {
			m.obs = nil
		}
		m.mu.Unlock()
	}
	return stop, report(obs, active)
}

// SetActive moves the scope to the foreground (true) or background (false)
// and notifies the observer when the state changes. Notification happens on
// the caller's goroutine; the observer must not call back into SetActive.
func (m *Manual) SetActive(active bool) error {
	m.notify.Lock()
	defer m.notify.Unlock()
	m.mu.Lock()
	changed := m.active != active
	m.active = active
	obs := m.obs
	m.mu.Unlock()

	if !changed || obs == nil {
		return nil
	}
	slog.Debug("lifecycle: manual scope transition", "active", active)
	return report(obs, active)
}

func report(obs Observer, active bool) error {
	if active {
		return obs.OnForeground()
	}
	return obs.OnBackground()
}

var _ Scope = (*Manual)(nil)
