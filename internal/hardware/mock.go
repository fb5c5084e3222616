package hardware

import "sync"

// Mock is a thread-safe in-memory motion source for testing and development.
// It records every effective subscribe and unsubscribe.
type Mock struct {
	mu        sync.Mutex
	onPulse   func()
	starts    int
	stops     int
	failStart bool
	failStop  bool
}

// NewMock creates a stopped mock source.
func NewMock() *Mock {
	return &Mock{}
}

// SetFailStart configures the mock to fail Start.
func (m *Mock) SetFailStart(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStart = fail
}

// SetFailStop configures the mock to fail Stop.
func (m *Mock) SetFailStop(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStop = fail
}

func (m *Mock) Start(onPulse func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStart {
		return ErrHardware("mock: start failure configured")
	}
	if m.onPulse != nil {
		return nil
	}
	m.onPulse = onPulse
	m.starts++
	return nil
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStop {
		return ErrHardware("mock: stop failure configured")
	}
	if m.onPulse == nil {
		return nil
	}
	m.onPulse = nil
	m.stops++
	return nil
}

func (m *Mock) Name() string { return "mock" }

// Pulse simulates one recognized gesture. It returns false when nothing is
// subscribed.
func (m *Mock) Pulse() bool {
	m.mu.Lock()
	fn := m.onPulse
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Starts returns how many times a subscription was established.
func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times a subscription was cancelled.
func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Listening reports whether a subscription is active.
func (m *Mock) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onPulse != nil
}

var _ Source = (*Mock)(nil)
