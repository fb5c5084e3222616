package hardware_test

import (
	"testing"
	"time"

	"github.com/micro-nova/devlog-go/internal/hardware"
)

func TestMockStartStopIdempotent(t *testing.T) {
	m := hardware.NewMock()

	pulses := 0
	if err := m.Start(func() { pulses++ }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(func() { t.Error("second handler must not replace the first") }); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := m.Starts(); got != 1 {
		t.Errorf("Starts() = %d, want 1", got)
	}

	if !m.Pulse() {
		t.Fatal("Pulse() = false while subscribed")
	}
	if pulses != 1 {
		t.Errorf("pulses = %d, want 1", pulses)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if got := m.Stops(); got != 1 {
		t.Errorf("Stops() = %d, want 1", got)
	}
	if m.Pulse() {
		t.Error("Pulse() = true after Stop")
	}
}

func TestMockFailStart(t *testing.T) {
	m := hardware.NewMock()
	m.SetFailStart(true)
	if err := m.Start(func() {}); err == nil {
		t.Fatal("Start should fail when configured")
	}
	if m.Listening() {
		t.Error("Listening() = true after failed Start")
	}
}

func TestDebouncer(t *testing.T) {
	d := hardware.NewDebouncer(500 * time.Millisecond)
	t0 := time.Now()

	if !d.AllowAt(t0) {
		t.Fatal("first pulse should pass")
	}
	if d.AllowAt(t0.Add(100 * time.Millisecond)) {
		t.Error("pulse within debounce window should be dropped")
	}
	if !d.AllowAt(t0.Add(600 * time.Millisecond)) {
		t.Error("pulse after debounce window should pass")
	}
}

func TestDebouncerZeroInterval(t *testing.T) {
	d := hardware.NewDebouncer(0)
	for i := 0; i < 5; i++ {
		if !d.Allow() {
			t.Fatalf("pulse %d dropped with zero interval", i)
		}
	}
}

func TestParseSample(t *testing.T) {
	s, err := hardware.ParseSample(" 0.5, -2.0 ,2 \r")
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	if s.X != 0.5 || s.Y != -2.0 || s.Z != 2 {
		t.Errorf("sample = %+v", s)
	}
	if got := s.Magnitude(); got < 2.87 || got > 2.88 {
		t.Errorf("Magnitude() = %v, want ~2.872", got)
	}

	for _, bad := range []string{"", "1,2", "1,2,x", "1,2,3,4"} {
		if _, err := hardware.ParseSample(bad); err == nil {
			t.Errorf("ParseSample(%q) should fail", bad)
		}
	}
}
