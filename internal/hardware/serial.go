package hardware

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	maxSampleLine = 128
	readTimeout   = 200 * time.Millisecond
)

// port is the subset of serial.Port the source uses.
type port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// openPort is a variable so tests can inject a fake port.
var openPort = func(device string, baud int) (port, error) {
	return serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Sample is one accelerometer reading in g.
type Sample struct {
	X, Y, Z float64
}

// Magnitude returns the length of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// ParseSample parses a "x,y,z" line as emitted by the serial IMU firmware.
func ParseSample(line string) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return Sample{}, fmt.Errorf("serial: want 3 fields, got %d", len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("serial: field %d: %w", i, err)
		}
		v[i] = n
	}
	return Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Serial is a motion source reading accelerometer samples from a UART.
// A sample whose magnitude exceeds the threshold is a shake; shakes closer
// together than the debounce interval count once.
type Serial struct {
	mu     sync.Mutex
	device string
	baud   int
	tuning Tuning
	port   port
	stop   chan struct{}
	done   chan struct{}
}

// NewSerial creates a stopped serial motion source.
func NewSerial(device string, baud int, tuning Tuning) *Serial {
	return &Serial{device: device, baud: baud, tuning: tuning}
}

func (s *Serial) Name() string { return "serial" }

func (s *Serial) Start(onPulse func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	p, err := openPort(s.device, s.baud)
	if err != nil {
		return fmt.Errorf("serial: open %s: %w", s.device, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return fmt.Errorf("serial: set read timeout: %w", err)
	}
	s.port = p
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.read(p, NewDebouncer(s.tuning.Debounce), onPulse, s.stop, s.done)

	slog.Debug("serial: motion source started", "device", s.device, "baud", s.baud,
		"threshold_g", s.tuning.ThresholdG, "debounce", s.tuning.Debounce)
	return nil
}

func (s *Serial) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	err := s.port.Close()
	<-s.done
	s.port, s.stop, s.done = nil, nil, nil
	if err != nil {
		return fmt.Errorf("serial: close %s: %w", s.device, err)
	}
	slog.Debug("serial: motion source stopped", "device", s.device)
	return nil
}

func (s *Serial) read(p port, deb *Debouncer, onPulse func(), stop, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 256)
	line := make([]byte, 0, maxSampleLine)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := p.Read(buf)
		if err != nil {
			select {
			case <-stop:
			default:
				if !errors.Is(err, io.EOF) {
					slog.Warn("serial: read failed, source halted", "device", s.device, "err", err)
				}
			}
			return
		}
		for _, b := range buf[:n] {
			if b != '\n' {
				if len(line) < maxSampleLine {
					line = append(line, b)
				}
				continue
			}
			if s.isShake(string(line)) && deb.Allow() {
				onPulse()
			}
			line = line[:0]
		}
	}
}

func (s *Serial) isShake(line string) bool {
	sample, err := ParseSample(line)
	if err != nil {
		slog.Debug("serial: skipping malformed sample", "line", line, "err", err)
		return false
	}
	return sample.Magnitude() >= s.tuning.ThresholdG
}

var _ Source = (*Serial)(nil)
