package hardware

import (
	"time"

	"golang.org/x/time/rate"
)

// Debouncer admits at most one pulse per interval. A zero interval admits
// every pulse.
type Debouncer struct {
	limiter *rate.Limiter
}

// NewDebouncer creates a Debouncer for the given interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		return &Debouncer{}
	}
	return &Debouncer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Allow reports whether a pulse observed now should be delivered.
func (d *Debouncer) Allow() bool {
	return d.AllowAt(time.Now())
}

// AllowAt reports whether a pulse observed at t should be delivered.
func (d *Debouncer) AllowAt(t time.Time) bool {
	if d.limiter == nil {
		return true
	}
	return d.limiter.AllowN(t, 1)
}
