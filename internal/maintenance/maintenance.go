// Package maintenance runs background housekeeping for the diagnostic log.
// The log is never rotated; the sampler only exports its size and warns once
// it grows past a threshold so an operator can upload and clear it.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/micro-nova/devlog-go/internal/metrics"
)

// LogFile is the part of the log writer the sampler reads.
type LogFile interface {
	Size(ctx context.Context) (int64, error)
	Path() string
}

// Service samples the log file size on an interval.
type Service struct {
	log       LogFile
	interval  time.Duration
	warnBytes int64
	onLarge   func(size int64) // callback when the file crosses warnBytes

	warned bool
}

// New creates a maintenance Service. A warnBytes of zero disables the
// size warning.
func New(log LogFile, interval time.Duration, warnBytes int64, onLarge func(int64)) *Service {
	return &Service{
		log:       log,
		interval:  interval,
		warnBytes: warnBytes,
		onLarge:   onLarge,
	}
}

// Start samples immediately and then every interval.
// Blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.sample(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

// sample runs on the Start goroutine only.
func (s *Service) sample(ctx context.Context) {
	size, err := s.log.Size(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("maintenance: failed to stat log", "path", s.log.Path(), "err", err)
		}
		return
	}
	metrics.LogFileBytes.Set(float64(size))

	if s.warnBytes <= 0 {
		return
	}
	large := size >= s.warnBytes
	if large && !s.warned {
		slog.Warn("maintenance: log file is large, upload and clear it", "path", s.log.Path(), "bytes", size)
		if s.onLarge != nil {
			s.onLarge(size)
		}
	}
	// Re-arm after the caller clears the file.
	s.warned = large
}
