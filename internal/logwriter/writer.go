// Package logwriter owns the diagnostic log file.
//
// Every operation that touches the file (append, existence check, removal)
// runs on a single worker goroutine in the order it was accepted, so
// concurrent callers never interleave partial lines and a removal is never
// observed halfway through an append.
package logwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/micro-nova/devlog-go/internal/metrics"
)

const defaultQueueSize = 256

var (
	// ErrClosed is returned for operations submitted after Close.
	ErrClosed = errors.New("logwriter: closed")
	// ErrPanic wraps a panic recovered while running a queued operation.
	ErrPanic = errors.New("logwriter: operation panicked")
)

// Writer appends newline-terminated UTF-8 lines to one file.
// All exported methods are safe to call concurrently.
type Writer struct {
	path string
	log  *slog.Logger

	mu     sync.RWMutex // guards closed against sends on jobs
	closed bool
	jobs   chan func()
	done   chan struct{}
}

// Option configures a Writer.
type Option func(*options)

type options struct {
	queueSize int
	logger    *slog.Logger
}

// WithQueueSize sets how many operations may wait before submitters block.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets where the writer reports its own failures. Use a logger
// that does not feed back into this writer.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates a Writer for path and starts its worker. The parent directory
// is created if needed; the file itself is created by the first append.
func New(path string, opts ...Option) (*Writer, error) {
	o := options{queueSize: defaultQueueSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("logwriter: resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("logwriter: create dir: %w", err)
	}

	w := &Writer{
		path: abs,
		log:  o.logger,
		jobs: make(chan func(), o.queueSize),
		done: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Path returns the absolute location of the log file.
func (w *Writer) Path() string { return w.path }

// Append writes message plus a line terminator to the end of the file,
// creating it if missing. An empty message resolves false without touching
// storage. Invalid UTF-8 sequences are replaced with U+FFFD.
func (w *Writer) Append(ctx context.Context, message string) (bool, error) {
	if message == "" {
		metrics.IncAppend("empty", 0)
		return false, nil
	}
	line := toLine(message)
	return do(ctx, w, func() (bool, error) { return w.write(line) })
}

// Post queues message for appending and returns without waiting for the
// write. It reports false when the message is empty, the writer is closed or
// the queue is full; a full queue drops the message.
func (w *Writer) Post(message string) bool {
	if message == "" {
		return false
	}
	line := toLine(message)
	job := func() { _, _ = w.write(line) }

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		metrics.IncAppend("dropped", 0)
		return false
	}
}

func toLine(message string) string {
	return strings.ToValidUTF8(message, "\uFFFD") + "\n"
}

// write runs on the worker only.
func (w *Writer) write(line string) (bool, error) {
	if err := w.appendLine(line); err != nil {
		metrics.IncAppend("error", 0)
		w.log.Error("logwriter: append failed", "path", w.path, "err", err)
		return false, err
	}
	metrics.IncAppend("ok", len(line))
	return true, nil
}

// Exists reports whether the log file is present, as seen after every
// operation accepted before this one.
func (w *Writer) Exists(ctx context.Context) (bool, error) {
	return do(ctx, w, func() (bool, error) {
		_, err := os.Stat(w.path)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("logwriter: stat %s: %w", w.path, err)
	})
}

// Size returns the log file size in bytes, or 0 if it does not exist.
func (w *Writer) Size(ctx context.Context) (int64, error) {
	return do(ctx, w, func() (int64, error) {
		info, err := os.Stat(w.path)
		if err == nil {
			return info.Size(), nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("logwriter: stat %s: %w", w.path, err)
	})
}

// Remove deletes the log file. It resolves true if a file was deleted and
// false if none existed.
func (w *Writer) Remove(ctx context.Context) (bool, error) {
	return do(ctx, w, func() (bool, error) {
		err := os.Remove(w.path)
		if err == nil {
			w.log.Debug("logwriter: removed log file", "path", w.path)
			return true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("logwriter: remove %s: %w", w.path, err)
	})
}

// Close stops accepting operations, finishes the ones already queued and
// waits for the worker to exit. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}

func (w *Writer) loop() {
	defer close(w.done)
	for job := range w.jobs {
		metrics.LogQueueDepth.Set(float64(len(w.jobs)))
		job()
	}
}

// enqueue hands job to the worker. Once enqueue returns nil the job will run
// even if the caller stops waiting for it.
func (w *Writer) enqueue(ctx context.Context, job func()) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the worker and waits for its result. A panic in fn becomes
// an error for this operation only.
func do[T any](ctx context.Context, w *Writer, fn func() (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	res := make(chan outcome, 1)
	job := func() {
		var o outcome
		defer func() {
			if p := recover(); p != nil {
				o = outcome{err: fmt.Errorf("%w: %v", ErrPanic, p)}
			}
			res <- o
		}()
		o.v, o.err = fn()
	}

	var zero T
	if err := w.enqueue(ctx, job); err != nil {
		return zero, err
	}
	select {
	case o := <-res:
		return o.v, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// appendLine runs on the worker only. A failed write is rolled back to the
// previous size so a partial line never remains in the file.
func (w *Writer) appendLine(line string) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logwriter: open %s: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("logwriter: stat %s: %w", w.path, err)
	}
	size := info.Size()

	if err := writeDurable(f, []byte(line)); err != nil {
		if terr := f.Truncate(size); terr != nil {
			w.log.Error("logwriter: rollback failed", "path", w.path, "err", terr)
		}
		f.Close()
		return fmt.Errorf("logwriter: write %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("logwriter: close %s: %w", w.path, err)
	}
	return nil
}
