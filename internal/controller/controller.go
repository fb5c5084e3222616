// Package controller is the facade the HTTP bridge talks to. It owns the
// lifecycle binding and translates external requests into calls on the log
// writer, the trigger detector and the upload relays.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-nova/devlog-go/internal/events"
	"github.com/micro-nova/devlog-go/internal/lifecycle"
	"github.com/micro-nova/devlog-go/internal/logwriter"
	"github.com/micro-nova/devlog-go/internal/models"
	"github.com/micro-nova/devlog-go/internal/trigger"
	"github.com/micro-nova/devlog-go/internal/upload"
)

// ErrNotManualScope is returned by SetForeground when the bound scope is not
// driven manually.
var ErrNotManualScope = errors.New("controller: bound lifecycle scope is not manual")

// Options tunes the leveled logging API and optional relays.
type Options struct {
	// Location renders line timestamps. Nil means UTC.
	Location *time.Location
	// Level is the most verbose level Log accepts.
	Level logwriter.Level
	// Slack is optional; without it UploadSlack reports unavailable.
	Slack *upload.SlackRelay
}

// Controller wires the diagnostic log components together.
// All exported methods are safe for concurrent use.
type Controller struct {
	log      *logwriter.Writer
	detector *trigger.Detector
	relay    *upload.Relay
	slack    *upload.SlackRelay
	bus      *events.Bus

	loc   *time.Location
	level logwriter.Level
	now   func() time.Time

	mu        sync.Mutex // guards scope and stopScope
	scope     lifecycle.Scope
	stopScope func()
}

// New creates a Controller. No lifecycle scope is bound yet, so trigger
// enablement reports unavailable until BindScope is called.
func New(log *logwriter.Writer, detector *trigger.Detector, relay *upload.Relay, bus *events.Bus, opts Options) *Controller {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Controller{
		log:      log,
		detector: detector,
		relay:    relay,
		slack:    opts.Slack,
		bus:      bus,
		loc:      loc,
		level:    opts.Level,
		now:      time.Now,
	}
}

// WriteLog appends message as one line. An empty message resolves false.
func (c *Controller) WriteLog(ctx context.Context, message string) (bool, error) {
	return c.log.Append(ctx, message)
}

// Log formats a leveled line with a timestamp and appends it. Lines above
// the configured level resolve false without touching storage.
func (c *Controller) Log(ctx context.Context, level logwriter.Level, message string, args ...any) (bool, error) {
	if !c.level.Enabled(level) {
		return false, nil
	}
	return c.log.Append(ctx, logwriter.FormatLine(c.now().In(c.loc), level, message, args...))
}

// FileExists reports whether the log file is present.
func (c *Controller) FileExists(ctx context.Context) (bool, error) {
	return c.log.Exists(ctx)
}

// DeleteLogFile removes the log file, reporting whether one existed.
func (c *Controller) DeleteLogFile(ctx context.Context) (bool, error) {
	return c.log.Remove(ctx)
}

// LogPath returns the log file location.
func (c *Controller) LogPath() string { return c.log.Path() }

// SetTriggerEnabled switches the shake trigger. With deleteExistingLog the
// log is removed first; a failed removal is reported as EnableDeleteFailed
// but does not stop the switch. Without a bound scope nothing happens and the
// outcome is EnableUnavailable.
func (c *Controller) SetTriggerEnabled(ctx context.Context, enabled, deleteExistingLog bool) (models.EnableOutcome, error) {
	c.mu.Lock()
	scope := c.scope
	c.mu.Unlock()
	if scope == nil {
		return models.EnableUnavailable, nil
	}

	outcome := models.EnableSuccess
	if deleteExistingLog {
		if _, err := c.log.Remove(ctx); err != nil {
			slog.Warn("controller: could not delete existing log", "path", c.log.Path(), "err", err)
			outcome = models.EnableDeleteFailed
		}
	}

	// The detector tracks the foreground itself, fed by the scope observer.
	var err error
	if enabled {
		err = c.detector.Enable()
	} else {
		err = c.detector.Disable()
	}
	return outcome, err
}

// TriggerStatus reports the detector state and scope binding.
func (c *Controller) TriggerStatus() models.TriggerStatus {
	c.mu.Lock()
	scope := c.scope
	c.mu.Unlock()
	st := models.TriggerStatus{
		State:  c.detector.State().String(),
		Source: c.detector.SourceName(),
	}
	if scope != nil {
		st.ScopeBound = true
		st.ScopeActive = scope.Active()
	}
	return st
}

// BindScope attaches the trigger feature to scope, replacing any previous
// scope. The scope reports its current state through Observe, so the
// detector starts from it. An error applying that state still leaves the
// scope bound.
func (c *Controller) BindScope(scope lifecycle.Scope) error {
	c.UnbindScope()

	stop, err := scope.Observe(c)
	if stop == nil {
		return err
	}
	c.mu.Lock()
	c.scope, c.stopScope = scope, stop
	c.mu.Unlock()
	slog.Info("controller: lifecycle scope bound", "scope", scope.Name(), "active", scope.Active())
	return err
}

// UnbindScope detaches the current scope. Listening stops because there is
// no foreground left to listen in.
func (c *Controller) UnbindScope() {
	c.mu.Lock()
	scope, stop := c.scope, c.stopScope
	c.scope, c.stopScope = nil, nil
	c.mu.Unlock()
	if scope == nil {
		return
	}
	// stop may wait for an in-flight observer callback; c.mu is not held.
	stop()
	if err := c.detector.OnBackground(); err != nil {
		slog.Warn("controller: unsubscribe on unbind failed", "err", err)
	}
	slog.Info("controller: lifecycle scope unbound", "scope", scope.Name())
}

// SetForeground drives a manual scope.
func (c *Controller) SetForeground(active bool) error {
	c.mu.Lock()
	scope := c.scope
	c.mu.Unlock()
	m, ok := scope.(*lifecycle.Manual)
	if !ok {
		return ErrNotManualScope
	}
	return m.SetActive(active)
}

// OnForeground implements lifecycle.Observer.
func (c *Controller) OnForeground() error { return c.detector.OnForeground() }

// OnBackground implements lifecycle.Observer.
func (c *Controller) OnBackground() error { return c.detector.OnBackground() }

// Upload relays the log to endpoint. The upload runs to completion even if
// ctx is cancelled; the caller may simply stop waiting.
func (c *Controller) Upload(ctx context.Context, endpoint string) models.UploadResult {
	return c.relay.Upload(context.WithoutCancel(ctx), endpoint)
}

// UploadAsync is Upload on its own goroutine; the channel yields one result.
func (c *Controller) UploadAsync(ctx context.Context, endpoint string) <-chan models.UploadResult {
	return c.relay.UploadAsync(context.WithoutCancel(ctx), endpoint)
}

// UploadSlack relays the log to the configured Slack channel.
func (c *Controller) UploadSlack(ctx context.Context) (models.UploadResult, *models.AppError) {
	if c.slack == nil {
		return models.UploadResult{}, models.ErrUnavailable("slack relay is not configured")
	}
	return c.slack.Upload(context.WithoutCancel(ctx)), nil
}

// Subscribe registers for trigger events.
func (c *Controller) Subscribe(id string) <-chan models.TriggerEvent { return c.bus.Subscribe(id) }

// Unsubscribe cancels a trigger event subscription.
func (c *Controller) Unsubscribe(id string) { c.bus.Unsubscribe(id) }

// Close releases the hardware subscription and drains the log writer.
func (c *Controller) Close() error {
	c.UnbindScope()
	if err := c.detector.Disable(); err != nil {
		slog.Warn("controller: disable on close failed", "err", err)
	}
	return c.log.Close()
}

var _ lifecycle.Observer = (*Controller)(nil)
