// Package upload relays the diagnostic log to a remote collector.
//
// Every request resolves to exactly one models.UploadResult. Validation and
// file checks happen before any network I/O; the POST is a single attempt
// with a bounded wait and no retry.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/micro-nova/devlog-go/internal/metrics"
	"github.com/micro-nova/devlog-go/internal/models"
)

const (
	// DefaultTimeout bounds one upload from dial to response headers and body.
	DefaultTimeout = 20 * time.Second
	// DefaultFieldName is the multipart field that carries the log file.
	DefaultFieldName = "file"

	maxDrain = 64 * 1024
)

// LogFile is the part of the log writer the relay depends on. Exists must be
// ordered with concurrent appends and removals.
type LogFile interface {
	Exists(ctx context.Context) (bool, error)
	Path() string
}

// Relay uploads the log file as a multipart attachment to an HTTP endpoint.
type Relay struct {
	log    LogFile
	client *http.Client
	field  string
}

// Option configures a Relay.
type Option func(*Relay)

// WithClient replaces the HTTP client. Its Timeout is the upload deadline.
func WithClient(c *http.Client) Option {
	return func(r *Relay) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout sets the upload deadline on the relay's client.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// WithFieldName sets the multipart field name of the attachment.
func WithFieldName(name string) Option {
	return func(r *Relay) {
		if name != "" {
			r.field = name
		}
	}
}

// NewRelay creates a relay for log.
func NewRelay(log LogFile, opts ...Option) *Relay {
	r := &Relay{
		log:    log,
		client: &http.Client{Timeout: DefaultTimeout},
		field:  DefaultFieldName,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upload POSTs the log file to endpoint once and reports the outcome.
func (r *Relay) Upload(ctx context.Context, endpoint string) models.UploadResult {
	res := r.upload(ctx, endpoint)
	outcome := string(res.Error)
	if res.OK() {
		outcome = string(models.UploadSuccess)
	}
	metrics.IncUpload("http", outcome)
	return res
}

// UploadAsync runs Upload on its own goroutine. The returned channel yields
// exactly one result and is then closed.
func (r *Relay) UploadAsync(ctx context.Context, endpoint string) <-chan models.UploadResult {
	out := make(chan models.UploadResult, 1)
	go func() {
		defer close(out)
		out <- r.Upload(ctx, endpoint)
	}()
	return out
}

func (r *Relay) upload(ctx context.Context, endpoint string) models.UploadResult {
	u, ok := parseEndpoint(endpoint)
	if !ok {
		return models.UploadFailed(models.ErrMalformedEndpoint, "")
	}

	f, res, ok := openLog(ctx, r.log)
	if !ok {
		return res
	}
	defer f.Close()

	start := time.Now()
	resp, err := postFile(ctx, r.client, fileForm{url: u.String(), field: r.field, file: f})
	metrics.UploadDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("upload: transport failure", "endpoint", u.Redacted(), "err", err)
		return models.UploadFailed(models.ErrTransportFailure, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("upload: rejected by server", "endpoint", u.Redacted(), "status", resp.Status)
		return models.UploadFailed(models.ErrServerRejected, resp.Status)
	}
	slog.Info("upload: log delivered", "endpoint", u.Redacted(), "status", resp.StatusCode)
	return models.UploadOK(resp.StatusCode)
}

// parseEndpoint accepts absolute http(s) URLs with a host.
func parseEndpoint(endpoint string) (*url.URL, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// openLog checks presence on the writer's queue, then opens the file for
// reading off-queue. A removal that lands in between reads as file-missing.
func openLog(ctx context.Context, log LogFile) (*os.File, models.UploadResult, bool) {
	exists, err := log.Exists(ctx)
	if err != nil {
		return nil, models.UploadFailed(models.ErrFileMissing, err.Error()), false
	}
	if !exists {
		return nil, models.UploadFailed(models.ErrFileMissing, ""), false
	}
	f, err := os.Open(log.Path())
	if err != nil {
		detail := err.Error()
		if errors.Is(err, os.ErrNotExist) {
			detail = ""
		}
		return nil, models.UploadFailed(models.ErrFileMissing, detail), false
	}
	return f, models.UploadResult{}, true
}
