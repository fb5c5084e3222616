// Package config loads the devlogd YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // timezone names resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/micro-nova/devlog-go/internal/logwriter"
)

// Trigger sources.
const (
	SourceMock   = "mock"
	SourceGPIO   = "gpio"
	SourceSerial = "serial"
)

// Lifecycle scopes.
const (
	ScopeManual = "manual"
	ScopeLogind = "logind"
)

// SlackConfig holds the optional Slack relay credentials.
type SlackConfig struct {
	Token     string `yaml:"token"`
	FileToken string `yaml:"file_token"` // user token for files.sharedPublicURL
	Channel   string `yaml:"channel"`
}

// UploadConfig tunes the multipart relay.
type UploadConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	FieldName string        `yaml:"field_name"`
	Slack     SlackConfig   `yaml:"slack"`
}

// GPIOConfig selects the input pin of a vibration switch.
type GPIOConfig struct {
	Pin string `yaml:"pin"` // periph pin name, e.g. "GPIO17"
}

// SerialConfig points at an accelerometer streaming "x,y,z" lines in g.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// TriggerConfig selects and tunes the motion source.
type TriggerConfig struct {
	Source     string        `yaml:"source"`
	Debounce   time.Duration `yaml:"debounce"`
	ThresholdG float64       `yaml:"threshold_g"`
	GPIO       GPIOConfig    `yaml:"gpio"`
	Serial     SerialConfig  `yaml:"serial"`
}

// LifecycleConfig selects what foreground means for the trigger.
type LifecycleConfig struct {
	Scope   string `yaml:"scope"`
	Session string `yaml:"session"` // logind session id; empty means the caller's session
}

// ZeroconfConfig controls mDNS advertisement.
type ZeroconfConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// MaintenanceConfig tunes the background size sampler.
type MaintenanceConfig struct {
	Interval time.Duration `yaml:"interval"`
	// WarnBytes logs a warning once the file grows past it. Zero disables it.
	WarnBytes int64 `yaml:"warn_bytes"`
}

// APIConfig tunes the HTTP bridge.
type APIConfig struct {
	// UploadRateLimit is the number of upload requests allowed per client IP
	// per minute. Zero disables limiting.
	UploadRateLimit int `yaml:"upload_rate_limit"`
}

// Config aggregates all devlogd configuration.
type Config struct {
	ListenAddr  string            `yaml:"listen_addr"`
	LogDir      string            `yaml:"log_dir"`
	LogFileName string            `yaml:"log_file_name"`
	Timezone    string            `yaml:"timezone"`
	LogLevel    string            `yaml:"log_level"`
	CaptureLogs bool              `yaml:"capture_logs"`
	Upload      UploadConfig      `yaml:"upload"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Zeroconf    ZeroconfConfig    `yaml:"zeroconf"`
	API         APIConfig         `yaml:"api"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		LogDir:      "/var/lib/devlog",
		LogFileName: "log.txt",
		Timezone:    "Europe/Moscow",
		LogLevel:    "LOG",
		CaptureLogs: true,
		Upload: UploadConfig{
			Timeout:   20 * time.Second,
			FieldName: "file",
		},
		Trigger: TriggerConfig{
			Source:     SourceMock,
			Debounce:   500 * time.Millisecond,
			ThresholdG: 2.7,
			Serial:     SerialConfig{Baud: 115200},
		},
		Lifecycle: LifecycleConfig{Scope: ScopeManual},
		Zeroconf:  ZeroconfConfig{Enabled: true, Name: "devlog"},
		API:       APIConfig{UploadRateLimit: 10},
		Maintenance: MaintenanceConfig{
			Interval:  30 * time.Second,
			WarnBytes: 50 << 20,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults. Unknown fields are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	if c.LogFileName == "" || filepath.Base(c.LogFileName) != c.LogFileName {
		errs = append(errs, fmt.Errorf("log_file_name must be a plain file name, got %q", c.LogFileName))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := logwriter.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upload.timeout must be > 0, got %s", c.Upload.Timeout))
	}
	if c.Upload.FieldName == "" {
		errs = append(errs, errors.New("upload.field_name is required"))
	}

	switch c.Trigger.Source {
	case SourceMock:
	case SourceGPIO:
		if c.Trigger.GPIO.Pin == "" {
			errs = append(errs, errors.New("trigger.gpio.pin is required for the gpio source"))
		}
	case SourceSerial:
		if c.Trigger.Serial.Device == "" {
			errs = append(errs, errors.New("trigger.serial.device is required for the serial source"))
		}
		if c.Trigger.Serial.Baud <= 0 {
			errs = append(errs, fmt.Errorf("trigger.serial.baud must be > 0, got %d", c.Trigger.Serial.Baud))
		}
	default:
		errs = append(errs, fmt.Errorf("trigger.source must be mock, gpio or serial, got %q", c.Trigger.Source))
	}
	if c.Trigger.Debounce < 0 {
		errs = append(errs, fmt.Errorf("trigger.debounce must be >= 0, got %s", c.Trigger.Debounce))
	}
	if c.Trigger.ThresholdG <= 0 {
		errs = append(errs, fmt.Errorf("trigger.threshold_g must be > 0, got %g", c.Trigger.ThresholdG))
	}

	if c.Lifecycle.Scope != ScopeManual && c.Lifecycle.Scope != ScopeLogind {
		errs = append(errs, fmt.Errorf("lifecycle.scope must be manual or logind, got %q", c.Lifecycle.Scope))
	}
	if c.API.UploadRateLimit < 0 {
		errs = append(errs, fmt.Errorf("api.upload_rate_limit must be >= 0, got %d", c.API.UploadRateLimit))
	}
	if c.Maintenance.Interval <= 0 {
		errs = append(errs, fmt.Errorf("maintenance.interval must be > 0, got %s", c.Maintenance.Interval))
	}
	if c.Maintenance.WarnBytes < 0 {
		errs = append(errs, fmt.Errorf("maintenance.warn_bytes must be >= 0, got %d", c.Maintenance.WarnBytes))
	}
	return errors.Join(errs...)
}

// LogPath joins LogDir and LogFileName.
func (c Config) LogPath() string {
	return filepath.Join(c.LogDir, c.LogFileName)
}

// Location resolves Timezone. Validate has already rejected bad names.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Level resolves LogLevel.
func (c Config) Level() (logwriter.Level, error) {
	return logwriter.ParseLevel(c.LogLevel)
}
