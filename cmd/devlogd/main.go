// Command devlogd is the on-device diagnostic log daemon. It appends lines to
// a log file, relays the file to collection endpoints and turns a shake of
// the device into a trigger event for attached tooling.
// Run with --mock to use a simulated motion source.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/micro-nova/devlog-go/internal/api"
	"github.com/micro-nova/devlog-go/internal/auth"
	"github.com/micro-nova/devlog-go/internal/config"
	"github.com/micro-nova/devlog-go/internal/controller"
	"github.com/micro-nova/devlog-go/internal/events"
	"github.com/micro-nova/devlog-go/internal/hardware"
	"github.com/micro-nova/devlog-go/internal/identity"
	"github.com/micro-nova/devlog-go/internal/lifecycle"
	"github.com/micro-nova/devlog-go/internal/logwriter"
	"github.com/micro-nova/devlog-go/internal/maintenance"
	"github.com/micro-nova/devlog-go/internal/trigger"
	"github.com/micro-nova/devlog-go/internal/upload"
	"github.com/micro-nova/devlog-go/internal/zeroconf"
)

func main() {
	var (
		cfgPath = flag.String("config", "/etc/devlog/devlog.yaml", "YAML config file (missing file means defaults)")
		cfgDir  = flag.String("config-dir", "", "directory holding keys.json (default: directory of --config)")
		mock    = flag.Bool("mock", false, "use the mock motion source (no sensor required)")
		addr    = flag.String("addr", "", "HTTP listen address (overrides listen_addr)")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(console))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("invalid configuration", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *mock {
		cfg.Trigger.Source = config.SourceMock
	}
	if *cfgDir == "" {
		*cfgDir = filepath.Dir(*cfgPath)
	}
	loc, _ := cfg.Location()
	level, _ := cfg.Level()
	ident := identity.Get(*cfgDir)

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Log writer. Its own failures go to the console only.
	writer, err := logwriter.New(cfg.LogPath(), logwriter.WithLogger(slog.New(console)))
	if err != nil {
		slog.Error("log writer initialization failed", "err", err)
		os.Exit(1)
	}
	if cfg.CaptureLogs {
		slog.SetDefault(slog.New(teeHandler{console, logwriter.NewHandler(writer, level, loc)}))
		slog.Info("capturing process logs", "path", writer.Path(), "level", level)
	}

	// Motion source and trigger
	src := newSource(cfg)
	bus := events.NewBus()
	detector := trigger.New(src, bus)

	// Upload relays
	relay := upload.NewRelay(writer,
		upload.WithTimeout(cfg.Upload.Timeout),
		upload.WithFieldName(cfg.Upload.FieldName),
	)
	opts := controller.Options{Location: loc, Level: level}
	slackCfg := upload.SlackConfig{
		Token:     cfg.Upload.Slack.Token,
		FileToken: cfg.Upload.Slack.FileToken,
		Channel:   cfg.Upload.Slack.Channel,
		Label:     ident.Label(),
	}
	if slackCfg.Configured() {
		opts.Slack = upload.NewSlackRelay(writer, &http.Client{Timeout: cfg.Upload.Timeout}, slackCfg)
	}

	// Controller
	ctrl := controller.New(writer, detector, relay, bus, opts)

	// Lifecycle scope
	scope, closeScope, err := newScope(cfg)
	if err != nil {
		slog.Warn("lifecycle scope unavailable, trigger disabled", "scope", cfg.Lifecycle.Scope, "err", err)
	} else {
		if err := ctrl.BindScope(scope); err != nil {
			slog.Warn("lifecycle scope bind failed", "scope", scope.Name(), "err", err)
		}
	}

	// Auth service
	authSvc, err := auth.NewService(*cfgDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	// Zeroconf mDNS registration
	if cfg.Zeroconf.Enabled {
		authMode := "key"
		if authSvc.IsOpenMode() {
			authMode = "open"
		}
		zc := zeroconf.New(cfg.Zeroconf.Name, listenPort(cfg.ListenAddr), map[string]string{
			"version": ident.Version,
			"api":     "/api",
			"source":  src.Name(),
			"auth":    authMode,
		})
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	// Log size sampler
	maint := maintenance.New(writer, cfg.Maintenance.Interval, cfg.Maintenance.WarnBytes, nil)
	go maint.Start(ctx)

	// HTTP server
	router := api.NewRouter(ctrl, authSvc, bus, api.Options{UploadRateLimit: cfg.API.UploadRateLimit})
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("devlogd listening", "version", ident.Version, "addr", cfg.ListenAddr, "log", writer.Path(), "source", src.Name(), "scope", cfg.Lifecycle.Scope)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	// Unbind before the scope's connection goes away, then drain the log.
	if err := ctrl.Close(); err != nil {
		slog.Warn("controller close error", "err", err)
	}
	if closeScope != nil {
		closeScope()
	}

	slog.Info("shutdown complete")
}

func newSource(cfg config.Config) hardware.Source {
	tuning := hardware.Tuning{Debounce: cfg.Trigger.Debounce, ThresholdG: cfg.Trigger.ThresholdG}
	switch cfg.Trigger.Source {
	case config.SourceGPIO:
		slog.Info("using GPIO vibration switch", "pin", cfg.Trigger.GPIO.Pin)
		return hardware.NewGPIO(cfg.Trigger.GPIO.Pin, tuning)
	case config.SourceSerial:
		slog.Info("using serial accelerometer", "device", cfg.Trigger.Serial.Device, "baud", cfg.Trigger.Serial.Baud)
		return hardware.NewSerial(cfg.Trigger.Serial.Device, cfg.Trigger.Serial.Baud, tuning)
	default:
		slog.Info("using mock motion source")
		return hardware.NewMock()
	}
}

// newScope returns the configured lifecycle scope and a function releasing it.
func newScope(cfg config.Config) (lifecycle.Scope, func(), error) {
	if cfg.Lifecycle.Scope == config.ScopeLogind {
		l, err := lifecycle.NewLogind(cfg.Lifecycle.Session)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {
			if err := l.Close(); err != nil {
				slog.Warn("logind connection close error", "err", err)
			}
		}, nil
	}
	// A daemon has no window; the manual scope starts in the foreground.
	return lifecycle.NewManual(true), func() {}, nil
}

// listenPort extracts the port from a listen address, defaulting to 80.
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 80
	}
	return port
}
