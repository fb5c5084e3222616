package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
)

const (
	logindDest        = "org.freedesktop.login1"
	logindPath        = "/org/freedesktop/login1"
	logindManager     = "org.freedesktop.login1.Manager"
	logindSession     = "org.freedesktop.login1.Session"
	propertiesIface   = "org.freedesktop.DBus.Properties"
	propertiesChanged = "PropertiesChanged"
)

// Logind is a Scope backed by a systemd-logind session: the session is in the
// foreground while its Active property is true (unlocked, on the active seat
// VT).
type Logind struct {
	conn   *dbus.Conn
	path   dbus.ObjectPath
	active atomic.Bool
}

// NewLogind connects to the system bus and resolves sessionID. An empty
// sessionID means the caller's own session ("auto").
func NewLogind(sessionID string) (*Logind, error) {
	if sessionID == "" {
		sessionID = "auto"
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: connect system bus: %w", err)
	}

	var path dbus.ObjectPath
	mgr := conn.Object(logindDest, logindPath)
	if err := mgr.Call(logindManager+".GetSession", 0, sessionID).Store(&path); err != nil {
		conn.Close()
		return nil, fmt.Errorf("lifecycle: resolve session %q: %w", sessionID, err)
	}

	l := &Logind{conn: conn, path: path}
	v, err := conn.Object(logindDest, path).GetProperty(logindSession + ".Active")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("lifecycle: read %s Active: %w", path, err)
	}
	active, _ := v.Value().(bool)
	l.active.Store(active)
	slog.Info("lifecycle: bound to logind session", "session", sessionID, "path", path, "active", active)
	return l, nil
}

func (l *Logind) Name() string { return "logind" }

func (l *Logind) Active() bool { return l.active.Load() }

func (l *Logind) Observe(obs Observer) (func(), error) {
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(l.path),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember(propertiesChanged),
	}
	if err := l.conn.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("lifecycle: add match: %w", err)
	}
	ch := make(chan *dbus.Signal, 16)
	l.conn.Signal(ch)

	// Re-read after subscribing so no transition falls between the two.
	if v, err := l.conn.Object(logindDest, l.path).GetProperty(logindSession + ".Active"); err == nil {
		if active, ok := v.Value().(bool); ok {
			l.active.Store(active)
		}
	}
	seedErr := report(obs, l.active.Load())

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var sig *dbus.Signal
			select {
			case <-quit:
				return
			case sig = <-ch:
			}
			if sig == nil || sig.Path != l.path {
				continue
			}
			active, ok := sessionActiveChange(sig)
			if !ok || l.active.Swap(active) == active {
				continue
			}
			if err := report(obs, active); err != nil {
				slog.Warn("lifecycle: observer failed", "active", active, "err", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.conn.RemoveSignal(ch)
			_ = l.conn.RemoveMatchSignal(match...)
			close(quit)
			<-done
		})
	}, seedErr
}

// Close releases the bus connection.
func (l *Logind) Close() error { return l.conn.Close() }

// sessionActiveChange extracts the new Active value from a logind
// PropertiesChanged signal.
func sessionActiveChange(sig *dbus.Signal) (active, ok bool) {
	if sig.Name != propertiesIface+"."+propertiesChanged || len(sig.Body) < 2 {
		return false, false
	}
	if iface, _ := sig.Body[0].(string); iface != logindSession {
		return false, false
	}
	changed, isMap := sig.Body[1].(map[string]dbus.Variant)
	if !isMap {
		return false, false
	}
	v, present := changed["Active"]
	if !present {
		return false, false
	}
	active, ok = v.Value().(bool)
	return active, ok
}

var _ Scope = (*Logind)(nil)
