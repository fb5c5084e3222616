// Package zeroconf advertises the devlog HTTP bridge over mDNS/DNS-SD so
// tooling on the LAN can find the device without knowing its address.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type devlogd registers under.
const ServiceType = "_devlog._tcp"

// Service manages mDNS service registration.
type Service struct {
	name string // instance name, e.g. "devlog"
	port int
	txt  []string
}

// New creates a zeroconf Service advertising port with the given TXT
// key/value pairs.
func New(name string, port int, info map[string]string) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  TXT(info),
	}
}

// TXT renders info as sorted key=value records.
func TXT(info map[string]string) []string {
	records := make([]string, 0, len(info))
	for k, v := range info {
		records = append(records, k+"="+v)
	}
	sort.Strings(records)
	return records
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(
		s.name,
		ServiceType,
		"local.",
		s.port,
		s.txt,
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"type", ServiceType,
		"port", s.port,
		"txt", s.txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
