// Package identity describes the device devlogd runs on, for mDNS
// advertisement and relay message headers.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.1.0"

// Info holds device identity information.
type Info struct {
	Hostname string
	Platform string // upper-case OS name, e.g. "LINUX"
	Version  string
}

// Get collects identity information. Version is read from metadata.json in
// configDir.
func Get(configDir string) Info {
	return Info{
		Hostname: GetHostname(),
		Platform: strings.ToUpper(runtime.GOOS),
		Version:  GetVersionFromDir(configDir),
	}
}

// Label is the short device label used in relay messages, e.g.
// "LINUX, bench-03".
func (i Info) Label() string {
	if i.Hostname == "" {
		return i.Platform
	}
	return i.Platform + ", " + i.Hostname
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "devlog"
	}
	return h
}

// GetVersionFromDir reads the version from dir/metadata.json.
// Falls back to DefaultVersion if the file is missing or unreadable.
func GetVersionFromDir(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return DefaultVersion
	}

	if v, ok := meta["version"].(string); ok && v != "" {
		return v
	}
	return DefaultVersion
}
