package identity_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/micro-nova/devlog-go/internal/identity"
)

func TestGetVersion_Fallback(t *testing.T) {
	dir := t.TempDir()
	got := identity.GetVersionFromDir(dir)
	if got != identity.DefaultVersion {
		t.Errorf("GetVersionFromDir(%q) = %q; want %q", dir, got, identity.DefaultVersion)
	}
}

func TestGetVersion_FromFile(t *testing.T) {
	dir := t.TempDir()
	want := "1.4.2"
	data, _ := json.Marshal(map[string]interface{}{"version": want})
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	got := identity.GetVersionFromDir(dir)
	if got != want {
		t.Errorf("GetVersionFromDir(%q) = %q; want %q", dir, got, want)
	}
}

func TestGetVersion_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	got := identity.GetVersionFromDir(dir)
	if got != identity.DefaultVersion {
		t.Errorf("GetVersionFromDir with invalid JSON = %q; want %q", got, identity.DefaultVersion)
	}
}

func TestGet(t *testing.T) {
	info := identity.Get(t.TempDir())
	if info.Platform != strings.ToUpper(runtime.GOOS) {
		t.Errorf("Platform = %q", info.Platform)
	}
	if info.Hostname == "" {
		t.Error("Hostname is empty")
	}
	if !strings.HasPrefix(info.Label(), info.Platform+", ") {
		t.Errorf("Label = %q", info.Label())
	}
}

func TestLabelWithoutHostname(t *testing.T) {
	info := identity.Info{Platform: "LINUX"}
	if got := info.Label(); got != "LINUX" {
		t.Errorf("Label = %q, want LINUX", got)
	}
}
