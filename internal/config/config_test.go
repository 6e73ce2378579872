package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSingleWebsocket(t *testing.T) {
	path := writeConfig(t, `websockets: "ws://host:9000/ws"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].RawURL != "ws://host:9000/ws" {
		t.Errorf("unexpected endpoints: %+v", cfg.Endpoints)
	}
}

func TestLoadMultipleWebsockets(t *testing.T) {
	path := writeConfig(t, `
websockets:
  - "ws://host-a:9000/ws"
  - "ws://host-b:9000/ws"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(cfg.Endpoints))
	}
}

func TestLoadEscapesHashInDialURL(t *testing.T) {
	path := writeConfig(t, `websockets: "ws://host:9000/ws#channel"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Endpoints[0].DialURL != "ws://host:9000/ws%23channel" {
		t.Errorf("expected # escaped, got %q", cfg.Endpoints[0].DialURL)
	}
	if cfg.Endpoints[0].RawURL != "ws://host:9000/ws#channel" {
		t.Errorf("expected raw url preserved, got %q", cfg.Endpoints[0].RawURL)
	}
}

func TestLoadNoWebsocketsIsAnError(t *testing.T) {
	path := writeConfig(t, `log_level: debug`)
	if _, err := Load(path); err == nil {
		t.Errorf("expected an error when no websockets entries are configured")
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing config file")
	}
}

func TestLoadUsesEmbeddedDefaultsWhenTunablesOmitted(t *testing.T) {
	path := writeConfig(t, `websockets: "ws://host:9000/ws"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval == 0 || cfg.LogLevel == "" {
		t.Errorf("expected default tunables to be seeded, got %+v", cfg)
	}
}

func TestLoadOverridesDefaultTunables(t *testing.T) {
	path := writeConfig(t, `
websockets: "ws://host:9000/ws"
poll_interval_ms: 1000
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 1000 || cfg.LogLevel != "debug" {
		t.Errorf("expected overridden tunables, got %+v", cfg)
	}
}

func TestEscapeHash(t *testing.T) {
	if got := EscapeHash("ws://h/#a#b"); got != "ws://h/%23a%23b" {
		t.Errorf("unexpected escape: %q", got)
	}
}
