// Package config loads qngin's YAML configuration file: the list of
// dequeuer-facing WebSocket endpoints to monitor, plus a small set of
// optional tunables seeded from an embedded default baseline.
//
// Grounded on backend/config/config.go's embed-default + yaml.Unmarshal
// shape, and on original_source/qngin/src/functions.c's conf_read for the
// exact schema ("websockets" key, possibly repeated) and the "#" -> "%23"
// escaping applied before dialing.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config.default.yaml
var defaultYAML []byte

// Endpoint is one configured dequeuer connection.
type Endpoint struct {
	RawURL  string // as written in the config file
	DialURL string // percent-encoded, safe to pass to the WS dialer
}

// Config is qngin's fully loaded configuration.
type Config struct {
	Endpoints    []Endpoint
	PollInterval int    `yaml:"poll_interval_ms"`
	LogLevel     string `yaml:"log_level"`
}

// file is the on-disk shape. "websockets" may appear as a single scalar or
// a sequence; both are accepted since the source's conf_read treats every
// occurrence of the key as another endpoint to add.
type file struct {
	WebSockets yaml.Node `yaml:"websockets"`
	PollInterval int    `yaml:"poll_interval_ms"`
	LogLevel     string `yaml:"log_level"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	var defaults file
	if err := yaml.Unmarshal(defaultYAML, &defaults); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{
		PollInterval: defaults.PollInterval,
		LogLevel:     defaults.LogLevel,
	}
	if f.PollInterval != 0 {
		cfg.PollInterval = f.PollInterval
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	urls, err := decodeWebsockets(f.WebSockets)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: websockets: %w", path, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("parse config %s: no websockets entries", path)
	}
	for _, u := range urls {
		cfg.Endpoints = append(cfg.Endpoints, Endpoint{
			RawURL:  u,
			DialURL: EscapeHash(u),
		})
	}
	return cfg, nil
}

// decodeWebsockets accepts either a bare scalar string or a sequence of
// strings for the "websockets" key, matching the source's tolerance for one
// or many endpoint entries.
func decodeWebsockets(n yaml.Node) ([]string, error) {
	if n.IsZero() {
		return nil, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %v", n.Kind)
	}
}

// EscapeHash percent-encodes "#" to "%23", matching conf_read's treatment of
// the raw configured URL before it is handed to the WebSocket dialer.
func EscapeHash(u string) string {
	return strings.ReplaceAll(u, "#", "%23")
}
