// Package config loads a substrate instance's configuration from a YAML
// file, with environment variables overriding individual fields the way
// deployments commonly pin port/log level without editing the file.
//
// Grounded on the teacher's pkg/config/config.go (env-var Config/Load),
// widened to the node/backends/schemaRegistry shape spec.md §6 specifies
// and to a YAML document since that shape is nested, not flat env vars.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendType is the backends[].type vocabulary.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendHTTP   BackendType = "http"
	BackendSQL    BackendType = "sql"
	BackendDoc    BackendType = "doc"
	BackendBlob   BackendType = "blob"
	BackendCache  BackendType = "cache"
)

// BackendSpec is one entry of the ordered backends list used to build the
// composite client.
type BackendSpec struct {
	Type    BackendType       `yaml:"type"`
	URL     string            `yaml:"url,omitempty"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Config is the recognized option set of a substrate instance.
type Config struct {
	// Node is the base URL of a remote substrate, for the HTTP-peer backend.
	Node string `yaml:"node,omitempty"`
	// CORSOrigin is an exact origin, a list of origins, or "*".
	CORSOrigin any `yaml:"corsOrigin,omitempty"`
	// Port is the HTTP/WS frontend listening port.
	Port int `yaml:"port"`
	// Backends is the ordered list of backend specs composing the client.
	Backends []BackendSpec `yaml:"backends,omitempty"`
	// SchemaRegistry maps program key to validator identifier; cmd/substrate
	// reads each value as the path of a JSON Schema document.
	SchemaRegistry map[string]string `yaml:"schemaRegistry,omitempty"`
	// HeartbeatIntervalMs and ConfigPollIntervalMs govern managed-node
	// profiles (peer health checks, remote config refresh).
	HeartbeatIntervalMs  int  `yaml:"heartbeatIntervalMs,omitempty"`
	ConfigPollIntervalMs int  `yaml:"configPollIntervalMs,omitempty"`
	MetricsEnabled       bool `yaml:"metricsEnabled,omitempty"`

	LogLevel string `yaml:"logLevel,omitempty"`
}

// Defaults returns a Config with the baseline values an instance falls back
// to absent a config file.
func Defaults() *Config {
	return &Config{
		Port:                 8080,
		CORSOrigin:           "*",
		Backends:             []BackendSpec{{Type: BackendMemory}},
		HeartbeatIntervalMs:  30000,
		ConfigPollIntervalMs: 60000,
		MetricsEnabled:       true,
		LogLevel:             "info",
	}
}

// Load reads a YAML config file at path, falling back to Defaults() if path
// is empty, and applies environment variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUBSTRATE_PORT"); v != "" {
		if port, err := parsePort(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("SUBSTRATE_NODE"); v != "" {
		cfg.Node = v
	}
	if v := os.Getenv("SUBSTRATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SUBSTRATE_CORS_ORIGIN"); v != "" {
		if strings.Contains(v, ",") {
			parts := strings.Split(v, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			cfg.CORSOrigin = parts
		} else {
			cfg.CORSOrigin = v
		}
	}
	if v := os.Getenv("SUBSTRATE_METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "true"
	}
}

func parsePort(s string) (int, error) {
	var port int
	_, err := fmt.Sscanf(s, "%d", &port)
	return port, err
}
