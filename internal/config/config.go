// Package config provides configuration management for the agent console API
// server. It handles loading and parsing the YAML configuration file and
// provides structured access to application settings including server port,
// transcript location, upstream service endpoints, and object store
// credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from a YAML file.
type Config struct {
	// Port is the TCP port the API server listens on.
	Port int `yaml:"port" json:"port"`

	// TranscriptPath locates the append-only JSON-lines transcript log.
	TranscriptPath string `yaml:"transcript-path" json:"transcript-path"`

	// Orchestrator configures the external chat orchestrator.
	Orchestrator OrchestratorConfig `yaml:"orchestrator" json:"orchestrator"`

	// Tunnel configures the external ingestion/data-tunnel service.
	Tunnel TunnelConfig `yaml:"tunnel" json:"tunnel"`

	// ObjectStore configures presigned document URLs. Optional; the
	// documents URL endpoint is disabled when unset.
	ObjectStore ObjectStoreConfig `yaml:"object-store,omitempty" json:"object-store,omitempty"`

	// Snapshot tunes the observability snapshot endpoint.
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// Logging controls log output.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// OrchestratorConfig holds chat orchestrator settings.
type OrchestratorConfig struct {
	// BaseURL is the orchestrator's root endpoint.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// TimeoutSeconds bounds one chat fetch. Default 120.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`
}

// Timeout returns the chat fetch deadline as a duration.
func (c OrchestratorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TunnelConfig holds data-tunnel settings.
type TunnelConfig struct {
	// BaseURL is the tunnel's root endpoint.
	BaseURL string `yaml:"base-url" json:"base-url"`
}

// ObjectStoreConfig holds object store credentials for presigned URLs.
type ObjectStoreConfig struct {
	Endpoint      string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKey     string `yaml:"access-key,omitempty" json:"access-key,omitempty"`
	SecretKey     string `yaml:"secret-key,omitempty" json:"secret-key,omitempty"`
	Bucket        string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	UseSSL        bool   `yaml:"use-ssl,omitempty" json:"use-ssl,omitempty"`
	ExpiryMinutes int    `yaml:"expiry-minutes,omitempty" json:"expiry-minutes,omitempty"`
}

// Enabled reports whether presigned URLs can be issued.
func (c ObjectStoreConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// SnapshotConfig tunes snapshot building.
type SnapshotConfig struct {
	// CacheTTLSeconds keeps identical snapshot queries cached briefly so
	// dashboard polling does not rescan the transcript on every tick.
	// <= 0 disables the cache.
	CacheTTLSeconds int `yaml:"cache-ttl-seconds,omitempty" json:"cache-ttl-seconds,omitempty"`
}

// CacheTTL returns the snapshot cache TTL.
func (c SnapshotConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	ToFile bool   `yaml:"to-file,omitempty" json:"to-file,omitempty"`
	Dir    string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// Load reads and parses the configuration file, applying defaults for absent
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8280
	}
	if c.TranscriptPath == "" {
		c.TranscriptPath = filepath.Join("data", "transcripts.jsonl")
	}
	if c.Orchestrator.TimeoutSeconds <= 0 {
		c.Orchestrator.TimeoutSeconds = 120
	}
	if c.Snapshot.CacheTTLSeconds == 0 {
		c.Snapshot.CacheTTLSeconds = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Watch reloads the config file on change and invokes onChange with the new
// value. It returns a stop function. Parse failures keep the previous config.
func Watch(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.WithError(err).Warn("config reload failed; keeping previous config")
					continue
				}
				log.Info("config reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
