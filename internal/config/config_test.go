package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "orchestrator:\n  base-url: http://localhost:9000\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8280 {
		t.Fatalf("port = %d, want 8280", cfg.Port)
	}
	if cfg.TranscriptPath != filepath.Join("data", "transcripts.jsonl") {
		t.Fatalf("transcript path = %s", cfg.TranscriptPath)
	}
	if cfg.Orchestrator.Timeout() != 120*time.Second {
		t.Fatalf("orchestrator timeout = %v", cfg.Orchestrator.Timeout())
	}
	if cfg.Snapshot.CacheTTL() != 5*time.Second {
		t.Fatalf("cache ttl = %v", cfg.Snapshot.CacheTTL())
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("log level = %s", cfg.Logging.Level)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
port: 9090
transcript-path: /var/lib/console/t.jsonl
orchestrator:
  base-url: http://orch:9000
  timeout-seconds: 30
tunnel:
  base-url: http://tunnel:9100
object-store:
  endpoint: minio:9000
  access-key: ak
  secret-key: sk
  bucket: documents
  use-ssl: true
  expiry-minutes: 30
snapshot:
  cache-ttl-seconds: 10
logging:
  level: debug
  to-file: true
  dir: /var/log/console
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.Orchestrator.Timeout() != 30*time.Second {
		t.Fatalf("orchestrator timeout = %v", cfg.Orchestrator.Timeout())
	}
	if !cfg.ObjectStore.Enabled() {
		t.Fatal("object store should be enabled")
	}
	if !cfg.ObjectStore.UseSSL || cfg.ObjectStore.ExpiryMinutes != 30 {
		t.Fatalf("object store = %+v", cfg.ObjectStore)
	}
	if cfg.Snapshot.CacheTTL() != 10*time.Second {
		t.Fatalf("cache ttl = %v", cfg.Snapshot.CacheTTL())
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.ToFile {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "port: [not a number\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestObjectStoreEnabled(t *testing.T) {
	if (ObjectStoreConfig{}).Enabled() {
		t.Fatal("empty object store config should be disabled")
	}
	if (ObjectStoreConfig{Endpoint: "minio:9000"}).Enabled() {
		t.Fatal("endpoint without bucket should be disabled")
	}
	if !(ObjectStoreConfig{Endpoint: "minio:9000", Bucket: "b"}).Enabled() {
		t.Fatal("endpoint plus bucket should be enabled")
	}
}

func TestSnapshotCacheDisabled(t *testing.T) {
	c := SnapshotConfig{CacheTTLSeconds: -1}
	if c.CacheTTL() >= 0 {
		t.Fatalf("ttl = %v, want negative to disable caching", c.CacheTTL())
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")

	reloaded := make(chan *Config, 1)
	stop, err := Watch(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("port: 9091\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Port != 9091 {
			t.Fatalf("reloaded port = %d, want 9091", cfg.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change never observed")
	}
}

func TestWatch_KeepsPreviousOnParseFailure(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")

	reloaded := make(chan *Config, 4)
	stop, err := Watch(path, func(cfg *Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("port: [broken\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("broken config delivered: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
