package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Provider != StoreSQLite {
		t.Fatalf("expected sqlite default store, got %q", cfg.Store.Provider)
	}
	if cfg.HTTP.ProxyURL != "https://r.jina.ai/" {
		t.Fatalf("unexpected proxy default %q", cfg.HTTP.ProxyURL)
	}
	if got := cfg.SyncDelay(); got != 2*time.Second {
		t.Fatalf("expected 2s sync delay, got %v", got)
	}
	if got := cfg.Location().String(); got != "America/New_York" {
		t.Fatalf("expected America/New_York, got %s", got)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.ServiceName != "revere-logs" {
		t.Fatalf("unexpected tracing defaults %+v", cfg.Tracing)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
source:
  base_url: https://logs.example
  index_url: https://logs.example/index
  timezone: UTC
http:
  proxy_url: https://proxy.example/
  timeout_seconds: 45
  max_retries: 4
  backoff_initial_ms: 100
  backoff_max_ms: 500
  requests_per_second: 0.5
discovery:
  cache_ttl_seconds: 0
sync:
  delay_seconds: 0.25
store:
  provider: postgres
  postgres:
    dsn: postgres://localhost/logs
    max_conns: 8
archive:
  provider: gcs
  prefix: docs
  gcs:
    bucket: bucket
pubsub:
  project_id: proj
  topic_name: sync-events
schedule:
  enabled: true
  cron: "*/30 * * * *"
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Store.Provider != StorePostgres || cfg.Store.Postgres.MaxConns != 8 {
		t.Fatalf("expected postgres overrides to apply: %+v", cfg.Store)
	}
	if cfg.Store.Postgres.EntriesTable != "police_log_entries" {
		t.Fatalf("expected default entries table, got %q", cfg.Store.Postgres.EntriesTable)
	}
	if cfg.Archive.Provider != ArchiveGCS || cfg.Archive.GCS.Bucket != "bucket" {
		t.Fatalf("expected gcs archive: %+v", cfg.Archive)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.SyncDelay(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %v", got)
	}
	if cfg.DiscoveryCacheTTL() != 0 {
		t.Fatalf("expected caching disabled")
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Source: SourceConfig{BaseURL: "https://x", IndexURL: "https://x/i", Timezone: "UTC"},
		HTTP:   HTTPConfig{TimeoutSeconds: 10},
		Store:  StoreConfig{Provider: StoreMemory},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"bad timezone", func(c *Config) { c.Source.Timezone = "Mars/Olympus" }, "source.timezone"},
		{"backoff inverted", func(c *Config) { c.HTTP.BackoffInitialMs = 10 }, "http.backoff_max_ms"},
		{"negative delay", func(c *Config) { c.Sync.DelaySeconds = -1 }, "sync.delay_seconds"},
		{"unknown store", func(c *Config) { c.Store.Provider = "mongo" }, "store.provider"},
		{"postgres without dsn", func(c *Config) { c.Store.Provider = StorePostgres }, "store.postgres.dsn"},
		{"sqlite without path", func(c *Config) { c.Store.Provider = StoreSQLite }, "store.sqlite.path"},
		{"unknown archive", func(c *Config) { c.Archive.Provider = "s3" }, "archive.provider"},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = ArchiveGCS }, "archive.gcs.bucket"},
		{"local without dir", func(c *Config) { c.Archive.Provider = ArchiveLocal }, "archive.local.base_dir"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "t" }, "pubsub.project_id"},
		{"bad cron", func(c *Config) { c.Schedule = ScheduleConfig{Enabled: true, Cron: "every day"} }, "schedule.cron"},
		{"tracing without service name", func(c *Config) { c.Tracing.Enabled = true }, "tracing.service_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
