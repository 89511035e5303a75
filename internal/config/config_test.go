package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/jobs"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 9090

[log]
level = "debug"
format = "json"

[database]
host = "localhost"
port = 5432
name = "harbor"
user = "harbor"
password = "harbor"
ssl_mode = "disable"

[storage]
container_name = "uploads"
connection_string = "DefaultEndpointsProtocol=http;AccountName=harborstore;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/harborstore;"

[queue]
driver = "postgres"
poll_interval = "500ms"

[queue.pools.file-processing]
concurrency = 8

[ingestion]
max_file_size = "20MB"

[pagination]
default_page_size = 25
max_page_size = 100
`

const overlayConfig = `
[server]
port = 9191

[database]
host = "prodhost"

[scheduler]
enabled = false
`

const minimalConfig = `
[database]
name = "harbor"
user = "harbor"

[storage]
connection_string = "conn"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Log.JSON() {
		t.Error("log format: want json")
	}
	if cfg.Storage.ContainerName != "uploads" {
		t.Errorf("storage container: got %s, want uploads", cfg.Storage.ContainerName)
	}
	if cfg.Queue.PollIntervalDuration() != 500*time.Millisecond {
		t.Errorf("poll interval: got %s, want 500ms", cfg.Queue.PollIntervalDuration())
	}
	if got := cfg.Ingestion.MaxFileSizeBytes(); got != 20*1024*1024 {
		t.Errorf("max file size: got %d", got)
	}
	if cfg.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.Pagination.DefaultPageSize)
	}
}

func TestQueuePools(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	tests := []struct {
		queue       string
		concurrency int
		timeout     time.Duration
		maxAttempts int
	}{
		{jobs.QueueFileProcessing, 8, 5 * time.Minute, 3},
		{jobs.QueueInsights, 3, 2 * time.Minute, 3},
		{jobs.QueueAutomation, 2, 2 * time.Minute, 3},
		{jobs.QueueNotification, 10, time.Minute, 5},
	}

	for _, tt := range tests {
		t.Run(tt.queue, func(t *testing.T) {
			p := cfg.Queue.Pool(tt.queue)
			if p.Concurrency != tt.concurrency {
				t.Errorf("concurrency: got %d, want %d", p.Concurrency, tt.concurrency)
			}
			if p.TimeoutDuration() != tt.timeout {
				t.Errorf("timeout: got %s, want %s", p.TimeoutDuration(), tt.timeout)
			}
			if p.MaxAttempts != tt.maxAttempts {
				t.Errorf("max attempts: got %d, want %d", p.MaxAttempts, tt.maxAttempts)
			}
		})
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv("HARBOR_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("server port: got %d, want 9191 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should be disabled by overlay")
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("HARBOR_VERSION", "2.0.0")
	t.Setenv("HARBOR_SERVER_PORT", "3000")
	t.Setenv("HARBOR_QUEUE_DRIVER", "memory")
	t.Setenv("HARBOR_QUEUE_NOTIFICATION_CONCURRENCY", "20")
	t.Setenv("HARBOR_AUTOMATION_DISPATCH_ATTEMPTS", "5")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Queue.Driver != "memory" {
		t.Errorf("queue driver: got %s, want memory", cfg.Queue.Driver)
	}
	if got := cfg.Queue.Pool(jobs.QueueNotification).Concurrency; got != 20 {
		t.Errorf("notification concurrency: got %d, want 20", got)
	}
	if cfg.Automation.DispatchAttempts != 5 {
		t.Errorf("dispatch attempts: got %d, want 5", cfg.Automation.DispatchAttempts)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("HARBOR_DB_NAME", "testdb")
	t.Setenv("HARBOR_DB_USER", "testuser")
	t.Setenv("HARBOR_STORAGE_CONNECTION_STRING", "conn")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port default: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if !cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should default to enabled")
	}
}

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout: got %s, want 30s", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Queue.Driver != "postgres" {
		t.Errorf("queue driver: got %s, want postgres", cfg.Queue.Driver)
	}
	if cfg.Ingestion.MaxFileSizeBytes() != 50*1024*1024 {
		t.Errorf("max file size: got %d", cfg.Ingestion.MaxFileSizeBytes())
	}
	if cfg.Scheduler.DailyIntervalDuration() != 24*time.Hour {
		t.Errorf("daily interval: got %s", cfg.Scheduler.DailyIntervalDuration())
	}
	if cfg.Automation.DispatchAttempts != 3 {
		t.Errorf("dispatch attempts: got %d, want 3", cfg.Automation.DispatchAttempts)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should default to disabled")
	}
	if cfg.Pagination.DefaultPageSize != 50 {
		t.Errorf("pagination default_page_size: got %d, want 50", cfg.Pagination.DefaultPageSize)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `[server`)
	chdir(t, dir)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestEnvDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"invalid port", "[server]\nport = 99999\n", "invalid port"},
		{"invalid log level", "[log]\nlevel = \"loud\"\n", "invalid level"},
		{"invalid driver", "[queue]\ndriver = \"redis\"\n", "unsupported driver"},
		{"pool timeout exceeds lease", "[queue]\nstale_after = \"1m\"\n", "shorter than stale_after"},
		{"invalid max file size", "[ingestion]\nmax_file_size = \"big\"\n", "max_file_size"},
		{"scheduler interval too short", "[scheduler]\nautomation_interval = \"1s\"\n", "automation_interval"},
		{"sample ratio out of range", "[tracing]\nsample_ratio = 2.0\n", "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", minimalConfig+tt.extra)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
