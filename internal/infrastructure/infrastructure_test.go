package infrastructure_test

import (
	"testing"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/infrastructure"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/database"
	"github.com/JaimeStill/harbor/pkg/queue"
	"github.com/JaimeStill/harbor/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=harborstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/harborstore;"

func validConfig(t *testing.T, driver string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Log: config.LogConfig{Level: "info", Format: "text"},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "harbor",
			User:            "harbor",
			Password:        "harbor",
			SSLMode:         "disable",
			MaxConns:        5,
			MinConns:        0,
			ConnMaxLifetime: "15m",
			ConnMaxIdleTime: "5m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "uploads",
			ConnectionString: azuriteConnString,
			MaxRetries:       1,
			TryTimeout:       "10s",
		},
		Queue:   queue.Config{Driver: driver},
		Version: "0.1.0",
	}
	if err := cfg.Queue.Finalize(nil, jobs.PoolDefaults()); err != nil {
		t.Fatalf("queue finalize: %v", err)
	}
	return cfg
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t, queue.DriverPostgres))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(infra.Database.Pool().Close)

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Broker == nil {
		t.Error("Broker is nil")
	}
	if infra.Metrics == nil || infra.Registry == nil {
		t.Error("metrics not initialized")
	}
	if infra.Tracing == nil {
		t.Error("Tracing is nil")
	}
}

func TestNewMemoryBroker(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t, queue.DriverMemory))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(infra.Database.Pool().Close)

	if _, ok := infra.Broker.(*queue.Memory); !ok {
		t.Errorf("broker type = %T, want *queue.Memory", infra.Broker)
	}
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig(t, queue.DriverMemory)
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestRegistryGathers(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t, queue.DriverMemory))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(infra.Database.Pool().Close)

	families, err := infra.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected runtime collectors to report")
	}
}
