package worker_test

import (
	"testing"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/infrastructure"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/internal/worker"
	"github.com/JaimeStill/harbor/pkg/database"
	"github.com/JaimeStill/harbor/pkg/queue"
	"github.com/JaimeStill/harbor/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=harborstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/harborstore;"

func newWorker(t *testing.T) *worker.Worker {
	t.Helper()

	cfg := &config.Config{
		Log: config.LogConfig{Level: "error", Format: "text"},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "harbor",
			User:            "harbor",
			SSLMode:         "disable",
			MaxConns:        2,
			ConnMaxLifetime: "15m",
			ConnMaxIdleTime: "5m",
			ConnTimeout:     "1s",
		},
		Storage: storage.Config{
			ContainerName:    "uploads",
			ConnectionString: azuriteConnString,
			MaxRetries:       1,
			TryTimeout:       "5s",
		},
		Queue: queue.Config{Driver: queue.DriverMemory},
	}
	if err := cfg.Queue.Finalize(nil, jobs.PoolDefaults()); err != nil {
		t.Fatalf("queue finalize: %v", err)
	}
	if err := cfg.Ingestion.Finalize(); err != nil {
		t.Fatalf("ingestion finalize: %v", err)
	}
	if err := cfg.Scheduler.Finalize(); err != nil {
		t.Fatalf("scheduler finalize: %v", err)
	}
	if err := cfg.Automation.Finalize(); err != nil {
		t.Fatalf("automation finalize: %v", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure: %v", err)
	}
	t.Cleanup(infra.Database.Pool().Close)

	return worker.New(cfg, infra)
}

func TestPoolsRegistered(t *testing.T) {
	w := newWorker(t)

	want := map[string]int{
		jobs.QueueAutomation:     2,
		jobs.QueueFileProcessing: 5,
		jobs.QueueInsights:       3,
		jobs.QueueNotification:   10,
	}

	pools := w.Runtime.Fabric.Pools()
	if len(pools) != len(want) {
		t.Fatalf("pools = %d, want %d", len(pools), len(want))
	}
	for _, p := range pools {
		if got := p.Concurrency(); got != want[p.Name()] {
			t.Errorf("%s concurrency = %d, want %d", p.Name(), got, want[p.Name()])
		}
	}
}

func TestDomainAssembled(t *testing.T) {
	d := newWorker(t).Domain

	if d.Evaluator == nil || d.Ingestion == nil || d.Generator == nil || d.Dispatcher == nil {
		t.Error("job handlers not assembled")
	}
	if d.Scheduler == nil {
		t.Error("scheduler not assembled")
	}
	if d.Files == nil || d.Rules == nil || d.Insights == nil {
		t.Error("stores not assembled")
	}
}
