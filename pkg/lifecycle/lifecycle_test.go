package lifecycle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/harbor/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}

	lc.WaitForStartup()
	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if lc.Ready() {
		t.Error("should not be ready after Shutdown")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}

	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
}

func TestRunWaitsForLoop(t *testing.T) {
	lc := lifecycle.New()

	var stopped atomic.Bool
	lc.Run(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		stopped.Store(true)
	})

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !stopped.Load() {
		t.Error("shutdown returned before background loop exited")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}
