// Command enqueue is the operator-side producer for the job pipeline. It
// registers and uploads files for ingestion, triggers insight, automation and
// notification jobs, manages automation rules, and reads back tenant state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/infrastructure"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/queue"
)

const usage = `usage: enqueue <command> [flags]

commands:
  upload      register, upload and confirm a tabular file
  insights    enqueue an insight generation run (-list, -latest to read)
  automation  enqueue an automation evaluation run
  notify      enqueue a notification for explicit recipients
  rule        create an automation rule from a JSON definition
  rules       list, show or update automation rules
  files       page a tenant's upload history or show one file
  records     page a tenant's processed records
  tenant      show a tenant and its users
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal("env file load failed:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if cfg.Queue.Driver != queue.DriverPostgres {
		log.Fatalf("queue driver %q is process-local; enqueue requires %q", cfg.Queue.Driver, queue.DriverPostgres)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newClient(ctx, cfg)
	if err != nil {
		log.Fatal("client init failed:", err)
	}

	cmd := os.Args[1]
	err = c.run(ctx, cmd, os.Args[2:])
	c.close(cfg.ShutdownTimeoutDuration())

	if err != nil {
		c.infra.Logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func (c *client) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "upload":
		return c.upload(ctx, args)
	case "insights":
		return c.insights(ctx, args)
	case "automation":
		return c.automation(ctx, args)
	case "notify":
		return c.notify(ctx, args)
	case "rule":
		return c.rule(ctx, args)
	case "rules":
		return c.rules(ctx, args)
	case "files":
		return c.files(ctx, args)
	case "records":
		return c.records(ctx, args)
	case "tenant":
		return c.tenant(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type client struct {
	infra    *infrastructure.Infrastructure
	producer *jobs.Producer
	cfg      *config.Config
}

func newClient(ctx context.Context, cfg *config.Config) (*client, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := infra.Start(); err != nil {
		return nil, err
	}

	ready := make(chan struct{})
	go func() {
		infra.Lifecycle.WaitForStartup()
		close(ready)
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &client{
		infra:    infra,
		producer: jobs.NewProducer(infra.Broker),
		cfg:      cfg,
	}, nil
}

func (c *client) close(timeout time.Duration) {
	if err := c.infra.Lifecycle.Shutdown(timeout); err != nil {
		c.infra.Logger.Error("shutdown failed", "error", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(os.Stderr)
	return fs.Parse(args)
}
