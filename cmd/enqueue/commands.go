package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/files"
	"github.com/JaimeStill/harbor/internal/insights"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/internal/notifications"
	"github.com/JaimeStill/harbor/internal/rules"
	"github.com/JaimeStill/harbor/pkg/pagination"
)

var contentTypes = map[string]string{
	"csv":  "text/csv",
	"txt":  "text/plain",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (c *client) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	fileType := fs.String("type", "", "Declared file type (SALES, EXPENSES, INVENTORY)")
	path := fs.String("file", "", "Path to a .csv, .txt or .xlsx file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}
	typ, err := files.ParseFileType(*fileType)
	if err != nil {
		return err
	}
	if *path == "" {
		return errors.New("-file required")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(*path), "."))

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	system := files.New(
		c.infra.Database.Pool(),
		c.infra.Storage,
		c.producer,
		c.infra.Logger,
		c.cfg.Pagination,
	)

	raw, err := system.Register(ctx, files.RegisterCommand{TenantID: tenantID, Type: typ, Extension: ext})
	if err != nil {
		return err
	}

	if err := c.infra.Storage.Upload(ctx, raw.StorageKey, f, contentTypes[ext]); err != nil {
		return fmt.Errorf("upload content: %w", err)
	}

	job, err := system.ConfirmUpload(ctx, tenantID, raw.ID)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{"file": raw, "job": job})
}

func (c *client) insights(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	typ := fs.String("type", "DAILY", "Insight type (DAILY, WEEKLY)")
	latest := fs.Bool("latest", false, "Print the newest stored insight of -type instead of enqueuing")
	list := fs.Bool("list", false, "List stored insights instead of enqueuing")
	page := fs.Int("page", 1, "Page number for -list")
	size := fs.Int("size", 0, "Page size for -list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}
	t, err := insights.ParseType(*typ)
	if err != nil {
		return err
	}

	switch {
	case *latest:
		insight, err := c.insightSystem().Latest(ctx, tenantID, t)
		if err != nil {
			return err
		}
		return printJSON(insight)
	case *list:
		var filters insights.Filters
		if flagSet(fs, "type") {
			filters.Type = &t
		}
		result, err := c.insightSystem().List(
			ctx,
			tenantID,
			pagination.PageRequest{Page: *page, PageSize: *size},
			filters,
		)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	job, err := c.producer.GenerateInsights(ctx, jobs.GenerateInsights{TenantID: tenantID, Type: string(t)})
	if err != nil {
		return err
	}
	return printJSON(job)
}

func (c *client) automation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("automation", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}

	job, err := c.producer.EvaluateAutomations(ctx, jobs.EvaluateAutomations{TenantID: tenantID})
	if err != nil {
		return err
	}
	return printJSON(job)
}

func (c *client) notify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("notify", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	to := fs.String("to", "", "Comma-separated recipient emails")
	subject := fs.String("subject", "", "Notification subject")
	template := fs.String("template", "", "Template id")
	dedupe := fs.String("dedupe", "", "Optional dedupe key")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}

	dispatcher := notifications.NewDispatcher(c.producer, c.infra.Logger)
	job, err := dispatcher.Dispatch(ctx, notifications.Request{
		TenantID:     tenantID,
		Recipients:   strings.Split(*to, ","),
		Subject:      *subject,
		TemplateID:   *template,
		TemplateData: map[string]any{},
		DedupeKey:    *dedupe,
	})
	if err != nil {
		return err
	}
	return printJSON(job)
}

func (c *client) rule(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rule", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	name := fs.String("name", "", "Rule name")
	path := fs.String("definition", "", "Path to a JSON rule definition")
	disabled := fs.Bool("disabled", false, "Create the rule disabled")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}

	def, err := readDefinition(*path)
	if err != nil {
		return err
	}

	enabled := !*disabled
	system := rules.New(c.infra.Database.Pool(), c.infra.Logger, c.cfg.Pagination)

	r, err := system.Create(ctx, rules.CreateCommand{
		TenantID:   tenantID,
		Name:       *name,
		Enabled:    &enabled,
		Definition: def,
	})
	if err != nil {
		return err
	}
	return printJSON(r)
}

func readDefinition(path string) (rules.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rules.Definition{}, err
	}

	var def rules.Definition
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return rules.Definition{}, fmt.Errorf("%w: %w", rules.ErrInvalidDefinition, err)
	}
	return def, nil
}
