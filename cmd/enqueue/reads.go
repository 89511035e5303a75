package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/files"
	"github.com/JaimeStill/harbor/internal/insights"
	"github.com/JaimeStill/harbor/internal/records"
	"github.com/JaimeStill/harbor/internal/rules"
	"github.com/JaimeStill/harbor/internal/tenants"
	"github.com/JaimeStill/harbor/internal/users"
	"github.com/JaimeStill/harbor/pkg/pagination"
)

func (c *client) files(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("files", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	id := fs.String("id", "", "Print a single file")
	fileType := fs.String("type", "", "Filter by file type")
	status := fs.String("status", "", "Filter by status (PENDING, PROCESSED, FAILED)")
	page := fs.Int("page", 1, "Page number")
	size := fs.Int("size", 0, "Page size")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}

	system := files.New(
		c.infra.Database.Pool(),
		c.infra.Storage,
		c.producer,
		c.infra.Logger,
		c.cfg.Pagination,
	)

	if *id != "" {
		fileID, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("invalid -id: %w", err)
		}
		f, err := system.Find(ctx, tenantID, fileID)
		if err != nil {
			return err
		}
		return printJSON(f)
	}

	var filters files.Filters
	if *fileType != "" {
		t, err := files.ParseFileType(*fileType)
		if err != nil {
			return err
		}
		filters.Type = &t
	}
	if *status != "" {
		s, err := files.ParseStatus(*status)
		if err != nil {
			return err
		}
		filters.Status = &s
	}

	result, err := system.History(ctx, tenantID, pagination.PageRequest{Page: *page, PageSize: *size}, filters)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (c *client) records(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("records", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	file := fs.String("file", "", "Filter by source file id")
	partition := fs.String("type", "", "Filter by record type (sales, expenses, inventory)")
	page := fs.Int("page", 1, "Page number")
	size := fs.Int("size", 0, "Page size")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}

	var filters records.Filters
	if *partition != "" {
		filters.RecordType = partition
	}
	if *file != "" {
		fileID, err := uuid.Parse(*file)
		if err != nil {
			return fmt.Errorf("invalid -file: %w", err)
		}
		filters.FileID = &fileID
	}

	system := records.New(c.infra.Database.Pool(), c.infra.Logger, c.cfg.Pagination)
	result, err := system.List(ctx, tenantID, pagination.PageRequest{Page: *page, PageSize: *size}, filters)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// rules lists a tenant's rules, prints one with -id, or updates it when any
// of -name, -enable, -disable or -definition is also given.
func (c *client) rules(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant id")
	id := fs.String("id", "", "Rule id")
	name := fs.String("name", "", "Rename the rule")
	enable := fs.Bool("enable", false, "Enable the rule")
	disable := fs.Bool("disable", false, "Disable the rule")
	path := fs.String("definition", "", "Path to a replacement JSON definition")
	page := fs.Int("page", 1, "Page number")
	size := fs.Int("size", 0, "Page size")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}

	system := rules.New(c.infra.Database.Pool(), c.infra.Logger, c.cfg.Pagination)

	if *id == "" {
		result, err := system.List(ctx, tenantID, pagination.PageRequest{Page: *page, PageSize: *size})
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	ruleID, err := uuid.Parse(*id)
	if err != nil {
		return fmt.Errorf("invalid -id: %w", err)
	}

	var cmd rules.UpdateCommand
	if flagSet(fs, "name") {
		cmd.Name = name
	}
	if *enable && *disable {
		return errors.New("-enable and -disable are exclusive")
	}
	if *enable || *disable {
		enabled := *enable
		cmd.Enabled = &enabled
	}
	if *path != "" {
		def, err := readDefinition(*path)
		if err != nil {
			return err
		}
		cmd.Definition = &def
	}

	if cmd == (rules.UpdateCommand{}) {
		r, err := system.Find(ctx, tenantID, ruleID)
		if err != nil {
			return err
		}
		return printJSON(r)
	}

	r, err := system.Update(ctx, tenantID, ruleID, cmd)
	if err != nil {
		return err
	}
	return printJSON(r)
}

func (c *client) tenant(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tenant", flag.ExitOnError)
	id := fs.String("id", "", "Tenant id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*id)
	if err != nil {
		return fmt.Errorf("invalid -id: %w", err)
	}

	t, err := tenants.New(c.infra.Database.Pool(), c.infra.Logger).Find(ctx, tenantID)
	if err != nil {
		return err
	}

	members, err := users.New(c.infra.Database.Pool(), c.infra.Logger).List(ctx, tenantID)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{"tenant": t, "users": members})
}

func (c *client) insightSystem() insights.System {
	return insights.New(c.infra.Database.Pool(), c.infra.Logger, c.cfg.Pagination)
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
