package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/harbor/internal/rules"
)

func TestFlagSet(t *testing.T) {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	fs.String("name", "", "")
	fs.String("type", "DAILY", "")

	if err := fs.Parse([]string{"-name", ""}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !flagSet(fs, "name") {
		t.Error("explicit empty -name should count as set")
	}
	if flagSet(fs, "type") {
		t.Error("defaulted -type should not count as set")
	}
}

func TestReadDefinition(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	body := `{
		"metric": "sales.count",
		"period": {"currentDays": 1, "previousDays": 1},
		"condition": {"type": "drop_percent_greater_than", "threshold": 20},
		"action": {"toRole": "MANAGER", "subject": "Sales dropped", "template": "sales_drop"}
	}`
	if err := os.WriteFile(valid, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	def, err := readDefinition(valid)
	if err != nil {
		t.Fatalf("readDefinition: %v", err)
	}
	if def.Metric != "sales.count" || def.Condition.Threshold != 20 {
		t.Errorf("unexpected definition: %+v", def)
	}

	unknown := filepath.Join(dir, "unknown.json")
	if err := os.WriteFile(unknown, []byte(`{"metric": "sales.count", "owner": "ops"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := readDefinition(unknown); !errors.Is(err, rules.ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}
