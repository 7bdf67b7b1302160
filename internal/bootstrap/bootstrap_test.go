package bootstrap

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"aidiary/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.Default()
	cfg.Storage.BaseDir = filepath.Join(tmp, "data")
	cfg.Storage.ExportDir = filepath.Join(tmp, "exports")
	return cfg
}

func TestBuildSuccessWithTempDir(t *testing.T) {
	cfg := testConfig(t)
	res, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer res.Close()
	if res.Orch == nil {
		t.Fatal("orch is nil")
	}
	if res.Store == nil {
		t.Fatal("store is nil")
	}
	if res.DBPath != filepath.Join(cfg.Storage.BaseDir, "diary.db") {
		t.Fatalf("DBPath=%q", res.DBPath)
	}
	if res.Model != config.DefaultModel {
		t.Fatalf("Model=%q, want %q", res.Model, config.DefaultModel)
	}

	if err := res.Orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := os.Stat(res.DBPath); err != nil {
		t.Fatalf("database not created: %v", err)
	}
	if got := res.Orch.Agent().AgentName; got != config.DefaultAgentName {
		t.Fatalf("agent=%q, want %q", got, config.DefaultAgentName)
	}
	if n := len(res.Orch.Repository().List()); n != 0 {
		t.Fatalf("fresh database has %d conversations", n)
	}
}

func TestBuildModelCommandPersists(t *testing.T) {
	cfg := testConfig(t)
	res, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	ctx := context.Background()
	if err := res.Orch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := res.Orch.RunInput(ctx, "/model gpt-4o", nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Storage.BaseDir, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["provider"]["model"] != "gpt-4o" {
		t.Fatalf("persisted=%v", out)
	}
}

func TestBuildBadLogLevelFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Level = "loud"
	if _, err := Build(cfg); err == nil {
		t.Fatal("Build with invalid log level should fail")
	}
}
