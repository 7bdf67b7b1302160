package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"DIARY_CONFIG_PATH", "DIARY_BASE_URL", "DIARY_MODEL", "DIARY_API_KEY",
		"OPENAI_API_KEY", "DIARY_HOME", "DIARY_LOG_LEVEL", "DIARY_UI", "DIARY_CONTEXT_TOKEN_LIMIT",
	} {
		t.Setenv(k, "")
	}
	work = t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	return home, work
}

func TestLoadDefaults(t *testing.T) {
	home, _ := isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != DefaultModel || cfg.Provider.BaseURL != DefaultBaseURL {
		t.Fatalf("provider=%+v", cfg.Provider)
	}
	if cfg.Agent.Name != DefaultAgentName || cfg.Agent.Personality != DefaultAgentPersonality {
		t.Fatalf("agent=%+v", cfg.Agent)
	}
	if cfg.Runtime.MinDiaryMessages != 4 || cfg.Runtime.WriteRetries != 3 || cfg.Runtime.TargetPolicy != "current" {
		t.Fatalf("runtime=%+v", cfg.Runtime)
	}
	wantBase := filepath.Join(home, ".aidiary")
	if cfg.Storage.BaseDir != wantBase {
		t.Fatalf("base_dir=%q want %q", cfg.Storage.BaseDir, wantBase)
	}
	if cfg.DBPath() != filepath.Join(wantBase, "diary.db") {
		t.Fatalf("db path=%q", cfg.DBPath())
	}
	if cfg.LogPath() != filepath.Join(wantBase, "diary.log") {
		t.Fatalf("log path=%q", cfg.LogPath())
	}
	if cfg.Storage.ExportDir != filepath.Join(wantBase, "exports") {
		t.Fatalf("export dir=%q", cfg.Storage.ExportDir)
	}
}

func TestLoadJSONCAndPrecedence(t *testing.T) {
	home, _ := isolate(t)

	globalDir := filepath.Join(home, ".aidiary")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}
	globalCfg := `{
  // global
  "provider": {"model": "global-model", "api_key": "sk-global"},
  "runtime": {"min_diary_messages": 6}
}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.jsonc"), []byte(globalCfg), 0o644); err != nil {
		t.Fatal(err)
	}
	projectCfg := `{
  /* project wins */
  "provider": {"model": "project-model"},
  "agent": {"name": "ミライ"}
}`
	if err := os.WriteFile("diary.config.jsonc", []byte(projectCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "project-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "sk-global" {
		t.Fatalf("api key from global config lost: %q", cfg.Provider.APIKey)
	}
	if cfg.Runtime.MinDiaryMessages != 6 {
		t.Fatalf("min_diary_messages=%d", cfg.Runtime.MinDiaryMessages)
	}
	if cfg.Agent.Name != "ミライ" || cfg.Agent.Personality != DefaultAgentPersonality {
		t.Fatalf("agent=%+v", cfg.Agent)
	}
	if cfg.Provider.Models[0] != "project-model" {
		t.Fatalf("selected model should lead the list: %v", cfg.Provider.Models)
	}
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	yamlCfg := `provider:
  model: yaml-model
  temperature: 0.3
runtime:
  target_policy: today
  ui: TUI
log:
  level: debug
`
	if err := os.WriteFile("diary.config.yaml", []byte(yamlCfg), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "yaml-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.Temperature < 0.29 || cfg.Provider.Temperature > 0.31 {
		t.Fatalf("temperature=%v", cfg.Provider.Temperature)
	}
	if cfg.Runtime.TargetPolicy != "today" || cfg.Runtime.UI != "tui" {
		t.Fatalf("runtime=%+v", cfg.Runtime)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level=%q", cfg.Log.Level)
	}
}

func TestExplicitPathAndEnvPath(t *testing.T) {
	_, work := isolate(t)
	explicit := filepath.Join(work, "custom.json")
	if err := os.WriteFile(explicit, []byte(`{"provider":{"model":"explicit"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "explicit" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}

	envPath := filepath.Join(work, "env.json")
	if err := os.WriteFile(envPath, []byte(`{"provider":{"model":"from-env-path"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DIARY_CONFIG_PATH", envPath)
	cfg, err = Load(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "from-env-path" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
}

func TestEnvOverride(t *testing.T) {
	_, work := isolate(t)
	t.Setenv("DIARY_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("DIARY_HOME", filepath.Join(work, "data"))
	t.Setenv("DIARY_UI", "tui")
	t.Setenv("DIARY_CONTEXT_TOKEN_LIMIT", "2048")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "env-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "sk-openai" {
		t.Fatalf("api key=%q", cfg.Provider.APIKey)
	}
	if cfg.Storage.BaseDir != filepath.Join(work, "data") {
		t.Fatalf("base_dir=%q", cfg.Storage.BaseDir)
	}
	if cfg.Storage.ExportDir != filepath.Join(work, "data", "exports") {
		t.Fatalf("export_dir=%q", cfg.Storage.ExportDir)
	}
	if cfg.Runtime.UI != "tui" || cfg.Runtime.ContextTokenLimit != 2048 {
		t.Fatalf("runtime=%+v", cfg.Runtime)
	}

	t.Setenv("DIARY_API_KEY", "sk-diary")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "sk-diary" {
		t.Fatalf("DIARY_API_KEY should win, got %q", cfg.Provider.APIKey)
	}
}

func TestInvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("DIARY_CONTEXT_TOKEN_LIMIT", "lots")
	if _, err := Load(""); err == nil {
		t.Fatal("expected invalid token limit error")
	}
	t.Setenv("DIARY_CONTEXT_TOKEN_LIMIT", "")

	if err := os.WriteFile("diary.config.json", []byte(`{"runtime":{"target_policy":"random"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected invalid target policy error")
	}
	if err := os.WriteFile("diary.config.json", []byte(`{"provider":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNormalizeModelList(t *testing.T) {
	got := normalizeModelList([]string{" a ", "", "b", "a", "c "})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v", got)
		}
	}
}

func TestStripJSONCommentsKeepsStrings(t *testing.T) {
	in := `{"url": "https://example.com/v1", /* c */ "k": "a//b"} // tail`
	var out map[string]string
	if err := json.Unmarshal(stripJSONComments([]byte(in)), &out); err != nil {
		t.Fatal(err)
	}
	if out["url"] != "https://example.com/v1" || out["k"] != "a//b" {
		t.Fatalf("out=%v", out)
	}
}

func TestWriteProviderModelKeepsOtherKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"provider":{"api_key":"sk"},"agent":{"name":"x"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteProviderModel(dir, "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["provider"]["model"] != "gpt-4o" || out["provider"]["api_key"] != "sk" || out["agent"]["name"] != "x" {
		t.Fatalf("out=%v", out)
	}
	if err := WriteProviderModel(dir, "  "); err == nil {
		t.Fatal("expected error for blank model")
	}
}

func TestInitProjectConfigScaffold(t *testing.T) {
	_, work := isolate(t)
	path, err := InitProjectConfigScaffold()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(work, "diary.config.json") {
		t.Fatalf("path=%q", path)
	}
	if err := os.WriteFile(path, []byte(`{"provider":{"model":"kept"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := InitProjectConfigScaffold(); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "kept" {
		t.Fatalf("scaffold overwrote existing file: model=%q", cfg.Provider.Model)
	}
}
