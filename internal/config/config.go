package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	BaseURL     string   `json:"base_url"`
	Model       string   `json:"model"`
	Models      []string `json:"models"`
	APIKey      string   `json:"api_key"`
	TimeoutMS   int      `json:"timeout_ms"`
	MaxRetries  int      `json:"max_retries"`
	Temperature float32  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

type RuntimeConfig struct {
	ContextTokenLimit int `json:"context_token_limit"`
	MinDiaryMessages  int `json:"min_diary_messages"`
	WriteRetries      int `json:"write_retries"`
	// TargetPolicy 选择新消息写入的会话：current | today
	// TargetPolicy selects where new messages go: current | today
	TargetPolicy string `json:"target_policy"`
	UI           string `json:"ui"`
	Locale       string `json:"locale"`
}

// AgentConfig 未保存人设时使用的默认人设
// AgentConfig is the persona used until the user saves one.
type AgentConfig struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
}

type StorageConfig struct {
	BaseDir   string `json:"base_dir"`
	DBFile    string `json:"db_file"`
	ExportDir string `json:"export_dir"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Runtime  RuntimeConfig  `json:"runtime"`
	Agent    AgentConfig    `json:"agent"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
}

type fileConfig struct {
	Provider *ProviderConfig `json:"provider"`
	Runtime  *RuntimeConfig  `json:"runtime"`
	Agent    *AgentConfig    `json:"agent"`
	Storage  *StorageConfig  `json:"storage"`
	Log      *LogConfig      `json:"log"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			Models:      []string{DefaultModel, "gpt-4o-mini", "gpt-4o"},
			TimeoutMS:   60000,
			MaxRetries:  2,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Runtime: RuntimeConfig{
			ContextTokenLimit: DefaultRuntimeContextTokenLimit,
			MinDiaryMessages:  DefaultMinDiaryMessages,
			WriteRetries:      DefaultWriteRetries,
			TargetPolicy:      "current",
			UI:                "repl",
		},
		Agent: AgentConfig{
			Name:        DefaultAgentName,
			Personality: DefaultAgentPersonality,
		},
		Storage: StorageConfig{
			BaseDir: "~/.aidiary",
			DBFile:  "diary.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			File:   "diary.log",
		},
	}
}

// Load 依次合并：默认值、全局配置、项目配置（或 path / DIARY_CONFIG_PATH）、环境变量
// Load merges defaults, the global config, the project config (or path / DIARY_CONFIG_PATH) and env vars.
func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("DIARY_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

// GlobalDir 全局配置目录（~/.aidiary）
// GlobalDir is the global config directory (~/.aidiary).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aidiary")
}

func globalConfigPaths() []string {
	dir := GlobalDir()
	if dir == "" {
		return nil
	}
	names := []string{"config.json", "config.jsonc", "config.yaml", "config.yml"}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(dir, n))
	}
	return out
}

func findProjectConfigPath() string {
	candidates := []string{
		"diary.config.json",
		"diary.config.jsonc",
		"diary.config.yaml",
		"diary.config.yml",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	fileCfg, err := parseFileConfig(resolved, data)
	if err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

// parseFileConfig 按扩展名解析 JSON(C) 或 YAML；YAML 先转成 JSON 以复用同一组字段标签
// parseFileConfig decodes JSON(C) or YAML by extension. YAML is converted to
// JSON first so both formats share the json field tags.
func parseFileConfig(path string, data []byte) (fileConfig, error) {
	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fileConfig{}, err
		}
		if doc == nil {
			return fc, nil
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return fileConfig{}, err
		}
		data = encoded
	default:
		data = stripJSONComments(data)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, err
	}
	return fc, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Runtime != nil {
		cfg.Runtime = mergeRuntime(cfg.Runtime, *fc.Runtime)
	}
	if fc.Agent != nil {
		if strings.TrimSpace(fc.Agent.Name) != "" {
			cfg.Agent.Name = fc.Agent.Name
		}
		if strings.TrimSpace(fc.Agent.Personality) != "" {
			cfg.Agent.Personality = fc.Agent.Personality
		}
	}
	if fc.Storage != nil {
		cfg.Storage = mergeStorage(cfg.Storage, *fc.Storage)
	}
	if fc.Log != nil {
		cfg.Log = mergeLog(cfg.Log, *fc.Log)
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if len(override.Models) > 0 {
		base.Models = append([]string(nil), override.Models...)
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	return base
}

func mergeRuntime(base RuntimeConfig, override RuntimeConfig) RuntimeConfig {
	if override.ContextTokenLimit > 0 {
		base.ContextTokenLimit = override.ContextTokenLimit
	}
	if override.MinDiaryMessages > 0 {
		base.MinDiaryMessages = override.MinDiaryMessages
	}
	if override.WriteRetries > 0 {
		base.WriteRetries = override.WriteRetries
	}
	if strings.TrimSpace(override.TargetPolicy) != "" {
		base.TargetPolicy = override.TargetPolicy
	}
	if strings.TrimSpace(override.UI) != "" {
		base.UI = override.UI
	}
	if strings.TrimSpace(override.Locale) != "" {
		base.Locale = override.Locale
	}
	return base
}

func mergeStorage(base StorageConfig, override StorageConfig) StorageConfig {
	if strings.TrimSpace(override.BaseDir) != "" {
		base.BaseDir = override.BaseDir
	}
	if strings.TrimSpace(override.DBFile) != "" {
		base.DBFile = override.DBFile
	}
	if strings.TrimSpace(override.ExportDir) != "" {
		base.ExportDir = override.ExportDir
	}
	return base
}

func mergeLog(base LogConfig, override LogConfig) LogConfig {
	if strings.TrimSpace(override.Level) != "" {
		base.Level = override.Level
	}
	if strings.TrimSpace(override.Format) != "" {
		base.Format = override.Format
	}
	if strings.TrimSpace(override.File) != "" {
		base.File = override.File
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.Temperature <= 0 || cfg.Provider.Temperature > 2 {
		cfg.Provider.Temperature = def.Provider.Temperature
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = def.Provider.MaxTokens
	}
	cfg.Provider.Models = normalizeModelList(cfg.Provider.Models)
	if !containsString(cfg.Provider.Models, cfg.Provider.Model) {
		cfg.Provider.Models = append([]string{cfg.Provider.Model}, cfg.Provider.Models...)
	}

	if cfg.Runtime.ContextTokenLimit <= 0 {
		cfg.Runtime.ContextTokenLimit = def.Runtime.ContextTokenLimit
	}
	if cfg.Runtime.MinDiaryMessages <= 0 {
		cfg.Runtime.MinDiaryMessages = def.Runtime.MinDiaryMessages
	}
	if cfg.Runtime.WriteRetries <= 0 {
		cfg.Runtime.WriteRetries = def.Runtime.WriteRetries
	}
	cfg.Runtime.TargetPolicy = strings.ToLower(strings.TrimSpace(cfg.Runtime.TargetPolicy))
	switch cfg.Runtime.TargetPolicy {
	case "current", "today":
	case "":
		cfg.Runtime.TargetPolicy = def.Runtime.TargetPolicy
	default:
		return fmt.Errorf("invalid runtime.target_policy %q (want current or today)", cfg.Runtime.TargetPolicy)
	}
	cfg.Runtime.UI = strings.ToLower(strings.TrimSpace(cfg.Runtime.UI))
	switch cfg.Runtime.UI {
	case "repl", "tui":
	case "":
		cfg.Runtime.UI = def.Runtime.UI
	default:
		return fmt.Errorf("invalid runtime.ui %q (want repl or tui)", cfg.Runtime.UI)
	}

	if strings.TrimSpace(cfg.Agent.Name) == "" {
		cfg.Agent.Name = def.Agent.Name
	}

	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir
	if strings.TrimSpace(cfg.Storage.DBFile) == "" {
		cfg.Storage.DBFile = def.Storage.DBFile
	}
	if strings.TrimSpace(cfg.Storage.ExportDir) == "" {
		cfg.Storage.ExportDir = filepath.Join(storageDir, "exports")
	}
	exportDir, err := expandPath(cfg.Storage.ExportDir)
	if err != nil {
		return err
	}
	cfg.Storage.ExportDir = exportDir

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format != "console" {
		cfg.Log.Format = def.Log.Format
	}
	if strings.TrimSpace(cfg.Log.File) == "" {
		cfg.Log.File = def.Log.File
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("DIARY_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DIARY_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("DIARY_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DIARY_HOME")); v != "" {
		cfg.Storage.BaseDir = v
		cfg.Storage.ExportDir = ""
	}
	if v := strings.TrimSpace(os.Getenv("DIARY_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("DIARY_UI")); v != "" {
		cfg.Runtime.UI = v
	}
	if v := strings.TrimSpace(os.Getenv("DIARY_CONTEXT_TOKEN_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DIARY_CONTEXT_TOKEN_LIMIT: %q", v)
		}
		cfg.Runtime.ContextTokenLimit = n
	}

	return cfg, normalize(&cfg)
}

// DBPath 数据库文件的绝对路径
// DBPath is the absolute path of the database file.
func (c Config) DBPath() string {
	if filepath.IsAbs(c.Storage.DBFile) {
		return c.Storage.DBFile
	}
	return filepath.Join(c.Storage.BaseDir, c.Storage.DBFile)
}

// LogPath 日志文件的绝对路径
// LogPath is the absolute path of the log file.
func (c Config) LogPath() string {
	if filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	return filepath.Join(c.Storage.BaseDir, c.Log.File)
}

func normalizeModelList(models []string) []string {
	out := make([]string, 0, len(models))
	seen := map[string]struct{}{}
	for _, m := range models {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func containsString(items []string, needle string) bool {
	for _, item := range items {
		if item == needle {
			return true
		}
	}
	return false
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
