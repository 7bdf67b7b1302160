package bootstrap

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"aidiary/internal/config"
	"aidiary/internal/contextmgr"
	"aidiary/internal/conversation"
	"aidiary/internal/datekey"
	"aidiary/internal/logging"
	"aidiary/internal/orchestrator"
	"aidiary/internal/provider"
	"aidiary/internal/settings"
	"aidiary/internal/storage"
	"aidiary/internal/transfer"
)

// BuildResult 与 UI 无关的构建结果，供 main 构造 REPL 或 TUI
// BuildResult is UI-agnostic; main uses it to construct the REPL or TUI.
type BuildResult struct {
	Orch      *orchestrator.Orchestrator
	Store     storage.Store
	Logger    *zap.Logger
	AgentName string
	Model     string
	DBPath    string
	ExportDir string
}

// Close 关闭存储并刷新日志
// Close closes the store and flushes the logger.
func (r *BuildResult) Close() error {
	err := r.Store.Close()
	_ = r.Logger.Sync()
	return err
}

// Build 按文档顺序初始化并返回 BuildResult；调用方负责 defer result.Close()
// 存储是惰性初始化的：第一次读写（通常是 Orch.Start）才会打开数据库。
// Build wires every component from cfg. The caller must defer result.Close().
// The store opens lazily on first use, normally Orch.Start.
func Build(cfg config.Config) (*BuildResult, error) {
	if err := os.MkdirAll(cfg.Storage.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}

	logger, err := logging.New(cfg.Log, cfg.LogPath())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath(), logger.Named("storage"))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	clock := datekey.SystemClock{}
	repo := conversation.New(store, conversation.Options{
		Clock:  clock,
		Policy: conversation.PolicyByName(cfg.Runtime.TargetPolicy),
		Logger: logger.Named("conversation"),
	})
	settingsSvc := settings.NewService(store, clock, settings.AgentSettings{
		AgentName:   cfg.Agent.Name,
		Personality: cfg.Agent.Personality,
	})

	providerClient := provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		TimeoutMS:   cfg.Provider.TimeoutMS,
		MaxRetries:  cfg.Provider.MaxRetries,
		Temperature: float64(cfg.Provider.Temperature),
		MaxTokens:   cfg.Provider.MaxTokens,
		Logger:      logger.Named("provider"),
	})
	assembler := contextmgr.New(contextmgr.NewTokenizerForModel(cfg.Provider.Model), cfg.Runtime.ContextTokenLimit)

	baseDir := cfg.Storage.BaseDir
	orch := orchestrator.New(orchestrator.Options{
		Provider:         providerClient,
		Repository:       repo,
		Settings:         settingsSvc,
		Transfer:         transfer.New(store, logger.Named("transfer")),
		Assembler:        assembler,
		Clock:            clock,
		Logger:           logger.Named("orchestrator"),
		MinDiaryMessages: cfg.Runtime.MinDiaryMessages,
		WriteRetries:     uint(cfg.Runtime.WriteRetries),
		ExportDir:        cfg.Storage.ExportDir,
		PersistModel: func(model string) error {
			return config.WriteProviderModel(baseDir, model)
		},
	})

	return &BuildResult{
		Orch:      orch,
		Store:     store,
		Logger:    logger,
		AgentName: cfg.Agent.Name,
		Model:     cfg.Provider.Model,
		DBPath:    cfg.DBPath(),
		ExportDir: cfg.Storage.ExportDir,
	}, nil
}
