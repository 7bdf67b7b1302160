package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"aidiary/internal/bootstrap"
	"aidiary/internal/config"
	"aidiary/internal/i18n"
	"aidiary/internal/repl"
	"aidiary/internal/tui"
)

func main() {
	var (
		configPath string
		uiMode     string
		initConfig bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config JSON/JSONC/YAML")
	flag.StringVar(&uiMode, "ui", "", "Front-end: repl or tui (overrides runtime.ui)")
	flag.BoolVar(&initConfig, "init", false, "Write diary.config.json in the current directory and exit")
	flag.Parse()

	if initConfig {
		path, err := config.InitProjectConfigScaffold()
		if err != nil {
			fmt.Fprintf(os.Stderr, "init config failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	i18n.Init(resolveLocale(cfg))

	mode, err := resolveUI(uiMode, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(cfg, mode); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, mode string) error {
	res, err := bootstrap.Build(cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer res.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := res.Orch.Start(ctx); err != nil {
		return fmt.Errorf("load conversations failed: %w", err)
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" && res.Orch.Agent().APIKey == "" {
		fmt.Fprintln(os.Stderr, i18n.T("key.missing"))
	}

	if mode == "tui" {
		return tui.Run(ctx, res.Orch)
	}
	loop, err := repl.NewLoop(res, cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	defer loop.Close()
	return loop.Run(ctx)
}

// resolveUI 命令行 -ui 优先于配置
// resolveUI prefers the -ui flag over runtime.ui.
func resolveUI(flagValue string, cfg config.Config) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(flagValue))
	if mode == "" {
		mode = cfg.Runtime.UI
	}
	switch mode {
	case "repl", "tui":
		return mode, nil
	}
	return "", fmt.Errorf("unknown -ui %q (want repl or tui)", flagValue)
}

func resolveLocale(cfg config.Config) string {
	if l := strings.TrimSpace(cfg.Runtime.Locale); l != "" {
		return l
	}
	return i18n.DetectLocale()
}
