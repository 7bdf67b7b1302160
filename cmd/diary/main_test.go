package main

import (
	"testing"

	"aidiary/internal/config"
)

func TestResolveUI(t *testing.T) {
	cfg := config.Default()

	// flag wins
	mode, err := resolveUI("TUI", cfg)
	if err != nil || mode != "tui" {
		t.Fatalf("mode=%q err=%v", mode, err)
	}

	// config when flag empty
	cfg.Runtime.UI = "repl"
	mode, err = resolveUI("", cfg)
	if err != nil || mode != "repl" {
		t.Fatalf("mode=%q err=%v", mode, err)
	}

	if _, err := resolveUI("gui", cfg); err == nil {
		t.Fatal("expected error for unknown ui")
	}
}

func TestResolveLocale(t *testing.T) {
	cfg := config.Default()
	cfg.Runtime.Locale = "ja"
	if got := resolveLocale(cfg); got != "ja" {
		t.Fatalf("locale=%q", got)
	}

	cfg.Runtime.Locale = ""
	t.Setenv("DIARY_LANG", "en_US.UTF-8")
	if got := resolveLocale(cfg); got != "en" {
		t.Fatalf("locale=%q", got)
	}
}
