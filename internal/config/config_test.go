package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Server.Port != 8080 || cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected server/log defaults %+v %+v", cfg.Server, cfg.Log)
	}
	if cfg.LLM.Temperature != 0.1 || cfg.LLM.MaxAttempts != 3 || cfg.CallTimeout() != time.Minute {
		t.Fatalf("unexpected llm defaults %+v", cfg.LLM)
	}
	if cfg.Sources.AlphaVantage.DailyLimit != 500 || cfg.Sources.StockNews.DailyLimit != 100 || cfg.Sources.Edgar.UserAgent == "" {
		t.Fatalf("unexpected source defaults %+v", cfg.Sources)
	}
	if cfg.Database.Port != 0 {
		t.Fatalf("expected no port without a driver, got %d", cfg.Database.Port)
	}
}

func TestEnvKeyPrecedence(t *testing.T) {
	var cfg Config
	cfg.applyEnv(lookupFrom(map[string]string{
		"OPENAI_API_KEY": "sk-openai",
		"LLM_API_KEY":    "  sk-generic ",
	}))
	if cfg.LLM.APIKey != "sk-generic" || cfg.LLM.BaseURL != "" {
		t.Fatalf("expected LLM_API_KEY to win, got %+v", cfg.LLM)
	}
}

func TestGeminiKeySelectsCompatibleEndpoint(t *testing.T) {
	var cfg Config
	cfg.applyEnv(lookupFrom(map[string]string{"GEMINI_API_KEY": "g-key", "OPENAI_API_KEY": "sk"}))
	if cfg.LLM.APIKey != "g-key" || cfg.LLM.BaseURL != GeminiBaseURL || cfg.LLM.Model != GeminiModel {
		t.Fatalf("unexpected gemini config %+v", cfg.LLM)
	}

	var custom Config
	custom.LLM.BaseURL = "https://proxy.local/v1"
	custom.applyEnv(lookupFrom(map[string]string{"GEMINI_API_KEY": "g-key"}))
	if custom.LLM.BaseURL != "https://proxy.local/v1" || custom.LLM.Model != "" {
		t.Fatalf("expected explicit base url to be kept, got %+v", custom.LLM)
	}
}

func TestIsConfiguredAndStatus(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	if cfg.IsConfigured() {
		t.Fatal("expected unconfigured without keys")
	}

	cfg.LLM.APIKey = "sk"
	cfg.Sources.AlphaVantage.APIKey = "YOUR_ALPHA_VANTAGE_API_KEY_HERE"
	if cfg.IsConfigured() {
		t.Fatal("placeholder keys must not count")
	}
	cfg.Sources.AlphaVantage.APIKey = "av"
	if !cfg.IsConfigured() {
		t.Fatal("expected configured")
	}

	st := cfg.Status()
	if !st["llm"] || !st["alpha_vantage"] || st["stock_news"] || !st["yahoo_finance"] || st["database"] {
		t.Fatalf("unexpected status %v", st)
	}
}

func TestDSNs(t *testing.T) {
	var cfg Config
	cfg.Database.Driver = "postgres"
	cfg.Database.Host = "db"
	cfg.Database.User = "app"
	cfg.Database.Password = "p@ss word"
	cfg.Database.Name = "analyst"
	cfg.applyDefaults()

	if got := cfg.PostgresDSN(); got != "postgres://app:p%40ss%20word@db:5432/analyst?sslmode=disable" {
		t.Fatalf("unexpected postgres dsn %q", got)
	}

	cfg.Database.Port = 3306
	if got := cfg.MySQLDSN(); !strings.HasPrefix(got, "app:p@ss word@tcp(db:3306)/analyst?parseTime=true") {
		t.Fatalf("unexpected mysql dsn %q", got)
	}
}

func TestLoadYAMLAndOptional(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  port: 9090\nllm:\n  model: gpt-4o\nsources:\n  alphaVantage:\n    dailyLimit: 25\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LLM_MODEL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.LLM.Model != "gpt-4o" || cfg.Sources.AlphaVantage.DailyLimit != 25 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Sources.AlphaVantage.PerMinute != 5 {
		t.Fatalf("expected defaults to fill gaps, got %d", cfg.Sources.AlphaVantage.PerMinute)
	}

	if _, err := LoadOptional(filepath.Join(dir, "missing.yaml")); err != nil {
		t.Fatalf("LoadOptional should tolerate a missing file: %v", err)
	}
	if err := os.WriteFile(path, []byte("server: ["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadOptional(path); err == nil {
		t.Fatal("expected parse error")
	}
}
